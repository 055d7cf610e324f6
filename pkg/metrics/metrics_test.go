package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnPrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ProvisionTotal.WithLabelValues("success").Inc()
	m.RateLimitDecisions.WithLabelValues("denied").Add(2)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				values[mf.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, values["schoolhost_provision_total"])
	assert.Equal(t, 2.0, values["schoolhost_ratelimit_decisions_total"])

	// A second set on its own registry does not collide.
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}
