package schema

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Outcome is the result of applying one table.
type Outcome struct {
	Table    string `json:"table"`
	Required bool   `json:"required"`
	Err      error  `json:"-"`
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

// Outcomes is the per-table result list of a provisioning or migration run.
type Outcomes []Outcome

// Failed returns the outcomes that carry an error.
func (o Outcomes) Failed() Outcomes {
	var failed Outcomes
	for _, out := range o {
		if !out.OK() {
			failed = append(failed, out)
		}
	}
	return failed
}

// RequiredFailed returns the failed outcomes of required tables.
func (o Outcomes) RequiredFailed() Outcomes {
	var failed Outcomes
	for _, out := range o {
		if !out.OK() && out.Required {
			failed = append(failed, out)
		}
	}
	return failed
}

// Tables lists the table names in order.
func (o Outcomes) Tables() []string {
	names := make([]string, len(o))
	for i, out := range o {
		names[i] = out.Table
	}
	return names
}

// Err aggregates every failure, or returns nil.
func (o Outcomes) Err() error {
	var result *multierror.Error
	for _, out := range o.Failed() {
		result = multierror.Append(result, fmt.Errorf("%s: %w", out.Table, out.Err))
	}
	return result.ErrorOrNil()
}
