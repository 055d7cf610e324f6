package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
)

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("retries infrastructure errors", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, 3, time.Millisecond, func(context.Context) error {
			calls++
			if calls < 3 {
				return &pq.Error{Code: "08006"}
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, 2, time.Millisecond, func(context.Context) error {
			calls++
			return &pq.Error{Code: "57P03"}
		})
		assert.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry logical errors", func(t *testing.T) {
		calls := 0
		conflict := errs.Conflict("test", "exists")
		err := Retry(ctx, 5, time.Millisecond, func(context.Context) error {
			calls++
			return conflict
		})
		assert.True(t, errors.Is(err, conflict))
		assert.Equal(t, 1, calls)
	})
}
