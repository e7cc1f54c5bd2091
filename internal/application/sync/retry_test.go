package sync

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sellersync/backend/internal/domain/marketplace"
)

func TestRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	t.Run("retries first auth failure", func(t *testing.T) {
		assert.True(t, policy.ShouldRetry(1, marketplace.ErrUpstreamAuth))
	})

	t.Run("retries wrapped auth failure", func(t *testing.T) {
		err := fmt.Errorf("search orders: %w", marketplace.ErrUpstreamAuth)
		assert.True(t, policy.ShouldRetry(1, err))
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		assert.False(t, policy.ShouldRetry(2, marketplace.ErrUpstreamAuth))
	})

	t.Run("never retries transient failures", func(t *testing.T) {
		assert.False(t, policy.ShouldRetry(1, marketplace.ErrUpstreamTransient))
	})

	t.Run("never retries nil-adjacent errors", func(t *testing.T) {
		assert.False(t, policy.ShouldRetry(1, fmt.Errorf("boom")))
	})
}
