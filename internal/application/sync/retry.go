package sync

import (
	"errors"

	"github.com/sellersync/backend/internal/domain/marketplace"
)

// RetryPolicy decides whether a failed upstream call gets another attempt.
// The only trigger is an authentication failure, and the retry happens after
// a credential refresh, so MaxAttempts is effectively "original call plus one
// retry with the refreshed credential".
type RetryPolicy struct {
	MaxAttempts int
}

// DefaultRetryPolicy returns the standard one-retry-after-refresh policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2}
}

// ShouldRetry reports whether the attempt (1-indexed) that failed with err
// warrants another attempt.
func (p RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	return errors.Is(err, marketplace.ErrUpstreamAuth) || errors.Is(err, marketplace.ErrCredentialExpired)
}
