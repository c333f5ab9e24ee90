package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackOff adapts the policy's delay schedule to the BackOff interface from
// cenkalti/backoff, so a policy can drive backoff.Retry loops outside the
// engine. The adapter is stateful and not safe for concurrent use, create
// one per retry loop.
func (p *Policy) BackOff() backoff.BackOff {
	return &policyBackOff{policy: p}
}

type policyBackOff struct {
	policy  *Policy
	attempt int
}

func (b *policyBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.attempt >= b.policy.maxAttempts {
		return backoff.Stop
	}
	return b.policy.Delay(b.attempt)
}

func (b *policyBackOff) Reset() {
	b.attempt = 0
}
