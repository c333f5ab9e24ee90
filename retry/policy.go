// Package retry decides whether a failed attempt should run again and how
// long to wait before it does. A Policy is built once, clamped into safe
// bounds and immutable afterwards.
package retry

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Safety limits, requested values beyond these are clamped, never rejected.
const (
	MaxAttemptsLimit = 100
	MaxDelayLimit    = 3600 * time.Second
)

// Option configures a policy at construction time.
type Option func(*Policy)

// Attempts sets the maximum number of attempts before giving up.
func Attempts(n int) Option {
	return func(p *Policy) { p.maxAttempts = n }
}

// Delay sets the base delay between attempts.
func Delay(d time.Duration) Option {
	return func(p *Policy) { p.baseDelay = d }
}

// MaxDelay caps the computed delay.
func MaxDelay(d time.Duration) Option {
	return func(p *Policy) { p.maxDelay = d }
}

// Backoff selects how the delay grows with the attempt number.
func Backoff(s Strategy) Option {
	return func(p *Policy) { p.backoff = s }
}

// Jitter adds a uniformly random 0-10% extra on top of the computed delay.
func Jitter() Option {
	return func(p *Policy) { p.jitter = true }
}

// WithRand injects the randomness source used for jitter, so tests can make
// delays deterministic.
func WithRand(r *rand.Rand) Option {
	return func(p *Policy) { p.rnd = r }
}

// On sets the matchers for failures that are worth retrying.
// The default policy retries on any failure.
func On(matchers ...Matcher) Option {
	return func(p *Policy) { p.retryOn = matchers }
}

// GiveUpOn sets the matchers for failures that must never be retried.
// The deny list wins over the retry list.
func GiveUpOn(matchers ...Matcher) Option {
	return func(p *Policy) { p.giveUpOn = matchers }
}

// NewPolicy builds a retry policy. Without options the policy allows 3
// attempts with a fixed 1s delay capped at 1 minute and retries any failure.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		maxAttempts: 3,
		baseDelay:   1 * time.Second,
		backoff:     Fixed,
		maxDelay:    60 * time.Second,
		retryOn:     []Matcher{Any},
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.maxAttempts < 0 {
		p.maxAttempts = 0
	}
	if p.maxAttempts > MaxAttemptsLimit {
		p.maxAttempts = MaxAttemptsLimit
	}
	if p.baseDelay < 0 {
		p.baseDelay = 0
	}
	if p.maxDelay < 0 {
		p.maxDelay = 0
	}
	if p.maxDelay > MaxDelayLimit {
		p.maxDelay = MaxDelayLimit
	}
	if p.rnd == nil {
		p.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return p
}

// Single is a policy that runs the operation once and never retries.
func Single() *Policy {
	return NewPolicy(Attempts(1))
}

// Policy holds the retry configuration for a task.
type Policy struct {
	maxAttempts int
	baseDelay   time.Duration
	backoff     Strategy
	maxDelay    time.Duration
	jitter      bool
	retryOn     []Matcher
	giveUpOn    []Matcher

	mu  sync.Mutex
	rnd *rand.Rand
}

// MaxAttempts returns the clamped attempt budget.
func (p *Policy) MaxAttempts() int { return p.maxAttempts }

// BaseDelay returns the clamped base delay.
func (p *Policy) BaseDelay() time.Duration { return p.baseDelay }

// MaxDelay returns the clamped delay cap.
func (p *Policy) MaxDelay() time.Duration { return p.maxDelay }

// Strategy returns the configured backoff growth strategy.
func (p *Policy) Strategy() Strategy { return p.backoff }

// ShouldRetry reports whether another attempt should run after err.
// The attempt budget is checked first, then permanently wrapped failures,
// then the deny list, then transient wrappers and the retry list.
func (p *Policy) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.maxAttempts {
		return false
	}
	if IsPermanent(err) {
		return false
	}
	for _, deny := range p.giveUpOn {
		if deny(err) {
			return false
		}
	}
	if IsTransient(err) {
		return true
	}
	for _, allow := range p.retryOn {
		if allow(err) {
			return true
		}
	}
	return false
}

// Delay computes how long to wait before the attempt with the given number.
// Attempts below 1 yield no delay.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}

	delay := float64(p.baseDelay)
	switch p.backoff {
	case Linear:
		delay = float64(p.baseDelay) * float64(attempt)
	case Exponential:
		delay = float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	}

	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}

	if p.jitter {
		p.mu.Lock()
		delay += p.rnd.Float64() * delay * 0.1
		p.mu.Unlock()
	}

	return time.Duration(delay)
}
