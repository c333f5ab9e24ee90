package flow

import (
	"github.com/aavendano/taskchain/future"
)

// Result is the discriminated return shape of Execute: either a ready
// outcome (blocking mode) or a handle to one that is still being produced
// (cooperative mode). Which side an executable produces is fixed at
// construction and never re-inspected per call.
type Result[D any] struct {
	outcome *Outcome[D]
	pending *future.Future[*Outcome[D]]
}

// Ready wraps an already produced outcome.
func Ready[D any](outcome *Outcome[D]) Result[D] {
	return Result[D]{outcome: outcome}
}

// Pending wraps a handle to an outcome that is still being produced.
func Pending[D any](f *future.Future[*Outcome[D]]) Result[D] {
	return Result[D]{pending: f}
}

// IsPending reports whether the outcome has to be awaited.
func (r Result[D]) IsPending() bool {
	return r.pending != nil
}

// Outcome returns the ready outcome, or nil for a pending result.
func (r Result[D]) Outcome() *Outcome[D] {
	return r.outcome
}

// Await resolves the result. A ready outcome is passed through unchanged, a
// pending one is waited for. The error carries only compensation failures
// and contract violations surfaced by the asynchronous computation.
func (r Result[D]) Await() (*Outcome[D], error) {
	if r.pending == nil {
		return r.outcome, nil
	}
	return r.pending.Get()
}

// Cancel abandons a pending result, a ready one is left untouched.
func (r Result[D]) Cancel() {
	if r.pending != nil {
		r.pending.Cancel()
	}
}

// Completion is the discriminated return shape of Compensate: an immediate
// error (nil for success) or a handle to a compensation that is still
// running.
type Completion struct {
	err     error
	pending *future.Future[struct{}]
}

// Done wraps a finished compensation. A non-nil error is always a fatal
// compensation failure.
func Done(err error) Completion {
	return Completion{err: err}
}

// PendingCompletion wraps a compensation that is still running.
func PendingCompletion(f *future.Future[struct{}]) Completion {
	return Completion{pending: f}
}

// IsPending reports whether the compensation has to be awaited.
func (c Completion) IsPending() bool {
	return c.pending != nil
}

// Err returns the error of a finished compensation, nil for a pending one.
func (c Completion) Err() error {
	return c.err
}

// Await resolves the completion, waiting when it is still running.
func (c Completion) Await() error {
	if c.pending == nil {
		return c.err
	}
	_, err := c.pending.Get()
	return err
}
