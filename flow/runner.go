package flow

import (
	"context"
)

// SyncRunner executes a tree in blocking mode. It is the validation boundary
// for top-level callers: handing it an executable that produces a pending
// result is a contract violation, not a failure outcome.
type SyncRunner[D any] struct{}

// Run executes the tree and blocks until the outcome is ready.
func (SyncRunner[D]) Run(ctx context.Context, exe Executable[D], run *Context[D]) (*Outcome[D], error) {
	res, err := exe.Execute(ctx, run)
	if err != nil {
		return nil, err
	}
	if res.IsPending() {
		res.Cancel()
		return nil, &ContractError{
			Step:   exe.Name(),
			Reason: "produced a pending outcome in blocking mode, use AsyncRunner",
		}
	}
	return res.Outcome(), nil
}

// AsyncRunner executes a tree in cooperative mode. A pending outcome is
// awaited, an already resolved one passes through unchanged.
//
// Canceling the run's context abandons the await: Run then returns the
// context error instead of an outcome. This is the one condition besides
// compensation failures and contract violations where the error is non-nil.
type AsyncRunner[D any] struct{}

// Run executes the tree and resolves the outcome.
func (AsyncRunner[D]) Run(ctx context.Context, exe Executable[D], run *Context[D]) (*Outcome[D], error) {
	res, err := exe.Execute(ctx, run)
	if err != nil {
		return nil, err
	}
	return res.Await()
}

// Exec builds a fresh run context for data and executes the tree with the
// runner matching its declared mode.
func Exec[D any](ctx context.Context, exe Executable[D], data D, opts ...ContextOpt[D]) (*Outcome[D], error) {
	run := NewContext(data, opts...)
	if exe.IsAsync() {
		return AsyncRunner[D]{}.Run(ctx, exe, run)
	}
	return SyncRunner[D]{}.Run(ctx, exe, run)
}
