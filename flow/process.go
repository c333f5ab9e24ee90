package flow

import (
	"context"
	"time"

	"github.com/aavendano/taskchain"
	"github.com/aavendano/taskchain/flow/internal"
	"github.com/aavendano/taskchain/future"
)

// NewProcess creates a fail-fast sequential composite: the first child that
// does not succeed stops the process as a whole. There is no configurable
// policy and no partial success.
func NewProcess[D any](name string, steps ...Executable[D]) *Process[D] {
	async := false
	for _, step := range steps {
		async = async || step.IsAsync()
	}
	return &Process[D]{name: name, steps: steps, async: async}
}

// Process runs its children in order and fails on the first non-success.
type Process[D any] struct {
	name  string
	steps []Executable[D]
	async bool
}

// Name of this process
func (p *Process[D]) Name() string { return p.name }

// IsAsync is true when any child is asynchronous, computed once at
// construction and cached.
func (p *Process[D]) IsAsync() bool { return p.async }

// Execute runs the children in order, stopping at the first failure.
func (p *Process[D]) Execute(ctx context.Context, run *Context[D]) (Result[D], error) {
	if p.async {
		return Pending(future.DoWithContext(ctx, func(c context.Context) (*Outcome[D], error) {
			return p.run(c, run, true)
		})), nil
	}
	out, err := p.run(ctx, run, false)
	if err != nil {
		return Result[D]{}, err
	}
	return Ready(out), nil
}

func (p *Process[D]) run(ctx context.Context, run *Context[D], await bool) (*Outcome[D], error) {
	start := time.Now()
	taskchain.ContextLogger(ctx).Debugf("running process %s", p.name)
	run.LogEvent(LevelInfo, p.name, "Process Started")
	PublishExecuteEvent(ctx, p.name, StateProcessing, nil)
	cctx := internal.SetParentName(ctx, p.name)

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			PublishExecuteEvent(ctx, p.name, StateCanceled, err)
			return failure(run, start, &ExecutionError{Step: p.name, Attempts: 1, Cause: err}), nil
		}

		res, err := step.Execute(cctx, run)
		var out *Outcome[D]
		if err == nil {
			out, err = resolveChild(res, await, step.Name())
		}
		if err != nil {
			if escalates(err) {
				return nil, err
			}
			// a misbehaving child raised instead of returning an outcome
			run.LogEvent(LevelError, p.name, "Process Error: "+run.FormatError(err))
			PublishExecuteEvent(ctx, p.name, StateFailed, err)
			return failure(run, start, &CompositeError{Composite: p.name, Cause: err}), nil
		}
		if out.Succeeded() {
			continue
		}

		run.LogEvent(LevelError, p.name, "Process Failed at step '"+step.Name()+"'")
		PublishExecuteEvent(ctx, p.name, StateFailed, out.Err())
		return &Outcome[D]{
			Status:   Failed,
			Context:  run,
			Errors:   out.Errors,
			Duration: time.Since(start),
		}, nil
	}

	run.MarkCompleted(p.name)
	run.LogEvent(LevelInfo, p.name, "Process Completed")
	PublishExecuteEvent(ctx, p.name, StateSuccess, nil)
	return success(run, start), nil
}

// Compensate walks the children in reverse order, undoing each one that is
// recorded as completed. Compensation is never retried, the first failure
// escalates.
func (p *Process[D]) Compensate(ctx context.Context, run *Context[D]) Completion {
	if p.async {
		return PendingCompletion(future.DoWithContext(ctx, func(c context.Context) (struct{}, error) {
			return struct{}{}, p.rollback(c, run, true)
		}))
	}
	return Done(p.rollback(ctx, run, false))
}

func (p *Process[D]) rollback(ctx context.Context, run *Context[D], await bool) error {
	taskchain.ContextLogger(ctx).Debugf("compensating process %s", p.name)
	run.LogEvent(LevelInfo, p.name, "Compensating Process")
	PublishCompensateEvent(ctx, p.name, StateProcessing, nil)
	cctx := internal.SetParentName(ctx, p.name)

	for i := len(p.steps) - 1; i >= 0; i-- {
		step := p.steps[i]
		if !run.Completed(step.Name()) {
			// never undo effects that did not happen
			PublishCompensateEvent(cctx, step.Name(), StateSkipped, nil)
			continue
		}
		if err := resolveCompletion(step.Compensate(cctx, run), await, step.Name()); err != nil {
			PublishCompensateEvent(ctx, p.name, StateFailed, err)
			return err
		}
	}

	PublishCompensateEvent(ctx, p.name, StateSuccess, nil)
	return nil
}
