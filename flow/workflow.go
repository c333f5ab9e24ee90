package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/aavendano/taskchain"
	"github.com/aavendano/taskchain/flow/internal"
	"github.com/aavendano/taskchain/future"
)

var strategyNames map[FailureStrategy]string
var namedStrategies map[string]FailureStrategy

func init() {
	strategyNames = map[FailureStrategy]string{
		Abort:      "ABORT",
		Continue:   "CONTINUE",
		Compensate: "COMPENSATE",
	}

	namedStrategies = make(map[string]FailureStrategy, len(strategyNames))
	for k, v := range strategyNames {
		namedStrategies[v] = k
	}
}

// StrategyFromString parses a failure strategy from a string
func StrategyFromString(name string) (FailureStrategy, error) {
	if v, ok := namedStrategies[name]; ok {
		return v, nil
	}
	return Abort, fmt.Errorf("invalid failure strategy %q", name)
}

// FailureStrategy decides what a workflow does with the first non-success
// result of a child.
type FailureStrategy uint8

const (
	// Abort stops at the first failure without compensating
	Abort FailureStrategy = iota
	// Continue runs every step and aggregates the failures
	Continue
	// Compensate rolls back completed steps in reverse order and stops
	Compensate
)

func (f FailureStrategy) String() string {
	return strategyNames[f]
}

// MarshalText renders this strategy to text
func (f FailureStrategy) MarshalText() (text []byte, err error) {
	return []byte(strategyNames[f]), nil
}

// UnmarshalText parses this strategy from text
func (f *FailureStrategy) UnmarshalText(text []byte) error {
	st, err := StrategyFromString(string(text))
	if err != nil {
		return err
	}
	*f = st
	return nil
}

// WorkflowOpt represents a configuration option for a workflow
type WorkflowOpt[D any] func(*Workflow[D])

// Steps sets the ordered children of the workflow
func Steps[D any](steps ...Executable[D]) WorkflowOpt[D] {
	return func(w *Workflow[D]) { w.steps = steps }
}

// OnFailure selects the failure strategy, the default is Abort
func OnFailure[D any](strategy FailureStrategy) WorkflowOpt[D] {
	return func(w *Workflow[D]) { w.strategy = strategy }
}

// NewWorkflow creates the top-level sequential composite. The child list and
// the failure strategy are fixed once built, the tree is immutable structure
// during execution.
func NewWorkflow[D any](name string, opts ...WorkflowOpt[D]) *Workflow[D] {
	w := &Workflow[D]{name: name, strategy: Abort}
	for _, opt := range opts {
		opt(w)
	}
	for _, step := range w.steps {
		w.async = w.async || step.IsAsync()
	}
	return w
}

// Workflow orchestrates a sequence of executables under a failure strategy.
type Workflow[D any] struct {
	name     string
	steps    []Executable[D]
	strategy FailureStrategy
	async    bool
}

// Name of this workflow
func (w *Workflow[D]) Name() string { return w.name }

// Strategy returns the failure strategy fixed at construction
func (w *Workflow[D]) Strategy() FailureStrategy { return w.strategy }

// IsAsync is true when any child is asynchronous, computed once at
// construction and cached. A workflow with one asynchronous child runs its
// entire step loop in cooperative mode.
func (w *Workflow[D]) IsAsync() bool { return w.async }

// Execute runs the children in order, applying the failure strategy to the
// first non-success result.
func (w *Workflow[D]) Execute(ctx context.Context, run *Context[D]) (Result[D], error) {
	if w.async {
		return Pending(future.DoWithContext(ctx, func(c context.Context) (*Outcome[D], error) {
			return w.run(c, run, true)
		})), nil
	}
	out, err := w.run(ctx, run, false)
	if err != nil {
		return Result[D]{}, err
	}
	return Ready(out), nil
}

func (w *Workflow[D]) run(ctx context.Context, run *Context[D], await bool) (*Outcome[D], error) {
	start := time.Now()
	log := taskchain.ContextLogger(ctx)
	log.Debugf("running workflow %s with strategy %s", w.name, w.strategy)
	run.LogEvent(LevelInfo, w.name, "Workflow Started")
	PublishExecuteEvent(ctx, w.name, StateProcessing, nil)
	cctx := internal.SetParentName(ctx, w.name)

	var collected []error
	for _, step := range w.steps {
		if err := ctx.Err(); err != nil {
			PublishExecuteEvent(ctx, w.name, StateCanceled, err)
			return failure(run, start, &ExecutionError{Step: w.name, Attempts: 1, Cause: err}), nil
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
			out = failure(run, start, &CompositeError{Composite: w.name, Cause: err})
		}
		if out.Succeeded() {
			continue
		}

		switch w.strategy {
		case Abort:
			run.LogEvent(LevelError, w.name,
				"Workflow Aborted due to failure in step '"+step.Name()+"'")
			PublishExecuteEvent(ctx, w.name, StateFailed, out.Err())
			return aborted(run, start, out.Errors...), nil

		case Continue:
			run.LogEvent(LevelError, w.name,
				"Workflow Continuing after failure in step '"+step.Name()+"'")
			collected = append(collected, out.Errors...)

		case Compensate:
			run.LogEvent(LevelError, w.name,
				"Workflow Compensating due to failure in step '"+step.Name()+"'")
			// the failing step first, it knows its own partial state
			if cerr := resolveCompletion(step.Compensate(cctx, run), await, step.Name()); cerr != nil {
				return nil, cerr
			}
			// then every previously completed step, in reverse order
			if cerr := w.rollback(ctx, run, await); cerr != nil {
				return nil, cerr
			}
			PublishExecuteEvent(ctx, w.name, StateFailed, out.Err())
			return failure(run, start, out.Errors...), nil
		}
	}

	status := Success
	if len(collected) > 0 {
		status = Failed
	}
	run.LogEvent(LevelInfo, w.name, "Workflow Completed with status "+status.String())
	if status == Success {
		run.MarkCompleted(w.name)
		PublishExecuteEvent(ctx, w.name, StateSuccess, nil)
		return success(run, start), nil
	}
	PublishExecuteEvent(ctx, w.name, StateFailed, nil)
	return &Outcome[D]{Status: Failed, Context: run, Errors: collected, Duration: time.Since(start)}, nil
}

// Compensate walks the children in reverse order, undoing each one that is
// recorded as completed. The first compensation failure escalates.
func (w *Workflow[D]) Compensate(ctx context.Context, run *Context[D]) Completion {
	if w.async {
		return PendingCompletion(future.DoWithContext(ctx, func(c context.Context) (struct{}, error) {
			return struct{}{}, w.rollback(c, run, true)
		}))
	}
	return Done(w.rollback(ctx, run, false))
}

func (w *Workflow[D]) rollback(ctx context.Context, run *Context[D], await bool) error {
	taskchain.ContextLogger(ctx).Debugf("compensating workflow %s", w.name)
	run.LogEvent(LevelInfo, w.name, "Compensating Workflow")
	PublishCompensateEvent(ctx, w.name, StateProcessing, nil)
	cctx := internal.SetParentName(ctx, w.name)

	for i := len(w.steps) - 1; i >= 0; i-- {
		step := w.steps[i]
		if !run.Completed(step.Name()) {
			PublishCompensateEvent(cctx, step.Name(), StateSkipped, nil)
			continue
		}
		if err := resolveCompletion(step.Compensate(cctx, run), await, step.Name()); err != nil {
			PublishCompensateEvent(ctx, w.name, StateFailed, err)
			return err
		}
	}

	PublishCompensateEvent(ctx, w.name, StateSuccess, nil)
	return nil
}
