package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/aavendano/taskchain"
	"github.com/aavendano/taskchain/future"
	"github.com/aavendano/taskchain/pool"
	"github.com/aavendano/taskchain/retry"
	"github.com/rcrowley/go-metrics"
)

// TaskOpt represents a configuration option for a task
type TaskOpt[D any] func(*Task[D])

// WithRetry sets the retry policy for the task. Without it the task runs a
// single attempt.
func WithRetry[D any](policy *retry.Policy) TaskOpt[D] {
	return func(t *Task[D]) { t.policy = policy }
}

// WithUndo supplies the action that reverts this task's effects during
// compensation.
func WithUndo[D any](undo UndoFunc[D]) TaskOpt[D] {
	return func(t *Task[D]) { t.undo = undo }
}

// WithTimeout puts a wall-clock budget on every attempt. A timed out attempt
// counts as a normal failure for retry purposes. The attempt's context is
// canceled when the budget runs out; a function that ignores its context
// keeps running in the background and is abandoned.
func WithTimeout[D any](timeout time.Duration) TaskOpt[D] {
	return func(t *Task[D]) { t.timeout = timeout }
}

// Async declares that this task executes in cooperative mode: Execute
// returns a pending result immediately and the attempts run on their own
// goroutine.
func Async[D any]() TaskOpt[D] {
	return func(t *Task[D]) { t.async = true }
}

// WithPool hosts timed attempts on the given bounded pool instead of
// unbounded goroutines. The pool is owned by the caller, sharing one across
// tasks keeps the number of in-flight timed attempts under control.
func WithPool[D any](workers *pool.Pool) TaskOpt[D] {
	return func(t *Task[D]) { t.workers = workers }
}

// NewTask wraps one user function into the leaf executable of a composite
// tree.
func NewTask[D any](name string, fn Func[D], opts ...TaskOpt[D]) *Task[D] {
	t := &Task[D]{
		name:   name,
		fn:     fn,
		policy: retry.Single(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Task is an atomic unit of work. It applies the retry policy, enforces the
// optional attempt timeout and knows how to undo itself.
type Task[D any] struct {
	name    string
	fn      Func[D]
	undo    UndoFunc[D]
	policy  *retry.Policy
	timeout time.Duration
	async   bool
	workers *pool.Pool
}

// Name of this task
func (t *Task[D]) Name() string { return t.name }

// IsAsync reports the concurrency mode declared at construction
func (t *Task[D]) IsAsync() bool { return t.async }

// Policy returns the retry policy of this task
func (t *Task[D]) Policy() *retry.Policy { return t.policy }

// Execute runs the task function under the retry policy. Business failures
// never escape as errors, they are reported through the outcome.
func (t *Task[D]) Execute(ctx context.Context, run *Context[D]) (Result[D], error) {
	if t.async {
		return Pending(future.DoWithContext(ctx, func(c context.Context) (*Outcome[D], error) {
			return t.attempts(c, run), nil
		})), nil
	}
	return Ready(t.attempts(ctx, run)), nil
}

func (t *Task[D]) attempts(ctx context.Context, run *Context[D]) *Outcome[D] {
	log := taskchain.ContextLogger(ctx)
	log.Debugf("running task %s", t.name)
	run.LogEvent(LevelInfo, t.name, "Task Started")
	PublishExecuteEvent(ctx, t.name, StateProcessing, nil)
	start := time.Now()

	attempt := 1
	for {
		err := t.invoke(ctx, run)
		if err == nil {
			run.MarkCompleted(t.name)
			run.LogEvent(LevelInfo, t.name, "Task Completed")
			PublishExecuteEvent(ctx, t.name, StateSuccess, nil)
			return success(run, start)
		}

		log.Errorf("task %s failed: %v", t.name, err)
		run.LogEvent(LevelError, t.name, "Task Failed: "+run.FormatError(err))

		if t.policy.ShouldRetry(attempt, err) {
			delay := t.policy.Delay(attempt)
			log.Infof("retrying task %s in %v (attempt %d/%d)", t.name, delay, attempt, t.policy.MaxAttempts())
			run.LogEvent(LevelInfo, t.name,
				fmt.Sprintf("Retrying in %v (Attempt %d/%d)", delay, attempt, t.policy.MaxAttempts()))
			PublishRetryEvent(ctx, t.name, attempt, err, delay)
			metrics.GetOrRegisterCounter("tasks.retries", metrics.DefaultRegistry).Inc(1)

			// the retry wait is the sole suspension point of a task
			if werr := sleep(ctx, delay); werr != nil {
				PublishExecuteEvent(ctx, t.name, StateCanceled, werr)
				return failure(run, start, &ExecutionError{Step: t.name, Attempts: attempt, Cause: werr})
			}
			attempt++
			continue
		}

		wrapped := &ExecutionError{Step: t.name, Attempts: attempt, Cause: err}
		if IsCanceled(err) {
			PublishExecuteEvent(ctx, t.name, StateCanceled, err)
		} else {
			PublishExecuteEvent(ctx, t.name, StateFailed, wrapped)
		}
		return failure(run, start, wrapped)
	}
}

// invoke runs a single attempt, under the wall-clock budget when one is set.
func (t *Task[D]) invoke(ctx context.Context, run *Context[D]) error {
	if t.timeout <= 0 {
		return t.fn(ctx, run)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan error, 1)
	attempt := func() { done <- t.fn(attemptCtx, run) }

	if t.workers != nil {
		// waiting for a slot consumes the attempt budget
		if err := t.workers.Go(attemptCtx, attempt); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TimeoutError{Step: t.name, Timeout: t.timeout}
		}
	} else {
		go attempt()
	}

	select {
	case err := <-done:
		return err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			// the run was canceled, not the attempt budget
			return ctx.Err()
		}
		return &TimeoutError{Step: t.name, Timeout: t.timeout}
	}
}

// Compensate invokes the undo action once. Failures are not folded into an
// outcome, they escalate to the caller as a fatal compensation error.
func (t *Task[D]) Compensate(ctx context.Context, run *Context[D]) Completion {
	if t.undo == nil {
		return Done(nil)
	}
	if t.async {
		return PendingCompletion(future.DoWithContext(ctx, func(c context.Context) (struct{}, error) {
			return struct{}{}, t.undoOnce(c, run)
		}))
	}
	return Done(t.undoOnce(ctx, run))
}

func (t *Task[D]) undoOnce(ctx context.Context, run *Context[D]) error {
	taskchain.ContextLogger(ctx).Debugf("compensating task %s", t.name)
	run.LogEvent(LevelInfo, t.name, "Compensating Task")
	PublishCompensateEvent(ctx, t.name, StateProcessing, nil)

	if err := t.undo(ctx, run); err != nil {
		run.LogEvent(LevelError, t.name, "Compensation Failed: "+run.FormatError(err))
		cerr := &CompensationError{Step: t.name, Cause: err}
		PublishCompensateEvent(ctx, t.name, StateFailed, cerr)
		return cerr
	}

	PublishCompensateEvent(ctx, t.name, StateSuccess, nil)
	return nil
}

// sleep blocks for the given duration or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
