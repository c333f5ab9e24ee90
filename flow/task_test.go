package flow_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aavendano/taskchain/flow"
	"github.com/aavendano/taskchain/pool"
	"github.com/aavendano/taskchain/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct {
	ID    string
	Total int
}

// failingN fails the first n invocations and succeeds afterwards
func failingN(n int32, calls *int32) flow.Func[*order] {
	return func(_ context.Context, _ *flow.Context[*order]) error {
		if atomic.AddInt32(calls, 1) <= n {
			return assert.AnError
		}
		return nil
	}
}

func alwaysFails(calls *int32) flow.Func[*order] {
	return func(_ context.Context, _ *flow.Context[*order]) error {
		atomic.AddInt32(calls, 1)
		return assert.AnError
	}
}

func succeeds(calls *int32) flow.Func[*order] {
	return func(_ context.Context, _ *flow.Context[*order]) error {
		atomic.AddInt32(calls, 1)
		return nil
	}
}

func noDelay(attempts int) *retry.Policy {
	return retry.NewPolicy(retry.Attempts(attempts), retry.Delay(0))
}

func runTask(t testing.TB, task *flow.Task[*order], run *flow.Context[*order]) *flow.Outcome[*order] {
	res, err := task.Execute(context.Background(), run)
	require.NoError(t, err)
	out, err := res.Await()
	require.NoError(t, err)
	return out
}

func TestTaskSucceedsOnFirstAttempt(t *testing.T) {
	var calls int32
	task := flow.NewTask("charge", succeeds(&calls))
	run := flow.NewContext(&order{ID: "ord-1"})

	out := runTask(t, task, run)

	assert.True(t, out.Succeeded())
	assert.EqualValues(t, 1, calls)
	assert.True(t, run.Completed("charge"))
	assert.NoError(t, out.Err())
}

func TestTaskRetriesUntilSuccess(t *testing.T) {
	var calls int32
	task := flow.NewTask("charge", failingN(2, &calls),
		flow.WithRetry[*order](noDelay(5)))
	run := flow.NewContext(&order{})

	out := runTask(t, task, run)

	assert.True(t, out.Succeeded())
	assert.EqualValues(t, 3, calls)
	assert.True(t, run.Completed("charge"))
}

func TestTaskRetriesExactlyMaxAttempts(t *testing.T) {
	var calls int32
	task := flow.NewTask("notify", alwaysFails(&calls),
		flow.WithRetry[*order](noDelay(3)))
	run := flow.NewContext(&order{})

	out := runTask(t, task, run)

	assert.Equal(t, flow.Failed, out.Status)
	assert.EqualValues(t, 3, calls)
	assert.False(t, run.Completed("notify"))

	require.Len(t, out.Errors, 1)
	var exec *flow.ExecutionError
	require.ErrorAs(t, out.Errors[0], &exec)
	assert.Equal(t, "notify", exec.Step)
	assert.Equal(t, 3, exec.Attempts)
	assert.ErrorIs(t, out.Errors[0], flow.ErrExecution)
	assert.ErrorIs(t, out.Errors[0], assert.AnError)
}

func TestTaskDefaultsToSingleAttempt(t *testing.T) {
	var calls int32
	task := flow.NewTask("charge", alwaysFails(&calls))
	run := flow.NewContext(&order{})

	out := runTask(t, task, run)

	assert.Equal(t, flow.Failed, out.Status)
	assert.EqualValues(t, 1, calls)
}

func TestTaskPermanentFailureStopsRetrying(t *testing.T) {
	var calls int32
	task := flow.NewTask("charge", func(_ context.Context, _ *flow.Context[*order]) error {
		atomic.AddInt32(&calls, 1)
		return retry.Permanent(assert.AnError)
	}, flow.WithRetry[*order](noDelay(5)))
	run := flow.NewContext(&order{})

	out := runTask(t, task, run)

	assert.Equal(t, flow.Failed, out.Status)
	assert.EqualValues(t, 1, calls)
}

func TestTaskTimeoutFailsTheAttempt(t *testing.T) {
	var calls int32
	task := flow.NewTask("slow", func(ctx context.Context, _ *flow.Context[*order]) error {
		atomic.AddInt32(&calls, 1)
		select {
		case <-time.After(5 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, flow.WithTimeout[*order](20*time.Millisecond))
	run := flow.NewContext(&order{})

	out := runTask(t, task, run)

	assert.Equal(t, flow.Failed, out.Status)
	assert.EqualValues(t, 1, calls)
	require.Len(t, out.Errors, 1)
	assert.ErrorIs(t, out.Errors[0], flow.ErrTimeout)
	// a timeout is also an execution failure
	assert.ErrorIs(t, out.Errors[0], flow.ErrExecution)
}

func TestTaskTimeoutIsRetried(t *testing.T) {
	var calls int32
	task := flow.NewTask("flaky", func(ctx context.Context, _ *flow.Context[*order]) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	},
		flow.WithTimeout[*order](20*time.Millisecond),
		flow.WithRetry[*order](noDelay(3)))
	run := flow.NewContext(&order{})

	out := runTask(t, task, run)

	assert.True(t, out.Succeeded())
	assert.EqualValues(t, 2, calls)
}

func TestTaskTimedAttemptsRunOnPool(t *testing.T) {
	workers := pool.New(1)
	var calls int32
	task := flow.NewTask("pooled", succeeds(&calls),
		flow.WithTimeout[*order](time.Second),
		flow.WithPool[*order](workers))
	run := flow.NewContext(&order{})

	out := runTask(t, task, run)

	assert.True(t, out.Succeeded())
	assert.EqualValues(t, 1, calls)
	workers.Wait()
}

func TestTaskCanceledDuringRetryWait(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var calls int32
	task := flow.NewTask("charge", alwaysFails(&calls),
		flow.WithRetry[*order](retry.NewPolicy(
			retry.Attempts(3),
			retry.Delay(10*time.Second),
		)))
	run := flow.NewContext(&order{})

	res, err := task.Execute(ctx, run)
	require.NoError(t, err)
	out, err := res.Await()
	require.NoError(t, err)

	assert.Equal(t, flow.Failed, out.Status)
	assert.EqualValues(t, 1, calls)
	require.Len(t, out.Errors, 1)
	assert.True(t, flow.IsCanceled(out.Errors[0]))
}

func TestTaskCompensateWithoutUndoIsANoOp(t *testing.T) {
	task := flow.NewTask("validate", succeeds(new(int32)))
	run := flow.NewContext(&order{})

	comp := task.Compensate(context.Background(), run)

	assert.False(t, comp.IsPending())
	assert.NoError(t, comp.Err())
}

func TestTaskCompensateInvokesUndoOnce(t *testing.T) {
	var undos int32
	task := flow.NewTask("create", succeeds(new(int32)),
		flow.WithUndo[*order](func(_ context.Context, _ *flow.Context[*order]) error {
			atomic.AddInt32(&undos, 1)
			return nil
		}))
	run := flow.NewContext(&order{})

	require.NoError(t, task.Compensate(context.Background(), run).Await())
	assert.EqualValues(t, 1, undos)
}

func TestTaskCompensationFailureEscalates(t *testing.T) {
	task := flow.NewTask("create", succeeds(new(int32)),
		flow.WithUndo[*order](func(_ context.Context, _ *flow.Context[*order]) error {
			return assert.AnError
		}))
	run := flow.NewContext(&order{})

	err := task.Compensate(context.Background(), run).Await()

	require.Error(t, err)
	assert.True(t, flow.IsCompensationFailure(err))
	var cerr *flow.CompensationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "create", cerr.Step)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestTaskAsyncProducesPendingResult(t *testing.T) {
	var calls int32
	task := flow.NewTask("fetch", succeeds(&calls), flow.Async[*order]())
	run := flow.NewContext(&order{})

	require.True(t, task.IsAsync())
	res, err := task.Execute(context.Background(), run)
	require.NoError(t, err)
	require.True(t, res.IsPending())

	out, err := res.Await()
	require.NoError(t, err)
	assert.True(t, out.Succeeded())
	assert.EqualValues(t, 1, calls)
}

func TestTaskFailureRecordedInTrace(t *testing.T) {
	task := flow.NewTask("charge", alwaysFails(new(int32)))
	run := flow.NewContext(&order{})

	_ = runTask(t, task, run)

	var sawFailure bool
	for _, evt := range run.Trace() {
		if evt.Source == "charge" && evt.Level == flow.LevelError {
			sawFailure = true
			assert.Contains(t, evt.Message, assert.AnError.Error())
		}
	}
	assert.True(t, sawFailure)
}

func TestTaskErrorFormatterRedactsTrace(t *testing.T) {
	task := flow.NewTask("charge", func(_ context.Context, _ *flow.Context[*order]) error {
		return errors.New("card 4111-1111 declined")
	})
	run := flow.NewContext(&order{},
		flow.WithErrorFormatter[*order](func(error) string { return "payment declined" }))

	_ = runTask(t, task, run)

	for _, evt := range run.Trace() {
		assert.NotContains(t, evt.Message, "4111")
	}
}
