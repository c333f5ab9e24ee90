package flow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aavendano/taskchain/eventbus"
	"github.com/aavendano/taskchain/flow"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventTrap collects matching bus events and signals each arrival
type eventTrap struct {
	mu     sync.Mutex
	events []eventbus.Event
	seen   chan struct{}
}

func newEventTrap() *eventTrap {
	return &eventTrap{seen: make(chan struct{}, 32)}
}

func (c *eventTrap) On(evt eventbus.Event) error {
	c.mu.Lock()
	c.events = append(c.events, evt)
	c.mu.Unlock()
	c.seen <- struct{}{}
	return nil
}

func (c *eventTrap) wait(t testing.TB, n int) []eventbus.Event {
	for i := 0; i < n; i++ {
		select {
		case <-c.seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]eventbus.Event, len(c.events))
	copy(result, c.events)
	return result
}

func TestLifecycleEventsCarryParentName(t *testing.T) {
	bus := eventbus.New(logrus.New().WithField("test", t.Name()))
	defer bus.Close()

	trap := newEventTrap()
	bus.Subscribe(eventbus.Filtered(
		flow.LifecycleEventFilter(flow.ActionExecute, flow.StateSuccess), trap))

	w := flow.NewWorkflow("provision",
		flow.Steps[*order](flow.NewTask("validate", succeeds(new(int32)))),
	)
	run := flow.NewContext(&order{})
	ctx := flow.WirePublisher(context.Background(), bus)

	_, err := flow.SyncRunner[*order]{}.Run(ctx, w, run)
	require.NoError(t, err)

	// one success for the task, one for the workflow
	events := trap.wait(t, 2)
	byName := make(map[string]flow.LifecycleEvent, len(events))
	for _, evt := range events {
		lce, ok := evt.Args.(flow.LifecycleEvent)
		require.True(t, ok)
		byName[lce.Name] = lce
	}

	require.Contains(t, byName, "validate")
	assert.Equal(t, "provision", byName["validate"].Parent)
	require.Contains(t, byName, "provision")
	assert.Empty(t, byName["provision"].Parent)
}

func TestRetryEventsReportAttemptAndDelay(t *testing.T) {
	bus := eventbus.New(logrus.New().WithField("test", t.Name()))
	defer bus.Close()

	trap := newEventTrap()
	bus.Subscribe(eventbus.Filtered(flow.RetryEventFilter, trap))

	var calls int32
	task := flow.NewTask("notify", failingN(1, &calls),
		flow.WithRetry[*order](noDelay(3)))
	run := flow.NewContext(&order{})
	ctx := flow.WirePublisher(context.Background(), bus)

	_, err := flow.SyncRunner[*order]{}.Run(ctx, task, run)
	require.NoError(t, err)

	events := trap.wait(t, 1)
	rev, ok := events[0].Args.(flow.RetryEvent)
	require.True(t, ok)
	assert.Equal(t, "notify", rev.Name)
	assert.Equal(t, 1, rev.Attempt)
	assert.Equal(t, time.Duration(0), rev.Next)
	assert.ErrorIs(t, rev.Reason, assert.AnError)
}

func TestCompensationEventsMarkSkippedSteps(t *testing.T) {
	bus := eventbus.New(logrus.New().WithField("test", t.Name()))
	defer bus.Close()

	trap := newEventTrap()
	bus.Subscribe(eventbus.Filtered(
		flow.LifecycleEventFilter(flow.ActionCompensate, flow.StateSkipped), trap))

	rec := &recorder{}
	w := flow.NewWorkflow("provision",
		flow.OnFailure[*order](flow.Compensate),
		flow.Steps[*order](
			flow.NewTask("validate", rec.step("validate")),
			flow.NewTask("create", rec.failing("create")),
		),
	)
	run := flow.NewContext(&order{})
	ctx := flow.WirePublisher(context.Background(), bus)

	out, err := flow.SyncRunner[*order]{}.Run(ctx, w, run)
	require.NoError(t, err)
	require.Equal(t, flow.Failed, out.Status)

	// create never completed, the reverse walk skips it
	events := trap.wait(t, 1)
	lce, ok := events[0].Args.(flow.LifecycleEvent)
	require.True(t, ok)
	assert.Equal(t, "create", lce.Name)
}

func TestApplicationEventsPassThrough(t *testing.T) {
	bus := eventbus.New(logrus.New().WithField("test", t.Name()))
	defer bus.Close()

	trap := newEventTrap()
	bus.Subscribe(eventbus.Filtered(flow.IsApplicationEvent, trap))

	task := flow.NewTask("charge", func(ctx context.Context, _ *flow.Context[*order]) error {
		flow.PublishEvent(ctx, "charged 42 cents")
		return nil
	})
	run := flow.NewContext(&order{})
	ctx := flow.WirePublisher(context.Background(), bus)

	_, err := flow.SyncRunner[*order]{}.Run(ctx, task, run)
	require.NoError(t, err)

	events := trap.wait(t, 1)
	assert.Equal(t, "charged 42 cents", events[0].Args)
}

func TestPublishingWithoutABusIsSafe(t *testing.T) {
	task := flow.NewTask("charge", func(ctx context.Context, _ *flow.Context[*order]) error {
		flow.PublishEvent(ctx, "nobody is listening")
		return nil
	})

	out, err := flow.SyncRunner[*order]{}.Run(context.Background(), task, flow.NewContext(&order{}))
	require.NoError(t, err)
	assert.True(t, out.Succeeded())
}

func TestStateTextRoundTrip(t *testing.T) {
	states := []flow.State{
		flow.StateWaiting, flow.StateProcessing, flow.StateSkipped,
		flow.StateSuccess, flow.StateFailed, flow.StateCanceled,
	}
	for _, st := range states {
		text, err := st.MarshalText()
		require.NoError(t, err)

		var parsed flow.State
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, st, parsed)
	}

	_, err := flow.StateFromString("definitely-not-a-state")
	assert.Error(t, err)
}

func TestActionTextRoundTrip(t *testing.T) {
	for _, ac := range []flow.Action{flow.ActionInit, flow.ActionExecute, flow.ActionCompensate} {
		text, err := ac.MarshalText()
		require.NoError(t, err)

		var parsed flow.Action
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, ac, parsed)
	}
}
