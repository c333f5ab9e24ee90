package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/aavendano/taskchain/eventbus"
	"github.com/aavendano/taskchain/flow/internal"
)

var stateNames map[State]string
var namedStates map[string]State

func init() {
	stateNames = map[State]string{
		StateUnknown:    "unknown",
		StateWaiting:    "waiting",
		StateProcessing: "processing",
		StateSkipped:    "skipped",
		StateSuccess:    "completed",
		StateFailed:     "failed",
		StateCanceled:   "canceled",
	}

	namedStates = make(map[string]State, len(stateNames))
	for k, v := range stateNames {
		namedStates[v] = k
	}
}

// StateFromString creates a step state from a string
func StateFromString(name string) (State, error) {
	if v, ok := namedStates[name]; ok {
		return v, nil
	}
	return StateUnknown, fmt.Errorf("invalid step state %q", name)
}

// State represents the state of a step in a lifecycle event
type State uint8

const (
	// StateUnknown indicates the step is unknown
	StateUnknown State = iota
	// StateWaiting indicates the step is known but hasn't started yet
	StateWaiting
	// StateProcessing indicates the step is currently executing
	StateProcessing
	// StateSkipped indicates the step has been skipped
	StateSkipped
	// StateSuccess indicates the step was executed successfully
	StateSuccess
	// StateFailed indicates the step has failed
	StateFailed
	// StateCanceled indicates the step was canceled
	StateCanceled
)

func (s State) String() string {
	return stateNames[s]
}

// MarshalText renders this step state to text
func (s State) MarshalText() (text []byte, err error) {
	return []byte(stateNames[s]), nil
}

// UnmarshalText parses this step state from text
func (s *State) UnmarshalText(text []byte) error {
	st, err := StateFromString(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

var actionNames map[Action]string
var namedActions map[string]Action

func init() {
	actionNames = map[Action]string{
		ActionInit:       "init",
		ActionExecute:    "execute",
		ActionCompensate: "compensate",
	}

	namedActions = make(map[string]Action, len(actionNames))
	for k, v := range actionNames {
		namedActions[v] = k
	}
}

// ActionFromString creates a step action from a string
func ActionFromString(name string) (Action, error) {
	if v, ok := namedActions[name]; ok {
		return v, nil
	}
	return ActionInit, fmt.Errorf("invalid step action %q", name)
}

// Action indicates the phase of the lifecycle the event belongs to
type Action uint8

const (
	// ActionInit is emitted before the step has run
	ActionInit Action = iota
	// ActionExecute is emitted while the step is executing
	ActionExecute
	// ActionCompensate is emitted while the step is compensating
	ActionCompensate
)

func (a Action) String() string {
	return actionNames[a]
}

// MarshalText renders this action to text
func (a Action) MarshalText() (text []byte, err error) {
	return []byte(actionNames[a]), nil
}

// UnmarshalText parses this action from text
func (a *Action) UnmarshalText(text []byte) error {
	ac, err := ActionFromString(string(text))
	if err != nil {
		return err
	}
	*a = ac
	return nil
}

const (
	// TopicLifecycle is the event topic for lifecycle events
	TopicLifecycle = "lifecycle"
	// TopicRetry is the event topic for retries
	TopicRetry = "retry"
	// TopicApplication is the event topic for application specific events
	TopicApplication = "application"
)

// A LifecycleEvent is emitted for lifecycle operations on a step
type LifecycleEvent struct {
	Action Action
	State  State
	Name   string
	Parent string
	Reason error
}

// RetryEvent is emitted when a failed attempt is about to be retried
type RetryEvent struct {
	Name    string
	Parent  string
	Attempt int
	Reason  error
	Next    time.Duration
}

// WirePublisher attaches an event bus to the context so executables deeper
// in the tree publish their lifecycle events to it.
func WirePublisher(ctx context.Context, bus eventbus.EventBus) context.Context {
	return internal.SetPublisher(ctx, bus)
}

// PublishExecuteEvent reports a state transition during the execute phase
func PublishExecuteEvent(ctx context.Context, stepName string, state State, reason error) {
	internal.PublishEvent(ctx, TopicLifecycle, LifecycleEvent{
		Action: ActionExecute,
		State:  state,
		Name:   stepName,
		Parent: internal.GetParentName(ctx),
		Reason: reason,
	})
}

// PublishCompensateEvent reports a state transition during the compensate phase
func PublishCompensateEvent(ctx context.Context, stepName string, state State, reason error) {
	internal.PublishEvent(ctx, TopicLifecycle, LifecycleEvent{
		Action: ActionCompensate,
		State:  state,
		Name:   stepName,
		Parent: internal.GetParentName(ctx),
		Reason: reason,
	})
}

// PublishRetryEvent reports that a failed attempt will run again after the delay
func PublishRetryEvent(ctx context.Context, stepName string, attempt int, reason error, next time.Duration) {
	internal.PublishEvent(ctx, TopicRetry, RetryEvent{
		Name:    stepName,
		Parent:  internal.GetParentName(ctx),
		Attempt: attempt,
		Reason:  reason,
		Next:    next,
	})
}

// PublishEvent publishes application specific events
func PublishEvent(ctx context.Context, args interface{}) {
	internal.PublishEvent(ctx, TopicApplication, args)
}

// IsLifecycleEvent returns true if this is a lifecycle event for the given action and state
func IsLifecycleEvent(evt eventbus.Event, action Action, state State) bool {
	return LifecycleEventFilter(action, state)(evt)
}

// LifecycleEventFilter is an event filter that matches specific lifecycle events
func LifecycleEventFilter(action Action, state State) eventbus.EventPredicate {
	return func(evt eventbus.Event) bool {
		if evt.Name != TopicLifecycle {
			return false
		}
		lce, ok := evt.Args.(LifecycleEvent)
		return ok && lce.State == state && lce.Action == action
	}
}

// RetryEventFilter is an event filter that only selects retry events
func RetryEventFilter(evt eventbus.Event) bool {
	if evt.Name != TopicRetry {
		return false
	}
	_, ok := evt.Args.(RetryEvent)
	return ok
}

// IsApplicationEvent returns true when the event is an application event
func IsApplicationEvent(evt eventbus.Event) bool {
	return evt.Name == TopicApplication
}
