package flow

import (
	"sort"
	"time"

	"github.com/segmentio/ksuid"
)

// ContextOpt represents a configuration option for a run context
type ContextOpt[D any] func(*Context[D])

// WithMetadata seeds the metadata scratch space of the context
func WithMetadata[D any](md map[string]interface{}) ContextOpt[D] {
	return func(c *Context[D]) {
		for k, v := range md {
			c.metadata[k] = v
		}
	}
}

// WithErrorFormatter replaces the formatter used when failures are written
// to the trace. The default prints err.Error(), a custom formatter can
// redact sensitive details before they end up in a persisted trace.
func WithErrorFormatter[D any](fn func(error) string) ContextOpt[D] {
	return func(c *Context[D]) { c.formatError = fn }
}

// NewContext creates the mutable carrier for one run. It lives exactly as
// long as that run and is threaded through every executable in the tree.
func NewContext[D any](data D, opts ...ContextOpt[D]) *Context[D] {
	c := &Context[D]{
		Data:        data,
		runID:       ksuid.New(),
		metadata:    make(map[string]interface{}),
		completed:   make(map[string]struct{}),
		formatError: func(err error) string { return err.Error() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore rebuilds a context from previously captured state. It is the
// constructor used by the wire codec.
func Restore[D any](data D, trace []Event, metadata map[string]interface{}, completed []string) *Context[D] {
	c := NewContext[D](data)
	c.trace = append(c.trace, trace...)
	for k, v := range metadata {
		c.metadata[k] = v
	}
	for _, name := range completed {
		c.completed[name] = struct{}{}
	}
	return c
}

// Context carries the user payload plus the engine bookkeeping for a single
// run. It is mutated by exactly one logical thread of control per run, the
// engine never executes sibling steps concurrently, so no locking is needed.
type Context[D any] struct {
	// Data is the caller-owned payload, freely mutated by task functions.
	Data D

	runID       ksuid.KSUID
	trace       []Event
	metadata    map[string]interface{}
	completed   map[string]struct{}
	formatError func(error) string
}

// RunID identifies this run.
func (c *Context[D]) RunID() ksuid.KSUID { return c.runID }

// LogEvent appends an event to the trace.
func (c *Context[D]) LogEvent(level Level, source, message string) {
	c.trace = append(c.trace, Event{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Source:    source,
		Message:   message,
	})
}

// Trace returns a copy of the events recorded so far, oldest first.
func (c *Context[D]) Trace() []Event {
	result := make([]Event, len(c.trace))
	copy(result, c.trace)
	return result
}

// Metadata is the shared scratch space between the engine and user functions.
func (c *Context[D]) Metadata() map[string]interface{} {
	return c.metadata
}

// MarkCompleted records that the named step finished successfully. The set
// only ever grows during a run.
func (c *Context[D]) MarkCompleted(name string) {
	c.completed[name] = struct{}{}
}

// Completed reports whether the named step previously finished successfully.
// This set is the sole authority consulted during compensation.
func (c *Context[D]) Completed(name string) bool {
	_, ok := c.completed[name]
	return ok
}

// CompletedSteps returns the names of all successfully finished steps,
// sorted for determinism.
func (c *Context[D]) CompletedSteps() []string {
	result := make([]string, 0, len(c.completed))
	for name := range c.completed {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// FormatError renders a failure for the trace using the configured formatter.
func (c *Context[D]) FormatError(err error) string {
	return c.formatError(err)
}
