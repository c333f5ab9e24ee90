// Package codec owns the wire form of run state. The engine itself never
// persists anything, callers encode a context at the end of a run and decode
// it again to inspect or resume bookkeeping out of process.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aavendano/taskchain/flow"
	"github.com/go-openapi/strfmt"
)

// Decoding rejects structurally wrong documents with distinct failures so
// callers can tell what exactly is malformed.
var (
	// ErrNotObject means the top-level value is not a JSON object
	ErrNotObject = errors.New("context document is not an object")
	// ErrTraceNotArray means the trace field is present but not an array
	ErrTraceNotArray = errors.New("context field 'trace' is not an array")
	// ErrMetadataNotObject means the metadata field is present but not an object
	ErrMetadataNotObject = errors.New("context field 'metadata' is not an object")
	// ErrCompletedStepsNotArray means the completedSteps field is present but not an array
	ErrCompletedStepsNotArray = errors.New("context field 'completedSteps' is not an array")
)

type wireEvent struct {
	Timestamp strfmt.DateTime `json:"timestamp"`
	Level     flow.Level      `json:"level"`
	Source    string          `json:"source"`
	Message   string          `json:"message"`
}

type wireContext[D any] struct {
	Data           D                      `json:"data"`
	Trace          []wireEvent            `json:"trace"`
	Metadata       map[string]interface{} `json:"metadata"`
	CompletedSteps []string               `json:"completedSteps"`
}

// EncodeContext renders the run context in its wire form.
func EncodeContext[D any](run *flow.Context[D]) ([]byte, error) {
	trace := run.Trace()
	events := make([]wireEvent, 0, len(trace))
	for _, evt := range trace {
		events = append(events, wireEvent{
			Timestamp: strfmt.DateTime(evt.Timestamp),
			Level:     evt.Level,
			Source:    evt.Source,
			Message:   evt.Message,
		})
	}

	return json.Marshal(wireContext[D]{
		Data:           run.Data,
		Trace:          events,
		Metadata:       run.Metadata(),
		CompletedSteps: run.CompletedSteps(),
	})
}

// DecodeContext parses the wire form back into a run context. Structurally
// wrong documents are rejected with one of the named validation failures.
func DecodeContext[D any](raw []byte) (*flow.Context[D], error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrNotObject
		}
		return nil, fmt.Errorf("decode context: %w", err)
	}
	// a top-level null unmarshals into a nil map without error
	if fields == nil {
		return nil, ErrNotObject
	}

	if msg, ok := fields["trace"]; ok && !startsWith(msg, '[') {
		return nil, ErrTraceNotArray
	}
	if msg, ok := fields["metadata"]; ok && !startsWith(msg, '{') {
		return nil, ErrMetadataNotObject
	}
	if msg, ok := fields["completedSteps"]; ok && !startsWith(msg, '[') {
		return nil, ErrCompletedStepsNotArray
	}

	var wire wireContext[D]
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}

	trace := make([]flow.Event, 0, len(wire.Trace))
	for _, evt := range wire.Trace {
		trace = append(trace, flow.Event{
			Timestamp: time.Time(evt.Timestamp),
			Level:     evt.Level,
			Source:    evt.Source,
			Message:   evt.Message,
		})
	}

	return flow.Restore(wire.Data, trace, wire.Metadata, wire.CompletedSteps), nil
}

// startsWith reports whether the first significant byte of the raw message
// is the given one. A JSON null passes, it decodes to the zero value.
func startsWith(msg json.RawMessage, b byte) bool {
	trimmed := bytes.TrimLeft(msg, " \t\r\n")
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	return trimmed[0] == b
}
