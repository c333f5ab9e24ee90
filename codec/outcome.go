package codec

import (
	"encoding/json"
	"errors"

	"github.com/aavendano/taskchain/flow"
	"github.com/go-openapi/strfmt"
)

// Error kind codes carried on the wire so consumers can branch without
// parsing messages.
const (
	CodeUnknown      int64 = 0
	CodeExecution    int64 = 1
	CodeTimeout      int64 = 2
	CodeComposite    int64 = 3
	CodeCompensation int64 = 4
	CodeContract     int64 = 5
)

// ErrorRecord is the wire form of one engine failure, with its cause chain
// flattened into nested records.
type ErrorRecord struct {

	// cause
	Cause *ErrorRecord `json:"cause,omitempty"`

	// The error kind code
	// Required: true
	Code int64 `json:"code"`

	// link to help page explaining the error in more detail
	HelpURL strfmt.URI `json:"helpUrl,omitempty"`

	// The error message
	// Required: true
	Message string `json:"message"`
}

func (m *ErrorRecord) Error() string {
	if m.Cause != nil {
		return m.Message + ": " + m.Cause.Error()
	}
	return m.Message
}

// Record flattens an error chain into its wire form.
func Record(err error) *ErrorRecord {
	if err == nil {
		return nil
	}
	rec := &ErrorRecord{Code: kindCode(err), Message: err.Error()}
	if cause := errors.Unwrap(err); cause != nil {
		rec.Cause = Record(cause)
	}
	return rec
}

func kindCode(err error) int64 {
	switch {
	case errors.Is(err, flow.ErrTimeout):
		return CodeTimeout
	case errors.Is(err, flow.ErrExecution):
		return CodeExecution
	case errors.Is(err, flow.ErrComposite):
		return CodeComposite
	case errors.Is(err, flow.ErrCompensation):
		return CodeCompensation
	case errors.Is(err, flow.ErrContract):
		return CodeContract
	default:
		return CodeUnknown
	}
}

type wireOutcome struct {
	Status     flow.Status    `json:"status"`
	Errors     []*ErrorRecord `json:"errors,omitempty"`
	DurationMS int64          `json:"durationMs"`
}

// EncodeOutcome renders the terminal record of a run for external consumers.
// The run context travels separately through EncodeContext.
func EncodeOutcome[D any](out *flow.Outcome[D]) ([]byte, error) {
	records := make([]*ErrorRecord, 0, len(out.Errors))
	for _, err := range out.Errors {
		records = append(records, Record(err))
	}
	return json.Marshal(wireOutcome{
		Status:     out.Status,
		Errors:     records,
		DurationMS: out.Duration.Milliseconds(),
	})
}
