package flow

import (
	"fmt"
	"time"

	multierror "github.com/hashicorp/go-multierror"
)

var statusNames map[Status]string
var namedStatuses map[string]Status

func init() {
	statusNames = map[Status]string{
		Success: "SUCCESS",
		Failed:  "FAILED",
		Aborted: "ABORTED",
	}

	namedStatuses = make(map[string]Status, len(statusNames))
	for k, v := range statusNames {
		namedStatuses[v] = k
	}
}

// StatusFromString parses an outcome status from a string
func StatusFromString(name string) (Status, error) {
	if v, ok := namedStatuses[name]; ok {
		return v, nil
	}
	return Failed, fmt.Errorf("invalid outcome status %q", name)
}

// Status is the terminal state of one execute call
type Status uint8

const (
	// Success means every step of the executable finished
	Success Status = iota
	// Failed means the executable gave up, possibly after compensation
	Failed
	// Aborted means a workflow stopped at the first failure without compensating
	Aborted
)

func (s Status) String() string {
	return statusNames[s]
}

// MarshalText renders this status to text
func (s Status) MarshalText() (text []byte, err error) {
	return []byte(statusNames[s]), nil
}

// UnmarshalText parses this status from text
func (s *Status) UnmarshalText(text []byte) error {
	st, err := StatusFromString(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Outcome is the immutable result record of one execute call.
type Outcome[D any] struct {
	Status   Status
	Context  *Context[D]
	Errors   []error
	Duration time.Duration
}

// Err folds the collected errors into a single error, nil when there are none.
func (o *Outcome[D]) Err() error {
	var result *multierror.Error
	for _, err := range o.Errors {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Succeeded is true when the outcome carries a success status.
func (o *Outcome[D]) Succeeded() bool {
	return o.Status == Success
}

func success[D any](run *Context[D], start time.Time) *Outcome[D] {
	return &Outcome[D]{Status: Success, Context: run, Duration: time.Since(start)}
}

func failure[D any](run *Context[D], start time.Time, errs ...error) *Outcome[D] {
	return &Outcome[D]{Status: Failed, Context: run, Errors: errs, Duration: time.Since(start)}
}

func aborted[D any](run *Context[D], start time.Time, errs ...error) *Outcome[D] {
	return &Outcome[D]{Status: Aborted, Context: run, Errors: errs, Duration: time.Since(start)}
}
