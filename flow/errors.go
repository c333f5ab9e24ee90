package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/errwrap"
)

// Failure kind sentinels. Engine error types declare their kind through
// errors.Is, a timeout is also an execution failure so retry matchers for
// the broad kind match the subkind too.
var (
	// ErrExecution is the kind of a task that exhausted its retries
	ErrExecution = errors.New("execution failure")
	// ErrTimeout is the kind of an attempt that exceeded its wall-clock budget
	ErrTimeout = errors.New("timeout")
	// ErrComposite is the kind of a composite that failed because a child failed
	ErrComposite = errors.New("composite failure")
	// ErrCompensation is the kind of an undo action that itself failed
	ErrCompensation = errors.New("compensation failure")
	// ErrContract is the kind of a concurrency-mode contract violation
	ErrContract = errors.New("contract violation")
)

// ExecutionError is returned in an outcome when a task exhausted its retries.
// It carries the last underlying cause.
type ExecutionError struct {
	Step     string
	Attempts int
	Cause    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task %q failed after %d attempt(s): %v", e.Step, e.Attempts, e.Cause)
}

// Unwrap supports errors.Is and errors.As
func (e *ExecutionError) Unwrap() error { return e.Cause }

// Is marks this error as an execution failure
func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }

// WrappedErrors implements errwrap.Wrapper from https://github.com/hashicorp/errwrap
func (e *ExecutionError) WrappedErrors() []error { return []error{e.Cause} }

// TimeoutError is the failure of a single attempt that ran past its
// wall-clock budget. It is retried like any other failure.
type TimeoutError struct {
	Step    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %q timed out after %v", e.Step, e.Timeout)
}

// Is marks this error as a timeout, which is a subkind of execution failure
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout || target == ErrExecution
}

// CompositeError is produced when a process or workflow fails because a
// child misbehaved rather than returning a failed outcome.
type CompositeError struct {
	Composite string
	Cause     error
}

func (e *CompositeError) Error() string {
	return fmt.Sprintf("composite %q failed: %v", e.Composite, e.Cause)
}

// Unwrap supports errors.Is and errors.As
func (e *CompositeError) Unwrap() error { return e.Cause }

// Is marks this error as a composite failure
func (e *CompositeError) Is(target error) bool { return target == ErrComposite }

// WrappedErrors implements errwrap.Wrapper from https://github.com/hashicorp/errwrap
func (e *CompositeError) WrappedErrors() []error { return []error{e.Cause} }

// CompensationError escalates an undo action that failed. It is never folded
// into an outcome and never retried, rollback correctness cannot be
// second-guessed.
type CompensationError struct {
	Step  string
	Cause error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation of %q failed: %v", e.Step, e.Cause)
}

// Unwrap supports errors.Is and errors.As
func (e *CompensationError) Unwrap() error { return e.Cause }

// Is marks this error as a compensation failure
func (e *CompensationError) Is(target error) bool { return target == ErrCompensation }

// WrappedErrors implements errwrap.Wrapper from https://github.com/hashicorp/errwrap
func (e *CompensationError) WrappedErrors() []error { return []error{e.Cause} }

// ContractError escalates the use of the wrong concurrency mode: a pending
// result surfacing where a blocking one was declared, or the other way
// around. It signals a programming error, not a transient condition.
type ContractError struct {
	Step   string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("step %q: %s", e.Step, e.Reason)
}

// Is marks this error as a contract violation
func (e *ContractError) Is(target error) bool { return target == ErrContract }

// IsCompensationFailure returns true when the error escalated from a failed
// undo action.
func IsCompensationFailure(err error) bool {
	return errors.Is(err, ErrCompensation)
}

// IsContractViolation returns true when the error escalated from a
// concurrency-mode mismatch.
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrContract)
}

// IsCanceled returns true when this error contains or is an error that means
// execution was canceled
func IsCanceled(err error) bool {
	return errwrap.Contains(err, context.Canceled.Error()) ||
		errwrap.Contains(err, context.DeadlineExceeded.Error())
}

// escalates reports whether a child error must pass through a composite
// untouched instead of being interpreted by its failure policy.
func escalates(err error) bool {
	return IsCompensationFailure(err) || IsContractViolation(err)
}
