package retry

import (
	"errors"

	"github.com/cenkalti/backoff/v4"
)

// Transient marks an error as recoverable, a policy will retry it even when
// it matches none of the retry matchers.
func Transient(err error) *TransientError {
	switch e := err.(type) {
	case *TransientError:
		return e
	default:
		return &TransientError{Err: err}
	}
}

// TransientError signals that the failed attempt is worth repeating.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

// Unwrap supports errors.Is and errors.As
func (e *TransientError) Unwrap() error {
	return e.Err
}

// WrappedErrors implements errwrap.Wrapper from https://github.com/hashicorp/errwrap
func (e *TransientError) WrappedErrors() []error {
	return []error{e.Err}
}

// Permanent marks an error as not recoverable, acting as a circuit breaker
// for the policy. The wrapper from cenkalti/backoff is recognized as well.
func Permanent(err error) *PermanentError {
	switch e := err.(type) {
	case *backoff.PermanentError:
		return &PermanentError{Err: e.Err}
	case *PermanentError:
		return e
	default:
		return &PermanentError{Err: err}
	}
}

// PermanentError signals that the operation should not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

// Unwrap supports errors.Is and errors.As
func (e *PermanentError) Unwrap() error {
	return e.Err
}

// WrappedErrors implements errwrap.Wrapper from https://github.com/hashicorp/errwrap
func (e *PermanentError) WrappedErrors() []error {
	return []error{e.Err}
}

// IsTransient returns true when the error carries a transient marker.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent returns true when the error carries a permanent marker,
// either ours or the one from cenkalti/backoff.
func IsPermanent(err error) bool {
	var pe *PermanentError
	if errors.As(err, &pe) {
		return true
	}
	var be *backoff.PermanentError
	return errors.As(err, &be)
}
