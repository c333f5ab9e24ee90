package retry

import (
	"errors"

	"github.com/hashicorp/errwrap"
)

// Matcher decides whether a failure belongs to a kind of errors.
// Matching follows the wrapping chain, so a matcher for a broad kind also
// matches its subkinds.
type Matcher func(error) bool

// Any matches every failure.
var Any Matcher = func(err error) bool { return err != nil }

// Is matches failures that are, or wrap, the target error.
func Is(target error) Matcher {
	return func(err error) bool { return errors.Is(err, target) }
}

// As matches failures that are, or wrap, an error of type T.
func As[T error]() Matcher {
	return func(err error) bool {
		var t T
		return errors.As(err, &t)
	}
}

// Contains matches failures whose wrap chain contains the given message.
func Contains(msg string) Matcher {
	return func(err error) bool { return errwrap.Contains(err, msg) }
}

// Not inverts a matcher.
func Not(m Matcher) Matcher {
	return func(err error) bool { return !m(err) }
}
