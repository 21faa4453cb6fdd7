// Package errkind classifies errors along the axis that matters to the
// message bus and the service loops built on top of it: should this be
// retried, nacked-and-requeued, logged and dropped, or should it unwind the
// process. Call sites wrap an underlying error with the right constructor;
// callers test with errors.Is against the sentinel kinds below.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is one of a closed set of error classifications.
type Kind string

const (
	// Transient covers I/O failures expected to clear on retry: a dropped
	// bus connection, a Redis timeout, a REST 5xx.
	Transient Kind = "transient"
	// Validation covers malformed input that will never succeed on retry:
	// a signal missing a required field, a candle with a non-positive
	// price.
	Validation Kind = "validation"
	// Contract covers a repository or collaborator returning something
	// that violates its own interface contract (e.g. a status transition
	// repository.update_indicator_status was asked to make that isn't
	// monotonic).
	Contract Kind = "contract"
	// Domain covers a business-rule rejection that is not the caller's
	// fault: insufficient risk/reward, a kill-switch in effect.
	Domain Kind = "domain"
	// Cancellation covers context cancellation and deadline exceeded.
	Cancellation Kind = "cancellation"
)

// kindSentinels lets errors.Is match on kind without every call site
// constructing its own sentinel value.
var kindSentinels = map[Kind]error{
	Transient:    errors.New("transient error"),
	Validation:   errors.New("validation error"),
	Contract:     errors.New("contract error"),
	Domain:       errors.New("domain error"),
	Cancellation: errors.New("cancellation"),
}

type kindError struct {
	kind Kind
	msg  string
	err  error
}

func (e *kindError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.err)
	}
	return e.msg
}

func (e *kindError) Unwrap() error { return e.err }

// Is makes errors.Is(err, errkind.Transient) etc. work by comparing against
// the sentinel for this error's kind.
func (e *kindError) Is(target error) bool {
	return target == kindSentinels[e.kind]
}

func wrap(kind Kind, err error, format string, args ...interface{}) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// WrapTransient wraps err as a transient failure worth retrying.
func WrapTransient(err error, format string, args ...interface{}) error {
	return wrap(Transient, err, format, args...)
}

// IsTransient reports whether err (or something it wraps) is transient.
func IsTransient(err error) bool { return errors.Is(err, kindSentinels[Transient]) }

// NewValidation builds a validation error with no underlying cause.
func NewValidation(format string, args ...interface{}) error {
	return wrap(Validation, nil, format, args...)
}

// WrapValidation wraps err as a validation failure.
func WrapValidation(err error, format string, args ...interface{}) error {
	return wrap(Validation, err, format, args...)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, kindSentinels[Validation]) }

// WrapContract wraps err as a violated repository/collaborator contract.
func WrapContract(err error, format string, args ...interface{}) error {
	return wrap(Contract, err, format, args...)
}

// IsContract reports whether err is a contract violation.
func IsContract(err error) bool { return errors.Is(err, kindSentinels[Contract]) }

// NewDomain builds a domain-rule rejection with no underlying cause.
func NewDomain(format string, args ...interface{}) error {
	return wrap(Domain, nil, format, args...)
}

// IsDomain reports whether err is a domain-rule rejection.
func IsDomain(err error) bool { return errors.Is(err, kindSentinels[Domain]) }

// WrapCancellation wraps a context cancellation or deadline error.
func WrapCancellation(err error) error {
	return wrap(Cancellation, err, "cancelled")
}

// IsCancellation reports whether err is a cancellation.
func IsCancellation(err error) bool { return errors.Is(err, kindSentinels[Cancellation]) }
