package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is the kind of a rejected aggregate operation. Handlers map codes
// to statuses; nothing above the aggregates inspects storage errors.
type ErrorCode string

// Storage and input failures.
const (
	CodeValidation         ErrorCode = "validation"
	CodeNotFound           ErrorCode = "not_found"
	CodeConflict           ErrorCode = "conflict"
	CodeInvariantViolation ErrorCode = "invariant_violation"
	CodePreconditionFailed ErrorCode = "precondition_failed"
	CodeRetryable          ErrorCode = "retryable"
	CodeInternal           ErrorCode = "internal"
)

// Lifecycle and emission kinds.
const (
	CodeInvalidTransition  ErrorCode = "invalid_transition"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeAlreadyRequested   ErrorCode = "already_requested"
	CodeAlreadyIssued      ErrorCode = "already_issued"
	CodeImmutableViolation ErrorCode = "immutable_violation"
)

// Collaborator failures surfaced by the resilience executor.
const (
	CodeTransient   ErrorCode = "transient"
	CodeCircuitOpen ErrorCode = "circuit_open"
	CodeTimeout     ErrorCode = "timeout"
)

// Retryable reports whether the same call may succeed if repeated.
// Invariant and emission-conflict kinds are final.
func (c ErrorCode) Retryable() bool {
	return c == CodeRetryable || c == CodeTransient
}

// Error carries a code, the operation that produced it and an optional cause.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Message != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}
	if b.Len() == 0 {
		return string(e.Code)
	}
	return fmt.Sprintf("%s (%s)", b.String(), e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap tags err with code, keeping its text as the message. Nil stays nil.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// CodeOf returns the outermost aggregate code in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}
