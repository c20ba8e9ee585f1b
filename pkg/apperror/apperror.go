// Package apperror defines the error taxonomy shared by the booking core and
// the HTTP layer. Every error that crosses a service boundary carries a Kind
// so handlers can map it to a status code without inspecting messages.
package apperror

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindOwnership
	KindPaymentMismatch
	KindProvider
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindOwnership:
		return "ownership"
	case KindPaymentMismatch:
		return "payment mismatch"
	case KindProvider:
		return "provider"
	case KindState:
		return "state"
	default:
		return "internal"
	}
}

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind, so errors.Is(err, ErrConflict) holds for any
// conflict regardless of its operation or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrOwnership       = &Error{Kind: KindOwnership}
	ErrPaymentMismatch = &Error{Kind: KindPaymentMismatch}
	ErrProvider        = &Error{Kind: KindProvider}
	ErrState           = &Error{Kind: KindState}
)

// KindOf reports the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Validation(op, format string, args ...any) *Error {
	return newf(KindValidation, op, format, args...)
}

func NotFound(op, format string, args ...any) *Error {
	return newf(KindNotFound, op, format, args...)
}

func Conflict(op, format string, args ...any) *Error {
	return newf(KindConflict, op, format, args...)
}

func Ownership(op, format string, args ...any) *Error {
	return newf(KindOwnership, op, format, args...)
}

func PaymentMismatch(op, format string, args ...any) *Error {
	return newf(KindPaymentMismatch, op, format, args...)
}

func State(op, format string, args ...any) *Error {
	return newf(KindState, op, format, args...)
}

// Provider wraps a payment provider failure that survived retries.
func Provider(op string, err error) *Error {
	return &Error{Kind: KindProvider, Op: op, Message: "payment provider failure", Err: err}
}
