package types

import (
	"errors"
	"fmt"
)

// Kind classifies every error the core returns.
type Kind string

const (
	KindConfiguration        Kind = "configuration"
	KindLookup               Kind = "lookup"
	KindUnsupportedOperation Kind = "unsupported_operation"
	KindParameter            Kind = "parameter"
	KindStateStack           Kind = "state_stack"
	KindResponseValidation   Kind = "response_validation"
)

// Sentinels for errors.Is checks against a Kind.
var (
	ErrConfiguration        = &Error{Kind: KindConfiguration}
	ErrLookup               = &Error{Kind: KindLookup}
	ErrUnsupportedOperation = &Error{Kind: KindUnsupportedOperation}
	ErrParameter            = &Error{Kind: KindParameter}
	ErrStateStack           = &Error{Kind: KindStateStack}
	ErrResponseValidation   = &Error{Kind: KindResponseValidation}
)

// Error is a classified error. Op names what was being done, Err carries the cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if msg == "" {
		msg = string(e.Kind) + " error"
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so the sentinels above work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first classified error in the chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}
