package apperrors

import (
	"errors"
	"strings"
)

type Kind string

const (
	KindConfig     Kind = "config"
	KindTransport  Kind = "transport"
	KindAuth       Kind = "auth"
	KindMismatch   Kind = "mismatch"
	KindValidation Kind = "validation"
)

type Error struct {
	Kind Kind
	// SafeMessage is intended for user-facing output and logs.
	SafeMessage string
	// Cause keeps the original internal error for troubleshooting.
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.SafeMessage); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func defaultSafeMessage(kind Kind) string {
	switch kind {
	case KindConfig:
		return "Invalid configuration."
	case KindTransport:
		return "Backend request failed."
	case KindAuth:
		return "Authentication failed. Please verify your credentials."
	case KindMismatch:
		return "Backend does not match the expected resources or languages."
	case KindValidation:
		return "Backend response was invalid."
	default:
		return "Request failed."
	}
}

func New(kind Kind, safeMessage string, cause error) error {
	msg := strings.TrimSpace(safeMessage)
	if msg == "" {
		msg = defaultSafeMessage(kind)
	}
	return &Error{
		Kind:        kind,
		SafeMessage: msg,
		Cause:       cause,
	}
}

func Config(err error) error {
	return New(KindConfig, "", err)
}

func Transport(err error) error {
	return New(KindTransport, "", err)
}

func Auth(err error) error {
	return New(KindAuth, "", err)
}

func Validation(err error) error {
	return New(KindValidation, "", err)
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	got, ok := KindOf(err)
	return ok && got == kind
}

func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}
