package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain errors.
type ErrorKind int

const (
	KindConfiguration ErrorKind = iota + 1
	KindValidation
	KindUnsupported
	KindComputation
	KindNoTradingDay
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindUnsupported:
		return "unsupported operation"
	case KindComputation:
		return "computation failure"
	case KindNoTradingDay:
		return "no trading day"
	default:
		return "unknown"
	}
}

// Error is a domain error tagged with its kind.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrValidation)
// works for every validation error regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Errorf builds a tagged error.
func Errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first tagged error in the chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Kind sentinels, usable with errors.Is.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrValidation    = &Error{Kind: KindValidation}
	ErrUnsupported   = &Error{Kind: KindUnsupported}
	ErrComputation   = &Error{Kind: KindComputation}
	ErrNoTradingDay  = &Error{Kind: KindNoTradingDay}
)

// Sentinel errors for lookups and protocol violations.
var (
	ErrNoRate       = errors.New("no conversion rate")
	ErrTimeReversal = errors.New("time moved backwards")
)
