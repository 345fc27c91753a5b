package dispatch

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the closed set of classifications every handled failure maps to.
type Kind int

const (
	KindInternal Kind = iota
	KindUnknownCommand
	KindMissingArgument
	KindBadArgument
	KindPermissionDenied
	KindCooldown
	KindCheckFailed
)

func (k Kind) String() string {
	switch k {
	case KindUnknownCommand:
		return "unknown_command"
	case KindMissingArgument:
		return "missing_argument"
	case KindBadArgument:
		return "bad_argument"
	case KindPermissionDenied:
		return "permission_denied"
	case KindCooldown:
		return "cooldown_active"
	case KindCheckFailed:
		return "check_failed"
	default:
		return "generic_failure"
	}
}

// Failure is a classified command failure. Handlers and guards return
// these; anything else surfacing from a handler body is treated as
// KindInternal by Classify.
type Failure struct {
	Kind    Kind
	Message string
	Retry   time.Duration
	Cause   error
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

func Fail(kind Kind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

func Failf(kind Kind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Classify resolves an error to a Failure. Classified failures pass
// through untouched; everything else becomes KindInternal with the
// original error kept as cause for the log.
func Classify(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{
		Kind:    KindInternal,
		Message: "An unexpected error occurred. Please try again later.",
		Cause:   err,
	}
}
