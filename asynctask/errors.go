package asynctask

import (
	"errors"
	"fmt"
)

// Error taxonomy. Failure is the base kind for user-originated
// rejections; the sentinels below classify the runtime-originated ones
// so callers can errors.Is against a stable identity regardless of the
// wrapped message.
var (
	// ErrDestroyedPending is the error a TaskSource's Close reports
	// when the task was still pending — the Go substitute for an
	// implicit "destructed with no result" rejection.
	ErrDestroyedPending = errors.New("asynctask: source closed with no result")

	// ErrAlreadyResolved names the condition of a second resolve/reject
	// attempt on an already-terminal task source. Nothing in this
	// package returns or logs it: Resolve/Reject just return false and
	// the repeat is logged as a plain warning.
	ErrAlreadyResolved = errors.New("asynctask: task already resolved")
)

// Kind distinguishes why a Failure exists without requiring callers to
// string-match the message.
type Kind int

const (
	// KindFailure is a generic, user-originated rejection.
	KindFailure Kind = iota
	// KindCancelled marks a rejection caused by cooperative
	// cancellation rather than a genuine failure.
	KindCancelled
	// KindProgrammerError marks an assertion-style violation (double
	// resolve, double GetTask) surfaced as a logged diagnostic instead
	// of aborting the process.
	KindProgrammerError
)

// Failure is a polymorphic error object: a message plus an optional
// Kind, safe to hold by reference and compare with errors.Is/errors.As.
type Failure struct {
	Kind    Kind
	Message string
	Cause   error
}

// NewFailure builds a plain KindFailure error.
func NewFailure(message string) *Failure {
	return &Failure{Kind: KindFailure, Message: message}
}

// NewFailuref builds a plain KindFailure error with formatting.
func NewFailuref(format string, args ...any) *Failure {
	return &Failure{Kind: KindFailure, Message: fmt.Sprintf(format, args...)}
}

// WrapFailure builds a KindFailure error that wraps cause.
func WrapFailure(message string, cause error) *Failure {
	return &Failure{Kind: KindFailure, Message: message, Cause: cause}
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return f.Message + ": " + f.Cause.Error()
	}
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

func (f *Failure) Is(target error) bool {
	other, ok := target.(*Failure)
	if !ok {
		return false
	}
	return other.Kind == f.Kind
}
