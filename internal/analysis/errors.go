package analysis

import "fmt"

// Kind classifies an analysis failure for retry and signaling decisions.
type Kind string

const (
	KindQuotaExceeded Kind = "quota_exceeded"
	KindServerError   Kind = "server_error"
	KindMalformed     Kind = "malformed"
	KindUnknown       Kind = "unknown"
)

// Error wraps a classified analysis failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure class is worth another attempt.
// Malformed responses are excluded: retrying a parse failure wastes quota.
func (e *Error) Retryable() bool {
	return e.Kind == KindQuotaExceeded || e.Kind == KindServerError
}

// Classify returns the Kind of err, or KindUnknown for unclassified failures.
func Classify(err error) Kind {
	if aerr, ok := err.(*Error); ok {
		return aerr.Kind
	}
	return KindUnknown
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}
