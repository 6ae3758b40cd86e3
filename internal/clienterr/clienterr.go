package clienterr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline error. The HTTP edge maps kinds to status codes;
// everything else treats them as values.
type Kind string

const (
	KindSourceMissing        Kind = "source_missing"
	KindInvalidVideo         Kind = "invalid_video"
	KindVideoTooShort        Kind = "video_too_short"
	KindBadPolicy            Kind = "bad_policy"
	KindUploadSessionInvalid Kind = "upload_session_invalid"
	KindProcessorTransient   Kind = "processor_transient"
	KindLLMTransient         Kind = "llm_transient"
	KindJobNotFound          Kind = "job_not_found"
	KindInternal             Kind = "internal"
)

// Error is a tagged pipeline error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a tagged error with a message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or KindInternal for untagged errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsTransient reports whether err should be retried rather than failing the
// job permanently.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindProcessorTransient, KindLLMTransient:
		return true
	default:
		return false
	}
}

// HTTPStatus maps an error to the status code returned at the HTTP edge.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindSourceMissing, KindJobNotFound:
		return http.StatusNotFound
	case KindInvalidVideo, KindVideoTooShort, KindBadPolicy, KindUploadSessionInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
