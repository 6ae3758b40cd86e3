package clienterr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindSourceMissing, http.StatusNotFound},
		{KindJobNotFound, http.StatusNotFound},
		{KindInvalidVideo, http.StatusBadRequest},
		{KindVideoTooShort, http.StatusBadRequest},
		{KindBadPolicy, http.StatusBadRequest},
		{KindUploadSessionInvalid, http.StatusBadRequest},
		{KindProcessorTransient, http.StatusInternalServerError},
		{KindLLMTransient, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := HTTPStatus(New(tt.kind, "x")); got != tt.want {
				t.Errorf("HTTPStatus(%s) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}

	if got := HTTPStatus(errors.New("untagged")); got != http.StatusInternalServerError {
		t.Errorf("HTTPStatus(untagged) = %d, want 500", got)
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(New(KindProcessorTransient, "ffmpeg exit 1")) {
		t.Error("processor failure should be transient")
	}
	if !IsTransient(New(KindLLMTransient, "model 503")) {
		t.Error("llm failure should be transient")
	}
	if IsTransient(New(KindVideoTooShort, "8s < 30s")) {
		t.Error("too-short video must not be retried")
	}
	if IsTransient(errors.New("plain")) {
		t.Error("untagged errors must not be retried")
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := New(KindSourceMissing, "blob gone")
	wrapped := fmt.Errorf("pipeline: %w", inner)

	if KindOf(wrapped) != KindSourceMissing {
		t.Errorf("KindOf(wrapped) = %s, want %s", KindOf(wrapped), KindSourceMissing)
	}
	if !Is(wrapped, KindSourceMissing) {
		t.Error("Is should see through fmt.Errorf wrapping")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindProcessorTransient, cause, "probe failed")

	if !errors.Is(err, cause) {
		t.Error("wrapped cause lost")
	}
	if got := err.Error(); got == "" || !errors.As(err, new(*Error)) {
		t.Errorf("unexpected error shape: %q", got)
	}
}
