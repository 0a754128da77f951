package apperror

import (
	"errors"
	"testing"
)

func TestError_MessageIncludesWrappedError(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(CategoryTransient, "backend_failed", "queue write failed", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected Unwrap to expose the wrapped cause via errors.Is")
	}
	if got := err.Error(); got == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestNew_HasNoWrappedCause(t *testing.T) {
	err := New(CategoryValidation, "invalid_channel", "bad channel name")
	if err.Unwrap() != nil {
		t.Fatal("expected New to produce an error with no wrapped cause")
	}
}

func TestSentinelErrors_AreDistinguishableByIdentity(t *testing.T) {
	if errors.Is(ErrLimitExceeded, ErrQueueFull) {
		t.Fatal("expected distinct sentinels to not match each other")
	}
	if !errors.Is(ErrLimitExceeded, ErrLimitExceeded) {
		t.Fatal("expected a sentinel to match itself")
	}
}
