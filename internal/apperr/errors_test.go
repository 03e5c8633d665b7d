package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(CodeCapacityExceeded, "session 7 is full", nil)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Error("want errors.Is to match by code")
	}
	if errors.Is(err, ErrDuplicateBooking) {
		t.Error("different code must not match")
	}

	wrapped := fmt.Errorf("book: %w", err)
	if !errors.Is(wrapped, ErrCapacityExceeded) {
		t.Error("want match through fmt wrapping")
	}
	if got := CodeOf(wrapped); got != CodeCapacityExceeded {
		t.Errorf("CodeOf: want %s, got %s", CodeCapacityExceeded, got)
	}
}

func TestCauseIsKept(t *testing.T) {
	cause := errors.New("database is locked")
	err := Wrap(CodeContention, "reserve seat", cause)
	if !errors.Is(err, cause) {
		t.Error("want cause reachable through Unwrap")
	}
	if err.Error() != "reserve seat: database is locked" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestCodeOfUnknown(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != CodeUnknown {
		t.Errorf("want UNKNOWN, got %s", got)
	}
	if got := CodeOf(nil); got != CodeUnknown {
		t.Errorf("nil: want UNKNOWN, got %s", got)
	}
}

func TestHTTPStatusAndRetryable(t *testing.T) {
	cases := []struct {
		code   Code
		status int
		retry  bool
	}{
		{CodeNotFound, http.StatusNotFound, false},
		{CodeRangeTooLarge, http.StatusBadRequest, false},
		{CodeCapacityExceeded, http.StatusConflict, false},
		{CodeNotCheckInable, http.StatusUnprocessableEntity, false},
		{CodeContention, http.StatusServiceUnavailable, true},
		{CodeInvariantViolation, http.StatusInternalServerError, false},
	}
	for _, c := range cases {
		if got := c.code.HTTPStatus(); got != c.status {
			t.Errorf("%s status: want %d, got %d", c.code, c.status, got)
		}
		if got := c.code.Retryable(); got != c.retry {
			t.Errorf("%s retryable: want %v, got %v", c.code, c.retry, got)
		}
	}
}
