package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCaptureErrorIsMatchesKind(t *testing.T) {
	err := NewCaptureError(KindPermissionDenied, "camera permission denied", errors.New("NotAllowedError"))
	wrapped := fmt.Errorf("begin scan: %w", err)

	if !errors.Is(wrapped, ErrPermissionDenied) {
		t.Error("expected wrapped error to match ErrPermissionDenied")
	}
	if errors.Is(wrapped, ErrDeviceNotFound) {
		t.Error("did not expect match with ErrDeviceNotFound")
	}
}

func TestAsCapture(t *testing.T) {
	if AsCapture(nil) != nil {
		t.Error("expected nil for nil error")
	}

	plain := errors.New("boom")
	ce := AsCapture(plain)
	if ce.Kind != KindUnknown {
		t.Errorf("expected unknown kind, got %s", ce.Kind)
	}
	if !errors.Is(ce, plain) {
		t.Error("expected cause to be preserved")
	}

	orig := NewCaptureError(KindAborted, "", nil)
	if got := AsCapture(fmt.Errorf("x: %w", orig)); got != orig {
		t.Error("expected existing capture error to be returned as is")
	}
	if !orig.Silent() {
		t.Error("aborted error must be silent")
	}
}

func TestCaptureErrorMessage(t *testing.T) {
	err := &CaptureError{Kind: KindUnknown, Err: errors.New("driver gone")}
	if err.Error() != "unknown: driver gone" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if (&CaptureError{Kind: KindDeviceNotFound}).Error() != "device-not-found" {
		t.Error("expected kind as message")
	}
}

func TestHTTPStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrDeviceNotFound, http.StatusNotFound},
		{ErrUnsupportedPlatform, http.StatusNotImplemented},
		{ErrUnknownAcquisition, http.StatusInternalServerError},
		{ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", ErrInvalidToken), http.StatusUnauthorized},
		{ErrInvalidMeeting, http.StatusBadRequest},
		{ErrSessionBusy, http.StatusConflict},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatusFromError(tc.err); got != tc.want {
			t.Errorf("HTTPStatusFromError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
