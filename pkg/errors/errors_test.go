package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestCodeToHTTPStatus(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{CodeInvalidParam, http.StatusBadRequest},
		{CodeSessionNotFound, http.StatusNotFound},
		{CodeSectionBusy, http.StatusConflict},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeValidationFailed, http.StatusUnprocessableEntity},
		{CodeMalformedResponse, http.StatusBadGateway},
		{CodeGenerationCancelled, http.StatusOK},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := New(tc.code, "x").HTTPStatus; got != tc.want {
			t.Fatalf("code %s: status=%d want %d", tc.code, got, tc.want)
		}
	}
}

func TestWithDetailDoesNotMutatePredefined(t *testing.T) {
	e := ErrSessionNotFound.WithDetail("sid=abc")
	if ErrSessionNotFound.Detail != "" {
		t.Fatalf("predefined error mutated: %q", ErrSessionNotFound.Detail)
	}
	if e.Detail != "sid=abc" {
		t.Fatalf("detail=%q", e.Detail)
	}
}

func TestAsAppErrorUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", ErrJobNotFound)
	if !IsAppError(wrapped) {
		t.Fatalf("expected wrapped AppError to be detected")
	}
	if got := AsAppError(wrapped); got.Code != CodeJobNotFound {
		t.Fatalf("code=%s", got.Code)
	}
	if got := AsAppError(fmt.Errorf("plain")); got.Code != CodeUnknown {
		t.Fatalf("code=%s", got.Code)
	}
}
