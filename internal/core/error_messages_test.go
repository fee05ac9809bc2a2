package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gitlab.com/tozd/go/errors"

	"github.com/JonMunkholm/worldview/internal/directory"
	"github.com/JonMunkholm/worldview/internal/restcountries"
)

func upstreamError(t *testing.T, status int, body string) error {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	_, err := restcountries.NewClient(restcountries.WithBaseURL(srv.URL)).FetchAll(context.Background())
	if err == nil {
		t.Fatal("expected fetch error")
	}
	return err
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "upstream status",
			err:         upstreamError(t, http.StatusServiceUnavailable, ""),
			wantCode:    "SRC002",
			wantMessage: "The country service returned an error",
		},
		{
			name:        "upstream garbage",
			err:         upstreamError(t, http.StatusOK, "<html>"),
			wantCode:    "SRC003",
			wantMessage: "The country list could not be read",
		},
		{
			name:        "fetch limiter busy",
			err:         ErrTooManyFetches,
			wantCode:    "SRC004",
			wantMessage: "Too many directories are loading at once",
		},
		{
			name:        "wrapped session not found",
			err:         errors.Errorf("%w: abc", ErrSessionNotFound),
			wantCode:    "SES001",
			wantMessage: "Your directory session has expired",
		},
		{
			name:        "unknown region",
			err:         errors.Errorf("%w: %q", directory.ErrUnknownRegion, "Atlantis"),
			wantCode:    "REQ001",
			wantMessage: "Unknown region",
		},
		{
			name:        "invalid request",
			err:         errors.Errorf("%w: bad json", ErrInvalidRequest),
			wantCode:    "REQ002",
			wantMessage: "The request could not be read",
		},
		{
			name:        "plain context canceled",
			err:         context.Canceled,
			wantCode:    "REQ003",
			wantMessage: "Request was cancelled",
		},
		{
			name:        "rate limit by sentinel",
			err:         ErrRateLimited,
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "rate limit by message",
			err:         errors.New("RATE LIMIT hit"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError().Code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError().Message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestMapError_TransportBeforeGeneric(t *testing.T) {
	err := &restcountries.FetchError{Kind: restcountries.ErrTransport, Err: context.DeadlineExceeded}
	if got := MapError(err).Code; got != "SRC001" {
		t.Errorf("MapError().Code = %q, want SRC001", got)
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}

	got := FormatUserError(ErrTooManyFetches)
	if !strings.Contains(got, "(Code: SRC004)") || !strings.HasSuffix(got, "reload the page") {
		t.Errorf("FormatUserError() = %q", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true")
	}
	if IsUserFacing(errors.New("mystery")) {
		t.Error("IsUserFacing(unknown) = true")
	}
	if !IsUserFacing(ErrSessionNotFound) {
		t.Error("IsUserFacing(ErrSessionNotFound) = false")
	}
}
