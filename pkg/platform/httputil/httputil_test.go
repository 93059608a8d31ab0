package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	dErrors "propmaster/pkg/domain-errors"
	"propmaster/pkg/platform/sentinel"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		status      int
		code        string
		description string
	}{
		{"internal error hides detail", dErrors.New(dErrors.CodeInternal, "db failed"), http.StatusInternalServerError, "internal_error", ""},
		{"unclassified error hides detail", errors.New("pq: relation missing"), http.StatusInternalServerError, "internal_error", ""},
		{"stale token", dErrors.New(dErrors.CodeStaleToken, "refresh token already used"), http.StatusUnauthorized, "stale_token", "refresh token already used"},
		{"missing profile", dErrors.New(dErrors.CodeProfileMissing, "no profile for subject"), http.StatusNotFound, "profile_missing", "no profile for subject"},
		{"profile lookup", dErrors.New(dErrors.CodeProfileLookup, "lookup failed"), http.StatusBadGateway, "profile_lookup_error", "lookup failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected json content type, got %q", ct)
			}
			var body ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body.Error != tt.code {
				t.Fatalf("expected error code %s, got %q", tt.code, body.Error)
			}
			if body.ErrorDescription != tt.description {
				t.Fatalf("expected description %q, got %q", tt.description, body.ErrorDescription)
			}
		})
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		code   dErrors.Code
		status int
	}{
		{dErrors.New(dErrors.CodeValidation, "x"), dErrors.CodeValidation, http.StatusBadRequest},
		{dErrors.New(dErrors.CodeInvalidCredentials, "x"), dErrors.CodeInvalidCredentials, http.StatusUnauthorized},
		{dErrors.New(dErrors.CodeProviderUnavailable, "x"), dErrors.CodeProviderUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("closed: %w", sentinel.ErrInvalidState), dErrors.CodeProviderUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), dErrors.CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, status := StatusOf(tt.err)
		if code != tt.code || status != tt.status {
			t.Errorf("StatusOf(%v) = %s/%d, want %s/%d", tt.err, code, status, tt.code, tt.status)
		}
	}
}
