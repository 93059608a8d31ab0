// Package httputil holds the JSON response and request helpers shared by the
// HTTP handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "propmaster/pkg/domain-errors"
	"propmaster/pkg/platform/sentinel"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Validatable is implemented by request bodies that normalize and check
// themselves after decoding.
type Validatable interface {
	Validate() error
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status and a coded body. Internal errors never
// expose their message.
func WriteError(w http.ResponseWriter, err error) {
	code, status := StatusOf(err)
	resp := ErrorResponse{Error: string(code)}
	if status != http.StatusInternalServerError {
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message
		}
	}
	WriteJSON(w, status, resp)
}

// StatusOf returns the error code and HTTP status for err.
func StatusOf(err error) (dErrors.Code, int) {
	code := dErrors.CodeOf(err)
	switch code {
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return code, http.StatusBadRequest
	case dErrors.CodeInvalidCredentials, dErrors.CodeStaleToken:
		return code, http.StatusUnauthorized
	case dErrors.CodeProfileMissing:
		return code, http.StatusNotFound
	case dErrors.CodeProviderUnavailable:
		return code, http.StatusServiceUnavailable
	case dErrors.CodeProfileLookup:
		return code, http.StatusBadGateway
	}
	if errors.Is(err, sentinel.ErrUnavailable) || errors.Is(err, sentinel.ErrInvalidState) {
		return dErrors.CodeProviderUnavailable, http.StatusServiceUnavailable
	}
	return dErrors.CodeInternal, http.StatusInternalServerError
}

// DecodeAndPrepare decodes the JSON body into T and validates it. On failure
// it writes the error response and returns ok=false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	if err := PT(&req).Validate(); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
