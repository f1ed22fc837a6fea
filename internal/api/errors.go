package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes the dashboard relies on. Client mistakes are 4xx; a 500 with
// CodeMisconfigured always means our deployment, never the caller.
const (
	CodeInvalidRequest = "invalid_request"
	CodeUnauthorized   = "unauthorized"
	CodeNotFound       = "not_found"
	CodeRateLimited    = "rate_limited"
	CodeMisconfigured  = "server_misconfigured"
	CodeUpstream       = "upstream_error"
	CodeInternal       = "internal_error"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorEnvelope{
		Error: APIError{Code: code, Message: message},
	})
}

func WriteValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidRequest, message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// WriteRateLimited answers 429 with Retry-After rounded up to whole seconds.
func WriteRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	WriteError(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests")
}

// WriteConfigError reports missing or malformed server configuration
// discovered at request time.
func WriteConfigError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, CodeMisconfigured, "server configuration incomplete")
}

func WriteUpstreamError(w http.ResponseWriter) {
	WriteError(w, http.StatusBadGateway, CodeUpstream, "upstream service failed")
}

func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
