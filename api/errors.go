package api

import (
	"errors"
	"net/http"

	"github.com/warp/studio-engine/studio"
)

// =============================================================================
// ERROR MAPPING - studio error categories -> HTTP
// =============================================================================

const (
	codeValidation      = "validation_error"
	codeUnauthenticated = "unauthenticated"
	codeForbidden       = "forbidden"
	codeNotFound        = "not_found"
	codeConflict        = "conflict"
	codeDenied          = "denied"
	codeInvalidState    = "invalid_state"
	codeDownstream      = "downstream_failure"
	codeRollbackFailed  = "rollback_failed"
	codeInternal        = "internal_error"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Mode    string `json:"mode,omitempty"`
	Details string `json:"details,omitempty"`
}

// statusFor maps an engine error to a status code and error code.
// Downstream failures are checked first: their causes may wrap client
// categories that must not leak as 4xx.
func statusFor(err error) (int, string) {
	var compErr *studio.CompensationError
	switch {
	case errors.As(err, &compErr):
		return http.StatusInternalServerError, codeRollbackFailed
	case errors.Is(err, studio.ErrDownstream):
		return http.StatusInternalServerError, codeDownstream
	case errors.Is(err, studio.ErrValidation):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, studio.ErrUnauthenticated):
		return http.StatusUnauthorized, codeUnauthenticated
	case errors.Is(err, studio.ErrForbidden):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, studio.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, studio.ErrConflict):
		return http.StatusConflict, codeConflict
	case errors.Is(err, studio.ErrDenied):
		return http.StatusBadRequest, codeDenied
	case errors.Is(err, studio.ErrInvalidState):
		return http.StatusBadRequest, codeInvalidState
	}
	return http.StatusInternalServerError, codeInternal
}

// writeEngineError writes err using the category mapping.
func writeEngineError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	resp := ErrorResponse{Error: studio.Reason(err), Code: code}

	var entErr *studio.EntitlementError
	if errors.As(err, &entErr) {
		resp.Mode = string(entErr.Mode)
	}
	if code == codeRollbackFailed {
		resp.Error = "rollback incomplete"
	}
	if status >= http.StatusInternalServerError {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// codeForStatus is used for errors raised by the HTTP layer itself.
func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return codeValidation
	case http.StatusUnauthorized:
		return codeUnauthenticated
	case http.StatusForbidden:
		return codeForbidden
	case http.StatusNotFound:
		return codeNotFound
	case http.StatusConflict:
		return codeConflict
	}
	return codeInternal
}
