// Package httputil writes JSON responses and maps domain error codes to HTTP
// status codes.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "landledger/pkg/domain-errors"
)

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:            http.StatusBadRequest,
	dErrors.CodeValidation:            http.StatusBadRequest,
	dErrors.CodeInvariantViolation:    http.StatusBadRequest,
	dErrors.CodeNotFound:              http.StatusNotFound,
	dErrors.CodeUnauthorized:          http.StatusUnauthorized,
	dErrors.CodeForbidden:             http.StatusForbidden,
	dErrors.CodeNotOwner:              http.StatusForbidden,
	dErrors.CodeNotVerified:           http.StatusForbidden,
	dErrors.CodeAlreadyOwned:          http.StatusConflict,
	dErrors.CodeInvalidTransition:     http.StatusConflict,
	dErrors.CodeInvalidState:          http.StatusConflict,
	dErrors.CodeTransactionInProgress: http.StatusConflict,
	dErrors.CodeDuplicateIdentifier:   http.StatusConflict,
	dErrors.CodeConflict:              http.StatusConflict,
	dErrors.CodeExpired:               http.StatusGone,
	dErrors.CodeTooManyAttempts:       http.StatusTooManyRequests,
	dErrors.CodeTimeout:               http.StatusGatewayTimeout,
	dErrors.CodeIntegrityViolation:    http.StatusInternalServerError,
	dErrors.CodeInternal:              http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	code, ok := dErrors.CodeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteError writes err as {"error": code, "error_description": message}.
// Descriptions of internal and integrity errors are never sent to clients.
func WriteError(w http.ResponseWriter, err error) {
	code, ok := dErrors.CodeOf(err)
	if !ok {
		code = dErrors.CodeInternal
	}
	body := errorBody{Error: string(code)}
	status := StatusFor(err)
	if status < http.StatusInternalServerError {
		body.ErrorDescription = dErrors.MessageOf(err)
	}
	WriteJSON(w, status, body)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON decodes the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
