// Package httpapi serves the inventory dashboard: HTML pages, the JSON API
// and operational endpoints.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/fairyhunter13/inventory-dashboard/internal/apperr"
	"github.com/fairyhunter13/inventory-dashboard/internal/obs"
)

// jsonError represents a JSON error payload.
type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, jsonError{Error: message, Details: details})
}

// writeJSON encodes v before writing the header. An unencodable v is
// answered with a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		obs.Logger.Error("json_encode_failed", "error", err)
		b, status = []byte(`{"error":"internal_error","details":"response could not be encoded"}`), http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}

// statusFor maps an error kind to the JSON API status code.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case "":
		if err == nil {
			return http.StatusOK
		}
		return http.StatusInternalServerError
	case apperr.KindAuthRequired, apperr.KindInvalidCredentials:
		return http.StatusUnauthorized
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindStoreFailure:
		return http.StatusBadGateway
	}
	return http.StatusOK
}
