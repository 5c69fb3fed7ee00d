package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/matzehuels/retouch/pkg/errors"
)

// ErrorBody is the JSON shape of an error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code and a user-facing message.
type ErrorDetail struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

// WriteJSON writes a JSON response with the provided status code.
func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return fmt.Errorf("response writer is required")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

// WriteError writes err as a JSON error body and returns the status used.
func WriteError(w http.ResponseWriter, err error) int {
	status := StatusFor(err)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	msg := errors.UserMessage(err)
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	_ = WriteJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: msg}})
	return status
}
