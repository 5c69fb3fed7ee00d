package httputil

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/matzehuels/retouch/pkg/errors"
)

// StatusFor maps an error to the HTTP status reported to clients.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeOversizedInput:
		return http.StatusRequestEntityTooLarge
	case errors.ErrCodeDecodeFailure:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidEffect, errors.ErrCodeInvalidCrop:
		return http.StatusBadRequest
	case errors.ErrCodeNoImage, errors.ErrCodeCropActive, errors.ErrCodeCropInactive:
		return http.StatusConflict
	case errors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case errors.ErrCodeEffectUnavailable:
		return http.StatusServiceUnavailable
	case errors.ErrCodeUnsupported:
		return http.StatusUnsupportedMediaType
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
