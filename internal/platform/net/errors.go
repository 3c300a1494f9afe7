package net

import (
	"net/http"

	perr "modwatch/internal/platform/errors"
)

// HTTPStatus maps an error class to an http status
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch perr.Classify(err) {
	case perr.ErrorCodeInvalidArgument, perr.ErrorCodeParse:
		return http.StatusBadRequest
	case perr.ErrorCodeNotFound:
		return http.StatusNotFound
	case perr.ErrorCodeTransientService, perr.ErrorCodeTransientNetwork, perr.ErrorCodeCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
