package api

import (
	"net/http"

	"github.com/jmgilman/go/errors"
	"github.com/okian/cachegate/pkg/metrics"
)

// statusFor maps a failure code to the HTTP status the gateway replies with.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeSchemaFailed:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

func writeError(w http.ResponseWriter, component string, err error) {
	body := errors.ToJSON(err)
	metrics.RecordErrorByComponent(component, body.Code)
	writeJSON(w, statusFor(err), body)
}
