package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vibe-control/vcc/internal/command"
	"github.com/vibe-control/vcc/internal/dispatch"
	"github.com/vibe-control/vcc/internal/pattern"
	"github.com/vibe-control/vcc/internal/radio"
)

// ToAPIError converts a domain error to an HTTP status code and a JSON
// envelope body.
func ToAPIError(err error) (int, []byte) {
	if err == nil {
		return http.StatusOK, nil
	}

	var malformed *command.MalformedCommandError
	if errors.As(err, &malformed) {
		return http.StatusBadRequest, marshalErrorResponse("BAD_REQUEST", malformed.Error(), nil)
	}

	var driverErr *radio.DriverError
	if errors.As(err, &driverErr) {
		code, statusCode := mapRadioError(driverErr.Code)
		return statusCode, marshalErrorResponse(code, getErrorMessage(driverErr.Code), driverErr.Details)
	}

	switch {
	case errors.Is(err, dispatch.ErrInvalidParameter):
		return http.StatusBadRequest, marshalErrorResponse("BAD_REQUEST", "Malformed or missing required parameter", nil)
	case errors.Is(err, dispatch.ErrAlreadyPlaying):
		return http.StatusConflict, marshalErrorResponse("CONFLICT", "A pattern is already playing, stop it first", nil)
	case errors.Is(err, pattern.ErrNotFound):
		return http.StatusNotFound, marshalErrorResponse("NOT_FOUND", "Pattern not found", nil)
	case errors.Is(err, radio.ErrBusy):
		return http.StatusServiceUnavailable, marshalErrorResponse("BUSY", getErrorMessage(radio.ErrBusy), nil)
	case errors.Is(err, radio.ErrUnavailable):
		return http.StatusServiceUnavailable, marshalErrorResponse("UNAVAILABLE", getErrorMessage(radio.ErrUnavailable), nil)
	case errors.Is(err, radio.ErrInternal):
		return http.StatusInternalServerError, marshalErrorResponse("INTERNAL", getErrorMessage(radio.ErrInternal), nil)
	}

	return http.StatusInternalServerError, marshalErrorResponse("INTERNAL", "Internal server error", map[string]interface{}{
		"original": err.Error(),
	})
}

// WriteAPIError writes the mapped error to the response writer.
func WriteAPIError(w http.ResponseWriter, err error) {
	status, body := ToAPIError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func mapRadioError(code error) (string, int) {
	switch {
	case errors.Is(code, radio.ErrBusy):
		return "BUSY", http.StatusServiceUnavailable
	case errors.Is(code, radio.ErrUnavailable):
		return "UNAVAILABLE", http.StatusServiceUnavailable
	default:
		return "INTERNAL", http.StatusInternalServerError
	}
}

func getErrorMessage(code error) string {
	switch {
	case errors.Is(code, radio.ErrBusy):
		return "Broadcast pipeline is busy, retry with backoff"
	case errors.Is(code, radio.ErrUnavailable):
		return "Broadcast pipeline is unavailable"
	default:
		return "Internal server error"
	}
}

func marshalErrorResponse(code, message string, details interface{}) []byte {
	response := ErrorResponse(code, message, details)
	jsonBytes, err := json.Marshal(response)
	if err != nil {
		fallback := map[string]interface{}{
			"result":        "error",
			"code":          "INTERNAL",
			"message":       "Failed to marshal error response",
			"correlationId": generateCorrelationID(),
		}
		jsonBytes, _ := json.Marshal(fallback)
		return jsonBytes
	}
	return jsonBytes
}
