// Package httputil translates transport-agnostic domain errors into HTTP
// responses and handles JSON encoding for the gateway surface.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "regpay/pkg/domain-errors"
)

// Envelope mirrors the backend's response wrapper so gateway clients see one
// consistent shape.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteJSON writes a success envelope with the given payload.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so encoding
	// errors are dropped.
	_ = json.NewEncoder(w).Encode(Envelope{Success: true, Data: data})
}

// WriteMessage writes a success envelope with a message and no data.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: true, Message: message})
}

// WriteError translates a domain error into its HTTP shape.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeInternal
	message := ""
	status := http.StatusInternalServerError

	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		code = domainErr.Code
		message = domainErr.Message
		status = StatusForCode(domainErr.Code)
		// A backend rejection keeps its upstream status when it is an error
		// status, so clients see what the backend actually said.
		if domainErr.Code == dErrors.CodeHTTP && domainErr.HTTPStatus >= 400 {
			status = domainErr.HTTPStatus
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: false, Error: string(code), Message: message})
}

// StatusForCode maps domain error codes to HTTP status codes.
func StatusForCode(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeNoReference:
		return http.StatusBadRequest
	case dErrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodePaymentFailed, dErrors.CodePaymentAbandoned:
		return http.StatusPaymentRequired
	case dErrors.CodePaymentPending:
		return http.StatusConflict
	case dErrors.CodeNetwork, dErrors.CodeHTTP:
		return http.StatusBadGateway
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes a JSON request body into the target type. On failure it
// writes the error response and returns false.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode request body",
			slog.Any("error", err))
		WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return nil, false
	}
	return &req, true
}
