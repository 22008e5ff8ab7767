package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"civilregistry/internal/apperr"
)

// ErrorBody is the error payload returned on every failing non-proxy route.
type ErrorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// JSON writes data as the response body.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// Message writes a body holding only a message.
func Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Message: message})
}

// Error maps err onto the error taxonomy. Anything that is not an
// *apperr.Error is logged and reported as a generic internal error.
func Error(w http.ResponseWriter, logger *zap.Logger, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.CodeInternal {
		logger.Error("request failed", zap.Error(err))
		Message(w, http.StatusInternalServerError, apperr.MsgInternal)
		return
	}

	var appErr *apperr.Error
	errors.As(err, &appErr)
	if code == apperr.CodeUpstream {
		logger.Warn("upstream failure", zap.Error(err))
	}
	JSON(w, apperr.HTTPStatus(code), ErrorBody{Message: appErr.Message, Errors: appErr.Fields})
}

// Raw writes an upstream body verbatim.
func Raw(w http.ResponseWriter, status int, contentType string, body []byte) {
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
