package web

// errors.go turns ingestion outcomes into responses.
//
// Rejections are the client's fault and carry every violation so the file can
// be fixed in one pass (400). Anything else is a server-side failure: the
// technical error is logged with the request ID and the client gets the
// mapped message and support code from core.MapError.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/salesingest/internal/core"
	"github.com/JonMunkholm/salesingest/internal/logging"
	"github.com/JonMunkholm/salesingest/internal/web/templates"
)

// ErrorResponse is the JSON body of a failed request.
// Rejections fill Errors; server failures fill Message, Action and Code.
type ErrorResponse struct {
	Errors  []string `json:"errors"`
	Message string   `json:"message,omitempty"`
	Action  string   `json:"action,omitempty"`
	Code    string   `json:"code,omitempty"`
}

// respondRejection answers 400 with the violation list.
func (s *Server) respondRejection(w http.ResponseWriter, r *http.Request, violations []string) {
	if isHTMX(r) {
		renderFragment(w, r, http.StatusBadRequest, templates.RejectionAlert(violations))
		return
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Errors: violations})
}

// respondError answers an ingestion error. Rejections become 400; other
// errors are logged and mapped to a user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if rej, ok := core.AsRejection(err); ok {
		s.respondRejection(w, r, rej.Violations)
		return
	}

	status := statusFor(err)
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if isHTMX(r) {
		renderFragment(w, r, status, templates.ErrorAlert(msg.Message, msg.Action, msg.Code))
		return
	}
	writeJSON(w, status, ErrorResponse{
		Errors:  []string{msg.Message},
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrUnknownRecordType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
