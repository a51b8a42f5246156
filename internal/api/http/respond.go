// Package http exposes the study core as a JSON API.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mind-engage/mindengage-study/internal/apperr"
	"github.com/mind-engage/mindengage-study/internal/logger"
)

const maxBody = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps the core's error taxonomy to HTTP.
func statusOf(err error) int {
	var (
		nf *apperr.NotFoundError
		iq *apperr.InsufficientQuestionsError
		ve *apperr.ValidationError
		se *apperr.StateError
		te *apperr.TransportError
	)
	switch {
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &iq), errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.As(err, &se):
		return http.StatusConflict
	case errors.As(err, &te):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers {"error": summary, "detail": full chain}.
func writeError(w http.ResponseWriter, log *logger.Logger, r *http.Request, err error) {
	status := statusOf(err)
	if status >= 500 {
		log.Error("http: request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		log.Debug("http: request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": apperr.Summary(err), "detail": err.Error()})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return apperr.Invalid("body", "bad json: "+err.Error())
	}
	return nil
}
