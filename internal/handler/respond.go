package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	appI18n "github.com/examforge/examforge/internal/i18n"
	"github.com/examforge/examforge/internal/session"
)

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msgID string, err error) {
	resp := errorResponse{Error: appI18n.T(r.Context(), msgID)}
	if err != nil {
		resp.Detail = err.Error()
		slog.Warn("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, resp)
}

func localizedEmptySet(r *http.Request) string {
	return appI18n.T(r.Context(), "err.empty_set")
}

// writeEngineError maps engine errors onto HTTP statuses and localized
// message IDs. Anything unrecognized is a collaborator failure.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNoSelection):
		writeError(w, r, http.StatusUnprocessableEntity, "warn.select_option", nil)
	case errors.Is(err, session.ErrBusy):
		writeError(w, r, http.StatusConflict, "err.busy", nil)
	case errors.Is(err, session.ErrAlreadyConfirmed):
		writeError(w, r, http.StatusConflict, "err.already_confirmed", nil)
	case errors.Is(err, session.ErrEmptySet):
		writeError(w, r, http.StatusUnprocessableEntity, "err.empty_set", nil)
	case errors.Is(err, session.ErrCompleted):
		writeError(w, r, http.StatusConflict, "err.session_completed", nil)
	case errors.Is(err, session.ErrNotCompleted):
		writeError(w, r, http.StatusConflict, "err.not_completed", nil)
	case errors.Is(err, session.ErrClosed):
		writeError(w, r, http.StatusNotFound, "err.session_not_found", nil)
	case errors.Is(err, session.ErrInvalidStatus):
		writeError(w, r, http.StatusConflict, "err.invalid_status", nil)
	default:
		writeError(w, r, http.StatusBadGateway, "err.collaborator", err)
	}
}
