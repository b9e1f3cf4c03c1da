package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/pribylovaa/signal-dashboard/internal/errors"
	"github.com/pribylovaa/signal-dashboard/internal/models"
	logctx "github.com/pribylovaa/signal-dashboard/internal/pkg/log"
	"github.com/pribylovaa/signal-dashboard/internal/session"
)

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in models.AuthLoginRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if _, err := h.Session.Login(r.Context(), in.Email, in.Password); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.SessionFromStatus(h.Session.Status()))
}

func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var in models.AuthSignupRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.Session.Signup(r.Context(), in.Email, in.Password, in.Name); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.AuthSignupResponse{Ok: true})
}

// Logout всегда отвечает 204: локальная сессия закрыта в любом случае,
// сбой уведомления identity-сервиса только логируется.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Logout(r.Context()); err != nil {
		lvl := slog.LevelError
		if errors.Is(err, session.ErrNetwork) {
			lvl = slog.LevelWarn
		}
		logctx.From(r.Context()).Log(r.Context(), lvl, "logout_remote_failed", slog.String("err", err.Error()))
	}

	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.SessionFromStatus(h.Session.Status()))
}
