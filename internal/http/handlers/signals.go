package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/signal-dashboard/internal/errors"
)

// Данные сигналов проксируются как есть: BFF добавляет только
// авторизацию и маппинг ошибок.

func (h *Handlers) ListSignals(w http.ResponseWriter, r *http.Request) {
	body, err := h.Signals.ListSignals(r.Context(), r.URL.Query())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeRaw(w, body)
}

func (h *Handlers) GetSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	body, err := h.Signals.Signal(r.Context(), id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeRaw(w, body)
}

func (h *Handlers) SignalHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	body, err := h.Signals.SignalHistory(r.Context(), id, r.URL.Query())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeRaw(w, body)
}

func (h *Handlers) Graph(w http.ResponseWriter, r *http.Request) {
	body, err := h.Signals.Graph(r.Context(), r.URL.Query())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeRaw(w, body)
}
