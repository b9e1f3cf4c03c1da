package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"

	apierrors "github.com/pribylovaa/signal-dashboard/internal/errors"
	"github.com/pribylovaa/signal-dashboard/internal/session"
)

// SessionService — операции сессии, нужные HTTP-слою (*session.Service).
type SessionService interface {
	Login(ctx context.Context, email, password string) (*session.Session, error)
	Signup(ctx context.Context, email, password, name string) error
	Logout(ctx context.Context) error
	Status() session.Status
}

// SignalsSource — данные сигналов (*analytics.Client поверх session.Executor).
type SignalsSource interface {
	ListSignals(ctx context.Context, query url.Values) (json.RawMessage, error)
	Signal(ctx context.Context, id string) (json.RawMessage, error)
	SignalHistory(ctx context.Context, id string, query url.Values) (json.RawMessage, error)
	Graph(ctx context.Context, query url.Values) (json.RawMessage, error)
}

// Handlers агрегирует зависимости хендлеров.
type Handlers struct {
	Session SessionService
	Signals SignalsSource
}

func New(s SessionService, signals SignalsSource) *Handlers {
	return &Handlers{Session: s, Signals: signals}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// writeRaw отдаёт уже готовый JSON от backend без перекладывания.
func writeRaw(w http.ResponseWriter, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// decodeStrict — строгий JSON-декодер: только application/json,
// неизвестные поля запрещены. Ошибки уже готовы для apierrors.WriteError.
func decodeStrict(r *http.Request, value any) error {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		return apierrors.ErrUnsupportedMediaType
	}

	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(value); err != nil {
		return fmt.Errorf("%w: %w", apierrors.ErrInvalidArgument, err)
	}

	return nil
}
