package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	logctx "github.com/pribylovaa/signal-dashboard/internal/pkg/log"
)

// Doer — минимальный HTTP-исполнитель (совместим с *http.Client).
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Executor — AuthenticatedRequestExecutor: подписывает каждый исходящий
// запрос к данным текущим access-токеном. Запросы не повторяет.
type Executor struct {
	refresher *Refresher
	store     *Store
	tracker   *Tracker
	client    Doer
}

// Do получает токен, ставит Authorization: Bearer и отправляет запрос.
//
// Нет сессии — запрос не отправляется, ошибка матчится с ErrNoSession.
// Ответ 401 — сессия завершается, возвращается ErrAuthorizationRevoked.
// Остальные ответы (включая 403 и 5xx) отдаются вызывающему как есть.
func (e *Executor) Do(req *http.Request) (*http.Response, error) {
	const op = "session.Executor.Do"

	ctx := req.Context()

	cred, err := e.refresher.Acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			// обычно уже сделано внутри refresh; повтор идемпотентен
			e.tracker.terminate(ctx, reasonRefreshRejected)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := req.Clone(ctx)
	out.Header.Set("Authorization", "Bearer "+cred.Token)

	resp, err := e.client.Do(out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()

		logctx.From(ctx).Warn("authorization_revoked",
			slog.String("op", op),
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
		)
		// 401 на токен прошлой сессии не должен завершать новую (logout + login).
		if cur, ok := e.store.Get(); !ok || cur.Token == cred.Token {
			e.tracker.terminate(ctx, reasonRevoked)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrAuthorizationRevoked)
	}

	return resp, nil
}
