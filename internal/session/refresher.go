package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pribylovaa/signal-dashboard/internal/identity"
	logctx "github.com/pribylovaa/signal-dashboard/internal/pkg/log"
)

const refreshKey = "refresh"

// Refresher — TokenRefresher: отдаёт годный access-токен и координирует
// его обновление так, чтобы на любое число одновременных вызовов Acquire
// с просроченным токеном приходился ровно один сетевой /auth/refresh.
type Refresher struct {
	store    *Store
	tickets  TicketReader
	identity IdentityClient
	tracker  *Tracker
	metrics  *metrics

	// group хранит PendingRefresh: не больше одного полёта на ключ.
	group singleflight.Group

	buffer            time.Duration
	timeout           time.Duration
	keepOnUnavailable bool
	now               func() time.Time
}

// Acquire возвращает токен, до истечения которого больше buffer.
// Иначе присоединяется к текущему обновлению или начинает новое.
//
// Ошибки матчатся с ErrNoSession, если сессия завершена
// (ErrMissingRefreshTicket, ErrRefreshRejected, ErrRefreshUnavailable при
// завершении). Отмена ctx прекращает ожидание этого вызывающего,
// но не само обновление: его результат достанется остальным.
func (r *Refresher) Acquire(ctx context.Context) (Credential, error) {
	const op = "session.Acquire"

	cred, ok, gen := r.store.snapshot()
	if ok && cred.ValidAt(r.now(), r.buffer) {
		r.metrics.acquired(acquireCached)
		return cred, nil
	}

	ch := r.group.DoChan(refreshKey, func() (any, error) {
		return r.refresh(ctx, gen)
	})

	select {
	case res := <-ch:
		if res.Shared {
			r.metrics.joinedFlight()
		}

		if res.Err != nil {
			r.metrics.acquired(acquireFailed)
			return Credential{}, fmt.Errorf("%s: %w", op, res.Err)
		}

		r.metrics.acquired(acquireRefreshed)
		return res.Val.(Credential), nil
	case <-ctx.Done():
		r.metrics.acquired(acquireFailed)
		return Credential{}, fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

// refresh — тело единственного полёта. observed — поколение хранилища,
// в котором лидер увидел непригодный токен.
func (r *Refresher) refresh(ctx context.Context, observed uint64) (Credential, error) {
	const op = "session.refresh"

	lg := logctx.From(ctx)

	// Между наблюдением лидера и стартом полёта успел завершиться другой
	// полёт (или login/logout): его исход и есть ответ, сеть не нужна.
	if cred, done, err := r.settled(op, observed); done {
		return cred, err
	}

	ticket, ok := r.tickets.Ticket()
	if !ok {
		r.metrics.refreshed(refreshMissingTicket)
		r.tracker.terminate(ctx, reasonMissingTicket)
		return Credential{}, fmt.Errorf("%s: %w", op, ErrMissingRefreshTicket)
	}

	lg.Debug("refresh_started", slog.String("op", op))

	// Полёт общий: отмена контекста лидера не должна обрывать его для остальных.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	start := time.Now()
	grant, err := r.identity.Refresh(fctx, ticket)

	// Пока шёл запрос, сессию завершили (logout) или открыли заново (login):
	// результат полёта устарел и не должен ни записываться, ни завершать новую сессию.
	if cred, done, serr := r.settled(op, observed); done {
		lg.Info("refresh_superseded", slog.String("op", op))
		return cred, serr
	}

	if err != nil {
		return Credential{}, r.fail(ctx, op, err)
	}

	cred := Credential{Token: grant.AccessToken, ExpiresAt: grant.ExpiresAt}
	if !r.store.setIf(observed, cred) {
		cred, _, err := r.settled(op, observed)
		return cred, err
	}

	if grant.User != nil {
		r.tracker.refreshed(grant.User)
	}

	r.metrics.refreshed(refreshOK)
	lg.Debug("refresh_succeeded",
		slog.String("op", op),
		slog.Time("expires_at", cred.ExpiresAt),
		slog.Duration("dur", time.Since(start)),
	)

	if !cred.ValidAt(r.now(), r.buffer) {
		lg.Warn("refresh_short_ttl",
			slog.String("op", op),
			slog.Duration("ttl", cred.ExpiresAt.Sub(r.now())),
			slog.Duration("buffer", r.buffer),
		)
	}

	return cred, nil
}

// settled сообщает, что хранилище сменило поколение после observed,
// и возвращает его текущий исход. Записанный токен отдаётся даже с TTL
// внутри буфера: это результат только что завершённого полёта, и его
// вызывающие получили тот же токен.
func (r *Refresher) settled(op string, observed uint64) (Credential, bool, error) {
	cred, ok, gen := r.store.snapshot()
	if gen == observed {
		return Credential{}, false, nil
	}

	r.metrics.refreshed(refreshSettled)
	if ok {
		return cred, true, nil
	}

	return Credential{}, true, fmt.Errorf("%s: %w", op, ErrNoSession)
}

// fail классифицирует ошибку обновления и завершает сессию.
// Недоступность identity-сервиса при keep_on_unavailable сессию не трогает.
func (r *Refresher) fail(ctx context.Context, op string, err error) error {
	lg := logctx.From(ctx)

	if errors.Is(err, identity.ErrUnavailable) {
		r.metrics.refreshed(refreshUnavailable)
		lg.Warn("refresh_unavailable",
			slog.String("op", op),
			slog.Bool("keep_session", r.keepOnUnavailable),
			slog.String("err", err.Error()),
		)

		if r.keepOnUnavailable {
			return fmt.Errorf("%s: %w: %w", op, ErrRefreshUnavailable, err)
		}

		r.tracker.terminate(ctx, reasonRefreshUnavailable)
		return fmt.Errorf("%s: %w: %w: %w", op, ErrNoSession, ErrRefreshUnavailable, err)
	}

	r.metrics.refreshed(refreshRejected)
	lg.Warn("refresh_rejected",
		slog.String("op", op),
		slog.String("err", err.Error()),
	)
	r.tracker.terminate(ctx, reasonRefreshRejected)

	return fmt.Errorf("%s: %w: %w", op, ErrRefreshRejected, err)
}
