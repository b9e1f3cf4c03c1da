package session

import (
	"context"
	"log/slog"

	logctx "github.com/pribylovaa/signal-dashboard/internal/pkg/log"
)

// Restorer — SessionRestorer: однократное восстановление сессии при старте
// процесса. Не больше одного обновления токена и одного /auth/me, без повторов.
type Restorer struct {
	tickets   TicketReader
	refresher *Refresher
	identity  IdentityClient
	tracker   *Tracker
}

// Restore возвращает восстановленную сессию или nil.
// В любом исходе состояние покидает Loading.
func (r *Restorer) Restore(ctx context.Context) *Session {
	const op = "session.Restore"

	lg := logctx.From(ctx).With(slog.String("op", op))

	if _, ok := r.tickets.Ticket(); !ok {
		r.tracker.settleUnauthenticated()
		lg.Info("restore_no_ticket")
		return nil
	}

	cred, err := r.refresher.Acquire(ctx)
	if err != nil {
		// refresher уже завершил сессию; при keep_on_unavailable — нет,
		// но и ждать повторов при старте не будем.
		r.tracker.settleUnauthenticated()
		lg.Info("restore_failed", slog.String("err", err.Error()))
		return nil
	}

	u, err := r.identity.Me(ctx, cred.Token)
	if err != nil {
		r.tracker.terminate(ctx, reasonIdentityLookup)
		lg.Warn("restore_identity_failed", slog.String("err", err.Error()))
		return nil
	}

	s := sessionFromUser(u)
	if !r.tracker.restored(s) {
		// пока шёл /auth/me, сессию успели завершить или войти заново
		lg.Info("restore_superseded", slog.String("state", r.tracker.Status().State.String()))
		return nil
	}

	lg.Info("session_restored", slog.Any("session", s))

	return s
}
