package middleware

import (
	"log/slog"
	"net/http"

	logctx "github.com/pribylovaa/signal-dashboard/internal/pkg/log"
	"github.com/pribylovaa/signal-dashboard/internal/session"
)

// StatusSource — источник текущего состояния сессии.
type StatusSource interface {
	Status() session.Status
}

// SessionAttrs добавляет в request-scoped логгер состояние сессии
// и user_id (если пользователь вошёл). Ставится после Logging.
func SessionAttrs(src StatusSource) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := src.Status()

			args := []any{slog.String("session", st.State.String())}
			if st.Session != nil {
				args = append(args, slog.String("user_id", st.Session.UserID))
			}

			next.ServeHTTP(w, r.WithContext(logctx.With(r.Context(), args...)))
		})
	}
}
