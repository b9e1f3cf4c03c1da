package transport

import (
	"log/slog"
	"net/http"
	"time"

	logctx "github.com/pribylovaa/signal-dashboard/internal/pkg/log"
)

// WithLogging — логирование исходящих HTTP-вызовов.
// Пишет одну запись уровня Info: msg="http_client", method, host, path, status, dur.
// Логгер берётся из контекста запроса (pkg/log), base — запасной.
//
// Безопасность: не логирует тела и заголовки (Authorization, X-CSRF-Token, Cookie).
func WithLogging(base *slog.Logger) Middleware {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return Func(func(r *http.Request) (*http.Response, error) {
			start := time.Now()

			l := base
			if from := logctx.From(r.Context()); from != slog.Default() {
				l = from
			}

			resp, err := next.RoundTrip(r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("host", r.URL.Host),
				slog.String("path", r.URL.Path),
				slog.Duration("dur", time.Since(start)),
			}
			if err != nil {
				attrs = append(attrs, slog.String("err", err.Error()))
				l.LogAttrs(r.Context(), slog.LevelWarn, "http_client", attrs...)
				return resp, err
			}

			attrs = append(attrs, slog.Int("status", resp.StatusCode))
			l.LogAttrs(r.Context(), slog.LevelInfo, "http_client", attrs...)

			return resp, nil
		})
	}
}
