// transport предоставляет набор http.RoundTripper-обёрток для исходящих
// запросов к identity- и analytics-сервисам.
package transport

import (
	"net/http"

	"github.com/google/uuid"
)

type CtxKey string

const (
	CtxRequestID CtxKey = "request_id"
)

// Middleware — обёртка над http.RoundTripper.
type Middleware func(http.RoundTripper) http.RoundTripper

// Func адаптирует функцию к http.RoundTripper.
type Func func(*http.Request) (*http.Response, error)

func (f Func) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Chain применяет обёртки к транспорту в порядке их перечисления
// (первая — самая внешняя).
func Chain(rt http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}

	for i := len(mws) - 1; i >= 0; i-- {
		rt = mws[i](rt)
	}

	return rt
}

// WithMetadata — добавляет в исходящий запрос заголовки:
//   - X-Request-Id (из контекста; если нет — новый uuid),
//   - User-Agent (если передан параметром и не задан вызывающим).
//
// Authorization сюда намеренно не попадает: его ставит только session.Executor.
func WithMetadata(userAgent string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return Func(func(r *http.Request) (*http.Response, error) {
			rid, _ := r.Context().Value(CtxRequestID).(string)
			if rid == "" {
				rid = r.Header.Get("X-Request-Id")
			}
			if rid == "" {
				rid = uuid.NewString()
			}

			// RoundTripper не должен менять исходный запрос.
			out := r.Clone(r.Context())
			out.Header.Set("X-Request-Id", rid)
			if userAgent != "" && out.Header.Get("User-Agent") == "" {
				out.Header.Set("User-Agent", userAgent)
			}

			return next.RoundTrip(out)
		})
	}
}
