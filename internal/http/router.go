package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/signal-dashboard/internal/guard"
	"github.com/pribylovaa/signal-dashboard/internal/http/handlers"
	"github.com/pribylovaa/signal-dashboard/internal/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	Guard   *guard.Guard
	// Ready — готовность для /healthz (сессия восстановлена, сервер слушает).
	// nil — всегда готов.
	Ready   func() bool
	Metrics http.Handler // nil — /metrics не регистрируется.
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc handlers.SessionService, signals handlers.SignalsSource, opts Options) http.Handler {
	root := chi.NewRouter()

	// Служебные роуты без логирования и guard.
	registerOps(root, opts)

	h := handlers.New(svc, signals)

	root.Group(func(r chi.Router) {
		// Middleware (внешний -> внутренний).
		r.Use(
			middleware.Recover(),
			middleware.RequestID(),          // до логирования!
			middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
			middleware.SessionAttrs(svc),
		)
		if opts.Timeout > 0 {
			r.Use(middleware.Timeout(opts.Timeout))
		}

		r.Route("/api", func(api chi.Router) {
			api.Use(middleware.SameOrigin())
			registerAPI(api, h)
		})

		// Страницы защищены guard; API отвечает 401 само.
		r.Group(func(pages chi.Router) {
			pages.Use(opts.Guard.Middleware(svc))
			registerPages(pages, h, opts.Guard)
		})
	})

	return root
}

func registerOps(r chi.Router, opts Options) {
	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready == nil || opts.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}

		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
}

// registerAPI — единая точка регистрации JSON-эндпойнтов.
func registerAPI(r chi.Router, h *handlers.Handlers) {
	// auth
	r.Post("/auth/login", h.Login)
	r.Post("/auth/signup", h.Signup)
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/session", h.Me)

	// signals
	r.Get("/signals", h.ListSignals)
	r.Get("/signals/{id}", h.GetSignal)
	r.Get("/signals/{id}/history", h.SignalHistory)
	r.Get("/graph", h.Graph)
}

func registerPages(r chi.Router, h *handlers.Handlers, g *guard.Guard) {
	pages := map[string]http.HandlerFunc{
		"/":             h.Page("home"),
		"/signup":       h.Page("signup"),
		"/signals":      h.Page("signals"),
		"/signals/{id}": h.Page("signal", "id"),
		"/account":      h.Page("account"),
	}
	// Точка входа и стартовая страница настраиваются.
	pages[g.Entry()] = h.Page("login")
	pages[g.Landing()] = h.Page("dashboard")

	for path, fn := range pages {
		r.Get(path, fn)
	}
}
