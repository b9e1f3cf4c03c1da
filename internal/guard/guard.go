// guard — RouteGuard страниц дашборда.
//
// Решение принимается по паре (состояние сессии, класс пути):
//   - Loading: ничего не отдаём и никуда не перенаправляем (503 + Retry-After);
//   - Unauthenticated + Protected: на публичную точку входа;
//   - Authenticated + Public: на стартовую защищённую страницу, если путь не она сама;
//   - остальное пропускается как есть.
package guard

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/pribylovaa/signal-dashboard/internal/config"
	logctx "github.com/pribylovaa/signal-dashboard/internal/pkg/log"
	"github.com/pribylovaa/signal-dashboard/internal/session"
)

// Class — классификация цели навигации.
type Class int

const (
	Protected Class = iota
	Public
)

func (c Class) String() string {
	if c == Public {
		return "public"
	}

	return "protected"
}

// StatusSource — источник текущего состояния сессии (*session.Service).
type StatusSource interface {
	Status() session.Status
}

// Decision — результат проверки. Hold и Redirect взаимоисключающие.
type Decision struct {
	Hold     bool
	Redirect string
}

// Guard хранит классификацию путей. Без состояния: безопасен для конкурентного использования.
type Guard struct {
	entry   string
	landing string
	public  []string
}

// New строит Guard. Точка входа всегда публичная, стартовая страница — нет,
// даже если указана в списке public.
func New(cfg config.RoutesConfig) *Guard {
	g := &Guard{
		entry:   cleanPath(cfg.Entry),
		landing: cleanPath(cfg.Landing),
	}

	seen := map[string]bool{}
	for _, p := range append([]string{cfg.Entry}, cfg.Public...) {
		p = cleanPath(p)
		if p == g.landing || seen[p] {
			continue
		}
		seen[p] = true
		g.public = append(g.public, p)
	}

	return g
}

func (g *Guard) Entry() string   { return g.entry }
func (g *Guard) Landing() string { return g.landing }

// Classify относит путь к Public, если он совпадает с публичным путём
// или лежит под ним ("/login" покрывает "/login/reset"). Корень "/"
// покрывает только себя. Стартовая страница защищена всегда, даже под
// публичным префиксом.
func (g *Guard) Classify(path string) Class {
	path = cleanPath(path)
	if path == g.landing {
		return Protected
	}

	for _, p := range g.public {
		if path == p {
			return Public
		}

		if p != "/" && strings.HasPrefix(path, p+"/") {
			return Public
		}
	}

	return Protected
}

// Decide — чистая функция перехода.
func (g *Guard) Decide(st session.Status, path string) Decision {
	switch st.State {
	case session.StateLoading:
		return Decision{Hold: true}
	case session.StateUnauthenticated:
		if g.Classify(path) == Protected {
			return Decision{Redirect: g.entry}
		}
	case session.StateAuthenticated:
		if g.Classify(path) == Public && cleanPath(path) != g.landing {
			return Decision{Redirect: g.landing}
		}
	}

	return Decision{}
}

// Middleware применяет Decide к каждому запросу страницы.
func (g *Guard) Middleware(src StatusSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := src.Status()
			d := g.Decide(st, r.URL.Path)

			switch {
			case d.Hold:
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Cache-Control", "no-store")
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			case d.Redirect != "":
				logctx.From(r.Context()).Debug("guard_redirect",
					slog.String("path", r.URL.Path),
					slog.String("state", st.State.String()),
					slog.String("to", d.Redirect),
				)
				w.Header().Set("Cache-Control", "no-store")
				http.Redirect(w, r, d.Redirect, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}

	return p
}
