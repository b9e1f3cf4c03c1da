// clients собирает HTTP-клиенты удалённых сервисов: identity (с cookie jar,
// в котором живут refresh- и CSRF-cookie) и analytics (без jar, только Bearer).
package clients

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pribylovaa/signal-dashboard/internal/analytics"
	"github.com/pribylovaa/signal-dashboard/internal/clients/transport"
	"github.com/pribylovaa/signal-dashboard/internal/config"
	"github.com/pribylovaa/signal-dashboard/internal/identity"
	"github.com/pribylovaa/signal-dashboard/internal/session"
)

// Clients агрегирует клиенты апстримов.
type Clients struct {
	Identity *identity.Client
	Tickets  *session.JarTicketReader
	// Data отправляет запросы к analytics; подписывает их session.Executor.
	Data *http.Client

	analyticsURL string
	transports   []*http.Transport
}

// New создаёт cookie jar, транспорты и identity-клиент.
func New(cfg config.Config, log *slog.Logger) (*Clients, error) {
	const op = "internal/clients/New"

	if cfg.Backend.IdentityURL == "" || cfg.Backend.AnalyticsURL == "" {
		return nil, fmt.Errorf("%s: empty upstream url", op)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("%s: cookie jar: %w", op, err)
	}

	// Цепочка: metadata -> timeout -> logging -> otel -> сеть.
	build := func(name string) (http.RoundTripper, *http.Transport) {
		base := http.DefaultTransport.(*http.Transport).Clone()

		return transport.Chain(
			otelhttp.NewTransport(base, otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return name + " " + r.Method + " " + r.URL.Path
			})),
			transport.WithMetadata(cfg.Backend.UserAgent),
			transport.WithTimeout(cfg.Timeouts.Service),
			transport.WithLogging(log),
		), base
	}

	idRT, idBase := build("identity")
	dataRT, dataBase := build("analytics")

	idc, err := identity.New(identity.Options{
		BaseURL:    cfg.Backend.IdentityURL,
		HTTPClient: &http.Client{Transport: idRT, Jar: jar, Timeout: cfg.Timeouts.Client},
		CSRFHeader: cfg.Session.CSRFHeader,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: identity: %w", op, err)
	}

	return &Clients{
		Identity:     idc,
		Tickets:      session.NewJarTicketReader(jar, idc.URL(), cfg.Session.CSRFCookie),
		Data:         &http.Client{Transport: dataRT, Timeout: cfg.Timeouts.Client},
		analyticsURL: cfg.Backend.AnalyticsURL,
		transports:   []*http.Transport{idBase, dataBase},
	}, nil
}

// Analytics создаёт клиент данных поверх исполнителя подписанных запросов.
func (c *Clients) Analytics(exec analytics.Doer) (*analytics.Client, error) {
	return analytics.New(c.analyticsURL, exec)
}

// Close закрывает простаивающие соединения.
func (c *Clients) Close() error {
	for _, t := range c.transports {
		t.CloseIdleConnections()
	}

	return nil
}
