package session

import (
	"net/http"
	"net/http/cookiejar"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/signal-dashboard/internal/backendtest"
	"github.com/pribylovaa/signal-dashboard/internal/config"
	"github.com/pribylovaa/signal-dashboard/internal/identity"
)

var testUser = backendtest.User{
	UserID:   "u-1",
	Email:    "ann@example.com",
	Password: "s3cret-pass",
	Name:     "Ann",
	Role:     "analyst",
	Plan:     "pro",
}

func testSessionCfg() config.SessionConfig {
	return config.SessionConfig{
		ExpiryBuffer:   60 * time.Second,
		RefreshTimeout: 5 * time.Second,
		CSRFCookie:     backendtest.CSRFCookie,
		CSRFHeader:     backendtest.CSRFHeader,
	}
}

// harness — Service поверх настоящего identity-клиента и поддельного backend.
type harness struct {
	svc     *Service
	srv     *backendtest.Server
	jar     http.CookieJar
	tickets *JarTicketReader
	reg     *prometheus.Registry
}

func newHarness(t *testing.T, opts ...func(*config.SessionConfig, *Deps)) *harness {
	t.Helper()

	srv := backendtest.New(testUser)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	idc, err := identity.New(identity.Options{
		BaseURL:    srv.URL,
		HTTPClient: &http.Client{Jar: jar, Timeout: 5 * time.Second},
		CSRFHeader: backendtest.CSRFHeader,
	})
	require.NoError(t, err)

	tickets := NewJarTicketReader(jar, idc.URL(), backendtest.CSRFCookie)
	reg := prometheus.NewRegistry()

	cfg := testSessionCfg()
	deps := Deps{
		Identity:   idc,
		Tickets:    tickets,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		Registerer: reg,
	}
	for _, o := range opts {
		o(&cfg, &deps)
	}

	return &harness{
		svc:     New(deps, cfg),
		srv:     srv,
		jar:     jar,
		tickets: tickets,
		reg:     reg,
	}
}

func withClock(now time.Time) func(*config.SessionConfig, *Deps) {
	return func(_ *config.SessionConfig, d *Deps) {
		d.Now = func() time.Time { return now }
	}
}

func keepOnUnavailable(c *config.SessionConfig, _ *Deps) { c.KeepOnUnavailable = true }
