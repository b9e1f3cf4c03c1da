package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/signal-dashboard/internal/config"
	"github.com/pribylovaa/signal-dashboard/internal/guard"
	"github.com/pribylovaa/signal-dashboard/internal/session"
)

type stubSession struct {
	status  atomic.Pointer[session.Status]
	logouts atomic.Int32
}

func newStubSession(st session.Status) *stubSession {
	s := &stubSession{}
	s.status.Store(&st)
	return s
}

func (s *stubSession) Login(context.Context, string, string) (*session.Session, error) {
	return nil, session.ErrInvalidCredentials
}
func (s *stubSession) Signup(context.Context, string, string, string) error { return nil }

func (s *stubSession) Logout(context.Context) error {
	s.logouts.Add(1)
	return nil
}
func (s *stubSession) Status() session.Status { return *s.status.Load() }

type stubSignals struct{}

func (stubSignals) ListSignals(context.Context, url.Values) (json.RawMessage, error) {
	return nil, session.ErrMissingRefreshTicket
}
func (stubSignals) Signal(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}
func (stubSignals) SignalHistory(context.Context, string, url.Values) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}
func (stubSignals) Graph(context.Context, url.Values) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func newTestRouter(t *testing.T, src *stubSession, ready func() bool) http.Handler {
	t.Helper()

	return NewRouter(src, stubSignals{}, Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Guard:  guard.New(config.RoutesConfig{Entry: "/login", Landing: "/dashboard", Public: []string{"/", "/login", "/signup"}}),
		Ready:  ready,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	})
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRouter_Ops(t *testing.T) {
	t.Parallel()

	var ready atomic.Bool
	h := newTestRouter(t, newStubSession(session.Status{State: session.StateLoading}), ready.Load)

	require.Equal(t, http.StatusOK, get(h, "/livez").Code)
	require.Equal(t, http.StatusServiceUnavailable, get(h, "/healthz").Code)

	ready.Store(true)
	require.Equal(t, http.StatusOK, get(h, "/healthz").Code)

	rec := get(h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "# metrics", rec.Body.String())
}

func TestRouter_PagesFollowSessionState(t *testing.T) {
	t.Parallel()

	src := newStubSession(session.Status{State: session.StateLoading})
	h := newTestRouter(t, src, nil)

	// Пока идёт восстановление, ни одна страница не рисуется.
	rec := get(h, "/dashboard")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
	require.Equal(t, http.StatusServiceUnavailable, get(h, "/login").Code)

	src.status.Store(&session.Status{State: session.StateUnauthenticated})

	rec = get(h, "/signals/sig-1")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))

	rec = get(h, "/login")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"page":"login"`)

	src.status.Store(&session.Status{
		State:   session.StateAuthenticated,
		Session: &session.Session{UserID: "u-1", Role: session.RoleAnalyst, Plan: session.PlanPro},
	})

	rec = get(h, "/login")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))

	rec = get(h, "/signals/sig-1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"id":"sig-1"`)
}

func TestRouter_APINotGuarded(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, newStubSession(session.Status{State: session.StateLoading}), nil)

	rec := get(h, "/api/auth/session")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"state":"loading","user":null}`, rec.Body.String())

	rec = get(h, "/api/signals")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRouter_APIRejectsCrossSiteMutations(t *testing.T) {
	t.Parallel()

	src := newStubSession(session.Status{
		State:   session.StateAuthenticated,
		Session: &session.Session{UserID: "u-1"},
	})
	h := newTestRouter(t, src, nil)

	req := httptest.NewRequest(http.MethodPost, "http://dash.local/api/auth/logout", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Zero(t, src.logouts.Load())

	req = httptest.NewRequest(http.MethodPost, "http://dash.local/api/auth/logout", nil)
	req.Header.Set("Origin", "http://dash.local")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.EqualValues(t, 1, src.logouts.Load())
}
