package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/signal-dashboard/internal/analytics"
	"github.com/pribylovaa/signal-dashboard/internal/identity"
	"github.com/pribylovaa/signal-dashboard/internal/session"
)

func wrap(err error) error { return fmt.Errorf("handlers.op: %w", err) }

func TestToHTTP_Mapping(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name       string
		in         error
		wantStatus int
		wantCode   string
	}{
		{"invalid_credentials", wrap(session.ErrInvalidCredentials), http.StatusUnauthorized, "invalid_credentials"},
		{"no_session", wrap(session.ErrNoSession), http.StatusUnauthorized, "unauthenticated"},
		{"missing_ticket", wrap(session.ErrMissingRefreshTicket), http.StatusUnauthorized, "unauthenticated"},
		{"revoked", wrap(session.ErrAuthorizationRevoked), http.StatusUnauthorized, "unauthenticated"},
		{"rejected_refresh", wrap(session.ErrRefreshRejected), http.StatusUnauthorized, "unauthenticated"},
		{"terminated_by_deadline", fmt.Errorf("%w: %w: %w", session.ErrNoSession, session.ErrRefreshUnavailable, context.DeadlineExceeded), http.StatusUnauthorized, "unauthenticated"},
		{"refresh_unavailable_kept", wrap(session.ErrRefreshUnavailable), http.StatusServiceUnavailable, "unavailable"},
		{"network", wrap(session.ErrNetwork), http.StatusServiceUnavailable, "unavailable"},
		{"identity_5xx", &identity.StatusError{Op: "identity.Signup", Code: http.StatusBadGateway}, http.StatusServiceUnavailable, "unavailable"},
		{"invalid_email", wrap(session.ErrInvalidEmail), http.StatusBadRequest, "invalid_argument"},
		{"empty_password", wrap(session.ErrEmptyPassword), http.StatusBadRequest, "invalid_argument"},
		{"local_invalid_argument", wrap(ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{"signup_conflict", wrap(&identity.StatusError{Op: "identity.Signup", Code: http.StatusConflict}), http.StatusConflict, "already_exists"},
		{"signup_rejected", wrap(&identity.StatusError{Op: "identity.Signup", Code: http.StatusUnprocessableEntity}), http.StatusBadRequest, "invalid_argument"},
		{"not_found", &analytics.StatusError{Op: "analytics.Signal", Code: http.StatusNotFound}, http.StatusNotFound, "not_found"},
		{"analytics_4xx", &analytics.StatusError{Op: "analytics.Graph", Code: http.StatusBadRequest}, http.StatusBadRequest, "invalid_argument"},
		{"analytics_5xx", &analytics.StatusError{Op: "analytics.Graph", Code: http.StatusInternalServerError}, http.StatusBadGateway, "bad_gateway"},
		{"analytics_malformed", wrap(analytics.ErrMalformed), http.StatusBadGateway, "bad_gateway"},
		{"analytics_transport", wrap(analytics.ErrUpstream), http.StatusBadGateway, "bad_gateway"},
		{"unsupported_media_type", wrap(ErrUnsupportedMediaType), http.StatusUnsupportedMediaType, "unsupported_media_type"},
		{"cross_origin", wrap(ErrCrossOrigin), http.StatusForbidden, "forbidden"},
		{"canceled", wrap(context.Canceled), StatusClientClosedRequest, "canceled"},
		{"deadline", wrap(context.DeadlineExceeded), http.StatusGatewayTimeout, "deadline_exceeded"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			gotStatus, resp := ToHTTP(tc.in)
			require.Equal(t, tc.wantStatus, gotStatus)
			require.Equal(t, tc.wantCode, resp.Error.Code)
			require.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestToHTTP_NilError_Returns500Internal(t *testing.T) {
	t.Parallel()

	gotStatus, resp := ToHTTP(nil)
	require.Equal(t, http.StatusInternalServerError, gotStatus)
	require.Equal(t, "internal", resp.Error.Code)
	require.Equal(t, "internal error", resp.Error.Message)
}

func TestWriteError_EnvelopeWithRequestID(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/signals", nil)
	req.Header.Set("X-Request-Id", "rid-42")
	rr := httptest.NewRecorder()

	WriteError(rr, req, wrap(session.ErrAuthorizationRevoked))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var got ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "unauthenticated", got.Error.Code)
	require.Equal(t, "rid-42", got.Error.RequestID)
	require.NotContains(t, rr.Body.String(), "revoked", "details must not leak")
}
