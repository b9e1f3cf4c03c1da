package session

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/signal-dashboard/internal/identity"
	"github.com/pribylovaa/signal-dashboard/internal/session/mocks"
)

func newTestTracker(t *testing.T) (*Tracker, *Store, *mocks.MockTicketReader) {
	t.Helper()

	ctrl := gomock.NewController(t)
	tickets := mocks.NewMockTicketReader(ctrl)
	store := NewStore()

	return newTracker(store, tickets, newMetrics(nil)), store, tickets
}

func TestTracker_StartsLoading(t *testing.T) {
	t.Parallel()

	tr, _, _ := newTestTracker(t)
	require.Equal(t, StateLoading, tr.Status().State)
	require.Nil(t, tr.Status().Session)
}

func TestTracker_TerminateIsIdempotent(t *testing.T) {
	t.Parallel()

	tr, store, tickets := newTestTracker(t)
	tickets.EXPECT().Forget().Times(2)

	var changes []State
	tr.OnChange(func(st Status) { changes = append(changes, st.State) })

	tr.authenticate(&Session{UserID: "u-1"})
	store.Set(Credential{Token: "t"})

	tr.terminate(context.Background(), reasonLogout)
	tr.terminate(context.Background(), reasonLogout)

	require.Equal(t, []State{StateAuthenticated, StateUnauthenticated}, changes)

	_, ok := store.Get()
	require.False(t, ok)
}

func TestTracker_RefreshedDoesNotResurrect(t *testing.T) {
	t.Parallel()

	tr, _, tickets := newTestTracker(t)
	tickets.EXPECT().Forget().AnyTimes()

	u := &identity.User{UserID: "u-1", Email: "a@b.c", Role: "viewer"}

	// из Loading refresh не аутентифицирует
	tr.refreshed(u)
	require.Equal(t, StateLoading, tr.Status().State)

	tr.terminate(context.Background(), reasonRevoked)
	tr.refreshed(u)
	require.Equal(t, StateUnauthenticated, tr.Status().State)
}

func TestTracker_RefreshedUpdatesSameUserOnly(t *testing.T) {
	t.Parallel()

	tr, _, _ := newTestTracker(t)
	tr.authenticate(&Session{UserID: "u-1", Plan: PlanFree})

	tr.refreshed(&identity.User{UserID: "u-1", Plan: "pro"})
	require.Equal(t, PlanPro, tr.Status().Session.Plan)

	tr.refreshed(&identity.User{UserID: "u-2", Plan: "enterprise"})
	require.Equal(t, "u-1", tr.Status().Session.UserID)
}

func TestTracker_RestoredOnlyFromLoading(t *testing.T) {
	t.Parallel()

	tr, _, tickets := newTestTracker(t)
	tickets.EXPECT().Forget().AnyTimes()

	tr.terminate(context.Background(), reasonLogout)
	require.False(t, tr.restored(&Session{UserID: "u-1"}))
	require.Equal(t, StateUnauthenticated, tr.Status().State)

	tr2, _, _ := newTestTracker(t)
	require.True(t, tr2.restored(&Session{UserID: "u-1"}))
	require.Equal(t, StateAuthenticated, tr2.Status().State)
}

func TestTracker_SettleUnauthenticated(t *testing.T) {
	t.Parallel()

	tr, _, _ := newTestTracker(t)
	tr.settleUnauthenticated()
	require.Equal(t, StateUnauthenticated, tr.Status().State)

	tr2, _, _ := newTestTracker(t)
	tr2.authenticate(&Session{UserID: "u-1"})
	tr2.settleUnauthenticated()
	require.Equal(t, StateAuthenticated, tr2.Status().State)
}

func TestTracker_StatusIsACopy(t *testing.T) {
	t.Parallel()

	tr, _, _ := newTestTracker(t)
	tr.authenticate(&Session{UserID: "u-1", Name: "Ann"})

	st := tr.Status()
	st.Session.Name = "Mallory"

	require.Equal(t, "Ann", tr.Status().Session.Name)
}

func TestRole_Valid(t *testing.T) {
	t.Parallel()

	for _, r := range []Role{RoleAdmin, RoleAnalyst, RoleViewer} {
		require.True(t, r.Valid(), r)
	}
	require.False(t, Role("root").Valid())
}

func TestSession_LogValueRedactsEmail(t *testing.T) {
	t.Parallel()

	s := Session{UserID: "u-1", Email: "ann@example.com"}
	require.NotContains(t, s.LogValue().String(), "ann@example.com")
}
