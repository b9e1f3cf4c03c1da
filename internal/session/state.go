package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pribylovaa/signal-dashboard/internal/identity"
	logctx "github.com/pribylovaa/signal-dashboard/internal/pkg/log"
	"github.com/pribylovaa/signal-dashboard/internal/pkg/redact"
)

// Role — роль пользователя для разграничения доступа в дашборде.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
	RoleViewer  Role = "viewer"
)

// Valid сообщает, что роль входит в известный набор.
// Неизвестные роли сохраняются как есть, решение о доступе — за вызывающим.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAnalyst, RoleViewer:
		return true
	default:
		return false
	}
}

// Plan — тарифный план.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Session — логическая личность пользователя.
type Session struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Plan   Plan   `json:"plan"`
}

func (s Session) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user_id", s.UserID),
		slog.String("email", redact.Email(s.Email)),
		slog.String("role", string(s.Role)),
	)
}

func sessionFromUser(u *identity.User) *Session {
	return &Session{
		UserID: u.UserID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   Role(u.Role),
		Plan:   Plan(u.Plan),
	}
}

// State — состояние сессии, которое наблюдает RouteGuard.
type State int

const (
	StateLoading State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Status — снимок состояния. Session != nil только для StateAuthenticated.
type Status struct {
	State   State
	Session *Session
}

// Tracker владеет Session и единственный её очищает.
// Начальное состояние — StateLoading, пока не отработает Restorer или Login.
type Tracker struct {
	store   *Store
	tickets TicketReader
	metrics *metrics

	mu        sync.Mutex
	status    Status
	listeners []func(Status)
}

func newTracker(store *Store, tickets TicketReader, m *metrics) *Tracker {
	return &Tracker{
		store:   store,
		tickets: tickets,
		metrics: m,
		status:  Status{State: StateLoading},
	}
}

// Status возвращает копию текущего состояния.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	return copyStatus(t.status)
}

// OnChange регистрирует слушателя смены состояния.
// Слушатели вызываются синхронно, вне внутренней блокировки.
func (t *Tracker) OnChange(fn func(Status)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.listeners = append(t.listeners, fn)
}

func (t *Tracker) authenticate(s *Session) {
	t.set(Status{State: StateAuthenticated, Session: s})
}

// refreshed обновляет атрибуты пользователя после refresh, но только
// у уже аутентифицированной сессии: из Loading/Unauthenticated
// аутентифицируют лишь Restorer и Login.
func (t *Tracker) refreshed(u *identity.User) {
	t.swapIf(func(prev Status) bool {
		return prev.State == StateAuthenticated && prev.Session != nil && prev.Session.UserID == u.UserID
	}, Status{State: StateAuthenticated, Session: sessionFromUser(u)})
}

// restored аутентифицирует сессию, только если состояние всё ещё Loading.
func (t *Tracker) restored(s *Session) bool {
	_, ok := t.swapIf(func(prev Status) bool {
		return prev.State == StateLoading
	}, Status{State: StateAuthenticated, Session: s})

	return ok
}

// settleUnauthenticated переводит Loading в Unauthenticated без побочных
// эффектов: сессии не было, завершать нечего.
func (t *Tracker) settleUnauthenticated() {
	t.swapIf(func(prev Status) bool {
		return prev.State == StateLoading
	}, Status{State: StateUnauthenticated})
}

// terminate — fail-closed завершение: чистит токен, локально забывает
// CSRF-cookie и переводит состояние в Unauthenticated.
// Идемпотентна: повторный вызов не пишет лог и не уведомляет слушателей.
func (t *Tracker) terminate(ctx context.Context, reason string) {
	t.store.Clear()
	t.tickets.Forget()

	prev, changed := t.swap(Status{State: StateUnauthenticated})
	if !changed {
		return
	}

	t.metrics.terminated(reason)

	attrs := []any{slog.String("reason", reason), slog.String("prev", prev.State.String())}
	if prev.Session != nil {
		attrs = append(attrs, slog.String("user_id", prev.Session.UserID))
	}
	logctx.From(ctx).Info("session_terminated", attrs...)
}

func (t *Tracker) set(st Status) {
	t.swap(st)
}

// swap меняет состояние и уведомляет слушателей, если оно изменилось.
// Повторная установка Loading/Unauthenticated изменением не считается.
func (t *Tracker) swap(st Status) (Status, bool) {
	return t.swapIf(func(prev Status) bool {
		return prev.State != st.State || prev.State == StateAuthenticated
	}, st)
}

// swapIf атомарно проверяет условие и меняет состояние.
func (t *Tracker) swapIf(cond func(prev Status) bool, st Status) (Status, bool) {
	t.mu.Lock()
	prev := t.status
	if !cond(prev) {
		t.mu.Unlock()
		return prev, false
	}

	t.status = st
	listeners := append([]func(Status){}, t.listeners...)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(copyStatus(st))
	}

	return prev, true
}

func copyStatus(st Status) Status {
	if st.Session != nil {
		s := *st.Session
		st.Session = &s
	}

	return st
}
