// session — менеджер аутентифицированной сессии дашборда.
//
// Пакет держит access-токен только в памяти процесса (Store), координирует
// его обновление по refresh-cookie (Refresher, single-flight), однократно
// восстанавливает сессию при старте (Restorer) и подписывает исходящие
// запросы к данным (Executor). Состояние сессии (Tracker) наблюдают
// RouteGuard и HTTP-слой.
//
// Основные аспекты:
//   - Глобального состояния нет: каждый Service владеет своими Store и Tracker,
//     несколько экземпляров могут жить рядом (в тестах так и делается).
//   - Ошибки обновления и 401 не «всплывают» как исключения: они завершают
//     сессию (fail-closed), а вызывающий получает ошибку, матчащуюся с ErrNoSession.
//   - Ошибки login/signup возвращаются форме как есть (ErrInvalidCredentials, ErrNetwork).
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pribylovaa/signal-dashboard/internal/config"
	"github.com/pribylovaa/signal-dashboard/internal/identity"
	logctx "github.com/pribylovaa/signal-dashboard/internal/pkg/log"
	"github.com/pribylovaa/signal-dashboard/internal/pkg/redact"
)

//go:generate mockgen -source=service.go -destination=mocks/identity.go -package=mocks

// IdentityClient — операции удалённого identity-сервиса, нужные сессии.
type IdentityClient interface {
	Login(ctx context.Context, email, password string) (*identity.Grant, error)
	Signup(ctx context.Context, email, password, name string) error
	Refresh(ctx context.Context, ticket string) (*identity.Grant, error)
	Me(ctx context.Context, accessToken string) (*identity.User, error)
	Logout(ctx context.Context, ticket, accessToken string) error
}

// Deps — внешние зависимости Service.
type Deps struct {
	Identity IdentityClient
	Tickets  TicketReader
	// HTTPClient отправляет подписанные запросы к данным. По умолчанию http.DefaultClient.
	HTTPClient Doer
	// Registerer для метрик; nil — метрики не регистрируются.
	Registerer prometheus.Registerer
	Now        func() time.Time
}

// Service — сессия одного процесса дашборда.
type Service struct {
	identity IdentityClient
	tickets  TicketReader

	store     *Store
	tracker   *Tracker
	refresher *Refresher
	restorer  *Restorer
	executor  *Executor

	restoreOnce sync.Once
	restored    chan struct{}
}

// New собирает Service. Начальное состояние — StateLoading.
func New(deps Deps, cfg config.SessionConfig) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	m := newMetrics(deps.Registerer)
	store := NewStore()
	tracker := newTracker(store, deps.Tickets, m)

	refresher := &Refresher{
		store:             store,
		tickets:           deps.Tickets,
		identity:          deps.Identity,
		tracker:           tracker,
		metrics:           m,
		buffer:            cfg.ExpiryBuffer,
		timeout:           cfg.RefreshTimeout,
		keepOnUnavailable: cfg.KeepOnUnavailable,
		now:               now,
	}
	if refresher.timeout <= 0 {
		refresher.timeout = 15 * time.Second
	}

	return &Service{
		identity:  deps.Identity,
		tickets:   deps.Tickets,
		store:     store,
		tracker:   tracker,
		refresher: refresher,
		restorer: &Restorer{
			tickets:   deps.Tickets,
			refresher: refresher,
			identity:  deps.Identity,
			tracker:   tracker,
		},
		executor: &Executor{
			refresher: refresher,
			store:     store,
			tracker:   tracker,
			client:    client,
		},
		restored: make(chan struct{}),
	}
}

// Restore восстанавливает сессию один раз за жизнь Service.
// Повторные вызовы возвращают текущую сессию без сетевых запросов.
func (s *Service) Restore(ctx context.Context) *Session {
	s.restoreOnce.Do(func() {
		defer close(s.restored)
		s.restorer.Restore(ctx)
	})

	return s.Status().Session
}

// Restored закрывается, когда Restore завершился.
func (s *Service) Restored() <-chan struct{} { return s.restored }

// Acquire — см. Refresher.Acquire.
func (s *Service) Acquire(ctx context.Context) (Credential, error) {
	return s.refresher.Acquire(ctx)
}

// Executor возвращает исполнитель подписанных запросов.
func (s *Service) Executor() *Executor { return s.executor }

// Do — см. Executor.Do.
func (s *Service) Do(req *http.Request) (*http.Response, error) {
	return s.executor.Do(req)
}

func (s *Service) Status() Status { return s.tracker.Status() }

func (s *Service) OnChange(fn func(Status)) { s.tracker.OnChange(fn) }

// Login входит по e-mail и паролю. При успехе сохраняет токен и сессию.
// Неудачный вход существующую сессию не трогает.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	const op = "session.Login"

	lg := logctx.From(ctx).With(slog.String("op", op), slog.String("email", redact.Email(email)))

	email, err := normalizeEmail(email)
	if err != nil || password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	grant, err := s.identity.Login(ctx, email, password)
	if err != nil {
		lg.Info("login_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, classify(err, ErrInvalidCredentials))
	}

	u := grant.User
	if u == nil {
		if u, err = s.identity.Me(ctx, grant.AccessToken); err != nil {
			lg.Warn("login_identity_failed", slog.String("err", err.Error()))
			return nil, fmt.Errorf("%s: %w", op, classify(err, ErrInvalidCredentials))
		}
	}

	s.store.Set(Credential{Token: grant.AccessToken, ExpiresAt: grant.ExpiresAt})

	sess := sessionFromUser(u)
	s.tracker.authenticate(sess)
	lg.Info("login_succeeded", slog.String("user_id", sess.UserID))

	return sess, nil
}

// Signup регистрирует пользователя. Сессию не открывает.
func (s *Service) Signup(ctx context.Context, email, password, name string) error {
	const op = "session.Signup"

	email, err := normalizeEmail(email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if password == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if err := s.identity.Signup(ctx, email, password, strings.TrimSpace(name)); err != nil {
		logctx.From(ctx).Info("signup_failed",
			slog.String("op", op),
			slog.String("email", redact.Email(email)),
			slog.String("err", err.Error()),
		)

		if errors.Is(err, identity.ErrUnavailable) {
			return fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Logout сначала завершает сессию локально, затем уведомляет identity-сервис.
// Ошибка сервиса возвращается, но локальная сессия уже закрыта.
func (s *Service) Logout(ctx context.Context) error {
	const op = "session.Logout"

	ticket, hasTicket := s.tickets.Ticket()
	cred, _ := s.store.Get()

	s.tracker.terminate(ctx, reasonLogout)

	if !hasTicket {
		return nil
	}

	if err := s.identity.Logout(ctx, ticket, cred.Token); err != nil {
		logctx.From(ctx).Warn("logout_remote_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)

		if errors.Is(err, identity.ErrUnavailable) {
			return fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// classify сводит ошибку identity-клиента к ошибке формы.
func classify(err, unauthorized error) error {
	switch {
	case errors.Is(err, identity.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	case errors.Is(err, identity.ErrUnauthorized):
		return unauthorized
	default:
		return err
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}

	return email, nil
}
