package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession — сессии нет: access-токен получить нельзя.
	// Транспорт BFF: 401 unauthenticated; RouteGuard уводит на публичную страницу.
	ErrNoSession = errors.New("session: no session")

	// ErrMissingRefreshTicket — в jar нет CSRF-cookie: пользователь не входил
	// (или вышел). Сетевой попытки не было.
	ErrMissingRefreshTicket = fmt.Errorf("%w: missing refresh ticket", ErrNoSession)

	// ErrRefreshRejected — identity-сервис явно отказал в обновлении (4xx)
	// или вернул непригодный ответ. Сессия завершена.
	ErrRefreshRejected = fmt.Errorf("%w: refresh rejected", ErrNoSession)

	// ErrRefreshUnavailable — обновление не удалось на транспорте или 5xx.
	// Если сессия при этом завершена, ошибка дополнительно матчится с ErrNoSession.
	ErrRefreshUnavailable = errors.New("session: refresh unavailable")

	// ErrAuthorizationRevoked — backend ответил 401 на запрос с действующим
	// по сроку токеном. Сессия завершена.
	ErrAuthorizationRevoked = fmt.Errorf("%w: authorization revoked", ErrNoSession)

	// ErrInvalidCredentials — неверная пара e-mail/пароль при входе.
	// Транспорт BFF: 401 invalid_credentials.
	ErrInvalidCredentials = errors.New("session: invalid credentials")

	// ErrInvalidEmail — e-mail не проходит проверку формата (до похода в сеть).
	// Транспорт BFF: 400 invalid_argument.
	ErrInvalidEmail = errors.New("session: invalid email format")

	// ErrEmptyPassword — пароль пустой. Транспорт BFF: 400 invalid_argument.
	ErrEmptyPassword = errors.New("session: password is empty")

	// ErrNetwork — identity-сервис недоступен при login/signup/logout.
	// Существующую сессию не трогает; форма может предложить повторить.
	ErrNetwork = errors.New("session: network failure")
)

// Причины завершения сессии (метка метрики и поле лога).
const (
	reasonLogout             = "logout"
	reasonMissingTicket      = "missing_ticket"
	reasonRefreshRejected    = "refresh_rejected"
	reasonRefreshUnavailable = "refresh_unavailable"
	reasonRevoked            = "revoked"
	reasonIdentityLookup     = "identity_lookup_failed"
)
