package identity

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRejected — identity-сервис ответил не-2xx со статусом < 500
	// (неверные учётные данные, отозванный refresh, битый CSRF, дубликат e-mail).
	ErrRejected = errors.New("identity: request rejected")

	// ErrUnauthorized — частный случай ErrRejected: 401/403.
	ErrUnauthorized = errors.New("identity: unauthorized")

	// ErrUnavailable — транспортная ошибка или 5xx: исход неизвестен,
	// вызывающий может повторить попытку.
	ErrUnavailable = errors.New("identity: service unavailable")

	// ErrMalformed — 2xx, но тело ответа не удалось разобрать
	// (нет access_token или срока действия).
	ErrMalformed = errors.New("identity: malformed response")
)

// StatusError — не-2xx ответ identity-сервиса.
// Через errors.Is сопоставляется с ErrRejected/ErrUnauthorized (4xx)
// или ErrUnavailable (5xx).
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Message)
	}

	return fmt.Sprintf("%s: status %d", e.Op, e.Code)
}

func (e *StatusError) Unwrap() []error {
	switch {
	case e.Code >= http.StatusInternalServerError:
		return []error{ErrUnavailable}
	case e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden:
		return []error{ErrRejected, ErrUnauthorized}
	default:
		return []error{ErrRejected}
	}
}
