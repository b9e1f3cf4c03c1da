// errors стандартизирует ответы об ошибках JSON API дашборда.
// На вход принимает ошибку сессии, identity- или analytics-клиента,
// на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Источник истинности по смыслу ошибок — sentinel-ошибки пакетов
// session, identity и analytics (см. их комментарии).
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/signal-dashboard/internal/analytics"
	"github.com/pribylovaa/signal-dashboard/internal/identity"
	"github.com/pribylovaa/signal-dashboard/internal/session"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

var (
	// ErrInvalidArgument — локальная ошибка разбора запроса в хендлере.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedMediaType — тело запроса не application/json.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrCrossOrigin — изменяющий запрос пришёл с чужого origin.
	ErrCrossOrigin = errors.New("cross-origin request")
)

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку в HTTP-статус и унифицированный ответ.
//
// Порядок проверок важен: завершённая сессия важнее причины
// (например, дедлайна refresh), поэтому ErrNoSession проверяется первой.
// err == nil — программная ошибка вызова: 500/internal.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := classify(err)

	return status, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// classify — таблица маппинга:
//   - ErrCrossOrigin -> 403 forbidden, ErrUnsupportedMediaType -> 415
//   - ErrInvalidCredentials -> 401 invalid_credentials
//   - ErrNoSession (нет тикета, отказ refresh, 401 от данных) -> 401 unauthenticated
//   - Canceled -> 499, DeadlineExceeded -> 504
//   - ErrNetwork, ErrRefreshUnavailable, identity.ErrUnavailable -> 503 unavailable
//   - ErrInvalidEmail, ErrEmptyPassword, ErrInvalidArgument, analytics.ErrBadRequest -> 400
//   - identity.StatusError 409 -> 409 already_exists, прочие 4xx -> 400
//   - analytics.ErrNotFound -> 404
//   - analytics.ErrUpstream/ErrMalformed, identity.ErrMalformed -> 502 bad_gateway
//   - прочее -> 500/internal
func classify(err error) (int, string, string) {
	var ise *identity.StatusError

	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"
	case errors.Is(err, ErrCrossOrigin):
		return http.StatusForbidden, "forbidden", "forbidden"
	case errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, "unsupported_media_type", "content type must be application/json"
	case errors.Is(err, session.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid email or password"
	case errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	case errors.Is(err, session.ErrNetwork),
		errors.Is(err, session.ErrRefreshUnavailable),
		errors.Is(err, identity.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable", "service unavailable"
	case errors.Is(err, session.ErrInvalidEmail),
		errors.Is(err, session.ErrEmptyPassword),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, analytics.ErrBadRequest):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case errors.As(err, &ise) && ise.Code == http.StatusConflict:
		return http.StatusConflict, "already_exists", "already exists"
	case errors.Is(err, identity.ErrRejected):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case errors.Is(err, analytics.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, analytics.ErrUpstream),
		errors.Is(err, analytics.ErrMalformed),
		errors.Is(err, identity.ErrMalformed):
		return http.StatusBadGateway, "bad_gateway", "upstream error"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
