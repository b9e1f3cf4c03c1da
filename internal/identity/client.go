// identity — HTTP-клиент удалённого identity-сервиса: вход, регистрация,
// обновление access-токена по refresh-cookie, получение профиля и выход.
//
// Клиент не хранит токены: access-токен возвращается вызывающему
// (session.Service), а refresh-cookie и CSRF-cookie живут в cookie jar
// переданного *http.Client.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	pathLogin   = "/auth/login"
	pathSignup  = "/auth/signup"
	pathRefresh = "/auth/refresh"
	pathMe      = "/auth/me"
	pathLogout  = "/auth/logout"

	// maxBody — ограничение на размер читаемого ответа.
	maxBody = 1 << 20

	// maxExpiresIn — верхняя граница expires_in в секундах (год).
	maxExpiresIn = 365 * 24 * 60 * 60
)

// Options — параметры клиента.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client // должен иметь Jar, иначе refresh-cookie некуда сохранить
	CSRFHeader string       // по умолчанию X-CSRF-Token
	Now        func() time.Time
}

// Client — клиент identity-сервиса. Безопасен для конкурентного использования.
type Client struct {
	base       *url.URL
	http       *http.Client
	csrfHeader string
	now        func() time.Time
}

// New создаёт клиент и проверяет базовый URL.
func New(opts Options) (*Client, error) {
	const op = "identity.New"

	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: parse base url: %w", op, err)
	}

	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%s: base url %q must be absolute", op, opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		return nil, fmt.Errorf("%s: http client is required", op)
	}

	if hc.Jar == nil {
		return nil, fmt.Errorf("%s: http client must have a cookie jar", op)
	}

	c := &Client{
		base:       base,
		http:       hc,
		csrfHeader: opts.CSRFHeader,
		now:        opts.Now,
	}
	if c.csrfHeader == "" {
		c.csrfHeader = "X-CSRF-Token"
	}
	if c.now == nil {
		c.now = time.Now
	}

	return c, nil
}

// URL возвращает копию базового URL (для чтения cookies из jar).
func (c *Client) URL() *url.URL {
	u := *c.base
	return &u
}

// Jar возвращает cookie jar, в котором живут refresh- и CSRF-cookie.
func (c *Client) Jar() http.CookieJar { return c.http.Jar }

// Login — POST /auth/login. Сервис выставляет refresh- и CSRF-cookie.
func (c *Client) Login(ctx context.Context, email, password string) (*Grant, error) {
	const op = "identity.Login"

	resp, err := c.do(ctx, op, http.MethodPost, pathLogin, loginRequest{Email: email, Password: password}, nil)
	if err != nil {
		return nil, err
	}

	return c.decodeGrant(op, resp)
}

// Signup — POST /auth/signup. Сессию не создаёт.
func (c *Client) Signup(ctx context.Context, email, password, name string) error {
	const op = "identity.Signup"

	resp, err := c.do(ctx, op, http.MethodPost, pathSignup, signupRequest{Email: email, Password: password, Name: name}, nil)
	if err != nil {
		return err
	}

	drain(resp)
	return nil
}

// Refresh — POST /auth/refresh с CSRF-заголовком; httponly refresh-cookie
// прикладывает cookie jar.
func (c *Client) Refresh(ctx context.Context, ticket string) (*Grant, error) {
	const op = "identity.Refresh"

	h := http.Header{}
	h.Set(c.csrfHeader, ticket)

	resp, err := c.do(ctx, op, http.MethodPost, pathRefresh, nil, h)
	if err != nil {
		return nil, err
	}

	return c.decodeGrant(op, resp)
}

// Me — GET /auth/me с Bearer-токеном.
// Принимает как плоский объект пользователя, так и обёртку {"user": {...}}.
func (c *Client) Me(ctx context.Context, accessToken string) (*User, error) {
	const op = "identity.Me"

	h := http.Header{}
	h.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.do(ctx, op, http.MethodGet, pathMe, nil, h)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w: %w", op, ErrUnavailable, err)
	}

	var wrapped struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil && wrapped.User.UserID != "" {
		return wrapped.User, nil
	}

	var flat User
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformed, err)
	}

	if flat.UserID == "" {
		return nil, fmt.Errorf("%s: %w: empty user_id", op, ErrMalformed)
	}

	return &flat, nil
}

// Logout — POST /auth/logout с CSRF-заголовком; сервис инвалидирует refresh-cookie.
// accessToken опционален.
func (c *Client) Logout(ctx context.Context, ticket, accessToken string) error {
	const op = "identity.Logout"

	h := http.Header{}
	if ticket != "" {
		h.Set(c.csrfHeader, ticket)
	}
	if accessToken != "" {
		h.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.do(ctx, op, http.MethodPost, pathLogout, nil, h)
	if err != nil {
		return err
	}

	drain(resp)
	return nil
}

// do выполняет запрос и возвращает ответ только для 2xx.
// Транспортные ошибки оборачиваются в ErrUnavailable, не-2xx — в *StatusError.
func (c *Client) do(ctx context.Context, op, method, path string, body any, header http.Header) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal body: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer drain(resp)
		return nil, &StatusError{Op: op, Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	return resp, nil
}

// decodeGrant разбирает ответ login/refresh. Срок берётся из expires_in,
// а при его отсутствии — из exp-claim JWT (без проверки подписи:
// проверка — дело backend, клиенту нужен только срок).
func (c *Client) decodeGrant(op string, resp *http.Response) (*Grant, error) {
	defer drain(resp)

	var tr tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformed, err)
	}

	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%s: %w: empty access_token", op, ErrMalformed)
	}

	if tr.ExpiresIn > maxExpiresIn {
		return nil, fmt.Errorf("%s: %w: expires_in %d out of range", op, ErrMalformed, tr.ExpiresIn)
	}

	var expiresAt time.Time
	if tr.ExpiresIn > 0 {
		expiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	} else {
		exp, err := tokenExpiry(tr.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: no expires_in and %w", op, ErrMalformed, err)
		}
		expiresAt = exp
	}

	return &Grant{AccessToken: tr.AccessToken, ExpiresAt: expiresAt, User: tr.User}, nil
}

func tokenExpiry(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, err
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}

	return claims.ExpiresAt.Time, nil
}

// errorMessage вытаскивает короткое сообщение из тела ошибки.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4<<10))

	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil {
		for _, s := range []string{er.Message, er.Detail, er.Error} {
			if s != "" {
				return s
			}
		}
	}

	return strings.TrimSpace(string(raw))
}

// drain дочитывает и закрывает тело, чтобы соединение вернулось в пул.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	_ = resp.Body.Close()
}
