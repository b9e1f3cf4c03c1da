package identity

import "time"

// User — атрибуты пользователя в ответах /auth/login, /auth/refresh, /auth/me.
type User struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Plan   string `json:"plan"`
}

// Grant — разобранный ответ login/refresh: access-токен с абсолютным сроком.
type Grant struct {
	AccessToken string
	ExpiresAt   time.Time
	User        *User // может быть nil, если сервис не вернул user
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"` // секунды
	User        *User  `json:"user,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
}
