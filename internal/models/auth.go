// Входные/выходные модели JSON API дашборда.
package models

import "github.com/pribylovaa/signal-dashboard/internal/session"

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type AuthSignupResponse struct {
	Ok bool `json:"ok"`
}

type SessionUser struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Plan   string `json:"plan"`
}

// SessionResponse — состояние сессии для фронта. Токенов здесь нет и быть не должно.
type SessionResponse struct {
	State string       `json:"state"`
	User  *SessionUser `json:"user"`
}

func SessionFromStatus(st session.Status) SessionResponse {
	return SessionResponse{State: st.State.String(), User: UserFromSession(st.Session)}
}

func UserFromSession(s *session.Session) *SessionUser {
	if s == nil {
		return nil
	}

	return &SessionUser{
		UserID: s.UserID,
		Email:  s.Email,
		Name:   s.Name,
		Role:   string(s.Role),
		Plan:   string(s.Plan),
	}
}
