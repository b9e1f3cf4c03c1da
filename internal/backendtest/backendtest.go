// backendtest — поддельный удалённый backend (identity + analytics) для тестов.
//
// Сервер честно ведёт себя как настоящий: выставляет httponly refresh-cookie
// и читаемую CSRF-cookie, проверяет X-CSRF-Token на refresh/logout, выпускает
// HS256 JWT и проверяет Bearer на /auth/me и данных. Счётчики вызовов
// позволяют проверять single-flight и отсутствие лишних запросов.
package backendtest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RefreshCookie = "refresh_token"
	CSRFCookie    = "csrf_token"
	CSRFHeader    = "X-CSRF-Token"

	secret = "backendtest-secret"
)

// User — учётная запись на поддельном backend.
type User struct {
	UserID   string
	Email    string
	Password string
	Name     string
	Role     string
	Plan     string
}

type refreshSession struct {
	email string
	csrf  string
}

// Server — поддельный backend поверх httptest.Server.
type Server struct {
	*httptest.Server

	LoginCalls   atomic.Int64
	RefreshCalls atomic.Int64
	MeCalls      atomic.Int64
	LogoutCalls  atomic.Int64
	DataCalls    atomic.Int64

	mu            sync.Mutex
	users         map[string]User
	sessions      map[string]refreshSession
	tokenTTL      time.Duration
	omitExpiresIn bool
	refreshStatus int
	refreshGate   chan struct{}
	meStatus      int
	revoked       bool
}

// New запускает сервер с одним пользователем.
func New(users ...User) *Server {
	s := &Server{
		users:    make(map[string]User),
		sessions: make(map[string]refreshSession),
		tokenTTL: 15 * time.Minute,
	}
	for _, u := range users {
		s.users[u.Email] = u
	}

	r := chi.NewRouter()
	r.Post("/auth/login", s.login)
	r.Post("/auth/signup", s.signup)
	r.Post("/auth/refresh", s.refresh)
	r.Get("/auth/me", s.me)
	r.Post("/auth/logout", s.logout)
	r.Get("/signals", s.data(`{"items":[{"id":"sig-1","ticker":"AAPL","score":0.82}]}`))
	r.Get("/signals/{id}", s.signal)
	r.Get("/signals/{id}/history", s.data(`{"points":[{"t":1,"v":0.5},{"t":2,"v":0.7}]}`))
	r.Get("/graph", s.data(`{"nodes":[{"id":"AAPL"}],"edges":[]}`))

	s.Server = httptest.NewServer(r)
	return s
}

// SetTokenTTL задаёт срок жизни выпускаемых access-токенов.
func (s *Server) SetTokenTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = d
}

// SetOmitExpiresIn — не отдавать expires_in (клиент берёт exp из JWT).
func (s *Server) SetOmitExpiresIn(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitExpiresIn = v
}

// SetRefreshStatus принудительно отвечает на /auth/refresh статусом code (0 — штатно).
func (s *Server) SetRefreshStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshStatus = code
}

// SetRefreshGate заставляет /auth/refresh ждать закрытия gate.
func (s *Server) SetRefreshGate(gate chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshGate = gate
}

// SetMeStatus принудительно отвечает на /auth/me статусом code (0 — штатно).
func (s *Server) SetMeStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meStatus = code
}

// RevokeAccess — все ранее выпущенные access-токены начинают получать 401.
func (s *Server) RevokeAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked = true
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.LoginCalls.Add(1)

	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	s.mu.Lock()
	u, ok := s.users[in.Email]
	s.mu.Unlock()
	if !ok || u.Password != in.Password {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.startSession(w, u)
	s.writeGrant(w, u)
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[in.Email]; ok {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	s.users[in.Email] = User{
		UserID:   "u-" + randomHex(4),
		Email:    in.Email,
		Password: in.Password,
		Name:     in.Name,
		Role:     "viewer",
		Plan:     "free",
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	s.RefreshCalls.Add(1)

	s.mu.Lock()
	gate, forced := s.refreshGate, s.refreshStatus
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if forced != 0 {
		writeError(w, forced, "forced refresh failure")
		return
	}

	c, err := r.Cookie(RefreshCookie)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing refresh cookie")
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions[c.Value]
	u := s.users[sess.email]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown refresh session")
		return
	}

	if r.Header.Get(CSRFHeader) == "" || r.Header.Get(CSRFHeader) != sess.csrf {
		writeError(w, http.StatusForbidden, "csrf mismatch")
		return
	}

	s.writeGrant(w, u)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.MeCalls.Add(1)

	s.mu.Lock()
	forced := s.meStatus
	s.mu.Unlock()

	if forced != 0 {
		writeError(w, forced, "forced me failure")
		return
	}

	u, ok := s.authorize(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	writeJSON(w, http.StatusOK, userJSON(u))
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.LogoutCalls.Add(1)

	if c, err := r.Cookie(RefreshCookie); err == nil {
		s.mu.Lock()
		sess, ok := s.sessions[c.Value]
		if ok && sess.csrf == r.Header.Get(CSRFHeader) {
			delete(s.sessions, c.Value)
		}
		s.mu.Unlock()
	}

	http.SetCookie(w, &http.Cookie{Name: RefreshCookie, Path: "/auth", MaxAge: -1, HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: CSRFCookie, Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) data(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.DataCalls.Add(1)

		if _, ok := s.authorize(r); !ok {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func (s *Server) signal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id != "sig-1" {
		s.DataCalls.Add(1)
		writeError(w, http.StatusNotFound, "signal not found")
		return
	}

	s.data(`{"id":"sig-1","ticker":"AAPL","score":0.82}`)(w, r)
}

func (s *Server) startSession(w http.ResponseWriter, u User) {
	refresh, csrf := randomHex(16), randomHex(16)

	s.mu.Lock()
	s.sessions[refresh] = refreshSession{email: u.Email, csrf: csrf}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: RefreshCookie, Value: refresh, Path: "/auth", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: CSRFCookie, Value: csrf, Path: "/"})
}

func (s *Server) writeGrant(w http.ResponseWriter, u User) {
	s.mu.Lock()
	ttl, omit := s.tokenTTL, s.omitExpiresIn
	s.mu.Unlock()

	token := s.MintToken(u.UserID, time.Now().Add(ttl))

	body := map[string]any{
		"access_token": token,
		"user":         userJSON(u),
	}
	if !omit {
		body["expires_in"] = int64(ttl / time.Second)
	}

	writeJSON(w, http.StatusOK, body)
}

// MintToken выпускает подписанный access-токен для userID.
func (s *Server) MintToken(userID string, exp time.Time) string {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}

	return signed
}

// SeedSession заводит refresh-сессию для email и возвращает значения cookies
// (для сценариев «перезагрузки», когда jar уже содержит cookies).
func (s *Server) SeedSession(email string) (refresh, csrf string) {
	refresh, csrf = randomHex(16), randomHex(16)

	s.mu.Lock()
	s.sessions[refresh] = refreshSession{email: email, csrf: csrf}
	s.mu.Unlock()

	return refresh, csrf
}

// SeedJar кладёт в jar cookies свежей refresh-сессии для email.
func (s *Server) SeedJar(jar http.CookieJar, email string) {
	refresh, csrf := s.SeedSession(email)

	u, err := url.Parse(s.URL)
	if err != nil {
		panic(err)
	}

	jar.SetCookies(u, []*http.Cookie{
		{Name: RefreshCookie, Value: refresh, Path: "/auth", HttpOnly: true},
		{Name: CSRFCookie, Value: csrf, Path: "/"},
	})
}

func (s *Server) authorize(r *http.Request) (User, bool) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return User{}, false
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return User{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revoked {
		return User{}, false
	}

	for _, u := range s.users {
		if u.UserID == claims.Subject {
			return u, true
		}
	}

	return User{}, false
}

func userJSON(u User) map[string]string {
	return map[string]string{
		"user_id": u.UserID,
		"email":   u.Email,
		"name":    u.Name,
		"role":    u.Role,
		"plan":    u.Plan,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
