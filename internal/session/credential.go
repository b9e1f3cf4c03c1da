package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pribylovaa/signal-dashboard/internal/pkg/redact"
)

// Credential — access-токен и абсолютный момент его истечения.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// ValidAt сообщает, что до истечения токена остаётся строго больше buffer.
// Ровно buffer — уже «истекает».
func (c Credential) ValidAt(now time.Time, buffer time.Duration) bool {
	return c.Token != "" && c.ExpiresAt.Sub(now) > buffer
}

func (c Credential) String() string {
	return fmt.Sprintf("Credential{token=%s expires_at=%s}", redact.Token(), c.ExpiresAt.UTC().Format(time.RFC3339))
}

func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("token", redact.Token()),
		slog.Time("expires_at", c.ExpiresAt),
	)
}

// Store — CredentialStore: текущий access-токен только в памяти процесса.
// Никуда не сериализуется и не покидает процесс.
type Store struct {
	mu   sync.RWMutex
	cred Credential
	ok   bool
	gen  uint64 // растёт на каждом Set/Clear
}

func NewStore() *Store { return &Store{} }

func (s *Store) Get() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cred, s.ok
}

func (s *Store) Set(c Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred, s.ok = c, true
	s.gen++
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred, s.ok = Credential{}, false
	s.gen++
}

// setIf записывает c, только если с поколения observed хранилище не менялось.
func (s *Store) setIf(observed uint64, c Credential) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != observed {
		return false
	}

	s.cred, s.ok = c, true
	s.gen++

	return true
}

// snapshot возвращает значение вместе с поколением, в котором оно наблюдалось.
func (s *Store) snapshot() (Credential, bool, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cred, s.ok, s.gen
}
