// Package devcode keeps the last issued plaintext verification code per email, used only
// when the dev code endpoint is enabled (GET /dev/verification-code).
package devcode

import (
	"strings"
	"sync"
	"time"
)

// Store holds plain codes by email for dev-only retrieval. Not used in production.
type Store interface {
	// Put records code as the latest for email.
	Put(email, code string)
	// Get returns the latest code for email if present and not expired.
	Get(email string) (code string, ok bool)
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	ttl  time.Duration
	nowF func() time.Time
}

// NewMemoryStore returns a store whose entries live for ttl (the verification code TTL).
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryStore{
		m:    make(map[string]entry),
		ttl:  ttl,
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put records code for email, replacing any earlier one.
func (s *MemoryStore) Put(email, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key(email)] = entry{code: code, expiresAt: s.nowF().Add(s.ttl)}
}

// Get returns the code for email if present and not expired.
func (s *MemoryStore) Get(email string) (string, bool) {
	k := key(email)
	s.mu.RLock()
	e, ok := s.m[k]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, k)
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}

func key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
