// Package session keeps the server-side session rows that back refresh tokens.
package session

import (
	"context"
	"errors"
	"time"

	"laundry-service/backend/internal/db"
	"laundry-service/backend/internal/security"
	"laundry-service/backend/internal/session/domain"
	"laundry-service/backend/internal/session/repository"
)

// DefaultTTL is the session lifetime, matching the refresh token.
const DefaultTTL = 7 * 24 * time.Hour

const sessionIDBytes = 32

// ErrSessionNotFound is returned by Rotate when the session is missing, expired or already rotated.
var ErrSessionNotFound = errors.New("session not found")

// Opened is a newly created session. ID is the raw id to embed in the refresh token.
type Opened struct {
	ID        string
	IDHash    string
	ExpiresAt time.Time
}

// Store opens, validates, rotates and revokes sessions.
type Store struct {
	tx   db.Transactor
	repo repository.Repository
	ttl  time.Duration
	nowF func() time.Time
}

// NewStore returns a Store. Zero ttl selects DefaultTTL.
func NewStore(tx db.Transactor, repo repository.Repository, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{tx: tx, repo: repo, ttl: ttl, nowF: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the time source. For tests.
func (s *Store) SetClock(now func() time.Time) { s.nowF = now }

// Open creates a session with a random id. Only the id's digest is persisted.
func (s *Store) Open(ctx context.Context, userID, userAgent string) (*Opened, error) {
	id, err := security.RandomHex(sessionIDBytes)
	if err != nil {
		return nil, err
	}
	now := s.nowF()
	sess := &domain.Session{
		IDHash:    security.HashOneWay(id),
		UserID:    userID,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &Opened{ID: id, IDHash: sess.IDHash, ExpiresAt: sess.ExpiresAt}, nil
}

// RevokeAll deletes every session of the user and returns how many were removed.
func (s *Store) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return s.repo.DeleteAllByUser(ctx, userID)
}

// IsValid reports whether an unexpired session with idHash exists for the user.
func (s *Store) IsValid(ctx context.Context, userID, idHash string) (bool, error) {
	sess, err := s.repo.GetActive(ctx, userID, idHash, s.nowF())
	if err != nil {
		return false, err
	}
	return sess != nil, nil
}

// Rotate replaces the session idHash with a new one in one transaction. The session must
// pass IsValid first. Of two concurrent rotations of the same session only one succeeds.
func (s *Store) Rotate(ctx context.Context, userID, idHash, userAgent string) (*Opened, error) {
	var opened *Opened
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		valid, err := s.IsValid(ctx, userID, idHash)
		if err != nil {
			return err
		}
		if !valid {
			return ErrSessionNotFound
		}
		deleted, err := s.repo.Delete(ctx, userID, idHash)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrSessionNotFound
		}
		opened, err = s.Open(ctx, userID, userAgent)
		return err
	})
	if err != nil {
		return nil, err
	}
	return opened, nil
}
