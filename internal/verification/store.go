// Package verification issues and consumes single-use email verification codes.
// At most one code per user is active (unused and unexpired) at any time.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"laundry-service/backend/internal/db"
	"laundry-service/backend/internal/security"
	"laundry-service/backend/internal/verification/domain"
	"laundry-service/backend/internal/verification/repository"
)

const (
	// DefaultTTL is how long a code stays valid.
	DefaultTTL = time.Hour
	// DefaultCooldown is the minimum age of the active code before a resend may replace it.
	DefaultCooldown = 60 * time.Second
)

// ErrInvalidCode is returned by Consume for a wrong, expired, used or foreign code.
var ErrInvalidCode = errors.New("invalid or expired verification code")

// CooldownError is returned by Reissue while the active code is younger than the cooldown.
type CooldownError struct {
	Wait time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("verification code resent too soon, retry in %s", e.Wait)
}

// UserVerifier flips the email-verified flag of an incomplete user.
type UserVerifier interface {
	MarkEmailVerified(ctx context.Context, id string, at time.Time) (bool, error)
}

// Issued is a freshly issued code. Code is the only place the plaintext exists.
type Issued struct {
	TokenID   string
	Code      string
	CodeHash  string
	ExpiresAt time.Time
}

// Store manages verification codes on top of the token repository.
type Store struct {
	tx       db.Transactor
	tokens   repository.Repository
	users    UserVerifier
	ttl      time.Duration
	cooldown time.Duration
	nowF     func() time.Time
}

// NewStore returns a Store. Zero ttl or cooldown selects the defaults.
func NewStore(tx db.Transactor, tokens repository.Repository, users UserVerifier, ttl, cooldown time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Store{
		tx:       tx,
		tokens:   tokens,
		users:    users,
		ttl:      ttl,
		cooldown: cooldown,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. For tests.
func (s *Store) SetClock(now func() time.Time) { s.nowF = now }

// TTL returns the code lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Issue invalidates any unused code of the user and persists a new one.
func (s *Store) Issue(ctx context.Context, userID string) (*Issued, error) {
	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}
	now := s.nowF()
	t := &domain.Token{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: security.HashOneWay(code),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.tokens.InvalidateActive(ctx, userID); err != nil {
			return err
		}
		return s.tokens.Create(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return &Issued{TokenID: t.ID, Code: code, CodeHash: t.TokenHash, ExpiresAt: t.ExpiresAt}, nil
}

// Consume checks submitted against the user's active code and, in one transaction, marks
// the code used and the user verified. submitted may be the raw code or its digest.
func (s *Store) Consume(ctx context.Context, userID, submitted string) error {
	if submitted == "" {
		return ErrInvalidCode
	}
	digest := submitted
	if !security.IsDigest(submitted) {
		digest = security.HashOneWay(submitted)
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.nowF()
		t, err := s.tokens.GetActiveByUser(ctx, userID, now)
		if err != nil {
			return err
		}
		if t == nil || !security.DigestEqual(digest, t.TokenHash) {
			return ErrInvalidCode
		}
		ok, err := s.tokens.MarkUsed(ctx, t.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidCode
		}
		ok, err = s.users.MarkEmailVerified(ctx, userID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidCode
		}
		return nil
	})
}

// FindActive returns the user's active code, or nil when there is none.
func (s *Store) FindActive(ctx context.Context, userID string) (*domain.Token, error) {
	return s.tokens.GetActiveByUser(ctx, userID, s.nowF())
}

// Reissue replaces the active code unless it is younger than the cooldown, in which case
// it returns a *CooldownError with the remaining wait rounded up to whole seconds.
func (s *Store) Reissue(ctx context.Context, userID string) (*Issued, error) {
	var issued *Issued
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		active, err := s.FindActive(ctx, userID)
		if err != nil {
			return err
		}
		if active != nil {
			if elapsed := s.nowF().Sub(active.CreatedAt); elapsed < s.cooldown {
				wait := math.Ceil((s.cooldown - elapsed).Seconds())
				return &CooldownError{Wait: time.Duration(wait) * time.Second}
			}
		}
		issued, err = s.Issue(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}
