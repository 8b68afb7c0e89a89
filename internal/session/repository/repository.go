package repository

import (
	"context"
	"time"

	"laundry-service/backend/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetActive returns the session with idHash owned by userID that expires after now, or nil.
	GetActive(ctx context.Context, userID, idHash string, now time.Time) (*domain.Session, error)
	// Delete removes one session. Returns false if it did not exist.
	Delete(ctx context.Context, userID, idHash string) (bool, error)
	// DeleteAllByUser removes every session of the user and returns how many were removed.
	DeleteAllByUser(ctx context.Context, userID string) (int64, error)
}
