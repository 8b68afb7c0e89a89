package repository

import (
	"context"
	"time"

	"laundry-service/backend/internal/verification/domain"
)

// Repository defines persistence for verification tokens. Tokens are never deleted.
type Repository interface {
	Create(ctx context.Context, t *domain.Token) error
	// GetActiveByUser returns the newest unused token expiring after now, or nil.
	GetActiveByUser(ctx context.Context, userID string, now time.Time) (*domain.Token, error)
	// InvalidateActive marks every unused token of the user as used and returns how many changed.
	InvalidateActive(ctx context.Context, userID string) (int64, error)
	// MarkUsed marks one unused token as used. Returns false if it was already used.
	MarkUsed(ctx context.Context, id string) (bool, error)
}
