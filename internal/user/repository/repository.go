package repository

import (
	"context"
	"time"

	"laundry-service/backend/internal/user/domain"
)

// Repository defines persistence for users. Lookups return (nil, nil) when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// LockByEmail is GetByEmail holding a row lock until the surrounding transaction ends.
	LockByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// MarkEmailVerified sets email_verified for a user whose registration is still incomplete.
	// Returns false when no such user exists.
	MarkEmailVerified(ctx context.Context, id string, at time.Time) (bool, error)
	// CompleteProfile stores the profile only for a verified user without a password.
	// Returns false when the user is missing, unverified or already complete.
	CompleteProfile(ctx context.Context, id string, p domain.Profile, at time.Time) (bool, error)
}
