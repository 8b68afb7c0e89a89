package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"laundry-service/backend/internal/db"
	"laundry-service/backend/internal/verification/domain"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a verification token repository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists the token. The token must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.Token) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO verification_tokens (id, user_id, token_hash, used, created_at, expires_at)
		VALUES ($1::text::uuid, $2::text::uuid, $3, $4, $5, $6)`,
		t.ID, t.UserID, t.TokenHash, t.Used, t.CreatedAt, t.ExpiresAt)
	return err
}

// GetActiveByUser returns the newest unused, unexpired token for the user, or nil if none.
func (r *PostgresRepository) GetActiveByUser(ctx context.Context, userID string, now time.Time) (*domain.Token, error) {
	var t domain.Token
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id::text, user_id::text, token_hash, used, created_at, expires_at
		FROM verification_tokens
		WHERE user_id = $1::text::uuid AND NOT used AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1`, userID, now).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.Used, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// InvalidateActive marks all unused tokens for the user as used, expired ones included,
// so the partial unique index on unused tokens admits the next one.
func (r *PostgresRepository) InvalidateActive(ctx context.Context, userID string) (int64, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE verification_tokens SET used = TRUE WHERE user_id = $1::text::uuid AND NOT used`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkUsed marks the token as used if it is not already.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id string) (bool, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE verification_tokens SET used = TRUE WHERE id = $1::text::uuid AND NOT used`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
