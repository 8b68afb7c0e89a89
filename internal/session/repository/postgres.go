package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"laundry-service/backend/internal/db"
	"laundry-service/backend/internal/session/domain"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a session repository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists the session. The session must have IDHash set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO sessions (id_hash, user_id, user_agent, created_at, expires_at)
		VALUES ($1, $2::text::uuid, $3, $4, $5)`,
		s.IDHash, s.UserID, s.UserAgent, s.CreatedAt, s.ExpiresAt)
	return err
}

// GetActive returns the unexpired session for the user and id hash, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetActive(ctx context.Context, userID, idHash string, now time.Time) (*domain.Session, error) {
	var s domain.Session
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id_hash, user_id::text, user_agent, created_at, expires_at
		FROM sessions
		WHERE id_hash = $1 AND user_id = $2::text::uuid AND expires_at > $3`, idHash, userID, now).
		Scan(&s.IDHash, &s.UserID, &s.UserAgent, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Delete removes the session with idHash owned by userID.
func (r *PostgresRepository) Delete(ctx context.Context, userID, idHash string) (bool, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM sessions WHERE id_hash = $1 AND user_id = $2::text::uuid`, idHash, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteAllByUser removes all sessions of the user.
func (r *PostgresRepository) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM sessions WHERE user_id = $1::text::uuid`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
