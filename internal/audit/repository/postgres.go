package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"laundry-service/backend/internal/audit/domain"
	"laundry-service/backend/internal/db"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an audit log repository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO audit_logs (id, user_id, action, resource, ip, metadata, created_at)
		VALUES ($1::text::uuid, $2, $3, $4, $5, $6, $7)`,
		a.ID, nullString(a.UserID), a.Action, a.Resource, a.IP, nullString(a.Metadata), a.CreatedAt)
	return err
}

// ListRecent returns up to limit audit logs, newest first.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id::text, COALESCE(user_id, ''), action, resource, ip, COALESCE(metadata, ''), created_at
		FROM audit_logs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &a.Resource, &a.IP, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
