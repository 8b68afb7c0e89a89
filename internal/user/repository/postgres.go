package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"laundry-service/backend/internal/db"
	"laundry-service/backend/internal/user/domain"
)

const userColumns = `id::text, email, password_hash, email_verified, name, phone, role::text, outlet_id, created_at, updated_at`

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a user repository that uses the given pool for persistence.
// Statements join the transaction carried on the context, if any.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1::text::uuid`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// LockByEmail returns the user with the given email and locks the row FOR UPDATE.
// Only meaningful inside a transaction.
func (r *PostgresRepository) LockByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 FOR UPDATE`, email)
	return scanUser(row)
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
// A duplicate email surfaces as a unique violation on the email column.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO users (id, email, password_hash, email_verified, name, phone, role, outlet_id, created_at, updated_at)
		VALUES ($1::text::uuid, $2, $3, $4, $5, $6, $7::text::user_role, $8, $9, $10)`,
		u.ID, u.Email, u.PasswordHash, u.EmailVerified, nullString(u.Name), nullString(u.Phone),
		string(u.Role), u.OutletID, u.CreatedAt, u.UpdatedAt)
	return err
}

// MarkEmailVerified flips email_verified for an incomplete user.
func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET email_verified = TRUE, updated_at = $2
		WHERE id = $1::text::uuid AND password_hash IS NULL`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteProfile sets the password hash and profile fields on a verified, incomplete user.
func (r *PostgresRepository) CompleteProfile(ctx context.Context, id string, p domain.Profile, at time.Time) (bool, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET password_hash = $2, name = $3, phone = $4, updated_at = $5
		WHERE id = $1::text::uuid AND email_verified AND password_hash IS NULL`,
		id, p.PasswordHash, nullString(p.Name), nullString(p.Phone), at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u     domain.User
		name  *string
		phone *string
		role  string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerified, &name, &phone, &role, &u.OutletID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if name != nil {
		u.Name = *name
	}
	if phone != nil {
		u.Phone = *phone
	}
	u.Role = domain.Role(role)
	return &u, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
