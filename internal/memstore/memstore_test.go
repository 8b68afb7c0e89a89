package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	sessiondomain "laundry-service/backend/internal/session/domain"
	userdomain "laundry-service/backend/internal/user/domain"
	verificationdomain "laundry-service/backend/internal/verification/domain"
)

func seedUser(t *testing.T, d *DB, id, email string) {
	t.Helper()
	now := time.Now().UTC()
	u := &userdomain.User{ID: id, Email: email, Role: userdomain.RoleCustomer, CreatedAt: now, UpdatedAt: now}
	if err := d.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("Create user: %v", err)
	}
}

func TestUserRepo_DuplicateEmail(t *testing.T) {
	d := New()
	seedUser(t, d, "u1", "a@ex.com")
	err := d.Users().Create(context.Background(), &userdomain.User{ID: "u2", Email: "a@ex.com"})
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatalf("Create duplicate: err = %v, want *pgconn.PgError", err)
	}
	if pgErr.Code != "23505" || pgErr.ConstraintName != "users_email_key" {
		t.Errorf("code=%s constraint=%s", pgErr.Code, pgErr.ConstraintName)
	}
}

func TestDB_WithinTx_RollsBack(t *testing.T) {
	d := New()
	ctx := context.Background()
	boom := errors.New("boom")
	err := d.WithinTx(ctx, func(ctx context.Context) error {
		seedUser(t, d, "u1", "a@ex.com")
		if _, err := d.Users().GetByID(ctx, "u1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx err = %v, want boom", err)
	}
	u, err := d.Users().GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if u != nil {
		t.Fatal("user created inside a failed transaction should be rolled back")
	}
}

func TestDB_WithinTx_Nested(t *testing.T) {
	d := New()
	ctx := context.Background()
	err := d.WithinTx(ctx, func(ctx context.Context) error {
		return d.WithinTx(ctx, func(ctx context.Context) error {
			return d.Users().Create(ctx, &userdomain.User{ID: "u1", Email: "a@ex.com"})
		})
	})
	if err != nil {
		t.Fatalf("nested WithinTx: %v", err)
	}
	if u, _ := d.Users().GetByEmail(ctx, "a@ex.com"); u == nil {
		t.Fatal("nested transaction should commit with the outer one")
	}
}

func TestUserRepo_GuardedUpdates(t *testing.T) {
	d := New()
	ctx := context.Background()
	seedUser(t, d, "u1", "a@ex.com")
	now := time.Now().UTC()

	ok, err := d.Users().CompleteProfile(ctx, "u1", userdomain.Profile{PasswordHash: "h"}, now)
	if err != nil || ok {
		t.Fatalf("CompleteProfile on unverified user = %v, %v; want false", ok, err)
	}
	if ok, _ := d.Users().MarkEmailVerified(ctx, "u1", now); !ok {
		t.Fatal("MarkEmailVerified should succeed")
	}
	if ok, _ := d.Users().CompleteProfile(ctx, "u1", userdomain.Profile{PasswordHash: "h", Name: "X"}, now); !ok {
		t.Fatal("CompleteProfile on verified user should succeed")
	}
	if ok, _ := d.Users().CompleteProfile(ctx, "u1", userdomain.Profile{PasswordHash: "h2"}, now); ok {
		t.Fatal("CompleteProfile on a complete user should not match")
	}
	if ok, _ := d.Users().MarkEmailVerified(ctx, "u1", now); ok {
		t.Fatal("MarkEmailVerified on a complete user should not match")
	}
	u, _ := d.Users().GetByID(ctx, "u1")
	if u.PasswordHash == nil || *u.PasswordHash != "h" || u.Name != "X" {
		t.Fatalf("user = %+v", u)
	}
}

func TestTokenRepo_OneUnusedPerUser(t *testing.T) {
	d := New()
	ctx := context.Background()
	seedUser(t, d, "u1", "a@ex.com")
	now := time.Now().UTC()
	tok := func(id string) *verificationdomain.Token {
		return &verificationdomain.Token{ID: id, UserID: "u1", TokenHash: id, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	}
	if err := d.Tokens().Create(ctx, tok("t1")); err != nil {
		t.Fatalf("Create t1: %v", err)
	}
	if err := d.Tokens().Create(ctx, tok("t2")); err == nil {
		t.Fatal("second unused token should violate the one-unused rule")
	}
	if n, _ := d.Tokens().InvalidateActive(ctx, "u1"); n != 1 {
		t.Fatalf("InvalidateActive = %d, want 1", n)
	}
	if err := d.Tokens().Create(ctx, tok("t2")); err != nil {
		t.Fatalf("Create t2 after invalidation: %v", err)
	}
	if err := d.Tokens().Create(ctx, &verificationdomain.Token{ID: "t3", UserID: "missing"}); err == nil {
		t.Fatal("token for unknown user should violate the foreign key")
	}
}

func TestSessionRepo_ExpiryAndOwner(t *testing.T) {
	d := New()
	ctx := context.Background()
	seedUser(t, d, "u1", "a@ex.com")
	now := time.Now().UTC()
	s := &sessiondomain.Session{IDHash: "h1", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := d.Sessions().Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got, _ := d.Sessions().GetActive(ctx, "u1", "h1", now); got == nil {
		t.Fatal("GetActive should find the session")
	}
	if got, _ := d.Sessions().GetActive(ctx, "u2", "h1", now); got != nil {
		t.Fatal("GetActive must not return another user's session")
	}
	if got, _ := d.Sessions().GetActive(ctx, "u1", "h1", now.Add(2*time.Hour)); got != nil {
		t.Fatal("expired session should be treated as missing")
	}
	if n, _ := d.Sessions().DeleteAllByUser(ctx, "u1"); n != 1 {
		t.Fatalf("DeleteAllByUser = %d, want 1", n)
	}
}
