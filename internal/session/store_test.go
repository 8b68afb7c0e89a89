package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"laundry-service/backend/internal/memstore"
	"laundry-service/backend/internal/security"
	userdomain "laundry-service/backend/internal/user/domain"
)

func newTestStore(t *testing.T) (*Store, *memstore.DB) {
	t.Helper()
	mdb := memstore.New()
	now := time.Now().UTC()
	for _, id := range []string{"u1", "u2"} {
		u := &userdomain.User{ID: id, Email: id + "@ex.com", Role: userdomain.RoleCustomer, CreatedAt: now}
		if err := mdb.Users().Create(context.Background(), u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	return NewStore(mdb, mdb.Sessions(), 0), mdb
}

func TestStore_OpenAndIsValid(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	opened, err := s.Open(ctx, "u1", "curl/8")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened.IDHash != security.HashOneWay(opened.ID) {
		t.Fatal("IDHash should be the digest of ID")
	}
	if ok, _ := s.IsValid(ctx, "u1", opened.IDHash); !ok {
		t.Fatal("IsValid should accept the open session")
	}
	if ok, _ := s.IsValid(ctx, "u1", opened.ID); ok {
		t.Fatal("IsValid must not accept the raw id")
	}
	if ok, _ := s.IsValid(ctx, "u2", opened.IDHash); ok {
		t.Fatal("IsValid must not accept another user's session")
	}
}

func TestStore_Expiry(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	opened, _ := s.Open(ctx, "u1", "")
	now = now.Add(DefaultTTL)
	if ok, _ := s.IsValid(ctx, "u1", opened.IDHash); ok {
		t.Fatal("session should be invalid at its expiry")
	}
}

func TestStore_RevokeAll(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	a, _ := s.Open(ctx, "u1", "phone")
	b, _ := s.Open(ctx, "u1", "laptop")
	other, _ := s.Open(ctx, "u2", "")
	n, err := s.RevokeAll(ctx, "u1")
	if err != nil || n != 2 {
		t.Fatalf("RevokeAll = %d, %v; want 2", n, err)
	}
	for _, h := range []string{a.IDHash, b.IDHash} {
		if ok, _ := s.IsValid(ctx, "u1", h); ok {
			t.Fatal("revoked session still valid")
		}
	}
	if ok, _ := s.IsValid(ctx, "u2", other.IDHash); !ok {
		t.Fatal("other user's session must survive")
	}
}

func TestStore_Rotate(t *testing.T) {
	s, mdb := newTestStore(t)
	ctx := context.Background()
	opened, _ := s.Open(ctx, "u1", "")
	rotated, err := s.Rotate(ctx, "u1", opened.IDHash, "ua")
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if rotated.IDHash == opened.IDHash {
		t.Fatal("Rotate should change the session id")
	}
	if ok, _ := s.IsValid(ctx, "u1", opened.IDHash); ok {
		t.Fatal("old session should be gone")
	}
	if n, _ := mdb.Sessions().CountByUser(ctx, "u1"); n != 1 {
		t.Fatalf("sessions = %d, want 1", n)
	}
	if _, err := s.Rotate(ctx, "u1", opened.IDHash, "ua"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second Rotate of old id err = %v, want ErrSessionNotFound", err)
	}
}

func TestStore_RotateRejectsExpired(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	opened, err := s.Open(ctx, "u1", "ua")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.SetClock(func() time.Time { return time.Now().Add(DefaultTTL + time.Minute) })
	if _, err := s.Rotate(ctx, "u1", opened.IDHash, "ua"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Rotate of expired session err = %v, want ErrSessionNotFound", err)
	}
	if _, err := s.Rotate(ctx, "u2", opened.IDHash, "ua"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Rotate of another user's session err = %v, want ErrSessionNotFound", err)
	}
}
