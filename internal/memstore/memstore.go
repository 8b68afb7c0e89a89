// Package memstore is an in-memory implementation of the user, verification token,
// session and audit repositories. It backs unit tests and local runs without Postgres.
// Transactions are serialized by a single mutex and roll back on error.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	auditdomain "laundry-service/backend/internal/audit/domain"
	sessiondomain "laundry-service/backend/internal/session/domain"
	userdomain "laundry-service/backend/internal/user/domain"
	verificationdomain "laundry-service/backend/internal/verification/domain"
)

type txKey struct{ db *DB }

type state struct {
	users    map[string]*userdomain.User
	tokens   map[string]*verificationdomain.Token
	sessions map[string]*sessiondomain.Session
	audit    []*auditdomain.AuditLog
}

// DB holds all rows in memory.
type DB struct {
	mu sync.Mutex
	st state
}

// New returns an empty DB.
func New() *DB {
	return &DB{st: state{
		users:    make(map[string]*userdomain.User),
		tokens:   make(map[string]*verificationdomain.Token),
		sessions: make(map[string]*sessiondomain.Session),
	}}
}

// WithinTx runs fn holding the store lock. State changes made by fn are discarded if it
// returns an error. Nested calls join the outer transaction.
func (d *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if d.inTx(ctx) {
		return fn(ctx)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	snap := d.st.clone()
	if err := fn(context.WithValue(ctx, txKey{db: d}, true)); err != nil {
		d.st = snap
		return err
	}
	return nil
}

// Ping always succeeds.
func (d *DB) Ping(context.Context) error { return nil }

func (d *DB) inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{db: d}).(bool)
	return v
}

// run executes fn under the lock unless ctx already holds it.
func (d *DB) run(ctx context.Context, fn func(st *state) error) error {
	if !d.inTx(ctx) {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&d.st)
}

func (s state) clone() state {
	out := state{
		users:    make(map[string]*userdomain.User, len(s.users)),
		tokens:   make(map[string]*verificationdomain.Token, len(s.tokens)),
		sessions: make(map[string]*sessiondomain.Session, len(s.sessions)),
		audit:    append([]*auditdomain.AuditLog(nil), s.audit...),
	}
	for k, v := range s.users {
		out.users[k] = copyUser(v)
	}
	for k, v := range s.tokens {
		t := *v
		out.tokens[k] = &t
	}
	for k, v := range s.sessions {
		sess := *v
		out.sessions[k] = &sess
	}
	return out
}

func copyUser(u *userdomain.User) *userdomain.User {
	cp := *u
	if u.PasswordHash != nil {
		h := *u.PasswordHash
		cp.PasswordHash = &h
	}
	if u.OutletID != nil {
		o := *u.OutletID
		cp.OutletID = &o
	}
	return &cp
}

func uniqueViolation(table, column, value string) error {
	return &pgconn.PgError{
		Severity:       "ERROR",
		Code:           "23505",
		Message:        fmt.Sprintf("duplicate key value violates unique constraint %q", table+"_"+column+"_key"),
		Detail:         fmt.Sprintf("Key (%s)=(%s) already exists.", column, value),
		TableName:      table,
		ConstraintName: table + "_" + column + "_key",
	}
}

func foreignKeyViolation(table, column, value string) error {
	return &pgconn.PgError{
		Severity:       "ERROR",
		Code:           "23503",
		Message:        fmt.Sprintf("insert or update on table %q violates foreign key constraint", table),
		Detail:         fmt.Sprintf("Key (%s)=(%s) is not present in table \"users\".", column, value),
		TableName:      table,
		ConstraintName: table + "_" + column + "_fkey",
	}
}

// Users returns the user repository.
func (d *DB) Users() *UserRepo { return &UserRepo{db: d} }

// Tokens returns the verification token repository.
func (d *DB) Tokens() *TokenRepo { return &TokenRepo{db: d} }

// Sessions returns the session repository.
func (d *DB) Sessions() *SessionRepo { return &SessionRepo{db: d} }

// AuditLogs returns the audit log repository.
func (d *DB) AuditLogs() *AuditRepo { return &AuditRepo{db: d} }

// UserRepo implements the user repository.
type UserRepo struct{ db *DB }

func (r *UserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	var out *userdomain.User
	err := r.db.run(ctx, func(st *state) error {
		if u, ok := st.users[id]; ok {
			out = copyUser(u)
		}
		return nil
	})
	return out, err
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	var out *userdomain.User
	err := r.db.run(ctx, func(st *state) error {
		for _, u := range st.users {
			if u.Email == email {
				out = copyUser(u)
				return nil
			}
		}
		return nil
	})
	return out, err
}

// LockByEmail is GetByEmail; the transaction lock already serializes access.
func (r *UserRepo) LockByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	return r.GetByEmail(ctx, email)
}

func (r *UserRepo) Create(ctx context.Context, u *userdomain.User) error {
	return r.db.run(ctx, func(st *state) error {
		if _, ok := st.users[u.ID]; ok {
			return uniqueViolation("users", "id", u.ID)
		}
		for _, existing := range st.users {
			if existing.Email == u.Email {
				return uniqueViolation("users", "email", u.Email)
			}
		}
		st.users[u.ID] = copyUser(u)
		return nil
	})
}

func (r *UserRepo) MarkEmailVerified(ctx context.Context, id string, at time.Time) (bool, error) {
	var ok bool
	err := r.db.run(ctx, func(st *state) error {
		u, found := st.users[id]
		if !found || u.PasswordHash != nil {
			return nil
		}
		u.EmailVerified = true
		u.UpdatedAt = at
		ok = true
		return nil
	})
	return ok, err
}

func (r *UserRepo) CompleteProfile(ctx context.Context, id string, p userdomain.Profile, at time.Time) (bool, error) {
	var ok bool
	err := r.db.run(ctx, func(st *state) error {
		u, found := st.users[id]
		if !found || !u.EmailVerified || u.PasswordHash != nil {
			return nil
		}
		h := p.PasswordHash
		u.PasswordHash = &h
		u.Name = p.Name
		u.Phone = p.Phone
		u.UpdatedAt = at
		ok = true
		return nil
	})
	return ok, err
}

// TokenRepo implements the verification token repository.
type TokenRepo struct{ db *DB }

func (r *TokenRepo) Create(ctx context.Context, t *verificationdomain.Token) error {
	return r.db.run(ctx, func(st *state) error {
		if _, ok := st.users[t.UserID]; !ok {
			return foreignKeyViolation("verification_tokens", "user_id", t.UserID)
		}
		if !t.Used {
			for _, existing := range st.tokens {
				if existing.UserID == t.UserID && !existing.Used {
					return uniqueViolation("verification_tokens", "user_id", t.UserID)
				}
			}
		}
		cp := *t
		st.tokens[t.ID] = &cp
		return nil
	})
}

func (r *TokenRepo) GetActiveByUser(ctx context.Context, userID string, now time.Time) (*verificationdomain.Token, error) {
	var out *verificationdomain.Token
	err := r.db.run(ctx, func(st *state) error {
		for _, t := range st.tokens {
			if t.UserID != userID || !t.IsActive(now) {
				continue
			}
			if out == nil || t.CreatedAt.After(out.CreatedAt) {
				cp := *t
				out = &cp
			}
		}
		return nil
	})
	return out, err
}

func (r *TokenRepo) InvalidateActive(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.run(ctx, func(st *state) error {
		for _, t := range st.tokens {
			if t.UserID == userID && !t.Used {
				t.Used = true
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *TokenRepo) MarkUsed(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.db.run(ctx, func(st *state) error {
		t, found := st.tokens[id]
		if !found || t.Used {
			return nil
		}
		t.Used = true
		ok = true
		return nil
	})
	return ok, err
}

// ListByUser returns every token of the user, oldest first. Used by tests.
func (r *TokenRepo) ListByUser(ctx context.Context, userID string) ([]*verificationdomain.Token, error) {
	var out []*verificationdomain.Token
	err := r.db.run(ctx, func(st *state) error {
		for _, t := range st.tokens {
			if t.UserID == userID {
				cp := *t
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

// SessionRepo implements the session repository.
type SessionRepo struct{ db *DB }

func (r *SessionRepo) Create(ctx context.Context, s *sessiondomain.Session) error {
	return r.db.run(ctx, func(st *state) error {
		if _, ok := st.users[s.UserID]; !ok {
			return foreignKeyViolation("sessions", "user_id", s.UserID)
		}
		if _, ok := st.sessions[s.IDHash]; ok {
			return uniqueViolation("sessions", "id_hash", s.IDHash)
		}
		cp := *s
		st.sessions[s.IDHash] = &cp
		return nil
	})
}

func (r *SessionRepo) GetActive(ctx context.Context, userID, idHash string, now time.Time) (*sessiondomain.Session, error) {
	var out *sessiondomain.Session
	err := r.db.run(ctx, func(st *state) error {
		s, ok := st.sessions[idHash]
		if !ok || s.UserID != userID || s.IsExpired(now) {
			return nil
		}
		cp := *s
		out = &cp
		return nil
	})
	return out, err
}

func (r *SessionRepo) Delete(ctx context.Context, userID, idHash string) (bool, error) {
	var ok bool
	err := r.db.run(ctx, func(st *state) error {
		s, found := st.sessions[idHash]
		if !found || s.UserID != userID {
			return nil
		}
		delete(st.sessions, idHash)
		ok = true
		return nil
	})
	return ok, err
}

func (r *SessionRepo) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.run(ctx, func(st *state) error {
		for k, s := range st.sessions {
			if s.UserID == userID {
				delete(st.sessions, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

// CountByUser returns the number of stored sessions of the user, expired ones included.
func (r *SessionRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.run(ctx, func(st *state) error {
		for _, s := range st.sessions {
			if s.UserID == userID {
				n++
			}
		}
		return nil
	})
	return n, err
}

// AuditRepo implements the audit log repository.
type AuditRepo struct{ db *DB }

func (r *AuditRepo) Create(ctx context.Context, a *auditdomain.AuditLog) error {
	return r.db.run(ctx, func(st *state) error {
		cp := *a
		st.audit = append(st.audit, &cp)
		return nil
	})
}

func (r *AuditRepo) ListRecent(ctx context.Context, limit int) ([]*auditdomain.AuditLog, error) {
	var out []*auditdomain.AuditLog
	err := r.db.run(ctx, func(st *state) error {
		for i := len(st.audit) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
			cp := *st.audit[i]
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}
