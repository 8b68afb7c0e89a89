package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestKind_Status(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindWrongStep, http.StatusMethodNotAllowed},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindPolicy, http.StatusUnprocessableEntity},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindDelivery, http.StatusBadGateway},
		{KindUnavailable, http.StatusServiceUnavailable},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.kind.Status(); got != tt.want {
			t.Errorf("%s.Status() = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestError_IsAndAs(t *testing.T) {
	err := fmt.Errorf("register: %w", Conflict("Email already registered", "email"))
	if !errors.Is(err, &Error{Kind: KindConflict}) {
		t.Fatal("errors.Is should match on kind")
	}
	if errors.Is(err, &Error{Kind: KindConflict, Message: "other"}) {
		t.Fatal("errors.Is should not match a different message")
	}
	e, ok := As(err)
	if !ok {
		t.Fatal("As should find the wrapped *Error")
	}
	if !reflect.DeepEqual(e.Fields, []string{"email"}) {
		t.Errorf("Fields = %v, want [email]", e.Fields)
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("KindOf plain error should be internal")
	}
}

func TestRateLimited_RetryAfter(t *testing.T) {
	e := RateLimited("Please wait", 42*time.Second)
	if e.RetryAfter != 42*time.Second || e.Status() != http.StatusTooManyRequests {
		t.Fatalf("got %v / %d", e.RetryAfter, e.Status())
	}
}

func TestFromStorage(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   Kind
		wantFields []string
	}{
		{
			name:       "unique email",
			err:        &pgconn.PgError{Code: "23505", Detail: "Key (email)=(a@ex.com) already exists.", ConstraintName: "users_email_key"},
			wantKind:   KindConflict,
			wantFields: []string{"email"},
		},
		{
			name:       "foreign key",
			err:        &pgconn.PgError{Code: "23503", Detail: "Key (user_id)=(x) is not present in table \"users\"."},
			wantKind:   KindConflict,
			wantFields: []string{"user_id"},
		},
		{
			name:       "not null",
			err:        &pgconn.PgError{Code: "23502", ColumnName: "email"},
			wantKind:   KindValidation,
			wantFields: []string{"email"},
		},
		{name: "no rows", err: fmt.Errorf("get user: %w", pgx.ErrNoRows), wantKind: KindNotFound},
		{name: "deadline", err: context.DeadlineExceeded, wantKind: KindUnavailable},
		{name: "admin shutdown", err: &pgconn.PgError{Code: "57P01"}, wantKind: KindUnavailable},
		{name: "unknown", err: errors.New("boom"), wantKind: KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromStorage(tt.err)
			e, ok := As(got)
			if !ok {
				t.Fatalf("FromStorage returned %T, want *Error", got)
			}
			if e.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", e.Kind, tt.wantKind)
			}
			if !reflect.DeepEqual(e.Fields, tt.wantFields) {
				t.Errorf("fields = %v, want %v", e.Fields, tt.wantFields)
			}
			if !errors.Is(got, tt.err) && tt.wantKind != KindInternal {
				t.Error("FromStorage should keep the cause")
			}
		})
	}
}

func TestFromStorage_PassThrough(t *testing.T) {
	if FromStorage(nil) != nil {
		t.Fatal("nil should stay nil")
	}
	orig := NotFound("User not found")
	if got := FromStorage(orig); got != orig {
		t.Fatalf("typed error should pass through, got %v", got)
	}
}
