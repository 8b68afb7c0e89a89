// Package service implements progressive registration (register, verify, complete) and the
// login/refresh/logout session lifecycle. Errors returned to callers are *apperr.Error.
package service

import (
	"context"
	"log/slog"
	"time"

	"laundry-service/backend/internal/db"
	"laundry-service/backend/internal/mail"
	"laundry-service/backend/internal/policy/engine"
	"laundry-service/backend/internal/security"
	"laundry-service/backend/internal/session"
	"laundry-service/backend/internal/telemetry"
	userdomain "laundry-service/backend/internal/user/domain"
	userrepo "laundry-service/backend/internal/user/repository"
	"laundry-service/backend/internal/verification"
)

// Client-facing messages that tests and handlers match on.
const (
	MsgMissingToken       = "Missing token"
	MsgWrongStep          = "You're not supposed to be here"
	MsgInvalidToken       = "Invalid or expired token"
	MsgInvalidCredentials = "Invalid email or password"
	MsgInvalidCode        = "Invalid or expired verification code"
	MsgEmailTaken         = "Email already registered"
	MsgAlreadyComplete    = "Account already registered, please log in"
	MsgAlreadyVerified    = "Email already verified"
	MsgNotVerified        = "Email is not verified"
	MsgUserNotFound       = "User not found"
	MsgMailNotSent        = "Saved, but the verification email could not be sent. Request a new code."
	MsgDomainRejected     = "Email domain is not accepted"
	MsgDomainWarning      = "Email domain has no mail server; the verification email may not arrive"
)

// CodeStore issues and consumes verification codes.
type CodeStore interface {
	Issue(ctx context.Context, userID string) (*verification.Issued, error)
	Consume(ctx context.Context, userID, submitted string) error
	Reissue(ctx context.Context, userID string) (*verification.Issued, error)
	TTL() time.Duration
}

// SessionStore opens, rotates and revokes server-side sessions.
type SessionStore interface {
	Open(ctx context.Context, userID, userAgent string) (*session.Opened, error)
	Rotate(ctx context.Context, userID, idHash, userAgent string) (*session.Opened, error)
	RevokeAll(ctx context.Context, userID string) (int64, error)
}

// DomainValidator reports whether a mail domain can receive mail.
type DomainValidator interface {
	HasValidMailExchange(ctx context.Context, domain string) (bool, error)
}

// CodeRecorder keeps issued plaintext codes for the local dev endpoint.
type CodeRecorder interface {
	Put(email, code string)
}

// Deps are the collaborators of AuthService. Domains, Policy, DevCodes, Metrics and Log are optional.
type Deps struct {
	Tx       db.Transactor
	Users    userrepo.Repository
	Codes    CodeStore
	Sessions SessionStore
	Codec    *security.Codec
	Hasher   *security.Hasher
	Mailer   mail.Sender
	Domains  DomainValidator
	Policy   engine.Evaluator
	DevCodes CodeRecorder
	Metrics  *telemetry.AuthMetrics
	Log      *slog.Logger
}

// Options tune registration behaviour.
type Options struct {
	// FrontendURL is the base of the verify-by-link URL in the verification email.
	FrontendURL string
	// MXMode is engine.ModeOff, ModeAdvisory or ModeEnforce. Empty means advisory.
	MXMode string
	// BlockedDomains are always rejected by the admission policy.
	BlockedDomains []string
	// PasswordMinLength is the minimum password length at completion; 0 accepts any non-empty password.
	PasswordMinLength int
}

// StepResult is returned by the registration steps that hand the caller a step token.
type StepResult struct {
	Email     string
	StepToken string
	NextStep  int
	// Warning is set when the admission policy let a questionable domain through.
	Warning string
	// CodeSent reports whether a new verification code was issued.
	CodeSent bool
}

// AuthResult carries a fresh access and refresh token pair.
type AuthResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *userdomain.User
}

// AuthService implements registration and the session lifecycle.
type AuthService struct {
	tx       db.Transactor
	users    userrepo.Repository
	codes    CodeStore
	sessions SessionStore
	codec    *security.Codec
	hasher   *security.Hasher
	mailer   mail.Sender
	domains  DomainValidator
	policy   engine.Evaluator
	devCodes CodeRecorder
	metrics  *telemetry.AuthMetrics
	log      *slog.Logger
	opts     Options
	nowF     func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(deps Deps, opts Options) *AuthService {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if opts.MXMode == "" {
		opts.MXMode = engine.ModeAdvisory
	}
	return &AuthService{
		tx:       deps.Tx,
		users:    deps.Users,
		codes:    deps.Codes,
		sessions: deps.Sessions,
		codec:    deps.Codec,
		hasher:   deps.Hasher,
		mailer:   deps.Mailer,
		domains:  deps.Domains,
		policy:   deps.Policy,
		devCodes: deps.DevCodes,
		metrics:  deps.Metrics,
		log:      deps.Log,
		opts:     opts,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. For tests.
func (s *AuthService) SetClock(now func() time.Time) { s.nowF = now }
