package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"laundry-service/backend/internal/apperr"
	"laundry-service/backend/internal/mail"
	"laundry-service/backend/internal/policy/engine"
	"laundry-service/backend/internal/security"
	"laundry-service/backend/internal/session"
	"laundry-service/backend/internal/telemetry"
	userdomain "laundry-service/backend/internal/user/domain"
	"laundry-service/backend/internal/verification"
)

// CompleteInput is the profile submitted at the last registration step.
type CompleteInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

// Register creates an incomplete user for email, issues a verification code and returns a
// step-1 token. Any existing user with that email is a Conflict. If the code cannot be
// mailed the registration stays committed and a Delivery error is returned with the result.
func (s *AuthService) Register(ctx context.Context, email string) (res *StepResult, err error) {
	defer func() { s.metrics.Record(ctx, telemetry.OpRegister, err) }()

	email = userdomain.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	warning, err := s.admit(ctx, email)
	if err != nil {
		return nil, err
	}

	var issued *verification.Issued
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.users.LockByEmail(ctx, email)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.IsComplete() {
				return apperr.Conflict(MsgAlreadyComplete, "email")
			}
			return apperr.Conflict(MsgEmailTaken, "email")
		}
		now := s.nowF()
		u := &userdomain.User{
			ID:        uuid.New().String(),
			Email:     email,
			Role:      userdomain.RoleCustomer,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		issued, err = s.codes.Issue(ctx, u.ID)
		return err
	})
	if err != nil {
		return nil, apperr.FromStorage(err)
	}

	res, err = s.stepResult(email, StepVerify)
	if err != nil {
		return nil, err
	}
	res.Warning = warning
	res.CodeSent = true
	if err := s.deliverCode(ctx, telemetry.OpRegister, email, issued); err != nil {
		return res, err
	}
	return res, nil
}

// Verify consumes the emailed code (raw or digest) for the user bound to the step-1 token
// and returns a step-2 token.
func (s *AuthService) Verify(ctx context.Context, proof StepProof, code string) (res *StepResult, err error) {
	defer func() { s.metrics.Record(ctx, telemetry.OpVerify, err) }()

	claims, err := s.requireStep(proof, StepVerify)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Validation("Verification code is required", "code")
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		u, err := s.users.LockByEmail(ctx, claims.Email)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.NotFound(MsgUserNotFound)
		}
		if u.IsComplete() {
			return apperr.Conflict(MsgAlreadyComplete, "email")
		}
		return s.codes.Consume(ctx, u.ID, code)
	})
	if errors.Is(err, verification.ErrInvalidCode) {
		return nil, apperr.Validation(MsgInvalidCode, "code")
	}
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	return s.stepResult(claims.Email, StepComplete)
}

// CompleteRegistration stores the password and profile of a verified user, opens a session
// and returns the first token pair. The step-2 token must belong to in.Email.
func (s *AuthService) CompleteRegistration(ctx context.Context, proof StepProof, in CompleteInput, userAgent string) (res *AuthResult, err error) {
	defer func() { s.metrics.Record(ctx, telemetry.OpComplete, err) }()

	claims, err := s.requireStep(proof, StepComplete)
	if err != nil {
		return nil, err
	}
	email := userdomain.NormalizeEmail(in.Email)
	if email == "" {
		return nil, apperr.Validation("Email is required", "email")
	}
	if email != claims.Email {
		return nil, apperr.Unauthorized("Token does not belong to this email")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("Name is required", "name")
	}
	if err := s.validatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, security.ErrPasswordTooLong) {
		return nil, apperr.Validation("Password is too long", "password")
	}
	if err != nil {
		return nil, apperr.Internal("could not hash password", err)
	}

	var user *userdomain.User
	var opened *session.Opened
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		u, err := s.users.LockByEmail(ctx, email)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.NotFound(MsgUserNotFound)
		}
		if u.IsComplete() {
			return apperr.Conflict(MsgAlreadyComplete, "email")
		}
		if !u.EmailVerified {
			return apperr.Unauthorized(MsgNotVerified)
		}
		now := s.nowF()
		profile := userdomain.Profile{PasswordHash: hash, Name: name, Phone: strings.TrimSpace(in.Phone)}
		ok, err := s.users.CompleteProfile(ctx, u.ID, profile, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict(MsgAlreadyComplete, "email")
		}
		u.PasswordHash = &profile.PasswordHash
		u.Name = profile.Name
		u.Phone = profile.Phone
		u.UpdatedAt = now
		user = u
		opened, err = s.sessions.Open(ctx, u.ID, userAgent)
		return err
	})
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	return s.issuePair(user, opened)
}

// ResendVerification branches on the account state: unverified accounts get a fresh code
// (subject to the cooldown) and a step-1 token, verified but incomplete accounts get a
// step-2 token, complete accounts are a Conflict.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (res *StepResult, err error) {
	defer func() { s.metrics.Record(ctx, telemetry.OpResend, err) }()

	email = userdomain.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	var issued *verification.Issued
	step := StepVerify
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		u, err := s.users.LockByEmail(ctx, email)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.NotFound(MsgUserNotFound)
		}
		if u.IsComplete() {
			return apperr.Conflict(MsgAlreadyComplete, "email")
		}
		if u.EmailVerified {
			step = StepComplete
			return nil
		}
		issued, err = s.codes.Reissue(ctx, u.ID)
		return err
	})
	var cooldown *verification.CooldownError
	if errors.As(err, &cooldown) {
		msg := fmt.Sprintf("Please wait %d seconds before requesting another verification email.", int(cooldown.Wait.Seconds()))
		return nil, apperr.RateLimited(msg, cooldown.Wait)
	}
	if err != nil {
		return nil, apperr.FromStorage(err)
	}

	res, err = s.stepResult(email, step)
	if err != nil {
		return nil, err
	}
	if issued == nil {
		return res, nil
	}
	res.CodeSent = true
	if err := s.deliverCode(ctx, telemetry.OpResend, email, issued); err != nil {
		return res, err
	}
	return res, nil
}

// admit runs the mail-domain admission policy. It returns a warning for a domain the
// policy lets through with reservations.
func (s *AuthService) admit(ctx context.Context, email string) (string, error) {
	domain := mail.DomainOf(email)
	in := engine.AdmissionInput{
		Mode:           s.opts.MXMode,
		Domain:         domain,
		MXValid:        true,
		BlockedDomains: s.opts.BlockedDomains,
	}
	if s.domains != nil && s.opts.MXMode != engine.ModeOff {
		ok, err := s.domains.HasValidMailExchange(ctx, domain)
		if err != nil {
			s.log.WarnContext(ctx, "auth: mx lookup failed", "domain", domain, "error", err)
			if s.opts.MXMode == engine.ModeEnforce {
				return "", apperr.Unavailable("Could not check the email domain, try again later", err)
			}
		}
		in.MXValid = ok
	}

	var decision engine.Decision
	if s.policy != nil {
		d, err := s.policy.EvaluateRegistration(ctx, in)
		if err != nil {
			s.log.WarnContext(ctx, "auth: admission policy failed, using mode default", "domain", domain, "error", err)
			d = engine.FallbackDecision(in)
		}
		decision = d
	} else {
		decision = engine.FallbackDecision(in)
	}
	switch decision {
	case engine.DecisionDeny:
		return "", apperr.Policy(MsgDomainRejected, "email")
	case engine.DecisionWarn:
		return MsgDomainWarning, nil
	}
	return "", nil
}

// deliverCode mails the code outside any transaction. A failure is reported as Delivery.
func (s *AuthService) deliverCode(ctx context.Context, op, email string, issued *verification.Issued) error {
	if s.devCodes != nil {
		s.devCodes.Put(email, issued.Code)
	}
	link := mail.VerificationLink(s.opts.FrontendURL, issued.CodeHash)
	body, err := mail.RenderVerification(issued.Code, s.codes.TTL(), link)
	if err == nil {
		err = s.mailer.Send(ctx, email, mail.VerificationSubject, body)
	}
	if err != nil {
		s.metrics.MailFailed(ctx, op)
		s.log.WarnContext(ctx, "auth: verification mail not sent", "operation", op, "error", err)
		return apperr.Delivery(MsgMailNotSent, err)
	}
	return nil
}

func validateEmail(email string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return apperr.Validation("A valid email is required", "email")
	}
	return nil
}

func (s *AuthService) validatePassword(password string) error {
	if password == "" {
		return apperr.Validation("Password is required", "password")
	}
	if len(password) < s.opts.PasswordMinLength {
		return apperr.Validation(fmt.Sprintf("Password must be at least %d characters", s.opts.PasswordMinLength), "password")
	}
	if len(password) > security.MaxPasswordBytes {
		return apperr.Validation("Password is too long", "password")
	}
	return nil
}
