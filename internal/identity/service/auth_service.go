package service

import (
	"context"
	"errors"
	"strings"

	"laundry-service/backend/internal/apperr"
	"laundry-service/backend/internal/security"
	"laundry-service/backend/internal/session"
	"laundry-service/backend/internal/telemetry"
	userdomain "laundry-service/backend/internal/user/domain"
)

// Login authenticates a completed account and opens a new session. Unknown emails,
// incomplete accounts and wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, email, password, userAgent string) (res *AuthResult, err error) {
	defer func() { s.metrics.Record(ctx, telemetry.OpLogin, err) }()

	email = userdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Unauthorized(MsgInvalidCredentials)
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	if u == nil || !u.IsComplete() || !s.hasher.Compare(*u.PasswordHash, password) {
		return nil, apperr.Unauthorized(MsgInvalidCredentials)
	}
	opened, err := s.sessions.Open(ctx, u.ID, userAgent)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	return s.issuePair(u, opened)
}

// Refresh exchanges a refresh token for a new pair. The session named by the token's sid
// must still exist; it is replaced by a new session so the old refresh token stops working.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, userAgent string) (res *AuthResult, err error) {
	defer func() { s.metrics.Record(ctx, telemetry.OpRefresh, err) }()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, apperr.Unauthorized("Refresh token missing, please log in")
	}
	claims, err := s.codec.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperr.Unauthorized(MsgInvalidToken)
	}

	var u *userdomain.User
	var opened *session.Opened
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		opened, err = s.sessions.Rotate(ctx, claims.UserID, security.HashOneWay(claims.SessionID), userAgent)
		if err != nil {
			return err
		}
		u, err = s.users.GetByID(ctx, claims.UserID)
		if err != nil {
			return err
		}
		if u == nil || !u.IsComplete() {
			return session.ErrSessionNotFound
		}
		return nil
	})
	if errors.Is(err, session.ErrSessionNotFound) {
		return nil, apperr.Unauthorized("Session expired or revoked, please log in")
	}
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	return s.issuePair(u, opened)
}

// Logout revokes every session of the user. Refresh tokens issued before the call stop
// working even though they are still signed and unexpired.
func (s *AuthService) Logout(ctx context.Context, userID string) (err error) {
	defer func() { s.metrics.Record(ctx, telemetry.OpLogout, err) }()

	if strings.TrimSpace(userID) == "" {
		return apperr.Unauthorized("Unauthorized")
	}
	n, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return apperr.FromStorage(err)
	}
	s.log.DebugContext(ctx, "auth: sessions revoked", "user_id", userID, "count", n)
	return nil
}

// CurrentUser returns the user behind an access token.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*userdomain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.FromStorage(err)
	}
	if u == nil {
		return nil, apperr.NotFound(MsgUserNotFound)
	}
	return u, nil
}

func (s *AuthService) issuePair(u *userdomain.User, opened *session.Opened) (*AuthResult, error) {
	access, accessExp, err := s.codec.IssueAccess(u.ID, u.Email, string(u.Role))
	if err != nil {
		return nil, apperr.Internal("could not issue access token", err)
	}
	refresh, refreshExp, err := s.codec.IssueRefresh(u.ID, opened.ID)
	if err != nil {
		return nil, apperr.Internal("could not issue refresh token", err)
	}
	return &AuthResult{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		User:             u,
	}, nil
}
