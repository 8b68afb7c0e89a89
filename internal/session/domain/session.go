package domain

import "time"

// Session is the server-side record backing a refresh token. Only the digest of the
// session id is stored; the raw id travels inside the refresh token.
type Session struct {
	IDHash    string
	UserID    string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the session has expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
