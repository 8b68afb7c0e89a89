package domain

import "time"

// Token is a single-use email verification code. Only the digest of the code is stored.
type Token struct {
	ID        string
	UserID    string
	TokenHash string
	Used      bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsActive reports whether the token is unused and unexpired at now.
func (t *Token) IsActive(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}
