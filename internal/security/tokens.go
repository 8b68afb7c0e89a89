package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, tampered, expired or of the wrong type.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSecret is returned by NewCodec when no signing secret is configured.
	ErrMissingSecret = errors.New("token signing secret is not set")
	// ErrReservedClaim is returned by Sign when the caller passes a claim the codec manages itself.
	ErrReservedClaim = errors.New("reserved claim")
)

// Claims the codec sets on every token. Callers cannot supply them and Verify does not return them.
var reservedClaims = []string{"iss", "aud", "iat", "exp", "nbf", "jti"}

// Token types carried in the typ claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
	TypeStep    = "step"
)

// Codec signs and verifies HS256 tokens carrying arbitrary claim maps.
type Codec struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	stepTTL    time.Duration
	now        func() time.Time
}

// NewCodec returns a Codec signing with secret. issuer and audience are set on every token
// and required on verify.
func NewCodec(secret []byte, issuer, audience string, accessTTL, refreshTTL, stepTTL time.Duration) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	return &Codec{
		secret:     secret,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		stepTTL:    stepTTL,
		now:        time.Now,
	}, nil
}

// WithClock returns a copy of c that reads the current time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// AccessTTL returns the access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// StepTTL returns the registration step token lifetime.
func (c *Codec) StepTTL() time.Duration { return c.stepTTL }

// Sign returns a signed token embedding claims plus issuer, audience, issued-at, expiry and a jti.
func (c *Codec) Sign(claims map[string]any, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	mc := make(jwt.MapClaims, len(claims)+len(reservedClaims))
	for k, v := range claims {
		for _, r := range reservedClaims {
			if k == r {
				return "", fmt.Errorf("%w: %s", ErrReservedClaim, k)
			}
		}
		mc[k] = v
	}
	jti, err := RandomHex(16)
	if err != nil {
		return "", err
	}
	now := c.now().UTC()
	mc["iss"] = c.issuer
	mc["aud"] = c.audience
	mc["iat"] = jwt.NewNumericDate(now)
	mc["exp"] = jwt.NewNumericDate(now.Add(ttl))
	mc["jti"] = jti
	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(c.secret)
}

// Verify returns the caller claims embedded in token when its signature, issuer, audience and
// expiry all hold. Any other input yields (nil, false). JSON numbers come back as float64.
func (c *Codec) Verify(token string) (map[string]any, bool) {
	if token == "" {
		return nil, false
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	mc := jwt.MapClaims{}
	parsed, err := parser.ParseWithClaims(token, mc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, false
	}
	out := make(map[string]any, len(mc))
	for k, v := range mc {
		out[k] = v
	}
	for _, r := range reservedClaims {
		delete(out, r)
	}
	return out, true
}

// AccessClaims identifies the caller of an authenticated request.
type AccessClaims struct {
	UserID string
	Email  string
	Role   string
}

// RefreshClaims binds a refresh token to a server-side session.
type RefreshClaims struct {
	UserID    string
	SessionID string
}

// StepClaims proves progress through the registration funnel.
type StepClaims struct {
	Email string
	Step  int
}

// IssueAccess issues a short-lived access token for the user.
func (c *Codec) IssueAccess(userID, email, role string) (string, time.Time, error) {
	expiresAt := c.now().UTC().Add(c.accessTTL)
	token, err := c.Sign(map[string]any{
		"typ":   TypeAccess,
		"sub":   userID,
		"email": email,
		"role":  role,
	}, c.accessTTL)
	return token, expiresAt, err
}

// IssueRefresh issues a long-lived refresh token carrying the raw session id.
func (c *Codec) IssueRefresh(userID, sessionID string) (string, time.Time, error) {
	expiresAt := c.now().UTC().Add(c.refreshTTL)
	token, err := c.Sign(map[string]any{
		"typ": TypeRefresh,
		"sub": userID,
		"sid": sessionID,
	}, c.refreshTTL)
	return token, expiresAt, err
}

// IssueStep issues a step token bound to email for the given registration step.
func (c *Codec) IssueStep(email string, step int) (string, error) {
	return c.Sign(map[string]any{
		"typ":   TypeStep,
		"email": email,
		"step":  step,
	}, c.stepTTL)
}

// ParseAccess verifies an access token. Returns ErrInvalidToken for anything else.
func (c *Codec) ParseAccess(token string) (AccessClaims, error) {
	claims, ok := c.verifyType(token, TypeAccess)
	if !ok {
		return AccessClaims{}, ErrInvalidToken
	}
	out := AccessClaims{
		UserID: stringClaim(claims, "sub"),
		Email:  stringClaim(claims, "email"),
		Role:   stringClaim(claims, "role"),
	}
	if out.UserID == "" {
		return AccessClaims{}, ErrInvalidToken
	}
	return out, nil
}

// ParseRefresh verifies a refresh token. Both sub and sid must be present.
func (c *Codec) ParseRefresh(token string) (RefreshClaims, error) {
	claims, ok := c.verifyType(token, TypeRefresh)
	if !ok {
		return RefreshClaims{}, ErrInvalidToken
	}
	out := RefreshClaims{
		UserID:    stringClaim(claims, "sub"),
		SessionID: stringClaim(claims, "sid"),
	}
	if out.UserID == "" || out.SessionID == "" {
		return RefreshClaims{}, ErrInvalidToken
	}
	return out, nil
}

// ParseStep verifies a step token.
func (c *Codec) ParseStep(token string) (StepClaims, error) {
	claims, ok := c.verifyType(token, TypeStep)
	if !ok {
		return StepClaims{}, ErrInvalidToken
	}
	email := stringClaim(claims, "email")
	step, ok := claims["step"].(float64)
	if email == "" || !ok {
		return StepClaims{}, ErrInvalidToken
	}
	return StepClaims{Email: email, Step: int(step)}, nil
}

func (c *Codec) verifyType(token, typ string) (map[string]any, bool) {
	claims, ok := c.Verify(token)
	if !ok || stringClaim(claims, "typ") != typ {
		return nil, false
	}
	return claims, true
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

// RandomHex returns n random bytes hex-encoded.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
