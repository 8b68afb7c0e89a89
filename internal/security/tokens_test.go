package security

import (
	"encoding/base64"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewCodec_MissingSecret(t *testing.T) {
	_, err := NewCodec(nil, "iss", "aud", time.Minute, time.Hour, time.Hour)
	if !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("NewCodec without secret: want ErrMissingSecret, got %v", err)
	}
}

func TestCodec_SignVerifyRoundTrip(t *testing.T) {
	c := NewTestCodec()
	tests := []struct {
		name   string
		claims map[string]any
	}{
		{"empty", map[string]any{}},
		{"strings", map[string]any{"email": "new@ex.com", "sub": "u1"}},
		{"number and bool", map[string]any{"step": float64(2), "admin": false}},
		{"nested", map[string]any{"meta": map[string]any{"a": "b"}, "list": []any{"x", float64(1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := c.Sign(tt.claims, time.Minute)
			if err != nil {
				t.Fatalf("Sign: %v", err)
			}
			got, ok := c.Verify(token)
			if !ok {
				t.Fatal("Verify rejected a freshly signed token")
			}
			if !reflect.DeepEqual(got, tt.claims) {
				t.Errorf("claims = %#v, want %#v", got, tt.claims)
			}
		})
	}
}

func TestCodec_SignRejectsReservedClaims(t *testing.T) {
	c := NewTestCodec()
	for _, k := range []string{"exp", "iat", "iss", "aud", "nbf", "jti"} {
		if _, err := c.Sign(map[string]any{k: "x"}, time.Minute); !errors.Is(err, ErrReservedClaim) {
			t.Errorf("Sign with %q: want ErrReservedClaim, got %v", k, err)
		}
	}
	if _, err := c.Sign(map[string]any{}, 0); err == nil {
		t.Error("Sign with zero ttl should fail")
	}
}

func TestCodec_VerifyTampered(t *testing.T) {
	c := NewTestCodec()
	token, err := c.Sign(map[string]any{"sub": "u1"}, time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	parts := strings.Split(token, ".")
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	sig[0] ^= 0x01
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)
	if _, ok := c.Verify(strings.Join(parts, ".")); ok {
		t.Fatal("Verify accepted a token with a flipped signature bit")
	}
}

func TestCodec_VerifyMalformed(t *testing.T) {
	c := NewTestCodec()
	for _, in := range []string{"", "garbage", "a.b.c", "...."} {
		if claims, ok := c.Verify(in); ok || claims != nil {
			t.Errorf("Verify(%q) = %v, %v; want nil, false", in, claims, ok)
		}
	}
}

func TestCodec_VerifyExpired(t *testing.T) {
	base := time.Now()
	c := NewTestCodec().WithClock(func() time.Time { return base })
	token, err := c.Sign(map[string]any{"sub": "u1"}, time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	later := c.WithClock(func() time.Time { return base.Add(2 * time.Minute) })
	if _, ok := later.Verify(token); ok {
		t.Fatal("Verify accepted an expired token")
	}
}

func TestCodec_VerifyWrongSecretOrAudience(t *testing.T) {
	c := NewTestCodec()
	token, _ := c.Sign(map[string]any{"sub": "u1"}, time.Minute)

	other, _ := NewCodec([]byte("another-secret-another-secret-0000"), "test-issuer", "test-audience", time.Minute, time.Hour, time.Hour)
	if _, ok := other.Verify(token); ok {
		t.Error("Verify accepted a token signed with a different secret")
	}
	otherAud, _ := NewCodec([]byte(testSecret), "test-issuer", "other-audience", time.Minute, time.Hour, time.Hour)
	if _, ok := otherAud.Verify(token); ok {
		t.Error("Verify accepted a token for a different audience")
	}
}

func TestCodec_VerifyRejectsNoneAlg(t *testing.T) {
	c := NewTestCodec()
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "u1", "iss": "test-issuer", "aud": "test-audience",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, ok := c.Verify(s); ok {
		t.Fatal("Verify accepted an unsigned token")
	}
}

func TestCodec_TypedTokens(t *testing.T) {
	c := NewTestCodec()

	access, exp, err := c.IssueAccess("u1", "a@b.com", "customer")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if exp.Before(time.Now()) {
		t.Fatal("access expires in the past")
	}
	ac, err := c.ParseAccess(access)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if ac.UserID != "u1" || ac.Email != "a@b.com" || ac.Role != "customer" {
		t.Errorf("ParseAccess = %+v", ac)
	}

	refresh, _, err := c.IssueRefresh("u1", "sid-1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	rc, err := c.ParseRefresh(refresh)
	if err != nil {
		t.Fatalf("ParseRefresh: %v", err)
	}
	if rc.UserID != "u1" || rc.SessionID != "sid-1" {
		t.Errorf("ParseRefresh = %+v", rc)
	}

	step, err := c.IssueStep("a@b.com", 2)
	if err != nil {
		t.Fatalf("IssueStep: %v", err)
	}
	sc, err := c.ParseStep(step)
	if err != nil {
		t.Fatalf("ParseStep: %v", err)
	}
	if sc.Email != "a@b.com" || sc.Step != 2 {
		t.Errorf("ParseStep = %+v", sc)
	}

	// Types are not interchangeable.
	if _, err := c.ParseRefresh(access); !errors.Is(err, ErrInvalidToken) {
		t.Error("access token accepted as refresh token")
	}
	if _, err := c.ParseAccess(step); !errors.Is(err, ErrInvalidToken) {
		t.Error("step token accepted as access token")
	}
	if _, err := c.ParseStep(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Error("refresh token accepted as step token")
	}
}

func TestCodec_ParseRefreshRequiresSid(t *testing.T) {
	c := NewTestCodec()
	token, _ := c.Sign(map[string]any{"typ": TypeRefresh, "sub": "u1"}, time.Minute)
	if _, err := c.ParseRefresh(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh without sid: want ErrInvalidToken, got %v", err)
	}
}

func TestRandomHex(t *testing.T) {
	a, err := RandomHex(32)
	if err != nil {
		t.Fatalf("RandomHex: %v", err)
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
	b, _ := RandomHex(32)
	if a == b {
		t.Error("two random values should differ")
	}
}
