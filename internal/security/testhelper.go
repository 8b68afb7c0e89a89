package security

import "time"

const testSecret = "test-secret-for-unit-tests-only-0123456789"

// NewTestCodec returns a Codec with a fixed secret and default lifetimes.
// For unit tests only. Callers must not use in production.
func NewTestCodec() *Codec {
	c, err := NewCodec([]byte(testSecret), "test-issuer", "test-audience", 15*time.Minute, 7*24*time.Hour, time.Hour)
	if err != nil {
		panic(err)
	}
	return c
}
