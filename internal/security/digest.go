package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashOneWay returns the hex-encoded SHA-256 digest of input. Used for verification
// codes and session ids, which are short-lived or high-entropy, so a fast hash is enough.
func HashOneWay(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

// DigestEqual compares two digests in constant time.
func DigestEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// IsDigest reports whether s has the shape of a HashOneWay output.
func IsDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
