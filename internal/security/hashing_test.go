package security

import (
	"errors"
	"strings"
	"testing"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" || hash == "secret123" {
		t.Fatalf("Hash returned %q", hash)
	}
	if !h.Compare(hash, "secret123") {
		t.Fatal("Compare with correct password should match")
	}
	if h.Compare(hash, "wrong") {
		t.Fatal("Compare with wrong password should not match")
	}
}

func TestHasher_Salted(t *testing.T) {
	h := NewHasher(4)
	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Error("two hashes of the same password should differ")
	}
}

func TestHasher_MalformedHash(t *testing.T) {
	h := NewHasher(4)
	if h.Compare("not-a-bcrypt-hash", "anything") {
		t.Error("malformed hash should never match")
	}
}

func TestHasher_TooLong(t *testing.T) {
	h := NewHasher(4)
	_, err := h.Hash(strings.Repeat("a", MaxPasswordBytes+1))
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("Hash long password: want ErrPasswordTooLong, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("a", MaxPasswordBytes)); err != nil {
		t.Fatalf("Hash 72-byte password: %v", err)
	}
}

func TestHasher_Cost(t *testing.T) {
	if h := NewHasher(12); h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	if h := NewHasher(0); h.Cost < 4 {
		t.Errorf("zero cost should be clamped to at least MinCost, got %d", h.Cost)
	}
	if h := NewHasher(2); h.Cost != 4 {
		t.Errorf("cost 2 should clamp to 4, got %d", h.Cost)
	}
	if h := NewHasher(40); h.Cost != 31 {
		t.Errorf("cost 40 should clamp to 31, got %d", h.Cost)
	}
}
