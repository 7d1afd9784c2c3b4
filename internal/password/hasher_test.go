package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(WithCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not equal plaintext")
	}
	if !h.Verify("correct horse", hash) {
		t.Error("expected match")
	}
	if h.Verify("wrong horse", hash) {
		t.Error("expected mismatch")
	}
}

func TestHashIsSalted(t *testing.T) {
	h := newTestHasher(t)
	a, _ := h.Hash("same password")
	b, _ := h.Hash("same password")
	if a == b {
		t.Error("two hashes of the same password should differ")
	}
}

func TestHashPolicy(t *testing.T) {
	h := newTestHasher(t)
	if _, err := h.Hash("short"); !IsPolicyError(err) {
		t.Errorf("err = %v, want policy error", err)
	}
	if _, err := h.Hash(strings.Repeat("a", MaxLength+1)); !IsPolicyError(err) {
		t.Errorf("err = %v, want policy error", err)
	}
}

func TestVerifyMissing(t *testing.T) {
	h := newTestHasher(t)
	if h.VerifyMissing("anything") {
		t.Error("VerifyMissing must report false")
	}
}

func TestWithCostIgnoresOutOfRange(t *testing.T) {
	h, err := NewHasher(WithCost(bcrypt.MinCost), WithCost(100))
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	if h.cost != bcrypt.MinCost {
		t.Errorf("cost = %d, want %d", h.cost, bcrypt.MinCost)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("$2a$04$abc")
	if len(a) != 16 {
		t.Errorf("len = %d, want 16", len(a))
	}
	if a != Fingerprint("$2a$04$abc") {
		t.Error("fingerprint must be deterministic")
	}
	if a == Fingerprint("$2a$04$abd") {
		t.Error("different hashes should have different fingerprints")
	}
}
