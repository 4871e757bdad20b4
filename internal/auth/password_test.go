package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// newTestPasswordService returns a PasswordService with the minimum bcrypt
// cost so tests run in milliseconds.
func newTestPasswordService() *PasswordService {
	return NewPasswordServiceForTest(bcrypt.MinCost)
}

// =========================================================================
// Hash TESTS
// =========================================================================

func TestHash_OutputLooksBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("password123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
	if hash == "password123" {
		t.Error("Hash() returned the plaintext")
	}
}

func TestHash_SamePasswordProducesDifferentHashes(t *testing.T) {
	ps := newTestPasswordService()

	hash1, _ := ps.Hash("same-password")
	hash2, _ := ps.Hash("same-password")

	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password (salt must be random)")
	}
}

func TestHash_RejectsPasswordOver72Bytes(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", 73)); err == nil {
		t.Fatal("Hash() should return an error for passwords longer than 72 bytes")
	}
	if _, err := ps.Hash(strings.Repeat("a", 72)); err != nil {
		t.Fatalf("Hash() should accept a 72-byte password, got error: %v", err)
	}
}

// =========================================================================
// Verify TESTS
// =========================================================================

func TestVerify_CorrectPassword(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if err := ps.Verify(hash, "correct-horse-battery-staple"); err != nil {
		t.Errorf("Verify() should return nil for a correct password, got: %v", err)
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	ps := newTestPasswordService()

	hash, _ := ps.Hash("the-real-password")

	err := ps.Verify(hash, "the-wrong-password")
	if !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("Verify() error = %v, want ErrInvalidPassword", err)
	}
}

func TestVerify_GarbageHash(t *testing.T) {
	ps := newTestPasswordService()

	if err := ps.Verify("not-a-valid-bcrypt-hash", "password"); err == nil {
		t.Fatal("Verify() should return an error for a garbage hash")
	}
}

// =========================================================================
// UNUSABLE CREDENTIAL TESTS
// =========================================================================

func TestUnusable_NeverVerifies(t *testing.T) {
	ps := newTestPasswordService()

	marker := ps.Unusable()
	if ps.IsUsable(marker) {
		t.Errorf("IsUsable(%q) = true, want false", marker)
	}

	for _, attempt := range []string{"", marker, marker[1:]} {
		if err := ps.Verify(marker, attempt); !errors.Is(err, ErrInvalidPassword) {
			t.Errorf("Verify(unusable, %q) error = %v, want ErrInvalidPassword", attempt, err)
		}
	}
}

func TestUnusable_IsRandom(t *testing.T) {
	ps := newTestPasswordService()

	if ps.Unusable() == ps.Unusable() {
		t.Error("Unusable() returned the same marker twice")
	}
}

func TestHashVerify_RoundTrip(t *testing.T) {
	ps := newTestPasswordService()

	cases := []struct {
		name     string
		password string
	}{
		{"simple alphanumeric", "hello123"},
		{"special characters", "p@$$w0rd!#%"},
		{"unicode", "пароль-密码"},
		{"whitespace", "  leading and trailing  "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hash, err := ps.Hash(tc.password)
			if err != nil {
				t.Fatalf("Hash(%q) error = %v", tc.password, err)
			}
			if err := ps.Verify(hash, tc.password); err != nil {
				t.Errorf("Verify() failed for %q: %v", tc.password, err)
			}
		})
	}
}

func TestVerifyDummy_UsesConfiguredCost(t *testing.T) {
	ps := newTestPasswordService()
	ps.VerifyDummy("whatever")
	ps.VerifyDummy("again")

	cost, err := bcrypt.Cost(ps.dummyHash)
	if err != nil {
		t.Fatalf("dummy hash is not bcrypt: %v", err)
	}
	if cost != bcrypt.MinCost {
		t.Errorf("dummy hash cost = %d, want %d", cost, bcrypt.MinCost)
	}
}
