package password

import (
	"strings"
	"testing"
)

// testParams keeps hashing cheap in tests; Verify accepts smaller costs.
func testParams() Params {
	return Params{
		MemoryKiB:   1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify_OK(t *testing.T) {
	h, err := Hash("correct horse battery staple", testParams())
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := Verify(h, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	h, err := Hash("correct horse battery staple", testParams())
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := Verify(h, "wrong password")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestHash_RejectsEmptyAndOversized(t *testing.T) {
	if _, err := Hash("", testParams()); err != ErrPasswordEmpty {
		t.Fatalf("empty password: got %v, want ErrPasswordEmpty", err)
	}
	if _, err := Hash(strings.Repeat("x", maxPasswordBytes+1), testParams()); err != ErrPasswordTooLong {
		t.Fatalf("oversized password: got %v, want ErrPasswordTooLong", err)
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	ok, err := Verify("not-a-hash", "whatever")
	if err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
	if ok {
		t.Fatalf("expected false")
	}
}

func TestVerify_RefusesHostileCostParams(t *testing.T) {
	// A hash claiming 4 GiB of memory must be refused, not computed.
	hostile := "$argon2id$v=19$m=4194304,t=3,p=1$" +
		"c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"
	ok, err := Verify(hostile, "whatever")
	if err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
	if ok {
		t.Fatalf("expected false")
	}
}

func TestHash_DistinctSalts(t *testing.T) {
	h1, err := Hash("same password", testParams())
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	h2, err := Hash("same password", testParams())
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("two hashes of the same password must differ by salt")
	}
}
