package service

import (
	"strings"
	"testing"
)

func TestPasswordHashAndVerify(t *testing.T) {
	h := NewPasswordHasher(fastPasswordParams)

	hash, err := h.Hash("pw12345")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", hash)
	}
	if !h.Verify(&hash, "pw12345") {
		t.Fatalf("expected password to verify")
	}
	if h.Verify(&hash, "wrong") {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestPasswordHashesAreSalted(t *testing.T) {
	h := NewPasswordHasher(fastPasswordParams)
	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Fatalf("expected distinct hashes for the same password")
	}
}

func TestPasswordVerifyUsesStoredParams(t *testing.T) {
	old := NewPasswordHasher(fastPasswordParams)
	hash, _ := old.Hash("pw")

	current := NewPasswordHasher(DefaultPasswordParams)
	if !current.Verify(&hash, "pw") {
		t.Fatalf("expected hash made with other params to verify")
	}
}

func TestPasswordVerifyRejectsMissingAndMalformed(t *testing.T) {
	h := NewPasswordHasher(fastPasswordParams)

	if h.Verify(nil, "") || h.Verify(nil, "anything") {
		t.Fatalf("nil hash must never verify")
	}
	empty := ""
	if h.Verify(&empty, "") {
		t.Fatalf("empty hash must never verify")
	}
	for _, bad := range []string{
		"plaintext",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!$a2V5",
	} {
		bad := bad
		if h.Verify(&bad, "pw") {
			t.Fatalf("malformed hash %q verified", bad)
		}
	}
}
