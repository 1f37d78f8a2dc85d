package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSignerRoundTrip(t *testing.T) {
	signer, err := NewSigner("secret", "email-verification", 0)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	token, err := signer.Sign("42")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	got, err := signer.Unsign(token)
	if err != nil {
		t.Fatalf("Unsign: %v", err)
	}
	if got != "42" {
		t.Fatalf("expected 42, got %s", got)
	}
}

func TestSignerRejectsEverySingleCharacterMutation(t *testing.T) {
	signer, err := NewSigner("secret", "email-verification", 0)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	token, err := signer.Sign("7")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	for i := 0; i < len(token); i++ {
		mutated := []byte(token)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		if _, err := signer.Unsign(string(mutated)); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("mutation at %d accepted: %q", i, string(mutated))
		}
	}
}

func TestSignerRejectsOtherSecretAndPurpose(t *testing.T) {
	signer, _ := NewSigner("secret", "email-verification", 0)
	token, err := signer.Sign("7")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	other, _ := NewSigner("other-secret", "email-verification", 0)
	if _, err := other.Unsign(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected other secret to be rejected, got %v", err)
	}
	otherPurpose, _ := NewSigner("secret", "password-reset", 0)
	if _, err := otherPurpose.Unsign(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected other purpose to be rejected, got %v", err)
	}
}

func TestSignerExpiry(t *testing.T) {
	signer, _ := NewSigner("secret", "email-verification", time.Hour)
	issued := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return issued }

	token, err := signer.Sign("9")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := signer.Unsign(token); err != nil {
		t.Fatalf("expected fresh token to verify: %v", err)
	}

	signer.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := signer.Unsign(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestNewSignerRequiresSecret(t *testing.T) {
	if _, err := NewSigner("  ", "email-verification", 0); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("expected wrong password to fail")
	}
	if CheckPassword("", "correct horse") {
		t.Fatalf("expected empty hash to fail")
	}
}
