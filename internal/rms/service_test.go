package rms

import (
	"context"
	"errors"
	"testing"
)

func seed(t *testing.T, svc *Service, username string, superuser bool) User {
	t.Helper()
	user, err := svc.Register(context.Background(), NewRM{
		Username:  username,
		Email:     username + "@example.com",
		Name:      "RM " + username,
		Password:  "correct-horse",
		Superuser: superuser,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return user
}

func TestAuthenticateSuperuser(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	want := seed(t, svc, "alice", true)

	got, err := svc.Authenticate(context.Background(), " alice ", "correct-horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != want.ID || got.DisplayName() != "RM alice" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	seed(t, svc, "alice", true)
	seed(t, svc, "bob", false)

	cases := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"wrong password", "alice", "nope-nope", ErrInvalidCredentials},
		{"unknown user", "carol", "correct-horse", ErrInvalidCredentials},
		{"empty", "", "", ErrInvalidCredentials},
		{"not superuser", "bob", "correct-horse", ErrNotSuperuser},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Authenticate(context.Background(), tc.username, tc.password); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAuthenticateEmail(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	seed(t, svc, "alice", true)
	seed(t, svc, "bob", false)

	if _, err := svc.AuthenticateEmail(context.Background(), "ALICE@example.com"); err != nil {
		t.Fatalf("expected email match, got %v", err)
	}
	if _, err := svc.AuthenticateEmail(context.Background(), "bob@example.com"); !errors.Is(err, ErrNotSuperuser) {
		t.Fatalf("expected ErrNotSuperuser, got %v", err)
	}
	if _, err := svc.AuthenticateEmail(context.Background(), "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegisterValidatesAndRejectsDuplicates(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	seed(t, svc, "alice", true)

	if _, err := svc.Register(context.Background(), NewRM{Username: "alice", Email: "other@example.com", Password: "long-enough"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := svc.Register(context.Background(), NewRM{Username: "dave", Email: "not-an-email", Password: "long-enough"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for email, got %v", err)
	}
	if _, err := svc.Register(context.Background(), NewRM{Username: "dave", Email: "dave@example.com", Password: "short"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for password, got %v", err)
	}
}
