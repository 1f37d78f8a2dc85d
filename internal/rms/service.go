package rms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sharedauth "docrequests-backend/internal/shared/auth"
	"docrequests-backend/internal/shared/util"
)

// dummyHash keeps the cost of a failed lookup close to a failed password check.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z2HZ1qlvPpG0lIfQ6DWk8eqG"

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Authenticate checks credentials and admits only superusers.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("rms service not configured")
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}
	user, err := s.Repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			sharedauth.CheckPassword(dummyHash, password)
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("load user: %w", err)
	}
	if !sharedauth.CheckPassword(user.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	if !user.IsSuperuser {
		return User{}, ErrNotSuperuser
	}
	return user, nil
}

// AuthenticateEmail admits the superuser owning a provider-verified email.
func (s *Service) AuthenticateEmail(ctx context.Context, email string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("rms service not configured")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return User{}, ErrNotFound
	}
	user, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if !user.IsSuperuser {
		return User{}, ErrNotSuperuser
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("rms service not configured")
	}
	return s.Repo.GetByID(ctx, id)
}

// NewRM describes an account created from the command line.
type NewRM struct {
	Username  string
	Email     string
	Name      string
	Password  string
	Superuser bool
}

// Register validates input, hashes the password and stores the account.
func (s *Service) Register(ctx context.Context, in NewRM) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("rms service not configured")
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Username == "" || len(in.Username) > 150:
		return User{}, fmt.Errorf("%w: username must be 1-150 characters", ErrInvalidInput)
	case len(in.Name) > 100:
		return User{}, fmt.Errorf("%w: name must be at most 100 characters", ErrInvalidInput)
	case len(in.Password) < 8:
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	if !util.ValidEmail(in.Email) {
		return User{}, fmt.Errorf("%w: email %q is not a valid address", ErrInvalidInput, in.Email)
	}
	hash, err := sharedauth.HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	return s.Repo.Create(ctx, User{
		Username:     in.Username,
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		IsSuperuser:  in.Superuser,
	})
}
