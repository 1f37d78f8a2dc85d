package clients

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	sharedauth "docrequests-backend/internal/shared/auth"
	sharedmail "docrequests-backend/internal/shared/mail"
	"docrequests-backend/internal/shared/metrics"
	"docrequests-backend/internal/shared/telemetry"
	"docrequests-backend/internal/shared/util"
)

// TokenPurpose scopes verification tokens so they cannot be replayed elsewhere.
const TokenPurpose = "client-email-verification"

const maxNameLength = 100

// Field error messages shown on the add-client form.
const (
	MsgRequired     = "This field is required."
	MsgInvalidEmail = "Enter a valid email address."
	MsgNameTooLong  = "Ensure this value has at most 100 characters."
)

// ValidationError carries per-field messages. It matches ErrInvalidInput.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+": "+v)
	}
	return "invalid client: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

type NewClient struct {
	Name  string
	Email string
}

type Service struct {
	Repo    Repo
	Mailer  sharedmail.Mailer
	Signer  *sharedauth.Signer
	BaseURL string
}

// Create stores a client owned by rmID and mails the verification link.
func (s *Service) Create(ctx context.Context, rmID int64, in NewClient) (Client, error) {
	in.Name = util.CleanText(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if verr := validate(in); verr != nil {
		return Client{}, verr
	}

	client, err := s.Repo.Create(ctx, Client{Name: in.Name, Email: in.Email, RMUserID: rmID})
	if err != nil {
		return Client{}, fmt.Errorf("create client: %w", err)
	}
	metrics.IncClientsCreated()
	telemetry.Info("client.created", map[string]any{"rm_id": rmID, "client_id": client.ID})

	link, err := s.VerificationURL(client.ID)
	if err != nil {
		return client, err
	}
	err = s.Mailer.Send(ctx, sharedmail.VerificationEmail(client.Email, link))
	metrics.IncMail(err)
	if err != nil {
		return client, fmt.Errorf("send verification email: %w", err)
	}
	return client, nil
}

// VerificationURL builds the signed link mailed to a client.
func (s *Service) VerificationURL(clientID int64) (string, error) {
	token, err := s.Signer.Sign(strconv.FormatInt(clientID, 10))
	if err != nil {
		return "", fmt.Errorf("sign client id: %w", err)
	}
	return strings.TrimRight(s.BaseURL, "/") + "/verify_email/" + token + "/", nil
}

// Verify checks the token and sets the verified flag. Repeating it succeeds.
func (s *Service) Verify(ctx context.Context, token string) (Client, error) {
	raw, err := s.Signer.Unsign(token)
	if err != nil {
		metrics.IncVerification(metrics.VerifyInvalid)
		return Client{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		metrics.IncVerification(metrics.VerifyInvalid)
		return Client{}, ErrInvalidToken
	}
	client, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.IncVerification(metrics.VerifyNotFound)
		}
		return Client{}, err
	}
	if !client.IsEmailVerified {
		if err := s.Repo.MarkVerified(ctx, id); err != nil {
			return Client{}, fmt.Errorf("mark verified: %w", err)
		}
		client.IsEmailVerified = true
	}
	metrics.IncVerification(metrics.VerifyOK)
	telemetry.Info("client.verified", map[string]any{"client_id": client.ID})
	return client, nil
}

func (s *Service) List(ctx context.Context, rmID int64) ([]Client, error) {
	return s.Repo.ListByRM(ctx, rmID)
}

func (s *Service) GetOwned(ctx context.Context, rmID, id int64) (Client, error) {
	return s.Repo.GetOwned(ctx, rmID, id)
}

func (s *Service) GetByID(ctx context.Context, id int64) (Client, error) {
	return s.Repo.GetByID(ctx, id)
}

func validate(in NewClient) error {
	fields := make(map[string]string)
	switch {
	case in.Name == "":
		fields["name"] = MsgRequired
	case utf8.RuneCountInString(in.Name) > maxNameLength:
		fields["name"] = MsgNameTooLong
	}
	if in.Email == "" {
		fields["email"] = MsgRequired
	} else if !util.ValidEmail(in.Email) {
		fields["email"] = MsgInvalidEmail
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
