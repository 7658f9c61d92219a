// Package simple implements local username/password authentication
// against caller-managed credential records.
package simple

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/kmahony/authflow/pkg/strategy"
)

// PlatformName is the platform recorded on users authenticated by this
// strategy.
const PlatformName = "simple"

var (
	// ErrMissingCredentials indicates the request lacks a username or password.
	ErrMissingCredentials = errors.New("simple: username and password are required")

	// ErrInvalidCredentials indicates the password does not match the
	// stored hash, or no such user exists. The two cases are collapsed
	// so responses do not reveal which usernames exist.
	ErrInvalidCredentials = errors.New("simple: invalid credentials")
)

// Credential is a stored local account record.
type Credential struct {
	// UserID is the stable account identifier.
	UserID string

	// Username is the login name.
	Username string

	// PasswordHash is the bcrypt hash of the account password.
	PasswordHash string
}

// CredentialStore looks up stored credentials. Implementations return
// (nil, nil) when the username is unknown.
type CredentialStore interface {
	Lookup(ctx context.Context, username string) (*Credential, error)
}

// HashPassword produces the bcrypt hash stored in a Credential.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", ErrMissingCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("simple: hashing password: %w", err)
	}
	return string(hash), nil
}

// Strategy authenticates username/password pairs against a credential
// store.
type Strategy struct {
	store CredentialStore
}

// NewStrategy creates a local credential strategy.
func NewStrategy(store CredentialStore) (*Strategy, error) {
	if store == nil {
		return nil, errors.New("simple: credential store is required")
	}
	return &Strategy{store: store}, nil
}

// Authenticate verifies the request credentials and returns the
// canonical user on success.
func (s *Strategy) Authenticate(ctx context.Context, req *strategy.Request) (*strategy.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req == nil || req.Username == "" || req.Password == "" {
		return nil, ErrMissingCredentials
	}

	cred, err := s.store.Lookup(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("simple: credential lookup failed: %w", err)
	}
	if cred == nil {
		return nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return &strategy.Result{
		User: &strategy.User{
			Platform:   PlatformName,
			ExternalID: cred.UserID,
			Username:   cred.Username,
		},
	}, nil
}

var _ strategy.Strategy = (*Strategy)(nil)
