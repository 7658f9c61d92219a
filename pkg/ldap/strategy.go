package ldapauth

import (
	"context"
	"errors"

	"github.com/kmahony/authflow/pkg/strategy"
)

// PlatformName is the platform recorded on users authenticated by this
// strategy.
const PlatformName = "ldap"

// Strategy adapts an Authenticator to the strategy.Strategy interface.
type Strategy struct {
	auth *Authenticator
}

// NewStrategy wraps an authenticator for registration with a
// strategy.Service.
func NewStrategy(auth *Authenticator) (*Strategy, error) {
	if auth == nil {
		return nil, errors.New("ldap: authenticator is required")
	}
	return &Strategy{auth: auth}, nil
}

// Authenticate verifies the request's username/password against the
// directory and returns the canonical user on success.
func (s *Strategy) Authenticate(ctx context.Context, req *strategy.Request) (*strategy.Result, error) {
	if req == nil {
		return nil, errors.New("ldap: request is required")
	}
	if err := s.auth.Authenticate(ctx, req.Username, req.Password); err != nil {
		return nil, err
	}
	return &strategy.Result{
		User: &strategy.User{
			Platform:   PlatformName,
			ExternalID: req.Username,
			Username:   req.Username,
		},
	}, nil
}

var _ strategy.Strategy = (*Strategy)(nil)
