package strategy

import (
	"context"
	"errors"
	"fmt"
)

// User is the canonical identity produced by a successful
// authentication flow. Ownership transfers to the caller, which is
// responsible for persisting it.
type User struct {
	// Platform identifies the strategy or provider that authenticated
	// the user (e.g. "github", "ldap", "simple").
	Platform string

	// ExternalID is the user's identifier at the provider.
	ExternalID string

	// Username is the human-readable account name, when known.
	Username string

	// RawClaims holds the provider-specific claims the identity was
	// derived from.
	RawClaims map[string]any
}

// Request carries the transport-agnostic view of an inbound
// authentication request: the query/form parameters of the current
// HTTP request plus direct credentials for strategies that do not
// redirect.
type Request struct {
	// Params are the query or form parameters of the current request.
	Params map[string]string

	// Username and Password are direct credentials used by the LDAP,
	// simple and OAuth password-grant strategies.
	Username string
	Password string
}

// Param returns the named request parameter, or "" when absent.
func (r *Request) Param(name string) string {
	if r == nil || r.Params == nil {
		return ""
	}
	return r.Params[name]
}

// Result is the outcome of a single Authenticate call. Exactly one of
// RedirectURL and User is set: a redirect means the flow continues at
// the identity provider and no user is available yet.
type Result struct {
	// RedirectURL is the authorization URL the caller should redirect
	// the end user to.
	RedirectURL string

	// User is the authenticated identity, set on terminal success.
	User *User
}

// Redirected reports whether the flow requires a redirect to proceed.
func (r *Result) Redirected() bool {
	return r != nil && r.RedirectURL != ""
}

// Strategy is the capability every authentication protocol implements.
// Implementations return a typed error on failure; they never retry
// outbound calls on their own.
type Strategy interface {
	Authenticate(ctx context.Context, req *Request) (*Result, error)
}

// Func adapts a function to the Strategy interface.
type Func func(ctx context.Context, req *Request) (*Result, error)

// Authenticate executes the underlying function.
func (f Func) Authenticate(ctx context.Context, req *Request) (*Result, error) {
	return f(ctx, req)
}

var (
	// ErrNoStrategies indicates the service was built without any strategies.
	ErrNoStrategies = errors.New("strategy: no strategies configured")
	// ErrStrategyNotFound indicates a requested strategy name does not exist.
	ErrStrategyNotFound = errors.New("strategy: requested strategy not configured")
)

// Entry is a named strategy registration.
type Entry struct {
	Name     string
	Strategy Strategy
}

// Service dispatches authentication requests to named strategies.
// It is immutable after construction and safe for concurrent use.
type Service struct {
	entries map[string]Strategy
}

// NewService builds a Service from the supplied entries.
func NewService(entries ...Entry) (*Service, error) {
	if len(entries) == 0 {
		return nil, ErrNoStrategies
	}

	m := make(map[string]Strategy, len(entries))
	for i, e := range entries {
		if e.Strategy == nil {
			return nil, fmt.Errorf("strategy: entry at index %d has no strategy", i)
		}
		if _, ok := m[e.Name]; ok {
			return nil, fmt.Errorf("strategy: duplicate strategy name %q", e.Name)
		}
		m[e.Name] = e.Strategy
	}

	return &Service{entries: m}, nil
}

// Authenticate routes the request to the named strategy.
func (s *Service) Authenticate(ctx context.Context, name string, req *Request) (*Result, error) {
	if s == nil || len(s.entries) == 0 {
		return nil, ErrNoStrategies
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrStrategyNotFound, name)
	}
	return st.Authenticate(ctx, req)
}
