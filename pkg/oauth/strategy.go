package oauth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kmahony/authflow/pkg/cache"
	"github.com/kmahony/authflow/pkg/strategy"
)

// DefaultStateTTL bounds how long a pending authorization may wait for
// its callback.
const DefaultStateTTL = 10 * time.Minute

// UserService maps raw provider claims into a canonical user. It is
// supplied by the caller, which owns user persistence. Errors it
// returns (e.g. a duplicate-account conflict) are propagated to the
// caller unchanged.
type UserService interface {
	CreateAndGetOAuthUser(ctx context.Context, platform string, claims map[string]any, token *AccessToken) (*strategy.User, error)
}

// pendingAuth is the per-flow state persisted between the redirect and
// callback legs.
type pendingAuth struct {
	State        string `json:"state"`
	CodeVerifier string `json:"code_verifier,omitempty"`
}

// Strategy drives OAuth 2.0 authentication flows end to end:
// classify the inbound request, redirect to the provider or exchange
// the callback credentials for a token, fetch userinfo, and resolve
// the canonical user.
//
// The strategy is stateless across calls; all per-flow state lives in
// the caller-provided StateCache. It is safe for concurrent use, never
// retries outbound calls, and applies no internal timeout; callers
// bound latency through the request context.
type Strategy struct {
	users      UserService
	states     cache.StateCache
	httpClient HTTPClient
	exchanger  *tokenExchanger
	userinfo   *userInfoFetcher
	stateTTL   time.Duration
}

// Option configures the strategy.
type Option func(*Strategy)

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(client HTTPClient) Option {
	return func(s *Strategy) {
		s.httpClient = client
	}
}

// WithStateTTL sets how long pending authorizations remain completable.
func WithStateTTL(ttl time.Duration) Option {
	return func(s *Strategy) {
		s.stateTTL = ttl
	}
}

// WithTLSConfig supplies the TLS configuration for the default HTTP
// client. Ignored when WithHTTPClient is also given.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(s *Strategy) {
		if s.httpClient == nil {
			s.httpClient = newDefaultHTTPClient(cfg)
		}
	}
}

// New creates an OAuth 2.0 strategy. users resolves provider claims to
// canonical users; states stores pending authorization state.
func New(users UserService, states cache.StateCache, opts ...Option) (*Strategy, error) {
	if users == nil {
		return nil, fmt.Errorf("%w: user service is required", ErrInvalidConfig)
	}
	if states == nil {
		return nil, fmt.Errorf("%w: state cache is required", ErrInvalidConfig)
	}

	s := &Strategy{
		users:    users,
		states:   states,
		stateTTL: DefaultStateTTL,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.httpClient == nil {
		s.httpClient = newDefaultHTTPClient(nil)
	}
	s.exchanger = &tokenExchanger{httpClient: s.httpClient}
	s.userinfo = &userInfoFetcher{httpClient: s.httpClient}

	return s, nil
}

// Authenticate runs one step of the flow for the inbound request.
//
// A fresh login yields a Result carrying the authorization redirect
// URL; a provider callback (or a non-redirecting grant) yields a
// Result carrying the authenticated user.
func (s *Strategy) Authenticate(ctx context.Context, cfg *Config, req *strategy.Request) (*strategy.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var params map[string]string
	if req != nil {
		params = req.Params
	}

	// An errored callback fails before any classification or outbound
	// call.
	if err := callbackError(params); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if classify(cfg, params) == phaseInitiating {
		return s.initiate(ctx, cfg)
	}
	return s.complete(ctx, cfg, req)
}

// ForConfig binds the strategy to a fixed provider configuration,
// yielding a strategy.Strategy suitable for Service registration.
func (s *Strategy) ForConfig(cfg *Config) strategy.Strategy {
	return strategy.Func(func(ctx context.Context, req *strategy.Request) (*strategy.Result, error) {
		return s.Authenticate(ctx, cfg, req)
	})
}

// RefreshToken uses a refresh token to obtain a new access token.
func (s *Strategy) RefreshToken(ctx context.Context, cfg *Config, refreshToken string) (*AccessToken, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("%w: refresh token is required", ErrMissingToken)
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidConfig)
	}
	return s.exchanger.exchange(ctx, cfg, refreshParams(cfg, refreshToken))
}

// initiate starts a redirect-based flow: persist the pending state and
// build the authorization URL.
func (s *Strategy) initiate(ctx context.Context, cfg *Config) (*strategy.Result, error) {
	// A caller-supplied non-blank state is authoritative; otherwise a
	// fresh random value is generated.
	state := strings.TrimSpace(cfg.State)
	if state == "" {
		var err error
		state, err = randomState()
		if err != nil {
			return nil, err
		}
	}

	pending := pendingAuth{State: state}
	responseType := cfg.effectiveResponseType()

	params := url.Values{}
	params.Set("response_type", string(responseType))
	params.Set("client_id", cfg.ClientID)
	if cfg.CallbackURL != "" {
		params.Set("redirect_uri", cfg.CallbackURL)
	}
	if len(cfg.Scopes) > 0 {
		params.Set("scope", strings.Join(cfg.Scopes, " "))
	}
	params.Set("state", state)

	// PKCE applies only to the authorization code shape; for other
	// response types EnablePKCE is silently ignored.
	if cfg.EnablePKCE && responseType == ResponseCode {
		pkce, err := GeneratePKCE()
		if err != nil {
			return nil, err
		}
		pending.CodeVerifier = pkce.Verifier
		params.Set("code_challenge", pkce.Challenge)
		params.Set("code_challenge_method", pkce.Method)
	}

	buf, err := json.Marshal(pending)
	if err != nil {
		return nil, fmt.Errorf("oauth: encoding pending state: %w", err)
	}
	if err := s.states.Set(ctx, cfg.stateCacheKey(), string(buf), s.stateTTL); err != nil {
		return nil, fmt.Errorf("oauth: persisting pending state: %w", err)
	}

	authURL := cfg.AuthorizationURL
	sep := "?"
	if strings.Contains(authURL, "?") {
		sep = "&"
	}
	// Encode spaces as %20 rather than "+"; some providers reject "+"
	// in the scope list. Encode escapes literal plus signs to %2B, so
	// every remaining "+" is a space.
	query := strings.ReplaceAll(params.Encode(), "+", "%20")
	return &strategy.Result{RedirectURL: authURL + sep + query}, nil
}

// complete finishes a flow: obtain the token for the configured grant,
// fetch userinfo, and map the user.
func (s *Strategy) complete(ctx context.Context, cfg *Config, req *strategy.Request) (*strategy.Result, error) {
	var (
		token *AccessToken
		err   error
	)

	switch cfg.GrantType {
	case GrantPassword:
		username, password := requestCredentials(cfg, req)
		if username == "" || password == "" {
			return nil, fmt.Errorf("%w: username and password required for password grant", ErrInvalidConfig)
		}
		token, err = s.exchanger.exchange(ctx, cfg, passwordParams(cfg, username, password))

	case GrantClientCredentials:
		token, err = s.exchanger.exchange(ctx, cfg, clientCredentialsParams(cfg))

	case GrantAuthorizationCode:
		// A callback without a code is malformed; reject it before
		// consuming the pending state so a truncated redirect does not
		// invalidate the in-flight login.
		code := paramOf(req, "code")
		if code == "" {
			return nil, fmt.Errorf("%w: callback missing code parameter", ErrInvalidState)
		}
		var pending pendingAuth
		pending, err = s.takePending(ctx, cfg, paramOf(req, "state"))
		if err != nil {
			return nil, err
		}
		token, err = s.exchanger.exchange(ctx, cfg, authorizationCodeParams(cfg, code, pending.CodeVerifier))

	case GrantImplicit:
		if _, err = s.takePending(ctx, cfg, paramOf(req, "state")); err != nil {
			return nil, err
		}
		var params map[string]string
		if req != nil {
			params = req.Params
		}
		token, err = tokenFromParams(params)

	default:
		return nil, fmt.Errorf("%w: grant type %q", ErrInvalidConfig, cfg.GrantType)
	}
	if err != nil {
		return nil, err
	}

	var claims map[string]any
	if cfg.UserinfoURL != "" {
		claims, err = s.userinfo.fetch(ctx, cfg.UserinfoURL, token.AccessToken)
		if err != nil {
			return nil, err
		}
	}

	user, err := s.users.CreateAndGetOAuthUser(ctx, cfg.Platform, claims, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user service returned no user", ErrUserMapping)
	}
	if user.Platform == "" {
		user.Platform = cfg.Platform
	}

	return &strategy.Result{User: user}, nil
}

// takePending consumes the pending authorization for the config's
// provider/client pair and verifies the callback state against it.
// Consumption happens before verification so a mismatched callback
// still burns the pending state.
func (s *Strategy) takePending(ctx context.Context, cfg *Config, callbackState string) (pendingAuth, error) {
	raw, ok, err := s.states.Take(ctx, cfg.stateCacheKey())
	if err != nil {
		return pendingAuth{}, fmt.Errorf("oauth: reading pending state: %w", err)
	}
	if !ok {
		return pendingAuth{}, fmt.Errorf("%w: no pending authorization", ErrInvalidState)
	}

	var pending pendingAuth
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return pendingAuth{}, fmt.Errorf("%w: corrupt pending state", ErrInvalidState)
	}

	if callbackState == "" ||
		subtle.ConstantTimeCompare([]byte(pending.State), []byte(callbackState)) != 1 {
		return pendingAuth{}, fmt.Errorf("%w: state mismatch", ErrInvalidState)
	}

	return pending, nil
}

// requestCredentials resolves password-grant credentials, preferring
// the inbound request over the configuration.
func requestCredentials(cfg *Config, req *strategy.Request) (username, password string) {
	if req != nil && req.Username != "" {
		return req.Username, req.Password
	}
	return cfg.Username, cfg.Password
}

func paramOf(req *strategy.Request, name string) string {
	if req == nil {
		return ""
	}
	return req.Param(name)
}

// randomState returns a 22-character base64url state value from a
// cryptographically secure source.
func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("oauth: state generation failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
