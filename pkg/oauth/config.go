package oauth

import (
	"fmt"
	"strings"
)

// GrantType identifies the RFC 6749 mechanism used to obtain a token.
type GrantType string

const (
	// GrantAuthorizationCode is the authorization code grant (RFC 6749 §4.1).
	GrantAuthorizationCode GrantType = "authorization_code"

	// GrantImplicit is the implicit grant (RFC 6749 §4.2).
	GrantImplicit GrantType = "implicit"

	// GrantPassword is the resource owner password credentials grant (RFC 6749 §4.3).
	GrantPassword GrantType = "password"

	// GrantClientCredentials is the client credentials grant (RFC 6749 §4.4).
	GrantClientCredentials GrantType = "client_credentials"
)

// ResponseType identifies the authorization endpoint response type.
type ResponseType string

const (
	// ResponseCode requests an authorization code.
	ResponseCode ResponseType = "code"

	// ResponseToken requests a token directly (implicit grant).
	ResponseToken ResponseType = "token"
)

// Config is the immutable per-provider configuration for one OAuth 2.0
// authentication flow. The caller creates it before each Authenticate
// call; the strategy never mutates it.
type Config struct {
	// Platform names the provider ("github", "gitee", ...). It becomes
	// the Platform of the authenticated user and scopes the pending
	// state cache key.
	Platform string

	// ClientID is the OAuth client identifier.
	ClientID string

	// ClientSecret is the OAuth client secret (required for some grants).
	ClientSecret string

	// AuthorizationURL is the provider's authorization endpoint.
	AuthorizationURL string

	// TokenURL is the provider's token endpoint.
	TokenURL string

	// UserinfoURL is the provider's userinfo endpoint (optional).
	UserinfoURL string

	// CallbackURL is the redirect_uri sent to the provider. Optional:
	// when empty the provider's configured default applies.
	CallbackURL string

	// Scopes are the OAuth scopes to request, in order.
	Scopes []string

	// GrantType selects the RFC 6749 grant.
	GrantType GrantType

	// ResponseType selects the authorization response type. Defaults to
	// "code" for the authorization code grant and "token" for implicit.
	ResponseType ResponseType

	// EnablePKCE turns on PKCE for the authorization code grant. It is
	// silently ignored for other response types.
	EnablePKCE bool

	// State, when non-blank, is used as the anti-CSRF state parameter
	// instead of a generated value. The caller-supplied value is
	// authoritative: it is both cached and sent to the provider.
	State string

	// Username and Password are the resource owner credentials for the
	// password grant when the inbound request does not carry them.
	Username string
	Password string
}

// effectiveResponseType returns the response type in force for the
// configured grant, applying the per-grant default when the field is
// unset. It never writes to the config: one Config may be shared by
// concurrent Authenticate calls.
func (c *Config) effectiveResponseType() ResponseType {
	if c.ResponseType != "" {
		return c.ResponseType
	}
	switch c.GrantType {
	case GrantAuthorizationCode:
		return ResponseCode
	case GrantImplicit:
		return ResponseToken
	default:
		return ""
	}
}

// Validate checks the configuration for the selected grant type. It is
// read-only; the config is never mutated.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("%w: client_id is required", ErrInvalidConfig)
	}

	switch c.GrantType {
	case GrantAuthorizationCode:
		if c.effectiveResponseType() != ResponseCode {
			return fmt.Errorf("%w: authorization_code grant requires response_type=code", ErrInvalidConfig)
		}
		return c.validateAuthorizationCode()
	case GrantImplicit:
		if c.effectiveResponseType() != ResponseToken {
			return fmt.Errorf("%w: implicit grant requires response_type=token", ErrInvalidConfig)
		}
		if strings.TrimSpace(c.AuthorizationURL) == "" {
			return fmt.Errorf("%w: authorization_url required for implicit grant", ErrInvalidConfig)
		}
		return nil
	case GrantPassword:
		if strings.TrimSpace(c.TokenURL) == "" {
			return fmt.Errorf("%w: token_url required for password grant", ErrInvalidConfig)
		}
		return nil
	case GrantClientCredentials:
		if strings.TrimSpace(c.ClientSecret) == "" {
			return fmt.Errorf("%w: client_secret required for client credentials grant", ErrInvalidConfig)
		}
		if strings.TrimSpace(c.TokenURL) == "" {
			return fmt.Errorf("%w: token_url required for client credentials grant", ErrInvalidConfig)
		}
		return nil
	default:
		return fmt.Errorf("%w: grant type %q", ErrInvalidConfig, c.GrantType)
	}
}

func (c *Config) validateAuthorizationCode() error {
	if strings.TrimSpace(c.AuthorizationURL) == "" {
		return fmt.Errorf("%w: authorization_url required for authorization code grant", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.TokenURL) == "" {
		return fmt.Errorf("%w: token_url required for authorization code grant", ErrInvalidConfig)
	}
	return nil
}

// stateCacheKey scopes pending state to the provider/client pair so
// concurrent logins against different providers never collide.
func (c *Config) stateCacheKey() string {
	return "oauth2:state:" + c.Platform + ":" + c.ClientID
}
