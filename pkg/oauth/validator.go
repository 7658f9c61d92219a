package oauth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ValidationConfig configures local JWT access-token validation.
type ValidationConfig struct {
	// JWKSURL is the provider's JWKS endpoint.
	JWKSURL string

	// Issuer, when set, must match the token's iss claim.
	Issuer string

	// Audience, when set, must appear in the token's aud claim.
	Audience string

	// ClockSkew allows for clock drift between systems.
	ClockSkew time.Duration
}

// Claims are the validated claims extracted from an access token.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	IssuedAt  time.Time

	// Raw holds the full claim set, including nonstandard claims.
	Raw map[string]any
}

// TokenValidator validates JWT access tokens against a provider's JWKS.
// Useful when the process that obtained tokens through the strategy
// also serves resources protected by them.
type TokenValidator struct {
	config ValidationConfig
	jwks   keyfunc.Keyfunc
}

// NewTokenValidator fetches the JWKS and builds a validator.
func NewTokenValidator(ctx context.Context, config ValidationConfig) (*TokenValidator, error) {
	if strings.TrimSpace(config.JWKSURL) == "" {
		return nil, fmt.Errorf("%w: jwks_url is required", ErrInvalidConfig)
	}
	if config.ClockSkew <= 0 {
		config.ClockSkew = 60 * time.Second
	}

	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{config.JWKSURL})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}

	return &TokenValidator{config: config, jwks: jwks}, nil
}

// Validate parses and verifies the token, returning its claims.
func (v *TokenValidator) Validate(_ context.Context, tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			"RS256", "RS384", "RS512",
			"ES256", "ES384", "ES512",
			"PS256", "PS384", "PS512",
		}),
		jwt.WithLeeway(v.config.ClockSkew),
	}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}
	if v.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.config.Audience))
	}

	token, err := jwt.Parse(tokenString, v.jwks.Keyfunc, opts...)
	if err != nil {
		if strings.Contains(err.Error(), "expired") {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrInvalidToken)
	}

	return claimsFromMap(mapClaims), nil
}

func claimsFromMap(mapClaims jwt.MapClaims) *Claims {
	claims := &Claims{Raw: map[string]any(mapClaims)}

	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}
	if iss, ok := mapClaims["iss"].(string); ok {
		claims.Issuer = iss
	}

	// Audience can be a string or an array.
	switch aud := mapClaims["aud"].(type) {
	case string:
		claims.Audience = []string{aud}
	case []any:
		for _, a := range aud {
			if s, ok := a.(string); ok {
				claims.Audience = append(claims.Audience, s)
			}
		}
	}

	if exp, ok := mapClaims["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	}
	if iat, ok := mapClaims["iat"].(float64); ok {
		claims.IssuedAt = time.Unix(int64(iat), 0)
	}

	return claims
}
