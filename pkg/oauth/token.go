package oauth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// AccessToken is the normalized token record produced by a token
// exchange or an implicit-grant callback.
type AccessToken struct {
	// AccessToken is the OAuth access token. Always non-empty.
	AccessToken string

	// TokenType is the type of token (usually "Bearer").
	TokenType string

	// ExpiresIn is the token lifetime reported by the provider, zero
	// when the provider did not report one.
	ExpiresIn time.Duration

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string

	// Scope is the space-separated scope string granted (optional).
	Scope string

	// IDToken is the OpenID Connect ID token, when the provider
	// returned one.
	IDToken string

	// Raw holds the full provider response, including nonstandard
	// fields.
	Raw map[string]any
}

// OAuth2Token converts the record to a *oauth2.Token for use with
// golang.org/x/oauth2 clients and token sources.
func (t *AccessToken) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
	}
	if t.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(t.ExpiresIn)
	}
	return tok
}

// parseTokenResponse normalizes a token endpoint JSON body. Unknown
// fields are preserved in Raw. A missing or empty access_token is a
// malformed response.
func parseTokenResponse(body []byte) (*AccessToken, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrProviderCommunication, err, body)
	}
	return tokenFromRaw(raw)
}

// tokenFromParams builds the token record from callback parameters, as
// delivered by the implicit grant where no token exchange happens.
func tokenFromParams(params map[string]string) (*AccessToken, error) {
	raw := make(map[string]any, len(params))
	for k, v := range params {
		raw[k] = v
	}
	if raw["access_token"] == "" || raw["access_token"] == nil {
		// Some providers deliver the implicit token under "token".
		if v, ok := raw["token"]; ok {
			raw["access_token"] = v
		}
	}
	return tokenFromRaw(raw)
}

func tokenFromRaw(raw map[string]any) (*AccessToken, error) {
	accessToken := stringField(raw, "access_token")
	if accessToken == "" {
		return nil, fmt.Errorf("%w: no access_token in response", ErrMalformedTokenResponse)
	}

	token := &AccessToken{
		AccessToken:  accessToken,
		TokenType:    stringField(raw, "token_type"),
		RefreshToken: stringField(raw, "refresh_token"),
		Scope:        stringField(raw, "scope"),
		IDToken:      stringField(raw, "id_token"),
		Raw:          raw,
	}

	if seconds := numberField(raw, "expires_in"); seconds > 0 {
		token.ExpiresIn = time.Duration(seconds) * time.Second
	}

	return token, nil
}

func stringField(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

// numberField tolerates providers that return numbers as JSON strings.
func numberField(raw map[string]any, key string) int64 {
	switch v := raw[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
