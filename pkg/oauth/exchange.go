package oauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// tokenExchanger performs token endpoint requests and normalizes the
// responses.
type tokenExchanger struct {
	httpClient HTTPClient
}

// exchange sends a form-encoded POST to the configured token endpoint
// and parses the response into an AccessToken.
func (e *tokenExchanger) exchange(ctx context.Context, cfg *Config, data url.Values) (*AccessToken, error) {
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, fmt.Errorf("%w: token_url not configured", ErrInvalidConfig)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderCommunication, err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderCommunication, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrProviderCommunication, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderCommunication, resp.StatusCode, body)
	}

	return parseTokenResponse(body)
}

// authorizationCodeParams builds the token request for the
// authorization code grant. codeVerifier is empty when PKCE was not
// used for the flow.
func authorizationCodeParams(cfg *Config, code, codeVerifier string) url.Values {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("client_id", cfg.ClientID)
	if cfg.ClientSecret != "" {
		data.Set("client_secret", cfg.ClientSecret)
	}
	if cfg.CallbackURL != "" {
		data.Set("redirect_uri", cfg.CallbackURL)
	}
	if codeVerifier != "" {
		data.Set("code_verifier", codeVerifier)
	}
	return data
}

// passwordParams builds the token request for the resource owner
// password credentials grant.
func passwordParams(cfg *Config, username, password string) url.Values {
	data := url.Values{}
	data.Set("grant_type", "password")
	data.Set("username", username)
	data.Set("password", password)
	data.Set("client_id", cfg.ClientID)
	if cfg.ClientSecret != "" {
		data.Set("client_secret", cfg.ClientSecret)
	}
	if len(cfg.Scopes) > 0 {
		data.Set("scope", strings.Join(cfg.Scopes, " "))
	}
	return data
}

// clientCredentialsParams builds the token request for the client
// credentials grant.
func clientCredentialsParams(cfg *Config) url.Values {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", cfg.ClientID)
	data.Set("client_secret", cfg.ClientSecret)
	if len(cfg.Scopes) > 0 {
		data.Set("scope", strings.Join(cfg.Scopes, " "))
	}
	return data
}

// refreshParams builds the token request for the refresh_token grant.
func refreshParams(cfg *Config, refreshToken string) url.Values {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", cfg.ClientID)
	if cfg.ClientSecret != "" {
		data.Set("client_secret", cfg.ClientSecret)
	}
	if len(cfg.Scopes) > 0 {
		data.Set("scope", strings.Join(cfg.Scopes, " "))
	}
	return data
}
