package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// userInfoFetcher retrieves raw provider claims from the userinfo
// endpoint with a bearer access token.
type userInfoFetcher struct {
	httpClient HTTPClient
}

// fetch returns the provider's claims for the access token. A JSON
// body carrying an "error" field is a provider-level denial even on a
// 2xx status; some providers report token problems that way.
func (f *userInfoFetcher) fetch(ctx context.Context, userinfoURL, accessToken string) (map[string]any, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: access token required", ErrMissingToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderCommunication, err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderCommunication, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderCommunication, resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrProviderCommunication, err)
	}

	var claims map[string]any
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrProviderCommunication, err, body)
	}

	if errCode, ok := claims["error"]; ok {
		if desc, ok := claims["error_description"].(string); ok && desc != "" {
			return nil, fmt.Errorf("%w: %v: %s", ErrProviderDenied, errCode, desc)
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderDenied, errCode)
	}

	return claims, nil
}
