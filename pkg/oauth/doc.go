// Package oauth implements an OAuth 2.0 authentication strategy:
// given a provider configuration and the parameters of an inbound
// request, it either produces the authorization URL to redirect to or
// completes the flow by exchanging the callback credentials for a
// token, fetching userinfo, and mapping the claims to a canonical
// user.
//
// Supported grants: authorization code (with optional PKCE), implicit,
// resource owner password, and client credentials. Anti-CSRF state is
// persisted in a caller-supplied cache.StateCache and consumed at most
// once; replayed callbacks fail with ErrInvalidState.
//
// Example - authorization code with PKCE:
//
//	strat, err := oauth.New(users, cache.NewMemory(10*time.Minute))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg := &oauth.Config{
//	    Platform:         "github",
//	    ClientID:         "client-id",
//	    ClientSecret:     "client-secret",
//	    AuthorizationURL: "https://github.com/login/oauth/authorize",
//	    TokenURL:         "https://github.com/login/oauth/access_token",
//	    UserinfoURL:      "https://api.github.com/user",
//	    CallbackURL:      "https://example.com/callback",
//	    Scopes:           []string{"read:user"},
//	    GrantType:        oauth.GrantAuthorizationCode,
//	    EnablePKCE:       true,
//	}
//
//	// First call: no callback parameters, so the flow initiates.
//	res, err := strat.Authenticate(ctx, cfg, &strategy.Request{})
//	// redirect the browser to res.RedirectURL ...
//
//	// Callback: code and state arrive as query parameters.
//	res, err = strat.Authenticate(ctx, cfg, &strategy.Request{
//	    Params: map[string]string{"code": code, "state": state},
//	})
//	// res.User is the authenticated identity.
//
// The strategy never retries failed provider calls and applies no
// internal timeout; bound latency and retry policy through the request
// context and the caller.
package oauth
