package oauth

import "errors"

var (
	// ErrProviderDenied indicates the provider returned an explicit
	// error or denial (callback error parameters, or an error payload
	// from the userinfo endpoint).
	ErrProviderDenied = errors.New("oauth: provider denied the request")

	// ErrInvalidState indicates the callback state is missing, does not
	// match the pending state, or was already consumed (CSRF/replay).
	ErrInvalidState = errors.New("oauth: invalid state")

	// ErrInvalidConfig indicates the strategy configuration is invalid.
	ErrInvalidConfig = errors.New("oauth: invalid configuration")

	// ErrProviderCommunication indicates an outbound call to the
	// provider failed at the transport level or returned a non-2xx
	// status. The wrapped message carries the raw response body.
	ErrProviderCommunication = errors.New("oauth: provider communication failed")

	// ErrMalformedTokenResponse indicates the token response parsed but
	// lacks a usable access_token.
	ErrMalformedTokenResponse = errors.New("oauth: malformed token response")

	// ErrUserMapping indicates the caller-supplied user service could
	// not produce a user for the authenticated identity.
	ErrUserMapping = errors.New("oauth: user mapping failed")

	// Token validation errors

	// ErrMissingToken indicates no token was provided for validation.
	ErrMissingToken = errors.New("oauth: missing token")

	// ErrInvalidToken indicates the token is malformed or has an invalid signature.
	ErrInvalidToken = errors.New("oauth: invalid token")

	// ErrExpiredToken indicates the token has expired.
	ErrExpiredToken = errors.New("oauth: token expired")

	// ErrJWKSFetchFailed indicates JWKS retrieval failed.
	ErrJWKSFetchFailed = errors.New("oauth: jwks fetch failed")
)
