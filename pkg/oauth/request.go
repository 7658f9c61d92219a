package oauth

import "fmt"

// phase is the state machine position an inbound request maps to.
type phase int

const (
	// phaseInitiating starts a new flow by redirecting to the provider.
	phaseInitiating phase = iota

	// phaseCompleting finishes a flow: exchange the callback
	// credentials (or the configured direct-grant credentials) for a
	// token and resolve the user.
	phaseCompleting
)

// callbackError surfaces provider error parameters carried on the
// inbound request. Checked before classification: an errored callback
// must never trigger outbound calls.
func callbackError(params map[string]string) error {
	if params == nil {
		return nil
	}
	code, ok := params["error"]
	if !ok || code == "" {
		return nil
	}
	if desc := params["error_description"]; desc != "" {
		return fmt.Errorf("%w: %s: %s", ErrProviderDenied, code, desc)
	}
	return fmt.Errorf("%w: %s", ErrProviderDenied, code)
}

// classify maps an inbound request onto the flow state machine. It is
// a pure function of the config and the request parameters.
//
// The password and client credentials grants never redirect, so they
// always complete directly. Redirect-based grants complete only when
// the request carries a callback shape for the configured response
// type; anything else initiates a fresh flow.
func classify(cfg *Config, params map[string]string) phase {
	if cfg.GrantType == GrantPassword || cfg.GrantType == GrantClientCredentials {
		return phaseCompleting
	}
	if isCallback(cfg, params) {
		return phaseCompleting
	}
	return phaseInitiating
}

// isCallback reports whether the request parameters look like a
// provider callback for the configured response type.
func isCallback(cfg *Config, params map[string]string) bool {
	if len(params) == 0 {
		return false
	}
	if params["state"] != "" {
		return true
	}
	switch cfg.effectiveResponseType() {
	case ResponseToken:
		return params["access_token"] != "" || params["token"] != ""
	default:
		return params["code"] != ""
	}
}
