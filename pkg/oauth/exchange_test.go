package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestTokenExchanger_Exchange(t *testing.T) {
	var gotForm url.Values
	var gotContentType, gotAccept string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok123","token_type":"bearer","expires_in":3600}`))
	}))
	defer server.Close()

	cfg := &Config{ClientID: "abc", ClientSecret: "secret", TokenURL: server.URL, CallbackURL: "https://example.com/cb"}
	exchanger := &tokenExchanger{httpClient: server.Client()}

	token, err := exchanger.exchange(context.Background(), cfg, authorizationCodeParams(cfg, "the-code", "the-verifier"))
	if err != nil {
		t.Fatalf("exchange() failed: %v", err)
	}

	if token.AccessToken != "tok123" {
		t.Errorf("access token = %q", token.AccessToken)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q", gotAccept)
	}

	want := map[string]string{
		"grant_type":    "authorization_code",
		"code":          "the-code",
		"client_id":     "abc",
		"client_secret": "secret",
		"redirect_uri":  "https://example.com/cb",
		"code_verifier": "the-verifier",
	}
	for key, value := range want {
		if got := gotForm.Get(key); got != value {
			t.Errorf("form[%q] = %q, want %q", key, got, value)
		}
	}
}

func TestTokenExchanger_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	cfg := &Config{ClientID: "abc", TokenURL: server.URL}
	exchanger := &tokenExchanger{httpClient: server.Client()}

	_, err := exchanger.exchange(context.Background(), cfg, clientCredentialsParams(cfg))
	if !errors.Is(err, ErrProviderCommunication) {
		t.Fatalf("expected ErrProviderCommunication, got %v", err)
	}
	// The raw body is preserved for diagnosis.
	if !strings.Contains(err.Error(), "invalid_grant") {
		t.Errorf("error %q does not carry the response body", err)
	}
}

func TestTokenExchanger_MissingTokenURL(t *testing.T) {
	exchanger := &tokenExchanger{httpClient: http.DefaultClient}
	_, err := exchanger.exchange(context.Background(), &Config{ClientID: "abc"}, url.Values{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestAuthorizationCodeParams_OmitsOptionalFields(t *testing.T) {
	cfg := &Config{ClientID: "abc"}
	data := authorizationCodeParams(cfg, "c", "")

	for _, key := range []string{"client_secret", "redirect_uri", "code_verifier"} {
		if _, present := data[key]; present {
			t.Errorf("%s should be omitted when unset", key)
		}
	}
}

func TestPasswordParams(t *testing.T) {
	cfg := &Config{ClientID: "abc", Scopes: []string{"profile", "email"}}
	data := passwordParams(cfg, "alice", "pw")

	if got := data.Get("grant_type"); got != "password" {
		t.Errorf("grant_type = %q", got)
	}
	if got := data.Get("username"); got != "alice" {
		t.Errorf("username = %q", got)
	}
	if got := data.Get("scope"); got != "profile email" {
		t.Errorf("scope = %q", got)
	}
}

func TestClientCredentialsParams_AlwaysSendsSecret(t *testing.T) {
	cfg := &Config{ClientID: "abc", ClientSecret: "secret"}
	data := clientCredentialsParams(cfg)

	if got := data.Get("client_secret"); got != "secret" {
		t.Errorf("client_secret = %q", got)
	}
	if _, present := data["scope"]; present {
		t.Error("scope should be omitted when no scopes are configured")
	}
}

func TestRefreshParams(t *testing.T) {
	cfg := &Config{ClientID: "abc", ClientSecret: "secret"}
	data := refreshParams(cfg, "ref-1")

	if got := data.Get("grant_type"); got != "refresh_token" {
		t.Errorf("grant_type = %q", got)
	}
	if got := data.Get("refresh_token"); got != "ref-1" {
		t.Errorf("refresh_token = %q", got)
	}
}
