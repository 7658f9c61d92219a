package ldapauth

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-ldap/ldap/v3"
)

// fakeConn records LDAP operations and replays scripted responses.
type fakeConn struct {
	binds       []string
	bindErr     map[string]error
	startedTLS  bool
	startTLSErr error
	searchReq   *ldap.SearchRequest
	searchRes   *ldap.SearchResult
	searchErr   error
	closed      bool
}

func (c *fakeConn) Bind(username, password string) error {
	c.binds = append(c.binds, username+"/"+password)
	if err := c.bindErr[username]; err != nil {
		return err
	}
	return nil
}

func (c *fakeConn) StartTLS(*tls.Config) error {
	c.startedTLS = true
	return c.startTLSErr
}

func (c *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	c.searchReq = req
	if c.searchErr != nil {
		return nil, c.searchErr
	}
	if c.searchRes != nil {
		return c.searchRes, nil
	}
	return &ldap.SearchResult{}, nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func dialTo(conn *fakeConn) Option {
	return WithDialContext(func(context.Context) (ldapConn, error) {
		return conn, nil
	})
}

func entryWithPassword(dn, stored string) *ldap.Entry {
	return &ldap.Entry{
		DN: dn,
		Attributes: []*ldap.EntryAttribute{
			{Name: "userPassword", Values: []string{stored}},
		},
	}
}

func TestAuthenticate_BindMode(t *testing.T) {
	conn := &fakeConn{}
	auth, err := NewAuthenticator("ldap://directory.example.com",
		WithUserDNTemplate("uid=%s,ou=people,dc=example,dc=com"),
		dialTo(conn),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := auth.Authenticate(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("Authenticate() failed: %v", err)
	}

	want := "uid=alice,ou=people,dc=example,dc=com/secret"
	if len(conn.binds) != 1 || conn.binds[0] != want {
		t.Errorf("binds = %v, want [%s]", conn.binds, want)
	}
	if !conn.closed {
		t.Error("connection not closed")
	}
}

func TestAuthenticate_BindModeWrongPassword(t *testing.T) {
	bindErr := errors.New("ldap: invalid credentials (49)")
	conn := &fakeConn{
		bindErr: map[string]error{"uid=alice,ou=people,dc=example,dc=com": bindErr},
	}
	auth, err := NewAuthenticator("ldap://directory.example.com",
		WithUserDNTemplate("uid=%s,ou=people,dc=example,dc=com"),
		dialTo(conn),
	)
	if err != nil {
		t.Fatal(err)
	}

	err = auth.Authenticate(context.Background(), "alice", "wrong")
	if !errors.Is(err, bindErr) {
		t.Fatalf("expected wrapped bind error, got %v", err)
	}
}

func TestAuthenticate_ServiceBindBeforeUserBind(t *testing.T) {
	conn := &fakeConn{}
	auth, err := NewAuthenticator("ldap://directory.example.com",
		WithUserDNTemplate("uid=%s,ou=people,dc=example,dc=com"),
		WithServiceAccount("cn=svc,dc=example,dc=com", "svcpw"),
		dialTo(conn),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := auth.Authenticate(context.Background(), "alice", "secret"); err != nil {
		t.Fatal(err)
	}

	if len(conn.binds) != 2 {
		t.Fatalf("binds = %v, want service bind then user bind", conn.binds)
	}
	if conn.binds[0] != "cn=svc,dc=example,dc=com/svcpw" {
		t.Errorf("first bind = %q, want service account", conn.binds[0])
	}
}

func TestAuthenticate_StartTLSBeforeBind(t *testing.T) {
	conn := &fakeConn{}
	auth, err := NewAuthenticator("ldap://directory.example.com",
		WithUserDNTemplate("uid=%s,ou=people,dc=example,dc=com"),
		WithStartTLS(),
		dialTo(conn),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := auth.Authenticate(context.Background(), "alice", "secret"); err != nil {
		t.Fatal(err)
	}
	if !conn.startedTLS {
		t.Error("StartTLS was not negotiated")
	}
}

func TestAuthenticate_StartTLSFailureAborts(t *testing.T) {
	tlsErr := errors.New("tls handshake failed")
	conn := &fakeConn{startTLSErr: tlsErr}
	auth, err := NewAuthenticator("ldap://directory.example.com",
		WithUserDNTemplate("uid=%s,ou=people,dc=example,dc=com"),
		WithStartTLS(),
		dialTo(conn),
	)
	if err != nil {
		t.Fatal(err)
	}

	err = auth.Authenticate(context.Background(), "alice", "secret")
	if !errors.Is(err, tlsErr) {
		t.Fatalf("expected TLS error, got %v", err)
	}
	if len(conn.binds) != 0 {
		t.Errorf("bind attempted after failed StartTLS: %v", conn.binds)
	}
}

func TestAuthenticate_LDAPSDisablesStartTLS(t *testing.T) {
	conn := &fakeConn{}
	auth, err := NewAuthenticator("ldaps://directory.example.com",
		WithUserDNTemplate("uid=%s,ou=people,dc=example,dc=com"),
		WithStartTLS(),
		dialTo(conn),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := auth.Authenticate(context.Background(), "alice", "secret"); err != nil {
		t.Fatal(err)
	}
	if conn.startedTLS {
		t.Error("StartTLS negotiated on an implicit TLS connection")
	}
}

func TestAuthenticate_CompareMode(t *testing.T) {
	matcher, err := MatcherForScheme("ssha")
	if err != nil {
		t.Fatal(err)
	}
	stored := matcher.Encode("s3cret")

	conn := &fakeConn{
		searchRes: &ldap.SearchResult{
			Entries: []*ldap.Entry{entryWithPassword("uid=alice,ou=people,dc=example,dc=com", stored)},
		},
	}
	auth, err := NewAuthenticator("ldap://directory.example.com",
		WithPasswordMatcher(matcher, "ou=people,dc=example,dc=com", "(uid=%s)"),
		dialTo(conn),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := auth.Authenticate(context.Background(), "alice", "s3cret"); err != nil {
		t.Fatalf("Authenticate() failed: %v", err)
	}

	if conn.searchReq == nil {
		t.Fatal("no search performed")
	}
	if conn.searchReq.BaseDN != "ou=people,dc=example,dc=com" {
		t.Errorf("base DN = %q", conn.searchReq.BaseDN)
	}
	if conn.searchReq.Filter != "(uid=alice)" {
		t.Errorf("filter = %q", conn.searchReq.Filter)
	}
	// Compare mode never binds as the user.
	if len(conn.binds) != 0 {
		t.Errorf("unexpected binds: %v", conn.binds)
	}
}

func TestAuthenticate_CompareModeWrongPassword(t *testing.T) {
	matcher, _ := MatcherForScheme("ssha")
	conn := &fakeConn{
		searchRes: &ldap.SearchResult{
			Entries: []*ldap.Entry{entryWithPassword("uid=alice", matcher.Encode("s3cret"))},
		},
	}
	auth, err := NewAuthenticator("ldap://directory.example.com",
		WithPasswordMatcher(matcher, "ou=people,dc=example,dc=com", "(uid=%s)"),
		dialTo(conn),
	)
	if err != nil {
		t.Fatal(err)
	}

	err = auth.Authenticate(context.Background(), "alice", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticate_CompareModeUserNotFound(t *testing.T) {
	matcher, _ := MatcherForScheme("plain")
	conn := &fakeConn{searchRes: &ldap.SearchResult{}}
	auth, err := NewAuthenticator("ldap://directory.example.com",
		WithPasswordMatcher(matcher, "ou=people,dc=example,dc=com", "(uid=%s)"),
		dialTo(conn),
	)
	if err != nil {
		t.Fatal(err)
	}

	err = auth.Authenticate(context.Background(), "ghost", "pw")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthenticate_CompareModeAmbiguousMatch(t *testing.T) {
	matcher, _ := MatcherForScheme("plain")
	conn := &fakeConn{
		searchRes: &ldap.SearchResult{
			Entries: []*ldap.Entry{
				entryWithPassword("uid=alice,ou=a", "pw"),
				entryWithPassword("uid=alice,ou=b", "pw"),
			},
		},
	}
	auth, err := NewAuthenticator("ldap://directory.example.com",
		WithPasswordMatcher(matcher, "dc=example,dc=com", "(uid=%s)"),
		dialTo(conn),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := auth.Authenticate(context.Background(), "alice", "pw"); err == nil {
		t.Fatal("expected error for ambiguous match")
	}
}

func TestAuthenticate_CompareModeEscapesFilterInput(t *testing.T) {
	matcher, _ := MatcherForScheme("plain")
	conn := &fakeConn{searchRes: &ldap.SearchResult{}}
	auth, err := NewAuthenticator("ldap://directory.example.com",
		WithPasswordMatcher(matcher, "dc=example,dc=com", "(uid=%s)"),
		dialTo(conn),
	)
	if err != nil {
		t.Fatal(err)
	}

	_ = auth.Authenticate(context.Background(), "ali*)(uid=ce", "pw")
	if conn.searchReq == nil {
		t.Fatal("no search performed")
	}
	if strings.Contains(conn.searchReq.Filter, "*)") {
		t.Errorf("filter %q contains unescaped metacharacters", conn.searchReq.Filter)
	}
}

func TestAuthenticate_EmptyCredentials(t *testing.T) {
	auth, err := NewAuthenticator("ldap://directory.example.com",
		WithUserDNTemplate("uid=%s,dc=example,dc=com"),
		dialTo(&fakeConn{}),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := auth.Authenticate(context.Background(), "", "pw"); err == nil {
		t.Error("expected error for empty username")
	}
	if err := auth.Authenticate(context.Background(), "alice", ""); err == nil {
		t.Error("expected error for empty password")
	}
}

func TestAuthenticate_MissingTemplate(t *testing.T) {
	auth, err := NewAuthenticator("ldap://directory.example.com", dialTo(&fakeConn{}))
	if err != nil {
		t.Fatal(err)
	}

	err = auth.Authenticate(context.Background(), "alice", "pw")
	if !errors.Is(err, ErrMissingTemplate) {
		t.Fatalf("expected ErrMissingTemplate, got %v", err)
	}
}

func TestAuthenticate_CancelledContext(t *testing.T) {
	auth, err := NewAuthenticator("ldap://directory.example.com",
		WithUserDNTemplate("uid=%s,dc=example,dc=com"),
		dialTo(&fakeConn{}),
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := auth.Authenticate(ctx, "alice", "pw"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewAuthenticator_Validation(t *testing.T) {
	if _, err := NewAuthenticator(""); err == nil {
		t.Error("expected error for empty URL")
	}

	matcher, _ := MatcherForScheme("plain")
	if _, err := NewAuthenticator("ldap://x", WithPasswordMatcher(matcher, "", "(uid=%s)")); err == nil {
		t.Error("expected error for compare mode without search base")
	}
}

func TestAuthenticate_DialError(t *testing.T) {
	dialErr := errors.New("connection refused")
	auth, err := NewAuthenticator("ldap://directory.example.com",
		WithUserDNTemplate("uid=%s,dc=example,dc=com"),
		WithDialContext(func(context.Context) (ldapConn, error) {
			return nil, fmt.Errorf("ldap: dial failed: %w", dialErr)
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := auth.Authenticate(context.Background(), "alice", "pw"); !errors.Is(err, dialErr) {
		t.Fatalf("expected dial error, got %v", err)
	}
}
