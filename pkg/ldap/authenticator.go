package ldapauth

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Authenticator performs username/password authentication against an
// LDAP directory.
//
// Two verification modes are supported. Bind mode (the default)
// derives the user DN from a template and attempts a simple bind with
// the supplied password. Compare mode searches for the user entry and
// verifies the stored userPassword attribute with a configured
// PasswordMatcher, for directories whose entries carry legacy password
// schemes.
type Authenticator struct {
	url             string
	userDNTemplate  string
	serviceBindDN   string
	servicePassword string
	startTLS        bool
	tlsConfig       *tls.Config
	timeout         time.Duration
	implicitTLS     bool

	searchBase   string
	searchFilter string
	matcher      PasswordMatcher

	dialContext func(ctx context.Context) (ldapConn, error)
}

// Option configures the authenticator.
type Option func(*Authenticator)

// WithUserDNTemplate configures how user DNs are derived from usernames.
// The template must contain a single %s verb, which will be replaced with the username.
func WithUserDNTemplate(template string) Option {
	return func(a *Authenticator) {
		a.userDNTemplate = template
	}
}

// WithServiceAccount sets the DN and password used for an initial bind before authenticating users.
func WithServiceAccount(dn, password string) Option {
	return func(a *Authenticator) {
		a.serviceBindDN = dn
		a.servicePassword = password
	}
}

// WithStartTLS enables StartTLS negotiation after connecting over ldap://.
func WithStartTLS() Option {
	return func(a *Authenticator) {
		a.startTLS = true
	}
}

// WithTLSConfig supplies the TLS configuration used for StartTLS or ldaps connections.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(a *Authenticator) {
		a.tlsConfig = cfg
	}
}

// WithTimeout sets the dial (and read) timeout for LDAP operations.
func WithTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		a.timeout = d
	}
}

// WithPasswordMatcher switches the authenticator to compare mode:
// instead of binding as the user, the entry found under searchBase
// using searchFilter (a template with a single %s verb for the
// username) has its userPassword attribute verified with matcher.
// The matcher is fixed per directory; it is never inferred from the
// stored value at runtime.
func WithPasswordMatcher(matcher PasswordMatcher, searchBase, searchFilter string) Option {
	return func(a *Authenticator) {
		a.matcher = matcher
		a.searchBase = searchBase
		a.searchFilter = searchFilter
	}
}

// WithDialContext overrides the dial logic. Used in tests.
func WithDialContext(dial func(ctx context.Context) (ldapConn, error)) Option {
	return func(a *Authenticator) {
		a.dialContext = dial
	}
}

// ldapConn captures the subset of methods we exercise on *ldap.Conn.
type ldapConn interface {
	Bind(username, password string) error
	StartTLS(config *tls.Config) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

var (
	// ErrMissingTemplate indicates no template was supplied to derive user DNs.
	ErrMissingTemplate = errors.New("ldap: user DN template must be configured")

	// ErrUserNotFound indicates the compare-mode search matched no entry.
	ErrUserNotFound = errors.New("ldap: user not found")

	// ErrInvalidCredentials indicates the stored password did not match.
	ErrInvalidCredentials = errors.New("ldap: invalid credentials")
)

// NewAuthenticator constructs an LDAP authenticator targeting the provided LDAP URL.
func NewAuthenticator(url string, opts ...Option) (*Authenticator, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("ldap: url must not be empty")
	}

	auth := &Authenticator{url: url}

	for _, opt := range opts {
		if opt != nil {
			opt(auth)
		}
	}

	if auth.matcher != nil && (auth.searchBase == "" || auth.searchFilter == "") {
		return nil, errors.New("ldap: search base and filter must be configured for compare mode")
	}

	if strings.HasPrefix(strings.ToLower(url), "ldaps://") {
		auth.implicitTLS = true
		auth.startTLS = false
		if auth.tlsConfig == nil {
			auth.tlsConfig = defaultTLSConfig()
		}
	} else if auth.startTLS && auth.tlsConfig == nil {
		auth.tlsConfig = defaultTLSConfig()
	}

	return auth, nil
}

// Authenticate verifies the username/password pair against the
// directory using the configured mode.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(username) == "" || password == "" {
		return errors.New("ldap: username and password must not be empty")
	}
	if a.matcher == nil && a.userDNTemplate == "" {
		return ErrMissingTemplate
	}

	conn, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if a.startTLS {
		if err := conn.StartTLS(a.tlsConfig); err != nil {
			return fmt.Errorf("ldap: starttls failed: %w", err)
		}
	}

	if a.serviceBindDN != "" {
		if err := conn.Bind(a.serviceBindDN, a.servicePassword); err != nil {
			return fmt.Errorf("ldap: service bind failed: %w", err)
		}
	}

	if a.matcher != nil {
		return a.compareUser(conn, username, password)
	}

	userDN := fmt.Sprintf(a.userDNTemplate, username)
	if err := conn.Bind(userDN, password); err != nil {
		return fmt.Errorf("ldap: user bind failed: %w", err)
	}

	return nil
}

// compareUser locates the user entry and verifies its stored
// userPassword attribute with the configured matcher.
func (a *Authenticator) compareUser(conn ldapConn, username, password string) error {
	filter := fmt.Sprintf(a.searchFilter, ldap.EscapeFilter(username))
	req := ldap.NewSearchRequest(
		a.searchBase,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 2, 0, false,
		filter,
		[]string{"userPassword"},
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		return fmt.Errorf("ldap: search failed: %w", err)
	}
	if len(res.Entries) == 0 {
		return ErrUserNotFound
	}
	if len(res.Entries) > 1 {
		return fmt.Errorf("ldap: filter %q matched %d entries", filter, len(res.Entries))
	}

	stored := res.Entries[0].GetAttributeValue("userPassword")
	if stored == "" || !a.matcher.Matches(password, stored) {
		return ErrInvalidCredentials
	}

	return nil
}

func (a *Authenticator) dial(ctx context.Context) (ldapConn, error) {
	if a.dialContext != nil {
		return a.dialContext(ctx)
	}

	dialer := &net.Dialer{}
	if a.timeout > 0 {
		dialer.Timeout = a.timeout
	}

	opts := []ldap.DialOpt{ldap.DialWithDialer(dialer)}

	if a.implicitTLS {
		tlsCfg := a.tlsConfig
		if tlsCfg == nil {
			tlsCfg = defaultTLSConfig()
		}
		opts = append(opts, ldap.DialWithTLSConfig(tlsCfg))
	}

	conn, err := ldap.DialURL(a.url, opts...)
	if err != nil {
		return nil, fmt.Errorf("ldap: dial failed: %w", err)
	}
	return conn, nil
}

func defaultTLSConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12}
}
