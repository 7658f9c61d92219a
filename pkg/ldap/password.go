package ldapauth

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordMatcher is a named encode/verify pair for an LDAP password
// scheme. Implementations are stateless; the variant used for a
// directory is chosen once at configuration time.
//
// Encode returns "" for a blank input so callers can detect "no
// password set" directly instead of handling an error.
type PasswordMatcher interface {
	// Encode produces the directory representation of a plain password.
	Encode(plain string) string

	// Matches reports whether plain corresponds to the stored encoded
	// value.
	Matches(plain, stored string) bool
}

// MatcherForScheme returns the matcher for a scheme name. Scheme
// selection is static per-directory configuration; it is never
// inferred from stored values at runtime.
func MatcherForScheme(scheme string) (PasswordMatcher, error) {
	switch strings.ToLower(scheme) {
	case "plain":
		return PlainMatcher{}, nil
	case "k5key":
		return K5KeyMatcher{}, nil
	case "md5":
		return MD5Matcher{}, nil
	case "smd5":
		return SMD5Matcher{}, nil
	case "sha":
		return SHAMatcher{}, nil
	case "ssha":
		return SSHAMatcher{}, nil
	case "crypt", "bcrypt":
		return BcryptMatcher{}, nil
	default:
		return nil, fmt.Errorf("ldap: unknown password scheme %q", scheme)
	}
}

// PlainMatcher stores passwords verbatim. Offers no confidentiality;
// only for directories that already hold cleartext passwords.
type PlainMatcher struct{}

func (PlainMatcher) Encode(plain string) string {
	if strings.TrimSpace(plain) == "" {
		return ""
	}
	return plain
}

func (PlainMatcher) Matches(plain, stored string) bool {
	if plain == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(plain), []byte(stored)) == 1
}

// K5KeyMatcher implements the legacy {K5KEY} marker scheme: the marker
// tag concatenated with the plain password. This is not hashing and
// offers no confidentiality; it exists only for compatibility with
// directories that delegate verification to Kerberos.
type K5KeyMatcher struct{}

const k5keyPrefix = "{K5KEY}"

func (K5KeyMatcher) Encode(plain string) string {
	if strings.TrimSpace(plain) == "" {
		return ""
	}
	return k5keyPrefix + plain
}

func (m K5KeyMatcher) Matches(plain, stored string) bool {
	encoded := m.Encode(plain)
	if encoded == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(encoded), []byte(stored)) == 1
}

// MD5Matcher implements the {MD5} scheme: base64 of the unsalted MD5
// digest.
type MD5Matcher struct{}

func (MD5Matcher) Encode(plain string) string {
	if strings.TrimSpace(plain) == "" {
		return ""
	}
	sum := md5.Sum([]byte(plain))
	return "{MD5}" + base64.StdEncoding.EncodeToString(sum[:])
}

func (m MD5Matcher) Matches(plain, stored string) bool {
	encoded := m.Encode(plain)
	if encoded == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(encoded), []byte(stored)) == 1
}

// SMD5Matcher implements the {SMD5} scheme: base64 of the MD5 digest
// of password+salt, followed by the salt.
type SMD5Matcher struct{}

func (SMD5Matcher) Encode(plain string) string {
	if strings.TrimSpace(plain) == "" {
		return ""
	}
	salt := newSalt()
	sum := md5.Sum(append([]byte(plain), salt...))
	return "{SMD5}" + base64.StdEncoding.EncodeToString(append(sum[:], salt...))
}

func (SMD5Matcher) Matches(plain, stored string) bool {
	payload, ok := schemePayload(stored, "{SMD5}")
	if plain == "" || !ok || len(payload) <= md5.Size {
		return false
	}
	digest, salt := payload[:md5.Size], payload[md5.Size:]
	sum := md5.Sum(append([]byte(plain), salt...))
	return subtle.ConstantTimeCompare(sum[:], digest) == 1
}

// SHAMatcher implements the {SHA} scheme: base64 of the unsalted SHA-1
// digest.
type SHAMatcher struct{}

func (SHAMatcher) Encode(plain string) string {
	if strings.TrimSpace(plain) == "" {
		return ""
	}
	sum := sha1.Sum([]byte(plain))
	return "{SHA}" + base64.StdEncoding.EncodeToString(sum[:])
}

func (m SHAMatcher) Matches(plain, stored string) bool {
	encoded := m.Encode(plain)
	if encoded == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(encoded), []byte(stored)) == 1
}

// SSHAMatcher implements the {SSHA} scheme: base64 of the SHA-1 digest
// of password+salt, followed by the salt.
type SSHAMatcher struct{}

func (SSHAMatcher) Encode(plain string) string {
	if strings.TrimSpace(plain) == "" {
		return ""
	}
	salt := newSalt()
	sum := sha1.Sum(append([]byte(plain), salt...))
	return "{SSHA}" + base64.StdEncoding.EncodeToString(append(sum[:], salt...))
}

func (SSHAMatcher) Matches(plain, stored string) bool {
	payload, ok := schemePayload(stored, "{SSHA}")
	if plain == "" || !ok || len(payload) <= sha1.Size {
		return false
	}
	digest, salt := payload[:sha1.Size], payload[sha1.Size:]
	sum := sha1.Sum(append([]byte(plain), salt...))
	return subtle.ConstantTimeCompare(sum[:], digest) == 1
}

// BcryptMatcher implements a {CRYPT}-tagged bcrypt scheme.
type BcryptMatcher struct{}

const cryptPrefix = "{CRYPT}"

func (BcryptMatcher) Encode(plain string) string {
	if strings.TrimSpace(plain) == "" {
		return ""
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return ""
	}
	return cryptPrefix + string(hash)
}

func (BcryptMatcher) Matches(plain, stored string) bool {
	if plain == "" {
		return false
	}
	hash, found := strings.CutPrefix(stored, cryptPrefix)
	if !found {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// schemePayload strips the scheme tag (case-insensitive) and decodes
// the base64 payload.
func schemePayload(stored, prefix string) ([]byte, bool) {
	if len(stored) < len(prefix) || !strings.EqualFold(stored[:len(prefix)], prefix) {
		return nil, false
	}
	payload, err := base64.StdEncoding.DecodeString(stored[len(prefix):])
	if err != nil {
		return nil, false
	}
	return payload, true
}

func newSalt() []byte {
	salt := make([]byte, 8)
	// rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(salt)
	return salt
}
