package auth

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/sorewa/gatehouse/internal/sessionstore"
)

// Signer issues and verifies the RS256 bearer token that binds a
// client to its local session record.
type Signer struct {
	key    *rsa.PrivateKey
	issuer string
	ttl    time.Duration
}

// NewSigner creates a Signer for the given process key
func NewSigner(key *rsa.PrivateKey, issuer string, ttl time.Duration) *Signer {
	return &Signer{key: key, issuer: issuer, ttl: ttl}
}

// Sign builds a signed token for a session record. clientKey is the
// fixed name the record is stored under.
func (s *Signer) Sign(rec sessionstore.Record, clientKey string) (string, error) {
	now := time.Now()

	builder := jwt.NewBuilder().
		Subject(rec.UserID).
		Issuer(s.issuer).
		IssuedAt(now).
		Expiration(now.Add(s.ttl)).
		Claim("username", rec.Username).
		Claim("sid", rec.SessionID).
		Claim("key", clientKey)

	if rec.IsAdmin {
		builder = builder.Claim("admin", true)
	}

	tok, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256(), s.key))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return string(signed), nil
}

// Claims wraps a verified token
type Claims struct {
	Token jwt.Token
}

// Verify parses and validates a bearer token
func (s *Signer) Verify(raw string) (*Claims, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.RS256(), s.key.Public()),
		jwt.WithIssuer(s.issuer),
		jwt.WithValidate(true),
	)
	if err != nil {
		return nil, err
	}
	return &Claims{Token: tok}, nil
}

// Subject returns the user ID claim
func (c *Claims) Subject() string {
	sub, _ := c.Token.Subject()
	return sub
}

func (c *Claims) stringClaim(name string) string {
	var v any
	if c.Token.Get(name, &v) == nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Username returns the username claim
func (c *Claims) Username() string {
	return c.stringClaim("username")
}

// Sid returns the session ID claim
func (c *Claims) Sid() string {
	return c.stringClaim("sid")
}

// ClientKey returns the local session record key claim
func (c *Claims) ClientKey() string {
	return c.stringClaim("key")
}

// IsAdmin reports whether the token carries the admin claim
func (c *Claims) IsAdmin() bool {
	var v any
	if c.Token.Get("admin", &v) == nil {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}
