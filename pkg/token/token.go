// Package token issues and verifies identity tokens with an Ed25519 key
// pair. Signing authority stays with the Signer; a Verifier is built from
// the public key alone, so components that only validate tokens never hold
// the private key.
package token

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Leeway tolerated on expiry/issued-at checks to absorb clock skew
// between the issuer and verifiers.
const Leeway = 30 * time.Second

// ErrorKind classifies verification failures so callers can decide between
// prompting a re-login and treating the failure as transient.
type ErrorKind string

const (
	KindMalformed        ErrorKind = "token_malformed"
	KindSignatureInvalid ErrorKind = "token_signature_invalid"
	KindExpired          ErrorKind = "token_expired"
)

// TokenError wraps a verification failure with its classification.
type TokenError struct {
	Kind ErrorKind
	err  error
}

func (e *TokenError) Error() string {
	if e.err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.err.Error()
}

func (e *TokenError) Unwrap() error { return e.err }

// Claims is the signed payload of an identity token.
type Claims struct {
	Business string `json:"business"`
	Provider string `json:"provider,omitempty"` // "local" or external provider name
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string { return c.Subject }

// Signer holds the private key and issues tokens. It is safe for
// concurrent use.
type Signer struct {
	key    ed25519.PrivateKey
	issuer string
	ttl    time.Duration
}

func NewSigner(key ed25519.PrivateKey, issuer string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Signer{key: key, issuer: issuer, ttl: ttl}
}

// Issue signs a token for the given subject. Expiry is issued-at + TTL.
func (s *Signer) Issue(userID, business, provider string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.ttl)
	claims := &Claims{
		Business: business,
		Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := t.SignedString(s.key)
	return signed, exp, err
}

// Public returns the verification key for distribution to verifiers.
func (s *Signer) Public() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// Verifier validates tokens against a public key.
type Verifier interface {
	Verify(tokenStr string) (*Claims, error)
}

type verifier struct {
	pub ed25519.PublicKey
}

func NewVerifier(pub ed25519.PublicKey) Verifier {
	return &verifier{pub: pub}
}

// Verify checks signature, expiry, and the presence of required claim
// fields. All failures come back as *TokenError.
func (v *verifier) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.pub, nil
	}, jwt.WithLeeway(Leeway), jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	if err != nil {
		return nil, classify(err)
	}
	if !tkn.Valid {
		return nil, &TokenError{Kind: KindSignatureInvalid}
	}
	if claims.Subject == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, &TokenError{Kind: KindMalformed, err: errors.New("missing required claims")}
	}
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return nil, &TokenError{Kind: KindMalformed, err: errors.New("expiry not after issuance")}
	}
	return claims, nil
}

func classify(err error) *TokenError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Kind: KindExpired, err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return &TokenError{Kind: KindSignatureInvalid, err: err}
	default:
		return &TokenError{Kind: KindMalformed, err: err}
	}
}
