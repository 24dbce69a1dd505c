package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// DecodeSigningKey decodes a base64-encoded Ed25519 private key from
// configuration. Both the 32-byte seed form and the 64-byte expanded form
// are accepted, with or without padding.
func DecodeSigningKey(encoded string) (ed25519.PrivateKey, error) {
	if encoded == "" {
		return nil, errors.New("signing key is empty")
	}
	raw, err := decodeBase64(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("signing key must be %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

// GenerateSigningKey creates a fresh Ed25519 key pair and returns the
// private key together with its base64 encoding for configuration.
func GenerateSigningKey() (ed25519.PrivateKey, string, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, "", err
	}
	return priv, base64.StdEncoding.EncodeToString(priv), nil
}

func decodeBase64(value string) ([]byte, error) {
	if decoded, err := base64.RawStdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
