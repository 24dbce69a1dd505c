package helpers

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrCorruptHash marks a stored credential whose hash is not a valid bcrypt
// string. The record is unusable but the caller must treat it as an
// authentication failure, never a crash.
var ErrCorruptHash = errors.New("stored password hash is corrupt")

// HashPassword hashes the plain text password using bcrypt. cost <= 0 uses
// the bcrypt default.
func HashPassword(plain string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares a bcrypt hash with a plain password. It returns
// ErrCorruptHash when the stored value is not a bcrypt hash at all.
func VerifyPassword(hash string, plain string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, errors.Join(ErrCorruptHash, err)
}
