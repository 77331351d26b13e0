package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrSecretMismatch is returned when a presented API key does not match its hash.
var ErrSecretMismatch = errors.New("secret does not match")

// HashSecret hashes an operator API key. Costs outside bcrypt's range use the
// library default.
func HashSecret(secret string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareSecret verifies a presented API key against its hash. A mismatch is
// reported as ErrSecretMismatch; a malformed hash keeps bcrypt's error.
func CompareSecret(hashed, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrSecretMismatch
	}
	return err
}
