// Package security hashes and verifies transaction PINs.
package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PINHasher hashes PINs and compares a candidate against a stored hash.
type PINHasher interface {
	Hash(pin string) (string, error)
	Matches(hash, pin string) bool
}

// BcryptHasher implements PINHasher with bcrypt, whose comparison runs in
// constant time with respect to the candidate.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash PIN: %w", err)
	}
	return string(hash), nil
}

// Matches reports whether pin matches hash. An empty hash never matches.
func (h *BcryptHasher) Matches(hash, pin string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}
