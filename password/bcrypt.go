package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooLong indicates plaintext beyond bcrypt's 72 byte input limit.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Verifier checks plaintext against a stored hash.
type Verifier interface {
	Verify(hash, plaintext string) bool
}

// Bcrypt hashes and verifies passwords with bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a Bcrypt using cost, or bcrypt.DefaultCost when cost is
// outside the supported range.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Hash returns the bcrypt hash of plaintext.
func (b *Bcrypt) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", ErrPasswordTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(out), nil
}

// Verify reports whether plaintext matches hash. Malformed hashes never match.
func (b *Bcrypt) Verify(hash, plaintext string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// NeedsRehash reports whether hash was produced with a lower cost than b.
func (b *Bcrypt) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < b.cost
}
