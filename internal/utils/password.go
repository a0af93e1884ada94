package utils

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the user does not exist, so a failed
// login costs one bcrypt comparison whether or not the email is known.
var dummyHash = mustHash("todo-service-dummy-password", bcrypt.DefaultCost)

// PasswordHasher hashes and checks passwords with bcrypt at a fixed cost.
type PasswordHasher struct {
	Cost int
}

func NewPasswordHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return PasswordHasher{Cost: cost}
}

// Hash returns the bcrypt hash of plain.
func (h PasswordHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.Cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Verify reports whether plain matches hash.
func (h PasswordHasher) Verify(hash, plain string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	return err == nil
}

// VerifyAbsent burns the time of one comparison and always reports false.
func (h PasswordHasher) VerifyAbsent(plain string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
	return false
}

func mustHash(plain string, cost int) []byte {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		panic(err)
	}
	return b
}
