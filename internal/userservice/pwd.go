package userservice

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// set hashes the plaintext and stores both forms. The plaintext is kept only
// long enough to validate it; it is never written to the store.
func (p *Password) set(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcryptCost)
	if err != nil {
		return err
	}

	p.Plain = pwd
	p.Hash = hash

	return nil
}

// compare reports whether pwd matches the stored hash. A mismatch is a
// normal outcome, not an error.
func (p *Password) compare(pwd string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(p.Hash, []byte(pwd))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}
