package users

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashPassword bcrypts a plain password supplied with a profile upsert.
func hashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
