package auth

import (
	"errors"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordLen is the bcrypt input limit in bytes.
const MaxPasswordLen = 72

func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", common.NewValidationError("Password must be at most %d bytes", MaxPasswordLen)
		}
		return "", err
	}
	return string(h), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
