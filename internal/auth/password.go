package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordEncoding identifies how a stored password is represented.
type PasswordEncoding int

const (
	// Plaintext marks legacy rows that were written without hashing.
	Plaintext PasswordEncoding = iota
	// Bcrypt marks modular-crypt bcrypt digests.
	Bcrypt
)

func (e PasswordEncoding) String() string {
	if e == Bcrypt {
		return "bcrypt"
	}
	return "plaintext"
}

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// DetectEncoding sniffs the encoding of a stored password.
func DetectEncoding(stored string) PasswordEncoding {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(stored, p) {
			return Bcrypt
		}
	}
	return Plaintext
}

// ComparePassword reports whether input matches the stored password.
func ComparePassword(stored, input string) bool {
	if stored == "" {
		return false
	}
	switch DetectEncoding(stored) {
	case Bcrypt:
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
	default:
		return subtle.ConstantTimeCompare([]byte(stored), []byte(input)) == 1
	}
}

// HashPassword hashes plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
