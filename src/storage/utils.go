package storage

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var keyAliasPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// NewValidator returns the validator used for every entity. It registers
// key_alias, which accepts environment variable names only so a provider row
// can never carry the secret itself.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("key_alias", func(fl validator.FieldLevel) bool {
		return keyAliasPattern.MatchString(fl.Field().String())
	})
	return v
}

// GenerateToken returns a random 32 byte session token, hex encoded.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
