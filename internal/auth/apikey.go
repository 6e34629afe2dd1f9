package auth

import (
	"crypto/subtle"

	"github.com/Vovarama1992/medassist-core/internal/apperr"
)

// APIKeyValidator compares a presented backend key against the current
// key and, during rotation, the previous one.
type APIKeyValidator struct {
	Current  string
	Previous string
}

func (v APIKeyValidator) Validate(presented string) error {
	if v.Current == "" && v.Previous == "" {
		return apperr.New(apperr.KindAuth, "api_key_not_configured", nil)
	}
	if v.Current != "" &&
		subtle.ConstantTimeCompare([]byte(presented), []byte(v.Current)) == 1 {
		return nil
	}
	if v.Previous != "" &&
		subtle.ConstantTimeCompare([]byte(presented), []byte(v.Previous)) == 1 {
		return nil
	}
	return apperr.New(apperr.KindAuth, "api_key_mismatch", nil)
}
