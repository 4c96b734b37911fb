// Package auth guards the read API with a shared API key.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// Where the key may be presented
const (
	HeaderName = "x-api-key"
	QueryParam = "api_key"
)

// UnauthorizedMessage is the error body of every rejected request
const UnauthorizedMessage = "Unauthorized: Invalid API key"

// Auth holds the accepted key, either in clear text or as a bcrypt hash
type Auth struct {
	Key  string
	Hash []byte
}

// NewAuth creates a new Auth instance. When hash is set it takes
// precedence over key.
func NewAuth(key string, hash []byte) *Auth {
	return &Auth{Key: key, Hash: hash}
}

// PresentedKey returns the key sent with r, header first
func PresentedKey(r *http.Request) string {
	if k := r.Header.Get(HeaderName); k != "" {
		return k
	}
	return r.URL.Query().Get(QueryParam)
}

// CheckKey reports whether candidate matches the configured key
func (a *Auth) CheckKey(candidate string) bool {
	if candidate == "" {
		return false
	}
	if len(a.Hash) > 0 {
		return bcrypt.CompareHashAndPassword(a.Hash, []byte(candidate)) == nil
	}
	if a.Key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.Key), []byte(candidate)) == 1
}

// RequireAPIKey is middleware that rejects requests without a valid key
func (a *Auth) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.CheckKey(PresentedKey(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": UnauthorizedMessage})
			return
		}
		next.ServeHTTP(w, r)
	})
}
