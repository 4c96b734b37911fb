package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func hashedAuth(t *testing.T) *Auth {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return NewAuth("", hash)
}

// --- CheckKey ---

func TestCheckKey(t *testing.T) {
	tests := []struct {
		name      string
		auth      *Auth
		candidate string
		want      bool
	}{
		{"plain match", NewAuth("s3cret-key", nil), "s3cret-key", true},
		{"plain mismatch", NewAuth("s3cret-key", nil), "s3cret-kez", false},
		{"plain prefix", NewAuth("s3cret-key", nil), "s3cret", false},
		{"empty candidate", NewAuth("s3cret-key", nil), "", false},
		{"no key configured", NewAuth("", nil), "", false},
		{"no key configured, any candidate", NewAuth("", nil), "anything", false},
		{"hash match", hashedAuth(t), "s3cret-key", true},
		{"hash mismatch", hashedAuth(t), "wrong", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.auth.CheckKey(tt.candidate); got != tt.want {
				t.Errorf("CheckKey(%q) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestCheckKey_HashTakesPrecedence(t *testing.T) {
	a := hashedAuth(t)
	a.Key = "plain"
	if a.CheckKey("plain") {
		t.Error("plain key should be ignored when a hash is set")
	}
}

// --- PresentedKey ---

func TestPresentedKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/results/hour?api_key=from-query", nil)
	if got := PresentedKey(r); got != "from-query" {
		t.Errorf("query key = %q", got)
	}

	r.Header.Set("x-api-key", "from-header")
	if got := PresentedKey(r); got != "from-header" {
		t.Errorf("header should win, got %q", got)
	}
}

// --- RequireAPIKey ---

func TestRequireAPIKey(t *testing.T) {
	a := NewAuth("s3cret-key", nil)
	h := a.RequireAPIKey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		url    string
		header string
		want   int
	}{
		{"header", "/results/hour", "s3cret-key", http.StatusOK},
		{"query", "/results/hour?api_key=s3cret-key", "", http.StatusOK},
		{"missing", "/results/hour", "", http.StatusUnauthorized},
		{"wrong header", "/results/hour", "nope", http.StatusUnauthorized},
		{"wrong header beats right query", "/results/hour?api_key=s3cret-key", "nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("x-api-key", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			if rr.Code == http.StatusUnauthorized {
				var body map[string]string
				if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
					t.Fatalf("body is not JSON: %v", err)
				}
				if body["error"] != UnauthorizedMessage {
					t.Errorf("error = %q", body["error"])
				}
			}
		})
	}
}
