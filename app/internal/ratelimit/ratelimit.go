package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultErrorMessage is returned with every 429 unless a limiter overrides it
const DefaultErrorMessage = "Too many requests, please try again later."

// RemainingHeader reports the tokens a client has left
const RemainingHeader = "X-RateLimit-Remaining"

// Limiter implements a token bucket rate limiter
type Limiter struct {
	mu            sync.Mutex
	clock         clock.Clock
	buckets       map[string]*bucket
	tokensPerMin  int
	maxTokens     int
	errorMessage  string
	cleanupTicker *clock.Ticker
	stopCleanup   chan struct{}
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// Config for creating a new rate limiter
type Config struct {
	TokensPerMinute int         // Number of tokens added per minute
	MaxTokens       int         // Maximum tokens that can be accumulated
	ErrorMessage    string      // Message to return when rate limited
	Clock           clock.Clock // nil means wall clock
}

// New creates a new rate limiter
func New(cfg Config) *Limiter {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = cfg.TokensPerMinute
	}
	if cfg.ErrorMessage == "" {
		cfg.ErrorMessage = DefaultErrorMessage
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	l := &Limiter{
		clock:        cfg.Clock,
		buckets:      make(map[string]*bucket),
		tokensPerMin: cfg.TokensPerMinute,
		maxTokens:    cfg.MaxTokens,
		errorMessage: cfg.ErrorMessage,
		stopCleanup:  make(chan struct{}),
	}

	// Start cleanup goroutine to remove stale buckets
	l.cleanupTicker = l.clock.Ticker(5 * time.Minute)
	go l.cleanup()

	return l
}

// cleanup removes stale buckets periodically
func (l *Limiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.mu.Lock()
			now := l.clock.Now()
			for key, b := range l.buckets {
				// Remove buckets that haven't been used in 10 minutes
				if now.Sub(b.lastCheck) > 10*time.Minute {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		case <-l.stopCleanup:
			l.cleanupTicker.Stop()
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (l *Limiter) Stop() {
	close(l.stopCleanup)
}

// Allow checks if a request is allowed for the given key (usually IP address)
// Returns true if allowed, false if rate limited
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN checks if n requests are allowed
func (l *Limiter) AllowN(key string, n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	b, exists := l.buckets[key]

	if !exists {
		b = &bucket{
			tokens:    float64(l.maxTokens),
			lastCheck: now,
		}
		l.buckets[key] = b
	}

	// Calculate tokens to add based on time elapsed
	elapsed := now.Sub(b.lastCheck).Minutes()
	b.tokens += elapsed * float64(l.tokensPerMin)
	if b.tokens > float64(l.maxTokens) {
		b.tokens = float64(l.maxTokens)
	}
	b.lastCheck = now

	// Check if we have enough tokens
	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		return true
	}

	return false
}

// Remaining returns the number of remaining tokens for a key
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.buckets[key]
	if !exists {
		return l.maxTokens
	}

	// Update tokens based on time elapsed
	elapsed := l.clock.Since(b.lastCheck).Minutes()
	tokens := b.tokens + elapsed*float64(l.tokensPerMin)
	if tokens > float64(l.maxTokens) {
		tokens = float64(l.maxTokens)
	}

	return int(tokens)
}

// ErrorMessage returns the error message for this limiter
func (l *Limiter) ErrorMessage() string {
	return l.errorMessage
}

// Middleware rejects requests over the limit with 429 and a JSON error.
// keyFn picks the bucket, usually the client IP. Every answer carries the
// tokens left in X-RateLimit-Remaining.
func (l *Limiter) Middleware(keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			allowed := l.Allow(key)
			w.Header().Set(RemainingHeader, strconv.Itoa(l.Remaining(key)))
			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": l.ErrorMessage()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
