package handlers

import (
	"net/http"

	"github.com/benbjohnson/clock"

	"pingit/app/internal/auth"
	"pingit/app/internal/cache"
	"pingit/app/internal/ratelimit"
	"pingit/app/internal/security"
	"pingit/app/internal/stats"
)

// Deps is everything the read API needs
type Deps struct {
	Engine         *stats.Engine
	Speedtest      *cache.Snapshot
	Auth           *auth.Auth
	GeneralLimiter *ratelimit.Limiter
	HealthLimiter  *ratelimit.Limiter
	ClientIP       func(*http.Request) string
	Metrics        http.Handler // optional
	Clock          clock.Clock
}

// SetupRoutes configures all HTTP routes and middlewares
func SetupRoutes(d Deps) http.Handler {
	clientIP := d.ClientIP
	if clientIP == nil {
		clientIP = security.RemoteIP
	}
	clk := d.Clock
	if clk == nil {
		clk = clock.New()
	}

	// rate limit first, then the key check
	protected := func(h http.Handler) http.Handler {
		return d.GeneralLimiter.Middleware(clientIP)(d.Auth.RequireAPIKey(h))
	}

	mux := http.NewServeMux()
	for _, win := range stats.Windows {
		mux.Handle("GET /results/"+win.Path, protected(HandleWindow(d.Engine, win.Name)))
	}
	mux.Handle("GET /results/history", protected(HandleHistory(d.Engine)))
	mux.Handle("GET /results/failed", protected(HandleFailed(d.Engine)))
	mux.Handle("GET /speedtest", protected(HandleSpeedtest(d.Speedtest)))
	if d.Metrics != nil {
		mux.Handle("GET /metrics", protected(d.Metrics))
	}
	mux.Handle("GET /health", d.HealthLimiter.Middleware(clientIP)(HandleHealth(clk)))
	mux.Handle("/", HandleNotFound())

	return security.SecureHeaders(GzipMiddleware(mux))
}
