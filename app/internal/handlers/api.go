package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/benbjohnson/clock"

	"pingit/app/internal/cache"
	"pingit/app/internal/stats"
)

// ISOTimeLayout renders UTC timestamps with millisecond precision
const ISOTimeLayout = "2006-01-02T15:04:05.000Z"

// NoSpeedtestMessage is returned until the first bandwidth test completes
const NoSpeedtestMessage = "No speedtest result available yet."

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// HandleWindow returns the aggregate of one window with uptime and downtime
func HandleWindow(engine *stats.Engine, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, ok := engine.Window(name)
		if !ok {
			writeError(w, http.StatusNotFound, "Unknown window")
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// HandleHistory returns every retained probe in order
func HandleHistory(engine *stats.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, engine.History())
	}
}

// HandleFailed returns the failed probes in order
func HandleFailed(engine *stats.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, engine.Failed())
	}
}

// HandleSpeedtest returns the latest bandwidth result or 503 before the first one
func HandleSpeedtest(snap *cache.Snapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, ok := snap.Get()
		if !ok {
			writeError(w, http.StatusServiceUnavailable, NoSpeedtestMessage)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// HandleHealth reports liveness with the server time
func HandleHealth(clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"time":   clk.Now().UTC().Format(ISOTimeLayout),
		})
	}
}

// HandleNotFound answers unknown routes with a JSON 404
func HandleNotFound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	}
}

