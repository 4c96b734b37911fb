package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/multierr"

	"pingit/app/internal/storage"
)

// Config holds all application configuration
type Config struct {
	// Auth
	APIKey     string
	APIKeyHash []byte

	// Server
	Port             string
	TrustProxy       bool
	GeneralRateLimit int
	HealthRateLimit  int
	MetricsEnabled   bool

	// Probing
	Target       string
	PingInterval time.Duration
	PingTimeout  time.Duration

	// Storage
	StoreBackend string
	ResultsDir   string
	HistoryDir   string
	DBPath       string

	// Speedtest
	SpeedtestEnabled  bool
	SpeedtestSchedule string
	SpeedtestOnStart  bool
	SpeedtestTimeout  time.Duration

	// Alerts
	AlertFailureThreshold int
	AlertWebhookURL       string
	AlertWebhookSecret    string
	AlertDiscordURL       string
}

// Load reads configuration from environment variables, after merging
// a .env file from the working directory when one exists
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIKey:           getenv("API_KEY", ""),
		Port:             getenv("PORT", "3000"),
		TrustProxy:       envBool("TRUST_PROXY", false),
		GeneralRateLimit: envInt("GENERAL_RATE_LIMIT", 100),
		HealthRateLimit:  envInt("HEALTH_RATE_LIMIT", 1),
		MetricsEnabled:   envBool("METRICS_ENABLED", true),

		Target:       strings.TrimSpace(getenv("PING_TARGET", "")),
		PingInterval: envDurMillis("PING_INTERVAL", 5000),
		PingTimeout:  envDurSecs("PING_TIMEOUT_SECS", 5),

		StoreBackend: strings.ToLower(getenv("STORE_BACKEND", storage.BackendFile)),
		ResultsDir:   getenv("RESULTS_DIR", "./results"),
		HistoryDir:   getenv("HISTORY_DIR", "./history"),
		DBPath:       getenv("DB_PATH", "./pingit.db"),

		SpeedtestEnabled:  envBool("SPEEDTEST_ENABLED", true),
		SpeedtestSchedule: getenv("SPEEDTEST_SCHEDULE", "@every 10m"),
		SpeedtestOnStart:  envBool("SPEEDTEST_ON_START", true),
		SpeedtestTimeout:  envDurSecs("SPEEDTEST_TIMEOUT_SECS", 120),

		AlertFailureThreshold: envInt("ALERT_FAILURE_THRESHOLD", 3),
		AlertWebhookURL:       getenv("ALERT_WEBHOOK_URL", ""),
		AlertWebhookSecret:    getenv("ALERT_WEBHOOK_SECRET", ""),
		AlertDiscordURL:       getenv("ALERT_DISCORD_WEBHOOK_URL", ""),
	}

	// A stored hash wins over the plain key
	if h := getenv("API_KEY_BCRYPT", ""); h != "" {
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, fmt.Errorf("API_KEY_BCRYPT is not a bcrypt hash: %w", err)
		}
		cfg.APIKeyHash = []byte(h)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem with the configuration at once
func (c *Config) Validate() error {
	var err error
	if c.Target == "" {
		err = multierr.Append(err, errors.New("PING_TARGET is required"))
	}
	if c.PingInterval <= 0 {
		err = multierr.Append(err, errors.New("PING_INTERVAL must be positive"))
	}
	if c.PingTimeout <= 0 {
		err = multierr.Append(err, errors.New("PING_TIMEOUT_SECS must be positive"))
	}
	if c.APIKey == "" && len(c.APIKeyHash) == 0 {
		err = multierr.Append(err, errors.New("missing API_KEY or API_KEY_BCRYPT"))
	}
	switch c.StoreBackend {
	case storage.BackendFile, storage.BackendSQLite:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if c.GeneralRateLimit <= 0 {
		err = multierr.Append(err, errors.New("GENERAL_RATE_LIMIT must be positive"))
	}
	if c.HealthRateLimit <= 0 {
		err = multierr.Append(err, errors.New("HEALTH_RATE_LIMIT must be positive"))
	}
	if c.SpeedtestEnabled && c.SpeedtestTimeout <= 0 {
		err = multierr.Append(err, errors.New("SPEEDTEST_TIMEOUT_SECS must be positive"))
	}
	return err
}

// Helper functions
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(k string, def bool) bool {
	v := strings.ToLower(getenv(k, ""))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}

func envDurSecs(k string, def int) time.Duration {
	return time.Duration(envInt(k, def)) * time.Second
}

func envDurMillis(k string, def int) time.Duration {
	return time.Duration(envInt(k, def)) * time.Millisecond
}
