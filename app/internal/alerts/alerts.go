// Package alerts notifies operators when the target goes down or recovers.
package alerts

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"pingit/app/internal/models"
)

// Status types carried in notifications
const (
	StatusDown = "down"
	StatusUp   = "up"
)

// Config selects the notification channels
type Config struct {
	FailureThreshold  int
	WebhookURL        string
	WebhookSecret     string
	DiscordWebhookURL string
}

// Enabled reports whether any channel is configured
func (c Config) Enabled() bool {
	return c.WebhookURL != "" || c.DiscordWebhookURL != ""
}

// Manager tracks the up/down state of each target and dispatches a
// notification on every transition. Sends run in the background so a slow
// channel never delays the probe tick.
type Manager struct {
	config Config
	client *http.Client

	mu     sync.Mutex
	status map[string]*models.TargetStatus

	wg sync.WaitGroup
}

// NewManager creates a manager. A threshold below 1 is treated as 1.
func NewManager(cfg Config) *Manager {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	return &Manager{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		status: make(map[string]*models.TargetStatus),
	}
}

// GetConfig returns the current alert configuration
func (m *Manager) GetConfig() Config {
	return m.config
}

// Status returns a copy of the tracked state for target
func (m *Manager) Status(target string) (models.TargetStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.status[target]
	if !ok {
		return models.TargetStatus{}, false
	}
	return *st, true
}

// CheckAndSendAlerts records a probe outcome for target. failures is the
// current consecutive failure count. A target is marked down when failures
// reaches the threshold and up again on the next success; each transition
// sends one notification. It returns the status type sent, or "".
func (m *Manager) CheckAndSendAlerts(target string, ok bool, failures int) string {
	m.mu.Lock()
	st, seen := m.status[target]
	if !seen {
		st = &models.TargetStatus{Target: target, Up: true}
		m.status[target] = st
	}
	st.ConsecutiveFailures = failures

	var statusType string
	switch {
	case !ok && st.Up && failures >= m.config.FailureThreshold:
		st.Up = false
		statusType = StatusDown
	case ok && !st.Up:
		st.Up = true
		statusType = StatusUp
	}
	m.mu.Unlock()

	if statusType == "" {
		return ""
	}

	var subject, message string
	if statusType == StatusDown {
		log.Printf("target DOWN target=%s failures=%d", target, failures)
		subject = fmt.Sprintf("🔴 Target Down: %s", target)
		message = fmt.Sprintf("The target <strong>%s</strong> failed %d consecutive probes.", target, failures)
	} else {
		log.Printf("target RECOVERED target=%s", target)
		subject = fmt.Sprintf("✅ Target Recovered: %s", target)
		message = fmt.Sprintf("The target <strong>%s</strong> is answering probes again.", target)
	}

	if m.config.Enabled() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.dispatchAll(subject, statusType, target, message)
		}()
	}
	return statusType
}

// Wait blocks until every pending notification has been sent
func (m *Manager) Wait() {
	m.wg.Wait()
}

// dispatchAll sends a notification across all configured channels
func (m *Manager) dispatchAll(subject, statusType, target, message string) {
	if m.config.WebhookURL != "" {
		m.SendWebhook(subject, statusType, target, message)
	}
	if m.config.DiscordWebhookURL != "" {
		m.SendDiscord(subject, statusType, target, message)
	}
}
