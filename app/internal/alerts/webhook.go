package alerts

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"
)

// SignatureHeader carries the HMAC-SHA256 of the webhook body
const SignatureHeader = "X-Pingit-Signature"

// Sign returns the signature header value for body
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// SendWebhook sends a JSON payload to a generic webhook URL with optional HMAC signing
func (m *Manager) SendWebhook(subject, statusType, target, message string) {
	payload := map[string]interface{}{
		"event":     "status_change",
		"target":    target,
		"status":    statusType,
		"subject":   subject,
		"message":   strings.ReplaceAll(strings.ReplaceAll(message, "<strong>", ""), "</strong>", ""),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	body, _ := json.Marshal(payload)

	req, err := http.NewRequest(http.MethodPost, m.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		log.Printf("webhook request failed target=%s err=%v", target, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pingit/1.0")

	if m.config.WebhookSecret != "" {
		req.Header.Set(SignatureHeader, Sign(m.config.WebhookSecret, body))
	}

	resp, err := m.client.Do(req)
	if err != nil {
		log.Printf("webhook notification failed target=%s err=%v", target, err)
		return
	}
	defer resp.Body.Close()
	log.Printf("webhook notification sent target=%s status=%d", target, resp.StatusCode)
}
