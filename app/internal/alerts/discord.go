package alerts

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"time"
)

// SendDiscord sends a rich embed message via Discord webhook
func (m *Manager) SendDiscord(subject, statusType, target, message string) {
	colorMap := map[string]int{StatusDown: 0xef4444, StatusUp: 0x22c55e}

	payload := map[string]interface{}{
		"username": "pingit",
		"embeds": []map[string]interface{}{
			{
				"title":       subject,
				"description": strings.ReplaceAll(strings.ReplaceAll(message, "<strong>", "**"), "</strong>", "**"),
				"color":       colorMap[statusType],
				"fields": []map[string]interface{}{
					{"name": "Target", "value": target, "inline": true},
					{"name": "Status", "value": strings.ToUpper(statusType), "inline": true},
					{"name": "Time", "value": time.Now().Format(time.RFC1123), "inline": false},
				},
				"footer": map[string]string{"text": "pingit network monitor"},
			},
		},
	}

	body, _ := json.Marshal(payload)
	resp, err := m.client.Post(m.config.DiscordWebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("discord notification failed target=%s err=%v", target, err)
		return
	}
	defer resp.Body.Close()
	log.Printf("discord notification sent target=%s status=%d", target, resp.StatusCode)
}
