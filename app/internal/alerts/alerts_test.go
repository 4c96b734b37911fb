package alerts

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// recorder is a webhook endpoint that keeps every request it receives
type recorder struct {
	mu       sync.Mutex
	payloads []map[string]interface{}
	headers  []http.Header
	bodies   [][]byte
}

func newRecorder(t *testing.T, status int) (*recorder, *httptest.Server) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		json.Unmarshal(body, &payload)

		rec.mu.Lock()
		rec.payloads = append(rec.payloads, payload)
		rec.headers = append(rec.headers, r.Header.Clone())
		rec.bodies = append(rec.bodies, body)
		rec.mu.Unlock()

		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return rec, srv
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

// --------------- Config ---------------

func TestConfig_Enabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Error("empty config should be disabled")
	}
	if !(Config{WebhookURL: "http://x"}).Enabled() {
		t.Error("webhook should enable alerts")
	}
	if !(Config{DiscordWebhookURL: "http://x"}).Enabled() {
		t.Error("discord should enable alerts")
	}
}

func TestNewManager_ThresholdFloor(t *testing.T) {
	m := NewManager(Config{FailureThreshold: 0})
	if m.GetConfig().FailureThreshold != 1 {
		t.Errorf("threshold = %d, want 1", m.GetConfig().FailureThreshold)
	}
}

// --------------- CheckAndSendAlerts ---------------

func TestCheckAndSendAlerts_DownAtThreshold(t *testing.T) {
	m := NewManager(Config{FailureThreshold: 3})

	for i, want := range []string{"", "", StatusDown, "", ""} {
		if got := m.CheckAndSendAlerts("8.8.8.8", false, i+1); got != want {
			t.Errorf("failure %d: sent %q, want %q", i+1, got, want)
		}
	}

	st, ok := m.Status("8.8.8.8")
	if !ok || st.Up || st.ConsecutiveFailures != 5 {
		t.Errorf("status = %+v", st)
	}
}

func TestCheckAndSendAlerts_Recovery(t *testing.T) {
	m := NewManager(Config{FailureThreshold: 2})

	m.CheckAndSendAlerts("t", false, 1)
	m.CheckAndSendAlerts("t", false, 2)
	if got := m.CheckAndSendAlerts("t", true, 0); got != StatusUp {
		t.Errorf("sent %q, want up", got)
	}
	if got := m.CheckAndSendAlerts("t", true, 0); got != "" {
		t.Errorf("second success sent %q", got)
	}
}

func TestCheckAndSendAlerts_FlapBelowThreshold(t *testing.T) {
	m := NewManager(Config{FailureThreshold: 3})

	steps := []struct {
		ok       bool
		failures int
	}{
		{false, 1}, {false, 2}, {true, 0}, {false, 1}, {false, 2}, {true, 0},
	}
	for i, s := range steps {
		if got := m.CheckAndSendAlerts("t", s.ok, s.failures); got != "" {
			t.Errorf("step %d: sent %q, want nothing", i, got)
		}
	}
}

func TestCheckAndSendAlerts_FirstProbeSucceeds(t *testing.T) {
	m := NewManager(Config{FailureThreshold: 1})
	if got := m.CheckAndSendAlerts("t", true, 0); got != "" {
		t.Errorf("healthy first probe sent %q", got)
	}
}

func TestCheckAndSendAlerts_Dispatch(t *testing.T) {
	hook, hookSrv := newRecorder(t, http.StatusOK)
	discord, discordSrv := newRecorder(t, http.StatusNoContent)

	m := NewManager(Config{
		FailureThreshold:  1,
		WebhookURL:        hookSrv.URL,
		DiscordWebhookURL: discordSrv.URL,
	})

	m.CheckAndSendAlerts("1.1.1.1", false, 1)
	m.CheckAndSendAlerts("1.1.1.1", true, 0)
	m.Wait()

	if hook.count() != 2 || discord.count() != 2 {
		t.Fatalf("webhook=%d discord=%d, want 2 each", hook.count(), discord.count())
	}

	statuses := map[interface{}]bool{}
	for _, p := range hook.payloads {
		statuses[p["status"]] = true
		if p["target"] != "1.1.1.1" {
			t.Errorf("target = %v", p["target"])
		}
	}
	if !statuses["down"] || !statuses["up"] {
		t.Errorf("expected one down and one up, got %v", statuses)
	}
}

// --------------- SendDiscord ---------------

func TestSendDiscord(t *testing.T) {
	rec, srv := newRecorder(t, http.StatusNoContent)
	m := NewManager(Config{DiscordWebhookURL: srv.URL})

	m.SendDiscord("🔴 Target Down: host", StatusDown, "host", "The target <strong>host</strong> failed")

	if rec.count() != 1 {
		t.Fatalf("expected 1 request, got %d", rec.count())
	}
	payload := rec.payloads[0]
	if payload["username"] != "pingit" {
		t.Errorf("username = %v, want pingit", payload["username"])
	}
	embeds := payload["embeds"].([]interface{})
	if len(embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(embeds))
	}
	embed := embeds[0].(map[string]interface{})
	if embed["title"] != "🔴 Target Down: host" {
		t.Errorf("embed title = %v", embed["title"])
	}
	if !strings.Contains(embed["description"].(string), "**host**") {
		t.Errorf("description should use markdown bold: %v", embed["description"])
	}
	if embed["color"].(float64) != 0xef4444 {
		t.Errorf("color = %v", embed["color"])
	}
}

// --------------- SendWebhook ---------------

func TestSendWebhook_BasicPayload(t *testing.T) {
	rec, srv := newRecorder(t, http.StatusOK)
	m := NewManager(Config{WebhookURL: srv.URL})

	m.SendWebhook("Target Down", StatusDown, "8.8.8.8", "The target <strong>8.8.8.8</strong> failed")

	if rec.count() != 1 {
		t.Fatalf("expected 1 request, got %d", rec.count())
	}
	payload, headers := rec.payloads[0], rec.headers[0]
	if payload["event"] != "status_change" {
		t.Errorf("event = %v", payload["event"])
	}
	if payload["target"] != "8.8.8.8" {
		t.Errorf("target = %v", payload["target"])
	}
	if payload["status"] != "down" {
		t.Errorf("status = %v", payload["status"])
	}
	if strings.Contains(payload["message"].(string), "<strong>") {
		t.Errorf("message should be plain text: %v", payload["message"])
	}
	if headers.Get("Content-Type") != "application/json" {
		t.Error("missing Content-Type header")
	}
	if headers.Get("User-Agent") != "pingit/1.0" {
		t.Error("missing User-Agent header")
	}
}

func TestSendWebhook_WithHMACSignature(t *testing.T) {
	rec, srv := newRecorder(t, http.StatusOK)
	secret := "my-webhook-secret"
	m := NewManager(Config{WebhookURL: srv.URL, WebhookSecret: secret})

	m.SendWebhook("Test", StatusUp, "t", "recovered")

	sig := rec.headers[0].Get(SignatureHeader)
	if sig == "" {
		t.Fatal("expected signature header")
	}
	if !strings.HasPrefix(sig, "sha256=") {
		t.Fatalf("sig should start with sha256=, got %q", sig)
	}
	if want := Sign(secret, rec.bodies[0]); sig != want {
		t.Errorf("HMAC mismatch: got %q, want %q", sig, want)
	}
}

func TestSendWebhook_NoHMACWithoutSecret(t *testing.T) {
	rec, srv := newRecorder(t, http.StatusOK)
	m := NewManager(Config{WebhookURL: srv.URL})

	m.SendWebhook("Test", StatusDown, "t", "msg")

	if sig := rec.headers[0].Get(SignatureHeader); sig != "" {
		t.Errorf("should not include signature when no secret, got %q", sig)
	}
}

func TestSendWebhook_UnreachableDoesNotPanic(t *testing.T) {
	m := NewManager(Config{WebhookURL: "http://127.0.0.1:1"})
	m.SendWebhook("Test", StatusDown, "t", "msg")
}

func TestSign_Known(t *testing.T) {
	// echo -n 'hello' | openssl dgst -sha256 -hmac key
	want := "sha256=9307b3b915efb5171ff14d8cb55fbcc798c6c0ef1456d66ded1a6aa723a58b7b"
	if got := Sign("key", []byte("hello")); got != want {
		t.Errorf("Sign = %q, want %q", got, want)
	}
}
