package probe

import (
	"context"
	"errors"
	"net"
	"os/exec"
	"reflect"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		wantTTL *int
		wantRTT *float64
	}{
		{
			name:    "linux reply",
			output:  "64 bytes from 8.8.8.8: icmp_seq=1 ttl=118 time=12.3 ms",
			wantTTL: intPtr(118),
			wantRTT: floatPtr(12.3),
		},
		{
			name: "linux full output",
			output: `PING 1.1.1.1 (1.1.1.1) 56(84) bytes of data.
64 bytes from 1.1.1.1: icmp_seq=1 ttl=57 time=9.87 ms

--- 1.1.1.1 ping statistics ---
1 packets transmitted, 1 received, 0% packet loss, time 0ms
rtt min/avg/max/mdev = 9.870/9.870/9.870/0.000 ms`,
			wantTTL: intPtr(57),
			wantRTT: floatPtr(9.87),
		},
		{
			name:    "integer time",
			output:  "64 bytes from 10.0.0.1: icmp_seq=1 ttl=64 time=3 ms",
			wantTTL: intPtr(64),
			wantRTT: floatPtr(3),
		},
		{
			name:    "windows reply",
			output:  "Reply from 8.8.8.8: bytes=32 time=15ms TTL=118",
			wantTTL: intPtr(118),
			wantRTT: floatPtr(15),
		},
		{
			name:    "windows sub-millisecond",
			output:  "Reply from 8.8.8.8: bytes=32 time<1ms TTL=118",
			wantTTL: intPtr(118),
		},
		{
			name:    "ttl without time",
			output:  "64 bytes from 8.8.8.8: icmp_seq=1 ttl=118",
			wantTTL: intPtr(118),
		},
		{
			name:   "timeout",
			output: "1 packets transmitted, 0 received, 100% packet loss, time 0ms",
		},
		{
			name:   "unknown host",
			output: "ping: unknown host example.invalid",
		},
		{
			name: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ttl, rtt := ParseOutput(tt.output)
			if !reflect.DeepEqual(ttl, tt.wantTTL) {
				t.Errorf("ttl = %v, want %v", deref(ttl), deref(tt.wantTTL))
			}
			if !reflect.DeepEqual(rtt, tt.wantRTT) {
				t.Errorf("time = %v, want %v", deref(rtt), deref(tt.wantRTT))
			}
		})
	}
}

func TestExecPinger_Args(t *testing.T) {
	tests := []struct {
		goos    string
		timeout time.Duration
		want    []string
	}{
		{"linux", 5 * time.Second, []string{"-c", "1", "-W", "5", "host"}},
		{"linux", 200 * time.Millisecond, []string{"-c", "1", "-W", "1", "host"}},
		{"darwin", 3 * time.Second, []string{"-c", "1", "-t", "3", "host"}},
		{"windows", 2 * time.Second, []string{"-n", "1", "-w", "2000", "host"}},
	}
	for _, tt := range tests {
		p := NewExecPinger(tt.timeout, nil)
		p.goos = tt.goos
		if got := p.Args("host"); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s/%v: args = %v, want %v", tt.goos, tt.timeout, got, tt.want)
		}
	}
}

func newTestPinger(t *testing.T, stdout, stderr string, err error) (*ExecPinger, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	p := NewExecPinger(time.Second, mock)
	p.goos = "linux"
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		if name != "ping" {
			t.Errorf("command = %q, want ping", name)
		}
		if args[len(args)-1] != "example.org" {
			t.Errorf("target arg = %q", args[len(args)-1])
		}
		return []byte(stdout), []byte(stderr), err
	}
	return p, mock
}

func TestExecPinger_Success(t *testing.T) {
	p, mock := newTestPinger(t, "64 bytes from 93.184.216.34: icmp_seq=1 ttl=56 time=88.1 ms", "", nil)
	rec := p.Probe(context.Background(), "example.org")

	if !rec.Success {
		t.Error("expected success")
	}
	if rec.TTL == nil || *rec.TTL != 56 {
		t.Errorf("ttl = %v, want 56", deref(rec.TTL))
	}
	if rec.Time == nil || *rec.Time != 88.1 {
		t.Errorf("time = %v, want 88.1", deref(rec.Time))
	}
	if rec.Timestamp != mock.Now().UnixMilli() {
		t.Errorf("timestamp = %d, want %d", rec.Timestamp, mock.Now().UnixMilli())
	}
	if rec.DateTime == "" {
		t.Error("datetime should be set")
	}
}

func TestExecPinger_FailureIsData(t *testing.T) {
	p, _ := newTestPinger(t, "1 packets transmitted, 0 received", "", &exec.ExitError{})
	rec := p.Probe(context.Background(), "example.org")

	if rec.Success {
		t.Error("non-zero exit should be a failed probe")
	}
	if rec.TTL != nil || rec.Time != nil {
		t.Errorf("expected nil ttl/time, got %v/%v", deref(rec.TTL), deref(rec.Time))
	}
}

func TestExecPinger_SuccessWithoutParse(t *testing.T) {
	p, _ := newTestPinger(t, "garbled", "", nil)
	rec := p.Probe(context.Background(), "example.org")

	if !rec.Success {
		t.Error("exit status decides success, not parseability")
	}
	if rec.TTL != nil || rec.Time != nil {
		t.Error("unparseable output should leave ttl/time nil")
	}
}

func TestExecPinger_LaunchFailure(t *testing.T) {
	p, _ := newTestPinger(t, "", "", exec.ErrNotFound)
	if rec := p.Probe(context.Background(), "example.org"); rec.Success {
		t.Error("missing binary should be a failed probe")
	}
}

// --------------- TCP ---------------

func TestDialer_Open(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	rec := NewDialer(time.Second, nil).Probe(context.Background(), TCPPrefix+ln.Addr().String())
	if !rec.Success {
		t.Fatal("expected success against a listening port")
	}
	if rec.Time == nil || *rec.Time < 0 {
		t.Errorf("time = %v, want >= 0", deref(rec.Time))
	}
	if rec.TTL != nil {
		t.Error("tcp probe has no ttl")
	}
}

func TestDialer_Refused(t *testing.T) {
	d := NewDialer(time.Second, nil)
	d.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}
	rec := d.Probe(context.Background(), "tcp://127.0.0.1:1")
	if rec.Success || rec.Time != nil {
		t.Errorf("expected failed record without time, got %+v", rec)
	}
}

func TestNew_SelectsProber(t *testing.T) {
	if _, ok := New("tcp://db:5432", time.Second, nil).(*Dialer); !ok {
		t.Error("tcp:// target should use Dialer")
	}
	if _, ok := New("8.8.8.8", time.Second, nil).(*ExecPinger); !ok {
		t.Error("host target should use ExecPinger")
	}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
