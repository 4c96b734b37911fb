// Package probe performs single reachability checks against the target.
package probe

import (
	"bytes"
	"context"
	"log"
	"net"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"pingit/app/internal/models"
)

// Prober runs one probe and reports it as a record. Probe never fails:
// transport errors become Success=false.
type Prober interface {
	Probe(ctx context.Context, target string) models.ProbeRecord
}

// TCPPrefix selects the TCP connect prober for a target
const TCPPrefix = "tcp://"

// New picks the prober for target: a TCP connect for "tcp://host:port",
// the system ping binary otherwise.
func New(target string, timeout time.Duration, clk clock.Clock) Prober {
	if strings.HasPrefix(target, TCPPrefix) {
		return NewDialer(timeout, clk)
	}
	return NewExecPinger(timeout, clk)
}

var (
	ttlRe  = regexp.MustCompile(`(?i)ttl=(\d+)`)
	timeRe = regexp.MustCompile(`time=(\d+(?:\.\d+)?)`)
)

// ParseOutput extracts ttl and round-trip time from ping output. Either is
// nil when it cannot be found.
func ParseOutput(out string) (ttl *int, rtt *float64) {
	if m := ttlRe.FindStringSubmatch(out); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			ttl = &v
		}
	}
	if m := timeRe.FindStringSubmatch(out); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			rtt = &v
		}
	}
	return ttl, rtt
}

// runFunc executes a command and returns its stdout and stderr
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// ExecPinger sends one echo request using the platform ping binary
type ExecPinger struct {
	Timeout time.Duration
	clock   clock.Clock
	goos    string
	run     runFunc
}

// NewExecPinger creates a pinger that waits at most timeout for a reply
func NewExecPinger(timeout time.Duration, clk clock.Clock) *ExecPinger {
	if clk == nil {
		clk = clock.New()
	}
	return &ExecPinger{Timeout: timeout, clock: clk, goos: runtime.GOOS, run: runCommand}
}

// Args returns the ping arguments for one echo request
func (p *ExecPinger) Args(target string) []string {
	secs := max(1, int(p.Timeout.Seconds()))
	switch p.goos {
	case "windows":
		return []string{"-n", "1", "-w", strconv.FormatInt(p.Timeout.Milliseconds(), 10), target}
	case "darwin", "freebsd", "openbsd", "netbsd":
		return []string{"-c", "1", "-t", strconv.Itoa(secs), target}
	default:
		return []string{"-c", "1", "-W", strconv.Itoa(secs), target}
	}
}

// Probe runs ping once. A non-zero exit or a launch failure is a failed
// probe; ttl and time are parsed from stdout either way.
func (p *ExecPinger) Probe(ctx context.Context, target string) models.ProbeRecord {
	// The binary enforces Timeout itself; the context only guards a hung process.
	ctx, cancel := context.WithTimeout(ctx, p.Timeout+5*time.Second)
	defer cancel()

	stdout, stderr, err := p.run(ctx, "ping", p.Args(target)...)
	ttl, rtt := ParseOutput(string(stdout))
	if err != nil {
		log.Printf("ping error target=%s err=%v", target, err)
	}
	if len(stderr) > 0 {
		log.Printf("ping stderr target=%s: %s", target, strings.TrimSpace(string(stderr)))
	}
	return models.NewProbeRecord(p.clock.Now(), err == nil, ttl, rtt)
}

// Dialer measures a TCP connect to "tcp://host:port". It reports the
// connect time and never a ttl.
type Dialer struct {
	Timeout time.Duration
	clock   clock.Clock
	dial    func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewDialer creates a TCP connect prober
func NewDialer(timeout time.Duration, clk clock.Clock) *Dialer {
	if clk == nil {
		clk = clock.New()
	}
	d := &net.Dialer{Timeout: timeout}
	return &Dialer{Timeout: timeout, clock: clk, dial: d.DialContext}
}

// Probe opens and closes one connection
func (d *Dialer) Probe(ctx context.Context, target string) models.ProbeRecord {
	addr := strings.TrimPrefix(target, TCPPrefix)
	t0 := d.clock.Now()
	conn, err := d.dial(ctx, "tcp", addr)
	now := d.clock.Now()
	if err != nil {
		log.Printf("tcp probe error addr=%s err=%v", addr, err)
		return models.NewProbeRecord(now, false, nil, nil)
	}
	_ = conn.Close()

	ms := float64(now.Sub(t0).Microseconds()) / 1000
	return models.NewProbeRecord(now, true, nil, &ms)
}
