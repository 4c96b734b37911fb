// Package speedtest measures bandwidth against the nearest Ookla server.
package speedtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	st "github.com/showwin/speedtest-go/speedtest"

	"pingit/app/internal/models"
)

// ErrNoResult is returned when no server could be selected
var ErrNoResult = errors.New("speedtest: no server available")

// Runner performs one bandwidth test
type Runner interface {
	Run(ctx context.Context) (models.SpeedtestSnapshot, error)
}

// OoklaRunner runs the test with speedtest-go
type OoklaRunner struct {
	Timeout time.Duration
	clock   clock.Clock
}

// NewOoklaRunner creates a runner bounded by timeout (zero means no bound)
func NewOoklaRunner(timeout time.Duration, clk clock.Clock) *OoklaRunner {
	if clk == nil {
		clk = clock.New()
	}
	return &OoklaRunner{Timeout: timeout, clock: clk}
}

// Run picks the closest server and measures latency, download and upload
func (r *OoklaRunner) Run(ctx context.Context) (models.SpeedtestSnapshot, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	client := st.New()

	user, err := client.FetchUserInfoContext(ctx)
	if err != nil {
		return models.SpeedtestSnapshot{}, fmt.Errorf("fetch user info: %w", err)
	}
	servers, err := client.FetchServerListContext(ctx)
	if err != nil {
		return models.SpeedtestSnapshot{}, fmt.Errorf("fetch servers: %w", err)
	}
	targets, err := servers.FindServer([]int{})
	if err != nil {
		return models.SpeedtestSnapshot{}, fmt.Errorf("find server: %w", err)
	}
	if len(targets) == 0 {
		return models.SpeedtestSnapshot{}, ErrNoResult
	}
	server := targets[0]

	if err := server.PingTestContext(ctx, nil); err != nil {
		return models.SpeedtestSnapshot{}, fmt.Errorf("ping test: %w", err)
	}
	if err := server.DownloadTestContext(ctx); err != nil {
		return models.SpeedtestSnapshot{}, fmt.Errorf("download test: %w", err)
	}
	if err := server.UploadTestContext(ctx); err != nil {
		return models.SpeedtestSnapshot{}, fmt.Errorf("upload test: %w", err)
	}

	return models.SpeedtestSnapshot{
		Ping:      float64(server.Latency.Microseconds()) / 1000,
		Download:  server.DLSpeed.Mbps(),
		Upload:    server.ULSpeed.Mbps(),
		ISP:       user.Isp,
		Server:    server.Name,
		Timestamp: r.clock.Now().UTC(),
	}, nil
}
