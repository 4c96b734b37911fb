package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"pingit/app/internal/cache"
	"pingit/app/internal/speedtest"
	"pingit/app/internal/storage"
)

// SpeedtestScheduler runs bandwidth tests on a cron schedule. Runs never
// overlap: a run that is due while the previous one is still going waits
// for it to finish.
type SpeedtestScheduler struct {
	runner   speedtest.Runner
	cache    *cache.Snapshot
	store    storage.Store
	schedule cron.Schedule
	cron     *cron.Cron
	onStart  bool
}

// NewSpeedtestScheduler validates spec ("@every 10m", "*/10 * * * *", ...)
// and prepares the scheduler. When onStart is set one test runs as soon as
// Run is called.
func NewSpeedtestScheduler(spec string, runner speedtest.Runner, snap *cache.Snapshot, store storage.Store, onStart bool) (*SpeedtestScheduler, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid speedtest schedule %q: %w", spec, err)
	}
	logger := cron.PrintfLogger(log.Default())
	return &SpeedtestScheduler{
		runner:   runner,
		cache:    snap,
		store:    store,
		schedule: sched,
		cron:     cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger))),
		onStart:  onStart,
	}, nil
}

// RunOnce performs one test. On success the cache and the store are
// updated; on failure the previous snapshot is kept.
func (s *SpeedtestScheduler) RunOnce(ctx context.Context) error {
	snap, err := s.runner.Run(ctx)
	if err != nil {
		log.Printf("speedtest failed: %v", err)
		return err
	}
	s.cache.Set(snap)
	log.Printf("speedtest done server=%q ping=%.2fms down=%.2fMbps up=%.2fMbps", snap.Server, snap.Ping, snap.Download, snap.Upload)

	if s.store != nil {
		if err := s.store.SaveSpeedtest(snap); err != nil {
			log.Printf("speedtest save error: %v", err)
			return fmt.Errorf("save speedtest: %w", err)
		}
	}
	return nil
}

// Run starts the schedule and blocks until ctx is cancelled and any
// in-flight test has returned.
func (s *SpeedtestScheduler) Run(ctx context.Context) error {
	logger := cron.PrintfLogger(log.Default())
	job := cron.NewChain(cron.DelayIfStillRunning(logger)).Then(cron.FuncJob(func() {
		_ = s.RunOnce(ctx)
	}))
	s.cron.Schedule(s.schedule, job)

	var wg sync.WaitGroup
	s.cron.Start()
	if s.onStart {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job.Run()
		}()
	}

	<-ctx.Done()
	<-s.cron.Stop().Done()
	wg.Wait()
	return nil
}
