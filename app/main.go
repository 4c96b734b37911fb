package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"pingit/app/internal/alerts"
	"pingit/app/internal/auth"
	"pingit/app/internal/cache"
	"pingit/app/internal/config"
	"pingit/app/internal/handlers"
	"pingit/app/internal/metrics"
	"pingit/app/internal/monitor"
	"pingit/app/internal/probe"
	"pingit/app/internal/ratelimit"
	"pingit/app/internal/security"
	"pingit/app/internal/speedtest"
	"pingit/app/internal/stats"
	"pingit/app/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	store, err := storage.Open(storage.Options{
		Backend:    cfg.StoreBackend,
		ResultsDir: cfg.ResultsDir,
		HistoryDir: cfg.HistoryDir,
		DBPath:     cfg.DBPath,
	})
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer store.Close()

	clk := clock.New()
	engine := stats.NewEngine(clk)
	snapshot := cache.New()
	restore(store, engine, snapshot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	alertMgr := newAlertManager(cfg)
	loop := &monitor.ProbeLoop{
		Target:   cfg.Target,
		Interval: cfg.PingInterval,
		Prober:   probe.New(cfg.Target, cfg.PingTimeout, clk),
		Engine:   engine,
		Store:    store,
		Tracker:  monitor.NewFailureTracker(),
		Alerts:   alertMgr,
		Clock:    clk,
	}
	g.Go(func() error { return loop.Run(ctx) })

	if cfg.SpeedtestEnabled {
		sched, err := monitor.NewSpeedtestScheduler(
			cfg.SpeedtestSchedule,
			speedtest.NewOoklaRunner(cfg.SpeedtestTimeout, clk),
			snapshot, store, cfg.SpeedtestOnStart,
		)
		if err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}
		g.Go(func() error { return sched.Run(ctx) })
		log.Printf("Speedtest scheduled %q (on start: %v)", cfg.SpeedtestSchedule, cfg.SpeedtestOnStart)
	}

	general := ratelimit.New(ratelimit.Config{TokensPerMinute: cfg.GeneralRateLimit, Clock: clk})
	defer general.Stop()
	health := ratelimit.New(ratelimit.Config{TokensPerMinute: cfg.HealthRateLimit, Clock: clk})
	defer health.Stop()

	deps := handlers.Deps{
		Engine:         engine,
		Speedtest:      snapshot,
		Auth:           auth.NewAuth(cfg.APIKey, cfg.APIKeyHash),
		GeneralLimiter: general,
		HealthLimiter:  health,
		ClientIP:       security.ClientIPFunc(cfg.TrustProxy),
		Clock:          clk,
	}
	if cfg.MetricsEnabled {
		deps.Metrics = metrics.Handler(metrics.NewRegistry(metrics.NewCollector(engine, snapshot)))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handlers.SetupRoutes(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		log.Printf("Server starting on port %s (target %s every %v)", cfg.Port, cfg.Target, cfg.PingInterval)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server failed: %v", err)
	}
	if alertMgr != nil {
		alertMgr.Wait()
	}
	log.Println("Stopped")
}

// restore seeds the engine and the speedtest cache from the store.
// Corrupt persisted state is fatal so it is never silently overwritten.
func restore(store storage.Store, engine *stats.Engine, snapshot *cache.Snapshot) {
	restored, err := storage.Load(store)
	if errors.Is(err, storage.ErrCorruptState) {
		log.Fatalf("Persisted state is unreadable, fix or remove it before starting: %v", err)
	}
	if err != nil {
		log.Fatalf("Failed to load persisted state: %v", err)
	}

	state := engine.Restore(restored.History, restored.Summary)
	log.Printf("Restored %d probes (%d failed)", len(state.History), len(state.Failed))

	if restored.Speedtest != nil {
		snapshot.Set(*restored.Speedtest)
		log.Printf("Restored speedtest from %s", restored.Speedtest.Timestamp.Format(time.RFC3339))
	}
}

func newAlertManager(cfg *config.Config) *alerts.Manager {
	ac := alerts.Config{
		FailureThreshold:  cfg.AlertFailureThreshold,
		WebhookURL:        cfg.AlertWebhookURL,
		WebhookSecret:     cfg.AlertWebhookSecret,
		DiscordWebhookURL: cfg.AlertDiscordURL,
	}
	if !ac.Enabled() {
		return nil
	}
	mgr := alerts.NewManager(ac)
	log.Printf("Alerts enabled (threshold %d)", mgr.GetConfig().FailureThreshold)
	return mgr
}
