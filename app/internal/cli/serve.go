package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"pulse/app/internal/alerts"
	"pulse/app/internal/auth"
	"pulse/app/internal/checker"
	"pulse/app/internal/config"
	"pulse/app/internal/database"
	"pulse/app/internal/handlers"
	"pulse/app/internal/hub"
	"pulse/app/internal/incident"
	"pulse/app/internal/jobs"
	"pulse/app/internal/models"
	"pulse/app/internal/monitor"
	"pulse/app/internal/ratelimit"
	"pulse/app/internal/security"
	"pulse/app/internal/stats"
)

type serveFlags struct {
	port        string
	noScheduler bool
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sampler and the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.port, "port", "", "listen port (overrides PORT)")
	cmd.Flags().BoolVar(&f.noScheduler, "no-scheduler", false, "probe only when /status is requested")
	return cmd
}

func runServe(ctx context.Context, f serveFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if f.port != "" {
		cfg.Port = f.port
	}
	if f.noScheduler {
		cfg.EnableScheduler = false
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	var sampleStore monitor.Store
	var incidentStore incident.Store
	if store != nil {
		sampleStore, incidentStore = store, store
	}

	samples := monitor.NewLog(cfg.Capacity, sampleStore)
	if err := samples.Load(ctx); err != nil {
		log.Printf("Warning: failed to restore samples: %v", err)
	}
	incidents := incident.NewLog(incidentStore, cfg.Location)
	if err := incidents.Load(ctx); err != nil {
		return err
	}
	log.Printf("restored %d samples and %d incidents", samples.Len(), incidents.Len())

	agg := stats.NewAggregator(samples, cfg.Location)
	defer agg.Close()

	wsHub := hub.New(cfg.AllowedOrigins)
	go wsHub.Run(ctx)

	writes := ratelimit.NewWriteLimiter()
	probes := ratelimit.NewProbeLimiter()
	failures := ratelimit.NewAuthFailureLimiter()
	defer writes.Stop()
	defer probes.Stop()
	defer failures.Stop()

	if store != nil {
		retention, err := jobs.NewRetention(store, cfg.Capacity, cfg.RetentionSchedule)
		if err != nil {
			return err
		}
		retention.Start()
		defer retention.Stop()
	}

	prober := checker.New(cfg.SiteURL, cfg.ProbeTimeout)

	proxies, err := security.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	notifier := alerts.NewManager(alerts.Config{
		WebhookURL:        cfg.AlertWebhookURL,
		WebhookSecret:     cfg.AlertSecret,
		DiscordWebhookURL: cfg.AlertDiscordURL,
		StatusPageURL:     cfg.StatusPageURL,
		Threshold:         cfg.AlertThreshold,
	})
	if notifier.Enabled() {
		defer notifier.Wait()
		log.Printf("Alerts enabled after %d consecutive failures", cfg.AlertThreshold)
	} else {
		notifier = nil
	}

	// Start health check scheduler
	if cfg.EnableScheduler {
		sampler := &monitor.Sampler{
			Prober:   prober,
			Log:      samples,
			Tracker:  monitor.NewFailureTracker(),
			Target:   cfg.SiteURL,
			Interval: cfg.PollInterval,
			OnSample: func(s models.Sample) {
				wsHub.Broadcast(hub.Event{Type: hub.EventSample, Payload: s})
				if notifier != nil {
					notifier.Observe(s)
				}
			},
		}
		// Stopped before the store closes so no tick writes to a closed database.
		stopSampler := runInBackground(ctx, sampler.Run)
		defer stopSampler()
		log.Printf("Scheduler started with %v interval for %s", cfg.PollInterval, cfg.SiteURL)
	} else {
		log.Println("Scheduler disabled: samples are recorded per /status request")
	}

	h := handlers.New(handlers.Deps{
		Prober:     prober,
		Log:        samples,
		Aggregator: agg,
		Incidents:  incidents,
		Hub:        wsHub,
		Auth:       auth.NewAuth(cfg.AdminUser, cfg.AdminHash, failures, proxies.ClientIP),
		Alerts:     notifier,
		Writes:     writes,
		Probes:     probes,
	}, handlers.Options{
		DefaultURL:       cfg.SiteURL,
		HistoryDays:      cfg.HistoryDays,
		RequestDriven:    !cfg.EnableScheduler,
		AllowURLOverride: cfg.AllowURLOverride,
		AllowedOrigins:   cfg.AllowedOrigins,
		ClientIP:         proxies.ClientIP,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ProbeTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// runInBackground runs fn on a child of ctx. The returned stop cancels it and
// waits for fn to return.
func runInBackground(ctx context.Context, fn func(context.Context)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// openStore returns the configured durable store, or nil for memory only
func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		s, err := database.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.DBPath, err)
		}
		log.Printf("Using sqlite store at %s", cfg.DBPath)
		return s, nil
	case config.StorePostgres:
		s, err := database.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Println("Using postgres store")
		return s, nil
	default:
		return nil, nil
	}
}
