// Package workerservice boots the background worker: cron-scheduled
// jobs plus the manual-trigger HTTP surface.
package workerservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/api/recovery"
	"github.com/himawari-tools/line-secretary/internal/api/respond"
	"github.com/himawari-tools/line-secretary/internal/config"
	"github.com/himawari-tools/line-secretary/internal/factory"
	"github.com/himawari-tools/line-secretary/internal/health"
	"github.com/himawari-tools/line-secretary/internal/logger"
	"github.com/himawari-tools/line-secretary/internal/push"
	"github.com/himawari-tools/line-secretary/internal/store"
	"github.com/himawari-tools/line-secretary/internal/worker"
)

const (
	healthInterval  = 30 * time.Second
	probeTimeout    = 2 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Cron specs, evaluated in the configured timezone.
const (
	reminderSpec   = "*/5 * * * *" // every five minutes
	dailySpec      = "0 8 * * *"   // 08:00
	usageResetSpec = "0 0 1 * *"   // first of the month, midnight
	cleanupSpec    = "0 2 * * *"   // 02:00
)

// Run starts the worker and blocks until shutdown or error.
func Run() error {
	log := logger.New("worker")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	if cfg.LineChannelToken == "" {
		return fmt.Errorf("LINE channel token is required for push notifications")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	sender, err := push.NewSender(cfg.LineChannelToken, log)
	if err != nil {
		return err
	}

	w := worker.New(loc, log)
	// The OCR cache lives in the bot process, which sweeps it itself;
	// the cleanup job here only prunes the store.
	registrations := []struct {
		spec string
		job  worker.Job
	}{
		{reminderSpec, worker.NewReminderJob(st, sender, loc, log)},
		{dailySpec, worker.NewDailyDigestJob(st, sender, loc, log)},
		{usageResetSpec, worker.NewUsageResetJob(st, log)},
		{cleanupSpec, worker.NewCleanupJob(st, nil, log)},
	}
	for _, reg := range registrations {
		if err := w.Register(reg.spec, reg.job); err != nil {
			return fmt.Errorf("register %s: %w", reg.job.Name(), err)
		}
	}
	w.Start()

	svcHealth := startHealthCheckers(ctx, st, log)

	router := mux.NewRouter()
	router.Use(recovery.Middleware(log))
	router.PathPrefix("/tasks/").Handler(w.TasksHandler())
	router.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
		if !svcHealth.IsHealthy() {
			respond.WriteJSON(rw, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		respond.WriteJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down worker")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		if err := w.Stop(ctxShutdown); err != nil {
			log.Warn().Err(err).Msg("job drain timed out")
		}
		log.Info().Msg("Worker exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

func startHealthCheckers(ctx context.Context, st store.Store, log zerolog.Logger) *health.ServiceHealthChecker {
	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, healthInterval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go svcHealth.Start(ctx, healthInterval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      6 * time.Minute, // manual job runs are synchronous
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}
