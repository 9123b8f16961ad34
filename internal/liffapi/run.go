// Package liffapi boots the REST backend for the LIFF web app.
package liffapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/himawari-tools/line-secretary/internal/ai"
	"github.com/himawari-tools/line-secretary/internal/api"
	"github.com/himawari-tools/line-secretary/internal/auth"
	"github.com/himawari-tools/line-secretary/internal/config"
	"github.com/himawari-tools/line-secretary/internal/factory"
	"github.com/himawari-tools/line-secretary/internal/health"
	"github.com/himawari-tools/line-secretary/internal/logger"
	"github.com/himawari-tools/line-secretary/internal/services"
	"github.com/himawari-tools/line-secretary/internal/store"
	"github.com/rs/zerolog"
)

const (
	healthInterval  = 30 * time.Second
	probeTimeout    = 2 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Run starts the LIFF API server and blocks until shutdown or error.
func Run() error {
	log := logger.New("liff-api")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	if cfg.LineChannelSecret == "" || cfg.LineChannelID == "" {
		return fmt.Errorf("LINE channel secret and channel ID are required for token verification")
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

	// The web API serves stored memos; AI extraction stays on the bot
	// path, so the heuristic assistant is enough here.
	memos := services.NewMemoService(st, newAssistant(ctx, cfg, log), log)

	svcHealth := startHealthCheckers(ctx, st, log)
	router := api.NewRouter(api.RouterConfig{
		Verifier:  auth.NewVerifier(cfg.LineChannelSecret, cfg.LineChannelID),
		Users:     services.NewUserService(st, log),
		Groups:    services.NewGroupService(st, log),
		Warikans:  services.NewWarikanService(st, log),
		Schedules: services.NewScheduleService(st, loc, log),
		Memos:     memos,
		Health:    svcHealth,
		Log:       log,
	})

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down LIFF API")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		memos.Flush()
		log.Info().Msg("LIFF API exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

func newAssistant(ctx context.Context, cfg *config.Config, log zerolog.Logger) ai.Assistant {
	if cfg.GeminiAPIKey == "" {
		return ai.Heuristic{}
	}
	assistant, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
	if err != nil {
		log.Warn().Err(err).Msg("Gemini unavailable; using heuristic assistant")
		return ai.Heuristic{}
	}
	return assistant
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
		WriteTimeout:      15 * time.Second,
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
