// Package botservice boots the LINE webhook service: store, AI
// assistant, OCR, SNS scraper and the event processor behind a single
// HTTP server.
package botservice

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

	"github.com/himawari-tools/line-secretary/internal/ai"
	"github.com/himawari-tools/line-secretary/internal/api/recovery"
	"github.com/himawari-tools/line-secretary/internal/api/respond"
	"github.com/himawari-tools/line-secretary/internal/bot"
	"github.com/himawari-tools/line-secretary/internal/cache"
	"github.com/himawari-tools/line-secretary/internal/config"
	"github.com/himawari-tools/line-secretary/internal/factory"
	"github.com/himawari-tools/line-secretary/internal/health"
	"github.com/himawari-tools/line-secretary/internal/logger"
	"github.com/himawari-tools/line-secretary/internal/ocr"
	"github.com/himawari-tools/line-secretary/internal/push"
	"github.com/himawari-tools/line-secretary/internal/scraper"
	"github.com/himawari-tools/line-secretary/internal/services"
	"github.com/himawari-tools/line-secretary/internal/store"
)

const (
	healthInterval  = 30 * time.Second
	probeTimeout    = 2 * time.Second
	sweepInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

// Run starts the bot service and blocks until shutdown or error.
func Run() error {
	log := logger.New("bot-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	if cfg.LineChannelSecret == "" || cfg.LineChannelToken == "" {
		return fmt.Errorf("LINE channel secret and token are required")
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

	assistant := newAssistant(ctx, cfg, log)
	sender, err := push.NewSender(cfg.LineChannelToken, log)
	if err != nil {
		return err
	}
	blobs, err := bot.NewBlobFetcher(cfg.LineChannelToken)
	if err != nil {
		return err
	}

	ocrCache := cache.New[string, *ocr.Result](ocr.DefaultCacheTTL)
	extractor := ocr.NewService(ocr.Config{
		GoogleVisionAPIKey:  cfg.GoogleVisionAPIKey,
		AzureVisionEndpoint: cfg.AzureVisionEndpoint,
		AzureVisionKey:      cfg.AzureVisionKey,
	}, ocrCache, log)
	go sweepLoop(ctx, extractor, log)

	memos := services.NewMemoService(st, assistant, log)
	processor := bot.NewProcessor(bot.ProcessorConfig{
		Users:     services.NewUserService(st, log),
		Groups:    services.NewGroupService(st, log),
		Warikans:  services.NewWarikanService(st, log),
		Schedules: services.NewScheduleService(st, loc, log),
		Memos:     memos,
		Assistant: assistant,
		Extractor: extractor,
		Scraper:   scraper.NewService(log),
		Images:    blobs,
		Sender:    sender,
		Log:       log,
	})
	webhookHandler := bot.NewWebhookHandler(cfg.LineChannelSecret, processor, log)

	svcHealth := startHealthCheckers(ctx, st, log)

	router := mux.NewRouter()
	router.Use(recovery.Middleware(log))
	router.Handle("/webhook", webhookHandler).Methods("POST")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !svcHealth.IsHealthy() {
			respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down bot service")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		if err := webhookHandler.Shutdown(ctxShutdown); err != nil {
			log.Warn().Err(err).Msg("webhook drain timed out")
		}
		memos.Flush()
		log.Info().Msg("Bot service exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// newAssistant returns Gemini when a key is configured, else the
// heuristic fallback so the bot still answers.
func newAssistant(ctx context.Context, cfg *config.Config, log zerolog.Logger) ai.Assistant {
	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("no Gemini API key; using heuristic assistant")
		return ai.Heuristic{}
	}
	assistant, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
	if err != nil {
		log.Warn().Err(err).Msg("Gemini unavailable; using heuristic assistant")
		return ai.Heuristic{}
	}
	return assistant
}

// sweepLoop drops expired OCR cache entries; the cache is in-process,
// so each service sweeps its own.
func sweepLoop(ctx context.Context, extractor *ocr.Service, log zerolog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := extractor.SweepCache(); n > 0 {
				log.Debug().Int("entries", n).Msg("ocr cache swept")
			}
		}
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
