package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/metrics"
)

// maxEventsPerWebhook bounds one webhook batch.
const maxEventsPerWebhook = 100

// WebhookHandler verifies LINE signatures and hands events to the
// processor. LINE expects a fast 200, so events are processed after the
// response on a tracked goroutine; Shutdown drains in-flight work.
type WebhookHandler struct {
	channelSecret string
	processor     *Processor
	log           zerolog.Logger
	wg            sync.WaitGroup
}

func NewWebhookHandler(channelSecret string, processor *Processor, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		channelSecret: channelSecret,
		processor:     processor,
		log:           log,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cb, err := webhook.ParseRequest(h.channelSecret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.log.Warn().Msg("invalid webhook signature")
			w.WriteHeader(http.StatusBadRequest)
		} else {
			h.log.Error().Err(err).Msg("webhook parse failed")
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})

	if len(cb.Events) > maxEventsPerWebhook {
		h.log.Warn().Int("count", len(cb.Events)).Msg("webhook batch truncated")
		cb.Events = cb.Events[:maxEventsPerWebhook]
	}
	events := make([]webhook.EventInterface, len(cb.Events))
	copy(events, cb.Events)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				h.log.Error().Interface("panic", r).Msg("panic in webhook processing")
			}
		}()
		ctx := context.Background()
		for _, event := range events {
			start := time.Now()
			eventType := fmt.Sprintf("%T", event)
			status := "success"
			if err := h.processor.ProcessEvent(ctx, event); err != nil {
				status = "error"
				h.log.Error().Err(err).Str("eventType", eventType).Msg("event processing failed")
			}
			metrics.RecordWebhookEvent(eventType, status, time.Since(start))
		}
	}()
}

// Shutdown waits for in-flight event processing, bounded by ctx.
func (h *WebhookHandler) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.wg.Wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BlobFetcher fetches message content through the LINE blob API.
type BlobFetcher struct {
	api *messaging_api.MessagingApiBlobAPI
}

func NewBlobFetcher(channelToken string) (*BlobFetcher, error) {
	api, err := messaging_api.NewMessagingApiBlobAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("create blob API client: %w", err)
	}
	return &BlobFetcher{api: api}, nil
}

func (f *BlobFetcher) FetchImage(_ context.Context, messageID string) ([]byte, error) {
	resp, err := f.api.GetMessageContent(messageID)
	if err != nil {
		return nil, fmt.Errorf("get message content: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read message content: %w", err)
	}
	return data, nil
}
