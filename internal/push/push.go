// Package push wraps the LINE Messaging API for outbound sends. Reply
// tokens are single-use and short-lived, so replies go out immediately;
// multi-recipient pushes are paced with a fixed delay to stay inside
// the platform rate limits.
package push

import (
	"context"
	"fmt"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/metrics"
)

// maxMessagesPerSend is the LINE API ceiling for one reply or push.
const maxMessagesPerSend = 5

// interSendDelay paces consecutive pushes in a fan-out.
const interSendDelay = 100 * time.Millisecond

// Client is the messaging surface the bot and worker depend on.
type Client interface {
	ReplyText(replyToken string, texts ...string) error
	Reply(replyToken string, messages ...messaging_api.MessageInterface) error
	PushText(to string, texts ...string) error
	Multicast(ctx context.Context, to []string, texts ...string) error
}

// Sender sends via the real LINE Messaging API.
type Sender struct {
	api *messaging_api.MessagingApiAPI
	log zerolog.Logger
}

func NewSender(channelToken string, log zerolog.Logger) (*Sender, error) {
	api, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("create messaging API client: %w", err)
	}
	return &Sender{api: api, log: log}, nil
}

// ReplyText replies to a webhook event with plain text messages.
func (s *Sender) ReplyText(replyToken string, texts ...string) error {
	return s.Reply(replyToken, textMessages(texts)...)
}

// Reply sends arbitrary messages against a reply token.
func (s *Sender) Reply(replyToken string, messages ...messaging_api.MessageInterface) error {
	if replyToken == "" || len(messages) == 0 {
		return nil
	}
	if len(messages) > maxMessagesPerSend {
		messages = messages[:maxMessagesPerSend]
	}
	_, err := s.api.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	if err != nil {
		metrics.RecordPushMessage("reply", "error")
		return fmt.Errorf("reply message: %w", err)
	}
	metrics.RecordPushMessage("reply", "success")
	return nil
}

// PushText pushes plain text to a user or group ID.
func (s *Sender) PushText(to string, texts ...string) error {
	messages := textMessages(texts)
	if to == "" || len(messages) == 0 {
		return nil
	}
	if len(messages) > maxMessagesPerSend {
		messages = messages[:maxMessagesPerSend]
	}
	_, err := s.api.PushMessage(&messaging_api.PushMessageRequest{
		To:       to,
		Messages: messages,
	}, "")
	if err != nil {
		metrics.RecordPushMessage("push", "error")
		return fmt.Errorf("push message: %w", err)
	}
	metrics.RecordPushMessage("push", "success")
	return nil
}

// Multicast pushes the same text to each recipient in turn, pacing
// sends and continuing past per-recipient failures. The first error is
// returned after the fan-out completes.
func (s *Sender) Multicast(ctx context.Context, to []string, texts ...string) error {
	var firstErr error
	for i, id := range to {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interSendDelay):
			}
		}
		if err := s.PushText(id, texts...); err != nil {
			s.log.Warn().Err(err).Str("recipient", id).Msg("multicast send failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func textMessages(texts []string) []messaging_api.MessageInterface {
	out := make([]messaging_api.MessageInterface, 0, len(texts))
	for _, t := range texts {
		if t == "" {
			continue
		}
		out = append(out, &messaging_api.TextMessage{Text: t})
	}
	return out
}
