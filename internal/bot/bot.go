// Package bot routes LINE webhook events to the domain services and
// renders replies. Commands are "@<token> args..." messages; plain text
// is checked for memo intent and SNS links before being ignored.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/ai"
	"github.com/himawari-tools/line-secretary/internal/command"
	"github.com/himawari-tools/line-secretary/internal/metrics"
	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/ocr"
	"github.com/himawari-tools/line-secretary/internal/push"
	"github.com/himawari-tools/line-secretary/internal/scraper"
	"github.com/himawari-tools/line-secretary/internal/services"
)

const (
	replyQuotaExceeded = "本日の利用上限に達しました。明日また利用するか、プランのアップグレードをご検討ください。"
	replyApology       = "申し訳ありません。処理中にエラーが発生しました。しばらくしてからもう一度お試しください。"
	replyWelcome       = "友だち追加ありがとうございます！🎉\n\n「@ヘルプ」と送ると使い方を確認できます。"
	replyOCRNoText     = "画像から文字を読み取れませんでした。文字がはっきり写った画像をお試しください。"
)

// ImageFetcher retrieves message attachment content from LINE.
type ImageFetcher interface {
	FetchImage(ctx context.Context, messageID string) ([]byte, error)
}

// Scraper is the SNS surface the processor depends on.
type Scraper interface {
	ScrapePost(ctx context.Context, url string) (*scraper.Post, error)
}

// Processor turns webhook events into replies.
type Processor struct {
	users     *services.UserService
	groups    *services.GroupService
	warikans  *services.WarikanService
	schedules *services.ScheduleService
	memos     *services.MemoService
	assistant ai.Assistant
	extractor ocr.Extractor
	scraper   Scraper
	images    ImageFetcher
	sender    push.Client
	log       zerolog.Logger
}

// ProcessorConfig wires the processor's dependencies.
type ProcessorConfig struct {
	Users     *services.UserService
	Groups    *services.GroupService
	Warikans  *services.WarikanService
	Schedules *services.ScheduleService
	Memos     *services.MemoService
	Assistant ai.Assistant
	Extractor ocr.Extractor
	Scraper   Scraper
	Images    ImageFetcher
	Sender    push.Client
	Log       zerolog.Logger
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		users:     cfg.Users,
		groups:    cfg.Groups,
		warikans:  cfg.Warikans,
		schedules: cfg.Schedules,
		memos:     cfg.Memos,
		assistant: cfg.Assistant,
		extractor: cfg.Extractor,
		scraper:   cfg.Scraper,
		images:    cfg.Images,
		sender:    cfg.Sender,
		log:       cfg.Log,
	}
}

// ProcessEvent dispatches one webhook event. Errors from the domain are
// turned into an apology reply; the error is returned for metrics.
func (p *Processor) ProcessEvent(ctx context.Context, event webhook.EventInterface) error {
	switch e := event.(type) {
	case webhook.MessageEvent:
		return p.processMessage(ctx, e)
	case webhook.PostbackEvent:
		return p.processPostback(ctx, e)
	case webhook.FollowEvent:
		return p.processFollow(ctx, e)
	case webhook.UnfollowEvent:
		p.log.Info().Str("userId", sourceUserID(e.Source)).Msg("user unfollowed")
		return nil
	default:
		p.log.Debug().Type("eventType", e).Msg("unsupported event type")
		return nil
	}
}

func (p *Processor) processMessage(ctx context.Context, e webhook.MessageEvent) error {
	lineUserID := sourceUserID(e.Source)
	if lineUserID == "" {
		return nil
	}

	switch msg := e.Message.(type) {
	case webhook.TextMessageContent:
		reply := p.replyForText(ctx, lineUserID, sourceGroupID(e.Source), msg.Text)
		if reply == "" {
			return nil
		}
		return p.sender.ReplyText(e.ReplyToken, reply)
	case webhook.ImageMessageContent:
		reply := p.replyForImage(ctx, lineUserID, msg.Id)
		return p.sender.ReplyText(e.ReplyToken, reply)
	default:
		return nil
	}
}

// replyForText produces the reply for a text message, or "" when the
// bot stays silent (plain chatter in a group, for example).
func (p *Processor) replyForText(ctx context.Context, lineUserID, groupID, text string) string {
	if strings.HasPrefix(strings.TrimSpace(text), "@") {
		return p.replyForCommand(ctx, lineUserID, groupID, text)
	}

	// Plain text: SNS links become memos, then the assistant gets a
	// chance to read a schedule or bill split out of the message, then
	// natural-language memo intent. Anything else stays silent.
	if url := firstSNSLink(text); url != "" {
		user, errReply := p.authorize(ctx, lineUserID)
		if errReply != "" {
			return errReply
		}
		return p.replyForSNSLink(ctx, user.UserID, url)
	}

	user, err := p.users.EnsureUser(ctx, lineUserID, nil)
	if err != nil {
		p.log.Error().Err(err).Msg("ensure user failed")
		return ""
	}
	p.trackGroup(ctx, groupID, user.UserID)
	if reply := p.replyForAnalysis(ctx, user.UserID, text); reply != "" {
		return reply
	}
	return p.memos.HandleNaturalLanguage(ctx, user.UserID, groupID, text)
}

// trackGroup records group membership as the bot observes it, so
// shared-memo access checks can follow the group rather than the
// editor list alone. Best effort; failures only log.
func (p *Processor) trackGroup(ctx context.Context, groupID, userID string) {
	if p.groups == nil || groupID == "" {
		return
	}
	if _, err := p.groups.EnsureMembership(ctx, groupID, userID); err != nil {
		p.log.Warn().Err(err).Str("groupId", groupID).Msg("group tracking failed")
	}
}

// replyForAnalysis lets the assistant turn clearly phrased plain text
// into a schedule or a bill split. Incomplete analyses fall through to
// the memo path with "".
func (p *Processor) replyForAnalysis(ctx context.Context, userID, text string) string {
	if strings.Contains(text, "予定") || strings.Contains(text, "日程") {
		analysis, err := p.assistant.AnalyzeScheduleMessage(ctx, text)
		if err != nil {
			p.log.Warn().Err(err).Msg("schedule analysis failed")
			return ""
		}
		sched, err := p.schedules.CreateFromAnalysis(ctx, userID, analysis)
		if err != nil {
			if !errors.Is(err, model.ErrValidation) {
				p.log.Error().Err(err).Msg("schedule create from analysis failed")
			}
			return ""
		}
		return "📅 予定を追加しました！\n\n📝 " + sched.Title + "\n\nID: " + sched.ScheduleID + "\n\n詳細確認: @予定 詳細 " + sched.ScheduleID
	}

	if strings.Contains(text, "割り勘") || strings.Contains(text, "精算") {
		analysis, err := p.assistant.AnalyzeWarikanMessage(ctx, text)
		if err != nil {
			p.log.Warn().Err(err).Msg("warikan analysis failed")
			return ""
		}
		w, err := p.warikans.CreateFromAnalysis(ctx, userID, analysis)
		if err != nil {
			if !errors.Is(err, model.ErrValidation) {
				p.log.Error().Err(err).Msg("warikan create from analysis failed")
			}
			return ""
		}
		return fmt.Sprintf("💰 割り勘を作成しました！\n\n📝 %s\n💳 一人あたり: ¥%d\n\nID: %s\n\n詳細確認: @割り勘 詳細 %s",
			w.Title, w.Members[0].Amount, w.WarikanID, w.WarikanID)
	}
	return ""
}

func (p *Processor) replyForCommand(ctx context.Context, lineUserID, groupID, text string) string {
	cmd := command.Parse(text)
	metrics.RecordCommand(string(cmd.Intent))

	user, errReply := p.authorize(ctx, lineUserID)
	if errReply != "" {
		return errReply
	}
	p.trackGroup(ctx, groupID, user.UserID)

	switch cmd.Intent {
	case command.IntentWarikan:
		return p.warikans.HandleCommand(ctx, user.UserID, cmd.Args)
	case command.IntentSchedule:
		return p.schedules.HandleCommand(ctx, user.UserID, cmd.Args)
	case command.IntentMemo:
		return p.memos.HandleCommand(ctx, user.UserID, groupID, cmd.Args, cmd.Raw)
	case command.IntentHelp:
		return p.assistant.GenerateHelpResponse(ctx, strings.Join(cmd.Args, " "))
	default:
		return p.assistant.GenerateHelpResponse(ctx, cmd.Raw)
	}
}

// authorize resolves the account and charges one API call against the
// plan quota. The second return is a non-empty reply on failure.
func (p *Processor) authorize(ctx context.Context, lineUserID string) (*model.User, string) {
	user, err := p.users.EnsureUser(ctx, lineUserID, nil)
	if err != nil {
		p.log.Error().Err(err).Msg("ensure user failed")
		return nil, replyApology
	}
	if err := p.users.RecordAPICall(ctx, user); err != nil {
		if errors.Is(err, model.ErrQuotaExceeded) {
			return nil, replyQuotaExceeded
		}
		p.log.Error().Err(err).Msg("usage increment failed")
		return nil, replyApology
	}
	return user, ""
}

func (p *Processor) replyForSNSLink(ctx context.Context, userID, url string) string {
	if p.scraper == nil {
		return ""
	}
	post, err := p.scraper.ScrapePost(ctx, url)
	if err != nil {
		p.log.Warn().Err(err).Str("url", url).Msg("sns scrape failed")
		return "リンク先の投稿を読み取れませんでした。"
	}
	memo, err := p.memos.CreateFromSNS(ctx, userID, services.SNSSource{
		URL:      post.URL,
		Platform: post.Platform,
		Caption:  post.Content.Caption,
		Hashtags: post.Content.Hashtags,
	})
	if err != nil {
		if errors.Is(err, model.ErrValidation) {
			return "投稿から保存できる内容が見つかりませんでした。"
		}
		p.log.Error().Err(err).Msg("sns memo create failed")
		return replyApology
	}
	return "🔗 投稿からメモを作成しました！\n\n📝 " + memo.Title + "\n\n詳細はLIFFアプリで確認できます。"
}

func (p *Processor) replyForImage(ctx context.Context, lineUserID, messageID string) string {
	user, errReply := p.authorize(ctx, lineUserID)
	if errReply != "" {
		return errReply
	}

	img, err := p.images.FetchImage(ctx, messageID)
	if err != nil {
		p.log.Error().Err(err).Str("messageId", messageID).Msg("image fetch failed")
		return replyApology
	}

	res, err := p.extractor.ExtractTextFromImage(ctx, img, ocr.Options{})
	if err != nil {
		if errors.Is(err, model.ErrValidation) {
			return replyOCRNoText
		}
		p.log.Error().Err(err).Msg("ocr failed")
		return replyApology
	}
	metrics.RecordOCRRequest(res.Provider, res.FromCache)
	if strings.TrimSpace(res.Text) == "" {
		return replyOCRNoText
	}

	memo, err := p.memos.CreateFromOCR(ctx, user.UserID, res.Text, res.Provider)
	if err != nil {
		p.log.Error().Err(err).Msg("ocr memo create failed")
		return replyApology
	}
	return "📷 画像からメモを作成しました！\n\n📝 " + memo.Title + "\n\n詳細はLIFFアプリで確認できます。"
}

// processPostback treats the postback data as a command line, so rich
// menu buttons reuse the text command paths.
func (p *Processor) processPostback(ctx context.Context, e webhook.PostbackEvent) error {
	lineUserID := sourceUserID(e.Source)
	if lineUserID == "" || e.Postback == nil || e.Postback.Data == "" {
		return nil
	}
	reply := p.replyForText(ctx, lineUserID, sourceGroupID(e.Source), e.Postback.Data)
	if reply == "" {
		return nil
	}
	return p.sender.ReplyText(e.ReplyToken, reply)
}

func (p *Processor) processFollow(ctx context.Context, e webhook.FollowEvent) error {
	lineUserID := sourceUserID(e.Source)
	if lineUserID == "" {
		return nil
	}
	if _, err := p.users.EnsureUser(ctx, lineUserID, nil); err != nil {
		p.log.Error().Err(err).Msg("ensure user on follow failed")
	}
	return p.sender.ReplyText(e.ReplyToken, replyWelcome)
}

func sourceUserID(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	default:
		return ""
	}
}

func sourceGroupID(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.GroupSource:
		return s.GroupId
	case webhook.RoomSource:
		return s.RoomId
	default:
		return ""
	}
}

func firstSNSLink(text string) string {
	for _, field := range strings.Fields(text) {
		if !strings.HasPrefix(field, "http://") && !strings.HasPrefix(field, "https://") {
			continue
		}
		if scraper.DetectPlatform(field) != "" {
			return field
		}
	}
	return ""
}
