package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/ai"
	"github.com/himawari-tools/line-secretary/internal/memotmpl"
	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/store"
)

const memoUsageText = "メモに関するコマンドが認識できませんでした。\n\n利用可能なコマンド:\n- @メモ 作成\n- @メモ 一覧\n- @メモ 検索 [キーワード]"

// summaryTimeout bounds the background AI summary call.
const summaryTimeout = 30 * time.Second

var (
	memoCreateIntents = []*regexp.Regexp{
		regexp.MustCompile(`メモ.*作成`),
		regexp.MustCompile(`記録.*し`),
		regexp.MustCompile(`覚え.*おき`),
		regexp.MustCompile(`メモ.*残`),
	}
	memoSearchIntents = []*regexp.Regexp{
		regexp.MustCompile(`探し`),
		regexp.MustCompile(`検索`),
		regexp.MustCompile(`見つけ`),
		regexp.MustCompile(`.*について.*教え`),
	}
	punctRe = regexp.MustCompile(`[?？!！。、,，\s]+`)
)

// MemoService manages personal and shared memos. AI summaries are
// backfilled in the background after create; Flush waits for them.
type MemoService struct {
	store store.Store
	ai    ai.Assistant
	log   zerolog.Logger
	now   func() time.Time
	wg    sync.WaitGroup
}

func NewMemoService(s store.Store, assistant ai.Assistant, log zerolog.Logger) *MemoService {
	return &MemoService{store: s, ai: assistant, log: log, now: time.Now}
}

// Flush blocks until background summary work finishes. Used on
// shutdown and in tests.
func (s *MemoService) Flush() {
	s.wg.Wait()
}

// HandleCommand executes a メモ subcommand and returns the reply text.
// groupID is empty for one-on-one chats; in groups the memo is shared.
func (s *MemoService) HandleCommand(ctx context.Context, userID, groupID string, args []string, raw string) string {
	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "作成", "create":
		return s.createReply(ctx, userID, groupID, raw)
	case "一覧", "list":
		return s.listReply(ctx, userID, groupID)
	case "検索", "search":
		return s.searchReply(ctx, userID, groupID, strings.Join(args[1:], " "))
	default:
		return s.naturalLanguageReply(ctx, userID, groupID, raw)
	}
}

// HandleNaturalLanguage routes a non-command message that still looks
// memo-related. Returns "" when no intent is recognized.
func (s *MemoService) HandleNaturalLanguage(ctx context.Context, userID, groupID, text string) string {
	if matchAny(memoCreateIntents, text) {
		return s.createReply(ctx, userID, groupID, text)
	}
	if matchAny(memoSearchIntents, text) {
		keyword := strings.TrimSpace(punctRe.ReplaceAllString(text, " "))
		return s.searchReply(ctx, userID, groupID, keyword)
	}
	return ""
}

func (s *MemoService) naturalLanguageReply(ctx context.Context, userID, groupID, text string) string {
	if reply := s.HandleNaturalLanguage(ctx, userID, groupID, text); reply != "" {
		return reply
	}
	return memoUsageText
}

func (s *MemoService) createReply(ctx context.Context, userID, groupID, messageText string) string {
	extraction := s.ai.ExtractMemoData(ctx, messageText)

	if groupID != "" {
		memo, err := s.CreateShared(ctx, userID, groupID, extraction.Title, extraction.Content)
		if err != nil {
			s.log.Error().Err(err).Msg("shared memo create failed")
			return "メモの作成に失敗しました。もう一度お試しください。"
		}
		return fmt.Sprintf("共有メモ「%s」を作成しました！\n\n詳細はLIFFアプリで確認できます。", memo.Title)
	}

	memo, err := s.CreatePersonal(ctx, userID, extraction.Title, extraction.Content, extraction.Tags, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("personal memo create failed")
		return "メモの作成に失敗しました。もう一度お試しください。"
	}
	return fmt.Sprintf("個人メモ「%s」を作成しました！\n\n詳細はLIFFアプリで確認できます。", memo.Title)
}

// CreatePersonal stores a personal memo, classifies it against the
// known templates, and backfills an AI summary in the background.
func (s *MemoService) CreatePersonal(ctx context.Context, userID, title, content string, tags []string, source *model.MemoSource) (*model.PersonalMemo, error) {
	if title == "" {
		title = "untitled"
	}
	if tags == nil {
		tags = []string{}
	}
	now := s.now().UTC()
	memo := &model.PersonalMemo{
		MemoID:    uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		Tags:      tags,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if tmpl, ok := memotmpl.DetectPersonal(content); ok {
		memo.Template = tmpl
	}

	created, err := s.store.PersonalMemos().Create(ctx, memo)
	if err != nil {
		return nil, err
	}
	s.backfillSummary(created.MemoID, created.Content)
	return created, nil
}

// CreateShared stores a group memo with the creator as first editor.
func (s *MemoService) CreateShared(ctx context.Context, userID, groupID, title, content string) (*model.SharedMemo, error) {
	if title == "" {
		title = "untitled"
	}
	now := s.now().UTC()
	memo := &model.SharedMemo{
		MemoID:    uuid.NewString(),
		GroupID:   groupID,
		CreatedBy: userID,
		Title:     title,
		Content:   content,
		Type:      model.SharedCustom,
		Editors: []model.SharedMemoEditor{
			{UserID: userID, DisplayName: "", AddedAt: now},
		},
		ReadableUserIDs: []string{},
		Status:          "active",
		LastEditedBy:    &userID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if tmpl, ok := memotmpl.DetectShared(content); ok {
		memo.Template = tmpl
		switch tmpl.Tag {
		case model.TemplateMeeting:
			memo.Type = model.SharedMeeting
		case model.TemplateOuting:
			memo.Type = model.SharedOuting
		}
	}
	return s.store.SharedMemos().Create(ctx, memo)
}

// OCRProviderTag tags memos created from image text extraction.
const OCRProviderTag = "OCR作成"

// CreateFromOCR stores a personal memo from image-extracted text.
func (s *MemoService) CreateFromOCR(ctx context.Context, userID, text, provider string) (*model.PersonalMemo, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text recognized", model.ErrValidation)
	}
	extraction := s.ai.ExtractMemoData(ctx, text)
	source := &model.MemoSource{Kind: "ocr", OCRProvider: &provider}
	tags := append(extraction.Tags, OCRProviderTag)
	return s.CreatePersonal(ctx, userID, extraction.Title, extraction.Content, tags, source)
}

// SNSSource carries the scraped fields a memo keeps.
type SNSSource struct {
	URL      string
	Platform string
	Caption  string
	Hashtags []string
}

// CreateFromSNS stores a personal memo from a scraped SNS post.
func (s *MemoService) CreateFromSNS(ctx context.Context, userID string, src SNSSource) (*model.PersonalMemo, error) {
	if src.Caption == "" && len(src.Hashtags) == 0 {
		return nil, fmt.Errorf("%w: post has no usable content", model.ErrValidation)
	}
	extraction := s.ai.ExtractMemoData(ctx, src.Caption)
	source := &model.MemoSource{Kind: "sns", URL: &src.URL, Platform: &src.Platform}
	tags := append(extraction.Tags, src.Hashtags...)
	return s.CreatePersonal(ctx, userID, extraction.Title, extraction.Content, tags, source)
}

func (s *MemoService) backfillSummary(memoID, content string) {
	if content == "" {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), summaryTimeout)
		defer cancel()

		summary, err := s.ai.GenerateSummary(ctx, content)
		if err != nil || summary == "" {
			if err != nil {
				s.log.Warn().Err(err).Str("memoId", memoID).Msg("summary generation failed")
			}
			return
		}
		memo, err := s.store.PersonalMemos().Get(ctx, memoID)
		if err != nil {
			return
		}
		memo.AISummary = &summary
		if _, err := s.store.PersonalMemos().Update(ctx, memo); err != nil {
			s.log.Warn().Err(err).Str("memoId", memoID).Msg("summary backfill failed")
		}
	}()
}

func (s *MemoService) listReply(ctx context.Context, userID, groupID string) string {
	if groupID != "" {
		memos, err := s.store.SharedMemos().ListByGroup(ctx, groupID, 5)
		if err != nil {
			s.log.Error().Err(err).Msg("shared memo list failed")
			return "メモの取得に失敗しました。"
		}
		if len(memos) == 0 {
			return "このグループにはまだ共有メモがありません。"
		}
		var b strings.Builder
		b.WriteString("📝 最新の共有メモ（5件）:\n\n")
		for i, m := range memos {
			fmt.Fprintf(&b, "%d. %s\n   作成: %s\n   作成者: %s\n\n",
				i+1, m.Title, m.CreatedAt.Format("2006/01/02"), m.CreatedBy)
		}
		b.WriteString("すべてのメモはLIFFアプリで確認できます。")
		return b.String()
	}

	memos, err := s.store.PersonalMemos().List(ctx, userID, store.PersonalMemoFilter{Limit: 5})
	if err != nil {
		s.log.Error().Err(err).Msg("personal memo list failed")
		return "メモの取得に失敗しました。"
	}
	if len(memos) == 0 {
		return "まだ個人メモがありません。"
	}
	var b strings.Builder
	b.WriteString("📝 最新の個人メモ（5件）:\n\n")
	for i, m := range memos {
		fmt.Fprintf(&b, "%d. %s\n   更新: %s\n", i+1, m.Title, m.UpdatedAt.Format("2006/01/02"))
		if len(m.Tags) > 0 {
			fmt.Fprintf(&b, "   タグ: %s\n", strings.Join(m.Tags, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("すべてのメモはLIFFアプリで確認できます。")
	return b.String()
}

func (s *MemoService) searchReply(ctx context.Context, userID, groupID, keyword string) string {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return "検索キーワードを指定してください。\n例: @メモ 検索 会議"
	}

	if groupID != "" {
		memos, err := s.store.SharedMemos().Search(ctx, groupID, keyword, 20)
		if err != nil {
			s.log.Error().Err(err).Msg("shared memo search failed")
			return "メモの検索に失敗しました。"
		}
		if len(memos) == 0 {
			return fmt.Sprintf("「%s」に関連する共有メモが見つかりませんでした。", keyword)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "🔍 「%s」の検索結果（共有メモ）:\n\n", keyword)
		shown := memos
		if len(shown) > 3 {
			shown = shown[:3]
		}
		for i, m := range shown {
			fmt.Fprintf(&b, "%d. %s\n   更新: %s\n\n", i+1, m.Title, m.UpdatedAt.Format("2006/01/02"))
		}
		if len(memos) > 3 {
			fmt.Fprintf(&b, "他 %d 件の結果があります。", len(memos)-3)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	memos, err := s.store.PersonalMemos().Search(ctx, userID, keyword, 20)
	if err != nil {
		s.log.Error().Err(err).Msg("personal memo search failed")
		return "メモの検索に失敗しました。"
	}
	if len(memos) == 0 {
		return fmt.Sprintf("「%s」に関連する個人メモが見つかりませんでした。", keyword)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 「%s」の検索結果（個人メモ）:\n\n", keyword)
	shown := memos
	if len(shown) > 3 {
		shown = shown[:3]
	}
	for i, m := range shown {
		fmt.Fprintf(&b, "%d. %s\n   更新: %s\n\n", i+1, m.Title, m.UpdatedAt.Format("2006/01/02"))
	}
	if len(memos) > 3 {
		fmt.Fprintf(&b, "他 %d 件の結果があります。", len(memos)-3)
	}
	return strings.TrimRight(b.String(), "\n")
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
