package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/ai"
	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/store"
)

// MaxWarikanMembers caps one split's member count.
const MaxWarikanMembers = 20

// payRetries bounds the compare-and-swap retry loop on concurrent pays.
const payRetries = 3

const warikanHelpText = `💰 割り勘機能の使い方

【新規作成】
@割り勘 [金額] [人数] [タイトル]
例: @割り勘 3000 4 飲み会

【一覧表示】
@割り勘 リスト

【詳細確認】
@割り勘 詳細 [ID]

【支払い完了】
@割り勘 支払い [ID]

【割り勘終了】
@割り勘 完了 [ID]`

// WarikanService manages bill splits.
type WarikanService struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewWarikanService(s store.Store, log zerolog.Logger) *WarikanService {
	return &WarikanService{store: s, log: log, now: time.Now}
}

// HandleCommand executes a 割り勘 subcommand and returns the reply text.
func (s *WarikanService) HandleCommand(ctx context.Context, userID string, args []string) string {
	sub := ""
	rest := args
	if len(args) > 0 {
		sub = args[0]
		rest = args[1:]
	}

	switch sub {
	case "作成", "新規":
		return s.createReply(ctx, userID, rest)
	case "リスト", "一覧":
		return s.listReply(ctx, userID)
	case "詳細":
		return s.detailReply(ctx, first(rest))
	case "支払い", "決済":
		return s.payReply(ctx, first(rest), userID)
	case "完了", "終了":
		return s.settleReply(ctx, first(rest), userID)
	default:
		// A bare "@割り勘 3000 4" creates a split.
		if len(args) >= 2 {
			return s.createReply(ctx, userID, args)
		}
		return warikanHelpText
	}
}

func (s *WarikanService) createReply(ctx context.Context, userID string, args []string) string {
	if len(args) < 2 {
		return "使い方: @割り勘 [金額] [人数] [タイトル（省略可）]\n例: @割り勘 3000 4 飲み会"
	}
	total, errTotal := strconv.ParseInt(args[0], 10, 64)
	count, errCount := strconv.Atoi(args[1])
	if errTotal != nil || errCount != nil {
		return "金額と人数は数字で入力してください。"
	}
	title := strings.Join(args[2:], " ")
	if title == "" {
		title = "割り勘"
	}

	w, err := s.Create(ctx, userID, total, count, title)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrValidation) && count > MaxWarikanMembers:
			return "人数は20人以下で入力してください。"
		case errors.Is(err, model.ErrValidation):
			return "金額と人数は正の数で入力してください。"
		default:
			s.log.Error().Err(err).Msg("warikan create failed")
			return replyInternalError
		}
	}

	perPerson := w.Members[0].Amount
	return fmt.Sprintf(`割り勘を作成しました！

📝 %s
💰 総額: %s
👥 人数: %d人
💳 一人あたり: %s

ID: %s

詳細確認: @割り勘 詳細 %s
支払い完了: @割り勘 支払い %s`,
		w.Title, yen(w.TotalAmount), len(w.Members), yen(perPerson),
		w.WarikanID, w.WarikanID, w.WarikanID)
}

// CreateFromAnalysis makes a split from an assistant analysis. The
// total falls back to the sum of the itemized amounts; analyses with no
// positive total or no member count return model.ErrValidation so
// callers can fall through.
func (s *WarikanService) CreateFromAnalysis(ctx context.Context, userID string, a *ai.WarikanAnalysis) (*model.Warikan, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: analysis has no usable split", model.ErrValidation)
	}
	total := a.TotalAmount
	if total <= 0 {
		for _, item := range a.Items {
			total += item.Amount
		}
	}
	if total <= 0 || a.MemberCount <= 0 {
		return nil, fmt.Errorf("%w: analysis has no usable split", model.ErrValidation)
	}
	title := a.Name
	if title == "" {
		title = "割り勘"
	}
	return s.Create(ctx, userID, total, a.MemberCount, title)
}

// Create makes an active split. The total is divided evenly with the
// per-person share rounded up, so the collected sum may exceed the
// total by at most count-1 yen; the creator absorbs the difference.
func (s *WarikanService) Create(ctx context.Context, userID string, total int64, count int, title string) (*model.Warikan, error) {
	if total <= 0 || count <= 0 {
		return nil, fmt.Errorf("%w: amount and member count must be positive", model.ErrValidation)
	}
	if count > MaxWarikanMembers {
		return nil, fmt.Errorf("%w: member count exceeds %d", model.ErrValidation, MaxWarikanMembers)
	}

	perPerson := (total + int64(count) - 1) / int64(count)
	members := make([]model.WarikanMember, 0, count)
	members = append(members, model.WarikanMember{
		UserID:      userID,
		DisplayName: "あなた",
		Amount:      perPerson,
	})
	for i := 1; i < count; i++ {
		members = append(members, model.WarikanMember{
			UserID:      fmt.Sprintf("placeholder_%d", i),
			DisplayName: fmt.Sprintf("メンバー%d", i+1),
			Amount:      perPerson,
		})
	}

	now := s.now().UTC()
	w := &model.Warikan{
		WarikanID:   uuid.NewString(),
		CreatedBy:   userID,
		Title:       title,
		TotalAmount: total,
		Currency:    "JPY",
		Members:     members,
		Status:      model.WarikanActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.store.Warikans().Create(ctx, w)
}

func (s *WarikanService) listReply(ctx context.Context, userID string) string {
	warikans, err := s.store.Warikans().ListByCreator(ctx, userID, model.WarikanActive, 10)
	if err != nil {
		s.log.Error().Err(err).Msg("warikan list failed")
		return replyInternalError
	}
	if len(warikans) == 0 {
		return "アクティブな割り勘はありません。\n\n新規作成: @割り勘 [金額] [人数]"
	}

	var b strings.Builder
	b.WriteString("📋 割り勘一覧\n")
	for i, w := range warikans {
		perPerson := (w.TotalAmount + int64(len(w.Members)) - 1) / int64(len(w.Members))
		fmt.Fprintf(&b, "\n%d. %s\n💰 %s (%s/人)\n👥 %d/%d人支払い済み\n🆔 %s\n",
			i+1, w.Title, yen(w.TotalAmount), yen(perPerson),
			w.PaidCount(), len(w.Members), w.WarikanID)
	}
	b.WriteString("\n詳細確認: @割り勘 詳細 [ID]\n支払い完了: @割り勘 支払い [ID]")
	return b.String()
}

func (s *WarikanService) detailReply(ctx context.Context, warikanID string) string {
	if warikanID == "" {
		return "割り勘IDを指定してください。\n例: @割り勘 詳細 abc123"
	}
	w, err := s.store.Warikans().Get(ctx, warikanID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "指定された割り勘が見つかりません。"
		}
		s.log.Error().Err(err).Msg("warikan get failed")
		return replyInternalError
	}

	var memberList strings.Builder
	for _, m := range w.Members {
		status := "⏳"
		if m.IsPaid {
			status = "✅"
		}
		fmt.Fprintf(&memberList, "%s %s: %s\n", status, m.DisplayName, yen(m.Amount))
	}

	return fmt.Sprintf(`📝 %s

💰 総額: %s
👥 人数: %d人
📊 支払い状況: %d/%d人完了
💸 支払い済み: %s

👤 メンバー:
%s
🆔 ID: %s
📅 作成日: %s

支払い完了: @割り勘 支払い %s
割り勘終了: @割り勘 完了 %s`,
		w.Title, yen(w.TotalAmount), len(w.Members),
		w.PaidCount(), len(w.Members), yen(w.PaidTotal()),
		strings.TrimRight(memberList.String(), "\n")+"\n",
		w.WarikanID, w.CreatedAt.Format("2006/01/02"),
		w.WarikanID, w.WarikanID)
}

func (s *WarikanService) payReply(ctx context.Context, warikanID, userID string) string {
	if warikanID == "" {
		return "割り勘IDを指定してください。\n例: @割り勘 支払い abc123"
	}

	w, member, err := s.Pay(ctx, warikanID, userID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			return "指定された割り勘が見つかりません。"
		case errors.Is(err, model.ErrForbidden):
			return "この割り勘のメンバーではありません。"
		case errors.Is(err, model.ErrValidation):
			return "すでに支払い済みです。"
		default:
			s.log.Error().Err(err).Msg("warikan pay failed")
			return replyInternalError
		}
	}

	settledLine := ""
	if w.Status == model.WarikanSettled {
		settledLine = "🎉 全員の支払いが完了しました！"
	}
	return fmt.Sprintf(`✅ 支払い完了しました！

📝 %s
💰 支払い金額: %s
📊 進捗: %d/%d人完了

%s`, w.Title, yen(member.Amount), w.PaidCount(), len(w.Members), settledLine)
}

// Pay marks the caller's share paid. The store applies the update under
// a version compare-and-swap; a conflict means another member paid
// concurrently, so the call re-reads and retries a few times before
// giving up with model.ErrConflict.
func (s *WarikanService) Pay(ctx context.Context, warikanID, userID string) (*model.Warikan, *model.WarikanMember, error) {
	for attempt := 0; ; attempt++ {
		w, err := s.store.Warikans().Get(ctx, warikanID)
		if err != nil {
			return nil, nil, err
		}
		if w.Member(userID) == nil {
			return nil, nil, fmt.Errorf("%w: not a member of this split", model.ErrForbidden)
		}

		updated, err := s.store.Warikans().MarkMemberPaid(ctx, warikanID, userID, w.Version, s.now().UTC())
		if errors.Is(err, model.ErrConflict) && attempt < payRetries {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return updated, updated.Member(userID), nil
	}
}

func (s *WarikanService) settleReply(ctx context.Context, warikanID, userID string) string {
	if warikanID == "" {
		return "割り勘IDを指定してください。\n例: @割り勘 完了 abc123"
	}

	w, err := s.Settle(ctx, warikanID, userID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			return "指定された割り勘が見つかりません。"
		case errors.Is(err, model.ErrForbidden):
			return "割り勘の作成者のみが終了できます。"
		case errors.Is(err, model.ErrConflict):
			return "この割り勘はすでに終了しています。"
		default:
			s.log.Error().Err(err).Msg("warikan settle failed")
			return replyInternalError
		}
	}

	return fmt.Sprintf(`✅ 割り勘を終了しました

📝 %s
💰 総額: %s
💸 支払い済み: %s
📊 最終結果: %d/%d人完了

お疲れさまでした！`,
		w.Title, yen(w.TotalAmount), yen(w.PaidTotal()), w.PaidCount(), len(w.Members))
}

// Settle closes a split. Only the creator may settle; settling an
// already terminal split returns model.ErrConflict.
func (s *WarikanService) Settle(ctx context.Context, warikanID, userID string) (*model.Warikan, error) {
	w, err := s.store.Warikans().Get(ctx, warikanID)
	if err != nil {
		return nil, err
	}
	if w.CreatedBy != userID {
		return nil, fmt.Errorf("%w: only the creator can settle", model.ErrForbidden)
	}
	return s.store.Warikans().UpdateStatus(ctx, warikanID, model.WarikanSettled, s.now().UTC())
}

// Cancel voids an active split; creator only.
func (s *WarikanService) Cancel(ctx context.Context, warikanID, userID string) (*model.Warikan, error) {
	w, err := s.store.Warikans().Get(ctx, warikanID)
	if err != nil {
		return nil, err
	}
	if w.CreatedBy != userID {
		return nil, fmt.Errorf("%w: only the creator can cancel", model.ErrForbidden)
	}
	return s.store.Warikans().UpdateStatus(ctx, warikanID, model.WarikanCancelled, s.now().UTC())
}

// Get returns a split visible to the caller: the creator or any member.
func (s *WarikanService) Get(ctx context.Context, warikanID, userID string) (*model.Warikan, error) {
	w, err := s.store.Warikans().Get(ctx, warikanID)
	if err != nil {
		return nil, err
	}
	if w.CreatedBy != userID && w.Member(userID) == nil {
		return nil, fmt.Errorf("%w: not a participant of this split", model.ErrForbidden)
	}
	return w, nil
}

// List returns the caller's splits, optionally filtered by status.
func (s *WarikanService) List(ctx context.Context, userID string, status model.WarikanStatus, limit int) ([]*model.Warikan, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.Warikans().ListByCreator(ctx, userID, status, limit)
}

func first(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

const replyInternalError = "エラーが発生しました。しばらくしてからもう一度お試しください。"
