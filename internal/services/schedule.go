package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/ai"
	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/store"
)

const scheduleHelpText = `📅 予定機能の使い方

【予定追加】
@予定 [日時] [タイトル] [説明]
例: @予定 明日 14:00 会議 資料準備
例: @予定 12/25 クリスマス

【今日の予定】
@予定 今日

【明日の予定】
@予定 明日

【予定一覧】
@予定 一覧

【詳細確認】
@予定 詳細 [ID]

【完了にする】
@予定 完了 [ID]

【削除】
@予定 削除 [ID]`

var (
	shortDateRe = regexp.MustCompile(`^\d{1,2}/\d{1,2}$`)
	fullDateRe  = regexp.MustCompile(`^\d{4}/\d{1,2}/\d{1,2}$`)
	clockRe     = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
)

// ScheduleService manages calendar entries.
type ScheduleService struct {
	store store.Store
	log   zerolog.Logger
	loc   *time.Location
	now   func() time.Time
}

func NewScheduleService(s store.Store, loc *time.Location, log zerolog.Logger) *ScheduleService {
	return &ScheduleService{store: s, log: log, loc: loc, now: time.Now}
}

// HandleCommand executes a 予定 subcommand and returns the reply text.
func (s *ScheduleService) HandleCommand(ctx context.Context, userID string, args []string) string {
	sub := ""
	rest := args
	if len(args) > 0 {
		sub = args[0]
		rest = args[1:]
	}

	switch sub {
	case "追加", "登録", "新規":
		return s.createReply(ctx, userID, rest)
	case "今日", "今日の予定":
		return s.todayReply(ctx, userID)
	case "明日", "明日の予定":
		return s.tomorrowReply(ctx, userID)
	case "一覧", "リスト":
		return s.upcomingReply(ctx, userID)
	case "詳細":
		return s.detailReply(ctx, first(rest))
	case "完了", "終了":
		return s.completeReply(ctx, first(rest), userID)
	case "削除":
		return s.deleteReply(ctx, first(rest), userID)
	default:
		// A bare "@予定 明日 14:00 会議" creates an entry.
		if len(args) >= 2 {
			return s.createReply(ctx, userID, args)
		}
		return scheduleHelpText
	}
}

func (s *ScheduleService) createReply(ctx context.Context, userID string, args []string) string {
	if len(args) < 2 {
		return "使い方: @予定 [日時] [タイトル] [説明（省略可）]\n例: @予定 明日 14:00 会議 資料準備"
	}

	dateStr := args[0]
	timeStr := ""
	titleStart := 1
	if len(args) > 2 && clockRe.MatchString(args[1]) {
		timeStr = args[1]
		titleStart = 2
	}
	title := args[titleStart]
	var description *string
	if rest := strings.Join(args[titleStart+1:], " "); rest != "" {
		description = &rest
	}
	if title == "" {
		return "タイトルを入力してください。"
	}

	startTime, ok := ParseDateTime(dateStr, timeStr, s.now().In(s.loc))
	if !ok {
		return "日時の形式が正しくありません。\n例: 明日, 12/25, 2024/12/25 14:00"
	}

	sched, err := s.Create(ctx, userID, title, description, startTime, timeStr == "")
	if err != nil {
		s.log.Error().Err(err).Msg("schedule create failed")
		return replyInternalError
	}

	descLine := ""
	if description != nil {
		descLine = "📋 " + *description
	}
	return fmt.Sprintf(`📅 予定を追加しました！

📝 %s
📅 %s
%s

ID: %s

詳細確認: @予定 詳細 %s
完了にする: @予定 完了 %s`,
		title, formatDayTime(startTime, sched.AllDay), descLine,
		sched.ScheduleID, sched.ScheduleID, sched.ScheduleID)
}

// CreateFromAnalysis stores the first candidate slot of an assistant
// analysis. Analyses without a title and at least one dated candidate
// return model.ErrValidation so callers can fall through.
func (s *ScheduleService) CreateFromAnalysis(ctx context.Context, userID string, a *ai.ScheduleAnalysis) (*model.Schedule, error) {
	if a == nil || a.Title == "" || len(a.CandidateDates) == 0 {
		return nil, fmt.Errorf("%w: analysis has no usable schedule", model.ErrValidation)
	}
	cand := a.CandidateDates[0]
	day, err := time.ParseInLocation("2006-01-02", cand.Date, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: candidate date %q", model.ErrValidation, cand.Date)
	}

	allDay := cand.StartTime == ""
	start := day
	if !allDay {
		clock, err := time.Parse("15:04", cand.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%w: candidate time %q", model.ErrValidation, cand.StartTime)
		}
		start = time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, s.loc)
	}

	var description *string
	if a.Description != "" {
		description = &a.Description
	}
	return s.Create(ctx, userID, a.Title, description, start, allDay)
}

// Create stores a pending event.
func (s *ScheduleService) Create(ctx context.Context, userID, title string, description *string, startTime time.Time, allDay bool) (*model.Schedule, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	now := s.now().UTC()
	sched := &model.Schedule{
		ScheduleID:  uuid.NewString(),
		UserID:      userID,
		Type:        model.ScheduleEvent,
		Title:       title,
		Description: description,
		StartTime:   startTime.UTC(),
		AllDay:      allDay,
		Status:      model.SchedulePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.store.Schedules().Create(ctx, sched)
}

func (s *ScheduleService) todayReply(ctx context.Context, userID string) string {
	today := s.now().In(s.loc)
	schedules, err := s.listDay(ctx, userID, today)
	if err != nil {
		s.log.Error().Err(err).Msg("schedule list failed")
		return replyInternalError
	}
	if len(schedules) == 0 {
		return "📅 今日の予定はありません。\n\n予定追加: @予定 [日時] [タイトル]"
	}
	return fmt.Sprintf("📅 %sの予定\n\n%s\n\n詳細確認: @予定 詳細 [ID]\n予定追加: @予定 [日時] [タイトル]",
		formatDay(today), s.renderDayList(schedules))
}

func (s *ScheduleService) tomorrowReply(ctx context.Context, userID string) string {
	tomorrow := s.now().In(s.loc).AddDate(0, 0, 1)
	schedules, err := s.listDay(ctx, userID, tomorrow)
	if err != nil {
		s.log.Error().Err(err).Msg("schedule list failed")
		return replyInternalError
	}
	if len(schedules) == 0 {
		return "📅 明日の予定はありません。\n\n予定追加: @予定 明日 [時間] [タイトル]"
	}
	return fmt.Sprintf("📅 %sの予定\n\n%s\n\n詳細確認: @予定 詳細 [ID]\n予定追加: @予定 明日 [時間] [タイトル]",
		formatDay(tomorrow), s.renderDayList(schedules))
}

func (s *ScheduleService) listDay(ctx context.Context, userID string, day time.Time) ([]*model.Schedule, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	return s.store.Schedules().ListInRange(ctx, userID, start.UTC(), start.AddDate(0, 0, 1).UTC())
}

func (s *ScheduleService) renderDayList(schedules []*model.Schedule) string {
	lines := make([]string, 0, len(schedules))
	for i, sc := range schedules {
		timeDisplay := "終日"
		if !sc.AllDay {
			timeDisplay = sc.StartTime.In(s.loc).Format("15:04")
		}
		status := "⏳"
		if sc.Status == model.ScheduleCompleted {
			status = "✅"
		}
		lines = append(lines, fmt.Sprintf("%d. %s %s %s", i+1, status, timeDisplay, sc.Title))
	}
	return strings.Join(lines, "\n")
}

func (s *ScheduleService) upcomingReply(ctx context.Context, userID string) string {
	now := s.now().In(s.loc)
	schedules, err := s.store.Schedules().ListInRange(ctx, userID, now.UTC(), now.AddDate(0, 0, 7).UTC())
	if err != nil {
		s.log.Error().Err(err).Msg("schedule list failed")
		return replyInternalError
	}
	if len(schedules) == 0 {
		return "📅 今後の予定はありません。\n\n予定追加: @予定 [日時] [タイトル]"
	}
	if len(schedules) > 10 {
		schedules = schedules[:10]
	}

	lines := make([]string, 0, len(schedules))
	for i, sc := range schedules {
		status := "⏳"
		if sc.Status == model.ScheduleCompleted {
			status = "✅"
		}
		lines = append(lines, fmt.Sprintf("%d. %s %s %s",
			i+1, status, formatDayTime(sc.StartTime.In(s.loc), sc.AllDay), sc.Title))
	}
	return fmt.Sprintf("📅 今後の予定（7日間）\n\n%s\n\n詳細確認: @予定 詳細 [ID]\n予定追加: @予定 [日時] [タイトル]",
		strings.Join(lines, "\n"))
}

func (s *ScheduleService) detailReply(ctx context.Context, scheduleID string) string {
	if scheduleID == "" {
		return "予定IDを指定してください。\n例: @予定 詳細 abc123"
	}
	sc, err := s.store.Schedules().Get(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "指定された予定が見つかりません。"
		}
		s.log.Error().Err(err).Msg("schedule get failed")
		return replyInternalError
	}

	statusText := "⏳ 予定"
	if sc.Status == model.ScheduleCompleted {
		statusText = "✅ 完了"
	}
	descLine := ""
	if sc.Description != nil {
		descLine = "📋 " + *sc.Description
	}
	return fmt.Sprintf(`📅 予定詳細

📝 %s
📅 %s
📊 %s
%s

🆔 ID: %s
📅 作成日: %s

完了にする: @予定 完了 %s
削除する: @予定 削除 %s`,
		sc.Title, formatFullDayTime(sc.StartTime.In(s.loc), sc.AllDay), statusText, descLine,
		sc.ScheduleID, sc.CreatedAt.Format("2006/01/02"),
		sc.ScheduleID, sc.ScheduleID)
}

func (s *ScheduleService) completeReply(ctx context.Context, scheduleID, userID string) string {
	if scheduleID == "" {
		return "予定IDを指定してください。\n例: @予定 完了 abc123"
	}
	sc, err := s.Complete(ctx, scheduleID, userID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			return "指定された予定が見つかりません。"
		case errors.Is(err, model.ErrForbidden):
			return "自分の予定のみ完了にできます。"
		case errors.Is(err, model.ErrConflict):
			return "この予定はすでに完了しています。"
		default:
			s.log.Error().Err(err).Msg("schedule complete failed")
			return replyInternalError
		}
	}
	return fmt.Sprintf("✅ 予定を完了にしました！\n\n📝 %s\n📅 %s\n\nお疲れさまでした！",
		sc.Title, formatDay(sc.StartTime.In(s.loc)))
}

// Complete marks the caller's schedule done. Owner only; terminal
// entries return model.ErrConflict.
func (s *ScheduleService) Complete(ctx context.Context, scheduleID, userID string) (*model.Schedule, error) {
	sc, err := s.store.Schedules().Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sc.UserID != userID {
		return nil, fmt.Errorf("%w: not the owner", model.ErrForbidden)
	}
	return s.store.Schedules().UpdateStatus(ctx, scheduleID, model.ScheduleCompleted, s.now().UTC())
}

func (s *ScheduleService) deleteReply(ctx context.Context, scheduleID, userID string) string {
	if scheduleID == "" {
		return "予定IDを指定してください。\n例: @予定 削除 abc123"
	}
	sc, err := s.store.Schedules().Get(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "指定された予定が見つかりません。"
		}
		s.log.Error().Err(err).Msg("schedule get failed")
		return replyInternalError
	}
	if sc.UserID != userID {
		return "自分の予定のみ削除できます。"
	}
	if err := s.store.Schedules().Delete(ctx, scheduleID); err != nil {
		s.log.Error().Err(err).Msg("schedule delete failed")
		return replyInternalError
	}
	return fmt.Sprintf("🗑️ 予定を削除しました\n\n📝 %s\n📅 %s",
		sc.Title, formatDay(sc.StartTime.In(s.loc)))
}

// Get returns the caller's schedule. Owner only.
func (s *ScheduleService) Get(ctx context.Context, scheduleID, userID string) (*model.Schedule, error) {
	sc, err := s.store.Schedules().Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sc.UserID != userID {
		return nil, fmt.Errorf("%w: not the owner", model.ErrForbidden)
	}
	return sc, nil
}

// ListRange returns the caller's schedules with start times in [from, to).
func (s *ScheduleService) ListRange(ctx context.Context, userID string, from, to time.Time) ([]*model.Schedule, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: range start must precede end", model.ErrValidation)
	}
	return s.store.Schedules().ListInRange(ctx, userID, from.UTC(), to.UTC())
}

// ScheduleUpdate carries the editable schedule fields. Nil means keep.
type ScheduleUpdate struct {
	Title       *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	AllDay      *bool
	Location    *string
}

// Update edits the caller's schedule. Owner only; terminal entries
// return model.ErrConflict.
func (s *ScheduleService) Update(ctx context.Context, scheduleID, userID string, upd ScheduleUpdate) (*model.Schedule, error) {
	sc, err := s.store.Schedules().Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sc.UserID != userID {
		return nil, fmt.Errorf("%w: not the owner", model.ErrForbidden)
	}
	if sc.Status.Terminal() {
		return nil, fmt.Errorf("%w: schedule is %s", model.ErrConflict, sc.Status)
	}

	if upd.Title != nil {
		if *upd.Title == "" {
			return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
		}
		sc.Title = *upd.Title
	}
	if upd.Description != nil {
		sc.Description = upd.Description
	}
	if upd.StartTime != nil {
		sc.StartTime = upd.StartTime.UTC()
	}
	if upd.EndTime != nil {
		t := upd.EndTime.UTC()
		sc.EndTime = &t
	}
	if upd.AllDay != nil {
		sc.AllDay = *upd.AllDay
	}
	if upd.Location != nil {
		sc.Location = upd.Location
	}
	sc.UpdatedAt = s.now().UTC()
	return s.store.Schedules().Update(ctx, sc)
}

// Cancel voids the caller's schedule. Owner only; terminal entries
// return model.ErrConflict.
func (s *ScheduleService) Cancel(ctx context.Context, scheduleID, userID string) (*model.Schedule, error) {
	sc, err := s.store.Schedules().Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sc.UserID != userID {
		return nil, fmt.Errorf("%w: not the owner", model.ErrForbidden)
	}
	return s.store.Schedules().UpdateStatus(ctx, scheduleID, model.ScheduleCancelled, s.now().UTC())
}

// Delete removes the caller's schedule. Owner only.
func (s *ScheduleService) Delete(ctx context.Context, scheduleID, userID string) error {
	sc, err := s.store.Schedules().Get(ctx, scheduleID)
	if err != nil {
		return err
	}
	if sc.UserID != userID {
		return fmt.Errorf("%w: not the owner", model.ErrForbidden)
	}
	return s.store.Schedules().Delete(ctx, scheduleID)
}

// ParseDateTime resolves Japanese relative dates (今日, 明日, 明後日),
// MM/DD and YYYY/MM/DD, optionally combined with HH:MM. A short date
// already past this year rolls to the next year. The result carries
// now's location; without a time part it is midnight.
func ParseDateTime(dateStr, timeStr string, now time.Time) (time.Time, bool) {
	loc := now.Location()
	var target time.Time

	switch {
	case dateStr == "今日":
		target = now
	case dateStr == "明日":
		target = now.AddDate(0, 0, 1)
	case dateStr == "明後日":
		target = now.AddDate(0, 0, 2)
	case shortDateRe.MatchString(dateStr):
		parts := strings.SplitN(dateStr, "/", 2)
		month, _ := strconv.Atoi(parts[0])
		day, _ := strconv.Atoi(parts[1])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, false
		}
		target = time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, loc)
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		if target.Before(today) {
			target = target.AddDate(1, 0, 0)
		}
	case fullDateRe.MatchString(dateStr):
		parts := strings.SplitN(dateStr, "/", 3)
		year, _ := strconv.Atoi(parts[0])
		month, _ := strconv.Atoi(parts[1])
		day, _ := strconv.Atoi(parts[2])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, false
		}
		target = time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	default:
		return time.Time{}, false
	}

	hour, minute := 0, 0
	if timeStr != "" {
		if !clockRe.MatchString(timeStr) {
			return time.Time{}, false
		}
		parts := strings.SplitN(timeStr, ":", 2)
		hour, _ = strconv.Atoi(parts[0])
		minute, _ = strconv.Atoi(parts[1])
		if hour > 23 || minute > 59 {
			return time.Time{}, false
		}
	}
	return time.Date(target.Year(), target.Month(), target.Day(), hour, minute, 0, 0, loc), true
}
