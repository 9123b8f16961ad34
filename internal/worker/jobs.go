package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/push"
	"github.com/himawari-tools/line-secretary/internal/store"
)

const (
	// reminderWindow is how far ahead the reminder job looks.
	reminderWindow = 30 * time.Minute

	// pushInterval paces consecutive pushes in a fan-out.
	pushInterval = 100 * time.Millisecond

	digestUserCap  = 1000
	digestMaxItems = 5

	resetCap = 50000
)

// pace sleeps between fan-out sends; the first send goes immediately.
func pace(ctx context.Context, sent int) error {
	if sent == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(pushInterval):
		return nil
	}
}

// ReminderJob pushes a heads-up for schedules starting within the next
// half hour. All-day entries and already-notified schedules are
// excluded by the store query; users who turned reminders off are
// skipped here.
type ReminderJob struct {
	store store.Store
	push  push.Client
	loc   *time.Location
	log   zerolog.Logger
	now   func() time.Time
}

func NewReminderJob(s store.Store, p push.Client, loc *time.Location, log zerolog.Logger) *ReminderJob {
	return &ReminderJob{store: s, push: p, loc: loc, log: log, now: time.Now}
}

func (j *ReminderJob) Name() string { return "reminder" }

func (j *ReminderJob) Execute(ctx context.Context) error {
	now := j.now().UTC()
	due, err := j.store.Schedules().ListDueReminders(ctx, now, now.Add(reminderWindow))
	if err != nil {
		return fmt.Errorf("list due reminders: %w", err)
	}

	sent := 0
	for _, sc := range due {
		user, err := j.store.Users().Get(ctx, sc.UserID)
		if err != nil {
			j.log.Warn().Err(err).Str("scheduleId", sc.ScheduleID).Msg("reminder user lookup failed")
			continue
		}
		if !user.Settings.Notifications.Reminder {
			continue
		}

		if err := pace(ctx, sent); err != nil {
			return err
		}
		text := fmt.Sprintf("⏰ リマインダー\n\n📝 %s\n🕐 %s\n\nまもなく予定の時間です！",
			sc.Title, sc.StartTime.In(j.loc).Format("15:04"))
		if err := j.push.PushText(user.LineUserID, text); err != nil {
			j.log.Warn().Err(err).Str("scheduleId", sc.ScheduleID).Msg("reminder push failed")
			continue
		}
		sent++
		if err := j.store.Schedules().MarkReminderSent(ctx, sc.ScheduleID, now); err != nil {
			j.log.Warn().Err(err).Str("scheduleId", sc.ScheduleID).Msg("mark reminder sent failed")
		}
	}
	j.log.Info().Int("due", len(due)).Int("sent", sent).Msg("reminder run")
	return nil
}

// DailyDigestJob pushes each opted-in user their schedules for the day.
// Users without any schedule today get nothing.
type DailyDigestJob struct {
	store store.Store
	push  push.Client
	loc   *time.Location
	log   zerolog.Logger
	now   func() time.Time
}

func NewDailyDigestJob(s store.Store, p push.Client, loc *time.Location, log zerolog.Logger) *DailyDigestJob {
	return &DailyDigestJob{store: s, push: p, loc: loc, log: log, now: time.Now}
}

func (j *DailyDigestJob) Name() string { return "daily-digest" }

func (j *DailyDigestJob) Execute(ctx context.Context) error {
	users, err := j.store.Users().List(ctx, digestUserCap)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	today := j.now().In(j.loc)
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, j.loc)

	sent := 0
	for _, user := range users {
		if !user.Settings.Notifications.Daily {
			continue
		}
		schedules, err := j.store.Schedules().ListInRange(ctx, user.UserID, start.UTC(), start.AddDate(0, 0, 1).UTC())
		if err != nil {
			j.log.Warn().Err(err).Str("userId", user.UserID).Msg("digest schedule list failed")
			continue
		}
		if len(schedules) == 0 {
			continue
		}

		if err := pace(ctx, sent); err != nil {
			return err
		}
		if err := j.push.PushText(user.LineUserID, j.render(schedules)); err != nil {
			j.log.Warn().Err(err).Str("userId", user.UserID).Msg("digest push failed")
			continue
		}
		sent++
	}
	j.log.Info().Int("users", len(users)).Int("sent", sent).Msg("daily digest run")
	return nil
}

func (j *DailyDigestJob) render(schedules []*model.Schedule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "☀️ おはようございます！\n今日の予定は%d件です。\n\n", len(schedules))

	shown := schedules
	if len(shown) > digestMaxItems {
		shown = shown[:digestMaxItems]
	}
	for i, sc := range shown {
		timeDisplay := "終日"
		if !sc.AllDay {
			timeDisplay = sc.StartTime.In(j.loc).Format("15:04")
		}
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, timeDisplay, sc.Title)
	}
	if len(schedules) > digestMaxItems {
		fmt.Fprintf(&b, "\n他 %d 件の予定があります。", len(schedules)-digestMaxItems)
	}
	b.WriteString("\n今日も良い一日を！")
	return b.String()
}

// UsageResetJob zeroes everyone's usage counters at the start of each
// month. The store applies the reset per user; the cap bounds one run.
type UsageResetJob struct {
	store store.Store
	log   zerolog.Logger
}

func NewUsageResetJob(s store.Store, log zerolog.Logger) *UsageResetJob {
	return &UsageResetJob{store: s, log: log}
}

func (j *UsageResetJob) Name() string { return "usage-reset" }

func (j *UsageResetJob) Execute(ctx context.Context) error {
	n, err := j.store.Users().ResetMonthlyUsage(ctx, resetCap)
	if err != nil {
		return fmt.Errorf("reset usage: %w", err)
	}
	j.log.Info().Int("users", n).Msg("usage reset run")
	return nil
}

// CacheSweeper drops expired entries from the OCR result cache.
type CacheSweeper interface {
	SweepCache() int
}

// CleanupJob removes settled splits older than six months, completed
// schedules older than a year, and expired OCR cache entries.
type CleanupJob struct {
	store   store.Store
	sweeper CacheSweeper
	log     zerolog.Logger
	now     func() time.Time
}

func NewCleanupJob(s store.Store, sweeper CacheSweeper, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{store: s, sweeper: sweeper, log: log, now: time.Now}
}

func (j *CleanupJob) Name() string { return "cleanup" }

func (j *CleanupJob) Execute(ctx context.Context) error {
	now := j.now().UTC()

	warikans, err := j.store.Warikans().DeleteSettledBefore(ctx, now.AddDate(0, -6, 0))
	if err != nil {
		return fmt.Errorf("delete settled warikans: %w", err)
	}
	schedules, err := j.store.Schedules().DeleteCompletedBefore(ctx, now.AddDate(-1, 0, 0))
	if err != nil {
		return fmt.Errorf("delete completed schedules: %w", err)
	}
	swept := 0
	if j.sweeper != nil {
		swept = j.sweeper.SweepCache()
	}

	j.log.Info().
		Int("warikans", warikans).
		Int("schedules", schedules).
		Int("cacheEntries", swept).
		Msg("cleanup run")
	return nil
}
