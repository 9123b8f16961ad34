package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/store"
	"github.com/himawari-tools/line-secretary/internal/store/sqlite"
)

type fakePush struct {
	to    []string
	texts []string
}

func (f *fakePush) ReplyText(string, ...string) error                      { return nil }
func (f *fakePush) Reply(string, ...messaging_api.MessageInterface) error { return nil }

func (f *fakePush) PushText(to string, texts ...string) error {
	f.to = append(f.to, to)
	f.texts = append(f.texts, texts...)
	return nil
}

func (f *fakePush) Multicast(_ context.Context, to []string, texts ...string) error {
	for _, id := range to {
		_ = f.PushText(id, texts...)
	}
	return nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlite.NewWithDB(db)
}

func tokyo() *time.Location { return time.FixedZone("JST", 9*60*60) }

func seedUser(t *testing.T, st store.Store, userID, lineUserID string, reminder, daily bool) *model.User {
	t.Helper()
	u, err := st.Users().Create(context.Background(), &model.User{
		UserID:     userID,
		LineUserID: lineUserID,
		Plan:       model.PlanFree,
		Settings: model.UserSettings{
			Language: "ja",
			Timezone: "Asia/Tokyo",
			Notifications: model.NotificationSettings{
				Reminder: reminder,
				Daily:    daily,
			},
		},
	})
	require.NoError(t, err)
	return u
}

func seedSchedule(t *testing.T, st store.Store, userID, title string, start time.Time, allDay bool) *model.Schedule {
	t.Helper()
	sc, err := st.Schedules().Create(context.Background(), &model.Schedule{
		UserID:    userID,
		Type:      model.ScheduleEvent,
		Title:     title,
		StartTime: start.UTC(),
		AllDay:    allDay,
		Status:    model.SchedulePending,
	})
	require.NoError(t, err)
	return sc
}

func TestReminderJob(t *testing.T) {
	st := newTestStore(t)
	sender := &fakePush{}
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

	seedUser(t, st, "u-on", "LINE-on", true, false)
	seedUser(t, st, "u-off", "LINE-off", false, false)

	seedSchedule(t, st, "u-on", "歯医者", now.Add(20*time.Minute), false)
	seedSchedule(t, st, "u-off", "会議", now.Add(20*time.Minute), false)
	seedSchedule(t, st, "u-on", "誕生日", now.Add(20*time.Minute), true)        // all-day, excluded
	seedSchedule(t, st, "u-on", "来週の打合せ", now.Add(48*time.Hour), false) // outside window

	job := NewReminderJob(st, sender, tokyo(), zerolog.Nop())
	job.now = func() time.Time { return now }

	require.NoError(t, job.Execute(context.Background()))
	require.Len(t, sender.to, 1)
	assert.Equal(t, "LINE-on", sender.to[0])
	assert.Contains(t, sender.texts[0], "歯医者")
	assert.Contains(t, sender.texts[0], "18:20") // 09:20 UTC in JST

	// The reminder is sent once.
	require.NoError(t, job.Execute(context.Background()))
	assert.Len(t, sender.to, 1)
}

func TestDailyDigestJob(t *testing.T) {
	st := newTestStore(t)
	sender := &fakePush{}
	// 08:00 JST on 2024-06-10.
	now := time.Date(2024, 6, 9, 23, 0, 0, 0, time.UTC)

	seedUser(t, st, "u-daily", "LINE-daily", true, true)
	seedUser(t, st, "u-quiet", "LINE-quiet", true, false)
	seedUser(t, st, "u-empty", "LINE-empty", true, true)

	seedSchedule(t, st, "u-daily", "朝会", now.Add(time.Hour), false)
	seedSchedule(t, st, "u-daily", "買い物", now.Add(8*time.Hour), true)
	seedSchedule(t, st, "u-quiet", "ランチ", now.Add(3*time.Hour), false)

	job := NewDailyDigestJob(st, sender, tokyo(), zerolog.Nop())
	job.now = func() time.Time { return now }

	require.NoError(t, job.Execute(context.Background()))
	require.Len(t, sender.to, 1)
	assert.Equal(t, "LINE-daily", sender.to[0])
	assert.Contains(t, sender.texts[0], "今日の予定は2件です")
	assert.Contains(t, sender.texts[0], "朝会")
	assert.Contains(t, sender.texts[0], "終日 買い物")
}

func TestUsageResetJob(t *testing.T) {
	st := newTestStore(t)

	u := seedUser(t, st, "u1", "LINE-1", true, true)
	_, err := st.Users().IncrementAPIUsage(context.Background(), u.UserID, model.LimitsFor(model.PlanFree), time.Now())
	require.NoError(t, err)

	job := NewUsageResetJob(st, zerolog.Nop())
	require.NoError(t, job.Execute(context.Background()))

	got, err := st.Users().Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, got.Usage.APICalls)
	assert.Zero(t, got.Usage.MonthlyAPICalls)
}

type fakeSweeper struct{ swept int }

func (f *fakeSweeper) SweepCache() int { return f.swept }

func TestCleanupJob(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Date(2024, 6, 10, 2, 0, 0, 0, time.UTC)

	// Settled over six months ago: removed.
	old, err := st.Warikans().Create(ctx, &model.Warikan{
		CreatedBy: "u1", Title: "忘年会", TotalAmount: 10000,
		Members: []model.WarikanMember{{UserID: "u1", Amount: 10000}},
	})
	require.NoError(t, err)
	_, err = st.Warikans().UpdateStatus(ctx, old.WarikanID, model.WarikanSettled, now.AddDate(0, -7, 0))
	require.NoError(t, err)

	// Recently settled: kept.
	recent, err := st.Warikans().Create(ctx, &model.Warikan{
		CreatedBy: "u1", Title: "新年会", TotalAmount: 8000,
		Members: []model.WarikanMember{{UserID: "u1", Amount: 8000}},
	})
	require.NoError(t, err)
	_, err = st.Warikans().UpdateStatus(ctx, recent.WarikanID, model.WarikanSettled, now.AddDate(0, -1, 0))
	require.NoError(t, err)

	// Completed over a year ago: removed.
	stale := seedSchedule(t, st, "u1", "昔の予定", now.AddDate(-2, 0, 0), false)
	_, err = st.Schedules().UpdateStatus(ctx, stale.ScheduleID, model.ScheduleCompleted, now)
	require.NoError(t, err)

	sweeper := &fakeSweeper{swept: 3}
	job := NewCleanupJob(st, sweeper, zerolog.Nop())
	job.now = func() time.Time { return now }

	require.NoError(t, job.Execute(ctx))

	_, err = st.Warikans().Get(ctx, old.WarikanID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = st.Warikans().Get(ctx, recent.WarikanID)
	assert.NoError(t, err)
	_, err = st.Schedules().Get(ctx, stale.ScheduleID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTasksHandler(t *testing.T) {
	st := newTestStore(t)
	w := New(tokyo(), zerolog.Nop())
	require.NoError(t, w.Register("0 0 1 * *", NewUsageResetJob(st, zerolog.Nop())))

	srv := httptest.NewServer(w.TasksHandler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/tasks/usage-reset", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Post(srv.URL+"/tasks/nope", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}
