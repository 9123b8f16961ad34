package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db)
}

func TestUsersRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, err := s.Users().Create(ctx, &model.User{
		LineUserID: "U123",
		Plan:       model.PlanFree,
		Settings:   model.UserSettings{Language: "ja", Timezone: "Asia/Tokyo"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, u.UserID)

	got, err := s.Users().GetByLineUserID(ctx, "U123")
	require.NoError(t, err)
	assert.Equal(t, u.UserID, got.UserID)
	assert.Equal(t, "ja", got.Settings.Language)

	_, err = s.Users().Get(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestIncrementAPIUsageQuota(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, err := s.Users().Create(ctx, &model.User{LineUserID: "U1", Plan: model.PlanFree})
	require.NoError(t, err)

	limits := model.PlanLimits{APICallsPerDay: 2, APICallsPerMonth: 100}
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	usage, err := s.Users().IncrementAPIUsage(ctx, u.UserID, limits, now)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.APICalls)

	_, err = s.Users().IncrementAPIUsage(ctx, u.UserID, limits, now)
	require.NoError(t, err)

	_, err = s.Users().IncrementAPIUsage(ctx, u.UserID, limits, now)
	assert.ErrorIs(t, err, model.ErrQuotaExceeded)

	// A new day resets the daily counter.
	usage, err = s.Users().IncrementAPIUsage(ctx, u.UserID, limits, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, usage.APICalls)
	assert.Equal(t, 3, usage.MonthlyAPICalls)
}

func TestMarkMemberPaidCAS(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	w, err := s.Warikans().Create(ctx, &model.Warikan{
		CreatedBy:   "user-a",
		Title:       "ランチ",
		TotalAmount: 3000,
		Members: []model.WarikanMember{
			{UserID: "user-a", DisplayName: "A", Amount: 750},
			{UserID: "user-b", DisplayName: "B", Amount: 750},
		},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, w.Version)

	now := time.Now()

	// Stale version is rejected.
	_, err = s.Warikans().MarkMemberPaid(ctx, w.WarikanID, "user-a", 99, now)
	assert.ErrorIs(t, err, model.ErrConflict)

	got, err := s.Warikans().MarkMemberPaid(ctx, w.WarikanID, "user-a", 1, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Version)
	assert.True(t, got.Member("user-a").IsPaid)
	assert.Equal(t, model.WarikanActive, got.Status)

	// Paying twice is invalid.
	_, err = s.Warikans().MarkMemberPaid(ctx, w.WarikanID, "user-a", 2, now)
	assert.ErrorIs(t, err, model.ErrValidation)

	// Last member settles the split.
	got, err = s.Warikans().MarkMemberPaid(ctx, w.WarikanID, "user-b", 2, now)
	require.NoError(t, err)
	assert.Equal(t, model.WarikanSettled, got.Status)
	require.NotNil(t, got.SettledAt)

	// Settled splits reject further transitions.
	_, err = s.Warikans().UpdateStatus(ctx, w.WarikanID, model.WarikanCancelled, now)
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestListDueRemindersExcludesAllDay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	timed, err := s.Schedules().Create(ctx, &model.Schedule{
		UserID:    "u1",
		Type:      model.ScheduleEvent,
		Title:     "会議",
		StartTime: base.Add(25 * time.Minute),
	})
	require.NoError(t, err)

	_, err = s.Schedules().Create(ctx, &model.Schedule{
		UserID:    "u1",
		Type:      model.ScheduleEvent,
		Title:     "終日イベント",
		StartTime: base.Add(25 * time.Minute),
		AllDay:    true,
	})
	require.NoError(t, err)

	due, err := s.Schedules().ListDueReminders(ctx, base, base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, timed.ScheduleID, due[0].ScheduleID)

	// Marked reminders drop out of the window.
	require.NoError(t, s.Schedules().MarkReminderSent(ctx, timed.ScheduleID, base))
	due, err = s.Schedules().ListDueReminders(ctx, base, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestSharedMemoVersionCAS(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m, err := s.SharedMemos().Create(ctx, &model.SharedMemo{
		GroupID:   "g1",
		CreatedBy: "u1",
		Title:     "会議メモ",
		Content:   "議題: 予算",
		Type:      model.SharedMeeting,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, m.Version)

	m.Content = "議題: 予算と日程"
	updated, err := s.SharedMemos().Update(ctx, m)
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated.Version)

	// Writing with the stale version conflicts.
	stale := *m
	stale.Content = "古い内容"
	_, err = s.SharedMemos().Update(ctx, &stale)
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestPersonalMemoSearchAndFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.PersonalMemos().Create(ctx, &model.PersonalMemo{
		UserID: "u1", Title: "買い物リスト", Content: "牛乳 卵", Tags: []string{"買い物"},
	})
	require.NoError(t, err)
	archived, err := s.PersonalMemos().Create(ctx, &model.PersonalMemo{
		UserID: "u1", Title: "古いメモ", Content: "アーカイブ済み", IsArchived: true,
	})
	require.NoError(t, err)

	memos, err := s.PersonalMemos().List(ctx, "u1", store.PersonalMemoFilter{})
	require.NoError(t, err)
	require.Len(t, memos, 1)

	memos, err = s.PersonalMemos().List(ctx, "u1", store.PersonalMemoFilter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, memos, 2)

	memos, err = s.PersonalMemos().List(ctx, "u1", store.PersonalMemoFilter{Tag: "買い物"})
	require.NoError(t, err)
	require.Len(t, memos, 1)
	assert.Equal(t, "買い物リスト", memos[0].Title)

	found, err := s.PersonalMemos().Search(ctx, "u1", "牛乳", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, s.PersonalMemos().Delete(ctx, archived.MemoID))
	_, err = s.PersonalMemos().Get(ctx, archived.MemoID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
