package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himawari-tools/line-secretary/internal/model"
)

var tokyo = time.FixedZone("JST", 9*60*60)

func newScheduleService(t *testing.T, now time.Time) (*ScheduleService, string) {
	t.Helper()
	st := newTestStore(t)
	userID := newTestUser(t, st, "U-schedule")
	svc := NewScheduleService(st, tokyo, zerolog.Nop())
	svc.now = fixedNow(now)
	return svc, userID
}

func TestParseDateTime(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, tokyo)

	tests := []struct {
		name    string
		dateStr string
		timeStr string
		want    time.Time
		ok      bool
	}{
		{"today", "今日", "", time.Date(2025, 6, 10, 0, 0, 0, 0, tokyo), true},
		{"tomorrow with time", "明日", "14:00", time.Date(2025, 6, 11, 14, 0, 0, 0, tokyo), true},
		{"day after tomorrow", "明後日", "", time.Date(2025, 6, 12, 0, 0, 0, 0, tokyo), true},
		{"short date ahead", "12/25", "", time.Date(2025, 12, 25, 0, 0, 0, 0, tokyo), true},
		{"short date passed rolls over", "1/15", "", time.Date(2026, 1, 15, 0, 0, 0, 0, tokyo), true},
		{"full date", "2025/12/25", "14:00", time.Date(2025, 12, 25, 14, 0, 0, 0, tokyo), true},
		{"bad date", "そのうち", "", time.Time{}, false},
		{"bad month", "13/05", "", time.Time{}, false},
		{"bad time", "明日", "25:00", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDateTime(tt.dateStr, tt.timeStr, now)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
			}
		})
	}
}

func TestScheduleCreateReply(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, tokyo)
	svc, userID := newScheduleService(t, now)

	reply := svc.HandleCommand(ctx, userID, []string{"追加", "明日", "14:00", "会議", "資料準備"})
	assert.Contains(t, reply, "📅 予定を追加しました！")
	assert.Contains(t, reply, "📝 会議")
	assert.Contains(t, reply, "06/11(水) 14:00")
	assert.Contains(t, reply, "📋 資料準備")

	// Without a time the entry is all-day.
	reply = svc.HandleCommand(ctx, userID, []string{"12/25", "クリスマス"})
	assert.Contains(t, reply, "終日")

	reply = svc.HandleCommand(ctx, userID, []string{"追加", "そのうち", "買い物"})
	assert.Contains(t, reply, "日時の形式が正しくありません。")

	reply = svc.HandleCommand(ctx, userID, nil)
	assert.Contains(t, reply, "予定機能の使い方")
}

func TestScheduleTodayAndUpcoming(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, tokyo)
	svc, userID := newScheduleService(t, now)

	assert.Contains(t, svc.HandleCommand(ctx, userID, []string{"今日"}), "今日の予定はありません。")

	_, err := svc.Create(ctx, userID, "朝会", nil, time.Date(2025, 6, 10, 9, 0, 0, 0, tokyo), false)
	require.NoError(t, err)
	_, err = svc.Create(ctx, userID, "夕食", nil, time.Date(2025, 6, 12, 19, 0, 0, 0, tokyo), false)
	require.NoError(t, err)

	today := svc.HandleCommand(ctx, userID, []string{"今日"})
	assert.Contains(t, today, "朝会")
	assert.NotContains(t, today, "夕食")
	assert.Contains(t, today, "09:00")

	upcoming := svc.HandleCommand(ctx, userID, []string{"一覧"})
	assert.Contains(t, upcoming, "今後の予定（7日間）")
	assert.Contains(t, upcoming, "朝会")
	assert.Contains(t, upcoming, "夕食")
}

func TestScheduleCompleteOwnerOnly(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, tokyo)
	svc, userID := newScheduleService(t, now)

	sc, err := svc.Create(ctx, userID, "会議", nil, now.Add(2*time.Hour), false)
	require.NoError(t, err)

	_, err = svc.Complete(ctx, sc.ScheduleID, "someone-else")
	assert.ErrorIs(t, err, model.ErrForbidden)

	done, err := svc.Complete(ctx, sc.ScheduleID, userID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleCompleted, done.Status)

	// Completed entries are terminal.
	_, err = svc.Complete(ctx, sc.ScheduleID, userID)
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestScheduleDeleteReply(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, tokyo)
	svc, userID := newScheduleService(t, now)

	sc, err := svc.Create(ctx, userID, "歯医者", nil, now.Add(24*time.Hour), false)
	require.NoError(t, err)

	assert.Equal(t, "自分の予定のみ削除できます。",
		svc.HandleCommand(ctx, "someone-else", []string{"削除", sc.ScheduleID}))

	reply := svc.HandleCommand(ctx, userID, []string{"削除", sc.ScheduleID})
	assert.Contains(t, reply, "🗑️ 予定を削除しました")
	assert.Contains(t, reply, "歯医者")

	assert.Equal(t, "指定された予定が見つかりません。",
		svc.HandleCommand(ctx, userID, []string{"詳細", sc.ScheduleID}))
}
