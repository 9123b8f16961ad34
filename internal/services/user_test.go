package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/store"
)

func TestEnsureUserIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewUserService(st, zerolog.Nop())

	first, err := svc.EnsureUser(ctx, "U-line-1", &Profile{DisplayName: "太郎"})
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, first.Plan)
	assert.Equal(t, "ja", first.Settings.Language)
	assert.Equal(t, "Asia/Tokyo", first.Settings.Timezone)
	assert.True(t, first.Settings.Notifications.Reminder)
	assert.False(t, first.Settings.Notifications.Weekly)
	require.NotNil(t, first.DisplayName)
	assert.Equal(t, "太郎", *first.DisplayName)

	second, err := svc.EnsureUser(ctx, "U-line-1", nil)
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)

	_, err = svc.EnsureUser(ctx, "", nil)
	assert.ErrorIs(t, err, model.ErrValidation)
}

// annotatingStore wraps user lookups the way adapters do when they add
// context to errors, so the sentinel arrives wrapped.
type annotatingStore struct {
	store.Store
}

func (s *annotatingStore) Users() store.Users {
	return &annotatingUsers{Users: s.Store.Users()}
}

type annotatingUsers struct {
	store.Users
}

func (u *annotatingUsers) GetByLineUserID(ctx context.Context, lineUserID string) (*model.User, error) {
	user, err := u.Users.GetByLineUserID(ctx, lineUserID)
	if err != nil {
		return nil, fmt.Errorf("users lookup %q: %w", lineUserID, err)
	}
	return user, nil
}

func TestEnsureUserWithWrappedNotFound(t *testing.T) {
	ctx := context.Background()
	st := &annotatingStore{Store: newTestStore(t)}
	svc := NewUserService(st, zerolog.Nop())

	u, err := svc.EnsureUser(ctx, "U-line-wrapped", nil)
	require.NoError(t, err)
	assert.Equal(t, "U-line-wrapped", u.LineUserID)

	again, err := svc.EnsureUser(ctx, "U-line-wrapped", nil)
	require.NoError(t, err)
	assert.Equal(t, u.UserID, again.UserID)
}

func TestRecordAPICallUpdatesUsage(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewUserService(st, zerolog.Nop())

	u, err := svc.EnsureUser(ctx, "U-line-2", nil)
	require.NoError(t, err)

	require.NoError(t, svc.RecordAPICall(ctx, u))
	require.NoError(t, svc.RecordAPICall(ctx, u))
	assert.Equal(t, 2, u.Usage.APICalls)
	assert.Equal(t, 2, u.Usage.MonthlyAPICalls)
	assert.NotNil(t, u.Usage.LastAPICall)
}

func TestUpdateSettingsValidation(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewUserService(st, zerolog.Nop())

	u, err := svc.EnsureUser(ctx, "U-line-3", nil)
	require.NoError(t, err)

	_, err = svc.UpdateSettings(ctx, u.UserID, model.UserSettings{Language: "fr", Timezone: "Asia/Tokyo"})
	assert.ErrorIs(t, err, model.ErrValidation)

	updated, err := svc.UpdateSettings(ctx, u.UserID, model.UserSettings{
		Language: "en",
		Timezone: "Asia/Tokyo",
		Notifications: model.NotificationSettings{
			Reminder: false, Daily: true, Weekly: true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "en", updated.Settings.Language)
	assert.True(t, updated.Settings.Notifications.Weekly)
}

func TestUpgradePlan(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewUserService(st, zerolog.Nop())

	u, err := svc.EnsureUser(ctx, "U-line-4", nil)
	require.NoError(t, err)

	upgraded, err := svc.UpgradePlan(ctx, u.UserID, model.PlanPro, nil)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, upgraded.Plan)

	_, err = svc.UpgradePlan(ctx, u.UserID, model.Plan("platinum"), nil)
	assert.ErrorIs(t, err, model.ErrValidation)
}
