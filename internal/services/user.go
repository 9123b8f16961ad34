// Package services implements the application logic between the LINE
// bot / REST handlers and the store. Reply-producing methods return
// user-facing Japanese text; domain methods return models and sentinel
// errors from the model package.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/store"
)

// Profile is the subset of a LINE profile the account keeps.
type Profile struct {
	DisplayName string
	PictureURL  string
}

// UserService manages accounts and plan quotas.
type UserService struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewUserService(s store.Store, log zerolog.Logger) *UserService {
	return &UserService{store: s, log: log, now: time.Now}
}

// EnsureUser returns the account for a LINE user, creating it on first
// contact. New accounts start on the free plan with Japanese defaults.
func (s *UserService) EnsureUser(ctx context.Context, lineUserID string, profile *Profile) (*model.User, error) {
	if lineUserID == "" {
		return nil, fmt.Errorf("%w: lineUserId is required", model.ErrValidation)
	}
	existing, err := s.store.Users().GetByLineUserID(ctx, lineUserID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	u := &model.User{
		UserID:     uuid.NewString(),
		LineUserID: lineUserID,
		Plan:       model.PlanFree,
		Settings: model.UserSettings{
			Language: "ja",
			Timezone: "Asia/Tokyo",
			Notifications: model.NotificationSettings{
				Reminder: true,
				Daily:    true,
				Weekly:   false,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if profile != nil {
		if profile.DisplayName != "" {
			u.DisplayName = &profile.DisplayName
		}
		if profile.PictureURL != "" {
			u.PictureURL = &profile.PictureURL
		}
	}

	created, err := s.store.Users().Create(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info().Str("userId", created.UserID).Str("lineUserId", lineUserID).Msg("user created")
	return created, nil
}

// GetByLineID looks an account up by LINE user ID.
func (s *UserService) GetByLineID(ctx context.Context, lineUserID string) (*model.User, error) {
	return s.store.Users().GetByLineUserID(ctx, lineUserID)
}

// Get looks an account up by internal ID.
func (s *UserService) Get(ctx context.Context, userID string) (*model.User, error) {
	return s.store.Users().Get(ctx, userID)
}

// RecordAPICall consumes one call against the user's plan quota.
// Returns model.ErrQuotaExceeded when the daily or monthly limit is hit.
func (s *UserService) RecordAPICall(ctx context.Context, user *model.User) error {
	limits := model.LimitsFor(user.Plan)
	usage, err := s.store.Users().IncrementAPIUsage(ctx, user.UserID, limits, s.now().UTC())
	if err != nil {
		return err
	}
	user.Usage = *usage
	return nil
}

// UpdateProfile refreshes display name and picture from LINE.
func (s *UserService) UpdateProfile(ctx context.Context, lineUserID string, profile Profile) error {
	u, err := s.store.Users().GetByLineUserID(ctx, lineUserID)
	if err != nil {
		return err
	}
	if profile.DisplayName != "" {
		u.DisplayName = &profile.DisplayName
	}
	if profile.PictureURL != "" {
		u.PictureURL = &profile.PictureURL
	}
	u.UpdatedAt = s.now().UTC()
	_, err = s.store.Users().Update(ctx, u)
	return err
}

// UpdateSettings overwrites the user's preferences.
func (s *UserService) UpdateSettings(ctx context.Context, userID string, settings model.UserSettings) (*model.User, error) {
	u, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings.Language != "ja" && settings.Language != "en" {
		return nil, fmt.Errorf("%w: language must be ja or en", model.ErrValidation)
	}
	u.Settings = settings
	u.UpdatedAt = s.now().UTC()
	return s.store.Users().Update(ctx, u)
}

// UpgradePlan switches the plan, optionally with an expiry.
func (s *UserService) UpgradePlan(ctx context.Context, userID string, plan model.Plan, expiresAt *time.Time) (*model.User, error) {
	if model.LimitsFor(plan) == model.LimitsFor(model.PlanFree) && plan != model.PlanFree {
		return nil, fmt.Errorf("%w: unknown plan %q", model.ErrValidation, plan)
	}
	u, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Plan = plan
	u.PlanExpires = expiresAt
	u.UpdatedAt = s.now().UTC()
	updated, err := s.store.Users().Update(ctx, u)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("userId", userID).Str("plan", string(plan)).Msg("plan upgraded")
	return updated, nil
}

// Delete removes the account.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	if err := s.store.Users().Delete(ctx, userID); err != nil {
		return err
	}
	s.log.Info().Str("userId", userID).Msg("user deleted")
	return nil
}
