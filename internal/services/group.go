package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/store"
)

// GroupService tracks LINE groups and their membership as the bot
// observes them. Groups are created lazily from group-sourced events;
// the first user seen becomes the owner.
type GroupService struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewGroupService(s store.Store, log zerolog.Logger) *GroupService {
	return &GroupService{store: s, log: log, now: time.Now}
}

// EnsureMembership upserts the group record for a LINE group (or room)
// ID and makes sure userID is listed as a member.
func (s *GroupService) EnsureMembership(ctx context.Context, lineGroupID, userID string) (*model.Group, error) {
	if lineGroupID == "" || userID == "" {
		return nil, fmt.Errorf("%w: lineGroupId and userId are required", model.ErrValidation)
	}

	g, err := s.store.Groups().GetByLineGroupID(ctx, lineGroupID)
	if errors.Is(err, model.ErrNotFound) {
		now := s.now().UTC()
		created, err := s.store.Groups().Create(ctx, &model.Group{
			LineGroupID: &lineGroupID,
			Name:        "LINEグループ",
			Type:        "other",
			Members: []model.GroupMember{
				{UserID: userID, Role: "owner", JoinedAt: now},
			},
			Settings: model.GroupSettings{
				AutoReminder:    true,
				DefaultCurrency: "JPY",
			},
		})
		if err != nil {
			return nil, fmt.Errorf("create group: %w", err)
		}
		s.log.Info().Str("groupId", created.GroupID).Str("lineGroupId", lineGroupID).Msg("group created")
		return created, nil
	}
	if err != nil {
		return nil, err
	}

	if g.Member(userID) != nil {
		return g, nil
	}
	g.Members = append(g.Members, model.GroupMember{
		UserID:   userID,
		Role:     "member",
		JoinedAt: s.now().UTC(),
	})
	g.UpdatedAt = s.now().UTC()
	return s.store.Groups().Update(ctx, g)
}

// IsMember reports whether userID belongs to the group tracked for a
// LINE group ID. Unknown groups are simply non-memberships.
func (s *GroupService) IsMember(ctx context.Context, lineGroupID, userID string) (bool, error) {
	g, err := s.store.Groups().GetByLineGroupID(ctx, lineGroupID)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return g.Member(userID) != nil, nil
}

// ListForUser returns the groups the user belongs to.
func (s *GroupService) ListForUser(ctx context.Context, userID string, limit int) ([]*model.Group, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.Groups().ListByMember(ctx, userID, limit)
}
