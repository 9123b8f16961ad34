package services

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himawari-tools/line-secretary/internal/model"
)

func TestEnsureMembershipCreatesGroup(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewGroupService(st, zerolog.Nop())

	g, err := svc.EnsureMembership(ctx, "LG-1", "user-a")
	require.NoError(t, err)
	require.NotNil(t, g.LineGroupID)
	assert.Equal(t, "LG-1", *g.LineGroupID)
	require.Len(t, g.Members, 1)
	assert.Equal(t, "owner", g.Members[0].Role)
	assert.Equal(t, "JPY", g.Settings.DefaultCurrency)

	// Same user again is a no-op.
	again, err := svc.EnsureMembership(ctx, "LG-1", "user-a")
	require.NoError(t, err)
	assert.Equal(t, g.GroupID, again.GroupID)
	assert.Len(t, again.Members, 1)

	// A second user joins as a plain member.
	joined, err := svc.EnsureMembership(ctx, "LG-1", "user-b")
	require.NoError(t, err)
	require.Len(t, joined.Members, 2)
	assert.Equal(t, "member", joined.Members[1].Role)

	stored, err := st.Groups().GetByLineGroupID(ctx, "LG-1")
	require.NoError(t, err)
	assert.Len(t, stored.Members, 2)

	_, err = svc.EnsureMembership(ctx, "", "user-a")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestIsMember(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewGroupService(st, zerolog.Nop())

	ok, err := svc.IsMember(ctx, "LG-unknown", "user-a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.EnsureMembership(ctx, "LG-2", "user-a")
	require.NoError(t, err)

	ok, err = svc.IsMember(ctx, "LG-2", "user-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsMember(ctx, "LG-2", "user-b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListForUser(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewGroupService(st, zerolog.Nop())

	_, err := svc.EnsureMembership(ctx, "LG-3", "user-a")
	require.NoError(t, err)
	_, err = svc.EnsureMembership(ctx, "LG-4", "user-a")
	require.NoError(t, err)
	_, err = svc.EnsureMembership(ctx, "LG-5", "user-b")
	require.NoError(t, err)

	groups, err := svc.ListForUser(ctx, "user-a", 0)
	require.NoError(t, err)
	assert.Len(t, groups, 2)

	groups, err = svc.ListForUser(ctx, "user-b", 10)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.NotNil(t, groups[0].LineGroupID)
	assert.Equal(t, "LG-5", *groups[0].LineGroupID)
}

func TestGetSharedReadableByGroupMember(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	creator := newTestUser(t, st, "U-group-memo-1")
	member := newTestUser(t, st, "U-group-memo-2")
	outsider := newTestUser(t, st, "U-group-memo-3")

	groups := NewGroupService(st, zerolog.Nop())
	_, err := groups.EnsureMembership(ctx, "LG-memo", creator)
	require.NoError(t, err)
	_, err = groups.EnsureMembership(ctx, "LG-memo", member)
	require.NoError(t, err)

	memos := NewMemoService(st, &fakeAssistant{}, zerolog.Nop())
	created, err := memos.CreateShared(ctx, creator, "LG-memo", "買い出し分担", "飲み物担当: 花子")
	require.NoError(t, err)

	// A tracked group member can read without being an editor or a
	// listed reader.
	got, err := memos.GetShared(ctx, created.MemoID, member)
	require.NoError(t, err)
	assert.Equal(t, created.MemoID, got.MemoID)
	assert.False(t, got.CanEdit(member))

	_, err = memos.GetShared(ctx, created.MemoID, outsider)
	assert.ErrorIs(t, err, model.ErrForbidden)
}
