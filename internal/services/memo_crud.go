package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/store"
)

// GetPersonal returns the caller's memo. Owner only.
func (s *MemoService) GetPersonal(ctx context.Context, memoID, userID string) (*model.PersonalMemo, error) {
	m, err := s.store.PersonalMemos().Get(ctx, memoID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, fmt.Errorf("%w: not the owner", model.ErrForbidden)
	}
	return m, nil
}

// ListPersonal returns the caller's memos, newest first.
func (s *MemoService) ListPersonal(ctx context.Context, userID string, f store.PersonalMemoFilter) ([]*model.PersonalMemo, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	return s.store.PersonalMemos().List(ctx, userID, f)
}

// SearchPersonal finds the caller's memos matching keyword.
func (s *MemoService) SearchPersonal(ctx context.Context, userID, keyword string, limit int) ([]*model.PersonalMemo, error) {
	if keyword == "" {
		return nil, fmt.Errorf("%w: keyword is required", model.ErrValidation)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.PersonalMemos().Search(ctx, userID, keyword, limit)
}

// PersonalMemoUpdate carries editable personal-memo fields. Nil means keep.
type PersonalMemoUpdate struct {
	Title        *string
	Content      *string
	Tags         []string
	IsArchived   *bool
	ParentPageID *string
}

// UpdatePersonal edits the caller's memo. Owner only. A content change
// re-runs template classification and queues a fresh AI summary.
func (s *MemoService) UpdatePersonal(ctx context.Context, memoID, userID string, upd PersonalMemoUpdate) (*model.PersonalMemo, error) {
	m, err := s.GetPersonal(ctx, memoID, userID)
	if err != nil {
		return nil, err
	}

	contentChanged := false
	if upd.Title != nil {
		if *upd.Title == "" {
			return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
		}
		m.Title = *upd.Title
	}
	if upd.Content != nil {
		m.Content = *upd.Content
		contentChanged = true
	}
	if upd.Tags != nil {
		m.Tags = upd.Tags
	}
	if upd.IsArchived != nil {
		m.IsArchived = *upd.IsArchived
	}
	if upd.ParentPageID != nil {
		if *upd.ParentPageID == "" {
			m.ParentPageID = nil
		} else {
			m.ParentPageID = upd.ParentPageID
		}
	}
	m.UpdatedAt = s.now().UTC()

	updated, err := s.store.PersonalMemos().Update(ctx, m)
	if err != nil {
		return nil, err
	}
	if contentChanged {
		s.backfillSummary(updated.MemoID, updated.Content)
	}
	return updated, nil
}

// DeletePersonal removes the caller's memo. Owner only.
func (s *MemoService) DeletePersonal(ctx context.Context, memoID, userID string) error {
	if _, err := s.GetPersonal(ctx, memoID, userID); err != nil {
		return err
	}
	return s.store.PersonalMemos().Delete(ctx, memoID)
}

// GetShared returns a group memo readable by the caller: the creator,
// an editor, a listed reader, or a member of the memo's group.
func (s *MemoService) GetShared(ctx context.Context, memoID, userID string) (*model.SharedMemo, error) {
	m, err := s.store.SharedMemos().Get(ctx, memoID)
	if err != nil {
		return nil, err
	}
	if m.CanEdit(userID) || containsString(m.ReadableUserIDs, userID) {
		return m, nil
	}
	if s.isGroupMember(ctx, m.GroupID, userID) {
		return m, nil
	}
	return nil, fmt.Errorf("%w: no access to this memo", model.ErrForbidden)
}

// isGroupMember checks the caller against the tracked membership of the
// memo's group. Memos carry the LINE group ID the bot saw at creation;
// the internal ID is accepted as a fallback.
func (s *MemoService) isGroupMember(ctx context.Context, groupID, userID string) bool {
	if groupID == "" {
		return false
	}
	g, err := s.store.Groups().GetByLineGroupID(ctx, groupID)
	if errors.Is(err, model.ErrNotFound) {
		g, err = s.store.Groups().Get(ctx, groupID)
	}
	if err != nil {
		return false
	}
	return g.Member(userID) != nil
}

// ListShared returns a group's memos, newest first.
func (s *MemoService) ListShared(ctx context.Context, groupID string, limit int) ([]*model.SharedMemo, error) {
	if groupID == "" {
		return nil, fmt.Errorf("%w: groupId is required", model.ErrValidation)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.SharedMemos().ListByGroup(ctx, groupID, limit)
}

// SharedMemoUpdate carries editable shared-memo fields plus the version
// the editor last saw. Nil means keep.
type SharedMemoUpdate struct {
	Title   *string
	Content *string
	Version int64
}

// UpdateShared edits a group memo. Editors only; the write is a
// compare-and-swap on Version, so a concurrent edit surfaces as
// model.ErrConflict and the client must re-read.
func (s *MemoService) UpdateShared(ctx context.Context, memoID, userID string, upd SharedMemoUpdate) (*model.SharedMemo, error) {
	m, err := s.store.SharedMemos().Get(ctx, memoID)
	if err != nil {
		return nil, err
	}
	if !m.CanEdit(userID) {
		return nil, fmt.Errorf("%w: not an editor of this memo", model.ErrForbidden)
	}

	if upd.Title != nil {
		if *upd.Title == "" {
			return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
		}
		m.Title = *upd.Title
	}
	if upd.Content != nil {
		m.Content = *upd.Content
	}
	m.Version = upd.Version
	m.LastEditedBy = &userID
	m.UpdatedAt = s.now().UTC()
	for i := range m.Editors {
		if m.Editors[i].UserID == userID {
			t := m.UpdatedAt
			m.Editors[i].LastEditedAt = &t
		}
	}
	return s.store.SharedMemos().Update(ctx, m)
}

// DeleteShared removes a group memo. Creator only.
func (s *MemoService) DeleteShared(ctx context.Context, memoID, userID string) error {
	m, err := s.store.SharedMemos().Get(ctx, memoID)
	if err != nil {
		return err
	}
	if m.CreatedBy != userID {
		return fmt.Errorf("%w: only the creator can delete", model.ErrForbidden)
	}
	return s.store.SharedMemos().Delete(ctx, memoID)
}

// CreatePage adds a node to the caller's memo-page tree.
func (s *MemoService) CreatePage(ctx context.Context, userID, title string, parentPageID *string, order int) (*model.MemoPage, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	if parentPageID != nil {
		parent, err := s.store.MemoPages().Get(ctx, *parentPageID)
		if err != nil {
			return nil, err
		}
		if parent.UserID != userID {
			return nil, fmt.Errorf("%w: parent page belongs to another user", model.ErrForbidden)
		}
	}
	now := s.now().UTC()
	page := &model.MemoPage{
		PageID:       uuid.NewString(),
		UserID:       userID,
		Title:        title,
		ParentPageID: parentPageID,
		Order:        order,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return s.store.MemoPages().Create(ctx, page)
}

// ListPages returns the caller's memo pages.
func (s *MemoService) ListPages(ctx context.Context, userID string) ([]*model.MemoPage, error) {
	return s.store.MemoPages().ListByUser(ctx, userID)
}

// MemoPageUpdate carries editable page fields. Nil means keep.
type MemoPageUpdate struct {
	Title        *string
	ParentPageID *string
	Order        *int
}

// UpdatePage edits the caller's page. Owner only.
func (s *MemoService) UpdatePage(ctx context.Context, pageID, userID string, upd MemoPageUpdate) (*model.MemoPage, error) {
	page, err := s.store.MemoPages().Get(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if page.UserID != userID {
		return nil, fmt.Errorf("%w: not the owner", model.ErrForbidden)
	}

	if upd.Title != nil {
		if *upd.Title == "" {
			return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
		}
		page.Title = *upd.Title
	}
	if upd.ParentPageID != nil {
		if *upd.ParentPageID == "" {
			page.ParentPageID = nil
		} else {
			if *upd.ParentPageID == pageID {
				return nil, fmt.Errorf("%w: page cannot be its own parent", model.ErrValidation)
			}
			page.ParentPageID = upd.ParentPageID
		}
	}
	if upd.Order != nil {
		page.Order = *upd.Order
	}
	page.UpdatedAt = s.now().UTC()
	return s.store.MemoPages().Update(ctx, page)
}

// DeletePage removes the caller's page. Owner only. Memos filed under
// the page keep their ParentPageID and become unfiled on the client.
func (s *MemoService) DeletePage(ctx context.Context, pageID, userID string) error {
	page, err := s.store.MemoPages().Get(ctx, pageID)
	if err != nil {
		return err
	}
	if page.UserID != userID {
		return fmt.Errorf("%w: not the owner", model.ErrForbidden)
	}
	return s.store.MemoPages().Delete(ctx, pageID)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
