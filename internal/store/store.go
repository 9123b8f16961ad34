package store

import (
	"context"
	"time"

	"github.com/himawari-tools/line-secretary/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Users() Users
	Groups() Groups
	Warikans() Warikans
	Schedules() Schedules
	PersonalMemos() PersonalMemos
	SharedMemos() SharedMemos
	MemoPages() MemoPages
}

// PersonalMemoFilter narrows PersonalMemos.List.
type PersonalMemoFilter struct {
	IncludeArchived bool
	Tag             string
	Limit           int
	Cursor          string // memoId of the last item of the previous page
}

type Users interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
	GetByLineUserID(ctx context.Context, lineUserID string) (*model.User, error)
	Update(ctx context.Context, u *model.User) (*model.User, error)
	// IncrementAPIUsage atomically bumps the usage counters, rolling the
	// daily counter over when the last call was on an earlier day and the
	// monthly counter when it was in an earlier month. Returns
	// model.ErrQuotaExceeded when the plan limits are already reached.
	IncrementAPIUsage(ctx context.Context, userID string, limits model.PlanLimits, now time.Time) (*model.UsageCounters, error)
	// ResetMonthlyUsage zeroes counters for up to limit users and returns
	// how many were reset.
	ResetMonthlyUsage(ctx context.Context, limit int) (int, error)
	List(ctx context.Context, limit int) ([]*model.User, error)
	Delete(ctx context.Context, userID string) error
}

type Groups interface {
	Create(ctx context.Context, g *model.Group) (*model.Group, error)
	Get(ctx context.Context, groupID string) (*model.Group, error)
	GetByLineGroupID(ctx context.Context, lineGroupID string) (*model.Group, error)
	Update(ctx context.Context, g *model.Group) (*model.Group, error)
	ListByMember(ctx context.Context, userID string, limit int) ([]*model.Group, error)
	Delete(ctx context.Context, groupID string) error
}

type Warikans interface {
	Create(ctx context.Context, w *model.Warikan) (*model.Warikan, error)
	Get(ctx context.Context, warikanID string) (*model.Warikan, error)
	ListByCreator(ctx context.Context, userID string, status model.WarikanStatus, limit int) ([]*model.Warikan, error)
	ListByGroup(ctx context.Context, groupID string, limit int) ([]*model.Warikan, error)
	// MarkMemberPaid sets the member's paid flag under a compare-and-swap
	// on version. Returns model.ErrConflict when the stored version has
	// moved on (callers retry with a fresh read), model.ErrValidation when
	// the member is already paid, and the updated split on success. When
	// the last unpaid member is marked the split transitions to settled.
	MarkMemberPaid(ctx context.Context, warikanID, userID string, version int64, now time.Time) (*model.Warikan, error)
	// UpdateStatus transitions the split. Transitions out of a terminal
	// status return model.ErrConflict.
	UpdateStatus(ctx context.Context, warikanID string, status model.WarikanStatus, now time.Time) (*model.Warikan, error)
	// DeleteSettledBefore removes settled splits older than cutoff and
	// returns how many were deleted.
	DeleteSettledBefore(ctx context.Context, cutoff time.Time) (int, error)
	Delete(ctx context.Context, warikanID string) error
}

type Schedules interface {
	Create(ctx context.Context, s *model.Schedule) (*model.Schedule, error)
	Get(ctx context.Context, scheduleID string) (*model.Schedule, error)
	Update(ctx context.Context, s *model.Schedule) (*model.Schedule, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Schedule, error)
	ListInRange(ctx context.Context, userID string, from, to time.Time) ([]*model.Schedule, error)
	// ListDueReminders returns non-terminal, non-all-day schedules whose
	// start time falls in [from, to) and whose reminder was not yet sent.
	ListDueReminders(ctx context.Context, from, to time.Time) ([]*model.Schedule, error)
	MarkReminderSent(ctx context.Context, scheduleID string, at time.Time) error
	// UpdateStatus transitions the schedule. Transitions out of a
	// terminal status return model.ErrConflict.
	UpdateStatus(ctx context.Context, scheduleID string, status model.ScheduleStatus, now time.Time) (*model.Schedule, error)
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int, error)
	Delete(ctx context.Context, scheduleID string) error
}

type PersonalMemos interface {
	Create(ctx context.Context, m *model.PersonalMemo) (*model.PersonalMemo, error)
	Get(ctx context.Context, memoID string) (*model.PersonalMemo, error)
	Update(ctx context.Context, m *model.PersonalMemo) (*model.PersonalMemo, error)
	List(ctx context.Context, userID string, f PersonalMemoFilter) ([]*model.PersonalMemo, error)
	Search(ctx context.Context, userID, keyword string, limit int) ([]*model.PersonalMemo, error)
	Delete(ctx context.Context, memoID string) error
}

type SharedMemos interface {
	Create(ctx context.Context, m *model.SharedMemo) (*model.SharedMemo, error)
	Get(ctx context.Context, memoID string) (*model.SharedMemo, error)
	// Update writes title/content/template/editors under a
	// compare-and-swap on m.Version; model.ErrConflict on mismatch.
	Update(ctx context.Context, m *model.SharedMemo) (*model.SharedMemo, error)
	ListByGroup(ctx context.Context, groupID string, limit int) ([]*model.SharedMemo, error)
	Search(ctx context.Context, groupID, keyword string, limit int) ([]*model.SharedMemo, error)
	Delete(ctx context.Context, memoID string) error
}

type MemoPages interface {
	Create(ctx context.Context, p *model.MemoPage) (*model.MemoPage, error)
	Get(ctx context.Context, pageID string) (*model.MemoPage, error)
	Update(ctx context.Context, p *model.MemoPage) (*model.MemoPage, error)
	ListByUser(ctx context.Context, userID string) ([]*model.MemoPage, error)
	Delete(ctx context.Context, pageID string) error
}
