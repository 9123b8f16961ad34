package model

import "time"

// User is an account linked to a LINE user.
type User struct {
	UserID      string        `json:"userId"`
	LineUserID  string        `json:"lineUserId"`
	DisplayName *string       `json:"displayName,omitempty"`
	PictureURL  *string       `json:"pictureUrl,omitempty"`
	Plan        Plan          `json:"plan"`
	PlanExpires *time.Time    `json:"planExpiresAt,omitempty"`
	Settings    UserSettings  `json:"settings"`
	Usage       UsageCounters `json:"usage"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// UserSettings holds per-user preferences.
type UserSettings struct {
	Language      string               `json:"language"` // "ja" or "en"
	Timezone      string               `json:"timezone"`
	Notifications NotificationSettings `json:"notifications"`
}

// NotificationSettings toggles the worker's push categories.
type NotificationSettings struct {
	Reminder bool `json:"reminder"`
	Daily    bool `json:"daily"`
	Weekly   bool `json:"weekly"`
}

// UsageCounters tracks API-call consumption against the plan limits.
type UsageCounters struct {
	APICalls        int        `json:"apiCalls"`
	MonthlyAPICalls int        `json:"monthlyApiCalls"`
	LastAPICall     *time.Time `json:"lastApiCall,omitempty"`
}

// WarikanStatus is the bill-split lifecycle state.
type WarikanStatus string

const (
	WarikanActive    WarikanStatus = "active"
	WarikanSettled   WarikanStatus = "settled"
	WarikanCancelled WarikanStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s WarikanStatus) Terminal() bool {
	return s == WarikanSettled || s == WarikanCancelled
}

// WarikanMember is one participant's share of a bill split.
type WarikanMember struct {
	UserID      string     `json:"userId"`
	DisplayName string     `json:"displayName"`
	Amount      int64      `json:"amount"`
	IsPaid      bool       `json:"isPaid"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
}

// Warikan is a bill split: a total divided across members, each
// independently marked paid. Amounts are in the currency's minor unit
// (whole yen for JPY).
type Warikan struct {
	WarikanID   string          `json:"warikanId"`
	CreatedBy   string          `json:"createdBy"`
	GroupID     *string         `json:"groupId,omitempty"`
	Title       string          `json:"title"`
	TotalAmount int64           `json:"totalAmount"`
	Currency    string          `json:"currency"`
	Members     []WarikanMember `json:"members"`
	Status      WarikanStatus   `json:"status"`
	Description *string         `json:"description,omitempty"`
	ReceiptURL  *string         `json:"receiptUrl,omitempty"`
	SettledAt   *time.Time      `json:"settledAt,omitempty"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// PaidCount returns how many members have paid.
func (w *Warikan) PaidCount() int {
	n := 0
	for _, m := range w.Members {
		if m.IsPaid {
			n++
		}
	}
	return n
}

// PaidTotal returns the sum of amounts already paid.
func (w *Warikan) PaidTotal() int64 {
	var sum int64
	for _, m := range w.Members {
		if m.IsPaid {
			sum += m.Amount
		}
	}
	return sum
}

// Member returns the member entry for userID, or nil.
func (w *Warikan) Member(userID string) *WarikanMember {
	for i := range w.Members {
		if w.Members[i].UserID == userID {
			return &w.Members[i]
		}
	}
	return nil
}

// ScheduleType distinguishes events, tasks and bare reminders.
type ScheduleType string

const (
	ScheduleEvent    ScheduleType = "event"
	ScheduleTask     ScheduleType = "task"
	ScheduleReminder ScheduleType = "reminder"
)

// ScheduleStatus is the schedule lifecycle state.
type ScheduleStatus string

const (
	SchedulePending   ScheduleStatus = "pending"
	ScheduleConfirmed ScheduleStatus = "confirmed"
	ScheduleCompleted ScheduleStatus = "completed"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s ScheduleStatus) Terminal() bool {
	return s == ScheduleCompleted || s == ScheduleCancelled
}

// Recurrence describes a repeating schedule.
type Recurrence struct {
	Frequency  string     `json:"frequency"` // daily, weekly, monthly, yearly
	Interval   int        `json:"interval"`
	EndDate    *time.Time `json:"endDate,omitempty"`
	DaysOfWeek []int      `json:"daysOfWeek,omitempty"` // 0=Sunday
	DayOfMonth *int       `json:"dayOfMonth,omitempty"`
}

// Reminder is a notification request relative to the start time.
type Reminder struct {
	Type          string `json:"type"` // notification, email
	MinutesBefore int    `json:"minutesBefore"`
}

// Participant is an invited user with an accept/decline status.
type Participant struct {
	UserID string `json:"userId"`
	Status string `json:"status"` // pending, accepted, declined
}

// Schedule is a calendar entry owned by a user.
type Schedule struct {
	ScheduleID     string         `json:"scheduleId"`
	UserID         string         `json:"userId"`
	GroupID        *string        `json:"groupId,omitempty"`
	Type           ScheduleType   `json:"type"`
	Title          string         `json:"title"`
	Description    *string        `json:"description,omitempty"`
	StartTime      time.Time      `json:"startTime"`
	EndTime        *time.Time     `json:"endTime,omitempty"`
	AllDay         bool           `json:"allDay"`
	Location       *string        `json:"location,omitempty"`
	Status         ScheduleStatus `json:"status"`
	Recurrence     *Recurrence    `json:"recurrence,omitempty"`
	Reminders      []Reminder     `json:"reminders,omitempty"`
	Participants   []Participant  `json:"participants,omitempty"`
	ReminderSentAt *time.Time     `json:"reminderSentAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// MemoSource records where an auto-created memo came from.
type MemoSource struct {
	Kind        string  `json:"kind"` // "ocr" or "sns"
	URL         *string `json:"url,omitempty"`
	Platform    *string `json:"platform,omitempty"`
	OCRProvider *string `json:"ocrProvider,omitempty"`
}

// PersonalMemo is a privately owned note.
type PersonalMemo struct {
	MemoID        string      `json:"memoId"`
	UserID        string      `json:"userId"`
	Title         string      `json:"title"`
	Content       string      `json:"content"`
	Tags          []string    `json:"tags"`
	IsArchived    bool        `json:"isArchived"`
	AISummary     *string     `json:"aiSummary,omitempty"`
	SuggestedTags []string    `json:"suggestedTags,omitempty"`
	ParentPageID  *string     `json:"parentPageId,omitempty"`
	Template      *Template   `json:"template,omitempty"`
	Source        *MemoSource `json:"source,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// SharedMemoType is the broad category of a shared memo.
type SharedMemoType string

const (
	SharedMeeting SharedMemoType = "meeting"
	SharedOuting  SharedMemoType = "outing"
	SharedCustom  SharedMemoType = "custom"
)

// SharedMemoEditor is a user allowed to edit a shared memo.
type SharedMemoEditor struct {
	UserID       string     `json:"userId"`
	DisplayName  string     `json:"displayName"`
	AddedAt      time.Time  `json:"addedAt"`
	LastEditedAt *time.Time `json:"lastEditedAt,omitempty"`
}

// SharedMemo is a note jointly editable by group members.
type SharedMemo struct {
	MemoID          string             `json:"memoId"`
	GroupID         string             `json:"groupId"`
	CreatedBy       string             `json:"createdBy"`
	Title           string             `json:"title"`
	Content         string             `json:"content"`
	Type            SharedMemoType     `json:"type"`
	Template        *Template          `json:"template,omitempty"`
	ReadableUserIDs []string           `json:"readableUserIds"`
	Editors         []SharedMemoEditor `json:"editors"`
	Status          string             `json:"status"` // active, archived
	LastEditedBy    *string            `json:"lastEditedBy,omitempty"`
	Version         int64              `json:"version"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// CanEdit reports whether userID is the creator or a listed editor.
func (m *SharedMemo) CanEdit(userID string) bool {
	if m.CreatedBy == userID {
		return true
	}
	for _, e := range m.Editors {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

// MemoPage is a node in the personal-memo page hierarchy.
type MemoPage struct {
	PageID       string    `json:"pageId"`
	UserID       string    `json:"userId"`
	Title        string    `json:"title"`
	ParentPageID *string   `json:"parentPageId,omitempty"`
	Order        int       `json:"order"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// GroupMember is a group participant with a role.
type GroupMember struct {
	UserID   string    `json:"userId"`
	Role     string    `json:"role"` // owner, admin, member
	JoinedAt time.Time `json:"joinedAt"`
}

// GroupSettings holds group-level defaults.
type GroupSettings struct {
	AllowGuestWarikan bool   `json:"allowGuestWarikan"`
	AutoReminder      bool   `json:"autoReminder"`
	DefaultCurrency   string `json:"defaultCurrency"`
}

// Group is a LINE group with roles and settings.
type Group struct {
	GroupID     string        `json:"groupId"`
	LineGroupID *string       `json:"lineGroupId,omitempty"`
	Name        string        `json:"name"`
	Type        string        `json:"type"` // family, friends, work, other
	Description *string       `json:"description,omitempty"`
	PictureURL  *string       `json:"pictureUrl,omitempty"`
	Members     []GroupMember `json:"members"`
	Settings    GroupSettings `json:"settings"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Member returns the membership entry for userID, or nil.
func (g *Group) Member(userID string) *GroupMember {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i]
		}
	}
	return nil
}
