// Package ai wraps the Gemini API for the text-understanding features:
// memo extraction, summaries, schedule and bill-split analysis, and
// conversational help.
package ai

import "context"

// MemoExtraction is the structured result of reading a memo message.
type MemoExtraction struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// CandidateDate is one proposed slot from a scheduling message.
type CandidateDate struct {
	Date      string `json:"date"`                // YYYY-MM-DD
	StartTime string `json:"startTime,omitempty"` // HH:mm
	EndTime   string `json:"endTime,omitempty"`
}

// ScheduleAnalysis is the structured result of reading a scheduling message.
type ScheduleAnalysis struct {
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	CandidateDates []CandidateDate `json:"candidateDates"`
}

// WarikanItem is one line item in a bill-split message.
type WarikanItem struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// WarikanAnalysis is the structured result of reading a bill-split message.
type WarikanAnalysis struct {
	Name        string        `json:"name"`
	TotalAmount int64         `json:"totalAmount,omitempty"`
	MemberCount int           `json:"memberCount,omitempty"`
	Description string        `json:"description,omitempty"`
	Items       []WarikanItem `json:"items"`
}

// Assistant is the AI surface the domain services depend on.
type Assistant interface {
	// ExtractMemoData never fails: on model errors it falls back to a
	// heuristic extraction (first line as title, hashtags as tags).
	ExtractMemoData(ctx context.Context, messageText string) MemoExtraction
	GenerateSummary(ctx context.Context, content string) (string, error)
	AnalyzeScheduleMessage(ctx context.Context, messageText string) (*ScheduleAnalysis, error)
	AnalyzeWarikanMessage(ctx context.Context, messageText string) (*WarikanAnalysis, error)
	// GenerateHelpResponse never fails: on model errors it returns the
	// static usage text.
	GenerateHelpResponse(ctx context.Context, query string) string
}
