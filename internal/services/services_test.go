package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/himawari-tools/line-secretary/internal/ai"
	"github.com/himawari-tools/line-secretary/internal/store"
	"github.com/himawari-tools/line-secretary/internal/store/sqlite"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlite.NewWithDB(db)
}

// fakeAssistant answers with the heuristic fallback instead of calling
// a model, plus a canned summary.
type fakeAssistant struct {
	summary    string
	summaryErr error
}

func (f *fakeAssistant) ExtractMemoData(_ context.Context, messageText string) ai.MemoExtraction {
	return ai.FallbackMemoExtraction(messageText)
}

func (f *fakeAssistant) GenerateSummary(context.Context, string) (string, error) {
	return f.summary, f.summaryErr
}

func (f *fakeAssistant) AnalyzeScheduleMessage(context.Context, string) (*ai.ScheduleAnalysis, error) {
	return &ai.ScheduleAnalysis{}, nil
}

func (f *fakeAssistant) AnalyzeWarikanMessage(context.Context, string) (*ai.WarikanAnalysis, error) {
	return &ai.WarikanAnalysis{}, nil
}

func (f *fakeAssistant) GenerateHelpResponse(context.Context, string) string {
	return ai.HelpFallback
}

func newTestUser(t *testing.T, s store.Store, lineUserID string) string {
	t.Helper()
	us := NewUserService(s, zerolog.Nop())
	u, err := us.EnsureUser(context.Background(), lineUserID, nil)
	require.NoError(t, err)
	return u.UserID
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
