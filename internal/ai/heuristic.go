package ai

import "context"

// Heuristic implements Assistant without a model, using the same
// degraded paths Gemini falls back to. It serves deployments with no
// API key configured.
type Heuristic struct{}

func (Heuristic) ExtractMemoData(_ context.Context, messageText string) MemoExtraction {
	return FallbackMemoExtraction(messageText)
}

func (Heuristic) GenerateSummary(context.Context, string) (string, error) {
	return "", nil
}

func (Heuristic) AnalyzeScheduleMessage(context.Context, string) (*ScheduleAnalysis, error) {
	return &ScheduleAnalysis{}, nil
}

func (Heuristic) AnalyzeWarikanMessage(context.Context, string) (*WarikanAnalysis, error) {
	return &WarikanAnalysis{}, nil
}

func (Heuristic) GenerateHelpResponse(context.Context, string) string {
	return HelpFallback
}
