package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/himawari-tools/line-secretary/internal/metrics"
)

// HelpFallback is returned when help generation fails.
const HelpFallback = "ヘルプの生成に失敗しました。基本的な使い方は以下の通りです：\n\n@割り勘 - 割り勘を作成\n@予定 - 日程調整を作成\n@メモ - メモを作成"

// Gemini implements Assistant against Google's Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

// NewGemini creates a Gemini-backed assistant.
func NewGemini(ctx context.Context, apiKey, model string, log zerolog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Gemini{client: client, model: model, log: log}, nil
}

func (g *Gemini) generate(ctx context.Context, operation, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		metrics.RecordAIRequest(operation, "error")
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	metrics.RecordAIRequest(operation, "success")
	return resp.Text(), nil
}

func (g *Gemini) ExtractMemoData(ctx context.Context, messageText string) MemoExtraction {
	prompt := fmt.Sprintf(`以下のメッセージからメモの情報を抽出してください。

メッセージ: "%s"

以下のJSON形式で回答してください：
{
  "title": "適切なタイトル（30文字以内）",
  "content": "メモの本文",
  "tags": ["関連するタグ1", "関連するタグ2"]
}

注意点：
- タイトルは内容を簡潔に表現する
- タグは内容に関連する重要なキーワード（最大5個）
- JSON以外の文字は含めない
`, messageText)

	text, err := g.generate(ctx, "memo_extraction", prompt)
	if err != nil {
		g.log.Warn().Err(err).Msg("memo extraction failed, using fallback")
		return FallbackMemoExtraction(messageText)
	}
	var out MemoExtraction
	if err := json.Unmarshal([]byte(StripJSONFences(text)), &out); err != nil {
		g.log.Warn().Err(err).Msg("memo extraction returned invalid JSON, using fallback")
		return FallbackMemoExtraction(messageText)
	}
	if out.Title == "" {
		out.Title = "untitled"
	}
	if out.Content == "" {
		out.Content = messageText
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return out
}

func (g *Gemini) GenerateSummary(ctx context.Context, content string) (string, error) {
	prompt := fmt.Sprintf(`以下のメモ内容を日本語で簡潔に要約してください（100文字以内）：

%s

要約は重要なポイントを含め、読みやすい文章にしてください。
`, content)
	return g.generate(ctx, "summary", prompt)
}

func (g *Gemini) AnalyzeScheduleMessage(ctx context.Context, messageText string) (*ScheduleAnalysis, error) {
	prompt := fmt.Sprintf(`以下のメッセージから日程調整の情報を抽出してください：

メッセージ: "%s"

以下のJSON形式で回答してください：
{
  "title": "イベントタイトル",
  "description": "説明（あれば）",
  "candidateDates": [
    {
      "date": "YYYY-MM-DD",
      "startTime": "HH:mm",
      "endTime": "HH:mm"
    }
  ]
}

注意点：
- 日付は YYYY-MM-DD 形式
- 時間は HH:mm 形式（24時間表記）
- 候補日が複数ある場合は配列で返す
- JSON以外の文字は含めない
`, messageText)

	text, err := g.generate(ctx, "schedule_analysis", prompt)
	if err != nil {
		return nil, err
	}
	var out ScheduleAnalysis
	if err := json.Unmarshal([]byte(StripJSONFences(text)), &out); err != nil {
		return nil, fmt.Errorf("schedule analysis returned invalid JSON: %w", err)
	}
	return &out, nil
}

func (g *Gemini) AnalyzeWarikanMessage(ctx context.Context, messageText string) (*WarikanAnalysis, error) {
	prompt := fmt.Sprintf(`以下のメッセージから割り勘の情報を抽出してください：

メッセージ: "%s"

以下のJSON形式で回答してください：
{
  "name": "割り勘プロジェクト名",
  "totalAmount": 合計金額（数値）,
  "memberCount": 人数（数値）,
  "description": "説明（あれば）",
  "items": [
    {
      "name": "品目名",
      "amount": 金額（数値）
    }
  ]
}

注意点：
- 金額は数値のみ（円記号や,は不要）
- 品目が複数ある場合は配列で返す
- JSON以外の文字は含めない
`, messageText)

	text, err := g.generate(ctx, "warikan_analysis", prompt)
	if err != nil {
		return nil, err
	}
	var out WarikanAnalysis
	if err := json.Unmarshal([]byte(StripJSONFences(text)), &out); err != nil {
		return nil, fmt.Errorf("warikan analysis returned invalid JSON: %w", err)
	}
	return &out, nil
}

func (g *Gemini) GenerateHelpResponse(ctx context.Context, query string) string {
	prompt := fmt.Sprintf(`あなたはLINE秘書TASKというアプリのアシスタントです。
以下の機能について、ユーザーの質問に日本語で親切に回答してください：

利用可能な機能：
- 割り勘管理（@割り勘）
- 日程調整（@予定、@スケジュール）
- メモ機能（@メモ）

ユーザーの質問: "%s"

回答は300文字以内で、具体的な使用例も含めて説明してください。
`, query)

	text, err := g.generate(ctx, "help", prompt)
	if err != nil {
		g.log.Warn().Err(err).Msg("help generation failed, using static fallback")
		return HelpFallback
	}
	return text
}

var (
	jsonFenceRe = regexp.MustCompile("```json\n?|\n?```")
	hashtagRe   = regexp.MustCompile(`#[^\s#]+`)
	memoPrefix  = regexp.MustCompile(`@メモ\s*(作成)?`)
)

// StripJSONFences removes markdown code fences the model tends to wrap
// JSON answers in.
func StripJSONFences(text string) string {
	return strings.TrimSpace(jsonFenceRe.ReplaceAllString(text, ""))
}

// FallbackMemoExtraction is the heuristic used when the model is
// unavailable: first line as title (30 chars max), hashtags as tags.
func FallbackMemoExtraction(messageText string) MemoExtraction {
	stripped := strings.TrimSpace(memoPrefix.ReplaceAllString(messageText, ""))
	lines := strings.Split(stripped, "\n")
	title := "untitled"
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		title = strings.TrimSpace(lines[0])
		if r := []rune(title); len(r) > 30 {
			title = string(r[:30])
		}
	}
	return MemoExtraction{
		Title:   title,
		Content: messageText,
		Tags:    ExtractHashtags(messageText),
	}
}

// ExtractHashtags returns the #-prefixed tokens in text, without the marker.
func ExtractHashtags(text string) []string {
	matches := hashtagRe.FindAllString(text, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1:])
	}
	return tags
}
