package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripJSONFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare", `{"a":1}`, `{"a":1}`},
		{"fence no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}\n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripJSONFences(tt.in))
		})
	}
}

func TestExtractHashtags(t *testing.T) {
	tags := ExtractHashtags("買い物メモ #買い物 #スーパー\n牛乳 卵 #食材")
	assert.Equal(t, []string{"買い物", "スーパー", "食材"}, tags)

	assert.Empty(t, ExtractHashtags("タグなしのメモ"))
}

func TestFallbackMemoExtraction(t *testing.T) {
	got := FallbackMemoExtraction("@メモ 作成 買い物リスト\n牛乳\n卵 #買い物")
	assert.Equal(t, "買い物リスト", got.Title)
	assert.Contains(t, got.Content, "買い物リスト")
	assert.Equal(t, []string{"買い物"}, got.Tags)
}

func TestFallbackMemoExtractionLongTitle(t *testing.T) {
	long := "あいうえおかきくけこあいうえおかきくけこあいうえおかきくけこ超過分"
	got := FallbackMemoExtraction(long)
	assert.Equal(t, 30, len([]rune(got.Title)))
}

func TestFallbackMemoExtractionEmpty(t *testing.T) {
	got := FallbackMemoExtraction("@メモ 作成")
	assert.Equal(t, "untitled", got.Title)
}
