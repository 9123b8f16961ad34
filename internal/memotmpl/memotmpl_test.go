package memotmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himawari-tools/line-secretary/internal/model"
)

func TestDetectPersonal(t *testing.T) {
	tests := []struct {
		name string
		text string
		tag  model.TemplateTag
	}{
		{"meeting", "明日の会議について\n・議題1\n・議題2", model.TemplateMeeting},
		{"shopping", "買い物リスト\n- 牛乳\n- 卵", model.TemplateShopping},
		{"travel", "京都旅行の計画\n予算: 50,000円", model.TemplateTravel},
		{"recipe", "カレーのレシピ\n材料\n・玉ねぎ\n・じゃがいも", model.TemplateRecipe},
		{"health", "健康記録 今日は調子がいい", model.TemplateHealth},
		{"book", "読書メモ 「Go言語の本」", model.TemplateBook},
		{"idea", "新しいアイデア\n・通知の改善", model.TemplateIdea},
		{"diary", "日記 2025/06/01", model.TemplateDiary},
		{"project", "プロジェクト進捗\n- 設計完了", model.TemplateProject},
		{"study", "勉強メモ 統計学", model.TemplateStudy},
		{"english keyword", "meeting notes for tomorrow", model.TemplateMeeting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, ok := DetectPersonal(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.tag, tmpl.Tag)
			assert.NoError(t, tmpl.Validate())
		})
	}
}

func TestDetectPersonalNoMatch(t *testing.T) {
	tmpl, ok := DetectPersonal("特に分類できないただのメモ")
	assert.False(t, ok)
	assert.Nil(t, tmpl)
}

// A text matching several rules always classifies under the rule listed
// first; rule order is fixed, so the result is deterministic.
func TestFirstMatchWins(t *testing.T) {
	text := "プロジェクトの会議\n- 進捗確認"
	for i := 0; i < 50; i++ {
		tmpl, ok := DetectPersonal(text)
		require.True(t, ok)
		assert.Equal(t, model.TemplateMeeting, tmpl.Tag)
	}
}

func TestDetectShared(t *testing.T) {
	tmpl, ok := DetectShared("週末のお出かけ計画\n参加者\n・田中\n・佐藤\n予算: 3000")
	require.True(t, ok)
	assert.Equal(t, model.TemplateOuting, tmpl.Tag)
	require.NotNil(t, tmpl.Outing)
	assert.Equal(t, []string{"田中", "佐藤"}, tmpl.Outing.Participants)
	require.NotNil(t, tmpl.Outing.Budget)
	assert.EqualValues(t, 3000, *tmpl.Outing.Budget)
}

func TestExtractListItems(t *testing.T) {
	items := extractListItems("リスト\n- 一つ目\n・二つ目\n1. 三つ目\n本文の行")
	assert.Equal(t, []string{"一つ目", "二つ目", "三つ目"}, items)
}

func TestExtractBudget(t *testing.T) {
	b := extractBudget("旅行メモ\n予算: ¥12,000\nその他")
	require.NotNil(t, b)
	assert.EqualValues(t, 12000, *b)

	assert.Nil(t, extractBudget("予算は未定"))
}

func TestExtractDate(t *testing.T) {
	d := extractDate("日程 2025/06/15 に決定")
	require.NotNil(t, d)
	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, 6, int(d.Month()))
	assert.Equal(t, 15, d.Day())
}
