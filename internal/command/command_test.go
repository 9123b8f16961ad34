package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		intent Intent
		args   []string
	}{
		{"warikan kanji", "@割り勘 ランチ 3000 4", IntentWarikan, []string{"ランチ", "3000", "4"}},
		{"warikan hiragana", "@わりかん 飲み会 8000 5", IntentWarikan, []string{"飲み会", "8000", "5"}},
		{"warikan short", "@割勘 タクシー 2400 3", IntentWarikan, []string{"タクシー", "2400", "3"}},
		{"schedule", "@予定 明日 15:00 会議", IntentSchedule, []string{"明日", "15:00", "会議"}},
		{"schedule katakana", "@スケジュール 一覧", IntentSchedule, []string{"一覧"}},
		{"memo ja", "@メモ 作成 買い物リスト", IntentMemo, []string{"作成", "買い物リスト"}},
		{"memo en", "@memo list", IntentMemo, []string{"list"}},
		{"help ja", "@ヘルプ", IntentHelp, []string{}},
		{"help en", "@help", IntentHelp, []string{}},
		{"no marker", "割り勘 ランチ 3000 4", IntentUnknown, []string{}},
		{"unknown word", "@天気 東京", IntentUnknown, []string{"東京"}},
		{"bare marker", "@", IntentUnknown, []string{}},
		{"whitespace only", "   ", IntentUnknown, []string{}},
		{"leading spaces", "  @help  ", IntentHelp, []string{}},
		{"case sensitive", "@HELP", IntentUnknown, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := Parse(tt.text)
			assert.Equal(t, tt.intent, cmd.Intent)
			assert.Equal(t, tt.args, cmd.Args)
			assert.Equal(t, tt.text, cmd.Raw)
		})
	}
}

func TestParseKeepsRawForUnknown(t *testing.T) {
	cmd := Parse("来週の予定を教えて")
	assert.Equal(t, IntentUnknown, cmd.Intent)
	assert.Equal(t, "来週の予定を教えて", cmd.Raw)
}
