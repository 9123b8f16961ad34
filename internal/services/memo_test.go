package services

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himawari-tools/line-secretary/internal/model"
)

func TestMemoCreatePersonal(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	userID := newTestUser(t, st, "U-memo-1")
	svc := NewMemoService(st, &fakeAssistant{summary: "要約です"}, zerolog.Nop())

	reply := svc.HandleCommand(ctx, userID, "", []string{"作成"}, "@メモ 作成 買い物リスト\n牛乳\n卵 #買い物")
	assert.Contains(t, reply, "個人メモ「買い物リスト」を作成しました！")

	svc.Flush()

	memos, err := st.PersonalMemos().Search(ctx, userID, "買い物", 10)
	require.NoError(t, err)
	require.Len(t, memos, 1)
	assert.Equal(t, []string{"買い物"}, memos[0].Tags)
	require.NotNil(t, memos[0].AISummary)
	assert.Equal(t, "要約です", *memos[0].AISummary)
	// Shopping keywords classify the memo under the shopping template.
	require.NotNil(t, memos[0].Template)
	assert.Equal(t, model.TemplateShopping, memos[0].Template.Tag)
}

func TestMemoCreateShared(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	userID := newTestUser(t, st, "U-memo-2")
	svc := NewMemoService(st, &fakeAssistant{}, zerolog.Nop())

	reply := svc.HandleCommand(ctx, userID, "G-1", []string{"作成"}, "@メモ 作成 会議メモ\n・議題1")
	assert.Contains(t, reply, "共有メモ「会議メモ」を作成しました！")

	memos, err := st.SharedMemos().ListByGroup(ctx, "G-1", 10)
	require.NoError(t, err)
	require.Len(t, memos, 1)
	assert.Equal(t, model.SharedMeeting, memos[0].Type)
	assert.Equal(t, userID, memos[0].CreatedBy)
	assert.True(t, memos[0].CanEdit(userID))
	assert.False(t, memos[0].CanEdit("stranger"))
}

func TestMemoListAndSearch(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	userID := newTestUser(t, st, "U-memo-3")
	svc := NewMemoService(st, &fakeAssistant{}, zerolog.Nop())

	assert.Equal(t, "まだ個人メモがありません。", svc.HandleCommand(ctx, userID, "", []string{"一覧"}, ""))

	_, err := svc.CreatePersonal(ctx, userID, "出張準備", "切符を買う", []string{"仕事"}, nil)
	require.NoError(t, err)
	svc.Flush()

	list := svc.HandleCommand(ctx, userID, "", []string{"一覧"}, "")
	assert.Contains(t, list, "📝 最新の個人メモ（5件）:")
	assert.Contains(t, list, "出張準備")
	assert.Contains(t, list, "タグ: 仕事")

	found := svc.HandleCommand(ctx, userID, "", []string{"検索", "出張"}, "")
	assert.Contains(t, found, "🔍 「出張」の検索結果（個人メモ）:")
	assert.Contains(t, found, "出張準備")

	missing := svc.HandleCommand(ctx, userID, "", []string{"検索", "釣り"}, "")
	assert.Equal(t, "「釣り」に関連する個人メモが見つかりませんでした。", missing)

	assert.Contains(t, svc.HandleCommand(ctx, userID, "", []string{"検索"}, ""), "検索キーワードを指定してください。")
}

func TestMemoNaturalLanguage(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	userID := newTestUser(t, st, "U-memo-4")
	svc := NewMemoService(st, &fakeAssistant{}, zerolog.Nop())

	// Creation intent without an explicit subcommand.
	reply := svc.HandleCommand(ctx, userID, "", []string{"今日の出来事を"}, "今日の出来事をメモに残して")
	assert.Contains(t, reply, "を作成しました！")
	svc.Flush()

	// Unrecognized text falls back to the usage message.
	assert.Equal(t, memoUsageText, svc.HandleCommand(ctx, userID, "", []string{"ほげ"}, "ほげ"))

	// Plain chatter is not memo intent at all.
	assert.Equal(t, "", svc.HandleNaturalLanguage(ctx, userID, "", "おはよう"))
}

func TestMemoCreateFromOCR(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	userID := newTestUser(t, st, "U-memo-5")
	svc := NewMemoService(st, &fakeAssistant{}, zerolog.Nop())

	memo, err := svc.CreateFromOCR(ctx, userID, "駅前カフェ 18時集合", "googleVision")
	require.NoError(t, err)
	svc.Flush()

	assert.Contains(t, memo.Tags, OCRProviderTag)
	require.NotNil(t, memo.Source)
	assert.Equal(t, "ocr", memo.Source.Kind)
	require.NotNil(t, memo.Source.OCRProvider)
	assert.Equal(t, "googleVision", *memo.Source.OCRProvider)

	_, err = svc.CreateFromOCR(ctx, userID, "   ", "local")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestMemoCreateFromSNS(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	userID := newTestUser(t, st, "U-memo-6")
	svc := NewMemoService(st, &fakeAssistant{}, zerolog.Nop())

	memo, err := svc.CreateFromSNS(ctx, userID, SNSSource{
		URL:      "https://www.instagram.com/p/AbC123/",
		Platform: "instagram",
		Caption:  "新宿の隠れ家カフェ",
		Hashtags: []string{"カフェ", "新宿"},
	})
	require.NoError(t, err)
	svc.Flush()

	assert.Contains(t, memo.Tags, "カフェ")
	require.NotNil(t, memo.Source)
	assert.Equal(t, "sns", memo.Source.Kind)
	require.NotNil(t, memo.Source.Platform)
	assert.Equal(t, "instagram", *memo.Source.Platform)

	_, err = svc.CreateFromSNS(ctx, userID, SNSSource{URL: "https://example.com"})
	assert.ErrorIs(t, err, model.ErrValidation)
}
