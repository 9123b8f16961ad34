// Package memotmpl classifies free-form memo text into a template with
// a structured payload. Classification is keyword-based: an ordered
// rule list is scanned and the first matching rule wins. Rule order is
// a fixed implementation detail; overlapping keyword sets resolve to
// whichever rule appears first, with no scoring or re-ranking.
package memotmpl

import (
	"strings"

	"github.com/himawari-tools/line-secretary/internal/model"
)

type rule struct {
	match func(lower string) bool
	build func(text string) *model.Template
}

func keywords(words ...string) func(string) bool {
	return func(lower string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
}

// Personal rule order. Evaluated top to bottom, first match wins.
var personalRules = []rule{
	{keywords("会議", "ミーティング", "打ち合わせ", "mtg", "meeting"), buildMeeting},
	{keywords("買い物", "ショッピング", "購入リスト", "shopping"), buildShopping},
	{keywords("旅行", "トラベル", "観光", "travel", "trip"), buildTravel},
	{keywords("レシピ", "作り方", "recipe", "料理"), buildRecipe},
	{keywords("健康", "体調", "運動記録", "診察", "health"), buildHealth},
	{keywords("読書", "書籍", "book", "読んだ本"), buildBook},
	{keywords("アイデア", "ひらめき", "思いつき", "idea"), buildIdea},
	{keywords("日記", "diary", "今日の出来事"), buildDiary},
	{keywords("プロジェクト", "project", "進捗"), buildProject},
	{keywords("勉強", "学習", "講義", "study"), buildStudy},
}

// Shared rule order. Group memos only distinguish meetings and outings.
var sharedRules = []rule{
	{keywords("会議", "ミーティング", "打ち合わせ", "mtg", "meeting"), buildMeeting},
	{keywords("お出かけ", "外出", "遊び", "旅行", "outing", "おでかけ"), buildOuting},
}

// DetectPersonal classifies personal memo text. The boolean is false
// when no rule matches; the memo stays untemplated.
func DetectPersonal(text string) (*model.Template, bool) {
	return detect(personalRules, text)
}

// DetectShared classifies shared memo text.
func DetectShared(text string) (*model.Template, bool) {
	return detect(sharedRules, text)
}

func detect(rules []rule, text string) (*model.Template, bool) {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if r.match(lower) {
			return r.build(text), true
		}
	}
	return nil, false
}

func buildMeeting(text string) *model.Template {
	p := &model.MeetingPayload{
		Attendees: extractSection(text, "参加者", "attendees"),
		Agenda:    extractSection(text, "議題", "agenda"),
		Decisions: extractSection(text, "決定事項", "decisions"),
		Todos:     extractSection(text, "todo", "TODO"),
	}
	if len(p.Agenda) == 0 {
		p.Agenda = extractListItems(text)
	}
	if d := extractDate(text); d != nil {
		p.Date = d
	}
	return &model.Template{Tag: model.TemplateMeeting, Meeting: p}
}

func buildShopping(text string) *model.Template {
	p := &model.ShoppingPayload{
		Items:  extractListItems(text),
		Budget: extractBudget(text),
	}
	return &model.Template{Tag: model.TemplateShopping, Shopping: p}
}

func buildTravel(text string) *model.Template {
	p := &model.TravelPayload{
		Budget:    extractBudget(text),
		Items:     extractSection(text, "持ち物", "items"),
		Itinerary: extractListItems(text),
	}
	if d := extractDate(text); d != nil {
		p.StartDate = d
	}
	return &model.Template{Tag: model.TemplateTravel, Travel: p}
}

func buildRecipe(text string) *model.Template {
	p := &model.RecipePayload{
		Ingredients: extractSection(text, "材料", "ingredients"),
		Steps:       extractSection(text, "手順", "作り方"),
	}
	if len(p.Ingredients) == 0 {
		p.Ingredients = extractListItems(text)
	}
	return &model.Template{Tag: model.TemplateRecipe, Recipe: p}
}

func buildHealth(text string) *model.Template {
	p := &model.HealthPayload{
		Exercise: extractSection(text, "運動", "exercise"),
		Meals:    extractSection(text, "食事", "meals"),
	}
	return &model.Template{Tag: model.TemplateHealth, Health: p}
}

func buildBook(text string) *model.Template {
	p := &model.BookPayload{
		Quotes: extractSection(text, "引用", "quotes"),
	}
	return &model.Template{Tag: model.TemplateBook, Book: p}
}

func buildIdea(text string) *model.Template {
	p := &model.IdeaPayload{
		Details: extractListItems(text),
	}
	return &model.Template{Tag: model.TemplateIdea, Idea: p}
}

func buildDiary(text string) *model.Template {
	p := &model.DiaryPayload{
		Events: extractListItems(text),
	}
	if d := extractDate(text); d != nil {
		p.Date = d
	}
	return &model.Template{Tag: model.TemplateDiary, Diary: p}
}

func buildProject(text string) *model.Template {
	p := &model.ProjectPayload{
		Tasks: extractListItems(text),
	}
	if d := extractDate(text); d != nil {
		p.Deadline = d
	}
	return &model.Template{Tag: model.TemplateProject, Project: p}
}

func buildStudy(text string) *model.Template {
	p := &model.StudyPayload{
		Topics:    extractListItems(text),
		Questions: extractSection(text, "質問", "questions"),
	}
	return &model.Template{Tag: model.TemplateStudy, Study: p}
}

func buildOuting(text string) *model.Template {
	p := &model.OutingPayload{
		Participants: extractSection(text, "参加者", "participants"),
		Items:        extractSection(text, "持ち物", "items"),
		Schedule:     extractListItems(text),
		Budget:       extractBudget(text),
	}
	if d := extractDate(text); d != nil {
		p.Date = d
	}
	return &model.Template{Tag: model.TemplateOuting, Outing: p}
}
