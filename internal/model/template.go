package model

import (
	"fmt"
	"time"
)

// TemplateTag selects which structured payload a templated memo carries.
type TemplateTag string

const (
	TemplateMeeting  TemplateTag = "meeting"
	TemplateShopping TemplateTag = "shopping"
	TemplateTravel   TemplateTag = "travel"
	TemplateRecipe   TemplateTag = "recipe"
	TemplateHealth   TemplateTag = "health"
	TemplateBook     TemplateTag = "book"
	TemplateIdea     TemplateTag = "idea"
	TemplateDiary    TemplateTag = "diary"
	TemplateProject  TemplateTag = "project"
	TemplateStudy    TemplateTag = "study"
	TemplateOuting   TemplateTag = "outing"
)

// Template is a tagged union: exactly one payload field corresponding
// to Tag is non-nil. Readers switch on Tag rather than probing fields.
type Template struct {
	Tag      TemplateTag      `json:"tag"`
	Meeting  *MeetingPayload  `json:"meeting,omitempty"`
	Shopping *ShoppingPayload `json:"shopping,omitempty"`
	Travel   *TravelPayload   `json:"travel,omitempty"`
	Recipe   *RecipePayload   `json:"recipe,omitempty"`
	Health   *HealthPayload   `json:"health,omitempty"`
	Book     *BookPayload     `json:"book,omitempty"`
	Idea     *IdeaPayload     `json:"idea,omitempty"`
	Diary    *DiaryPayload    `json:"diary,omitempty"`
	Project  *ProjectPayload  `json:"project,omitempty"`
	Study    *StudyPayload    `json:"study,omitempty"`
	Outing   *OutingPayload   `json:"outing,omitempty"`
}

// MeetingPayload captures structured meeting notes.
type MeetingPayload struct {
	Date        *time.Time `json:"date,omitempty"`
	Attendees   []string   `json:"attendees,omitempty"`
	Agenda      []string   `json:"agenda,omitempty"`
	Decisions   []string   `json:"decisions,omitempty"`
	Todos       []string   `json:"todos,omitempty"`
	NextMeeting *string    `json:"nextMeeting,omitempty"`
}

// ShoppingPayload is a shopping list with an optional budget.
type ShoppingPayload struct {
	Items  []string `json:"items,omitempty"`
	Budget *int64   `json:"budget,omitempty"`
	Store  *string  `json:"store,omitempty"`
}

// TravelPayload covers trip planning notes.
type TravelPayload struct {
	Destination *string    `json:"destination,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Budget      *int64     `json:"budget,omitempty"`
	Items       []string   `json:"items,omitempty"`
	Itinerary   []string   `json:"itinerary,omitempty"`
}

// RecipePayload captures a dish with ingredients and steps.
type RecipePayload struct {
	Dish        *string  `json:"dish,omitempty"`
	Ingredients []string `json:"ingredients,omitempty"`
	Steps       []string `json:"steps,omitempty"`
	Servings    *int     `json:"servings,omitempty"`
}

// HealthPayload captures health and exercise notes.
type HealthPayload struct {
	Condition *string  `json:"condition,omitempty"`
	Exercise  []string `json:"exercise,omitempty"`
	Meals     []string `json:"meals,omitempty"`
}

// BookPayload captures reading notes.
type BookPayload struct {
	Title    *string  `json:"title,omitempty"`
	Author   *string  `json:"author,omitempty"`
	Quotes   []string `json:"quotes,omitempty"`
	Thoughts *string  `json:"thoughts,omitempty"`
}

// IdeaPayload captures a one-line idea with supporting details.
type IdeaPayload struct {
	Summary *string  `json:"summary,omitempty"`
	Details []string `json:"details,omitempty"`
}

// DiaryPayload captures a dated journal entry.
type DiaryPayload struct {
	Date   *time.Time `json:"date,omitempty"`
	Mood   *string    `json:"mood,omitempty"`
	Events []string   `json:"events,omitempty"`
}

// ProjectPayload captures project tasks and a deadline.
type ProjectPayload struct {
	Name     *string    `json:"name,omitempty"`
	Tasks    []string   `json:"tasks,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

// StudyPayload captures study topics and open questions.
type StudyPayload struct {
	Subject   *string  `json:"subject,omitempty"`
	Topics    []string `json:"topics,omitempty"`
	Questions []string `json:"questions,omitempty"`
}

// OutingPayload covers group outing planning.
type OutingPayload struct {
	Destination    *string    `json:"destination,omitempty"`
	Date           *time.Time `json:"date,omitempty"`
	Participants   []string   `json:"participants,omitempty"`
	Transportation *string    `json:"transportation,omitempty"`
	Budget         *int64     `json:"budget,omitempty"`
	Items          []string   `json:"items,omitempty"`
	Schedule       []string   `json:"schedule,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
}

// Validate checks that exactly the payload field matching Tag is set.
func (t *Template) Validate() error {
	set := 0
	var tagged bool
	check := func(tag TemplateTag, present bool) {
		if present {
			set++
			if t.Tag == tag {
				tagged = true
			}
		}
	}
	check(TemplateMeeting, t.Meeting != nil)
	check(TemplateShopping, t.Shopping != nil)
	check(TemplateTravel, t.Travel != nil)
	check(TemplateRecipe, t.Recipe != nil)
	check(TemplateHealth, t.Health != nil)
	check(TemplateBook, t.Book != nil)
	check(TemplateIdea, t.Idea != nil)
	check(TemplateDiary, t.Diary != nil)
	check(TemplateProject, t.Project != nil)
	check(TemplateStudy, t.Study != nil)
	check(TemplateOuting, t.Outing != nil)
	if set != 1 || !tagged {
		return fmt.Errorf("%w: template tag %q does not match its payload", ErrValidation, t.Tag)
	}
	return nil
}
