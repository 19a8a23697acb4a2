package models

import "encoding/json"

type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiChoice  QuestionType = "multi_choice"
	QuestionBoolean      QuestionType = "boolean"
	QuestionOrdering     QuestionType = "ordering"
	QuestionMatching     QuestionType = "matching"
	QuestionDragDrop     QuestionType = "drag_drop"
	QuestionOpenEnded    QuestionType = "open_ended"
)

type QuestionStatus string

const (
	QuestionAnswered    QuestionStatus = "answered"
	QuestionNotAnswered QuestionStatus = "not_answered"
)

// Assessment is the immutable snapshot a session runs against once loaded.
type Assessment struct {
	ID         uint       `json:"id"`
	Title      string     `json:"title" validate:"required,min=1,max=200"`
	Topic      string     `json:"topic"`
	Duration   int        `json:"duration"` // Minutes; 0 falls back to the configured default
	TotalMarks int        `json:"total_marks"`
	Questions  []Question `json:"questions"`
}

type Question struct {
	ID    uint         `json:"id"`
	Text  string       `json:"text" validate:"required"`
	Type  QuestionType `json:"type" validate:"required,oneof=single_choice multi_choice boolean ordering matching drag_drop open_ended"`
	Marks int          `json:"marks"`

	// Choices arrives in one of three historical payload shapes and is
	// normalized once at load time, see NormalizeChoices.
	Choices json.RawMessage `json:"choices,omitempty"`

	// Status is asserted by the server; "answered" overrides local
	// completion checks.
	Status QuestionStatus `json:"status"`
}

// BooleanChoices is the fixed option list for boolean questions.
var BooleanChoices = []string{"True", "False"}
