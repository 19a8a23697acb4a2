package answers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

// WirePayload is the serialized form of one answer, ready for the
// per-question submit call. Image-mode payloads get their file attached
// by the session controller, which owns the pipeline holding it.
type WirePayload struct {
	AnswerType string // "text" or "image"
	TextAnswer string
	Notes      string
	Image      *models.ImageFile
}

// Handler bundles everything type-specific about a question type. Adding
// a question type means adding one entry to the registry below.
type Handler struct {
	New       func(cs models.ChoiceSet) models.Answer
	Answered  func(cs models.ChoiceSet, a models.Answer) bool
	Serialize func(cs models.ChoiceSet, a models.Answer) (WirePayload, error)
}

var registry = map[models.QuestionType]Handler{
	models.QuestionSingleChoice: {
		New: func(models.ChoiceSet) models.Answer {
			return &models.SingleChoiceAnswer{Selected: models.NoSelection}
		},
		Answered: func(_ models.ChoiceSet, a models.Answer) bool {
			return a.(*models.SingleChoiceAnswer).Selected != models.NoSelection
		},
		Serialize: func(cs models.ChoiceSet, a models.Answer) (WirePayload, error) {
			sel := a.(*models.SingleChoiceAnswer).Selected
			text := ""
			if sel >= 0 && sel < len(cs.Items) {
				text = cs.Items[sel]
			}
			return textPayload(text), nil
		},
	},

	models.QuestionMultiChoice: {
		New: func(models.ChoiceSet) models.Answer {
			return &models.MultiChoiceAnswer{Selected: map[int]bool{}}
		},
		Answered: func(_ models.ChoiceSet, a models.Answer) bool {
			for _, on := range a.(*models.MultiChoiceAnswer).Selected {
				if on {
					return true
				}
			}
			return false
		},
		Serialize: func(cs models.ChoiceSet, a models.Answer) (WirePayload, error) {
			selected := a.(*models.MultiChoiceAnswer).Selected
			var texts []string
			for i, item := range cs.Items {
				if selected[i] {
					texts = append(texts, item)
				}
			}
			return textPayload(strings.Join(texts, ",")), nil
		},
	},

	models.QuestionBoolean: {
		New: func(models.ChoiceSet) models.Answer {
			return &models.BooleanAnswer{Selected: models.NoSelection}
		},
		Answered: func(_ models.ChoiceSet, a models.Answer) bool {
			return a.(*models.BooleanAnswer).Selected != models.NoSelection
		},
		Serialize: func(_ models.ChoiceSet, a models.Answer) (WirePayload, error) {
			// Wire form is the literal strings regardless of displayed labels
			switch a.(*models.BooleanAnswer).Selected {
			case 0:
				return textPayload("True"), nil
			case 1:
				return textPayload("False"), nil
			default:
				return textPayload(""), nil
			}
		},
	},

	models.QuestionOrdering: {
		New: func(cs models.ChoiceSet) models.Answer {
			return &models.OrderingAnswer{Order: append([]string(nil), cs.Items...)}
		},
		Answered: func(_ models.ChoiceSet, a models.Answer) bool {
			return len(a.(*models.OrderingAnswer).Order) > 0
		},
		Serialize: func(_ models.ChoiceSet, a models.Answer) (WirePayload, error) {
			return jsonPayload(a.(*models.OrderingAnswer).Order)
		},
	},

	models.QuestionMatching: {
		New: func(cs models.ChoiceSet) models.Answer {
			pairs := make(map[string]string, len(cs.Items))
			for _, left := range cs.Items {
				pairs[left] = ""
			}
			return &models.MatchingAnswer{Pairs: pairs}
		},
		Answered: func(_ models.ChoiceSet, a models.Answer) bool {
			return allSet(a.(*models.MatchingAnswer).Pairs)
		},
		Serialize: func(cs models.ChoiceSet, a models.Answer) (WirePayload, error) {
			pairs := a.(*models.MatchingAnswer).Pairs
			out := make([]wirePair, 0, len(pairs))
			for _, left := range cs.Items { // choice order keeps the array stable
				if target := pairs[left]; target != "" {
					out = append(out, wirePair{Item: left, Target: target})
				}
			}
			return jsonPayload(out)
		},
	},

	models.QuestionDragDrop: {
		New: func(cs models.ChoiceSet) models.Answer {
			placements := make(map[string]string, len(cs.Targets))
			for _, target := range cs.Targets {
				placements[target] = ""
			}
			return &models.DragDropAnswer{Placements: placements}
		},
		Answered: func(_ models.ChoiceSet, a models.Answer) bool {
			return allSet(a.(*models.DragDropAnswer).Placements)
		},
		Serialize: func(cs models.ChoiceSet, a models.Answer) (WirePayload, error) {
			placements := a.(*models.DragDropAnswer).Placements
			out := make([]wirePair, 0, len(placements))
			for _, target := range cs.Targets {
				if item := placements[target]; item != "" {
					out = append(out, wirePair{Item: item, Target: target})
				}
			}
			return jsonPayload(out)
		},
	},

	models.QuestionOpenEnded: {
		New: func(models.ChoiceSet) models.Answer {
			return &models.OpenEndedAnswer{Mode: models.InputModeUnset}
		},
		Answered: func(_ models.ChoiceSet, a models.Answer) bool {
			oa := a.(*models.OpenEndedAnswer)
			text := strings.TrimSpace(oa.Text)
			switch oa.Mode {
			case models.InputModeText:
				return text != ""
			case models.InputModeImage, models.InputModeVoice:
				return oa.TranscriptReady && text != ""
			default:
				return false
			}
		},
		Serialize: func(_ models.ChoiceSet, a models.Answer) (WirePayload, error) {
			oa := a.(*models.OpenEndedAnswer)
			if oa.Mode == models.InputModeImage {
				return WirePayload{AnswerType: "image", Notes: oa.Text}, nil
			}
			return textPayload(oa.Text), nil
		},
	},
}

type wirePair struct {
	Item   string `json:"item"`
	Target string `json:"target"`
}

func textPayload(text string) WirePayload {
	return WirePayload{AnswerType: "text", TextAnswer: text}
}

func jsonPayload(v any) (WirePayload, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return WirePayload{}, fmt.Errorf("failed to serialize answer: %w", err)
	}
	return textPayload(string(data)), nil
}

func allSet(m map[string]string) bool {
	if len(m) == 0 {
		return false
	}
	for _, v := range m {
		if v == "" {
			return false
		}
	}
	return true
}

func handlerFor(qt models.QuestionType) (Handler, error) {
	h, ok := registry[qt]
	if !ok {
		return Handler{}, fmt.Errorf("%w: %s", ErrUnknownQuestionType, qt)
	}
	return h, nil
}
