package models

// InputMode selects how an open-ended answer is produced. Once set for a
// question it never changes.
type InputMode string

const (
	InputModeUnset InputMode = "unset"
	InputModeText  InputMode = "text"
	InputModeImage InputMode = "image"
	InputModeVoice InputMode = "voice"
)

// NoSelection marks single-choice and boolean answers with nothing chosen.
const NoSelection = -1

// Answer is the per-question answer union; exactly one variant is live
// per question, matching the question's type tag.
type Answer interface {
	Type() QuestionType
}

type SingleChoiceAnswer struct {
	Selected int `json:"selected"` // Option index, NoSelection if none
}

func (*SingleChoiceAnswer) Type() QuestionType { return QuestionSingleChoice }

type MultiChoiceAnswer struct {
	Selected map[int]bool `json:"selected"` // Option index set
}

func (*MultiChoiceAnswer) Type() QuestionType { return QuestionMultiChoice }

type BooleanAnswer struct {
	Selected int `json:"selected"` // 0 = True, 1 = False, NoSelection if none
}

func (*BooleanAnswer) Type() QuestionType { return QuestionBoolean }

type OrderingAnswer struct {
	Order []string `json:"order"` // Permutation of the choice list, defaults to original order
}

func (*OrderingAnswer) Type() QuestionType { return QuestionOrdering }

type MatchingAnswer struct {
	Pairs map[string]string `json:"pairs"` // Left item -> chosen right item, "" while unset
}

func (*MatchingAnswer) Type() QuestionType { return QuestionMatching }

type DragDropAnswer struct {
	Placements map[string]string `json:"placements"` // Drop target -> placed item, "" while unset
}

func (*DragDropAnswer) Type() QuestionType { return QuestionDragDrop }

type OpenEndedAnswer struct {
	Mode InputMode `json:"mode"`
	Text string    `json:"text"`

	// TranscriptReady flips exactly once, when the image or voice
	// pipeline first completes; later manual edits leave it set.
	TranscriptReady bool `json:"transcript_ready"`
}

func (*OpenEndedAnswer) Type() QuestionType { return QuestionOpenEnded }
