package answers

import (
	"fmt"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

// Store holds one answer container per question for the lifetime of an
// attempt. Choices are normalized once on construction; all mutators
// operate on the canonical shape.
type Store struct {
	questions []models.Question
	choices   []models.ChoiceSet
	answers   []models.Answer
}

func NewStore(questions []models.Question) (*Store, error) {
	s := &Store{
		questions: questions,
		choices:   make([]models.ChoiceSet, len(questions)),
		answers:   make([]models.Answer, len(questions)),
	}

	for i, q := range questions {
		cs, err := models.NormalizeChoices(q.Type, q.Choices)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", q.ID, err)
		}
		h, err := handlerFor(q.Type)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", q.ID, err)
		}
		s.choices[i] = cs
		s.answers[i] = h.New(cs)
	}

	return s, nil
}

func (s *Store) Len() int { return len(s.questions) }

func (s *Store) Question(i int) (*models.Question, error) {
	if err := s.check(i); err != nil {
		return nil, err
	}
	return &s.questions[i], nil
}

func (s *Store) Choices(i int) (models.ChoiceSet, error) {
	if err := s.check(i); err != nil {
		return models.ChoiceSet{}, err
	}
	return s.choices[i], nil
}

func (s *Store) Answer(i int) (models.Answer, error) {
	if err := s.check(i); err != nil {
		return nil, err
	}
	return s.answers[i], nil
}

// SetAnswer replaces the whole answer for a question. The variant must
// match the question's type tag.
func (s *Store) SetAnswer(i int, a models.Answer) error {
	if err := s.check(i); err != nil {
		return err
	}
	if a == nil || a.Type() != s.questions[i].Type {
		return ErrTypeMismatch
	}
	s.answers[i] = a
	return nil
}

// IsAnswered reports whether the question's completion condition is met.
// A server-asserted "answered" status overrides local state.
func (s *Store) IsAnswered(i int) bool {
	if s.check(i) != nil {
		return false
	}
	if s.questions[i].Status == models.QuestionAnswered {
		return true
	}
	h, err := handlerFor(s.questions[i].Type)
	if err != nil {
		return false
	}
	return h.Answered(s.choices[i], s.answers[i])
}

// Serialize renders the answer in its wire form.
func (s *Store) Serialize(i int) (WirePayload, error) {
	if err := s.check(i); err != nil {
		return WirePayload{}, err
	}
	h, err := handlerFor(s.questions[i].Type)
	if err != nil {
		return WirePayload{}, err
	}
	return h.Serialize(s.choices[i], s.answers[i])
}

// ===== TYPE-SPECIFIC MUTATORS =====

// SelectOption picks the single-choice option at the given index.
func (s *Store) SelectOption(i, option int) error {
	a, err := answerAs[*models.SingleChoiceAnswer](s, i)
	if err != nil {
		return err
	}
	if option < 0 || option >= len(s.choices[i].Items) {
		return ErrInvalidOption
	}
	a.Selected = option
	return nil
}

// SelectBoolean picks index 0 (True) or 1 (False).
func (s *Store) SelectBoolean(i, option int) error {
	a, err := answerAs[*models.BooleanAnswer](s, i)
	if err != nil {
		return err
	}
	if option != 0 && option != 1 {
		return ErrInvalidOption
	}
	a.Selected = option
	return nil
}

// ToggleOption flips one multi-choice option in or out of the selection.
func (s *Store) ToggleOption(i, option int) error {
	a, err := answerAs[*models.MultiChoiceAnswer](s, i)
	if err != nil {
		return err
	}
	if option < 0 || option >= len(s.choices[i].Items) {
		return ErrInvalidOption
	}
	if a.Selected[option] {
		delete(a.Selected, option)
	} else {
		a.Selected[option] = true
	}
	return nil
}

// MoveOrderItem moves the item at position from to position to.
func (s *Store) MoveOrderItem(i, from, to int) error {
	a, err := answerAs[*models.OrderingAnswer](s, i)
	if err != nil {
		return err
	}
	if from < 0 || from >= len(a.Order) || to < 0 || to >= len(a.Order) {
		return ErrInvalidPosition
	}
	if from == to {
		return nil
	}
	item := a.Order[from]
	a.Order = append(a.Order[:from], a.Order[from+1:]...)
	a.Order = append(a.Order[:to], append([]string{item}, a.Order[to:]...)...)
	return nil
}

// SetMatch pairs a left item with a right item.
func (s *Store) SetMatch(i int, left, right string) error {
	a, err := answerAs[*models.MatchingAnswer](s, i)
	if err != nil {
		return err
	}
	if _, ok := a.Pairs[left]; !ok {
		return ErrUnknownItem
	}
	if right != "" && !contains(s.choices[i].Targets, right) {
		return ErrUnknownTarget
	}
	a.Pairs[left] = right
	return nil
}

// PlaceItem drops an item onto a target. An item placed elsewhere is
// pulled off its old target first, so it can never be placed twice.
func (s *Store) PlaceItem(i int, target, item string) error {
	a, err := answerAs[*models.DragDropAnswer](s, i)
	if err != nil {
		return err
	}
	if _, ok := a.Placements[target]; !ok {
		return ErrUnknownTarget
	}
	if !contains(s.choices[i].Items, item) {
		return ErrUnknownItem
	}
	for t, placed := range a.Placements {
		if placed == item {
			a.Placements[t] = ""
		}
	}
	a.Placements[target] = item
	return nil
}

// ClearPlacement returns a target's item to the available pool.
func (s *Store) ClearPlacement(i int, target string) error {
	a, err := answerAs[*models.DragDropAnswer](s, i)
	if err != nil {
		return err
	}
	if _, ok := a.Placements[target]; !ok {
		return ErrUnknownTarget
	}
	a.Placements[target] = ""
	return nil
}

// AvailableItems lists drag items not currently placed on any target.
// Available and placed items always partition the full item set.
func (s *Store) AvailableItems(i int) ([]string, error) {
	a, err := answerAs[*models.DragDropAnswer](s, i)
	if err != nil {
		return nil, err
	}
	placed := make(map[string]bool, len(a.Placements))
	for _, item := range a.Placements {
		if item != "" {
			placed[item] = true
		}
	}
	var available []string
	for _, item := range s.choices[i].Items {
		if !placed[item] {
			available = append(available, item)
		}
	}
	return available, nil
}

// SetInputMode chooses how an open-ended question is answered. The
// choice is final; any later change attempt leaves the mode untouched.
func (s *Store) SetInputMode(i int, mode models.InputMode) error {
	a, err := answerAs[*models.OpenEndedAnswer](s, i)
	if err != nil {
		return err
	}
	if mode == models.InputModeUnset {
		return ErrInputModeUnset
	}
	if a.Mode != models.InputModeUnset && a.Mode != mode {
		return ErrInputModeLocked
	}
	a.Mode = mode
	return nil
}

// SetText edits the open-ended buffer; allowed in every mode once one is
// chosen, whatever produced the current contents.
func (s *Store) SetText(i int, text string) error {
	a, err := answerAs[*models.OpenEndedAnswer](s, i)
	if err != nil {
		return err
	}
	if a.Mode == models.InputModeUnset {
		return ErrInputModeUnset
	}
	a.Text = text
	return nil
}

// ApplyTranscript overwrites the buffer with pipeline output and marks
// the transcript ready. Called on first completion and on explicit retry.
func (s *Store) ApplyTranscript(i int, text string) error {
	a, err := answerAs[*models.OpenEndedAnswer](s, i)
	if err != nil {
		return err
	}
	if a.Mode != models.InputModeImage && a.Mode != models.InputModeVoice {
		return ErrTypeMismatch
	}
	a.Text = text
	a.TranscriptReady = true
	return nil
}

// ClearTranscript drops the transcript-ready mark so completion again
// depends on a fresh pipeline run; used when the source media is
// replaced or a recording is discarded.
func (s *Store) ClearTranscript(i int, keepText bool) error {
	a, err := answerAs[*models.OpenEndedAnswer](s, i)
	if err != nil {
		return err
	}
	a.TranscriptReady = false
	if !keepText {
		a.Text = ""
	}
	return nil
}

// ===== HELPERS =====

func (s *Store) check(i int) error {
	if i < 0 || i >= len(s.questions) {
		return ErrIndexOutOfRange
	}
	return nil
}

func answerAs[T models.Answer](s *Store, i int) (T, error) {
	var zero T
	if err := s.check(i); err != nil {
		return zero, err
	}
	a, ok := s.answers[i].(T)
	if !ok {
		return zero, ErrTypeMismatch
	}
	return a, nil
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
