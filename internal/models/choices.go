package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

type ChoiceKind string

const (
	ChoiceFlat   ChoiceKind = "flat"
	ChoicePaired ChoiceKind = "paired"
)

// ChoiceSet is the canonical form of a question's choices payload.
// Flat question types use Items only; matching and drag-drop carry both
// sides (left/right items, or drag items/drop targets).
type ChoiceSet struct {
	Kind    ChoiceKind `json:"kind"`
	Items   []string   `json:"items"`
	Targets []string   `json:"targets,omitempty"`
}

var ErrUnparsableChoices = errors.New("choices payload has no recognized shape")

// rawChoices captures the three shapes observed in historical payloads:
// a flat string list, a list of 2-element pairs, or two parallel lists.
type rawChoices struct {
	flat     []string
	pairs    [][2]string
	parallel struct {
		items   []string
		targets []string
	}
	shape string
}

func decodeChoices(raw json.RawMessage) (*rawChoices, error) {
	rc := &rawChoices{}

	var flat []string
	if err := json.Unmarshal(raw, &flat); err == nil {
		rc.flat = flat
		rc.shape = "flat"
		return rc, nil
	}

	var pairs [][]string
	if err := json.Unmarshal(raw, &pairs); err == nil {
		rc.shape = "pairs"
		for i, p := range pairs {
			if len(p) != 2 {
				return nil, fmt.Errorf("%w: pair %d has %d elements", ErrUnparsableChoices, i, len(p))
			}
			rc.pairs = append(rc.pairs, [2]string{p[0], p[1]})
		}
		return rc, nil
	}

	var parallel struct {
		Items   []string `json:"items"`
		Targets []string `json:"targets"`
		Left    []string `json:"left"`
		Right   []string `json:"right"`
	}
	if err := json.Unmarshal(raw, &parallel); err == nil {
		rc.shape = "parallel"
		rc.parallel.items = parallel.Items
		rc.parallel.targets = parallel.Targets
		if len(rc.parallel.items) == 0 {
			rc.parallel.items = parallel.Left
		}
		if len(rc.parallel.targets) == 0 {
			rc.parallel.targets = parallel.Right
		}
		if len(rc.parallel.items) > 0 || len(rc.parallel.targets) > 0 {
			return rc, nil
		}
	}

	return nil, ErrUnparsableChoices
}

// NormalizeChoices converts a question's raw choices payload into the
// canonical ChoiceSet. It runs exactly once, at assessment load; every
// consumer afterwards sees one shape.
func NormalizeChoices(qt QuestionType, raw json.RawMessage) (ChoiceSet, error) {
	if len(raw) == 0 || string(raw) == "null" {
		if qt == QuestionBoolean {
			return ChoiceSet{Kind: ChoiceFlat, Items: append([]string(nil), BooleanChoices...)}, nil
		}
		if qt == QuestionOpenEnded {
			return ChoiceSet{Kind: ChoiceFlat}, nil
		}
		return ChoiceSet{}, fmt.Errorf("question type %s requires choices: %w", qt, ErrUnparsableChoices)
	}

	rc, err := decodeChoices(raw)
	if err != nil {
		return ChoiceSet{}, err
	}

	switch qt {
	case QuestionMatching, QuestionDragDrop:
		return normalizePaired(rc)
	default:
		return normalizeFlat(qt, rc)
	}
}

func normalizeFlat(qt QuestionType, rc *rawChoices) (ChoiceSet, error) {
	set := ChoiceSet{Kind: ChoiceFlat}
	switch rc.shape {
	case "flat":
		set.Items = rc.flat
	case "pairs":
		// Option text rode in the first slot of each pair
		for _, p := range rc.pairs {
			set.Items = append(set.Items, p[0])
		}
	case "parallel":
		set.Items = rc.parallel.items
	}
	if qt == QuestionBoolean && len(set.Items) != 2 {
		set.Items = append([]string(nil), BooleanChoices...)
	}
	if len(set.Items) == 0 {
		return ChoiceSet{}, fmt.Errorf("question type %s has empty choices: %w", qt, ErrUnparsableChoices)
	}
	return set, nil
}

func normalizePaired(rc *rawChoices) (ChoiceSet, error) {
	set := ChoiceSet{Kind: ChoicePaired}
	switch rc.shape {
	case "pairs":
		for _, p := range rc.pairs {
			set.Items = append(set.Items, p[0])
			set.Targets = append(set.Targets, p[1])
		}
	case "parallel":
		set.Items = rc.parallel.items
		set.Targets = rc.parallel.targets
	case "flat":
		// Halves of one flat list: items first, targets second
		if len(rc.flat)%2 != 0 {
			return ChoiceSet{}, fmt.Errorf("flat paired payload has odd length %d: %w", len(rc.flat), ErrUnparsableChoices)
		}
		half := len(rc.flat) / 2
		set.Items = rc.flat[:half]
		set.Targets = rc.flat[half:]
	}
	if len(set.Items) == 0 || len(set.Items) != len(set.Targets) {
		return ChoiceSet{}, fmt.Errorf("paired choices are unbalanced (%d/%d): %w", len(set.Items), len(set.Targets), ErrUnparsableChoices)
	}
	return set, nil
}
