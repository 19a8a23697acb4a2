package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeChoices_FlatTypes(t *testing.T) {
	tests := []struct {
		name      string
		qt        QuestionType
		raw       string
		wantItems []string
		expectErr bool
	}{
		{
			name:      "single choice flat list",
			qt:        QuestionSingleChoice,
			raw:       `["A","B","C"]`,
			wantItems: []string{"A", "B", "C"},
		},
		{
			name:      "multi choice pair list keeps first element",
			qt:        QuestionMultiChoice,
			raw:       `[["A","1"],["B","0"]]`,
			wantItems: []string{"A", "B"},
		},
		{
			name:      "ordering parallel lists",
			qt:        QuestionOrdering,
			raw:       `{"items":["first","second","third"]}`,
			wantItems: []string{"first", "second", "third"},
		},
		{
			name:      "boolean with custom labels",
			qt:        QuestionBoolean,
			raw:       `["Yes","No"]`,
			wantItems: []string{"Yes", "No"},
		},
		{
			name:      "boolean with wrong arity falls back to defaults",
			qt:        QuestionBoolean,
			raw:       `["Yes","No","Maybe"]`,
			wantItems: BooleanChoices,
		},
		{
			name:      "single choice empty payload rejected",
			qt:        QuestionSingleChoice,
			raw:       `[]`,
			expectErr: true,
		},
		{
			name:      "unrecognized shape rejected",
			qt:        QuestionSingleChoice,
			raw:       `42`,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := NormalizeChoices(tt.qt, json.RawMessage(tt.raw))
			if tt.expectErr {
				assert.ErrorIs(t, err, ErrUnparsableChoices)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ChoiceFlat, set.Kind)
			assert.Equal(t, tt.wantItems, set.Items)
			assert.Empty(t, set.Targets)
		})
	}
}

func TestNormalizeChoices_PairedTypes(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantItems   []string
		wantTargets []string
		expectErr   bool
	}{
		{
			name:        "pair list",
			raw:         `[["dog","mammal"],["eagle","bird"]]`,
			wantItems:   []string{"dog", "eagle"},
			wantTargets: []string{"mammal", "bird"},
		},
		{
			name:        "parallel items and targets",
			raw:         `{"items":["dog","eagle"],"targets":["mammal","bird"]}`,
			wantItems:   []string{"dog", "eagle"},
			wantTargets: []string{"mammal", "bird"},
		},
		{
			name:        "parallel left and right",
			raw:         `{"left":["dog"],"right":["mammal"]}`,
			wantItems:   []string{"dog"},
			wantTargets: []string{"mammal"},
		},
		{
			name:        "flat list split into halves",
			raw:         `["dog","eagle","mammal","bird"]`,
			wantItems:   []string{"dog", "eagle"},
			wantTargets: []string{"mammal", "bird"},
		},
		{
			name:      "odd flat list rejected",
			raw:       `["dog","eagle","mammal"]`,
			expectErr: true,
		},
		{
			name:      "unbalanced parallel lists rejected",
			raw:       `{"items":["dog","eagle"],"targets":["mammal"]}`,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := NormalizeChoices(QuestionMatching, json.RawMessage(tt.raw))
			if tt.expectErr {
				assert.ErrorIs(t, err, ErrUnparsableChoices)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ChoicePaired, set.Kind)
			assert.Equal(t, tt.wantItems, set.Items)
			assert.Equal(t, tt.wantTargets, set.Targets)
		})
	}
}

func TestNormalizeChoices_MissingPayload(t *testing.T) {
	t.Run("boolean defaults", func(t *testing.T) {
		set, err := NormalizeChoices(QuestionBoolean, nil)
		require.NoError(t, err)
		assert.Equal(t, BooleanChoices, set.Items)
	})

	t.Run("open ended needs none", func(t *testing.T) {
		set, err := NormalizeChoices(QuestionOpenEnded, json.RawMessage("null"))
		require.NoError(t, err)
		assert.Empty(t, set.Items)
	})

	t.Run("choice types require one", func(t *testing.T) {
		_, err := NormalizeChoices(QuestionSingleChoice, nil)
		assert.ErrorIs(t, err, ErrUnparsableChoices)
	})
}
