package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		item    Item
		wantErr string
	}{
		{
			name: "valid",
			item: Item{ID: "q1", Stem: "2+2?", Options: []Option{{Label: "A", Text: "3"}, {Label: "B", Text: "4"}}},
		},
		{
			name:    "missing id",
			item:    Item{Stem: "2+2?"},
			wantErr: "item id is required",
		},
		{
			name:    "empty label",
			item:    Item{ID: "q1", Options: []Option{{Label: "", Text: "3"}}},
			wantErr: "option label is required",
		},
		{
			name:    "duplicate label",
			item:    Item{ID: "q1", Options: []Option{{Label: "A", Text: "3"}, {Label: "A", Text: "4"}}},
			wantErr: "duplicate option label",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.item.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestItemHasOption(t *testing.T) {
	item := Item{ID: "q1", Options: []Option{{Label: "A"}, {Label: "B"}}}

	assert.True(t, item.HasOption("B"))
	assert.False(t, item.HasOption("C"))
	assert.False(t, item.HasOption(""))
}

func TestSessionProgressPercent(t *testing.T) {
	tests := []struct {
		name  string
		index int
		cap   int
		want  float64
	}{
		{name: "fresh", index: 0, cap: 20, want: 0},
		{name: "halfway", index: 10, cap: 20, want: 50},
		{name: "at cap", index: 20, cap: 20, want: 100},
		{name: "clamped", index: 25, cap: 20, want: 100},
		{name: "zero cap", index: 3, cap: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Session{ItemIndex: tt.index, ItemCap: tt.cap}
			assert.InDelta(t, tt.want, s.ProgressPercent(), 0.001)
		})
	}
}

func TestNewSessionAppliesBaseline(t *testing.T) {
	s := NewSession("tag", "user-1", 0)

	assert.Equal(t, StatusStarting, s.Status)
	assert.Equal(t, DefaultItemCap, s.ItemCap)
	assert.Equal(t, BaselineTheta, s.Theta)
	assert.Zero(t, s.ItemIndex)
	assert.Zero(t, s.CorrectCount)
	assert.Nil(t, s.CurrentItem)
}

func TestSnapshotCloneCopiesItemOptions(t *testing.T) {
	original := Snapshot{Session: Session{CurrentItem: &Item{ID: "q1", Options: []Option{{Label: "A", Text: "x"}}}}}

	cloned := original.Clone()
	cloned.CurrentItem.Options[0].Text = "changed"

	assert.Equal(t, "x", original.CurrentItem.Options[0].Text)
}

func TestIsInputError(t *testing.T) {
	assert.True(t, IsInputError(ErrNoOptionSelected))
	assert.True(t, IsInputError(fmt.Errorf("advance: %w", ErrBusy)))
	assert.False(t, IsInputError(errors.New("connection refused")))
	assert.False(t, IsInputError(ErrSecretNotFound))
}

func TestIdentityIsZero(t *testing.T) {
	assert.True(t, Identity("  ").IsZero())
	assert.False(t, Identity(" student-7 ").IsZero())
}
