package domain

import (
	"fmt"
	"strings"
)

type Identity string

func (i Identity) IsZero() bool {
	return strings.TrimSpace(string(i)) == ""
}

type Option struct {
	Label string
	Text  string
}

// Item is a single question as received from the assessment service.
// Options keep the order the service sent them in.
type Item struct {
	ID      string
	Stem    string
	Options []Option
}

func (it Item) HasOption(label string) bool {
	for _, option := range it.Options {
		if option.Label == label {
			return true
		}
	}
	return false
}

func (it Item) Validate() error {
	if strings.TrimSpace(it.ID) == "" {
		return fmt.Errorf("item id is required")
	}

	seen := make(map[string]struct{}, len(it.Options))
	for _, option := range it.Options {
		if option.Label == "" {
			return fmt.Errorf("item %s: option label is required", it.ID)
		}
		if _, ok := seen[option.Label]; ok {
			return fmt.Errorf("item %s: duplicate option label %q", it.ID, option.Label)
		}
		seen[option.Label] = struct{}{}
	}

	return nil
}

func (it Item) clone() *Item {
	copied := it
	copied.Options = append([]Option(nil), it.Options...)
	return &copied
}

type Answer struct {
	Identity Identity
	ItemID   string
	Option   string
}

// NextItemResult is the service's reply to a next-item request. Finished and
// Item are mutually exclusive; a reply with neither is inconsistent.
type NextItemResult struct {
	Finished bool
	Item     *Item
	Theta    *float64
}

type SubmitResult struct {
	Correct  *bool
	Theta    *float64
	Finished bool
}
