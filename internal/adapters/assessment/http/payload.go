package assessmenthttp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/catq/internal/domain"
)

type itemPayload struct {
	ID      flexibleID `json:"id"`
	Stem    string     `json:"stem"`
	Options optionList `json:"options"`
}

func (p itemPayload) item() *domain.Item {
	return &domain.Item{
		ID:      string(p.ID),
		Stem:    p.Stem,
		Options: []domain.Option(p.Options),
	}
}

// nextItemResponse accepts the envelope form ({finished, question, theta}),
// a bare item object, or a completion message with no item.
type nextItemResponse struct {
	Finished *bool        `json:"finished"`
	Question *itemPayload `json:"question"`
	Item     *itemPayload `json:"item"`
	Message  string       `json:"message"`
	Theta    *float64     `json:"theta"`

	itemPayload
}

func (r nextItemResponse) result() domain.NextItemResult {
	var item *domain.Item
	switch {
	case r.Question != nil:
		item = r.Question.item()
	case r.Item != nil:
		item = r.Item.item()
	case r.ID != "":
		item = r.itemPayload.item()
	}

	finished := r.Finished != nil && *r.Finished
	if r.Finished == nil && item == nil && r.Message != "" {
		finished = true
	}
	if finished {
		item = nil
	}

	return domain.NextItemResult{
		Finished: finished,
		Item:     item,
		Theta:    r.Theta,
	}
}

type submitResponse struct {
	Correct   *bool    `json:"correct"`
	Theta     *float64 `json:"theta"`
	Remaining *int     `json:"remaining"`
	Finished  bool     `json:"finished"`
}

func (r submitResponse) result() domain.SubmitResult {
	return domain.SubmitResult{
		Correct:  r.Correct,
		Theta:    r.Theta,
		Finished: r.Finished || (r.Remaining != nil && *r.Remaining <= 0),
	}
}

// flexibleID accepts string and numeric identifiers.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*id = flexibleID(text)
		return nil
	}

	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("item id must be a string or number: %w", err)
	}
	*id = flexibleID(number.String())
	return nil
}

// optionList decodes options sent either as an ordered object of
// label -> text or as an array. Array entries are strings, labelled A, B, ...
// in order, or objects carrying their own label.
type optionList []domain.Option

type optionObject struct {
	Label  string `json:"label"`
	Option string `json:"option"`
	Text   string `json:"text"`
	Answer string `json:"answer"`
}

func (o *optionList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}

	switch data[0] {
	case '{':
		return o.decodeObject(data)
	case '[':
		return o.decodeArray(data)
	default:
		return errors.New("options must be an object or an array")
	}
}

func (o *optionList) decodeObject(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	if _, err := decoder.Token(); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}

	var options []domain.Option
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return fmt.Errorf("decode options: %w", err)
		}
		label, ok := token.(string)
		if !ok {
			return fmt.Errorf("decode options: unexpected key %v", token)
		}

		var text json.RawMessage
		if err := decoder.Decode(&text); err != nil {
			return fmt.Errorf("decode option %s: %w", label, err)
		}
		options = append(options, domain.Option{Label: label, Text: optionText(text)})
	}

	*o = options
	return nil
}

func (o *optionList) decodeArray(data []byte) error {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}

	options := make([]domain.Option, 0, len(entries))
	for i, entry := range entries {
		entry = bytes.TrimSpace(entry)
		if len(entry) > 0 && entry[0] == '{' {
			var object optionObject
			if err := json.Unmarshal(entry, &object); err != nil {
				return fmt.Errorf("decode option %d: %w", i, err)
			}
			label := firstNonEmpty(object.Label, object.Option, positionalLabel(i))
			options = append(options, domain.Option{Label: label, Text: firstNonEmpty(object.Text, object.Answer)})
			continue
		}
		options = append(options, domain.Option{Label: positionalLabel(i), Text: optionText(entry)})
	}

	*o = options
	return nil
}

func optionText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return strings.TrimSpace(string(raw))
}

// positionalLabel returns A..Z, then AA, AB, ...
func positionalLabel(i int) string {
	label := ""
	for i >= 0 {
		label = string(rune('A'+i%26)) + label
		i = i/26 - 1
	}
	return label
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
