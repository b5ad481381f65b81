package models

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// DecodeItem unmarshals a request body of the form {"type": "...", ...}.
func DecodeItem(raw []byte) (Item, error) {
	var head struct {
		Type ItemType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}

	item, err := newItem(head.Type)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, item); err != nil {
		return nil, fmt.Errorf("decode %s item: %w", head.Type, err)
	}
	return item, nil
}

func newItem(t ItemType) (Item, error) {
	switch t {
	case TypeTheory:
		return &Theory{}, nil
	case TypeMCQ:
		return &MultipleChoice{}, nil
	case TypeTrueFalse:
		return &TrueFalse{}, nil
	case TypeCode:
		return &Code{}, nil
	default:
		return nil, fmt.Errorf("unknown item type %q", t)
	}
}

// Item decodes the stored row back into its variant.
func (c *Content) Item() (Item, error) {
	item, err := newItem(c.Type)
	if err != nil {
		return nil, err
	}
	if len(c.Payload) > 0 {
		if err := json.Unmarshal(c.Payload, item); err != nil {
			return nil, fmt.Errorf("decode content %s: %w", c.ID, err)
		}
	}

	switch v := item.(type) {
	case *Theory:
		v.ID = c.ID
		if v.Title == "" {
			v.Title = c.Title
		}
	case *Code:
		v.ID = c.ID
		if v.Title == "" {
			v.Title = c.Title
		}
	case *MultipleChoice:
		v.ID, v.MaxPoints, v.TimeLimitSeconds = c.ID, c.MaxPoints, c.TimeLimitSeconds
	case *TrueFalse:
		v.ID, v.MaxPoints, v.TimeLimitSeconds = c.ID, c.MaxPoints, c.TimeLimitSeconds
	}
	return item, nil
}

// FromItem builds the row for item inside the given subject.
func FromItem(sectionID, subjectID string, order int, item Item) (*Content, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}

	row := &Content{
		ID:               item.ItemID(),
		SectionID:        sectionID,
		SubjectID:        subjectID,
		Type:             item.Kind(),
		Order:            order,
		MaxPoints:        MaxPoints(item),
		TimeLimitSeconds: TimeLimitSeconds(item),
		Payload:          datatypes.JSON(payload),
	}
	switch v := item.(type) {
	case *Theory:
		row.Title = v.Title
	case *Code:
		row.Title = v.Title
	case *MultipleChoice:
		row.Title = v.Title
	case *TrueFalse:
		row.Title = v.Title
	}
	return row, nil
}

// SetItemID assigns id to item; used when the server generates ids.
func SetItemID(item Item, id string) {
	switch v := item.(type) {
	case *Theory:
		v.ID = id
	case *MultipleChoice:
		v.ID = id
	case *TrueFalse:
		v.ID = id
	case *Code:
		v.ID = id
	default:
		panic(fmt.Sprintf("unhandled item type %T", item))
	}
}
