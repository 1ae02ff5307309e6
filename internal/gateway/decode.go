package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeRows decodes a JSON array of records into dest following q.Single.
func DecodeRows(data []byte, q Query, dest any) error {
	if !q.Single {
		if err := json.Unmarshal(data, dest); err != nil {
			return fmt.Errorf("decode %s rows: %w", q.Relation, err)
		}
		return nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("decode %s rows: %w", q.Relation, err)
	}
	switch len(rows) {
	case 0:
		return ErrNotFound
	case 1:
	default:
		return ErrMultipleRows
	}
	if err := json.Unmarshal(rows[0], dest); err != nil {
		return fmt.Errorf("decode %s row: %w", q.Relation, err)
	}
	return nil
}

// One holds an expanded record that may be rendered as an object, as a
// one-element array (one-to-many embeds), or as null.
type One[T any] struct {
	Value *T
}

func (o *One[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		if len(items) == 0 {
			o.Value = nil
			return nil
		}
		o.Value = &items[0]
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o One[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

// RecordColumns marshals record to JSON and returns it as a column map.
func RecordColumns(record any) (map[string]any, error) {
	if m, ok := record.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var cols map[string]any
	if err := json.Unmarshal(data, &cols); err != nil {
		return nil, fmt.Errorf("record is not an object: %w", err)
	}
	return cols, nil
}
