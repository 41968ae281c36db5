package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonColumn is a thin generic wrapper that implements sql.Scanner and
// driver.Valuer so struct payloads round-trip transparently through jsonb
// columns.
type jsonColumn[T any] struct {
	Val T
}

// Scan implements sql.Scanner
func (j *jsonColumn[T]) Scan(src interface{}) error {
	if j == nil {
		return fmt.Errorf("store: Scan on nil jsonColumn")
	}
	if src == nil {
		var zero T
		j.Val = zero
		return nil
	}

	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, &j.Val)
	case string:
		return json.Unmarshal([]byte(v), &j.Val)
	default:
		return fmt.Errorf("store: cannot scan type %T into jsonColumn", src)
	}
}

// Value implements driver.Valuer
func (j jsonColumn[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.Val)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// nullableJSONColumn works like jsonColumn but maps SQL NULL to a nil
// pointer, for columns that may legitimately be absent (product summary).
type nullableJSONColumn[T any] struct {
	Val *T
}

// Scan implements sql.Scanner
func (j *nullableJSONColumn[T]) Scan(src interface{}) error {
	if j == nil {
		return fmt.Errorf("store: Scan on nil nullableJSONColumn")
	}
	if src == nil {
		j.Val = nil
		return nil
	}

	var out T
	switch v := src.(type) {
	case []byte:
		if err := json.Unmarshal(v, &out); err != nil {
			return err
		}
	case string:
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return err
		}
	default:
		return fmt.Errorf("store: cannot scan type %T into nullableJSONColumn", src)
	}
	j.Val = &out
	return nil
}

// Value implements driver.Valuer
func (j nullableJSONColumn[T]) Value() (driver.Value, error) {
	if j.Val == nil {
		return nil, nil
	}
	b, err := json.Marshal(j.Val)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
