package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedColumns marks a column payload that does not match the schema.
var ErrMalformedColumns = errors.New("malformed column payload")

// ColumnPlacement places an item in one column of one board.
// Ordering hints and the previous columns are accepted but unused.
type ColumnPlacement struct {
	FromColumnIDs json.RawMessage `json:"fromColumnPHIDs,omitempty"`
	BoardID       string          `json:"boardPHID"`
	ColumnID      string          `json:"columnPHID"`
	BeforeID      string          `json:"beforePHID,omitempty"`
	AfterID       string          `json:"afterPHID,omitempty"`
}

// DecodeColumnPlacements strictly decodes a column payload: a JSON array of
// placements with no unknown fields and non-empty ids. A single object is
// accepted as a one-element list.
func DecodeColumnPlacements(payload string) ([]ColumnPlacement, error) {
	trimmed := bytes.TrimSpace([]byte(payload))
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedColumns)
	}

	var placements []ColumnPlacement
	switch trimmed[0] {
	case '[':
		if err := decodeStrict(trimmed, &placements); err != nil {
			return nil, err
		}
	case '{':
		var one ColumnPlacement
		if err := decodeStrict(trimmed, &one); err != nil {
			return nil, err
		}
		placements = []ColumnPlacement{one}
	default:
		return nil, fmt.Errorf("%w: expected array or object", ErrMalformedColumns)
	}

	for i, p := range placements {
		if p.BoardID == "" || p.ColumnID == "" {
			return nil, fmt.Errorf("%w: entry %d missing board or column", ErrMalformedColumns, i)
		}
	}
	return placements, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedColumns, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data", ErrMalformedColumns)
	}
	return nil
}
