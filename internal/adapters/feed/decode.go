package feed

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/okian/audax/internal/domain/model"
)

type document struct {
	Riders *[]model.Rider `json:"riders"`
}

// Decode accepts {"riders":[...]} or a bare array of riders.
func Decode(b []byte) ([]model.Rider, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrDecode)
	}
	if b[0] == '[' {
		var riders []model.Rider
		if err := json.Unmarshal(b, &riders); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return riders, nil
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if doc.Riders == nil {
		return nil, fmt.Errorf("%w: missing riders", ErrDecode)
	}
	return *doc.Riders, nil
}
