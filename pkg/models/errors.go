// Package models defines the domain models and request payloads of the
// ingestion service.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPayload marks a request body that does not match the expected
// shape: a missing required field, a wrong JSON type or an unparsable value.
var ErrInvalidPayload = errors.New("invalid payload")

// requireFields reports the first of names that is absent from the JSON
// object data or set to null. Empty strings count as present.
func requireFields(data []byte, names ...string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	for _, name := range names {
		raw, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return fmt.Errorf("%w: %s is required", ErrInvalidPayload, name)
		}
	}
	return nil
}
