package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Document is a free-form JSON object (metadata, preview, data). It is kept
// as raw bytes so it reaches jsonb columns exactly as the caller sent it.
type Document json.RawMessage

// MarshalJSON implements json.Marshaler. An empty document encodes as {}.
func (d Document) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("{}"), nil
	}
	return d, nil
}

// UnmarshalJSON implements json.Unmarshaler. Only objects and null are accepted.
func (d *Document) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, []byte("null")) {
		*d = nil
		return nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: expected a JSON object", ErrInvalidPayload)
	}
	*d = append((*d)[:0], trimmed...)
	return nil
}

// Raw returns the document as a json.RawMessage suitable for a jsonb parameter,
// substituting {} for an empty document.
func (d Document) Raw() json.RawMessage {
	if len(d) == 0 {
		return json.RawMessage("{}")
	}
	return json.RawMessage(d)
}

// Timestamp accepts RFC 3339 timestamps as well as naive ISO-8601 forms,
// which are read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses s using the accepted layouts.
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("%w: invalid timestamp %q", ErrInvalidPayload, s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: timestamp must be a string", ErrInvalidPayload)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
