package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// stampLayouts are the full timestamp forms the backend has been seen to
// send, tried in order.
var stampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Stamp is a conversation activity time. The server may send null, a full
// timestamp or just a wall-clock display string; Raw keeps what was received
// and Time is set only when the value pins an instant.
type Stamp struct {
	Time time.Time
	Raw  string
}

func StampAt(t time.Time) Stamp {
	return Stamp{Time: t}
}

func (s Stamp) IsZero() bool {
	return s.Time.IsZero() && s.Raw == ""
}

// Exact reports whether the stamp is a full timestamp that can be ordered.
func (s Stamp) Exact() bool {
	return !s.Time.IsZero()
}

func (s Stamp) String() string {
	if s.Raw != "" {
		return s.Raw
	}
	if s.Time.IsZero() {
		return ""
	}
	return s.Time.Format(time.RFC3339)
}

func (s *Stamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = Stamp{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("last message time: %w", err)
	}
	*s = ParseStamp(raw)
	return nil
}

func (s Stamp) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return []byte("null"), nil
	}
	if s.Raw != "" {
		return json.Marshal(s.Raw)
	}
	return json.Marshal(s.Time.Format(time.RFC3339Nano))
}

// ParseStamp reads the wire forms of a last message time. Anything that is
// not a full timestamp, "14:32" included, is kept as display text only.
func ParseStamp(raw string) Stamp {
	if raw == "" {
		return Stamp{}
	}
	for _, layout := range stampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return Stamp{Time: t}
		}
	}
	return Stamp{Raw: raw}
}
