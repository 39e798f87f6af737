package taxapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Timestamps arrive with or without a zone; values without one are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Date is a calendar date encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate constructs a Date in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(value string) (Date, error) {
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return Date{}, fmt.Errorf("taxapi.date.parse: %w", err)
	}
	return Date{Time: parsed}, nil
}

func (date Date) String() string {
	return date.Format(dateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (date Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(date.String())
}

// UnmarshalJSON decodes "YYYY-MM-DD".
func (date *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("taxapi.date.decode: %w", err)
	}
	parsed, err := ParseDate(text)
	if err != nil {
		return err
	}
	*date = parsed
	return nil
}

// Timestamp is a server-side point in time.
type Timestamp struct {
	time.Time
}

// MarshalJSON encodes the timestamp as RFC 3339.
func (timestamp Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(timestamp.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts RFC 3339 and zone-less ISO 8601 timestamps.
func (timestamp *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("taxapi.timestamp.decode: %w", err)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			timestamp.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("taxapi.timestamp.decode: unrecognized timestamp %q", text)
}
