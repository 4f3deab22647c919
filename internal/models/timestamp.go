package models

import (
	"bytes"
	"encoding/json"
	"github.com/myrjola/sagaboard/internal/errors"
	"time"
)

// legacyLayouts are the naive ISO-8601 layouts written by the first version of the data files. They carry no zone
// and are interpreted as UTC.
var legacyLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Timestamp is a UTC instant serialized as RFC 3339 with nanoseconds.
type Timestamp struct {
	time.Time
}

// Now returns the current time truncated to microseconds so that it survives a round trip through the documents.
func Now() Timestamp {
	return Timestamp{Time: time.Now().UTC().Truncate(time.Microsecond)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "decode timestamp")
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed.UTC()
		return nil
	}
	for _, layout := range legacyLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return errors.New("unrecognized timestamp")
}
