package chain

import (
	"fmt"
	"time"
)

// TimestampLayout is the layout used for newly created blocks.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp is a block creation time as stored. It hashes as-is; Time parses
// it for duration arithmetic.
type Timestamp string

// NewTimestamp renders t in UTC with whole-second resolution.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC().Truncate(time.Second).Format(TimestampLayout))
}

// Time parses the timestamp. RFC 3339 values are accepted as well.
func (ts Timestamp) Time() (time.Time, error) {
	if t, err := time.ParseInLocation(TimestampLayout, string(ts), time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, string(ts)); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q", string(ts))
}

func (ts Timestamp) String() string { return string(ts) }
