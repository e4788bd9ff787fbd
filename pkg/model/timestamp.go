package model

import (
	"time"
)

var epoch = time.Unix(0, 0).UTC()

// Timestamp is an optional point in time.
// Feeds routinely omit dates, so absence is tracked with Valid rather than the zero time.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// At returns a valid timestamp normalized to UTC with second precision,
// which is the resolution both output dialects can carry.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second), Valid: true}
}

// TimestampOf converts an optional parsed date.
func TimestampOf(t *time.Time) Timestamp {
	if t == nil || t.IsZero() {
		return Timestamp{}
	}
	return At(*t)
}

// SortKey returns the time used for ordering. Missing timestamps sort as Unix epoch,
// so a valid date before 1970 sorts below undated entries.
func (t Timestamp) SortKey() time.Time {
	if !t.Valid {
		return epoch
	}
	return t.Time
}

// Ptr returns nil for a missing timestamp.
func (t Timestamp) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// Or returns t if it is set, otherwise other.
func (t Timestamp) Or(other Timestamp) Timestamp {
	if t.Valid {
		return t
	}
	return other
}

func (t Timestamp) Equal(other Timestamp) bool {
	if t.Valid != other.Valid {
		return false
	}
	return !t.Valid || t.Time.Equal(other.Time)
}
