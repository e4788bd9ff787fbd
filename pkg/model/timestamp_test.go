package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimestamp_At(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	ts := At(time.Date(2024, 1, 3, 10, 0, 0, 500, loc))

	assert.True(t, ts.Valid)
	assert.Equal(t, time.UTC, ts.Time.Location())
	assert.Equal(t, time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC), ts.Time)
}

func TestTimestamp_Missing(t *testing.T) {
	ts := TimestampOf(nil)

	assert.False(t, ts.Valid)
	assert.Nil(t, ts.Ptr())
	assert.EqualValues(t, 0, ts.SortKey().Unix())

	zero := time.Time{}
	assert.False(t, TimestampOf(&zero).Valid)
}

func TestTimestamp_SortKeyBeforeEpoch(t *testing.T) {
	old := At(time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC))
	recent := At(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.True(t, old.SortKey().Before(Timestamp{}.SortKey()))
	assert.True(t, Timestamp{}.SortKey().Before(recent.SortKey()))
}

func TestTimestamp_Or(t *testing.T) {
	a := At(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b := At(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))

	assert.True(t, a.Or(b).Equal(a))
	assert.True(t, Timestamp{}.Or(b).Equal(b))
	assert.False(t, Timestamp{}.Equal(b))
	assert.True(t, Timestamp{}.Equal(Timestamp{}))
}
