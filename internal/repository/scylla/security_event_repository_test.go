package scylla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayPartitions(t *testing.T) {
	since := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
	until := time.Date(2026, 3, 3, 1, 30, 0, 0, time.UTC)

	assert.Equal(t, []string{"2026-03-03", "2026-03-02", "2026-03-01"}, dayPartitions(since, until))
}

func TestDayPartitions_SameDay(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{"2026-03-01"}, dayPartitions(at, at.Add(time.Hour)))
}

func TestDayPartitions_ConvertsToUTC(t *testing.T) {
	zone := time.FixedZone("UTC+5", 5*3600)
	since := time.Date(2026, 3, 2, 2, 0, 0, 0, zone) // 2026-03-01 21:00 UTC
	until := time.Date(2026, 3, 2, 4, 0, 0, 0, zone) // 2026-03-01 23:00 UTC

	assert.Equal(t, []string{"2026-03-01"}, dayPartitions(since, until))
}
