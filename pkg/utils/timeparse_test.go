// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		raw      string
		expected time.Time
		ok       bool
	}{
		{"rfc3339 utc", "2026-03-01T09:30:00Z", want, true},
		{"rfc3339 offset", "2026-03-01T10:30:00+01:00", want, true},
		{"rfc3339 nano", "2026-03-01T09:30:00.000Z", want, true},
		{"no zone", "2026-03-01T09:30:00", want, true},
		{"space separated", "2026-03-01 09:30:00", want, true},
		{"epoch seconds", "1772357400", want, true},
		{"epoch millis", "1772357400000", want, true},
		{"padded", "  2026-03-01T09:30:00Z ", want, true},
		{"empty", "", time.Time{}, false},
		{"garbage", "yesterday", time.Time{}, false},
		{"negative epoch", "-5", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.expected.Equal(got), "got %s", got)
		})
	}
}

func TestParseTimestampOr(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got, substituted := ParseTimestampOr("2026-03-01T09:30:00Z", now)
	assert.False(t, substituted)
	assert.Equal(t, 9, got.Hour())

	got, substituted = ParseTimestampOr("not a date", now)
	assert.True(t, substituted)
	assert.Equal(t, now, got)
}

func TestFromEpoch(t *testing.T) {
	assert.Equal(t, time.Unix(1772357400, 0).UTC(), FromEpoch(1772357400))
	assert.Equal(t, time.UnixMilli(1772357400123).UTC(), FromEpoch(1772357400123))
}
