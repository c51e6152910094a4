// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import (
	"strconv"
	"strings"
	"time"
)

// layouts accepted for event and report timestamps, tried in order.
// Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
// 1e11 seconds is in the year 5138.
const epochMillisThreshold = 100_000_000_000

// ParseTimestamp parses raw using the accepted layouts or as an epoch number
// (seconds or milliseconds). ok is false when raw is empty or unparsable.
func ParseTimestamp(raw string) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), true
		}
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
		return FromEpoch(n), true
	}

	return time.Time{}, false
}

// ParseTimestampOr parses raw, substituting fallback when it cannot be read.
// substituted reports whether the fallback was used so callers can flag it.
func ParseTimestampOr(raw string, fallback time.Time) (t time.Time, substituted bool) {
	if parsed, ok := ParseTimestamp(raw); ok {
		return parsed, false
	}
	return fallback.UTC(), true
}

// FromEpoch converts epoch seconds or milliseconds to a UTC time.
func FromEpoch(n int64) time.Time {
	if n >= epochMillisThreshold {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
