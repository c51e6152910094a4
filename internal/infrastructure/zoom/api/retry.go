// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// backoffLadder is an exponential backoff schedule with jitter.
type backoffLadder struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
}

// delay calculates the backoff duration for a retry attempt with jitter
func (b backoffLadder) delay(attempt int) time.Duration {
	if attempt <= 0 {
		return b.initial
	}

	// Calculate exponential backoff
	backoff := float64(b.initial) * math.Pow(b.multiplier, float64(attempt))

	// Cap at max backoff
	if time.Duration(backoff) > b.max {
		backoff = float64(b.max)
	}

	// Add jitter (±25% of backoff duration) to prevent thundering herd
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoffWithJitter := time.Duration(backoff + jitter)

	if backoffWithJitter < b.initial {
		backoffWithJitter = b.initial
	}
	if backoffWithJitter > b.max {
		backoffWithJitter = b.max
	}

	return backoffWithJitter
}

// isNetworkError reports whether err is a transport failure worth retrying:
// timeouts, resets and refused connections.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused")
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(header string, now time.Time) (time.Duration, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(header); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
