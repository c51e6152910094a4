// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_AdvanceFiresDueWaiters(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := Fake(start)

	short := c.After(time.Second)
	long := c.After(time.Minute)
	assert.Equal(t, 2, c.Pending())

	c.Advance(30 * time.Second)
	select {
	case fired := <-short:
		assert.Equal(t, start.Add(30*time.Second), fired)
	default:
		t.Fatal("expected short waiter to fire")
	}
	select {
	case <-long:
		t.Fatal("long waiter fired early")
	default:
	}
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Minute)
	<-long
	assert.Equal(t, 0, c.Pending())
}

func TestFakeClock_NonPositiveDurationFiresImmediately(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	select {
	case <-c.After(0):
	default:
		t.Fatal("expected immediate fire")
	}
}

func TestFakeClock_Set(t *testing.T) {
	c := Fake(time.Unix(100, 0))
	c.Set(time.Unix(50, 0))
	assert.Equal(t, time.Unix(50, 0), c.Now())
}

func TestReal(t *testing.T) {
	before := time.Now()
	assert.False(t, Real().Now().Before(before))
}
