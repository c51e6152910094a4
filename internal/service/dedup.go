// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DedupHistory remembers the most recent idempotency keys. Keys are never
// refreshed once added, so eviction is oldest-first.
type DedupHistory struct {
	keys *lru.Cache[string, struct{}]
}

// NewDedupHistory creates a history holding at most size keys.
func NewDedupHistory(size int) *DedupHistory {
	if size <= 0 {
		size = DefaultDedupHistorySize
	}
	// lru.New only fails for a non-positive size.
	keys, _ := lru.New[string, struct{}](size)
	return &DedupHistory{keys: keys}
}

// Seen reports whether key was remembered. It does not change eviction order.
func (d *DedupHistory) Seen(key string) bool {
	return d.keys.Contains(key)
}

// Remember adds key to the history.
func (d *DedupHistory) Remember(key string) {
	if d.keys.Contains(key) {
		return
	}
	d.keys.Add(key, struct{}{})
}

// Len returns the number of remembered keys.
func (d *DedupHistory) Len() int {
	return d.keys.Len()
}
