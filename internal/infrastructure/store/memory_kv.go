// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// memoryEntry implements jetstream.KeyValueEntry
type memoryEntry struct {
	bucket   string
	key      string
	value    []byte
	revision uint64
	created  time.Time
}

func (e *memoryEntry) Key() string                     { return e.key }
func (e *memoryEntry) Value() []byte                   { return e.value }
func (e *memoryEntry) Revision() uint64                { return e.revision }
func (e *memoryEntry) Created() time.Time              { return e.created }
func (e *memoryEntry) Delta() uint64                   { return 0 }
func (e *memoryEntry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }
func (e *memoryEntry) Bucket() string                  { return e.bucket }

// memoryKeyLister implements jetstream.KeyLister over a snapshot of keys
type memoryKeyLister struct {
	keys []string
}

func (l *memoryKeyLister) Keys() <-chan string {
	ch := make(chan string, len(l.keys))
	for _, key := range l.keys {
		ch <- key
	}
	close(ch)
	return ch
}

func (l *memoryKeyLister) Stop() error { return nil }

// MemoryKeyValue is an in-process INatsKeyValue with JetStream revision
// semantics. It backs the repositories in tests and in local runs without
// JetStream.
type MemoryKeyValue struct {
	mu       sync.Mutex
	bucket   string
	data     map[string]*memoryEntry
	sequence uint64

	// Injected failures, returned by the matching operation when set.
	GetErr    error
	PutErr    error
	UpdateErr error
	DeleteErr error
	ListErr   error
}

// NewMemoryKeyValue creates an empty in-memory bucket.
func NewMemoryKeyValue(bucket string) *MemoryKeyValue {
	return &MemoryKeyValue{
		bucket: bucket,
		data:   make(map[string]*memoryEntry),
	}
}

// ListKeys returns jetstream.ErrNoKeysFound for an empty bucket, like JetStream does.
func (m *MemoryKeyValue) ListKeys(_ context.Context, _ ...jetstream.WatchOpt) (jetstream.KeyLister, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if len(m.data) == 0 {
		return nil, jetstream.ErrNoKeysFound
	}

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return &memoryKeyLister{keys: keys}, nil
}

func (m *MemoryKeyValue) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	entry, ok := m.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	copied := *entry
	copied.value = append([]byte(nil), entry.value...)
	return &copied, nil
}

func (m *MemoryKeyValue) Put(_ context.Context, key string, value []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PutErr != nil {
		return 0, m.PutErr
	}
	return m.store(key, value), nil
}

// Update writes value only when the key's current revision equals
// lastRevision. Revision 0 means the key must not exist.
func (m *MemoryKeyValue) Update(_ context.Context, key string, value []byte, lastRevision uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateErr != nil {
		return 0, m.UpdateErr
	}

	var current uint64
	if entry, ok := m.data[key]; ok {
		current = entry.revision
	}
	if current != lastRevision {
		return 0, errors.New("nats: wrong last sequence")
	}
	return m.store(key, value), nil
}

func (m *MemoryKeyValue) Delete(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.data, key)
	return nil
}

// Len returns the number of keys in the bucket.
func (m *MemoryKeyValue) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// store must be called with mu held. Revisions are stream sequences shared
// by all keys of the bucket, as in JetStream.
func (m *MemoryKeyValue) store(key string, value []byte) uint64 {
	m.sequence++
	m.data[key] = &memoryEntry{
		bucket:   m.bucket,
		key:      key,
		value:    append([]byte(nil), value...),
		revision: m.sequence,
		created:  time.Now(),
	}
	return m.sequence
}
