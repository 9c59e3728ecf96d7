// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"errors"
	"sync"
)

// ErrStorageFull mimics a quota-exceeded write failure.
var ErrStorageFull = errors.New("storage full")

// FakeKV is an in-memory implementation of repository.KV for testing.
type FakeKV struct {
	mu     sync.RWMutex
	values map[string]string
	writes map[string]int

	// Error injection for testing
	GetErr error
	PutErr error
}

// NewFakeKV creates an empty FakeKV.
func NewFakeKV() *FakeKV {
	return &FakeKV{
		values: make(map[string]string),
		writes: make(map[string]int),
	}
}

// Set stores a raw value without counting it as a write.
func (f *FakeKV) Set(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}

// Value returns the raw stored value.
func (f *FakeKV) Value(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok
}

// Writes returns how many Put calls succeeded for key.
func (f *FakeKV) Writes(key string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.writes[key]
}

// Get implements repository.KV.
func (f *FakeKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.GetErr != nil {
		return "", false, f.GetErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok, nil
}

// Put implements repository.KV.
func (f *FakeKV) Put(ctx context.Context, key, value string) error {
	if f.PutErr != nil {
		return f.PutErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	f.writes[key]++
	return nil
}
