package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed marks persisted data that exists but cannot be decoded.
var ErrMalformed = errors.New("malformed persisted data")

func loadCollection[T any](ctx context.Context, kv KV, key string) ([]T, bool, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, true, fmt.Errorf("decode %s: %w: %v", key, ErrMalformed, err)
	}
	if items == nil {
		// A stored JSON null is treated like a missing key.
		return nil, false, nil
	}
	return items, true, nil
}

func saveCollection[T any](ctx context.Context, kv KV, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Put(ctx, key, string(raw))
}
