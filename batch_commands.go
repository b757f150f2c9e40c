package redis

import (
	"context"
	"fmt"
)

// BatchCommands provides multi-key operations that run as a single
// pipeline on a BatchExecutor.
type BatchCommands struct {
	executor BatchExecutor
}

// NewBatchCommands creates a new BatchCommands instance.
// The executor must implement BatchExecutor (e.g., *Connection or *Client).
func NewBatchCommands(executor BatchExecutor) *BatchCommands {
	return &BatchCommands{
		executor: executor,
	}
}

// MultiGet retrieves multiple values with one MGET.
// Returns items in the same order as the keys, with Found=false for missing keys.
func (b *BatchCommands) MultiGet(ctx context.Context, keys []string) ([]Item, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	v, err := b.executor.Do(ctx, NewCmd("MGET", keys))
	if err != nil {
		return nil, err
	}

	values, err := As[[]*[]byte](v)
	if err != nil {
		return nil, err
	}
	if len(values) != len(keys) {
		return nil, typeMismatch(v, values, fmt.Sprintf("MGET returned %d values for %d keys", len(values), len(keys)))
	}

	items := make([]Item, len(keys))
	for i, key := range keys {
		if values[i] == nil {
			items[i] = Item{Key: key, Found: false}
			continue
		}
		items[i] = Item{Key: key, Value: *values[i], Found: true}
	}
	return items, nil
}

// MultiSet stores multiple items in one pipeline.
// Items are independent: use Transaction for all-or-nothing writes.
func (b *BatchCommands) MultiSet(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	p := Pipe()
	for _, item := range items {
		p.Cmd(setCmd(item)).Ignore()
	}

	_, err := b.executor.Exec(ctx, p)
	return err
}

// MultiDelete removes keys with one DEL and returns how many existed.
func (b *BatchCommands) MultiDelete(ctx context.Context, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return NewCommands(b.executor).Delete(ctx, keys...)
}
