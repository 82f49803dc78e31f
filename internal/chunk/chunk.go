// Package chunk partitions ordered collections into size-bounded batches.
package chunk

import (
	"assistant/internal/fault"
)

// SizeFunc reports the size of one item in the unit the bound is expressed in.
type SizeFunc[T any] func(T) int

// Chunk greedily groups items into batches whose total size stays within
// maxSize. Order is preserved and no item is split or dropped: an item larger
// than maxSize becomes a batch of its own. Empty input yields no batches.
func Chunk[T any](items []T, size SizeFunc[T], maxSize int) ([][]T, error) {
	if maxSize < 1 {
		return nil, fault.New(fault.ValidationError, "chunk", "max size must be at least 1, got %d", maxSize)
	}
	if size == nil {
		return nil, fault.New(fault.ValidationError, "chunk", "size function is required")
	}

	var (
		batches [][]T
		current []T
		running int
	)
	for _, item := range items {
		n := size(item)
		if n < 0 {
			n = 0
		}
		if len(current) > 0 && running+n > maxSize {
			batches = append(batches, current)
			current = nil
			running = 0
		}
		current = append(current, item)
		running += n
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches, nil
}
