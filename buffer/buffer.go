// Package buffer accumulates items into fixed-size batches.
package buffer

import "iter"

// Buffer is an in-memory batch of items.
//
// Implementations are not considered thread-safe and each instance is used by a single writer.
type Buffer[Item any] interface {
	// Push adds an item to the buffer and reports whether the buffer is now full.
	Push(item Item) bool
	// Size returns the number of items in the buffer.
	Size() int
	// Iter returns a sequence of all items in the buffer in push order.
	Iter() iter.Seq[Item]
	// Reset clears all items from the buffer.
	Reset()
}
