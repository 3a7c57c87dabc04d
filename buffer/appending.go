package buffer

import (
	"iter"
	"slices"
)

var _ Buffer[any] = (*AppendingBuffer[any])(nil)

// AppendingBuffer keeps items in push order and is full once it holds limit items.
type AppendingBuffer[Item any] struct {
	items []Item
	limit int
}

func Appending[Item any](limit int) *AppendingBuffer[Item] {
	if limit < 1 {
		panic("limit can't be < 1")
	}
	return &AppendingBuffer[Item]{
		items: make([]Item, 0, min(limit, 1024)),
		limit: limit,
	}
}

func (b *AppendingBuffer[Item]) Push(item Item) bool {
	b.items = append(b.items, item)
	return len(b.items) >= b.limit
}

func (b *AppendingBuffer[Item]) Size() int {
	return len(b.items)
}

func (b *AppendingBuffer[Item]) Iter() iter.Seq[Item] {
	return slices.Values(b.items)
}

// Reset drops the items but keeps the allocated space for the next batch.
func (b *AppendingBuffer[Item]) Reset() {
	clear(b.items)
	b.items = b.items[:0]
}
