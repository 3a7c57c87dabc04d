package buffer_test

import (
	"math/rand/v2"
	"slices"
	"strconv"
	"testing"

	"github.com/teenjuna/tvl/buffer"
	"github.com/teenjuna/tvl/internal/testing/require"
)

func TestAppendingBuffer(t *testing.T) {
	type Item struct {
		ID string
		N1 int
		N2 int
	}

	var input []Item
	for i := range 1000 {
		input = append(input, Item{
			ID: strconv.Itoa(i),
			N1: rand.IntN(1000),
			N2: rand.IntN(1000),
		})
	}

	buffer := buffer.Appending[Item](len(input))
	require.Equal(t, buffer.Size(), 0)

	for i, item := range input {
		full := buffer.Push(item)
		require.Equal(t, buffer.Size(), i+1)
		require.Equal(t, full, i == len(input)-1)
	}

	items := slices.Collect(buffer.Iter())
	require.Equal(t, len(items), buffer.Size())
	require.Equal(t, len(items), len(input))
	require.Equal(t, items, input)

	buffer.Reset()

	items = slices.Collect(buffer.Iter())
	require.Equal(t, buffer.Size(), 0)
	require.Equal(t, len(items), 0)
}

func TestAppendingBufferBatches(t *testing.T) {
	b := buffer.Appending[int](3)

	var batches [][]int
	for i := range 10 {
		if b.Push(i) {
			batches = append(batches, slices.Collect(b.Iter()))
			b.Reset()
		}
	}
	batches = append(batches, slices.Collect(b.Iter()))

	require.Equal(t, batches, [][]int{{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, {9}})

	require.PanicWithError(t, "limit can't be < 1", func() {
		buffer.Appending[int](0)
	})
}
