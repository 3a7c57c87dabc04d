// Package storetest checks that a backend behaves like the store contract expects.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/teenjuna/tvl/internal/testing/require"
	"github.com/teenjuna/tvl/store"
)

// Run runs the suite. open must return a fresh empty backend; the suite closes it.
func Run(t *testing.T, open func(t *testing.T) store.Backend) {
	tests := []struct {
		name string
		fn   func(t *testing.T, c *store.Client)
	}{
		{"Hash", testHash},
		{"Set", testSet},
		{"Del", testDel},
		{"Pipeline", testPipeline},
		{"Validate", testValidate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := store.New(open(t))
			t.Cleanup(func() {
				if err := c.Close(); err != nil && !errors.Is(err, store.ErrClosed) {
					t.Fatalf("close backend: %v", err)
				}
			})
			tt.fn(t, c)
		})
	}

	t.Run("Closed", func(t *testing.T) {
		c := store.New(open(t))
		require.Nil(t, c.Close())
		_, err := c.SMembers(context.Background(), "k")
		require.ErrorIs(t, err, store.ErrClosed)
	})
}

func testHash(t *testing.T, c *store.Client) {
	ctx := context.Background()

	v, ok, err := c.HGet(ctx, "h", "a")
	require.Nil(t, err)
	require.Equal(t, ok, false)
	require.Nil(t, v)

	require.Nil(t, c.HSet(ctx, "h", store.S("b", "2"), store.S("a", "1"), store.B("e", nil)))
	require.Nil(t, c.HSet(ctx, "h", store.S("a", "one")))

	v, ok, err = c.HGet(ctx, "h", "a")
	require.Nil(t, err)
	require.Equal(t, ok, true)
	require.Equal(t, v, []byte("one"))

	ok, err = c.HExists(ctx, "h", "e")
	require.Nil(t, err)
	require.Equal(t, ok, true)

	ok, err = c.HExists(ctx, "h", "z")
	require.Nil(t, err)
	require.Equal(t, ok, false)

	all, err := c.HGetAll(ctx, "h")
	require.Nil(t, err)
	require.Equal(t, all, map[string][]byte{"a": []byte("one"), "b": []byte("2"), "e": {}})

	require.Nil(t, c.HDel(ctx, "h", "a", "missing"))
	all, err = c.HGetAll(ctx, "h")
	require.Nil(t, err)
	require.Equal(t, len(all), 2)

	all, err = c.HGetAll(ctx, "nothing")
	require.Nil(t, err)
	require.Equal(t, len(all), 0)
}

func testSet(t *testing.T, c *store.Client) {
	ctx := context.Background()

	members, err := c.SMembers(ctx, "s")
	require.Nil(t, err)
	require.Equal(t, len(members), 0)

	require.Nil(t, c.SAdd(ctx, "s", "c", "a", "b", "a"))
	members, err = c.SMembers(ctx, "s")
	require.Nil(t, err)
	require.Equal(t, members, []string{"a", "b", "c"})

	require.Nil(t, c.SRem(ctx, "s", "b", "x"))
	members, err = c.SMembers(ctx, "s")
	require.Nil(t, err)
	require.Equal(t, members, []string{"a", "c"})

	require.Nil(t, c.SRem(ctx, "s", "a", "c"))
	members, err = c.SMembers(ctx, "s")
	require.Nil(t, err)
	require.Equal(t, len(members), 0)
}

func testDel(t *testing.T, c *store.Client) {
	ctx := context.Background()

	require.Nil(t, c.HSet(ctx, "k", store.S("f", "v")))
	require.Nil(t, c.SAdd(ctx, "k", "m"))
	require.Nil(t, c.HSet(ctx, "other", store.S("f", "v")))

	require.Nil(t, c.Del(ctx, "k"))
	require.Nil(t, c.Del(ctx, "k"))

	all, err := c.HGetAll(ctx, "k")
	require.Nil(t, err)
	require.Equal(t, len(all), 0)

	members, err := c.SMembers(ctx, "k")
	require.Nil(t, err)
	require.Equal(t, len(members), 0)

	ok, err := c.HExists(ctx, "other", "f")
	require.Nil(t, err)
	require.Equal(t, ok, true)
}

func testPipeline(t *testing.T, c *store.Client) {
	ctx := context.Background()

	p := c.Pipeline()
	replies, err := p.Exec(ctx)
	require.Nil(t, err)
	require.Equal(t, len(replies), 0)

	for i := range 100 {
		key := fmt.Sprintf("image:%03d", i)
		p.HSet(key, store.S("n", fmt.Sprint(i))).SAdd("collection", key)
	}
	// Commands run in submission order, so the last write wins.
	p.HSet("image:000", store.S("n", "last"))
	p.SRem("collection", "image:099")
	require.Equal(t, p.Len(), 202)

	replies, err = p.Exec(ctx)
	require.Nil(t, err)
	require.Equal(t, len(replies), 202)
	require.Equal(t, replies[1].N, 1)
	require.Equal(t, replies[201].N, 1)
	require.Equal(t, p.Len(), 0)

	v, _, err := c.HGet(ctx, "image:000", "n")
	require.Nil(t, err)
	require.Equal(t, string(v), "last")

	members, err := c.SMembers(ctx, "collection")
	require.Nil(t, err)
	require.Equal(t, len(members), 99)
	require.Equal(t, members[0], "image:000")
	require.Equal(t, members[98], "image:098")
}

func testValidate(t *testing.T, c *store.Client) {
	ctx := context.Background()

	require.NotNil(t, c.HSet(ctx, "k"))
	require.NotNil(t, c.SAdd(ctx, ""))

	// A rejected pipeline writes nothing.
	_, err := c.Pipeline().HSet("k", store.S("f", "v")).SAdd("k").Exec(ctx)
	require.NotNil(t, err)
	ok, err := c.HExists(ctx, "k", "f")
	require.Nil(t, err)
	require.Equal(t, ok, false)
}
