package stream_test

import (
	"bytes"
	"path/filepath"
	"slices"
	"testing"

	"github.com/teenjuna/tvl/internal/testing/require"
	"github.com/teenjuna/tvl/stream"
)

func sample(i int) *stream.Map {
	return stream.NewMap().
		Set("fileName", "asset.tvl").
		Set("index", uint64(i)).
		Set("size", uint64(70000)).
		Set("negative", int64(-5)).
		Set("data", []byte{1, 2, 3}).
		Set("ok", true).
		Set("nested", stream.NewMap().
			Set("x", uint64(1)).
			Set("deeper", stream.NewMap().Set("y", "z"))).
		Set("list", []any{uint64(1), "two", stream.NewMap().Set("k", []byte{9})})
}

func check(t *testing.T, m *stream.Map, i int) {
	t.Helper()

	require.Equal(t, m.Keys(), sample(i).Keys())

	s, err := m.String("fileName")
	require.Nil(t, err)
	require.Equal(t, s, "asset.tvl")

	n, err := m.Uint("index")
	require.Nil(t, err)
	require.Equal(t, n, uint64(i))

	n, err = m.Uint("size")
	require.Nil(t, err)
	require.Equal(t, n, uint64(70000))

	v, _ := m.Get("negative")
	require.Equal(t, v, int64(-5))

	b, err := m.Bytes("data")
	require.Nil(t, err)
	require.Equal(t, b, []byte{1, 2, 3})

	v, _ = m.Get("ok")
	require.Equal(t, v, true)

	nested, err := m.Map("nested")
	require.Nil(t, err)
	n, err = nested.Uint("x")
	require.Nil(t, err)
	require.Equal(t, n, uint64(1))
	deeper, err := nested.Map("deeper")
	require.Nil(t, err)
	s, err = deeper.String("y")
	require.Nil(t, err)
	require.Equal(t, s, "z")

	v, _ = m.Get("list")
	list, ok := v.([]any)
	require.Equal(t, ok, true)
	require.Equal(t, len(list), 3)
	require.Equal(t, list[1], "two")
	item, ok := list[2].(*stream.Map)
	require.Equal(t, ok, true)
	b, err = item.Bytes("k")
	require.Nil(t, err)
	require.Equal(t, b, []byte{9})
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []stream.Format{stream.CBOR, stream.MessagePack} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			w := stream.NewWriter(&buf, format)
			for i := range 10 {
				require.Nil(t, w.Write(sample(i)))
			}
			require.Nil(t, w.Flush())

			var i int
			for m, err := range stream.Elements(stream.NewReader(&buf, format)) {
				require.Nil(t, err)
				check(t, m, i)
				i++
			}
			require.Equal(t, i, 10)
		})
	}
}

func TestCompressedFile(t *testing.T) {
	for _, format := range []stream.Format{stream.CBOR, stream.MessagePack} {
		t.Run(string(format), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "export.z")

			w, err := stream.Create(path, format, true)
			require.Nil(t, err)
			for i := range 100 {
				require.Nil(t, w.Write(sample(i)))
			}
			require.Nil(t, w.Close())

			r, err := stream.Open(path, format, true)
			require.Nil(t, err)
			defer r.Close()

			var i int
			for m, err := range stream.Elements(r) {
				require.Nil(t, err)
				check(t, m, i)
				i++
			}
			require.Equal(t, i, 100)
		})
	}
}

func TestIndefiniteMap(t *testing.T) {
	// {_ "a": 1, "b": [_ 2]}
	data := []byte{0xbf, 0x61, 'a', 0x01, 0x61, 'b', 0x9f, 0x02, 0xff, 0xff}

	ms := slices.Collect(func(yield func(*stream.Map) bool) {
		for m, err := range stream.Elements(stream.NewReader(bytes.NewReader(data), stream.CBOR)) {
			require.Nil(t, err)
			if !yield(m) {
				return
			}
		}
	})
	require.Equal(t, len(ms), 1)

	n, err := ms[0].Uint("a")
	require.Nil(t, err)
	require.Equal(t, n, uint64(1))

	v, _ := ms[0].Get("b")
	require.Equal(t, v, []any{uint64(2)})
}

func TestByteStreamIsRejected(t *testing.T) {
	// {"d": (_ h'01', h'02')}
	data := []byte{0xa1, 0x61, 'd', 0x5f, 0x41, 0x01, 0x41, 0x02, 0xff}

	var errs int
	for _, err := range stream.Elements(stream.NewReader(bytes.NewReader(data), stream.CBOR)) {
		require.ErrorIs(t, err, stream.ErrByteStream)
		errs++
	}
	require.Equal(t, errs, 1)
}

func TestNonMapElement(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x01})

	for m, err := range stream.Elements(stream.NewReader(&buf, stream.CBOR)) {
		require.Nil(t, m)
		require.NotNil(t, err)
	}
}

func TestMapGetters(t *testing.T) {
	m := stream.NewMap().Set("a", "x").Set("b", uint64(300)).Set("a", "y")
	require.Equal(t, m.Keys(), []string{"a", "b"})

	s, err := m.String("a")
	require.Nil(t, err)
	require.Equal(t, s, "y")

	_, err = m.String("missing")
	require.ErrorIs(t, err, stream.ErrMissing)

	_, err = m.Bytes("a")
	require.NotNil(t, err)

	_, err = m.UintN("b", 8)
	require.NotNil(t, err)

	n, err := m.UintN("b", 16)
	require.Nil(t, err)
	require.Equal(t, n, uint64(300))
}

func TestParseFormat(t *testing.T) {
	f, err := stream.ParseFormat("msgpack")
	require.Nil(t, err)
	require.Equal(t, f, stream.MessagePack)

	_, err = stream.ParseFormat("xml")
	require.NotNil(t, err)
}
