package ingest_test

import (
	"context"
	"errors"
	"iter"
	"slices"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/teenjuna/tvl"
	"github.com/teenjuna/tvl/catalog"
	"github.com/teenjuna/tvl/ingest"
	"github.com/teenjuna/tvl/internal/testing/backends"
	"github.com/teenjuna/tvl/internal/testing/require"
	"github.com/teenjuna/tvl/layout"
	"github.com/teenjuna/tvl/store"
)

func image(source, name string, seed byte) *tvl.DecodedImage {
	return &tvl.DecodedImage{
		Source: tvl.Source{FileName: source, Description: "about " + source},
		Record: layout.Record{
			Width:    2,
			Height:   1,
			Options:  layout.IsCustomFormat,
			FileName: name,
		},
		Payload: tvl.Palette{Size: 2, Colors: []byte{seed, 0, 0, 0, seed, 0}, Indices: []byte{0, 1}},
	}
}

func images(imgs ...*tvl.DecodedImage) iter.Seq2[*tvl.DecodedImage, error] {
	return func(yield func(*tvl.DecodedImage, error) bool) {
		for _, img := range imgs {
			if !yield(img, nil) {
				return
			}
		}
	}
}

func engine(cat *catalog.Catalog, options ...ingest.Option) *ingest.Engine {
	logger, _ := test.NewNullLogger()
	return ingest.New(cat, append([]ingest.Option{ingest.WithLogger(logrus.NewEntry(logger))}, options...)...)
}

// contents returns the image summaries of every collection by collection file name.
func contents(t *testing.T, cat *catalog.Catalog) map[string][]tvl.ImageSummary {
	t.Helper()
	cols, err := cat.Collections(t.Context())
	require.Nil(t, err)

	out := make(map[string][]tvl.ImageSummary, len(cols))
	for _, col := range cols {
		_, dup := out[col.FileName]
		require.Equal(t, dup, false)

		summaries, err := cat.Images(t.Context(), col.ID)
		require.Nil(t, err)
		out[col.FileName] = summaries
	}
	return out
}

func names(summaries []tvl.ImageSummary) []string {
	var out []string
	for _, s := range summaries {
		out = append(out, s.FileName)
	}
	slices.Sort(out)
	return out
}

func TestImport(t *testing.T) {
	backends.Run(t, func(t *testing.T, c *store.Client) {
		cat := catalog.New(c)
		e := engine(cat, ingest.WithBatchSize(2))

		res, err := e.Import(t.Context(), images(
			image("a.tvl", "1", 1),
			image("a.tvl", "2", 2),
			image("b.tvl", "1", 3),
		))
		require.Nil(t, err)
		require.Equal(t, res, ingest.Result{Records: 3, Created: 2, Imported: 3, Batches: 2})

		got := contents(t, cat)
		require.Equal(t, len(got), 2)
		require.Equal(t, names(got["a.tvl"]), []string{"1", "2"})
		require.Equal(t, names(got["b.tvl"]), []string{"1"})

		cols, err := cat.Collections(t.Context())
		require.Nil(t, err)
		require.Equal(t, cols[0].Description, "about a.tvl")

		stored, err := cat.Image(t.Context(), got["b.tvl"][0].ID)
		require.Nil(t, err)
		require.Equal(t, stored.Payload, image("b.tvl", "1", 3).Payload)
		require.Equal(t, stored.Options, layout.IsCustomFormat)

		// Import doesn't look at what is stored.
		res, err = e.Import(t.Context(), images(image("a.tvl", "1", 1)))
		require.Nil(t, err)
		require.Equal(t, res, ingest.Result{Records: 1, Imported: 1, Batches: 1})
		require.Equal(t, names(contents(t, cat)["a.tvl"]), []string{"1", "1", "2"})
	})
}

func TestIdempotentSync(t *testing.T) {
	input := []*tvl.DecodedImage{
		image("a.tvl", "1", 1),
		image("a.tvl", "2", 2),
		image("a.tvl", "3", 3),
		image("b.tvl", "1", 4),
	}

	backends.Run(t, func(t *testing.T, c *store.Client) {
		cat := catalog.New(c)
		e := engine(cat)

		_, err := e.Import(t.Context(), images(input...))
		require.Nil(t, err)
		_, err = e.Import(t.Context(), images(input...))
		require.Nil(t, err)

		res, err := e.Verify(t.Context(), images(input...))
		require.Nil(t, err)
		require.Equal(t, res.Reused, 4)
		require.Equal(t, res.Imported, 0)
		require.Equal(t, res.Pruned, 4)

		twice := contents(t, cat)

		backends.Run(t, func(t *testing.T, c *store.Client) {
			cat := catalog.New(c)
			_, err := engine(cat).Verify(t.Context(), images(input...))
			require.Nil(t, err)

			once := contents(t, cat)
			require.Equal(t, len(once), len(twice))
			for name := range once {
				require.Equal(t, names(once[name]), names(twice[name]))
			}
		})
	})
}

func TestVerifyPrunes(t *testing.T) {
	backends.Run(t, func(t *testing.T, c *store.Client) {
		cat := catalog.New(c)
		e := engine(cat)

		_, err := e.Verify(t.Context(), images(
			image("a.tvl", "1", 1),
			image("a.tvl", "2", 2),
			image("a.tvl", "3", 3),
			image("b.tvl", "1", 4),
		))
		require.Nil(t, err)
		before := contents(t, cat)
		require.Equal(t, len(before["a.tvl"]), 3)

		res, err := e.Verify(t.Context(), images(
			image("a.tvl", "1", 1),
			image("a.tvl", "3", 3),
		))
		require.Nil(t, err)
		require.Equal(t, res, ingest.Result{Records: 2, Reused: 2, Pruned: 1})

		after := contents(t, cat)
		require.Equal(t, after["a.tvl"], []tvl.ImageSummary{before["a.tvl"][0], before["a.tvl"][2]})
		// Untouched collections are left alone.
		require.Equal(t, after["b.tvl"], before["b.tvl"])

		_, err = cat.Image(t.Context(), before["a.tvl"][1].ID)
		require.ErrorIs(t, err, tvl.ErrNotFound)
	})
}

func TestVerifyMatchesByName(t *testing.T) {
	backends.Run(t, func(t *testing.T, c *store.Client) {
		cat := catalog.New(c)
		e := engine(cat)

		_, err := e.Verify(t.Context(), images(image("a.tvl", "x", 1)))
		require.Nil(t, err)
		before := contents(t, cat)["a.tvl"]

		// A different payload under the same name resolves to the stored record.
		res, err := e.Verify(t.Context(), images(image("a.tvl", "x", 9), image("a.tvl", "y", 2)))
		require.Nil(t, err)
		require.Equal(t, res.Reused, 1)
		require.Equal(t, res.Imported, 1)

		after := contents(t, cat)["a.tvl"]
		require.Equal(t, after[0], before[0])
		require.Equal(t, names(after), []string{"x", "y"})

		stored, err := cat.Image(t.Context(), before[0].ID)
		require.Nil(t, err)
		require.Equal(t, stored.Payload, image("a.tvl", "x", 1).Payload)
	})
}

func TestBatchSize(t *testing.T) {
	var input []*tvl.DecodedImage
	for i := range 25 {
		input = append(input, image("a.tvl", string(rune('a'+i)), byte(i)))
	}

	var want []string
	for i, size := range []int{1, 7, 25, 20000} {
		backends.Run(t, func(t *testing.T, c *store.Client) {
			cat := catalog.New(c)
			res, err := engine(cat, ingest.WithBatchSize(size)).Import(t.Context(), images(input...))
			require.Nil(t, err)
			require.Equal(t, res.Batches, (25+size-1)/size)

			got := names(contents(t, cat)["a.tvl"])
			if i == 0 && want == nil {
				want = got
			}
			require.Equal(t, got, want)
		})
	}

	require.PanicWithError(t, "batch size can't be < 1", func() {
		ingest.WithBatchSize(0)
	})
}

func TestInputError(t *testing.T) {
	broken := errors.Join(tvl.ErrFormatIntegrity, errors.New("offset mismatch"))

	backends.Run(t, func(t *testing.T, c *store.Client) {
		cat := catalog.New(c)
		e := engine(cat)

		_, err := e.Verify(t.Context(), images(image("a.tvl", "1", 1), image("a.tvl", "2", 2)))
		require.Nil(t, err)

		input := func(yield func(*tvl.DecodedImage, error) bool) {
			if !yield(image("a.tvl", "1", 1), nil) {
				return
			}
			yield(nil, broken)
		}

		_, err = e.Verify(t.Context(), input)
		require.ErrorIs(t, err, tvl.ErrFormatIntegrity)

		// A failed run prunes nothing.
		require.Equal(t, names(contents(t, cat)["a.tvl"]), []string{"1", "2"})
	})
}

func TestStoreError(t *testing.T) {
	backends.Run(t, func(t *testing.T, c *store.Client) {
		cat := catalog.New(c)
		e := engine(cat)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := e.Import(ctx, images(image("a.tvl", "1", 1)))
		require.ErrorIs(t, err, context.Canceled)
	})
}
