package container_test

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/teenjuna/tvl"
	"github.com/teenjuna/tvl/container"
	"github.com/teenjuna/tvl/internal/testing/fixture"
	"github.com/teenjuna/tvl/internal/testing/require"
	"github.com/teenjuna/tvl/layout"
	"github.com/teenjuna/tvl/palette"
	"github.com/teenjuna/tvl/stream"
)

var jpeg = []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x43, 0x00, 0x08}

func parse(p *container.Parser, data []byte) ([]*tvl.DecodedImage, error) {
	var images []*tvl.DecodedImage
	for img, err := range p.Parse(container.Asset{FileName: "a.tvl", Data: data}) {
		if err != nil {
			return images, err
		}
		images = append(images, img)
	}
	return images, nil
}

func quiet() container.Option {
	logger, _ := test.NewNullLogger()
	return container.WithLogger(logrus.NewEntry(logger))
}

func TestParse(t *testing.T) {
	data := fixture.Container("TVL1",
		fixture.Solid("a", 4, 3, 5),
		fixture.Image{Options: layout.IsJPEGFileMaybe, FileName: "b", Width: 1, Height: 1, Payload: jpeg},
		fixture.Solid("c", 2, 2, 1),
	)

	p := container.NewParser(quiet())
	images, err := parse(p, data)
	require.Nil(t, err)
	require.Equal(t, len(images), 3)
	require.Equal(t, p.Stats(), container.Stats{Parsed: 3})

	require.Equal(t, images[0].Record.FileName, "a")
	require.Equal(t, images[0].Source.FileName, "a.tvl")
	require.Equal(t, images[0].Payload.DataType(), tvl.DataPalette)
	require.Equal(t, images[0].Payload.(tvl.Palette).Size, uint8(5))
	require.Equal(t, len(images[0].Payload.(tvl.Palette).Indices), 12)

	require.Equal(t, images[1].Payload, tvl.Payload(tvl.Raw{Bytes: jpeg}))
	require.Equal(t, images[2].Record.FileName, "c")

	// Each record reports where it starts.
	require.Equal(t, images[0].Record.Offset, uint32(layout.MagicLen))
	next := layout.MagicLen + images[0].Record.Size() + int(images[0].Record.ContentSize)
	require.Equal(t, images[1].Record.Offset, uint32(next))
}

func TestParseRasterize(t *testing.T) {
	img := fixture.Image{
		Width:       2,
		Height:      1,
		Options:     layout.IsCustomFormat,
		FileName:    "a",
		PaletteSize: 2,
		Colors:      []byte{255, 0, 0, 0, 255, 0},
		Indices:     []byte{0, 1},
	}
	transparent := img
	transparent.FileName = "b"
	transparent.Options |= layout.HasTransparency

	images, err := parse(container.NewParser(quiet()), fixture.Container("TVL1", img, transparent))
	require.Nil(t, err)
	require.Equal(t, len(images), 2)

	want := [][]byte{
		{255, 0, 0, 255, 0, 255, 0, 255},
		{0, 0, 0, 0, 0, 255, 0, 255},
	}
	for i, img := range images {
		p := img.Payload.(tvl.Palette)
		pix := palette.Rasterize(
			int(img.Record.Width), int(img.Record.Height),
			p.Colors, p.Indices, img.Record.Options.Has(layout.HasTransparency),
		)
		require.Equal(t, pix, want[i])
	}
}

func TestParseOffsetMismatch(t *testing.T) {
	wrong := uint32(1234)
	bad := fixture.Solid("b", 2, 2, 2)
	bad.Offset = &wrong

	images, err := parse(
		container.NewParser(quiet()),
		fixture.Container("TVL1", fixture.Solid("a", 2, 2, 2), bad, fixture.Solid("c", 2, 2, 2)),
	)
	require.ErrorIs(t, err, tvl.ErrFormatIntegrity)
	require.Equal(t, len(images), 1)
	require.Equal(t, images[0].Record.FileName, "a")
}

func TestParseSentinel(t *testing.T) {
	p := container.NewParser(quiet())
	images, err := parse(p, fixture.Container("TVL1",
		fixture.Solid("a", 2, 2, 2),
		fixture.Sentinel(),
		fixture.Solid("b", 2, 2, 2),
	))
	require.Nil(t, err)
	require.Equal(t, len(images), 1)
	require.Equal(t, p.Stats(), container.Stats{Parsed: 1})
}

func TestParseOversize(t *testing.T) {
	huge := make([]byte, tvl.DefaultPaletteLimit+1)
	huge[0] = 2

	p := container.NewParser(quiet())
	images, err := parse(p, fixture.Container("TVL1",
		fixture.Image{Width: 1024, Height: 1024, Options: layout.IsCustomFormat, FileName: "big", Payload: huge},
		fixture.Solid("next", 3, 3, 4),
	))
	require.Nil(t, err)
	require.Equal(t, len(images), 1)
	require.Equal(t, images[0].Record.FileName, "next")
	require.Equal(t, p.Stats(), container.Stats{Parsed: 1, Skipped: 1})
}

func TestParsePaletteLimit(t *testing.T) {
	p := container.NewParser(quiet(), container.WithPaletteLimit(8))
	images, err := parse(p, fixture.Container("TVL1", fixture.Solid("a", 16, 16, 200)))
	require.Nil(t, err)
	require.Equal(t, len(images), 0)
	require.Equal(t, p.Stats().Skipped, 1)

	require.PanicWithError(t, "palette limit can't be < 1", func() {
		container.WithPaletteLimit(0)
	})
}

func TestParseDecompressionFailure(t *testing.T) {
	p := container.NewParser(quiet())
	images, err := parse(p, fixture.Container("TVL1",
		fixture.Image{Width: 2, Height: 2, Options: layout.IsCustomFormat, FileName: "bad", Payload: []byte{2, 1, 2, 3, 4}},
		fixture.Solid("good", 2, 2, 2),
	))
	require.Nil(t, err)
	require.Equal(t, len(images), 1)
	require.Equal(t, images[0].Record.FileName, "good")
	require.Equal(t, p.Stats(), container.Stats{Parsed: 1, Skipped: 1})
}

func TestParseMalformedPalette(t *testing.T) {
	short := fixture.Solid("short", 4, 4, 2)
	short.Indices = short.Indices[:10]

	p := container.NewParser(quiet())
	images, err := parse(p, fixture.Container("TVL1", short, fixture.Solid("ok", 1, 1, 1)))
	require.Nil(t, err)
	require.Equal(t, len(images), 1)
	require.Equal(t, p.Stats(), container.Stats{Parsed: 1, Skipped: 1})
}

func TestParseOverlongPalette(t *testing.T) {
	// A 1x1 record whose payload is far below the palette limit but inflates to 64 MiB.
	bomb := append([]byte{1}, fixture.Deflate(make([]byte, 64<<20))...)
	require.True(t, len(bomb) < tvl.DefaultPaletteLimit)

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	p := container.NewParser(quiet())
	images, err := parse(p, fixture.Container("TVL1",
		fixture.Image{Width: 1, Height: 1, Options: layout.IsCustomFormat, FileName: "bomb", Payload: bomb},
		fixture.Solid("next", 2, 2, 2),
	))

	runtime.ReadMemStats(&after)
	require.Nil(t, err)
	require.Equal(t, len(images), 1)
	require.Equal(t, images[0].Record.FileName, "next")
	require.Equal(t, p.Stats(), container.Stats{Parsed: 1, Skipped: 1})
	require.True(t, after.TotalAlloc-before.TotalAlloc < 16<<20)
}

func TestParseUnsupported(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A}

	p := container.NewParser(quiet())
	images, err := parse(p, fixture.Container("TVL1",
		fixture.Image{Width: 1, Height: 1, Options: layout.IsJPEGFileMaybe, FileName: "png", Payload: png},
		fixture.Solid("ok", 1, 1, 1),
	))
	require.Nil(t, err)
	require.Equal(t, len(images), 1)
	require.Equal(t, p.Stats(), container.Stats{Parsed: 1, Unsupported: 1})
}

func TestParseUnflaggedJPEG(t *testing.T) {
	_, err := parse(container.NewParser(quiet()), fixture.Container("TVL1",
		fixture.Image{Width: 1, Height: 1, FileName: "jpeg", Payload: jpeg},
	))
	require.ErrorIs(t, err, tvl.ErrFormatIntegrity)
}

func TestParseTruncated(t *testing.T) {
	data := fixture.Container("TVL1", fixture.Solid("a", 8, 8, 3))

	_, err := parse(container.NewParser(quiet()), data[:len(data)-3])
	require.ErrorIs(t, err, tvl.ErrFormatIntegrity)

	_, err = parse(container.NewParser(quiet()), data[:2])
	require.ErrorIs(t, err, tvl.ErrFormatIntegrity)
}

func TestParseChecksum(t *testing.T) {
	data := fixture.Container("TVL1", fixture.Solid("a", 2, 2, 2))
	p := container.NewParser(quiet())

	asset := container.Asset{FileName: "a.tvl", SHA256Sum: container.Sum(data), Data: data}
	for _, err := range p.Parse(asset) {
		require.Nil(t, err)
	}

	asset.SHA256Sum = container.Sum([]byte("other"))
	for _, err := range p.Parse(asset) {
		require.ErrorIs(t, err, tvl.ErrFormatIntegrity)
	}
}

func TestParseLogsSkips(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := container.NewParser(container.WithLogger(logrus.NewEntry(logger)))

	_, err := parse(p, fixture.Container("TVL1",
		fixture.Image{Width: 1, Height: 1, FileName: "x", Payload: []byte{1, 2, 3, 4}},
	))
	require.Nil(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, entry.Data["record"], "x")
	require.Equal(t, entry.Data["file"], "a.tvl")
}

func TestImageStream(t *testing.T) {
	data := fixture.Container("TVL1",
		fixture.Image{
			Width: 2, Height: 1, Options: layout.IsCustomFormat | layout.HasTransparency | 1<<7,
			Reserved: [3]uint8{1, 16, 255}, FileName: "a",
			PaletteSize: 2, Colors: []byte{1, 2, 3, 4, 5, 6}, Indices: []byte{1, 0},
		},
		fixture.Image{Width: 1, Height: 1, Options: layout.IsJPEGFileMaybe, FileName: "b", Payload: jpeg},
	)
	images, err := parse(container.NewParser(quiet()), data)
	require.Nil(t, err)
	for _, img := range images {
		img.Source.Description = "desc"
	}

	for _, format := range []stream.Format{stream.CBOR, stream.MessagePack} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			w := stream.NewWriter(&buf, format)
			for _, img := range images {
				require.Nil(t, w.Write(container.ImageMap(img)))
			}
			require.Nil(t, w.Flush())

			var got []*tvl.DecodedImage
			for img, err := range container.Images(stream.NewReader(&buf, format)) {
				require.Nil(t, err)
				got = append(got, img)
			}
			require.Equal(t, got, images)
		})
	}
}

func TestAssetStream(t *testing.T) {
	asset := container.Asset{
		FileName:    "a.tvl",
		SHA256Sum:   container.Sum([]byte{1, 2, 3}),
		Description: "first",
		Data:        []byte{1, 2, 3},
	}

	var buf bytes.Buffer
	w := stream.NewWriter(&buf, stream.CBOR)
	require.Nil(t, w.Write(asset.Map()))
	require.Nil(t, w.Write(stream.NewMap().Set("fileName", "b.tvl").Set("data", []byte{4})))
	require.Nil(t, w.Flush())

	var got []container.Asset
	for a, err := range container.Assets(stream.NewReader(&buf, stream.CBOR)) {
		require.Nil(t, err)
		got = append(got, a)
	}
	require.Equal(t, got, []container.Asset{asset, {FileName: "b.tvl", Data: []byte{4}}})
}
