// Package palette decodes palette-indexed image payloads into RGBA pixels and classifies
// payloads that are not palette-indexed.
package palette

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"

	"github.com/teenjuna/tvl"
	"github.com/teenjuna/tvl/layout"
)

// JPEGSignature is the start of a JPEG file whose first segment is a quantization table.
var JPEGSignature = [4]byte{0xFF, 0xD8, 0xFF, 0xDB}

var zlibPool sync.Pool

// inflate decompresses blob, reading at most limit+1 bytes so that oversized output can be
// detected without materializing it.
func inflate(blob []byte, limit int) ([]byte, error) {
	src := bytes.NewReader(blob)

	var zr io.ReadCloser
	if pooled, ok := zlibPool.Get().(io.ReadCloser); ok {
		if err := pooled.(zlib.Resetter).Reset(src, nil); err != nil {
			zlibPool.Put(pooled)
			return nil, err
		}
		zr = pooled
	} else {
		r, err := zlib.NewReader(src)
		if err != nil {
			return nil, err
		}
		zr = r
	}
	defer zlibPool.Put(zr)

	out, err := io.ReadAll(io.LimitReader(zr, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		return out, nil
	}
	if err := zr.Close(); err != nil {
		return nil, err
	}

	return out, nil
}

// DecodePalette inflates blob and splits it into size RGB triples and the pixel indices that
// follow them. The inflated data must hold exactly pixels indices; anything else is
// [tvl.ErrMalformedPayload].
func DecodePalette(size uint8, pixels int, blob []byte) (colors, indices []byte, err error) {
	split := 3 * int(size)
	want := split + pixels

	data, err := inflate(blob, want)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", tvl.ErrDecompression, err)
	}

	if len(data) != want {
		if len(data) > want {
			return nil, nil, fmt.Errorf(
				"%w: inflated data exceeds %d palette entries and %d pixels",
				tvl.ErrMalformedPayload, size, pixels,
			)
		}
		return nil, nil, fmt.Errorf(
			"%w: %d inflated bytes, want %d palette entries and %d pixels",
			tvl.ErrMalformedPayload, len(data), size, pixels,
		)
	}

	return data[:split:split], data[split:], nil
}

// Rasterize converts palette indices into a straight-alpha RGBA buffer of width*height*4
// bytes.
//
// With transparent set, palette index 0 is the background slot and its pixels stay fully
// transparent zeroes whatever the first palette entry holds. Indices past the end of the
// palette and pixels without an index are opaque black.
func Rasterize(width, height int, colors, indices []byte, transparent bool) []byte {
	pixels := width * height
	pix := make([]byte, pixels*4)

	for i := range pixels {
		o := i * 4
		if i >= len(indices) {
			pix[o+3] = 0xff
			continue
		}

		p := int(indices[i])
		if p == 0 && transparent {
			continue
		}

		if c := p * 3; c+3 <= len(colors) {
			copy(pix[o:o+3], colors[c:c+3])
		}
		pix[o+3] = 0xff
	}

	return pix
}

// Image wraps a buffer produced by [Rasterize] without copying it.
func Image(width, height int, pix []byte) *image.NRGBA {
	return &image.NRGBA{
		Pix:    pix,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
}

// Classify determines the type of a payload that isn't palette-indexed.
//
// A payload with the JPEG signature is raw and must carry the JPEG flag, otherwise the record
// was misread and [tvl.ErrFormatIntegrity] is returned. Anything else is unsupported and
// reported with [tvl.ErrUnsupportedFormat].
func Classify(options layout.Options, payload []byte) (tvl.DataType, error) {
	if bytes.HasPrefix(payload, JPEGSignature[:]) {
		if !options.Has(layout.IsJPEGFileMaybe) {
			return "", fmt.Errorf(
				"%w: JPEG payload without JPEG flag (options %s)",
				tvl.ErrFormatIntegrity, options,
			)
		}
		return tvl.DataRaw, nil
	}

	return tvl.DataUnsupported, fmt.Errorf(
		"%w: signature %s", tvl.ErrUnsupportedFormat, Signature(payload),
	)
}

// Signature returns the first four payload bytes as hex.
func Signature(payload []byte) string {
	return hex.EncodeToString(payload[:min(len(payload), 4)])
}
