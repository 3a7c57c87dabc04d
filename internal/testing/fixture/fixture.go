// Package fixture builds synthetic containers for tests.
package fixture

import (
	"bytes"

	"github.com/klauspost/compress/zlib"

	"github.com/teenjuna/tvl/layout"
)

// Image describes one record of a synthetic container.
type Image struct {
	Width    uint16
	Height   uint16
	Options  layout.Options
	Reserved [3]uint8
	FileName string

	PaletteSize uint8
	Colors      []byte
	Indices     []byte

	// Payload is written as is when not nil instead of a palette payload.
	Payload []byte
	// Offset replaces the record offset when not nil.
	Offset *uint32
}

func Deflate(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		panic(err)
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PalettePayload encodes a palette-indexed payload.
func PalettePayload(size uint8, colors, indices []byte) []byte {
	inflated := append(append([]byte{}, colors...), indices...)
	return append([]byte{size}, Deflate(inflated)...)
}

// Container encodes a container with the given records.
func Container(magic string, images ...Image) []byte {
	buf := layout.Header{Magic: magic}.Append(nil)
	for _, img := range images {
		payload := img.Payload
		if payload == nil {
			payload = PalettePayload(img.PaletteSize, img.Colors, img.Indices)
		}

		offset := uint32(len(buf))
		if img.Offset != nil {
			offset = *img.Offset
		}

		buf = layout.Record{
			Offset:      offset,
			Width:       img.Width,
			Height:      img.Height,
			ContentSize: uint32(len(payload)),
			Options:     img.Options,
			Reserved:    img.Reserved,
			FileName:    img.FileName,
		}.Append(buf)
		buf = append(buf, payload...)
	}
	return buf
}

// Sentinel returns the zero-sized record that ends a container early.
func Sentinel() Image {
	return Image{Payload: []byte{}}
}

// Solid returns a width x height palette image where pixel i has index i % size.
func Solid(name string, width, height uint16, size uint8) Image {
	colors := make([]byte, 3*int(size))
	for i := range colors {
		colors[i] = byte(i * 7)
	}
	indices := make([]byte, int(width)*int(height))
	for i := range indices {
		indices[i] = byte(i % int(size))
	}
	return Image{
		Width:       width,
		Height:      height,
		Options:     layout.IsCustomFormat,
		FileName:    name,
		PaletteSize: size,
		Colors:      colors,
		Indices:     indices,
	}
}
