package container

import (
	"fmt"
	"iter"

	"github.com/teenjuna/tvl"
	"github.com/teenjuna/tvl/layout"
	"github.com/teenjuna/tvl/stream"
)

// ImageMap encodes img as an element of the decoded-image stream.
func ImageMap(img *tvl.DecodedImage) *stream.Map {
	r := img.Record

	source := stream.NewMap().
		Set("fileName", img.Source.FileName).
		Set("description", img.Source.Description)

	data := stream.NewMap().
		Set("offset", uint64(r.Offset)).
		Set("width", uint64(r.Width)).
		Set("height", uint64(r.Height)).
		Set("contentSize", uint64(r.ContentSize)).
		Set("options", uint64(r.Options)).
		Set("reserved1", uint64(r.Reserved[0])).
		Set("reserved2", uint64(r.Reserved[1])).
		Set("reserved3", uint64(r.Reserved[2])).
		Set("fileName", r.FileName)

	image := stream.NewMap().Set("type", string(img.Payload.DataType()))
	switch p := img.Payload.(type) {
	case tvl.Palette:
		image.
			Set("paletteSize", uint64(p.Size)).
			Set("colorPalette", p.Colors).
			Set("indexedColors", p.Indices)
	case tvl.Raw:
		image.Set("data", p.Bytes)
	}

	return stream.NewMap().
		Set("source", source).
		Set("data", data).
		Set("image", image)
}

// ImageFromMap decodes an element of the decoded-image stream.
func ImageFromMap(m *stream.Map) (*tvl.DecodedImage, error) {
	var img tvl.DecodedImage

	source, err := m.Map("source")
	if err != nil {
		return nil, err
	}
	if img.Source.FileName, err = source.String("fileName"); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if img.Source.Description, err = source.String("description"); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	data, err := m.Map("data")
	if err != nil {
		return nil, err
	}
	if img.Record, err = recordFromMap(data); err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}

	image, err := m.Map("image")
	if err != nil {
		return nil, err
	}
	if img.Payload, err = payloadFromMap(image); err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}

	return &img, nil
}

func recordFromMap(m *stream.Map) (layout.Record, error) {
	var (
		r    layout.Record
		errs error
	)
	field := func(key string, bits int) uint64 {
		if errs != nil {
			return 0
		}
		var n uint64
		n, errs = m.UintN(key, bits)
		return n
	}

	r.Offset = uint32(field("offset", 32))
	r.Width = uint16(field("width", 16))
	r.Height = uint16(field("height", 16))
	r.ContentSize = uint32(field("contentSize", 32))
	r.Options = layout.Options(field("options", 8))
	r.Reserved[0] = uint8(field("reserved1", 8))
	r.Reserved[1] = uint8(field("reserved2", 8))
	r.Reserved[2] = uint8(field("reserved3", 8))
	if errs != nil {
		return layout.Record{}, errs
	}

	name, err := m.String("fileName")
	if err != nil {
		return layout.Record{}, err
	}
	r.FileName = name

	return r, nil
}

func payloadFromMap(m *stream.Map) (tvl.Payload, error) {
	typ, err := m.String("type")
	if err != nil {
		return nil, err
	}

	switch tvl.DataType(typ) {
	case tvl.DataPalette:
		size, err := m.UintN("paletteSize", 8)
		if err != nil {
			return nil, err
		}
		colors, err := m.Bytes("colorPalette")
		if err != nil {
			return nil, err
		}
		indices, err := m.Bytes("indexedColors")
		if err != nil {
			return nil, err
		}
		return tvl.Palette{Size: uint8(size), Colors: colors, Indices: indices}, nil
	case tvl.DataRaw:
		data, err := m.Bytes("data")
		if err != nil {
			return nil, err
		}
		return tvl.Raw{Bytes: data}, nil
	default:
		return nil, fmt.Errorf("%w: image type %q", tvl.ErrUnsupportedFormat, typ)
	}
}

// Images reads the decoded-image stream from r.
func Images(r stream.Reader) iter.Seq2[*tvl.DecodedImage, error] {
	return func(yield func(*tvl.DecodedImage, error) bool) {
		for m, err := range stream.Elements(r) {
			if err != nil {
				yield(nil, fmt.Errorf("read image: %w", err))
				return
			}
			img, err := ImageFromMap(m)
			if err != nil {
				yield(nil, fmt.Errorf("decode image: %w", err))
				return
			}
			if !yield(img, nil) {
				return
			}
		}
	}
}
