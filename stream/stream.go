// Package stream reads and writes sequences of self-describing nested values.
//
// Sources decode lazily: a map is handed out as a [Compound] whose entries are decoded on
// demand, an array as a [List]. [Drain] turns such values into a fully materialized tree of
// [*Map], []any and scalars. Two encodings are supported, CBOR sequences (RFC 8742) and
// concatenated MessagePack values, optionally wrapped in a zlib stream.
package stream

import (
	"errors"
	"fmt"
	"io"
	"iter"
)

// ErrByteStream is returned by [Drain] when it meets a chunked byte string that wasn't
// materialized by the decoder. It means the encoder and decoder disagree about the format.
var ErrByteStream = errors.New("unexpected byte stream in nested value")

// Compound is a map value whose entries are decoded on demand. Next returns io.EOF after the
// last entry. A nested value returned by Next must be drained before Next is called again.
type Compound interface {
	Next() (key string, value any, err error)
}

// List is an array value whose items are decoded on demand. Item returns io.EOF after the last
// item.
type List interface {
	Item() (any, error)
}

// ByteStream is a byte string delivered in chunks.
type ByteStream interface {
	io.Reader
	byteStream()
}

// Reader produces the top-level values of a sequence. Next returns io.EOF at the end.
type Reader interface {
	Next() (any, error)
}

// Writer encodes materialized maps as a sequence.
type Writer interface {
	Write(m *Map) error
	Flush() error
}

// Format selects the wire encoding of a sequence.
type Format string

const (
	CBOR        Format = "cbor"
	MessagePack Format = "msgpack"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case CBOR, MessagePack:
		return f, nil
	default:
		return "", fmt.Errorf("unknown stream format %q", s)
	}
}

// NewReader returns a lazy decoder for r.
func NewReader(r io.Reader, f Format) Reader {
	if f == MessagePack {
		return newMsgpReader(r)
	}
	return newCBORReader(r)
}

// NewWriter returns an encoder writing to w. Flush must be called once all maps are written.
func NewWriter(w io.Writer, f Format) Writer {
	if f == MessagePack {
		return newMsgpWriter(w)
	}
	return newCBORWriter(w)
}

// Drain recursively reads every lazily decoded part of v.
func Drain(v any) (any, error) {
	switch v := v.(type) {
	case Compound:
		return DrainMap(v)
	case List:
		items := make([]any, 0)
		for {
			item, err := v.Item()
			if err == io.EOF {
				return items, nil
			} else if err != nil {
				return nil, err
			}
			drained, err := Drain(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", len(items), err)
			}
			items = append(items, drained)
		}
	case ByteStream:
		return nil, ErrByteStream
	default:
		return v, nil
	}
}

// DrainMap reads every entry of c, draining nested values in place.
func DrainMap(c Compound) (*Map, error) {
	m := NewMap()
	for {
		key, value, err := c.Next()
		if err == io.EOF {
			return m, nil
		} else if err != nil {
			return nil, err
		}
		drained, err := Drain(value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		m.Set(key, drained)
	}
}

// Elements drains every top-level value of r. Each of them must be a map. Iteration stops
// after the first error.
func Elements(r Reader) iter.Seq2[*Map, error] {
	return func(yield func(*Map, error) bool) {
		for i := 0; ; i++ {
			v, err := r.Next()
			if err == io.EOF {
				return
			} else if err != nil {
				yield(nil, fmt.Errorf("element %d: %w", i, err))
				return
			}

			drained, err := Drain(v)
			if err != nil {
				yield(nil, fmt.Errorf("element %d: %w", i, err))
				return
			}

			m, ok := drained.(*Map)
			if !ok {
				yield(nil, fmt.Errorf("element %d is %T, want map", i, drained))
				return
			}

			if !yield(m, nil) {
				return
			}
		}
	}
}
