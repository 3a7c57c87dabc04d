package stream

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

const (
	majorBytes = 2
	majorArray = 4
	majorMap   = 5

	infoIndefinite = 31
	breakCode      = 0xff
)

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("stream: CBOR encoder initialization failed: " + err.Error())
	}

	cborDecMode, err = cbor.DecOptions{
		MaxArrayElements: 1 << 24,
		MaxMapPairs:      1 << 24,
	}.DecMode()
	if err != nil {
		panic("stream: CBOR decoder initialization failed: " + err.Error())
	}
}

// MarshalCBOR encodes m as a definite-length map keeping the field order.
func (m *Map) MarshalCBOR() ([]byte, error) {
	buf := appendHead(nil, majorMap, uint64(m.Len()))
	for _, key := range m.keys {
		k, err := cborEncMode.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := cborEncMode.Marshal(m.values[key])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		buf = append(buf, k...)
		buf = append(buf, v...)
	}
	return buf, nil
}

type cborReader struct {
	dec *cbor.Decoder
}

func newCBORReader(r io.Reader) *cborReader {
	return &cborReader{dec: cborDecMode.NewDecoder(r)}
}

func (r *cborReader) Next() (any, error) {
	var raw cbor.RawMessage
	if err := r.dec.Decode(&raw); err != nil {
		return nil, err
	}
	return lazyCBOR(raw)
}

// lazyCBOR defers decoding of containers: maps and arrays are walked item by item and
// indefinite-length byte strings are left as streams.
func lazyCBOR(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, io.ErrUnexpectedEOF
	}

	major, info := raw[0]>>5, raw[0]&0x1f
	switch {
	case major == majorMap, major == majorArray:
		n, size, err := head(raw)
		if err != nil {
			return nil, err
		}
		items := &cborItems{rest: raw[size:], remaining: n}
		if major == majorMap {
			return &cborCompound{items: items}, nil
		}
		return &cborList{items: items}, nil
	case major == majorBytes && info == infoIndefinite:
		return &cborByteStream{raw: raw}, nil
	default:
		var v any
		if err := cborDecMode.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// cborItems walks the encoded items of a map or array. remaining is -1 for indefinite-length
// containers that end with a break code.
type cborItems struct {
	rest      []byte
	remaining int
}

func (it *cborItems) done() bool {
	if it.remaining < 0 && len(it.rest) > 0 && it.rest[0] == breakCode {
		it.remaining = 0
	}
	return it.remaining == 0
}

func (it *cborItems) next(v any) error {
	rest, err := cborDecMode.UnmarshalFirst(it.rest, v)
	if err != nil {
		return err
	}
	it.rest = rest
	return nil
}

func (it *cborItems) raw() (any, error) {
	var raw cbor.RawMessage
	if err := it.next(&raw); err != nil {
		return nil, err
	}
	if it.remaining > 0 {
		it.remaining--
	}
	return lazyCBOR(raw)
}

type cborCompound struct {
	items *cborItems
}

func (c *cborCompound) Next() (string, any, error) {
	if c.items.done() {
		return "", nil, io.EOF
	}
	var key string
	if err := c.items.next(&key); err != nil {
		return "", nil, fmt.Errorf("map key: %w", err)
	}
	value, err := c.items.raw()
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", key, err)
	}
	return key, value, nil
}

type cborList struct {
	items *cborItems
}

func (l *cborList) Item() (any, error) {
	if l.items.done() {
		return nil, io.EOF
	}
	return l.items.raw()
}

type cborByteStream struct {
	raw  []byte
	data []byte
	read bool
}

func (s *cborByteStream) byteStream() {}

func (s *cborByteStream) Read(p []byte) (int, error) {
	if !s.read {
		if err := cborDecMode.Unmarshal(s.raw, &s.data); err != nil {
			return 0, err
		}
		s.read = true
	}
	if len(s.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.data)
	s.data = s.data[n:]
	return n, nil
}

func head(raw []byte) (n int, size int, err error) {
	info := raw[0] & 0x1f
	switch {
	case info < 24:
		return int(info), 1, nil
	case info == 24 && len(raw) >= 2:
		return int(raw[1]), 2, nil
	case info == 25 && len(raw) >= 3:
		return int(binary.BigEndian.Uint16(raw[1:])), 3, nil
	case info == 26 && len(raw) >= 5:
		return int(binary.BigEndian.Uint32(raw[1:])), 5, nil
	case info == 27 && len(raw) >= 9:
		return int(binary.BigEndian.Uint64(raw[1:])), 9, nil
	case info == infoIndefinite:
		return -1, 1, nil
	default:
		return 0, 0, fmt.Errorf("malformed CBOR head 0x%02x", raw[0])
	}
}

func appendHead(dst []byte, major byte, n uint64) []byte {
	m := major << 5
	switch {
	case n < 24:
		return append(dst, m|byte(n))
	case n <= 0xff:
		return append(dst, m|24, byte(n))
	case n <= 0xffff:
		return binary.BigEndian.AppendUint16(append(dst, m|25), uint16(n))
	case n <= 0xffffffff:
		return binary.BigEndian.AppendUint32(append(dst, m|26), uint32(n))
	default:
		return binary.BigEndian.AppendUint64(append(dst, m|27), n)
	}
}

type cborWriter struct {
	enc *cbor.Encoder
}

func newCBORWriter(w io.Writer) *cborWriter {
	return &cborWriter{enc: cborEncMode.NewEncoder(w)}
}

func (w *cborWriter) Write(m *Map) error {
	return w.enc.Encode(m)
}

func (w *cborWriter) Flush() error {
	return nil
}

// MarshalCBOR encodes v with the deterministic encoder shared by the package.
func MarshalCBOR(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}
