package stream

import (
	"fmt"
	"io"

	"github.com/tinylib/msgp/msgp"
)

type msgpReader struct {
	r *msgp.Reader
}

func newMsgpReader(r io.Reader) *msgpReader {
	return &msgpReader{r: msgp.NewReader(r)}
}

func (r *msgpReader) Next() (any, error) {
	return readMsgp(r.r)
}

// readMsgp reads one value. Maps and arrays only have their header read, their items are read
// by the returned Compound or List.
func readMsgp(r *msgp.Reader) (any, error) {
	t, err := r.NextType()
	if err != nil {
		return nil, err
	}

	switch t {
	case msgp.MapType:
		n, err := r.ReadMapHeader()
		if err != nil {
			return nil, err
		}
		return &msgpCompound{r: r, remaining: n}, nil
	case msgp.ArrayType:
		n, err := r.ReadArrayHeader()
		if err != nil {
			return nil, err
		}
		return &msgpList{r: r, remaining: n}, nil
	case msgp.StrType:
		return r.ReadString()
	case msgp.BinType:
		return r.ReadBytes(nil)
	case msgp.IntType:
		return r.ReadInt64()
	case msgp.UintType:
		return r.ReadUint64()
	case msgp.Float64Type:
		return r.ReadFloat64()
	case msgp.Float32Type:
		f, err := r.ReadFloat32()
		return float64(f), err
	case msgp.BoolType:
		return r.ReadBool()
	case msgp.NilType:
		return nil, r.ReadNil()
	default:
		return nil, fmt.Errorf("msgpack type %s is not supported", t)
	}
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

type msgpCompound struct {
	r         *msgp.Reader
	remaining uint32
}

func (c *msgpCompound) Next() (string, any, error) {
	if c.remaining == 0 {
		return "", nil, io.EOF
	}
	c.remaining--

	key, err := c.r.ReadString()
	if err != nil {
		return "", nil, fmt.Errorf("map key: %w", unexpected(err))
	}
	value, err := readMsgp(c.r)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", key, unexpected(err))
	}
	return key, value, nil
}

type msgpList struct {
	r         *msgp.Reader
	remaining uint32
}

func (l *msgpList) Item() (any, error) {
	if l.remaining == 0 {
		return nil, io.EOF
	}
	l.remaining--

	v, err := readMsgp(l.r)
	if err != nil {
		return nil, unexpected(err)
	}
	return v, nil
}

type msgpWriter struct {
	w *msgp.Writer
}

func newMsgpWriter(w io.Writer) *msgpWriter {
	return &msgpWriter{w: msgp.NewWriter(w)}
}

func (w *msgpWriter) Write(m *Map) error {
	return writeMsgp(w.w, m)
}

func (w *msgpWriter) Flush() error {
	return w.w.Flush()
}

func writeMsgp(w *msgp.Writer, v any) error {
	switch v := v.(type) {
	case *Map:
		if err := w.WriteMapHeader(uint32(v.Len())); err != nil {
			return err
		}
		for _, key := range v.keys {
			if err := w.WriteString(key); err != nil {
				return err
			}
			if err := writeMsgp(w, v.values[key]); err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
		}
		return nil
	case []any:
		if err := w.WriteArrayHeader(uint32(len(v))); err != nil {
			return err
		}
		for _, item := range v {
			if err := writeMsgp(w, item); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return w.WriteNil()
	case string:
		return w.WriteString(v)
	case []byte:
		return w.WriteBytes(v)
	case bool:
		return w.WriteBool(v)
	case int:
		return w.WriteInt64(int64(v))
	case int64:
		return w.WriteInt64(v)
	case uint8:
		return w.WriteUint64(uint64(v))
	case uint16:
		return w.WriteUint64(uint64(v))
	case uint32:
		return w.WriteUint64(uint64(v))
	case uint64:
		return w.WriteUint64(v)
	case float64:
		return w.WriteFloat64(v)
	default:
		return fmt.Errorf("msgpack can't encode %T", v)
	}
}
