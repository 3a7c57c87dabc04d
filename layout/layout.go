// Package layout describes the byte layout of packed image containers.
//
// A container is a fixed header followed by image records packed back to back. Layouts are
// declared as ordered field lists; every multi-byte integer is little-endian. Reads thread an
// explicit cursor through the buffer because the cursor itself is validated against the
// offset stored in each record.
package layout

import (
	"encoding/binary"
	"fmt"
)

// Kind is the wire type of a single field.
type Kind uint8

const (
	Uint8 Kind = iota + 1
	Uint16
	Uint32
	// Flags8 is a single byte of bit flags, see [Options].
	Flags8
	// FixedString is a string of exactly Field.Len bytes, stored verbatim.
	FixedString
	// CString is a nul-terminated string. The terminator is consumed but not stored.
	CString
)

func (k Kind) String() string {
	switch k {
	case Uint8:
		return "u8"
	case Uint16:
		return "u16"
	case Uint32:
		return "u32"
	case Flags8:
		return "flags8"
	case FixedString:
		return "string"
	case CString:
		return "cstring"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field is a named field of a layout.
type Field struct {
	Name string
	Kind Kind
	// Len is the byte length of FixedString fields and ignored otherwise.
	Len int
}

// Size returns the encoded size of the field. It returns false for variable-size fields.
func (f Field) Size() (int, bool) {
	switch f.Kind {
	case Uint8, Flags8:
		return 1, true
	case Uint16:
		return 2, true
	case Uint32:
		return 4, true
	case FixedString:
		return f.Len, true
	default:
		return 0, false
	}
}

// Layout is an ordered list of fields read back to back.
type Layout struct {
	Name   string
	Fields []Field
}

// SizeOf returns the encoded size of the layout. It returns false if any field has a variable
// size.
func (l Layout) SizeOf() (int, bool) {
	var total int
	for _, f := range l.Fields {
		size, ok := f.Size()
		if !ok {
			return 0, false
		}
		total += size
	}
	return total, true
}

// Value is a decoded field. Integer and flag fields are stored in Uint, string fields in Str.
type Value struct {
	Field Field
	Uint  uint64
	Str   string
}

// Values holds decoded fields in layout order.
type Values []Value

// Uint returns the integer value of the named field, or 0 if there is no such field.
func (vs Values) Uint(name string) uint64 {
	for _, v := range vs {
		if v.Field.Name == name {
			return v.Uint
		}
	}
	return 0
}

// String returns the string value of the named field, or "" if there is no such field.
func (vs Values) String(name string) string {
	for _, v := range vs {
		if v.Field.Name == name {
			return v.Str
		}
	}
	return ""
}

// Read decodes the layout from buf starting at cursor. It returns the decoded values and the
// cursor positioned right after the last field.
func (l Layout) Read(buf []byte, cursor int) (Values, int, error) {
	values := make(Values, 0, len(l.Fields))
	for _, f := range l.Fields {
		var (
			v   = Value{Field: f}
			err error
		)
		switch f.Kind {
		case Uint8, Flags8:
			var n uint8
			n, cursor, err = ReadUint8(buf, cursor)
			v.Uint = uint64(n)
		case Uint16:
			var n uint16
			n, cursor, err = ReadUint16(buf, cursor)
			v.Uint = uint64(n)
		case Uint32:
			var n uint32
			n, cursor, err = ReadUint32(buf, cursor)
			v.Uint = uint64(n)
		case FixedString:
			var b []byte
			b, cursor, err = ReadBytes(buf, cursor, f.Len)
			v.Str = string(b)
		case CString:
			v.Str, cursor, err = ReadCString(buf, cursor)
		default:
			err = fmt.Errorf("unknown kind %s", f.Kind)
		}
		if err != nil {
			return nil, cursor, fmt.Errorf("%s.%s: %w", l.Name, f.Name, err)
		}
		values = append(values, v)
	}
	return values, cursor, nil
}

// BoundsError is returned when a read would go past the end of the buffer.
type BoundsError struct {
	Offset int
	Need   int
	Len    int
}

func (e *BoundsError) Error() string {
	if e.Need < 0 {
		return fmt.Sprintf("no string terminator after offset %d in %d bytes", e.Offset, e.Len)
	}
	return fmt.Sprintf("need %d bytes at offset %d, buffer has %d", e.Need, e.Offset, e.Len)
}

func check(buf []byte, cursor, n int) error {
	if cursor < 0 || n < 0 || cursor > len(buf) || len(buf)-cursor < n {
		return &BoundsError{Offset: cursor, Need: n, Len: len(buf)}
	}
	return nil
}

func ReadUint8(buf []byte, cursor int) (uint8, int, error) {
	if err := check(buf, cursor, 1); err != nil {
		return 0, cursor, err
	}
	return buf[cursor], cursor + 1, nil
}

func ReadUint16(buf []byte, cursor int) (uint16, int, error) {
	if err := check(buf, cursor, 2); err != nil {
		return 0, cursor, err
	}
	return binary.LittleEndian.Uint16(buf[cursor:]), cursor + 2, nil
}

func ReadUint32(buf []byte, cursor int) (uint32, int, error) {
	if err := check(buf, cursor, 4); err != nil {
		return 0, cursor, err
	}
	return binary.LittleEndian.Uint32(buf[cursor:]), cursor + 4, nil
}

// ReadBytes returns the next n bytes. The returned slice aliases buf.
func ReadBytes(buf []byte, cursor, n int) ([]byte, int, error) {
	if err := check(buf, cursor, n); err != nil {
		return nil, cursor, err
	}
	return buf[cursor : cursor+n : cursor+n], cursor + n, nil
}

func ReadCString(buf []byte, cursor int) (string, int, error) {
	if err := check(buf, cursor, 0); err != nil {
		return "", cursor, err
	}
	for i := cursor; i < len(buf); i++ {
		if buf[i] == 0 {
			return string(buf[cursor:i]), i + 1, nil
		}
	}
	return "", cursor, &BoundsError{Offset: cursor, Need: -1, Len: len(buf)}
}
