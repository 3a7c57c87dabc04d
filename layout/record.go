package layout

import (
	"encoding/binary"
	"fmt"
)

// MagicLen is the length of the container header tag.
const MagicLen = 4

var HeaderLayout = Layout{
	Name: "header",
	Fields: []Field{
		{Name: "magic", Kind: FixedString, Len: MagicLen},
	},
}

var RecordLayout = Layout{
	Name: "record",
	Fields: []Field{
		{Name: "offset", Kind: Uint32},
		{Name: "width", Kind: Uint16},
		{Name: "height", Kind: Uint16},
		{Name: "contentSize", Kind: Uint32},
		{Name: "options", Kind: Flags8},
		{Name: "reserved1", Kind: Uint8},
		{Name: "reserved2", Kind: Uint8},
		{Name: "reserved3", Kind: Uint8},
		{Name: "fileName", Kind: CString},
	},
}

// Header is the fixed container header. The magic tag is kept verbatim and is not validated
// here.
type Header struct {
	Magic string
}

func ReadHeader(buf []byte, cursor int) (Header, int, error) {
	values, cursor, err := HeaderLayout.Read(buf, cursor)
	if err != nil {
		return Header{}, cursor, err
	}
	return Header{Magic: values.String("magic")}, cursor, nil
}

// Append encodes the header. Magic is padded or truncated to [MagicLen] bytes.
func (h Header) Append(dst []byte) []byte {
	var magic [MagicLen]byte
	copy(magic[:], h.Magic)
	return append(dst, magic[:]...)
}

// Record is the fixed part of an image record. It is followed by ContentSize payload bytes.
type Record struct {
	// Offset is the position of the record inside the container as reported by the record.
	Offset      uint32
	Width       uint16
	Height      uint16
	ContentSize uint32
	Options     Options
	// Reserved holds three bytes with no known meaning. They are kept as read.
	Reserved [3]uint8
	FileName string
}

func ReadRecord(buf []byte, cursor int) (Record, int, error) {
	values, cursor, err := RecordLayout.Read(buf, cursor)
	if err != nil {
		return Record{}, cursor, err
	}
	r := Record{
		Offset:      uint32(values.Uint("offset")),
		Width:       uint16(values.Uint("width")),
		Height:      uint16(values.Uint("height")),
		ContentSize: uint32(values.Uint("contentSize")),
		Options:     Options(values.Uint("options")),
		Reserved: [3]uint8{
			uint8(values.Uint("reserved1")),
			uint8(values.Uint("reserved2")),
			uint8(values.Uint("reserved3")),
		},
		FileName: values.String("fileName"),
	}
	return r, cursor, nil
}

// IsSentinel reports whether the record marks the logical end of the container.
func (r Record) IsSentinel() bool {
	return r.Width == 0 && r.Height == 0 && r.ContentSize == 0
}

// Pixels returns width*height.
func (r Record) Pixels() int {
	return int(r.Width) * int(r.Height)
}

// Size returns the encoded size of the record without its payload.
func (r Record) Size() int {
	fixed, _ := Layout{Fields: RecordLayout.Fields[:len(RecordLayout.Fields)-1]}.SizeOf()
	return fixed + len(r.FileName) + 1
}

// Append encodes the record without its payload.
func (r Record) Append(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, r.Offset)
	dst = binary.LittleEndian.AppendUint16(dst, r.Width)
	dst = binary.LittleEndian.AppendUint16(dst, r.Height)
	dst = binary.LittleEndian.AppendUint32(dst, r.ContentSize)
	dst = append(dst, byte(r.Options))
	dst = append(dst, r.Reserved[:]...)
	dst = append(dst, r.FileName...)
	return append(dst, 0)
}

func (r Record) String() string {
	return fmt.Sprintf(
		"%s@%d (%dx%d, %d bytes, %s)",
		r.FileName, r.Offset, r.Width, r.Height, r.ContentSize, r.Options,
	)
}
