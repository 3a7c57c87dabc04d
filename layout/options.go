package layout

import "strings"

// Options is the bit flag byte of an image record.
type Options uint8

const (
	HasTransparency Options = 1 << 0
	IsJPEGFileMaybe Options = 1 << 2
	IsCustomFormat  Options = 1 << 4

	known = HasTransparency | IsJPEGFileMaybe | IsCustomFormat
)

var names = [8]string{
	0: "hasTransparency",
	2: "isJPEGFileMaybe",
	4: "isCustomFormat",
}

// Has reports whether every bit of flag is set.
func (o Options) Has(flag Options) bool {
	return o&flag == flag
}

// Unknown returns the bits without a known meaning. They are kept as read.
func (o Options) Unknown() Options {
	return o &^ known
}

func (o Options) String() string {
	if o == 0 {
		return "none"
	}
	var parts []string
	for i, name := range names {
		if o&(1<<i) == 0 {
			continue
		}
		if name == "" {
			name = "unknown" + string(rune('0'+i))
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, "|")
}
