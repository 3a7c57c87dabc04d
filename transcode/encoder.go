package transcode

import (
	"image"
	"io"

	"github.com/HugoSmits86/nativewebp"
)

// Encoder turns a rasterized image into a file format.
type Encoder interface {
	Encode(w io.Writer, img image.Image) error
	// ContentType is the media type of the encoded bytes.
	ContentType() string
}

// WebP encodes lossless WebP.
type WebP struct {
	// Extended selects the extended file format (VP8X chunk) over the simple one.
	Extended bool
}

var _ Encoder = WebP{}

func (e WebP) Encode(w io.Writer, img image.Image) error {
	return nativewebp.Encode(w, img, &nativewebp.Options{UseExtendedFormat: e.Extended})
}

func (WebP) ContentType() string {
	return "image/webp"
}
