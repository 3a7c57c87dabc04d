// Package tvl holds the model shared by the packed image pipeline: decoded images, collections,
// the error taxonomy, configuration and metrics.
//
// The pipeline parses packed containers (see package container), classifies and decodes their
// image payloads (package palette), persists them in batches (package ingest) and renders them
// on demand (package transcode).
package tvl

import "github.com/teenjuna/tvl/layout"

// DataType tags the payload of a stored image.
type DataType string

const (
	DataPalette     DataType = "palette"
	DataRaw         DataType = "raw"
	DataUnsupported DataType = "unsupported"
)

// Source identifies the asset a container was extracted from.
type Source struct {
	FileName    string
	Description string
}

// Payload is the decoded content of an image record. It is either [Palette] or [Raw].
type Payload interface {
	DataType() DataType
	payload()
}

// Palette is a palette-indexed image: Size RGB triples followed by one palette index per pixel.
type Palette struct {
	Size    uint8
	Colors  []byte
	Indices []byte
}

func (Palette) DataType() DataType { return DataPalette }
func (Palette) payload()           {}

// Raw is an embedded file stored as is.
type Raw struct {
	Bytes []byte
}

func (Raw) DataType() DataType { return DataRaw }
func (Raw) payload()           {}

// DecodedImage is one classified image record of a container.
type DecodedImage struct {
	Source  Source
	Record  layout.Record
	Payload Payload
}

// Collection groups every image decoded from one source asset.
type Collection struct {
	ID          string `json:"id"`
	FileName    string `json:"fileName"`
	Description string `json:"description"`
}

// ImageSummary is the listing form of a stored image.
type ImageSummary struct {
	ID       string   `json:"id"`
	FileName string   `json:"fileName"`
	DataType DataType `json:"dataType"`
}
