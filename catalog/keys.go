package catalog

import "strings"

const (
	// CollectionsKey is the hash of every collection, keyed by collection id.
	CollectionsKey = "collections"

	collectionPrefix = "collection:"
	imagePrefix      = "image:"
)

// Image hash fields.
const (
	FieldFileName      = "fileName"
	FieldWidth         = "width"
	FieldHeight        = "height"
	FieldContentSize   = "contentSize"
	FieldOptions       = "options"
	FieldReserved      = "reserved"
	FieldDataType      = "dataType"
	FieldPaletteSize   = "paletteSize"
	FieldColorPalette  = "colorPalette"
	FieldIndexedColors = "indexedColors"
	FieldData          = "data"
	FieldWebP          = "webp"
)

// CollectionKey is the set of image keys of a collection.
func CollectionKey(id string) string {
	return collectionPrefix + id
}

// ImageKey is the hash of an image.
func ImageKey(id string) string {
	return imagePrefix + id
}

// ImageID extracts the id from an image key.
func ImageID(key string) (string, bool) {
	return strings.CutPrefix(key, imagePrefix)
}
