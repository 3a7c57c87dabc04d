// Package catalog maps collections and images onto store keys.
//
// The collections hash holds one JSON document per collection. Each collection has a set of image
// keys, and each image is a hash of its record fields and payload. Numbers are stored as decimal
// text and the options byte is kept whole, including the bits without a known meaning.
package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/teenjuna/tvl"
	"github.com/teenjuna/tvl/internal"
	"github.com/teenjuna/tvl/layout"
	"github.com/teenjuna/tvl/store"
)

type Catalog struct {
	store *store.Client
}

func New(client *store.Client) *Catalog {
	return &Catalog{store: client}
}

func (c *Catalog) Store() *store.Client {
	return c.store
}

// Collections returns every collection ordered by id.
func (c *Catalog) Collections(ctx context.Context) ([]tvl.Collection, error) {
	fields, err := c.store.HGetAll(ctx, CollectionsKey)
	if err != nil {
		return nil, err
	}

	collections := make([]tvl.Collection, 0, len(fields))
	for id, data := range fields {
		var col tvl.Collection
		if err := json.Unmarshal(data, &col); err != nil {
			return nil, fmt.Errorf("collection %s: %w", id, err)
		}
		collections = append(collections, col)
	}
	slices.SortFunc(collections, func(a, b tvl.Collection) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return collections, nil
}

// Collection returns the collection with the given id or [tvl.ErrNotFound].
func (c *Catalog) Collection(ctx context.Context, id string) (tvl.Collection, error) {
	data, ok, err := c.store.HGet(ctx, CollectionsKey, id)
	if err != nil {
		return tvl.Collection{}, err
	}
	if !ok {
		return tvl.Collection{}, fmt.Errorf("collection %s: %w", id, tvl.ErrNotFound)
	}

	var col tvl.Collection
	if err := json.Unmarshal(data, &col); err != nil {
		return tvl.Collection{}, fmt.Errorf("collection %s: %w", id, err)
	}
	return col, nil
}

// CreateCollection stores a new collection for source with a fresh id.
func (c *Catalog) CreateCollection(ctx context.Context, source tvl.Source) (tvl.Collection, error) {
	col := tvl.Collection{
		ID:          internal.GenerateID(),
		FileName:    source.FileName,
		Description: source.Description,
	}

	data, err := json.Marshal(col)
	if err != nil {
		return tvl.Collection{}, err
	}
	if err := c.store.HSet(ctx, CollectionsKey, store.B(col.ID, data)); err != nil {
		return tvl.Collection{}, err
	}

	return col, nil
}

// DeleteCollection removes a collection with all of its images.
func (c *Catalog) DeleteCollection(ctx context.Context, id string) error {
	ids, err := c.ImageIDs(ctx, id)
	if err != nil {
		return err
	}

	p := c.store.Pipeline()
	for _, imageID := range ids {
		p.Del(ImageKey(imageID))
	}
	p.Del(CollectionKey(id))
	p.HDel(CollectionsKey, id)

	_, err = p.Exec(ctx)
	return err
}

// ImageIDs returns the ids of the images of a collection in ascending order.
func (c *Catalog) ImageIDs(ctx context.Context, collectionID string) ([]string, error) {
	members, err := c.store.SMembers(ctx, CollectionKey(collectionID))
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		id, ok := ImageID(m)
		if !ok {
			return nil, fmt.Errorf("collection %s: unexpected member %q", collectionID, m)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Images returns the summaries of the images of a collection in ascending id order.
func (c *Catalog) Images(ctx context.Context, collectionID string) ([]tvl.ImageSummary, error) {
	ids, err := c.ImageIDs(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []tvl.ImageSummary{}, nil
	}

	p := c.store.Pipeline()
	for _, id := range ids {
		p.HGet(ImageKey(id), FieldFileName).HGet(ImageKey(id), FieldDataType)
	}
	replies, err := p.Exec(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]tvl.ImageSummary, len(ids))
	for i, id := range ids {
		summaries[i] = tvl.ImageSummary{
			ID:       id,
			FileName: string(replies[i*2].Value),
			DataType: tvl.DataType(replies[i*2+1].Value),
		}
	}
	return summaries, nil
}

// Image is a stored image record.
type Image struct {
	ID          string
	FileName    string
	Width       uint16
	Height      uint16
	ContentSize uint32
	Options     layout.Options
	Reserved    [3]uint8
	DataType    tvl.DataType
	// Payload is nil when the data type has no payload fields.
	Payload tvl.Payload
}

// Image loads a stored image without its cached rendering. It returns [tvl.ErrNotFound] for
// unknown ids.
func (c *Catalog) Image(ctx context.Context, id string) (*Image, error) {
	fields, err := c.store.HGetAll(ctx, ImageKey(id))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("image %s: %w", id, tvl.ErrNotFound)
	}

	img, err := imageFromFields(id, fields)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", id, err)
	}
	return img, nil
}

// DataType returns the stored data type of an image.
func (c *Catalog) DataType(ctx context.Context, id string) (tvl.DataType, error) {
	v, ok, err := c.store.HGet(ctx, ImageKey(id), FieldDataType)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("image %s: %w", id, tvl.ErrNotFound)
	}
	return tvl.DataType(v), nil
}

// Raw returns the stored bytes of a raw image.
func (c *Catalog) Raw(ctx context.Context, id string) ([]byte, error) {
	v, ok, err := c.store.HGet(ctx, ImageKey(id), FieldData)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("image %s data: %w", id, tvl.ErrNotFound)
	}
	return v, nil
}

// Rendered returns the cached rendering of an image, if any.
func (c *Catalog) Rendered(ctx context.Context, id string) ([]byte, bool, error) {
	return c.store.HGet(ctx, ImageKey(id), FieldWebP)
}

// HasRendered reports whether an image has a cached rendering without loading it. It is false
// for deleted images.
func (c *Catalog) HasRendered(ctx context.Context, id string) (bool, error) {
	return c.store.HExists(ctx, ImageKey(id), FieldWebP)
}

// SetRendered stores the rendering of an image.
func (c *Catalog) SetRendered(ctx context.Context, id string, data []byte) error {
	return c.store.HSet(ctx, ImageKey(id), store.B(FieldWebP, data))
}

// WriteImage queues the writes that store img under imageID as a member of collectionID.
func WriteImage(p *store.Pipeline, collectionID, imageID string, img *tvl.DecodedImage) {
	key := ImageKey(imageID)
	p.SAdd(CollectionKey(collectionID), key)
	p.HSet(key, imageFields(img)...)
}

// DeleteImage queues the writes that remove an image from a collection.
func DeleteImage(p *store.Pipeline, collectionID, imageID string) {
	key := ImageKey(imageID)
	p.SRem(CollectionKey(collectionID), key)
	p.Del(key)
}

func imageFields(img *tvl.DecodedImage) []store.Field {
	r := img.Record
	fields := []store.Field{
		store.S(FieldFileName, r.FileName),
		store.S(FieldWidth, strconv.FormatUint(uint64(r.Width), 10)),
		store.S(FieldHeight, strconv.FormatUint(uint64(r.Height), 10)),
		store.S(FieldContentSize, strconv.FormatUint(uint64(r.ContentSize), 10)),
		store.S(FieldOptions, strconv.FormatUint(uint64(r.Options), 10)),
		store.B(FieldReserved, r.Reserved[:]),
		store.S(FieldDataType, string(img.Payload.DataType())),
	}

	switch p := img.Payload.(type) {
	case tvl.Palette:
		fields = append(fields,
			store.S(FieldPaletteSize, strconv.FormatUint(uint64(p.Size), 10)),
			store.B(FieldColorPalette, p.Colors),
			store.B(FieldIndexedColors, p.Indices),
		)
	case tvl.Raw:
		fields = append(fields, store.B(FieldData, p.Bytes))
	}

	return fields
}

func imageFromFields(id string, fields map[string][]byte) (*Image, error) {
	var (
		img  = Image{ID: id}
		errs error
	)
	number := func(name string, bits int) uint64 {
		if errs != nil {
			return 0
		}
		var n uint64
		n, errs = strconv.ParseUint(string(fields[name]), 10, bits)
		if errs != nil {
			errs = fmt.Errorf("field %s: %w", name, errs)
		}
		return n
	}

	img.FileName = string(fields[FieldFileName])
	img.DataType = tvl.DataType(fields[FieldDataType])
	img.Width = uint16(number(FieldWidth, 16))
	img.Height = uint16(number(FieldHeight, 16))
	img.ContentSize = uint32(number(FieldContentSize, 32))
	img.Options = layout.Options(number(FieldOptions, 8))
	copy(img.Reserved[:], fields[FieldReserved])

	switch img.DataType {
	case tvl.DataPalette:
		img.Payload = tvl.Palette{
			Size:    uint8(number(FieldPaletteSize, 8)),
			Colors:  fields[FieldColorPalette],
			Indices: fields[FieldIndexedColors],
		}
	case tvl.DataRaw:
		img.Payload = tvl.Raw{Bytes: fields[FieldData]}
	}

	if errs != nil {
		return nil, errs
	}
	return &img, nil
}
