// Package transcode renders stored palette images on demand and caches the result.
//
// A rendering is kept in two places: a bounded in-memory LRU and the image record itself. There
// is no coordination between concurrent misses of the same image; each of them renders and the
// last store write wins, which is fine because rendering is deterministic.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/sirupsen/logrus"

	"github.com/teenjuna/tvl"
	"github.com/teenjuna/tvl/catalog"
	"github.com/teenjuna/tvl/layout"
	"github.com/teenjuna/tvl/palette"
)

// Lookup results.
const (
	HitMemory = "memory"
	HitStore  = "store"
	Miss      = "miss"
)

type Cache struct {
	cfg     *config
	catalog *catalog.Catalog

	mu  sync.Mutex
	lru *lru.Cache
}

func New(cat *catalog.Catalog, options ...Option) *Cache {
	cfg := newConfig(options...)
	c := Cache{
		cfg:     cfg,
		catalog: cat,
	}
	if cfg.entries > 0 {
		c.lru = lru.New(cfg.entries)
	}
	return &c
}

// ContentType is the media type of the renderings.
func (c *Cache) ContentType() string {
	return c.cfg.encoder.ContentType()
}

// Get returns the rendering of the image with the given id.
//
// It returns [tvl.ErrNotFound] for unknown ids and [tvl.ErrNotImplemented] for images that
// aren't palette-indexed or have no pixels.
func (c *Cache) Get(ctx context.Context, id string) ([]byte, error) {
	if data, ok := c.memory(id); ok {
		// A memory hit counts only while the store still holds the rendering.
		exists, err := c.catalog.HasRendered(ctx, id)
		if err != nil {
			return nil, err
		}
		if exists {
			c.cfg.metrics.TranscodeLookups.WithLabelValues(HitMemory).Inc()
			return data, nil
		}
		c.forget(id)
	}

	data, ok, err := c.catalog.Rendered(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok {
		c.cfg.metrics.TranscodeLookups.WithLabelValues(HitStore).Inc()
		c.remember(id, data)
		return data, nil
	}

	dataType, err := c.catalog.DataType(ctx, id)
	if err != nil {
		return nil, err
	}
	if dataType != tvl.DataPalette {
		return nil, fmt.Errorf("render %s image %s: %w", dataType, id, tvl.ErrNotImplemented)
	}

	img, err := c.catalog.Image(ctx, id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	data, err = c.render(img)
	if err != nil {
		return nil, fmt.Errorf("render image %s: %w", id, err)
	}
	elapsed := time.Since(start)

	c.cfg.metrics.TranscodeLookups.WithLabelValues(Miss).Inc()
	c.cfg.metrics.TranscodeDuration.Observe(elapsed.Seconds())
	c.cfg.logger.WithFields(logrus.Fields{
		"image":    id,
		"bytes":    len(data),
		"duration": elapsed,
	}).Debug("Rendered image")

	if err := c.catalog.SetRendered(ctx, id, data); err != nil {
		return nil, fmt.Errorf("store rendering of image %s: %w", id, err)
	}
	c.remember(id, data)

	return data, nil
}

func (c *Cache) render(img *catalog.Image) ([]byte, error) {
	p, ok := img.Payload.(tvl.Palette)
	if !ok {
		return nil, tvl.ErrNotImplemented
	}

	width, height := int(img.Width), int(img.Height)
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%dx%d image: %w", width, height, tvl.ErrNotImplemented)
	}
	pix := palette.Rasterize(width, height, p.Colors, p.Indices, img.Options.Has(layout.HasTransparency))

	var buf bytes.Buffer
	if err := c.cfg.encoder.Encode(&buf, palette.Image(width, height, pix)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Cache) memory(id string) ([]byte, bool) {
	if c.lru == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(id)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (c *Cache) forget(id string) {
	if c.lru == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(id)
}

func (c *Cache) remember(id string, data []byte) {
	if c.lru == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(id, data)
}
