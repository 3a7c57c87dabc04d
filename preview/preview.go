// Package preview writes decoded images to disk for a quick look.
//
// Palette images are rasterized into PNG files. Raw images are written as stored with a .jpg
// extension. Files are grouped in one directory per source asset.
package preview

import (
	"fmt"
	"image/png"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/teenjuna/tvl"
	"github.com/teenjuna/tvl/layout"
	"github.com/teenjuna/tvl/palette"
)

type Option = func(*config)

// WithLimit stops after n files were written. Zero means no limit.
func WithLimit(n int) Option {
	if n < 0 {
		panic("limit can't be < 0")
	}
	return func(c *config) {
		c.limit = n
	}
}

func WithLogger(logger *logrus.Entry) Option {
	if logger == nil {
		panic("logger can't be nil")
	}
	return func(c *config) {
		c.logger = logger
	}
}

type config struct {
	limit  int
	logger *logrus.Entry
}

// Result lists the written files in input order.
type Result struct {
	Files []string
	// Skipped counts palette images without pixels. PNG has no zero-sized images.
	Skipped int
}

// Write renders images into dir.
func Write(images iter.Seq2[*tvl.DecodedImage, error], dir string, options ...Option) (Result, error) {
	cfg := config{logger: logrus.NewEntry(logrus.StandardLogger())}
	for _, opt := range options {
		opt(&cfg)
	}

	var (
		res Result
		n   int
	)
	for img, err := range images {
		if err != nil {
			return res, err
		}
		if cfg.limit > 0 && len(res.Files) >= cfg.limit {
			break
		}
		n++

		if _, ok := img.Payload.(tvl.Palette); ok && (img.Record.Width == 0 || img.Record.Height == 0) {
			res.Skipped++
			cfg.logger.WithFields(logrus.Fields{
				"file":   img.Source.FileName,
				"record": img.Record.FileName,
				"width":  img.Record.Width,
				"height": img.Record.Height,
			}).Debug("Skipped empty image")
			continue
		}

		sub := filepath.Join(dir, clean(strings.TrimSuffix(img.Source.FileName, ".tvl")))
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return res, err
		}
		base := filepath.Join(sub, fmt.Sprintf("%05d-%s", n, clean(img.Record.FileName)))

		var path string
		switch p := img.Payload.(type) {
		case tvl.Palette:
			path = base + ".png"
			err = writePNG(path, img.Record, p)
		case tvl.Raw:
			path = base + ".jpg"
			err = os.WriteFile(path, p.Bytes, 0o644)
		default:
			continue
		}
		if err != nil {
			return res, fmt.Errorf("write %s: %w", path, err)
		}

		res.Files = append(res.Files, path)
		cfg.logger.WithFields(logrus.Fields{
			"file":   img.Source.FileName,
			"record": img.Record.FileName,
			"path":   path,
		}).Debug("Wrote preview")
	}

	return res, nil
}

func writePNG(path string, r layout.Record, p tvl.Palette) error {
	w, h := int(r.Width), int(r.Height)
	pix := palette.Rasterize(w, h, p.Colors, p.Indices, r.Options.Has(layout.HasTransparency))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, palette.Image(w, h, pix)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// clean turns a record name into something safe to use as a single path element.
func clean(name string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
	if s = strings.Trim(s, "."); s == "" {
		return "unnamed"
	}
	return s
}
