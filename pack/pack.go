// Package pack bundles downloaded container files into one asset sequence.
//
// Every element of the sequence is a map {fileName, sha256sum, description, data}, the input of
// the container parser.
package pack

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/teenjuna/tvl/container"
	"github.com/teenjuna/tvl/manifest"
	"github.com/teenjuna/tvl/stream"
)

type Packer struct {
	cfg      *config
	manifest manifest.Manifest
}

func New(m manifest.Manifest, options ...Option) *Packer {
	return &Packer{
		cfg:      newConfig(options...),
		manifest: m,
	}
}

// Assets yields the container files under dir in lexical path order. A file without a manifest
// description ends the sequence with [manifest.ErrNoDescription].
func (p *Packer) Assets(dir string) iter.Seq2[container.Asset, error] {
	return func(yield func(container.Asset, error) bool) {
		var stop bool
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() || !strings.HasSuffix(d.Name(), p.cfg.ext) {
				return nil
			}

			a, err := p.asset(path, d.Name())
			if err != nil {
				return err
			}
			if !yield(a, nil) {
				stop = true
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil && !stop {
			yield(container.Asset{}, fmt.Errorf("walk %s: %w", dir, err))
		}
	}
}

func (p *Packer) asset(path, name string) (container.Asset, error) {
	description, err := p.manifest.Describe(name)
	if err != nil {
		return container.Asset{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return container.Asset{}, err
	}

	return container.Asset{
		FileName:    name,
		SHA256Sum:   container.Sum(data),
		Description: description,
		Data:        data,
	}, nil
}

// Pack writes the assets under dir to w and returns how many were written. w is not flushed.
func (p *Packer) Pack(dir string, w stream.Writer) (int, error) {
	n := 0
	for a, err := range p.Assets(dir) {
		if err != nil {
			return n, err
		}
		if err := w.Write(a.Map()); err != nil {
			return n, fmt.Errorf("write %s: %w", a.FileName, err)
		}
		n++

		p.cfg.logger.WithFields(logrus.Fields{
			"file":   a.FileName,
			"size":   len(a.Data),
			"sha256": a.SHA256Sum,
		}).Info("Packed container")
	}
	return n, nil
}
