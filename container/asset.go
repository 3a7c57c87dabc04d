package container

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"iter"
	"strings"

	"github.com/teenjuna/tvl"
	"github.com/teenjuna/tvl/stream"
)

// Asset is one packaged source file: the raw container bytes plus what is known about where
// they came from.
type Asset struct {
	FileName    string
	SHA256Sum   string
	Description string
	Data        []byte
}

// Sum returns the hex SHA-256 of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify checks Data against SHA256Sum. An asset without a checksum is accepted.
func (a Asset) Verify() error {
	if a.SHA256Sum == "" {
		return nil
	}
	if got := Sum(a.Data); !strings.EqualFold(got, a.SHA256Sum) {
		return fmt.Errorf(
			"%w: %s: sha256 is %s, packaged as %s",
			tvl.ErrFormatIntegrity, a.FileName, got, a.SHA256Sum,
		)
	}
	return nil
}

func (a Asset) Source() tvl.Source {
	return tvl.Source{FileName: a.FileName, Description: a.Description}
}

func (a Asset) Map() *stream.Map {
	return stream.NewMap().
		Set("fileName", a.FileName).
		Set("sha256sum", a.SHA256Sum).
		Set("description", a.Description).
		Set("data", a.Data)
}

func AssetFromMap(m *stream.Map) (Asset, error) {
	var (
		a   Asset
		err error
	)
	if a.FileName, err = m.String("fileName"); err != nil {
		return Asset{}, err
	}
	if a.Data, err = m.Bytes("data"); err != nil {
		return Asset{}, err
	}
	// Older packages carry neither.
	if _, ok := m.Get("sha256sum"); ok {
		if a.SHA256Sum, err = m.String("sha256sum"); err != nil {
			return Asset{}, err
		}
	}
	if _, ok := m.Get("description"); ok {
		if a.Description, err = m.String("description"); err != nil {
			return Asset{}, err
		}
	}
	return a, nil
}

// Assets reads packaged assets from r.
func Assets(r stream.Reader) iter.Seq2[Asset, error] {
	return func(yield func(Asset, error) bool) {
		for m, err := range stream.Elements(r) {
			if err != nil {
				yield(Asset{}, fmt.Errorf("read asset: %w", err))
				return
			}
			a, err := AssetFromMap(m)
			if err != nil {
				yield(Asset{}, fmt.Errorf("decode asset: %w", err))
				return
			}
			if !yield(a, nil) {
				return
			}
		}
	}
}
