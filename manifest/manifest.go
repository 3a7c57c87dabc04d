// Package manifest reads the list of source files to fetch and package.
//
// A manifest is a JSON array of [url, description] pairs:
//
//	[
//	  ["https://example.com/files/forest-01.tvl", "Forest tiles"],
//	  ["https://example.com/files/cave.tvl?raw=1", "Cave sprites"]
//	]
package manifest

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	json "github.com/goccy/go-json"
)

var ErrNoDescription = errors.New("no description in manifest")

// Entry is one manifest line.
type Entry struct {
	URL         string
	Description string
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("manifest entry has %d elements, want [url, description]", len(pair))
	}
	e.URL, e.Description = pair[0], pair[1]
	return nil
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{e.URL, e.Description})
}

// FileName is the last segment of the URL path.
func (e Entry) FileName() (string, error) {
	u, err := url.Parse(e.URL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		return "", fmt.Errorf("url %q has no file name", e.URL)
	}
	return name, nil
}

type Manifest []Entry

func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// Describe returns the description of the first entry whose URL file name starts with fileName
// stripped of its ".tvl" extension.
func (m Manifest) Describe(fileName string) (string, error) {
	stem := strings.TrimSuffix(fileName, ".tvl")
	for _, e := range m {
		name, err := e.FileName()
		if err != nil {
			continue
		}
		if strings.HasPrefix(name, stem) {
			return e.Description, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoDescription, fileName)
}
