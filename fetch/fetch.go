// Package fetch downloads the files listed in a manifest.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/teenjuna/tvl/manifest"
	"github.com/teenjuna/tvl/retry"
)

type Fetcher struct {
	cfg *config
}

func New(options ...Option) *Fetcher {
	return &Fetcher{cfg: newConfig(options...)}
}

// StatusError is returned for a response other than 200 OK.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("get %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Fetch downloads every manifest entry into dir, naming each file after the last segment of its
// URL path, and returns the number of downloaded bytes. Client errors other than 408 and 429 are
// not retried. The first failed download cancels the rest.
func (f *Fetcher) Fetch(ctx context.Context, m manifest.Manifest, dir string) (int64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", dir, err)
	}

	paths := make([]string, len(m))
	for i, e := range m {
		name, err := e.FileName()
		if err != nil {
			return 0, err
		}
		paths[i] = filepath.Join(dir, name)
	}

	var total atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.workers)
	for i, e := range m {
		path := paths[i]
		g.Go(func() error {
			logger := f.cfg.logger.WithFields(logrus.Fields{
				"url":  e.URL,
				"file": path,
			})

			attempt := 0
			err := retry.Do(ctx, f.cfg.policy, func(ctx context.Context) error {
				attempt++
				n, err := f.download(ctx, e.URL, path)
				if err != nil {
					logger.WithError(err).WithField("attempt", attempt).Warn("Download failed")
					return err
				}
				total.Add(n)
				logger.WithField("size", n).Info("Downloaded file")
				return nil
			})
			if err != nil {
				return fmt.Errorf("fetch %s: %w", e.URL, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return total.Load(), err
	}
	return total.Load(), nil
}

// download writes the body next to path and renames it into place once complete.
func (f *Fetcher) download(ctx context.Context, url, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, retry.Permanent(err)
	}

	resp, err := f.cfg.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := &StatusError{URL: url, Code: resp.StatusCode}
		if permanent(resp.StatusCode) {
			return 0, retry.Permanent(err)
		}
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return 0, retry.Permanent(err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, retry.Permanent(err)
	}
	return n, nil
}

func permanent(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return code >= 400 && code < 500
}
