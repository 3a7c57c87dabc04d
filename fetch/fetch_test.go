package fetch_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/teenjuna/tvl/fetch"
	"github.com/teenjuna/tvl/internal/testing/require"
	"github.com/teenjuna/tvl/manifest"
	"github.com/teenjuna/tvl/retry"
)

func quiet() fetch.Option {
	logger, _ := test.NewNullLogger()
	return fetch.WithLogger(logrus.NewEntry(logger))
}

func TestFetch(t *testing.T) {
	files := map[string]string{
		"/files/forest.tvl": "forest bytes",
		"/files/cave.tvl":   "cave",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	m := manifest.Manifest{
		{URL: srv.URL + "/files/forest.tvl", Description: "Forest"},
		{URL: srv.URL + "/files/cave.tvl?v=2", Description: "Cave"},
	}

	dir := filepath.Join(t.TempDir(), "export")
	n, err := fetch.New(quiet(), fetch.WithWorkers(1)).Fetch(t.Context(), m, dir)
	require.Nil(t, err)
	require.Equal(t, n, int64(len("forest bytes")+len("cave")))

	data, err := os.ReadFile(filepath.Join(dir, "forest.tvl"))
	require.Nil(t, err)
	require.Equal(t, string(data), "forest bytes")

	data, err = os.ReadFile(filepath.Join(dir, "cave.tvl"))
	require.Nil(t, err)
	require.Equal(t, string(data), "cave")

	entries, err := os.ReadDir(dir)
	require.Nil(t, err)
	require.Equal(t, len(entries), 2)
}

func TestFetchRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := fetch.New(quiet(), fetch.WithRetryPolicy(retry.Fixed(5, 0)))
	_, err := f.Fetch(t.Context(), manifest.Manifest{{URL: srv.URL + "/a.tvl"}}, dir)
	require.Nil(t, err)
	require.Equal(t, calls.Load(), int32(3))

	data, err := os.ReadFile(filepath.Join(dir, "a.tvl"))
	require.Nil(t, err)
	require.Equal(t, string(data), "ok")
}

func TestFetchGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := fetch.New(quiet(), fetch.WithRetryPolicy(retry.Fixed(3, 0)))
	_, err := f.Fetch(t.Context(), manifest.Manifest{{URL: srv.URL + "/a.tvl"}}, dir)

	var se *fetch.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, se.Code, http.StatusBadGateway)
	require.Equal(t, calls.Load(), int32(3))

	_, err = os.Stat(filepath.Join(dir, "a.tvl"))
	require.True(t, os.IsNotExist(err))
}

func TestFetchNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := fetch.New(quiet(), fetch.WithRetryPolicy(retry.Fixed(5, 0)))
	_, err := f.Fetch(t.Context(), manifest.Manifest{{URL: srv.URL + "/a.tvl"}}, t.TempDir())
	require.True(t, retry.IsPermanent(err))
	require.Equal(t, calls.Load(), int32(1))
}

func TestFetchBadURL(t *testing.T) {
	_, err := fetch.New(quiet()).Fetch(t.Context(), manifest.Manifest{{URL: "https://example.com/"}}, t.TempDir())
	require.NotNil(t, err)
}

func TestOptionValidation(t *testing.T) {
	require.PanicWithError(t, "workers can't be < 1", func() {
		_ = fetch.WithWorkers(0)
	})
	require.PanicWithError(t, "retry policy can't be nil", func() {
		_ = fetch.WithRetryPolicy(nil)
	})
	require.PanicWithError(t, "client can't be nil", func() {
		_ = fetch.WithClient(nil)
	})
}
