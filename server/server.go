// Package server exposes collections and rendered images over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/teenjuna/tvl"
	"github.com/teenjuna/tvl/catalog"
	"github.com/teenjuna/tvl/transcode"
)

type Option = func(*config)

func WithLogger(logger *logrus.Entry) Option {
	if logger == nil {
		panic("logger can't be nil")
	}
	return func(c *config) {
		c.logger = logger
	}
}

type config struct {
	logger *logrus.Entry
}

type Server struct {
	cfg     *config
	catalog *catalog.Catalog
	cache   *transcode.Cache
	mux     *http.ServeMux
}

var _ http.Handler = (*Server)(nil)

func New(cat *catalog.Catalog, cache *transcode.Cache, options ...Option) *Server {
	cfg := config{}
	for _, opt := range append([]Option{
		WithLogger(logrus.NewEntry(logrus.StandardLogger())),
	}, options...) {
		opt(&cfg)
	}

	s := Server{
		cfg:     &cfg,
		catalog: cat,
		cache:   cache,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /api/collections", s.collections)
	s.mux.HandleFunc("GET /api/collections/search-by-id/{id}", s.collectionImages)
	s.mux.HandleFunc("GET /api/images/{id}/image", s.image)
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.fail(w, r, http.StatusNotFound, "Not found")
	})

	return &s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)

	s.cfg.logger.WithFields(logrus.Fields{
		"method":   r.Method,
		"path":     r.URL.Path,
		"status":   rec.status,
		"duration": time.Since(start),
	}).Debug("Request served")
}

func (s *Server) collections(w http.ResponseWriter, r *http.Request) {
	cols, err := s.catalog.Collections(r.Context())
	if err != nil {
		s.internal(w, r, err)
		return
	}
	s.data(w, r, cols)
}

func (s *Server) collectionImages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := s.catalog.Collection(r.Context(), id); errors.Is(err, tvl.ErrNotFound) {
		s.fail(w, r, http.StatusNotFound, "Collection not found")
		return
	} else if err != nil {
		s.internal(w, r, err)
		return
	}

	images, err := s.catalog.Images(r.Context(), id)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	s.data(w, r, images)
}

func (s *Server) image(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	data, err := s.cache.Get(r.Context(), id)
	switch {
	case err == nil:
		s.blob(w, s.cache.ContentType(), data)
		return
	case errors.Is(err, tvl.ErrNotFound):
		s.fail(w, r, http.StatusNotFound, "Image not found")
		return
	case !errors.Is(err, tvl.ErrNotImplemented):
		s.internal(w, r, err)
		return
	}

	// Raw images are stored in their final format.
	dataType, err := s.catalog.DataType(r.Context(), id)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	if dataType != tvl.DataRaw {
		s.fail(w, r, http.StatusNotImplemented, "Image format conversion not implemented yet")
		return
	}

	raw, err := s.catalog.Raw(r.Context(), id)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	s.blob(w, "image/jpeg", raw)
}

func (s *Server) internal(w http.ResponseWriter, r *http.Request, err error) {
	s.cfg.logger.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	s.fail(w, r, http.StatusInternalServerError, "Internal server error")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// ListenAndServe serves handler on addr until ctx is done, then shuts the server down.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *logrus.Entry) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, handler, logger)
}

// Serve is like [ListenAndServe] with an existing listener.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, logger *logrus.Entry) error {
	server := http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		logger.WithField("addr", ln.Addr().String()).Info("Listening")
		errs <- server.Serve(ln)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
