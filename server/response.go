package server

import (
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/teenjuna/tvl/stream"
)

const (
	contentTypeJSON = "application/json"
	contentTypeCBOR = "application/cbor"

	cacheImmutable = "public, max-age=31536000, immutable"
	cacheList      = "public, max-age=3600"
	cacheNone      = "no-store"
)

// envelope tells data apart from failures in every API response.
type envelope struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type marshalFunc = func(v any) ([]byte, error)

// negotiate picks the representation asked for by the Accept header.
func negotiate(r *http.Request) (string, marshalFunc, bool) {
	accept := r.Header.Get("Accept")
	switch {
	case strings.Contains(accept, contentTypeJSON):
		return contentTypeJSON, json.Marshal, true
	case strings.Contains(accept, contentTypeCBOR):
		return contentTypeCBOR, stream.MarshalCBOR, true
	default:
		return "", nil, false
	}
}

func (s *Server) data(w http.ResponseWriter, r *http.Request, data any) {
	s.write(w, r, http.StatusOK, cacheList, envelope{OK: true, Data: data})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	cache := cacheList
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		cache = cacheNone
	}
	s.write(w, r, status, cache, envelope{OK: false, Error: msg})
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, status int, cache string, env envelope) {
	contentType, marshal, ok := negotiate(r)
	if !ok {
		http.Error(w, "Unsupported Accept header", http.StatusNotAcceptable)
		return
	}

	body, err := marshal(env)
	if err != nil {
		s.cfg.logger.WithError(err).WithField("path", r.URL.Path).Error("Failed to encode response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", cache)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) blob(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", cacheImmutable)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
