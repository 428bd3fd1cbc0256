package cacheserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"playercore/internal/cachemanager"
)

// handleGetWhole serves the full file body, honouring a Range header
// with a 206 Partial Content response.
func (s *Server) handleGetWhole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFileID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	meta, err := s.cache.Meta(id)
	if err != nil {
		s.writeCacheErr(w, err)
		return
	}

	if rng := r.Header.Get("Range"); rng != "" {
		start, end, ok := parseRange(rng, meta.Size)
		if !ok {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", meta.Size))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		body, err := s.cache.ReadRange(id, start, end)
		if err != nil {
			s.writeCacheErr(w, err)
			return
		}
		w.Header().Set("Content-Type", contentTypeOrDefault(meta.ContentType))
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end-1, meta.Size))
		w.Header().Set("Accept-Ranges", "bytes")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(body)
		return
	}

	body, err := s.cache.ReadWhole(id)
	if err != nil {
		s.writeCacheErr(w, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeOrDefault(meta.ContentType))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Write(body)
}

// handleHead answers 200 if the file is locally resolvable (chunked or
// whole), 404 otherwise. Never triggers a fetch.
func (s *Server) handleHead(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFileID(r)
	if !ok || !s.cache.Exists(id) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	meta, err := s.cache.Meta(id)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentTypeOrDefault(meta.ContentType))
	w.Header().Set("Accept-Ranges", "bytes")
	w.WriteHeader(http.StatusOK)
}

// handleGetChunk serves one raw chunk of a chunked file.
func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFileID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	indexStr, ok := strings.CutPrefix(r.PathValue("chunk"), "chunk-")
	if !ok {
		http.NotFound(w, r)
		return
	}
	index, err := strconv.ParseUint(indexStr, 10, 32)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	meta, err := s.cache.Meta(id)
	if err != nil {
		s.writeCacheErr(w, err)
		return
	}
	if meta.Format != cachemanager.FormatChunked {
		http.NotFound(w, r)
		return
	}
	start := int64(index) * meta.ChunkBytes
	end := start + meta.ChunkBytes
	if end > meta.Size {
		end = meta.Size
	}
	if start >= meta.Size {
		http.NotFound(w, r)
		return
	}
	body, err := s.cache.ReadRange(id, start, end)
	if err != nil {
		s.writeCacheErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(body)
}

// metadataResponse is the JSON shape served at /metadata.
type metadataResponse struct {
	Kind        string `json:"kind"`
	ID          uint64 `json:"id"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Chunked     bool   `json:"chunked"`
	ChunkBytes  int64  `json:"chunk_bytes,omitempty"`
	ChunkCount  uint32 `json:"chunk_count,omitempty"`
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFileID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	meta, err := s.cache.Meta(id)
	if err != nil {
		s.writeCacheErr(w, err)
		return
	}
	resp := metadataResponse{
		Kind:        id.Kind.String(),
		ID:          id.Num,
		Size:        meta.Size,
		ContentType: contentTypeOrDefault(meta.ContentType),
		Chunked:     meta.Format == cachemanager.FormatChunked,
	}
	if resp.Chunked {
		resp.ChunkBytes = meta.ChunkBytes
		resp.ChunkCount = meta.NChunks
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeCacheErr maps a CacheManager read error to the right HTTP status.
// A file CacheManager has not fetched yet, or is mid-fetch behind a 202
// from the origin, answers 404: it must never read as cached.
func (s *Server) writeCacheErr(w http.ResponseWriter, err error) {
	if errors.Is(err, cachemanager.ErrNotReady) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.logger.Warn("cache read failed", "error", err)
	w.WriteHeader(http.StatusInternalServerError)
}

func contentTypeOrDefault(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

// parseRange parses a single-range "bytes=start-end" header value
// against a known total size. Multi-range requests aren't supported;
// the first range is honoured.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, false
	}
	spec := strings.Split(strings.TrimPrefix(header, prefix), ",")[0]
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	if parts[0] == "" {
		// Suffix range: last N bytes.
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size, true
	}
	s, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || s < 0 || s >= size {
		return 0, 0, false
	}
	if parts[1] == "" {
		return s, size, true
	}
	e, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || e < s {
		return 0, 0, false
	}
	e++
	if e > size {
		e = size
	}
	return s, e, true
}
