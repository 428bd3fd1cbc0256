package cachemanager

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"playercore/internal/blobcache"
	"playercore/internal/blobstore"
	"playercore/internal/callgroup"
	"playercore/internal/download"
	"playercore/internal/fileid"
	"playercore/internal/logging"
	"playercore/internal/transport"
)

// ErrNotReady is returned by read paths when the requested file has not
// finished downloading (or has never been fetched).
var ErrNotReady = errors.New("cachemanager: file not ready")

// ErrDeferred re-exports download.ErrDeferred for callers that only
// import cachemanager.
var ErrDeferred = download.ErrDeferred

const minPlausibleBinarySize = 100

// Manager is the CacheManager policy layer.
type Manager struct {
	store   blobstore.Store
	cache   *blobcache.Cache
	fetcher download.Fetcher
	queue   *download.Queue
	tier    Tier
	group   callgroup.Group[fileid.ID]
	logger  *slog.Logger
}

// Config configures a Manager.
type Config struct {
	Store               blobstore.Store
	Fetcher             download.Fetcher
	TotalMemoryBytes    int64
	DownloadConcurrency int
	Logger              *slog.Logger
}

// New creates a Manager, deriving its tier from cfg.TotalMemoryBytes.
func New(cfg Config) *Manager {
	tier := TierForMemory(cfg.TotalMemoryBytes)
	logger := logging.Default(cfg.Logger).With("component", "cachemanager")
	return &Manager{
		store:   cfg.Store,
		cache:   blobcache.New(tier.BlobCacheBudget),
		fetcher: cfg.Fetcher,
		queue:   download.New(cfg.Store, cfg.Fetcher, cfg.DownloadConcurrency, logger),
		tier:    tier,
		logger:  logger,
	}
}

// Tier reports the active configuration tier.
func (m *Manager) Tier() Tier { return m.tier }

// Fetch ensures desc's file is locally present and MD5-valid, downloading
// it as needed. Concurrent fetches of the same file are coalesced.
func (m *Manager) Fetch(ctx context.Context, desc transport.RequiredFileDescriptor) error {
	if m.Exists(desc.FileID) {
		return nil
	}
	errCh := m.group.DoChan(desc.FileID, func() error {
		if desc.Size > m.tier.ChunkThreshold {
			return m.fetchChunked(ctx, desc)
		}
		return m.fetchWhole(ctx, desc)
	})
	return <-errCh
}

func (m *Manager) fetchWhole(ctx context.Context, desc transport.RequiredFileDescriptor) error {
	task := m.queue.Enqueue(ctx, desc)
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("whole fetch %v: %w", desc.FileID, err)
	}
	meta, err := encodeMeta(FileEntry{
		FileID:   desc.FileID,
		MD5:      desc.MD5,
		Size:     desc.Size,
		CachedAt: time.Now(),
		Format:   FormatWhole,
	})
	if err != nil {
		return fmt.Errorf("encode metadata for %v: %w", desc.FileID, err)
	}
	return m.store.Put(fileid.MetaKey(desc.FileID), blobstore.Entry{Bytes: meta})
}

func (m *Manager) fetchChunked(ctx context.Context, desc transport.RequiredFileDescriptor) error {
	chunkSize := m.tier.ChunkSize
	nChunks := uint32((desc.Size + chunkSize - 1) / chunkSize)

	sem := make(chan struct{}, download.DefaultConcurrency)
	errs := make(chan error, nChunks)
	for i := uint32(0); i < nChunks; i++ {
		sem <- struct{}{}
		go func(index uint32) {
			defer func() { <-sem }()
			errs <- m.fetchOneChunk(ctx, desc, index, chunkSize)
		}(i)
	}
	for i := uint32(0); i < nChunks; i++ {
		if err := <-errs; err != nil {
			m.store.DeletePrefix(fileid.ChunkPrefix(desc.FileID))
			return fmt.Errorf("chunked fetch %v: %w", desc.FileID, err)
		}
	}

	sum, err := m.streamingChunkMD5(desc.FileID, nChunks)
	if err != nil {
		return fmt.Errorf("hash chunks for %v: %w", desc.FileID, err)
	}
	if desc.MD5 != "" && sum != desc.MD5 {
		m.store.DeletePrefix(fileid.ChunkPrefix(desc.FileID))
		return fmt.Errorf("%w: file %v: want %s got %s", download.ErrChecksumMismatch, desc.FileID, desc.MD5, sum)
	}

	meta, err := encodeMeta(FileEntry{
		FileID:     desc.FileID,
		MD5:        desc.MD5,
		Size:       desc.Size,
		CachedAt:   time.Now(),
		Format:     FormatChunked,
		ChunkBytes: chunkSize,
		NChunks:    nChunks,
	})
	if err != nil {
		return fmt.Errorf("encode metadata for %v: %w", desc.FileID, err)
	}
	// Metadata is written last: it is the readiness signal for a chunked file.
	return m.store.Put(fileid.MetaKey(desc.FileID), blobstore.Entry{Bytes: meta})
}

func (m *Manager) fetchOneChunk(ctx context.Context, desc transport.RequiredFileDescriptor, index uint32, chunkSize int64) error {
	offset := int64(index) * chunkSize
	length := chunkSize
	if remaining := desc.Size - offset; remaining < length {
		length = remaining
	}

	body, err := m.fetcher.FetchRange(ctx, desc.Source, offset, length)
	if err != nil {
		return err
	}
	defer body.Close()

	buf, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read chunk %d: %w", index, err)
	}

	return m.store.Put(fileid.ChunkKey(desc.FileID, index), blobstore.Entry{Bytes: buf})
}

// streamingChunkMD5 hashes chunks 0..n-1 in order without ever holding
// more than one chunk in memory at a time.
func (m *Manager) streamingChunkMD5(id fileid.ID, nChunks uint32) (string, error) {
	h := md5.New()
	for i := uint32(0); i < nChunks; i++ {
		entry, err := m.store.Get(fileid.ChunkKey(id, i))
		if err != nil {
			return "", fmt.Errorf("missing chunk %d: %w", i, err)
		}
		h.Write(entry.Bytes)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Exists reports whether file_id's whole or chunked form is present with
// valid metadata.
func (m *Manager) Exists(id fileid.ID) bool {
	return m.store.Exists(fileid.MetaKey(id))
}

// ReadWhole returns the full body of id, or ErrNotReady if absent, or a
// corruption error if the stored entry fails the heuristic check.
func (m *Manager) ReadWhole(id fileid.ID) ([]byte, error) {
	meta, err := m.readMeta(id)
	if err != nil {
		return nil, err
	}
	if meta.Format == FormatWhole {
		entry, err := m.store.Get(fileid.BlobKey(id))
		if err != nil {
			return nil, ErrNotReady
		}
		if m.isCorrupt(id, entry) {
			m.Invalidate(id)
			return nil, ErrNotReady
		}
		return entry.Bytes, nil
	}
	return m.ReadRange(id, 0, meta.Size)
}

// ReadRange serves [start, end) from id. For chunked entries, only the
// intersecting chunks are materialised, via BlobCache.
func (m *Manager) ReadRange(id fileid.ID, start, end int64) ([]byte, error) {
	meta, err := m.readMeta(id)
	if err != nil {
		return nil, err
	}
	if meta.Format == FormatWhole {
		entry, err := m.store.Get(fileid.BlobKey(id))
		if err != nil {
			return nil, ErrNotReady
		}
		if m.isCorrupt(id, entry) {
			m.Invalidate(id)
			return nil, ErrNotReady
		}
		if end > int64(len(entry.Bytes)) {
			end = int64(len(entry.Bytes))
		}
		return entry.Bytes[start:end], nil
	}

	chunkSize := meta.ChunkBytes
	first := start / chunkSize
	last := (end - 1) / chunkSize

	out := make([]byte, 0, end-start)
	for i := first; i <= last; i++ {
		key := fileid.ChunkKey(id, uint32(i))
		chunk, err := m.cache.GetOrLoad(key, func() ([]byte, error) {
			entry, err := m.store.Get(key)
			if err != nil {
				return nil, err
			}
			return entry.Bytes, nil
		})
		if err != nil {
			return nil, fmt.Errorf("load chunk %d of %v: %w", i, id, err)
		}
		lo := int64(0)
		hi := int64(len(chunk))
		if i == first {
			lo = start - first*chunkSize
		}
		if i == last {
			hi = end - last*chunkSize
		}
		out = append(out, chunk[lo:hi]...)
	}
	return out, nil
}

// Meta returns id's persisted FileEntry, for callers (cacheserver) that
// need Size/ContentType without reading the body.
func (m *Manager) Meta(id fileid.ID) (FileEntry, error) {
	return m.readMeta(id)
}

func (m *Manager) readMeta(id fileid.ID) (FileEntry, error) {
	entry, err := m.store.Get(fileid.MetaKey(id))
	if err != nil {
		return FileEntry{}, ErrNotReady
	}
	return decodeMeta(entry.Bytes)
}

// isCorrupt applies the corruption heuristic: an entry carrying a
// text/plain content type, or a media entry that is implausibly small,
// is treated as corrupt.
func (m *Manager) isCorrupt(id fileid.ID, entry blobstore.Entry) bool {
	if entry.ContentType == "text/plain" {
		return true
	}
	return id.Kind == fileid.KindMedia && len(entry.Bytes) < minPlausibleBinarySize
}

// Invalidate deletes all bytes and metadata for id.
func (m *Manager) Invalidate(id fileid.ID) {
	m.store.Delete(fileid.BlobKey(id))
	m.store.Delete(fileid.MetaKey(id))
	m.store.DeletePrefix(fileid.ChunkPrefix(id))
	m.cache.InvalidatePrefix(fileid.ChunkPrefix(id))
	m.cache.Invalidate(fileid.BlobKey(id))
}

// PurgeAll empties the store's cache-relevant state. Each invalidation
// is independent of the others; callers that need the full file list
// should invalidate every known FileID before calling this for any
// backing store that cannot enumerate keys directly.
func (m *Manager) PurgeAll(ids []fileid.ID) {
	for _, id := range ids {
		m.Invalidate(id)
	}
}
