package cachemanager

import (
	"encoding/json"
	"time"

	"playercore/internal/fileid"
)

// Format distinguishes how a file's bytes are laid out in the store.
type Format int

const (
	FormatWhole Format = iota
	FormatChunked
)

// FileEntry is the persisted metadata record for a cached file. Its
// presence under fileid.MetaKey is the readiness signal: a chunked
// file's chunks may exist on disk before this record is written, and
// until it is, the file is not considered present.
type FileEntry struct {
	FileID      fileid.ID
	MD5         string
	Size        int64
	CachedAt    time.Time
	Format      Format
	ChunkBytes  int64  // valid when Format == FormatChunked
	NChunks     uint32 // valid when Format == FormatChunked
	ContentType string
}

func encodeMeta(e FileEntry) ([]byte, error) { return json.Marshal(e) }

func decodeMeta(b []byte) (FileEntry, error) {
	var e FileEntry
	err := json.Unmarshal(b, &e)
	return e, err
}
