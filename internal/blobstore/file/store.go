// Package file implements blobstore.Store on the local filesystem.
package file

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"playercore/internal/blobstore"
	"playercore/internal/fileid"
)

// blobExt is appended to every on-disk blob file so that DeletePrefix can
// walk a directory and recognise blob files without guessing.
const blobExt = ".blob"

// Store is a blobstore.Store backed by the local filesystem. Each key maps
// to one file under root, named by translating StoreKey's "/"-separated
// path into platform path separators. Writes are staged to a temporary
// file in the same directory and renamed into place, so a concurrent
// reader never observes a partial body.
type Store struct {
	root string

	// mu serializes writes per key. A single mutex is sufficient here:
	// the store is not on any hot loop contended enough to warrant
	// key-sharded locking, and it keeps DeletePrefix simple to reason
	// about relative to concurrent Put.
	mu sync.Mutex
}

// New creates a Store rooted at dir. The directory is created if missing.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blobstore root %s: %w", dir, err)
	}
	return &Store{root: dir}, nil
}

func (s *Store) path(key fileid.StoreKey) string {
	return filepath.Join(s.root, filepath.FromSlash(string(key))+blobExt)
}

// Put writes entry atomically: the body is staged to a sibling temp file
// and renamed over the final path, mirroring the stage-then-rename
// discipline used elsewhere in this codebase for metadata writes.
func (s *Store) Put(key fileid.StoreKey, entry blobstore.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst := s.path(key)
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", key, err)
	}
	tmpPath := tmp.Name()
	succeeded := false
	defer func() {
		if !succeeded {
			tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := writeEntry(tmp, entry); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file for %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename into place for %s: %w", key, err)
	}
	succeeded = true
	return nil
}

// Get reads an entry. Returns blobstore.ErrNotFound if the key was never
// written.
func (s *Store) Get(key fileid.StoreKey) (blobstore.Entry, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return blobstore.Entry{}, blobstore.ErrNotFound
		}
		return blobstore.Entry{}, fmt.Errorf("open %s: %w", key, err)
	}
	defer f.Close()

	entry, err := readEntry(f)
	if err != nil {
		return blobstore.Entry{}, fmt.Errorf("read %s: %w", key, err)
	}
	return entry, nil
}

// Exists reports whether key has been written.
func (s *Store) Exists(key fileid.StoreKey) bool {
	_, err := os.Stat(s.path(key))
	return err == nil
}

// Delete removes a single key. Deleting a missing key is not an error.
func (s *Store) Delete(key fileid.StoreKey) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every key sharing prefix, used to drop all chunks
// of a file in one call.
func (s *Store) DeletePrefix(prefix fileid.StoreKey) error {
	full := filepath.Join(s.root, filepath.FromSlash(string(prefix)))
	dir, base := filepath.Dir(full), filepath.Base(full)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("list directory for prefix %s: %w", prefix, err)
	}

	for _, e := range entries {
		name := e.Name()
		trimmed := strings.TrimSuffix(name, blobExt)
		if !strings.HasPrefix(trimmed, base) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", name, err)
		}
	}
	return nil
}

// EstimateQuota reports filesystem usage of the store's root.
func (s *Store) EstimateQuota() (blobstore.Quota, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(s.root, &stat); err != nil {
		return blobstore.Quota{}, fmt.Errorf("statfs %s: %w", s.root, err)
	}
	total := int64(stat.Blocks) * int64(stat.Bsize) //nolint:gosec // G115: filesystem block counts fit in int64 in practice
	free := int64(stat.Bfree) * int64(stat.Bsize)   //nolint:gosec // G115: see above
	return blobstore.Quota{UsedBytes: total - free, TotalBytes: total}, nil
}

// flagCompressed marks the body as zstd-compressed in the on-disk
// entry header.
const flagCompressed = 0x01

// writeEntry serializes an Entry as [2-byte LE content-type length]
// [1-byte flags][content-type bytes][body bytes] so a single rename
// covers the body, its content type, and its compression flag
// atomically. Text-like bodies are zstd-compressed before writing;
// already-compressed media is stored as-is.
func writeEntry(w io.Writer, entry blobstore.Entry) error {
	ctBytes := []byte(entry.ContentType)
	if len(ctBytes) > 0xFFFF {
		return fmt.Errorf("content type too long: %d bytes", len(ctBytes))
	}

	body := entry.Bytes
	var flags byte
	if isCompressible(entry.ContentType) {
		compressed, err := compressBytes(body)
		if err != nil {
			return fmt.Errorf("compress body: %w", err)
		}
		body = compressed
		flags |= flagCompressed
	}

	var header [3]byte
	binary.LittleEndian.PutUint16(header[:2], uint16(len(ctBytes))) //nolint:gosec // G115: bounded by check above
	header[2] = flags
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write(ctBytes); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func readEntry(r io.Reader) (blobstore.Entry, error) {
	var header [3]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return blobstore.Entry{}, err
	}
	ctLen := binary.LittleEndian.Uint16(header[:2])
	flags := header[2]

	ctBytes := make([]byte, ctLen)
	if _, err := io.ReadFull(r, ctBytes); err != nil {
		return blobstore.Entry{}, err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return blobstore.Entry{}, err
	}
	if flags&flagCompressed != 0 {
		body, err = decompressBytes(body)
		if err != nil {
			return blobstore.Entry{}, fmt.Errorf("decompress body: %w", err)
		}
	}
	return blobstore.Entry{Bytes: body, ContentType: string(ctBytes)}, nil
}
