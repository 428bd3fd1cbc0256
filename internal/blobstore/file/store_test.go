package file

import (
	"errors"
	"os"
	"testing"

	"playercore/internal/blobstore"
	"playercore/internal/fileid"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key := fileid.BlobKey(fileid.Media(1))
	entry := blobstore.Entry{Bytes: []byte("hello world"), ContentType: "text/plain"}

	if err := s.Put(key, entry); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Bytes) != "hello world" || got.ContentType != "text/plain" {
		t.Errorf("got %+v", got)
	}
}

func TestPutCompressesTextLikeContentTransparently(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key := fileid.BlobKey(fileid.Media(2))
	body := []byte(`{"widgets":["a","a","a","a","a","a","a","a","a","a"]}`)
	entry := blobstore.Entry{Bytes: body, ContentType: "application/json"}

	if err := s.Put(key, entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		t.Fatalf("read raw file: %v", err)
	}
	if raw[2]&flagCompressed == 0 {
		t.Error("expected compressed flag set for application/json body")
	}

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Bytes) != string(body) || got.ContentType != "application/json" {
		t.Errorf("got %+v", got)
	}
}

func TestPutLeavesBinaryContentUncompressed(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key := fileid.BlobKey(fileid.Media(3))
	entry := blobstore.Entry{Bytes: []byte{0xFF, 0x00, 0xAB, 0xCD}, ContentType: "image/png"}

	if err := s.Put(key, entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		t.Fatalf("read raw file: %v", err)
	}
	if raw[2]&flagCompressed != 0 {
		t.Error("expected image/png body to be stored uncompressed")
	}

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Bytes) != string(entry.Bytes) {
		t.Errorf("got %+v", got)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = s.Get(fileid.BlobKey(fileid.Media(99)))
	if !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutOverwriteIsAtomic(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key := fileid.BlobKey(fileid.Media(1))
	if err := s.Put(key, blobstore.Entry{Bytes: []byte("v1")}); err != nil {
		t.Fatalf("Put v1: %v", err)
	}
	if err := s.Put(key, blobstore.Entry{Bytes: []byte("v2 longer body")}); err != nil {
		t.Fatalf("Put v2: %v", err)
	}
	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Bytes) != "v2 longer body" {
		t.Errorf("expected v2, got %q", got.Bytes)
	}
}

func TestExistsAndDelete(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key := fileid.BlobKey(fileid.Media(5))
	if s.Exists(key) {
		t.Fatal("should not exist before Put")
	}
	if err := s.Put(key, blobstore.Entry{Bytes: []byte("x")}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !s.Exists(key) {
		t.Fatal("should exist after Put")
	}
	if err := s.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists(key) {
		t.Fatal("should not exist after Delete")
	}
	// Deleting again is not an error.
	if err := s.Delete(key); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestDeletePrefixRemovesOnlyChunks(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id := fileid.Media(6)
	for i := uint32(0); i < 4; i++ {
		if err := s.Put(fileid.ChunkKey(id, i), blobstore.Entry{Bytes: []byte{byte(i)}}); err != nil {
			t.Fatalf("Put chunk %d: %v", i, err)
		}
	}
	if err := s.Put(fileid.MetaKey(id), blobstore.Entry{Bytes: []byte("meta")}); err != nil {
		t.Fatalf("Put meta: %v", err)
	}

	if err := s.DeletePrefix(fileid.ChunkPrefix(id)); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	for i := uint32(0); i < 4; i++ {
		if s.Exists(fileid.ChunkKey(id, i)) {
			t.Errorf("chunk %d survived DeletePrefix", i)
		}
	}
	if !s.Exists(fileid.MetaKey(id)) {
		t.Error("meta should survive chunk prefix deletion")
	}
}

func TestEstimateQuota(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	q, err := s.EstimateQuota()
	if err != nil {
		t.Fatalf("EstimateQuota: %v", err)
	}
	if q.TotalBytes <= 0 {
		t.Error("expected positive total bytes from statfs")
	}
}
