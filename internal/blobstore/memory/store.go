// Package memory implements blobstore.Store in memory, for tests and for
// ephemeral embedded deployments that do not need persistence.
package memory

import (
	"maps"
	"strings"
	"sync"

	"playercore/internal/blobstore"
	"playercore/internal/fileid"
)

// Store is an in-memory blobstore.Store. The zero value is ready to use.
type Store struct {
	mu   sync.RWMutex
	data map[fileid.StoreKey]blobstore.Entry
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: make(map[fileid.StoreKey]blobstore.Entry)}
}

func (s *Store) Put(key fileid.StoreKey, entry blobstore.Entry) error {
	// Copy the body so callers cannot mutate stored bytes out from under
	// other readers after Put returns.
	cp := blobstore.Entry{
		Bytes:       append([]byte(nil), entry.Bytes...),
		ContentType: entry.ContentType,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[fileid.StoreKey]blobstore.Entry)
	}
	s.data[key] = cp
	return nil
}

func (s *Store) Get(key fileid.StoreKey) (blobstore.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.data[key]
	if !ok {
		return blobstore.Entry{}, blobstore.ErrNotFound
	}
	return entry, nil
}

func (s *Store) Exists(key fileid.StoreKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

func (s *Store) Delete(key fileid.StoreKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) DeletePrefix(prefix fileid.StoreKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range maps.Keys(s.data) {
		if strings.HasPrefix(string(k), string(prefix)) {
			delete(s.data, k)
		}
	}
	return nil
}

func (s *Store) EstimateQuota() (blobstore.Quota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var used int64
	for _, v := range s.data {
		used += int64(len(v.Bytes))
	}
	const fakeTotal = 10 << 30 // 10 GB, an arbitrary ceiling for tests
	return blobstore.Quota{UsedBytes: used, TotalBytes: fakeTotal}, nil
}
