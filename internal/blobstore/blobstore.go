// Package blobstore defines the persistent, content-addressed key/value
// store that underlies every other caching component. It owns all
// persistent bytes; BlobCache and CacheManager never write directly to
// disk except through a Store.
package blobstore

import (
	"errors"

	"playercore/internal/fileid"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("blobstore: key not found")

// Entry is the value half of a stored key: raw bytes plus the content type
// recorded at put time (used by CacheManager's corruption heuristics).
type Entry struct {
	Bytes       []byte
	ContentType string
}

// Quota reports how much of a store's backing capacity is used.
type Quota struct {
	UsedBytes  int64
	TotalBytes int64
}

// Store is a key/value persistent store keyed by fileid.StoreKey.
//
// Put is atomic from the observer's standpoint: a concurrent Get against
// the same key either returns the prior value, the new value, or
// ErrNotFound if the key was never written — never a truncated body.
// Implementations achieve this by staging to a temporary location and
// renaming into place.
type Store interface {
	Put(key fileid.StoreKey, entry Entry) error
	Get(key fileid.StoreKey) (Entry, error)
	Exists(key fileid.StoreKey) bool
	Delete(key fileid.StoreKey) error
	// DeletePrefix deletes every key sharing the given prefix, used to
	// remove all chunks of a file in one call.
	DeletePrefix(prefix fileid.StoreKey) error
	EstimateQuota() (Quota, error)
}
