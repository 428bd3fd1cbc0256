// Package cachemanager is the policy layer over BlobStore: it decides
// whole-vs-chunked storage based on declared size and device memory,
// drives the DownloadQueue (whole) or its own parallel range fetch
// (chunked), serves whole and range reads through BlobCache, and detects
// and self-heals corrupt entries.
package cachemanager

// Tier is a device-memory-derived configuration bracket controlling
// chunk size, the in-memory BlobCache budget, and the whole-vs-chunked
// threshold.
type Tier struct {
	ChunkSize       int64
	BlobCacheBudget int64
	ChunkThreshold  int64
}

const (
	mb = 1 << 20
	gb = 1 << 30
)

// tiers is ordered ascending by the memory ceiling it applies to; the
// last entry is the catch-all for anything larger.
var tiers = []struct {
	maxMemory int64 // inclusive upper bound; 0 means "no upper bound"
	tier      Tier
}{
	{maxMemory: 512 * mb, tier: Tier{ChunkSize: 10 * mb, BlobCacheBudget: 25 * mb, ChunkThreshold: 25 * mb}},
	{maxMemory: 1 * gb, tier: Tier{ChunkSize: 20 * mb, BlobCacheBudget: 50 * mb, ChunkThreshold: 50 * mb}},
	{maxMemory: 2 * gb, tier: Tier{ChunkSize: 30 * mb, BlobCacheBudget: 100 * mb, ChunkThreshold: 75 * mb}},
	{maxMemory: 4 * gb, tier: Tier{ChunkSize: 50 * mb, BlobCacheBudget: 200 * mb, ChunkThreshold: 100 * mb}},
	{maxMemory: 0, tier: Tier{ChunkSize: 100 * mb, BlobCacheBudget: 500 * mb, ChunkThreshold: 200 * mb}},
}

// TierForMemory maps a device's total memory in bytes to its configuration tier.
func TierForMemory(totalMemoryBytes int64) Tier {
	for _, t := range tiers {
		if t.maxMemory == 0 || totalMemoryBytes <= t.maxMemory {
			return t.tier
		}
	}
	return tiers[len(tiers)-1].tier
}
