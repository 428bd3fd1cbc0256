// Package download implements the whole-file download path: a bounded-
// concurrency queue of DownloadTasks, each fetched, MD5-verified against
// the CMS's required-files manifest, and written into a BlobStore.
// Chunked (range-parallel) fetching for large files is cachemanager's
// concern; this package only knows how to pull one contiguous stream.
package download

import (
	"context"
	"errors"
	"sync"
	"time"

	"playercore/internal/fileid"
)

// State is a DownloadTask's lifecycle state.
type State int

const (
	StatePending State = iota
	StateDownloading
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDownloading:
		return "downloading"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrChecksumMismatch is returned when a downloaded file's MD5 doesn't
// match the descriptor's manifest checksum.
var ErrChecksumMismatch = errors.New("download: checksum mismatch")

// Progress tracks a task's lifecycle and byte counters. Safe for
// concurrent use; modeled on a job-progress tracker but scoped to a
// single file transfer.
type Progress struct {
	mu            sync.RWMutex
	state         State
	receivedBytes int64
	totalBytes    int64
	err           error
	startedAt     time.Time
	completedAt   time.Time
}

func (p *Progress) setDownloading(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateDownloading
	p.totalBytes = total
	p.startedAt = time.Now()
}

func (p *Progress) addBytes(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receivedBytes += n
}

func (p *Progress) complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateComplete
	p.completedAt = time.Now()
}

func (p *Progress) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateFailed
	p.err = err
	p.completedAt = time.Now()
}

// Snapshot is a point-in-time, lock-free copy of a Progress.
type Snapshot struct {
	State         State
	ReceivedBytes int64
	TotalBytes    int64
	Err           error
	StartedAt     time.Time
	CompletedAt   time.Time
}

// Snapshot returns a consistent copy of p's fields.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Snapshot{
		State:         p.state,
		ReceivedBytes: p.receivedBytes,
		TotalBytes:    p.totalBytes,
		Err:           p.err,
		StartedAt:     p.startedAt,
		CompletedAt:   p.completedAt,
	}
}

// Task is one in-flight or completed download, keyed by FileID so that
// re-enqueueing the same file while it is already in progress is a no-op
// that returns the existing task rather than starting a second transfer.
type Task struct {
	FileID   fileid.ID
	Progress *Progress

	done chan struct{} // closed exactly once, on the terminal transition
}

func newTask(id fileid.ID) *Task {
	return &Task{
		FileID:   id,
		Progress: &Progress{state: StatePending},
		done:     make(chan struct{}),
	}
}

// Wait blocks until the task reaches a terminal state (Complete or
// Failed), or ctx is done. Multiple goroutines may Wait on the same task;
// all are released together when it finishes.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		if snap := t.Progress.Snapshot(); snap.State == StateFailed {
			return snap.Err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
