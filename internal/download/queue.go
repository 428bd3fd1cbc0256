package download

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"playercore/internal/blobstore"
	"playercore/internal/fileid"
	"playercore/internal/logging"
	"playercore/internal/transport"
)

// DefaultConcurrency is the number of whole-file downloads the queue runs
// at once when Concurrency is left at zero.
const DefaultConcurrency = 4

// Queue is a bounded-concurrency pool of whole-file downloads. Enqueue is
// idempotent by FileID: calling it again for a file already pending or
// downloading returns the existing Task rather than starting a second
// transfer.
type Queue struct {
	mu      sync.Mutex
	tasks   map[fileid.ID]*Task
	sem     chan struct{}
	fetcher Fetcher
	store   blobstore.Store
	logger  *slog.Logger
}

// New creates a Queue that writes completed downloads into store using
// fetcher, running at most concurrency transfers at once.
func New(store blobstore.Store, fetcher Fetcher, concurrency int, logger *slog.Logger) *Queue {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Queue{
		tasks:   make(map[fileid.ID]*Task),
		sem:     make(chan struct{}, concurrency),
		fetcher: fetcher,
		store:   store,
		logger:  logging.Default(logger).With("component", "download-queue"),
	}
}

// Enqueue starts (or returns the already-running) download for desc. The
// returned Task's Wait method blocks until the transfer reaches a
// terminal state.
func (q *Queue) Enqueue(ctx context.Context, desc transport.RequiredFileDescriptor) *Task {
	q.mu.Lock()
	if existing, ok := q.tasks[desc.FileID]; ok {
		snap := existing.Progress.Snapshot()
		if snap.State == StatePending || snap.State == StateDownloading || snap.State == StateComplete {
			q.mu.Unlock()
			return existing
		}
		// Previous attempt failed; fall through and retry fresh.
	}
	task := newTask(desc.FileID)
	q.tasks[desc.FileID] = task
	q.mu.Unlock()

	go q.run(ctx, task, desc)
	return task
}

// Forget drops a completed or failed task's bookkeeping entry so a future
// Enqueue for the same FileID starts cleanly rather than reusing the
// cached terminal task.
func (q *Queue) Forget(id fileid.ID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.tasks, id)
}

func (q *Queue) run(ctx context.Context, task *Task, desc transport.RequiredFileDescriptor) {
	select {
	case q.sem <- struct{}{}:
	case <-ctx.Done():
		task.Progress.fail(ctx.Err())
		close(task.done)
		return
	}
	defer func() { <-q.sem }()

	task.Progress.setDownloading(desc.Size)
	q.logger.Info("download started", "file", desc.FileID, "size", desc.Size)

	if err := q.fetchAndStore(ctx, task, desc); err != nil {
		task.Progress.fail(err)
		q.logger.Warn("download failed", "file", desc.FileID, "error", err)
		close(task.done)
		return
	}

	task.Progress.complete()
	q.logger.Info("download complete", "file", desc.FileID)
	close(task.done)
}

func (q *Queue) fetchAndStore(ctx context.Context, task *Task, desc transport.RequiredFileDescriptor) error {
	body, err := q.fetcher.FetchRange(ctx, desc.Source, 0, 0)
	if err != nil {
		return err
	}
	defer body.Close()

	hasher := md5.New()
	writer := &countingWriter{task: task}
	tee := io.TeeReader(body, io.MultiWriter(hasher, writer))

	data, err := io.ReadAll(tee)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	if desc.MD5 != "" && sum != desc.MD5 {
		return fmt.Errorf("%w: file %v: want %s got %s", ErrChecksumMismatch, desc.FileID, desc.MD5, sum)
	}

	return q.store.Put(fileid.BlobKey(desc.FileID), blobstore.Entry{Bytes: data})
}

type countingWriter struct{ task *Task }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.task.Progress.addBytes(int64(len(p)))
	return len(p), nil
}
