// Package events defines the observable event contract the Orchestrator
// emits to the platform: one named Kind per lifecycle or state-transition
// point, carried on a Sink so the platform can subscribe without the
// Orchestrator depending on any particular delivery mechanism (log line,
// UI toast, IPC message, ...).
package events

import (
	"log/slog"
	"time"

	"playercore/internal/fileid"
)

// Kind is the closed set of events the Orchestrator may emit.
type Kind string

const (
	KindCollectionStart       Kind = "collection_start"
	KindRegisterComplete      Kind = "register_complete"
	KindFilesReceived         Kind = "files_received"
	KindScheduleReceived      Kind = "schedule_received"
	KindDownloadRequest       Kind = "download_request"
	KindLayoutsScheduled      Kind = "layouts_scheduled"
	KindLayoutPrepareRequest  Kind = "layout_prepare_request"
	KindLayoutAlreadyPlaying  Kind = "layout_already_playing"
	KindLayoutPending         Kind = "layout_pending"
	KindLayoutReady           Kind = "layout_ready"
	KindLayoutCleared         Kind = "layout_cleared"
	KindLayoutCurrent         Kind = "layout_current"
	KindNoLayoutsScheduled    Kind = "no_layouts_scheduled"
	KindXMRConnected          Kind = "xmr_connected"
	KindXMRReconnected        Kind = "xmr_reconnected"
	KindFileReady             Kind = "file_ready"
	KindCheckPendingLayout    Kind = "check_pending_layout"
	KindSubmitStatsRequest    Kind = "submit_stats_request"
	KindCollectionError       Kind = "collection_error"
	KindCollectionComplete    Kind = "collection_complete"
	KindStatusNotified        Kind = "status_notified"
	KindStatusNotifyFailed    Kind = "status_notify_failed"
	KindCollectionIntervalSet Kind = "collection_interval_set"
	KindCollectionIntervalUpd Kind = "collection_interval_updated"
	KindLogLevelChanged       Kind = "log_level_changed"
	KindCleanupComplete       Kind = "cleanup_complete"
)

// Event is one occurrence of a Kind, with whichever fields apply to it.
// Unused fields are left at their zero value; consumers key off Kind to
// know which fields are meaningful.
type Event struct {
	Kind Kind
	At   time.Time

	FileID   fileid.ID
	FileKind fileid.Kind // set alongside FileID for file_ready
	Missing  []fileid.ID
	Err      error
	Interval time.Duration
	Level    slog.Level
	Detail   string
}

// Sink receives emitted events. Implementations must not block the
// Orchestrator for long; a slow consumer should buffer or drop.
type Sink interface {
	Emit(Event)
}

// ChanSink is a Sink backed by a buffered channel, for platforms that
// want to consume events from their own goroutine. Emit drops the event
// if the channel is full rather than blocking the Orchestrator.
type ChanSink struct {
	ch chan Event
}

// NewChanSink creates a ChanSink with the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{ch: make(chan Event, buffer)}
}

// Emit implements Sink.
func (s *ChanSink) Emit(e Event) {
	select {
	case s.ch <- e:
	default:
	}
}

// Events returns the channel events are delivered on.
func (s *ChanSink) Events() <-chan Event { return s.ch }

// LogSink is a Sink that writes each event as a structured log line, the
// default when a platform has no richer event consumer wired up.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit implements Sink.
func (s *LogSink) Emit(e Event) {
	attrs := []any{"kind", string(e.Kind)}
	if e.FileID != (fileid.ID{}) {
		attrs = append(attrs, "file_id", e.FileID.String())
	}
	if len(e.Missing) > 0 {
		attrs = append(attrs, "missing", e.Missing)
	}
	if e.Err != nil {
		attrs = append(attrs, "error", e.Err)
		s.logger.Error("event", attrs...)
		return
	}
	if e.Detail != "" {
		attrs = append(attrs, "detail", e.Detail)
	}
	s.logger.Info("event", attrs...)
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}
