// Package transport defines the Transport contract the CollectionLoop
// consumes. The CMS wire protocol itself (XML envelope construction and
// parsing, SOAP faults, XMDS token exchange) is out of scope for this
// core; only the shapes below and the fact that a failed call raises an
// error are load-bearing. See transport/httpxmds for one concrete
// implementation and transport/memory for a scriptable test fake.
package transport

import (
	"context"
	"errors"
	"time"

	"playercore/internal/fileid"
	"playercore/internal/schedule"
)

// ErrTransportFault marks a structured error from the CMS (a SOAP fault
// or equivalent), as distinct from a plain network failure. The
// CollectionLoop logs it and aborts the current cycle cleanly rather than
// retrying immediately.
var ErrTransportFault = errors.New("transport: fault reported by CMS")

// SourceKind distinguishes how a required file should be fetched.
type SourceKind int

const (
	// SourceHTTP fetches directly from a stable URL, supporting Range
	// requests for chunked downloads.
	SourceHTTP SourceKind = iota
	// SourceXMDS names a file by an opaque token rather than a plain URL.
	// Transport has no method that exchanges the token for the file's
	// bytes, and download.HTTPFetcher rejects this kind.
	SourceXMDS
)

// Source describes where a required file's bytes come from.
type Source struct {
	Kind SourceKind
	// URL is set when Kind == SourceHTTP.
	URL string
	// Token is set when Kind == SourceXMDS.
	Token string
}

// RequiredFileDescriptor is one entry of the CMS's authoritative list of
// what should be locally present.
type RequiredFileDescriptor struct {
	FileID       fileid.ID
	MD5          string
	Size         int64
	Source       Source
	PriorityHint *uint32
}

// RegisterResult is returned by Transport.Register.
type RegisterResult struct {
	CollectInterval time.Duration
	XMRURL          string
	XMRKey          string
}

// StatusReport is a point-in-time health report submitted via NotifyStatus.
type StatusReport struct {
	CurrentLayout *fileid.ID
	At            time.Time
	Detail        string
}

// StatRecord is one queued proof-of-play / health statistic.
type StatRecord struct {
	LayoutID fileid.ID
	From     time.Time
	To       time.Time
	Tag      string
}

// LogRecord is one queued log line destined for the CMS.
type LogRecord struct {
	At      time.Time
	Level   string
	Message string
}

// Transport is the dynamic-dispatch boundary to the CMS. Every method
// either returns successfully or returns a non-nil error — there is no
// silent-success case the core needs to guard against.
type Transport interface {
	Register(ctx context.Context) (RegisterResult, error)
	RequiredFiles(ctx context.Context) ([]RequiredFileDescriptor, error)
	Schedule(ctx context.Context) (*schedule.Model, error)
	GetResource(ctx context.Context, layout fileid.ID, region, widget string) ([]byte, string, error)
	NotifyStatus(ctx context.Context, report StatusReport) error
	SubmitStats(ctx context.Context, stats []StatRecord) error
	SubmitLog(ctx context.Context, entries []LogRecord) error
	SubmitScreenshot(ctx context.Context, png []byte) error
}

// Default timeouts per spec §5, used by transport implementations that
// don't receive a context deadline from the caller.
const (
	DefaultRegisterTimeout      = 10 * time.Second
	DefaultRequiredFilesTimeout = 30 * time.Second
	DefaultScheduleTimeout      = 10 * time.Second
	DefaultChunkFetchTimeout    = 60 * time.Second
)
