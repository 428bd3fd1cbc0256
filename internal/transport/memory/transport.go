// Package memory provides a scriptable transport.Transport fake for tests.
package memory

import (
	"context"
	"sync"

	"playercore/internal/fileid"
	"playercore/internal/schedule"
	"playercore/internal/transport"
)

// Transport is an in-memory, scriptable transport.Transport. Each field
// may be set directly before use, or between calls to simulate the CMS
// changing its mind across collection cycles. The methods hold an
// unexported mutex while they touch the fields; callers cannot take it.
type Transport struct {
	mu sync.Mutex

	RegisterResult transport.RegisterResult
	RegisterErr    error

	Files    []transport.RequiredFileDescriptor
	FilesErr error

	ScheduleModel *schedule.Model
	ScheduleErr   error

	Resources map[fileid.ID]map[string][]byte // layout -> "region/widget" -> bytes
	ResourceContentType string

	NotifiedStatuses []transport.StatusReport
	SubmittedStats   []transport.StatRecord
	SubmittedLogs    []transport.LogRecord
	Screenshots      [][]byte

	RegisterCalls int
}

// New creates an empty Transport with a default registration result.
func New() *Transport {
	return &Transport{
		RegisterResult: transport.RegisterResult{XMRURL: "mock://xmr", XMRKey: "mock-key"},
		Resources:      make(map[fileid.ID]map[string][]byte),
	}
}

func (t *Transport) Register(context.Context) (transport.RegisterResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.RegisterCalls++
	return t.RegisterResult, t.RegisterErr
}

func (t *Transport) RequiredFiles(context.Context) ([]transport.RequiredFileDescriptor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]transport.RequiredFileDescriptor(nil), t.Files...), t.FilesErr
}

func (t *Transport) Schedule(context.Context) (*schedule.Model, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ScheduleModel, t.ScheduleErr
}

func (t *Transport) GetResource(_ context.Context, layout fileid.ID, region, widget string) ([]byte, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if byWidget, ok := t.Resources[layout]; ok {
		if b, ok := byWidget[region+"/"+widget]; ok {
			return b, t.ResourceContentType, nil
		}
	}
	return nil, "", nil
}

func (t *Transport) NotifyStatus(_ context.Context, report transport.StatusReport) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.NotifiedStatuses = append(t.NotifiedStatuses, report)
	return nil
}

func (t *Transport) SubmitStats(_ context.Context, stats []transport.StatRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.SubmittedStats = append(t.SubmittedStats, stats...)
	return nil
}

func (t *Transport) SubmitLog(_ context.Context, entries []transport.LogRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.SubmittedLogs = append(t.SubmittedLogs, entries...)
	return nil
}

func (t *Transport) SubmitScreenshot(_ context.Context, png []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Screenshots = append(t.Screenshots, png)
	return nil
}
