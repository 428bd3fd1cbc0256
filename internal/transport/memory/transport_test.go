package memory

import (
	"context"
	"errors"
	"testing"

	"playercore/internal/fileid"
	"playercore/internal/transport"
)

func TestRegisterReturnsDefaultAndCounts(t *testing.T) {
	tr := New()
	res, err := tr.Register(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.XMRURL != "mock://xmr" {
		t.Errorf("unexpected default XMRURL: %q", res.XMRURL)
	}
	if _, err := tr.Register(context.Background()); err != nil {
		t.Fatal(err)
	}
	if tr.RegisterCalls != 2 {
		t.Errorf("expected 2 register calls, got %d", tr.RegisterCalls)
	}
}

func TestRegisterPropagatesErr(t *testing.T) {
	tr := New()
	tr.RegisterErr = errors.New("cms down")
	if _, err := tr.Register(context.Background()); !errors.Is(err, tr.RegisterErr) {
		t.Fatalf("expected propagated error, got %v", err)
	}
}

func TestRequiredFilesReturnsCopy(t *testing.T) {
	tr := New()
	tr.Files = []transport.RequiredFileDescriptor{{FileID: fileid.Media(1), MD5: "abc"}}
	got, err := tr.RequiredFiles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got[0].MD5 = "mutated"
	if tr.Files[0].MD5 != "abc" {
		t.Error("caller mutation leaked into internal state")
	}
}

func TestGetResourceMissingReturnsEmpty(t *testing.T) {
	tr := New()
	b, ct, err := tr.GetResource(context.Background(), fileid.Layout(1), "r1", "w1")
	if err != nil {
		t.Fatal(err)
	}
	if b != nil || ct != "" {
		t.Errorf("expected empty result for unset resource, got %q %q", b, ct)
	}
}

func TestGetResourceReturnsScripted(t *testing.T) {
	tr := New()
	layout := fileid.Layout(1)
	tr.Resources[layout] = map[string][]byte{"r1/w1": []byte("<div/>")}
	tr.ResourceContentType = "text/html"
	b, ct, err := tr.GetResource(context.Background(), layout, "r1", "w1")
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "<div/>" || ct != "text/html" {
		t.Errorf("got %q %q", b, ct)
	}
}

func TestSubmissionsAccumulate(t *testing.T) {
	tr := New()
	if err := tr.NotifyStatus(context.Background(), transport.StatusReport{Detail: "ok"}); err != nil {
		t.Fatal(err)
	}
	if err := tr.SubmitStats(context.Background(), []transport.StatRecord{{Tag: "a"}, {Tag: "b"}}); err != nil {
		t.Fatal(err)
	}
	if err := tr.SubmitLog(context.Background(), []transport.LogRecord{{Message: "hi"}}); err != nil {
		t.Fatal(err)
	}
	if err := tr.SubmitScreenshot(context.Background(), []byte{0xff}); err != nil {
		t.Fatal(err)
	}

	if len(tr.NotifiedStatuses) != 1 {
		t.Errorf("expected 1 status, got %d", len(tr.NotifiedStatuses))
	}
	if len(tr.SubmittedStats) != 2 {
		t.Errorf("expected 2 stats, got %d", len(tr.SubmittedStats))
	}
	if len(tr.SubmittedLogs) != 1 {
		t.Errorf("expected 1 log entry, got %d", len(tr.SubmittedLogs))
	}
	if len(tr.Screenshots) != 1 {
		t.Errorf("expected 1 screenshot, got %d", len(tr.Screenshots))
	}
}
