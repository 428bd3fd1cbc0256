package events

import (
	"bytes"
	"log/slog"
	"testing"

	"playercore/internal/fileid"
)

func TestChanSinkDeliversAndDropsWhenFull(t *testing.T) {
	sink := NewChanSink(1)
	sink.Emit(Event{Kind: KindCollectionStart})
	sink.Emit(Event{Kind: KindCollectionComplete}) // buffer full, dropped

	select {
	case e := <-sink.Events():
		if e.Kind != KindCollectionStart {
			t.Errorf("got %v, want %v", e.Kind, KindCollectionStart)
		}
	default:
		t.Fatal("expected a buffered event")
	}

	select {
	case e := <-sink.Events():
		t.Fatalf("expected no second event, got %v", e.Kind)
	default:
	}
}

func TestLogSinkWritesErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := NewLogSink(logger)

	sink.Emit(Event{Kind: KindCollectionError, Err: errTest})
	out := buf.String()
	if !bytes.Contains(buf.Bytes(), []byte("level=ERROR")) {
		t.Errorf("expected ERROR level log, got: %s", out)
	}
}

func TestLogSinkIncludesFileID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := NewLogSink(logger)

	sink.Emit(Event{Kind: KindFileReady, FileID: fileid.Media(9)})
	if !bytes.Contains(buf.Bytes(), []byte("media/9")) {
		t.Errorf("expected file_id in log output, got: %s", buf.String())
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := NewChanSink(1), NewChanSink(1)
	multi := MultiSink{a, b}
	multi.Emit(Event{Kind: KindXMRConnected})

	for _, s := range []*ChanSink{a, b} {
		select {
		case e := <-s.Events():
			if e.Kind != KindXMRConnected {
				t.Errorf("got %v", e.Kind)
			}
		default:
			t.Fatal("expected event on every sink")
		}
	}
}

var errTest = errTestType{}

type errTestType struct{}

func (errTestType) Error() string { return "boom" }
