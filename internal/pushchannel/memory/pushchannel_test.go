package memory

import (
	"context"
	"errors"
	"testing"

	"playercore/internal/pushchannel"
)

func TestStartRecordsCallsAndSucceeds(t *testing.T) {
	pc := New(4)
	if err := pc.Start(context.Background(), "mqtt://broker", "key"); err != nil {
		t.Fatal(err)
	}
	if !pc.Started() {
		t.Error("expected Started() true after successful Start")
	}
	if len(pc.StartCalls) != 1 || pc.StartCalls[0].URL != "mqtt://broker" {
		t.Errorf("unexpected StartCalls: %+v", pc.StartCalls)
	}
}

func TestStartPropagatesErr(t *testing.T) {
	pc := New(4)
	pc.StartErr = errors.New("refused")
	if err := pc.Start(context.Background(), "u", "k"); !errors.Is(err, pc.StartErr) {
		t.Fatalf("expected propagated error, got %v", err)
	}
	if pc.Started() {
		t.Error("expected Started() false after failed Start")
	}
}

func TestStopRecordsCallAndClearsStarted(t *testing.T) {
	pc := New(4)
	pc.Start(context.Background(), "u", "k")
	pc.Stop()
	if pc.Started() {
		t.Error("expected Started() false after Stop")
	}
	if pc.StopCalls != 1 {
		t.Errorf("expected 1 stop call, got %d", pc.StopCalls)
	}
}

func TestPushDeliversOnCommandsChannel(t *testing.T) {
	pc := New(1)
	want := pushchannel.Command{Kind: pushchannel.KindCollectNow}
	pc.Push(want)
	select {
	case got := <-pc.Commands():
		if got.Kind != want.Kind {
			t.Errorf("got %v, want %v", got.Kind, want.Kind)
		}
	default:
		t.Fatal("expected a buffered command to be immediately available")
	}
}
