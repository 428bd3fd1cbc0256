package playerconfig

import (
	"testing"
	"time"

	"playercore/internal/home"
	"playercore/internal/logging"
)

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := home.New(t.TempDir())
	if err := Save(dir, &Document{DisplayName: "initial", HardwareKey: "0123456789abcdef"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := make(chan *Document, 1)
	w, err := Watch(dir, logging.Discard(), func(doc *Document) {
		reloaded <- doc
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	if err := Save(dir, &Document{DisplayName: "updated", HardwareKey: "0123456789abcdef"}); err != nil {
		t.Fatalf("Save (update): %v", err)
	}

	select {
	case doc := <-reloaded:
		if doc.DisplayName != "updated" {
			t.Errorf("expected reloaded document to reflect the update, got %+v", doc)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}
