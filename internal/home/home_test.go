package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	d := New("/tmp/playercore-test")
	if d.Root() != "/tmp/playercore-test" {
		t.Errorf("expected root /tmp/playercore-test, got %s", d.Root())
	}
}

func TestDefault(t *testing.T) {
	d, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if d.Root() == "" {
		t.Fatal("expected non-empty root")
	}
	// Should end with "playercore".
	if filepath.Base(d.Root()) != "playercore" {
		t.Errorf("expected root to end with 'playercore', got %s", d.Root())
	}
}

func TestConfigPath(t *testing.T) {
	d := New("/data")
	if got := d.ConfigPath(); got != "/data/player.json" {
		t.Errorf("got %s", got)
	}
}

func TestBlobDir(t *testing.T) {
	d := New("/data")
	if got := d.BlobDir(); got != "/data/blobs" {
		t.Errorf("got %s", got)
	}
}

func TestSocketPath(t *testing.T) {
	d := New("/data")
	if got := d.SocketPath(); got != "/data/player.sock" {
		t.Errorf("got %s", got)
	}
}

func TestEnsureExists(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "playercore")
	d := New(root)
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory")
	}

	// Calling again should be idempotent.
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists (idempotent): %v", err)
	}
}
