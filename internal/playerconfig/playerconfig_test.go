package playerconfig

import (
	"os"
	"path/filepath"
	"testing"

	"playercore/internal/home"
)

func TestLoadGeneratesHardwareKeyOnFirstRun(t *testing.T) {
	dir := home.New(t.TempDir())

	doc, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.HardwareKey) < minHardwareKeyLength {
		t.Fatalf("expected generated hardware key, got %q", doc.HardwareKey)
	}

	if _, err := os.Stat(dir.ConfigPath()); err != nil {
		t.Fatalf("expected config file to be persisted: %v", err)
	}
}

func TestLoadIsStableAcrossRestarts(t *testing.T) {
	dir := home.New(t.TempDir())

	first, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	second, err := Load(dir)
	if err != nil {
		t.Fatalf("Load (second): %v", err)
	}

	if first.HardwareKey != second.HardwareKey {
		t.Fatalf("hardware_key not stable across loads: %q != %q", first.HardwareKey, second.HardwareKey)
	}
}

func TestLoadRegeneratesMalformedHardwareKey(t *testing.T) {
	dir := home.New(t.TempDir())
	if err := Save(dir, &Document{HardwareKey: "short", CMSURL: "https://cms.example"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	doc, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.HardwareKey == "short" {
		t.Fatal("expected malformed hardware key to be regenerated")
	}
	if doc.CMSURL != "https://cms.example" {
		t.Errorf("expected other fields preserved, got %+v", doc)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := home.New(t.TempDir())
	want := &Document{
		CMSURL:      "https://cms.example",
		CMSKey:      "key-123",
		DisplayName: "Lobby Display",
		HardwareKey: "0123456789abcdef0123456789abcdef",
		XMRChannel:  "chan-1",
	}
	if err := Save(dir, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *got != *want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	dir := home.New(t.TempDir())
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}
	if err := os.WriteFile(dir.ConfigPath(), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error loading invalid JSON")
	}
}

func TestSaveCreatesHomeDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "playercore")
	dir := home.New(root)

	if err := Save(dir, &Document{HardwareKey: "0123456789abcdef"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(dir.ConfigPath()); err != nil {
		t.Fatalf("expected config file: %v", err)
	}
}
