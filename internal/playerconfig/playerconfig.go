// Package playerconfig persists the small structured document the player
// needs to identify and authenticate itself to the CMS: cms_url, cms_key,
// display_name, hardware_key, and xmr_channel. It is persisted as a
// versioned JSON envelope under the player's home directory, written
// atomically via temp-file-plus-rename with round-trip validation,
// following the same discipline as the teacher's file-backed config store.
package playerconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"playercore/internal/home"
)

const currentVersion = 1

// minHardwareKeyLength is the well-formedness floor from the
// hardware-key stability invariant: a key shorter than this is treated
// as malformed and regenerated; anything at or above it is kept
// byte-identical across restarts.
const minHardwareKeyLength = 10

// Document is the player's persisted identity and CMS connection state.
type Document struct {
	CMSURL      string `json:"cms_url"`
	CMSKey      string `json:"cms_key"`
	DisplayName string `json:"display_name"`
	HardwareKey string `json:"hardware_key"`
	XMRChannel  string `json:"xmr_channel"`
}

// envelope is the versioned on-disk format.
type envelope struct {
	Version int       `json:"version"`
	Doc     *Document `json:"config"`
}

// Load reads the configuration document from dir, generating a fresh
// hardware_key on first run (no file present) or if the persisted one
// is malformed (shorter than minHardwareKeyLength). A freshly generated
// key is flushed back to disk before Load returns, so the stability
// invariant holds starting from the very first read.
func Load(dir home.Dir) (*Document, error) {
	path := dir.ConfigPath()
	doc, err := read(path)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &Document{}
	}
	if len(doc.HardwareKey) < minHardwareKeyLength {
		doc.HardwareKey = generateHardwareKey()
		if err := Save(dir, doc); err != nil {
			return nil, fmt.Errorf("persist generated hardware key: %w", err)
		}
	}
	return doc, nil
}

// read parses the envelope at path, returning nil, nil if it doesn't exist.
func read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read player config: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse player config: %w", err)
	}
	return env.Doc, nil
}

// Save atomically writes doc to dir's configuration path: marshal to a
// temp file, read it back to confirm it's valid JSON, then rename over
// the live file.
func Save(dir home.Dir, doc *Document) error {
	if err := dir.EnsureExists(); err != nil {
		return err
	}
	path := dir.ConfigPath()

	env := envelope{Version: currentVersion, Doc: doc}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal player config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write temp player config: %w", err)
	}
	check, err := os.ReadFile(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("read back temp player config: %w", err)
	}
	var verify envelope
	if err := json.Unmarshal(check, &verify); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("round-trip validation failed: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename player config: %w", err)
	}
	return nil
}

// generateHardwareKey produces a 32-character hex identifier from a
// fresh UUID, with no separators, for CMS registration.
func generateHardwareKey() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:])
}

// Filename reports the base name of the persisted document, for callers
// (e.g. the fsnotify watcher) that need to match events against it
// without constructing a full home.Dir.
func Filename(dir home.Dir) string {
	return filepath.Base(dir.ConfigPath())
}
