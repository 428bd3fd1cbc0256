// Package home manages the player's home directory layout.
//
// The home directory owns all persistent state: the player configuration
// document, the hardware key, and the content-addressed blob store.
//
// Layout:
//
//	<root>/
//	  player.json   (configuration document: cms_url, cms_key, hardware_key, ...)
//	  player.sock   (control socket for the "cache" CLI subcommands)
//	  blobs/        (BlobStore root: media, layout, and widget-html blobs + chunks)
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir represents a player home directory.
type Dir struct {
	root string
}

// New creates a Dir with an explicit root path.
func New(root string) Dir {
	return Dir{root: root}
}

// Default returns a Dir using the platform-appropriate default location:
//   - Linux:   ~/.config/playercore
//   - macOS:   ~/Library/Application Support/playercore
//   - Windows: %APPDATA%/playercore
func Default() (Dir, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return Dir{}, fmt.Errorf("determine config directory: %w", err)
	}
	return Dir{root: filepath.Join(base, "playercore")}, nil
}

// Root returns the home directory path.
func (d Dir) Root() string {
	return d.root
}

// ConfigPath returns the path to the player configuration document.
func (d Dir) ConfigPath() string {
	return filepath.Join(d.root, "player.json")
}

// BlobDir returns the root directory for the persistent blob store.
func (d Dir) BlobDir() string {
	return filepath.Join(d.root, "blobs")
}

// SocketPath returns the path to the local control-socket file a running
// player process listens on, for the "cache" CLI subcommands to dial.
func (d Dir) SocketPath() string {
	return filepath.Join(d.root, "player.sock")
}

// EnsureExists creates the home directory (and parents) if it doesn't exist.
func (d Dir) EnsureExists() error {
	if err := os.MkdirAll(d.root, 0o750); err != nil {
		return fmt.Errorf("create home directory %s: %w", d.root, err)
	}
	return nil
}
