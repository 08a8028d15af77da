// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"os"
	"path/filepath"
	"strings"
)

// FakeClaudeDir lays out a Claude config directory: a live settings.json
// plus <name>.settings.json profiles.
type FakeClaudeDir struct {
	Dir string
}

// NewFakeClaudeDir creates a fake Claude directory generator rooted at dir.
func NewFakeClaudeDir(dir string) *FakeClaudeDir {
	return &FakeClaudeDir{Dir: dir}
}

// Create writes the live settings and the given profiles.
func (f *FakeClaudeDir) Create(live string, profiles map[string]string) error {
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return err
	}
	if err := f.WriteLive(live); err != nil {
		return err
	}
	for name, content := range profiles {
		if err := f.WriteProfile(name, content); err != nil {
			return err
		}
	}
	return nil
}

// LivePath returns the live settings path.
func (f *FakeClaudeDir) LivePath() string {
	return filepath.Join(f.Dir, "settings.json")
}

// ProfilePath returns the file path of profile name.
func (f *FakeClaudeDir) ProfilePath(name string) string {
	return filepath.Join(f.Dir, name+".settings.json")
}

// WriteLive replaces the live settings.
func (f *FakeClaudeDir) WriteLive(content string) error {
	return os.WriteFile(f.LivePath(), []byte(content), 0644)
}

// WriteProfile creates or replaces profile name.
func (f *FakeClaudeDir) WriteProfile(name, content string) error {
	return os.WriteFile(f.ProfilePath(name), []byte(content), 0644)
}

// ReadLive returns the live settings content.
func (f *FakeClaudeDir) ReadLive() (string, error) {
	data, err := os.ReadFile(f.LivePath())
	return string(data), err
}

// Backups returns the names of live-settings backups in the directory.
func (f *FakeClaudeDir) Backups() ([]string, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "settings.json.backup.") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// LeftoverTemps returns temporary files a switch should never leave behind.
func (f *FakeClaudeDir) LeftoverTemps() ([]string, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if strings.HasSuffix(n, ".tmp") || strings.HasSuffix(n, ".restore_tmp") || strings.HasSuffix(n, ".write_test") {
			names = append(names, n)
		}
	}
	return names, nil
}
