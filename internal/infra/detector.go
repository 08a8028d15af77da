package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

// ClaudeDirEnvVar points at a non-default Claude config directory.
const ClaudeDirEnvVar = "CLAUDE_CONFIG_DIR"

// LiveSettingsName is the file Claude Code reads its settings from.
const LiveSettingsName = "settings.json"

// Detector locates the Claude Code configuration directory.
type Detector struct {
	homeDir string
	getenv  func(string) string
}

// NewDetector creates a detector for the current user.
func NewDetector() *Detector {
	home, _ := os.UserHomeDir()
	return &Detector{homeDir: home, getenv: os.Getenv}
}

// NewDetectorWithHome creates a detector with custom home and env lookup (for testing).
func NewDetectorWithHome(home string, getenv func(string) string) *Detector {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	return &Detector{homeDir: home, getenv: getenv}
}

// Candidates returns the directories probed, in priority order.
// An explicit override, if non-empty, comes first.
func (d *Detector) Candidates(override string) []string {
	var dirs []string
	if override != "" {
		dirs = append(dirs, override)
	}
	if env := d.getenv(ClaudeDirEnvVar); env != "" {
		dirs = append(dirs, env)
	}
	return append(dirs,
		filepath.Join(d.homeDir, ".claude"),
		filepath.Join(d.homeDir, ".config", "claude"),
	)
}

// Detect returns the first candidate that is a directory holding a regular settings.json.
func (d *Detector) Detect(override string) (string, error) {
	candidates := d.Candidates(override)
	for _, dir := range candidates {
		if IsValidClaudeDir(dir) {
			return dir, nil
		}
	}
	return "", domain.NewError(domain.ErrNotFound, "detect claude dir", "",
		fmt.Errorf("none of %v contains %s", candidates, LiveSettingsName))
}

// IsValidClaudeDir reports whether dir contains a regular settings.json.
func IsValidClaudeDir(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	live, err := os.Stat(filepath.Join(dir, LiveSettingsName))
	return err == nil && live.Mode().IsRegular()
}
