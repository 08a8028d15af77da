package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// Paths holds where ccswitch keeps its own state.
type Paths struct {
	Home         string
	DataDir      string // registry, journal, journal key, daemon log
	SettingsFile string
	LogFile      string
}

// DefaultPaths resolves state locations for the invoking user, honouring
// XDG_DATA_HOME and $CCSWITCH_CONFIG.
func DefaultPaths() Paths {
	return PathsForHome(GetRealUserHome(), os.Getenv)
}

// PathsForHome resolves state locations under home (for testing).
func PathsForHome(home string, getenv func(string) string) Paths {
	dataRoot := filepath.Join(home, ".local", "share")
	if xdg := getenv("XDG_DATA_HOME"); xdg != "" {
		dataRoot = xdg
	}
	dataDir := filepath.Join(dataRoot, "ccswitch")

	settings := getenv(ConfigEnvVar)
	if settings == "" {
		settings = filepath.Join(home, ".config", "ccswitch", "settings.yaml")
	}

	return Paths{
		Home:         home,
		DataDir:      dataDir,
		SettingsFile: settings,
		LogFile:      filepath.Join(dataDir, "ccswitch.log"),
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns root's home, so SUDO_USER is consulted first.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
