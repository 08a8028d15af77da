package domain

import (
	"io/fs"
	"time"
)

// FileSystem abstracts the file operations the profile store performs.
// Implementation: infra.OSFileSystem. Tests wrap it to inject faults.
type FileSystem interface {
	// ReadDir lists directory entries sorted by name.
	ReadDir(dir string) ([]fs.DirEntry, error)

	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)

	// ReadFile reads the whole file.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to path, creating or truncating it, and syncs.
	WriteFile(path string, data []byte, perm fs.FileMode) error

	// Rename atomically replaces newpath with oldpath.
	Rename(oldpath, newpath string) error

	// Remove deletes a single file. A missing file is not an error.
	Remove(path string) error

	// CopyFile copies src to dst via a temp file in dst's directory.
	CopyFile(src, dst string) error

	// Exists checks if a path exists.
	Exists(path string) bool

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string
}

// Prober computes file fingerprints.
type Prober interface {
	Probe(path string) (Fingerprint, error)
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes whose name matches exactly.
	FindByName(name string) ([]int, error)

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// MonitorRegistry records the running watch daemon so other invocations
// of the CLI can find it.
// Implementation: flock'd JSON file in the data dir.
type MonitorRegistry interface {
	// Register saves the daemon state, replacing any previous entry.
	Register(state MonitorState) error

	// UpdateHeartbeat refreshes the liveness timestamp.
	UpdateHeartbeat(watched int) error

	// Get returns the current entry, or nil if none is registered.
	Get() (*MonitorState, error)

	// IsAlive reports whether the registered daemon's PID is running.
	IsAlive() (bool, error)

	// Clear removes the registry file.
	Clear() error
}

// BackupStore manages timestamped copies of the live settings file.
// Implementation: infra.BackupManager.
type BackupStore interface {
	// Create copies the live file to a new backup and returns its path.
	Create() (string, error)

	// List returns existing backups, newest first.
	List() ([]BackupInfo, error)

	// Resolve maps a backup name to its path. Unknown names are ErrNotFound.
	Resolve(name string) (string, error)

	// Restore validates the backup and atomically replaces the live file with it.
	Restore(backupPath string) error

	// Remove deletes one backup.
	Remove(backupPath string) error

	// Prune removes all but the keep newest backups and returns how many were removed.
	Prune(keep int) (int, error)
}

// SwitchJournal keeps an append-only history of switch attempts.
type SwitchJournal interface {
	// Record appends one attempt.
	Record(rec SwitchRecord) error

	// Recent returns up to limit records, newest first.
	Recent(limit int) ([]SwitchRecord, error)

	// Close releases resources (e.g., database connection).
	Close() error
}

// KeySource supplies the journal passphrase.
type KeySource interface {
	// Load returns the key, creating and persisting one on first use.
	Load() ([]byte, error)
}

// Clock returns the current time. Injected so cache freshness is testable.
type Clock func() time.Time
