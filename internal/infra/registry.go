package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

// RegistryFileName is the monitor registry file inside the data dir.
const RegistryFileName = "monitor.json"

// FileRegistry implements domain.MonitorRegistry using a JSON file
// guarded by an flock on a sibling .lock file.
type FileRegistry struct {
	path           string
	processManager domain.ProcessManager
	now            domain.Clock
}

// NewFileRegistry creates a registry in dataDir.
func NewFileRegistry(dataDir string, pm domain.ProcessManager) *FileRegistry {
	return NewFileRegistryWithPath(filepath.Join(dataDir, RegistryFileName), pm)
}

// NewFileRegistryWithPath creates a registry at a specific path (for testing).
func NewFileRegistryWithPath(path string, pm domain.ProcessManager) *FileRegistry {
	return &FileRegistry{
		path:           path,
		processManager: pm,
		now:            time.Now,
	}
}

// Path returns the registry file path.
func (r *FileRegistry) Path() string {
	return r.path
}

// Register saves the daemon state, replacing any previous entry.
func (r *FileRegistry) Register(state domain.MonitorState) error {
	return r.withLock(func() error {
		now := r.now().Unix()
		if state.StartedAt == 0 {
			state.StartedAt = now
		}
		state.LastHeartbeat = now
		return r.atomicWrite(&state)
	})
}

// UpdateHeartbeat refreshes the liveness timestamp and watched count.
func (r *FileRegistry) UpdateHeartbeat(watched int) error {
	return r.withLock(func() error {
		entry, err := r.Get()
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("monitor not registered")
		}
		entry.LastHeartbeat = r.now().Unix()
		entry.Watched = watched
		return r.atomicWrite(entry)
	})
}

// Get returns the current entry, or nil if none is registered.
func (r *FileRegistry) Get() (*domain.MonitorState, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.MonitorState
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("corrupt monitor registry: %w", err)
	}
	return &entry, nil
}

// IsAlive reports whether the registered daemon's PID is running.
func (r *FileRegistry) IsAlive() (bool, error) {
	entry, err := r.Get()
	if err != nil {
		return false, err
	}
	if entry == nil || entry.PID == 0 {
		return false, nil // Not registered = not alive
	}
	return r.processManager.IsRunning(entry.PID), nil
}

// Clear removes the registry file.
func (r *FileRegistry) Clear() error {
	err := os.Remove(r.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// withLock runs fn holding an exclusive flock so the daemon and CLI
// invocations never interleave read-modify-write cycles.
func (r *FileRegistry) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create registry dir: %w", err)
	}

	lockFile, err := os.OpenFile(r.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	return fn()
}

// atomicWrite writes the entry to file atomically (write + rename).
func (r *FileRegistry) atomicWrite(entry *domain.MonitorState) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	// Temp file is unique per process to avoid races
	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure FileRegistry implements domain.MonitorRegistry.
var _ domain.MonitorRegistry = (*FileRegistry)(nil)
