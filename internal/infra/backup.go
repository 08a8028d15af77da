package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/gobwas/glob"
	"go.uber.org/zap"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

// BackupManager keeps timestamped copies of the live settings file next to it:
// <live>.backup.<unix-seconds>[-N].
type BackupManager struct {
	fs       domain.FileSystem
	livePath string
	pattern  glob.Glob
	now      domain.Clock
	logger   *zap.Logger
}

// NewBackupManager creates a backup manager for the given live settings file.
func NewBackupManager(fsys domain.FileSystem, livePath string, logger *zap.Logger) *BackupManager {
	return NewBackupManagerWithClock(fsys, livePath, time.Now, logger)
}

// NewBackupManagerWithClock creates a backup manager with a custom clock (for testing).
func NewBackupManagerWithClock(fsys domain.FileSystem, livePath string, now domain.Clock, logger *zap.Logger) *BackupManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := glob.QuoteMeta(filepath.Base(livePath))
	return &BackupManager{
		fs:       fsys,
		livePath: livePath,
		pattern:  glob.MustCompile(base + ".backup.*"),
		now:      now,
		logger:   logger,
	}
}

// Create copies the live file to a fresh backup path.
func (bm *BackupManager) Create() (string, error) {
	if !bm.fs.Exists(bm.livePath) {
		return "", domain.NewError(domain.ErrFileSystem, "backup", bm.livePath, fmt.Errorf("live settings missing"))
	}

	stamp := strconv.FormatInt(bm.now().Unix(), 10)
	backupPath := bm.livePath + ".backup." + stamp
	for n := 1; bm.fs.Exists(backupPath); n++ {
		backupPath = fmt.Sprintf("%s.backup.%s-%d", bm.livePath, stamp, n)
	}

	if err := bm.fs.CopyFile(bm.livePath, backupPath); err != nil {
		return "", domain.NewError(domain.ErrFileSystem, "backup", backupPath, err)
	}

	bm.logger.Debug("created settings backup", zap.String("path", backupPath))
	return backupPath, nil
}

// List returns existing backups, newest first by mtime.
func (bm *BackupManager) List() ([]domain.BackupInfo, error) {
	dir := filepath.Dir(bm.livePath)
	entries, err := bm.fs.ReadDir(dir)
	if err != nil {
		return nil, domain.NewError(domain.ErrFileSystem, "list backups", dir, err)
	}

	var backups []domain.BackupInfo
	for _, entry := range entries {
		if entry.IsDir() || !bm.pattern.Match(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // Removed between ReadDir and Info
		}
		backups = append(backups, domain.BackupInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].ModTime.Equal(backups[j].ModTime) {
			return backups[i].Name > backups[j].Name
		}
		return backups[i].ModTime.After(backups[j].ModTime)
	})
	return backups, nil
}

// Resolve maps a backup name to its path.
func (bm *BackupManager) Resolve(name string) (string, error) {
	if name == "" || filepath.Base(name) != name || !bm.pattern.Match(name) {
		return "", domain.NewError(domain.ErrNotFound, "resolve backup", name, nil)
	}
	path := filepath.Join(filepath.Dir(bm.livePath), name)
	if !bm.fs.Exists(path) {
		return "", domain.NewError(domain.ErrNotFound, "resolve backup", path, nil)
	}
	return path, nil
}

// Restore validates the backup and atomically replaces the live file with it,
// going through <live>.restore_tmp. The live file takes the backup's mode.
func (bm *BackupManager) Restore(backupPath string) error {
	info, err := bm.fs.Stat(backupPath)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewError(domain.ErrNotFound, "restore", backupPath, nil)
	}
	if err != nil {
		return domain.NewError(domain.ErrFileSystem, "restore", backupPath, err)
	}
	perm := info.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}

	data, err := bm.fs.ReadFile(backupPath)
	if err != nil {
		return domain.NewError(domain.ErrFileSystem, "restore", backupPath, err)
	}
	if !json.Valid(data) {
		return domain.NewError(domain.ErrInvalidFormat, "restore", backupPath, fmt.Errorf("backup is not valid JSON"))
	}

	tmpPath := bm.livePath + ".restore_tmp"
	_ = bm.fs.Remove(tmpPath)
	if err := bm.fs.WriteFile(tmpPath, data, perm); err != nil {
		_ = bm.fs.Remove(tmpPath)
		return domain.NewError(domain.ErrFileSystem, "restore", tmpPath, err)
	}
	if err := bm.fs.Rename(tmpPath, bm.livePath); err != nil {
		_ = bm.fs.Remove(tmpPath)
		return domain.NewError(domain.ErrFileSystem, "restore", bm.livePath, err)
	}

	bm.logger.Info("restored settings from backup", zap.String("backup", backupPath))
	return nil
}

// Remove deletes one backup.
func (bm *BackupManager) Remove(backupPath string) error {
	if err := bm.fs.Remove(backupPath); err != nil {
		return domain.NewError(domain.ErrFileSystem, "remove backup", backupPath, err)
	}
	return nil
}

// Prune removes all but the keep newest backups.
// Failures on individual files are logged and skipped.
func (bm *BackupManager) Prune(keep int) (int, error) {
	backups, err := bm.List()
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(backups) <= keep {
		return 0, nil
	}

	removed := 0
	for _, b := range backups[keep:] {
		if err := bm.fs.Remove(b.Path); err != nil {
			bm.logger.Warn("failed to remove old backup", zap.String("path", b.Path), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		bm.logger.Info("pruned old backups", zap.Int("removed", removed), zap.Int("kept", keep))
	}
	return removed, nil
}

// Ensure BackupManager implements domain.BackupStore.
var _ domain.BackupStore = (*BackupManager)(nil)
