package infra

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

// OSFileSystem implements domain.FileSystem on the local disk.
type OSFileSystem struct {
	homeDir string
}

// NewFileSystem creates a filesystem bound to the current user's home.
func NewFileSystem() *OSFileSystem {
	home, _ := os.UserHomeDir()
	return &OSFileSystem{homeDir: home}
}

// NewFileSystemWithHome creates a filesystem with custom home (for testing).
func NewFileSystemWithHome(home string) *OSFileSystem {
	return &OSFileSystem{homeDir: home}
}

// ReadDir lists directory entries sorted by name.
func (f *OSFileSystem) ReadDir(dir string) ([]fs.DirEntry, error) {
	return os.ReadDir(f.ExpandHome(dir))
}

// Stat returns file info for path.
func (f *OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(f.ExpandHome(path))
}

// ReadFile reads the whole file.
func (f *OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(f.ExpandHome(path))
}

// WriteFile writes data and fsyncs before returning.
func (f *OSFileSystem) WriteFile(path string, data []byte, perm fs.FileMode) error {
	file, err := os.OpenFile(f.ExpandHome(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Rename atomically replaces newpath with oldpath.
func (f *OSFileSystem) Rename(oldpath, newpath string) error {
	return os.Rename(f.ExpandHome(oldpath), f.ExpandHome(newpath))
}

// Remove deletes a single file. A missing file is not an error.
func (f *OSFileSystem) Remove(path string) error {
	err := os.Remove(f.ExpandHome(path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// CopyFile copies src to dst via a temp file in dst's directory.
func (f *OSFileSystem) CopyFile(src, dst string) error {
	return copyFile(f.ExpandHome(src), f.ExpandHome(dst))
}

// Exists checks if a path exists.
func (f *OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(f.ExpandHome(path))
	return err == nil
}

// ExpandHome expands ~ to the user's home directory.
func (f *OSFileSystem) ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(f.homeDir, path[2:])
	}
	if path == "~" {
		return f.homeDir
	}
	return path
}

// copyFile copies a file from src to dst using atomic write pattern.
// Writes to temp file first, syncs, then renames to avoid corruption.
// The copy keeps src's permission bits.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	info, err := sourceFile.Stat()
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".ccswitch-copy-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err = io.Copy(tmpFile, sourceFile); err != nil {
		tmpFile.Close()
		return err
	}
	if err = tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	if err = tmpFile.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return err
	}

	if err = os.Rename(tmpPath, dst); err != nil {
		return err
	}

	success = true
	return nil
}

// Ensure OSFileSystem implements domain.FileSystem.
var _ domain.FileSystem = (*OSFileSystem)(nil)
