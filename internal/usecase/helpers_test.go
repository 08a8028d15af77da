package usecase

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/ccswitch/internal/domain"
	"github.com/eliteGoblin/ccswitch/internal/infra"
)

// countingFS wraps a FileSystem, counts mutations and lets tests inject faults.
type countingFS struct {
	domain.FileSystem

	mu      sync.Mutex
	writes  int
	renames int
	removes int
	copies  int

	// corruptWrite, if set, may alter data before it hits disk.
	corruptWrite func(path string, data []byte) []byte
	// failRename, if set, is returned from every Rename.
	failRename error
}

func (c *countingFS) WriteFile(path string, data []byte, perm fs.FileMode) error {
	c.mu.Lock()
	c.writes++
	corrupt := c.corruptWrite
	c.mu.Unlock()
	if corrupt != nil {
		data = corrupt(path, data)
	}
	return c.FileSystem.WriteFile(path, data, perm)
}

func (c *countingFS) Rename(oldpath, newpath string) error {
	c.mu.Lock()
	c.renames++
	fail := c.failRename
	c.mu.Unlock()
	if fail != nil {
		return fail
	}
	return c.FileSystem.Rename(oldpath, newpath)
}

func (c *countingFS) Remove(path string) error {
	c.mu.Lock()
	c.removes++
	c.mu.Unlock()
	return c.FileSystem.Remove(path)
}

func (c *countingFS) CopyFile(src, dst string) error {
	c.mu.Lock()
	c.copies++
	c.mu.Unlock()
	return c.FileSystem.CopyFile(src, dst)
}

func (c *countingFS) mutations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes + c.renames + c.removes + c.copies
}

// memJournal records switch attempts in memory.
type memJournal struct {
	mu      sync.Mutex
	records []domain.SwitchRecord
}

func (j *memJournal) Record(rec domain.SwitchRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func (j *memJournal) Recent(limit int) ([]domain.SwitchRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.SwitchRecord, 0, len(j.records))
	for i := len(j.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.records[i])
	}
	return out, nil
}

func (j *memJournal) Close() error { return nil }

func (j *memJournal) last() domain.SwitchRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.records[len(j.records)-1]
}

type testStore struct {
	*ProfileStore
	dir     string
	live    string
	fs      *countingFS
	journal *memJournal
}

// newTestStore writes files into a temp dir and returns a scanned store over it.
func newTestStore(t *testing.T, files map[string]string) *testStore {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	cfs := &countingFS{FileSystem: infra.NewFileSystem()}
	live := filepath.Join(dir, "settings.json")
	journal := &memJournal{}
	store, err := NewProfileStore(DefaultStoreConfig(dir), StoreDeps{
		FS:      cfs,
		Backups: infra.NewBackupManager(cfs, live, zap.NewNop()),
		Journal: journal,
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)

	_, err = store.Scan()
	require.NoError(t, err)
	return &testStore{ProfileStore: store, dir: dir, live: live, fs: cfs, journal: journal}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func countBackups(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "settings.json.backup.") {
			n++
		}
	}
	return n
}

func mustModTime(t *testing.T, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.ModTime()
}

var errInjected = errors.New("injected failure")
