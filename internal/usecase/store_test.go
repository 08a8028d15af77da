package usecase

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

func profileNames(profiles []domain.Profile) []string {
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	return names
}

func TestProfileStore_Scan(t *testing.T) {
	s := newTestStore(t, map[string]string{
		"settings.json":               `{"theme":"dark"}`,
		"work.settings.json":          `{"theme":"dark"}`,
		"home.settings.json":          `{"theme":"light"}`,
		"broken.settings.json":        `{"theme":`,
		"array.settings.json":         `[1,2]`,
		".settings.json":              `{}`,
		"settings.json.backup.1":      `{}`,
		"notes.json":                  `{}`,
		"trailing.settings.json":      `{} {}`,
		"a.b.settings.json":           `{"x":1}`,
		"settings.json.tmp":           `{}`,
		"other.settings.json.disable": `{}`,
	})
	require.NoError(t, os.Mkdir(filepath.Join(s.dir, "dir.settings.json"), 0755))

	profiles, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.b", "home", "work"}, profileNames(profiles))

	work, ok := s.Profile("work")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(s.dir, "work.settings.json"), work.Path)
	assert.Equal(t, `{"theme":"dark"}`, work.Content)
	assert.True(t, work.IsActive)
	assert.Equal(t, domain.FullMatch, work.Status)

	home, _ := s.Profile("home")
	assert.False(t, home.IsActive)
	assert.Equal(t, domain.NoMatch, home.Status)

	assert.Equal(t, []string{
		s.live,
		filepath.Join(s.dir, "a.b.settings.json"),
		filepath.Join(s.dir, "home.settings.json"),
		filepath.Join(s.dir, "work.settings.json"),
	}, s.MonitoredPaths())
}

func TestProfileStore_ScanNameTooLong(t *testing.T) {
	long := strings.Repeat("n", 240)
	s := newTestStore(t, map[string]string{
		"settings.json":         `{}`,
		long + ".settings.json": `{}`,
		"ok.settings.json":      `{}`,
	})
	s.cfg.MaxNameLength = 200

	profiles, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, profileNames(profiles))
}

func TestProfileStore_ScanReplacesWholesale(t *testing.T) {
	s := newTestStore(t, map[string]string{
		"settings.json":      `{}`,
		"work.settings.json": `{}`,
	})
	require.Len(t, s.Profiles(), 1)

	require.NoError(t, os.Remove(filepath.Join(s.dir, "work.settings.json")))
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "new.settings.json"), []byte(`{}`), 0644))

	profiles, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, profileNames(profiles))
}

func TestProfileStore_ScanMissingDir(t *testing.T) {
	s := newTestStore(t, map[string]string{"settings.json": `{}`})
	s.cfg.Dir = filepath.Join(s.dir, "missing")

	_, err := s.Scan()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFileSystem))
	assert.Len(t, s.Profiles(), 0, "failed scan leaves list untouched")
}

func TestProfileStore_ScanWithoutLiveFile(t *testing.T) {
	s := newTestStore(t, map[string]string{"work.settings.json": `{}`})

	work, ok := s.Profile("work")
	require.True(t, ok)
	assert.Equal(t, domain.StatusError, work.Status.Kind)
	assert.False(t, work.IsActive)
}

func TestNewProfileStore_RequiresDeps(t *testing.T) {
	_, err := NewProfileStore(DefaultStoreConfig(t.TempDir()), StoreDeps{})
	assert.Error(t, err)
}
