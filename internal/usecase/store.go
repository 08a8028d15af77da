// Package usecase contains application business logic.
package usecase

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"go.uber.org/zap"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

// StoreConfig parameterizes a ProfileStore.
type StoreConfig struct {
	Dir           string
	SettingsFile  string
	ProfileSuffix string
	IgnoredFields []string
	CacheTTL      time.Duration
	CacheSize     int
	MaxBackups    int
	MaxNameLength int
}

// DefaultStoreConfig returns the standard layout for a Claude config dir.
func DefaultStoreConfig(dir string) StoreConfig {
	return StoreConfig{
		Dir:           dir,
		SettingsFile:  "settings.json",
		ProfileSuffix: "settings",
		IgnoredFields: []string{"model"},
		CacheTTL:      60 * time.Second,
		CacheSize:     128,
		MaxBackups:    5,
		MaxNameLength: 255,
	}
}

// StoreDeps are the collaborators of a ProfileStore. FS and Backups are required.
type StoreDeps struct {
	FS      domain.FileSystem
	Backups domain.BackupStore
	Journal domain.SwitchJournal
	Logger  *zap.Logger
	Clock   domain.Clock
}

// ProfileStore scans profile files, tracks their activation status against
// the live settings, and switches between them.
type ProfileStore struct {
	cfg     StoreConfig
	fs      domain.FileSystem
	backups domain.BackupStore
	journal domain.SwitchJournal
	logger  *zap.Logger
	now     domain.Clock

	pattern      glob.Glob
	livePath     string
	profileCache *ContentCache
	liveCache    *ContentCache

	// switchMu serializes Scan, RefreshStatus and Switch.
	switchMu sync.Mutex

	mu       sync.RWMutex
	profiles []domain.Profile
}

// NewProfileStore creates a store. Call Scan to populate it.
func NewProfileStore(cfg StoreConfig, deps StoreDeps) (*ProfileStore, error) {
	if deps.FS == nil || deps.Backups == nil {
		return nil, errors.New("profile store requires a filesystem and a backup store")
	}
	if cfg.Dir == "" {
		return nil, errors.New("profile store requires a directory")
	}
	defaults := DefaultStoreConfig(cfg.Dir)
	if cfg.SettingsFile == "" {
		cfg.SettingsFile = defaults.SettingsFile
	}
	if cfg.ProfileSuffix == "" {
		cfg.ProfileSuffix = defaults.ProfileSuffix
	}
	if cfg.IgnoredFields == nil {
		cfg.IgnoredFields = defaults.IgnoredFields
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaults.CacheSize
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = defaults.MaxBackups
	}
	if cfg.MaxNameLength <= 0 {
		cfg.MaxNameLength = defaults.MaxNameLength
	}

	pattern, err := glob.Compile("*." + glob.QuoteMeta(cfg.ProfileSuffix) + ".json")
	if err != nil {
		return nil, fmt.Errorf("compile profile pattern: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	return &ProfileStore{
		cfg:          cfg,
		fs:           deps.FS,
		backups:      deps.Backups,
		journal:      deps.Journal,
		logger:       logger,
		now:          now,
		pattern:      pattern,
		livePath:     filepath.Join(cfg.Dir, cfg.SettingsFile),
		profileCache: NewContentCache(deps.FS, cfg.CacheSize, cfg.CacheTTL, now),
		liveCache:    NewContentCache(deps.FS, 1, cfg.CacheTTL, now),
	}, nil
}

// Dir returns the watched directory.
func (s *ProfileStore) Dir() string {
	return s.cfg.Dir
}

// SettingsPath returns the live settings file path.
func (s *ProfileStore) SettingsPath() string {
	return s.livePath
}

// Profiles returns a copy of the current profile list, sorted by name.
func (s *ProfileStore) Profiles() []domain.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Profile(nil), s.profiles...)
}

// Profile returns the named profile.
func (s *ProfileStore) Profile(name string) (domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.Name == name {
			return p, true
		}
	}
	return domain.Profile{}, false
}

// MonitoredPaths returns the live settings path followed by every profile path.
func (s *ProfileStore) MonitoredPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.profiles)+1)
	paths = append(paths, s.livePath)
	for _, p := range s.profiles {
		paths = append(paths, p.Path)
	}
	return paths
}

// Scan re-reads the directory and replaces the profile list.
// Files that fail to load or parse are logged and skipped.
func (s *ProfileStore) Scan() ([]domain.Profile, error) {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()
	return s.scan()
}

func (s *ProfileStore) scan() ([]domain.Profile, error) {
	info, err := s.fs.Stat(s.cfg.Dir)
	if err != nil {
		return nil, domain.NewError(domain.ErrFileSystem, "scan", s.cfg.Dir, err)
	}
	if !info.IsDir() {
		return nil, domain.NewError(domain.ErrFileSystem, "scan", s.cfg.Dir, errors.New("not a directory"))
	}

	entries, err := s.fs.ReadDir(s.cfg.Dir)
	if err != nil {
		return nil, domain.NewError(domain.ErrFileSystem, "scan", s.cfg.Dir, err)
	}

	suffix := "." + s.cfg.ProfileSuffix + ".json"
	var profiles []domain.Profile
	for _, entry := range entries {
		fileName := entry.Name()
		if entry.IsDir() || fileName == s.cfg.SettingsFile || !s.pattern.Match(fileName) {
			continue
		}

		name := strings.TrimSuffix(fileName, suffix)
		path := filepath.Join(s.cfg.Dir, fileName)
		if err := s.validateName(name); err != nil {
			s.logger.Warn("skipping profile with invalid name", zap.String("path", path), zap.Error(err))
			continue
		}

		content, err := s.profileCache.Get(path)
		if err != nil {
			s.logger.Warn("skipping unreadable profile", zap.String("path", path), zap.Error(err))
			continue
		}
		if _, err := parseObject(content); err != nil {
			s.logger.Warn("skipping malformed profile", zap.String("path", path), zap.Error(err))
			continue
		}

		profiles = append(profiles, domain.Profile{Name: name, Path: path, Content: content})
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	_ = s.applyStatuses(profiles)

	s.mu.Lock()
	s.profiles = profiles
	s.mu.Unlock()

	s.logger.Debug("scanned profiles", zap.String("dir", s.cfg.Dir), zap.Int("count", len(profiles)))
	return append([]domain.Profile(nil), profiles...), nil
}

// RefreshStatus reloads known profiles through the cache and recomputes
// their activation status without re-reading the directory. A profile
// that can no longer be read gets an error status until the next Scan.
// Statuses are stored even when the live settings cannot be read; that
// failure is also returned.
func (s *ProfileStore) RefreshStatus() error {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()
	if err := s.refreshStatus(); err != nil {
		return fmt.Errorf("refresh status: %w", err)
	}
	return nil
}

func (s *ProfileStore) refreshStatus() error {
	s.mu.RLock()
	profiles := append([]domain.Profile(nil), s.profiles...)
	s.mu.RUnlock()

	unreadable := make(map[int]error)
	for i := range profiles {
		content, err := s.profileCache.Get(profiles[i].Path)
		if err != nil {
			unreadable[i] = err
			continue
		}
		profiles[i].Content = content
	}

	liveErr := s.applyStatuses(profiles)
	for i, err := range unreadable {
		profiles[i].Status = domain.ErrorStatus(fmt.Sprintf("profile: %v", err))
		profiles[i].IsActive = false
	}

	s.mu.Lock()
	s.profiles = profiles
	s.mu.Unlock()
	return liveErr
}

func (s *ProfileStore) validateName(name string) error {
	if name == "" {
		return domain.NewError(domain.ErrInvalidFormat, "validate name", "", errors.New("profile name is empty"))
	}
	if len(name) > s.cfg.MaxNameLength {
		return domain.NewError(domain.ErrInvalidFormat, "validate name", name,
			fmt.Errorf("profile name longer than %d bytes", s.cfg.MaxNameLength))
	}
	return nil
}
