package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

// ConfigEnvVar overrides the settings file location.
const ConfigEnvVar = "CCSWITCH_CONFIG"

// Interval bounds in minutes.
const (
	MinIntervalMinutes = 1
	MaxIntervalMinutes = 60
)

var supportedLanguages = map[string]bool{
	"en":    true,
	"zh":    true,
	"zh-CN": true,
	"zh-TW": true,
}

// UserSettings are the persisted user preferences.
type UserSettings struct {
	MonitorIntervalMinutes int      `yaml:"monitor_interval_minutes"`
	AutoStartMonitoring    bool     `yaml:"auto_start_monitoring"`
	Language               string   `yaml:"language,omitempty"`
	ShowNotifications      bool     `yaml:"show_notifications"`
	ClaudeDir              string   `yaml:"claude_dir,omitempty"`
	PartialMatchIgnore     []string `yaml:"partial_match_ignore"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() UserSettings {
	return UserSettings{
		MonitorIntervalMinutes: 5,
		AutoStartMonitoring:    true,
		ShowNotifications:      true,
		PartialMatchIgnore:     []string{"model"},
	}
}

// Validate checks value ranges. Empty language means auto-detect.
func (s UserSettings) Validate() error {
	if s.MonitorIntervalMinutes < MinIntervalMinutes || s.MonitorIntervalMinutes > MaxIntervalMinutes {
		return fmt.Errorf("%w: monitor_interval_minutes %d outside [%d,%d]",
			domain.ErrInvalidSetting, s.MonitorIntervalMinutes, MinIntervalMinutes, MaxIntervalMinutes)
	}
	if s.Language != "" && !supportedLanguages[s.Language] {
		return fmt.Errorf("%w: unsupported language %q", domain.ErrInvalidSetting, s.Language)
	}
	for _, field := range s.PartialMatchIgnore {
		if field == "" {
			return fmt.Errorf("%w: empty field in partial_match_ignore", domain.ErrInvalidSetting)
		}
	}
	return nil
}

// MonitorInterval returns the interval as a duration.
func (s UserSettings) MonitorInterval() time.Duration {
	return time.Duration(s.MonitorIntervalMinutes) * time.Minute
}

// SettingsStore loads and saves UserSettings as YAML.
type SettingsStore struct {
	mu      sync.RWMutex
	path    string
	current UserSettings
}

// NewSettingsStore creates a store for path. Call Load before use.
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path, current: DefaultSettings()}
}

// Path returns the settings file path.
func (s *SettingsStore) Path() string {
	return s.path
}

// Load reads the settings file, writing defaults when it does not exist.
// Missing keys keep their default values.
func (s *SettingsStore) Load() (UserSettings, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := s.write(defaults); err != nil {
			return defaults, err
		}
		s.set(defaults)
		return defaults, nil
	}
	if err != nil {
		return DefaultSettings(), fmt.Errorf("read settings %s: %w", s.path, err)
	}

	loaded, err := decodeSettings(data)
	if err != nil {
		return DefaultSettings(), fmt.Errorf("parse settings %s: %w", s.path, err)
	}
	s.set(loaded)
	return loaded, nil
}

// Current returns a copy of the in-memory settings.
func (s *SettingsStore) Current() UserSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.current
	out.PartialMatchIgnore = append([]string(nil), s.current.PartialMatchIgnore...)
	return out
}

// Save validates and persists settings. Invalid settings leave state untouched.
func (s *SettingsStore) Save(settings UserSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := s.write(settings); err != nil {
		return err
	}
	s.set(settings)
	return nil
}

// UpdateMonitorInterval sets the monitor interval in minutes.
func (s *SettingsStore) UpdateMonitorInterval(minutes int) error {
	return s.update(func(u *UserSettings) { u.MonitorIntervalMinutes = minutes })
}

// UpdateAutoStartMonitoring toggles starting the monitor automatically.
func (s *SettingsStore) UpdateAutoStartMonitoring(enabled bool) error {
	return s.update(func(u *UserSettings) { u.AutoStartMonitoring = enabled })
}

// UpdateLanguage sets the UI language; empty means auto.
func (s *SettingsStore) UpdateLanguage(lang string) error {
	return s.update(func(u *UserSettings) { u.Language = lang })
}

// UpdateShowNotifications toggles change notifications.
func (s *SettingsStore) UpdateShowNotifications(enabled bool) error {
	return s.update(func(u *UserSettings) { u.ShowNotifications = enabled })
}

// ResetToDefaults saves and returns the default settings.
func (s *SettingsStore) ResetToDefaults() (UserSettings, error) {
	defaults := DefaultSettings()
	return defaults, s.Save(defaults)
}

// Export writes the current settings to path.
func (s *SettingsStore) Export(path string) error {
	return writeSettingsFile(path, s.Current())
}

// Import reads, validates and saves settings from path.
func (s *SettingsStore) Import(path string) (UserSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return UserSettings{}, fmt.Errorf("read %s: %w", path, err)
	}
	imported, err := decodeSettings(data)
	if err != nil {
		return UserSettings{}, fmt.Errorf("%w: %v", domain.ErrInvalidSetting, err)
	}
	if err := s.Save(imported); err != nil {
		return UserSettings{}, err
	}
	return imported, nil
}

// CreateBackup exports the current settings next to the settings file
// as ccswitch_settings_backup_<unix-seconds>.yaml.
func (s *SettingsStore) CreateBackup() (string, error) {
	name := "ccswitch_settings_backup_" + strconv.FormatInt(time.Now().Unix(), 10) + ".yaml"
	path := filepath.Join(filepath.Dir(s.path), name)
	if err := s.Export(path); err != nil {
		return "", err
	}
	return path, nil
}

func (s *SettingsStore) update(mutate func(*UserSettings)) error {
	next := s.Current()
	mutate(&next)
	return s.Save(next)
}

func (s *SettingsStore) set(settings UserSettings) {
	s.mu.Lock()
	s.current = settings
	s.mu.Unlock()
}

func (s *SettingsStore) write(settings UserSettings) error {
	return writeSettingsFile(s.path, settings)
}

func decodeSettings(data []byte) (UserSettings, error) {
	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return UserSettings{}, err
	}
	if err := settings.Validate(); err != nil {
		return UserSettings{}, err
	}
	return settings, nil
}

// writeSettingsFile writes YAML via temp file and rename.
func writeSettingsFile(path string, settings UserSettings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
