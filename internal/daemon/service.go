package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

// ProfileSource is the part of the profile store the watch daemon drives.
type ProfileSource interface {
	Scan() ([]domain.Profile, error)
	RefreshStatus() error
	CompareAll() []domain.ProfileStatus
	MonitoredPaths() []string
	Dir() string
}

// ServiceConfig holds watch daemon configuration.
type ServiceConfig struct {
	HeartbeatInterval time.Duration // How often to update the registry heartbeat
	RescanInterval    time.Duration // How often to rescan for added/removed profiles
	Version           string
}

// DefaultServiceConfig returns default watch daemon configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		HeartbeatInterval: 30 * time.Second,
		RescanInterval:    5 * time.Minute,
	}
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	def := DefaultServiceConfig()
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.RescanInterval <= 0 {
		c.RescanInterval = def.RescanInterval
	}
	return c
}

// Service is the watch daemon. It keeps the monitor's watch list in sync
// with the profile store and refreshes activation status on every change.
type Service struct {
	config   ServiceConfig
	store    ProfileSource
	monitor  *Monitor
	registry domain.MonitorRegistry
	pm       domain.ProcessManager
	logger   *zap.Logger

	// OnRefresh, if set, receives fresh statuses after each change batch.
	OnRefresh func([]domain.ProfileStatus)

	mu        sync.Mutex
	ctx       context.Context
	startedAt int64
}

// NewService creates a watch daemon.
func NewService(
	config ServiceConfig,
	store ProfileSource,
	monitor *Monitor,
	registry domain.MonitorRegistry,
	pm domain.ProcessManager,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		config:   config.withDefaults(),
		store:    store,
		monitor:  monitor,
		registry: registry,
		pm:       pm,
		logger:   logger,
	}
}

// Run starts the daemon loop.
// This blocks until ctx is canceled or the monitor stops itself.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.startedAt = time.Now().Unix()
	s.mu.Unlock()

	if _, err := s.store.Scan(); err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}
	s.syncPaths()

	if err := s.register(); err != nil {
		s.logger.Error("failed to register watch daemon", zap.Error(err))
		return err
	}
	defer func() {
		if err := s.registry.Clear(); err != nil {
			s.logger.Warn("failed to clear registry", zap.Error(err))
		}
	}()

	if err := s.monitor.Start(ctx, s.handleChanges); err != nil {
		return err
	}
	defer s.monitor.Stop()

	s.logger.Info("watch daemon started",
		zap.Int("pid", s.pm.GetCurrentPID()),
		zap.String("dir", s.store.Dir()),
		zap.Int("watched", len(s.monitor.Paths())))

	heartbeatTicker := time.NewTicker(s.config.HeartbeatInterval)
	rescanTicker := time.NewTicker(s.config.RescanInterval)
	defer func() {
		heartbeatTicker.Stop()
		rescanTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("watch daemon stopping")
			return ctx.Err()

		case <-s.monitor.Done():
			// SetInterval holds mu across its stop/start pair
			s.mu.Lock()
			running := s.monitor.IsRunning()
			s.mu.Unlock()
			if err := s.monitor.Err(); err != nil && !running {
				s.logger.Error("monitor stopped, daemon exiting", zap.Error(err))
				return err
			}
			if !running {
				return nil
			}

		case <-heartbeatTicker.C:
			if err := s.registry.UpdateHeartbeat(len(s.monitor.Paths())); err != nil {
				s.logger.Warn("failed to update heartbeat", zap.Error(err))
			}

		case <-rescanTicker.C:
			s.rescan()
		}
	}
}

// SetInterval changes the poll interval and restarts the monitor with the
// daemon's own callback.
func (s *Service) SetInterval(minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.monitor.SetInterval(minutes); err != nil {
		return err
	}
	if s.ctx == nil {
		return nil // Not running yet; Run picks up the new interval
	}

	if err := s.monitor.Start(s.ctx, s.handleChanges); err != nil && !errors.Is(err, domain.ErrAlreadyRunning) {
		return err
	}
	if err := s.registerLocked(); err != nil {
		s.logger.Warn("failed to update registry interval", zap.Error(err))
	}
	s.logger.Info("monitor interval changed", zap.Int("minutes", minutes))
	return nil
}

// handleChanges is the monitor callback.
func (s *Service) handleChanges(events []domain.ChangeEvent) {
	for _, ev := range events {
		s.logger.Info("settings file changed", zap.String("path", ev.Path), zap.Stringer("type", ev.Type))
	}

	if err := s.store.RefreshStatus(); err != nil {
		s.logger.Warn("failed to refresh status", zap.Error(err))
		return
	}
	if s.OnRefresh != nil {
		s.OnRefresh(s.store.CompareAll())
	}
}

// rescan picks up profiles added or removed since the last scan.
func (s *Service) rescan() {
	if _, err := s.store.Scan(); err != nil {
		s.logger.Warn("rescan failed", zap.Error(err))
		return
	}
	s.syncPaths()
}

// syncPaths makes the monitor watch exactly the store's monitored paths.
func (s *Service) syncPaths() {
	want := make(map[string]bool)
	for _, p := range s.store.MonitoredPaths() {
		want[p] = true
	}
	for _, p := range s.monitor.Paths() {
		if !want[p] {
			s.monitor.RemovePath(p)
		}
		delete(want, p)
	}
	for _, p := range s.store.MonitoredPaths() {
		if want[p] {
			s.monitor.AddPath(p)
		}
	}
}

func (s *Service) register() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerLocked()
}

func (s *Service) registerLocked() error {
	return s.registry.Register(domain.MonitorState{
		PID:             s.pm.GetCurrentPID(),
		StartedAt:       s.startedAt,
		IntervalMinutes: int(s.monitor.Interval() / time.Minute),
		Watched:         len(s.monitor.Paths()),
		Dir:             s.store.Dir(),
		Version:         s.config.Version,
	})
}
