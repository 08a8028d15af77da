// Package daemon implements the change monitor and the watch daemon built on it.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

// MonitorConfig holds change monitor configuration.
type MonitorConfig struct {
	Interval      time.Duration // Poll cadence (default 5 min)
	MaxWatched    int           // Watch list bound, FIFO eviction
	MaxFileSize   int64         // Larger files are never watched
	MaxCacheSize  int           // Fingerprint count that triggers OptimizeCache
	MaxScanErrors int           // Consecutive failed ticks before fail-stop
	BackoffBase   time.Duration
	BackoffMax    time.Duration
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:      5 * time.Minute,
		MaxWatched:    50,
		MaxFileSize:   10 << 20,
		MaxCacheSize:  100,
		MaxScanErrors: 10,
		BackoffBase:   30 * time.Second,
		BackoffMax:    300 * time.Second,
	}
}

// withDefaults fills zero or negative fields from DefaultMonitorConfig.
func (c MonitorConfig) withDefaults() MonitorConfig {
	def := DefaultMonitorConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.MaxWatched <= 0 {
		c.MaxWatched = def.MaxWatched
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = def.MaxFileSize
	}
	if c.MaxCacheSize <= 0 {
		c.MaxCacheSize = def.MaxCacheSize
	}
	if c.MaxScanErrors <= 0 {
		c.MaxScanErrors = def.MaxScanErrors
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = def.BackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = def.BackoffMax
	}
	return c
}

// ChangeFunc receives the events of one tick. Never called with an empty batch.
type ChangeFunc func(events []domain.ChangeEvent)

// Monitor polls a bounded list of files and reports changes.
//
// The poll loop runs on its own goroutine. All state is guarded by mu,
// which is never held across a probe.
type Monitor struct {
	cfg    MonitorConfig
	fs     domain.FileSystem
	prober domain.Prober
	logger *zap.Logger

	mu                sync.Mutex
	paths             []string
	cache             map[string]domain.Fingerprint
	consecutiveErrors int
	running           bool
	stopCh            chan struct{}
	done              chan struct{}
	err               error
}

// NewMonitor creates a stopped monitor. Unset config fields take their defaults.
func NewMonitor(cfg MonitorConfig, fsys domain.FileSystem, prober domain.Prober, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	done := make(chan struct{})
	close(done)
	return &Monitor{
		cfg:    cfg.withDefaults(),
		fs:     fsys,
		prober: prober,
		logger: logger,
		cache:  make(map[string]domain.Fingerprint),
		done:   done,
	}
}

// AddPath starts watching path. Missing, non-regular, oversized and
// duplicate paths are logged and ignored. When the list is full the
// oldest path and its fingerprint are dropped.
func (m *Monitor) AddPath(path string) bool {
	info, err := m.fs.Stat(path)
	if err != nil {
		m.logger.Warn("not watching missing file", zap.String("path", path), zap.Error(err))
		return false
	}
	if !info.Mode().IsRegular() {
		m.logger.Warn("not watching non-regular file", zap.String("path", path))
		return false
	}
	if info.Size() > m.cfg.MaxFileSize {
		m.logger.Warn("not watching oversized file",
			zap.String("path", path),
			zap.Int64("size", info.Size()),
			zap.Int64("limit", m.cfg.MaxFileSize))
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.paths {
		if p == path {
			return false
		}
	}

	m.paths = append(m.paths, path)
	for len(m.paths) > m.cfg.MaxWatched {
		evicted := m.paths[0]
		m.paths = m.paths[1:]
		delete(m.cache, evicted)
		m.logger.Debug("watch list full, evicted oldest path", zap.String("path", evicted))
	}
	return true
}

// RemovePath stops watching path and drops its fingerprint.
func (m *Monitor) RemovePath(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.paths {
		if p == path {
			m.paths = append(m.paths[:i:i], m.paths[i+1:]...)
			delete(m.cache, path)
			return true
		}
	}
	return false
}

// ClearPaths empties the watch list and the fingerprint cache.
func (m *Monitor) ClearPaths() {
	m.mu.Lock()
	m.paths = nil
	m.cache = make(map[string]domain.Fingerprint)
	m.mu.Unlock()
}

// Paths returns the watch list in insertion order.
func (m *Monitor) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

// Start seeds fingerprints for every watched path and begins polling.
// The first tick fires one interval after Start.
func (m *Monitor) Start(ctx context.Context, onChange ChangeFunc) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return domain.ErrAlreadyRunning
	}
	m.running = true
	m.consecutiveErrors = 0
	m.err = nil
	stop := make(chan struct{})
	done := make(chan struct{})
	m.stopCh = stop
	m.done = done
	interval := m.cfg.Interval
	paths := append([]string(nil), m.paths...)
	m.mu.Unlock()

	m.seed(paths)

	m.logger.Info("change monitor started",
		zap.Duration("interval", interval),
		zap.Int("watched", len(paths)))

	go m.run(ctx, interval, onChange, stop, done)
	return nil
}

// seed fingerprints paths without emitting events.
func (m *Monitor) seed(paths []string) {
	fresh := make(map[string]domain.Fingerprint, len(paths))
	for _, p := range paths {
		fp, err := m.prober.Probe(p)
		if err != nil {
			m.logger.Warn("failed to fingerprint watched file", zap.String("path", p), zap.Error(err))
			continue
		}
		fresh[p] = fp
	}

	m.mu.Lock()
	for p, fp := range fresh {
		if m.isWatchedLocked(p) {
			m.cache[p] = fp
		}
	}
	m.mu.Unlock()
}

func (m *Monitor) run(ctx context.Context, interval time.Duration, onChange ChangeFunc, stop, done chan struct{}) {
	defer close(done)
	defer m.finish(stop)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
		}

		events, err := m.tick()
		if len(events) > 0 && onChange != nil {
			onChange(events)
		}

		if err == nil {
			m.mu.Lock()
			m.consecutiveErrors = 0
			m.mu.Unlock()
			continue
		}

		m.mu.Lock()
		m.consecutiveErrors++
		failures := m.consecutiveErrors
		m.mu.Unlock()

		if failures >= m.cfg.MaxScanErrors {
			m.logger.Error("change monitor stopping after repeated scan errors",
				zap.Int("consecutive_errors", failures), zap.Error(err))
			m.mu.Lock()
			m.err = fmt.Errorf("%w: %v", domain.ErrMonitorStopped, err)
			m.mu.Unlock()
			return
		}

		wait := m.backoff(failures)
		m.logger.Warn("scan failed, backing off",
			zap.Int("consecutive_errors", failures),
			zap.Duration("backoff", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// finish marks the loop stopped unless a newer Start already replaced it.
func (m *Monitor) finish(stop chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCh != stop {
		return
	}
	m.running = false
	m.stopCh = nil
	m.optimizeLocked()
	m.logger.Info("change monitor stopped")
}

// backoff returns BackoffBase doubled per extra failure, capped at BackoffMax.
func (m *Monitor) backoff(failures int) time.Duration {
	d := m.cfg.BackoffBase
	for i := 1; i < failures && d < m.cfg.BackoffMax; i++ {
		d *= 2
	}
	if d > m.cfg.BackoffMax {
		d = m.cfg.BackoffMax
	}
	return d
}

// tick probes every watched path against a snapshot of the cache, then
// applies all cache updates in one batch. A probe error other than
// not-exist fails the tick.
func (m *Monitor) tick() ([]domain.ChangeEvent, error) {
	m.mu.Lock()
	paths := append([]string(nil), m.paths...)
	snapshot := make(map[string]domain.Fingerprint, len(m.cache))
	for p, fp := range m.cache {
		snapshot[p] = fp
	}
	m.mu.Unlock()

	var (
		events  []domain.ChangeEvent
		updates = make(map[string]domain.Fingerprint)
		removed []string
		errs    error
	)
	for _, p := range paths {
		fp, err := m.prober.Probe(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				if _, known := snapshot[p]; known {
					events = append(events, domain.ChangeEvent{Path: p, Type: domain.ChangeDeleted})
					removed = append(removed, p)
				}
				continue
			}
			errs = multierr.Append(errs, err)
			continue
		}

		old, known := snapshot[p]
		switch {
		case !known:
			events = append(events, domain.ChangeEvent{Path: p, Type: domain.ChangeCreated})
			updates[p] = fp
		case old.Differs(fp):
			events = append(events, domain.ChangeEvent{Path: p, Type: domain.ChangeModified})
			updates[p] = fp
		}
	}

	m.mu.Lock()
	for p, fp := range updates {
		if m.isWatchedLocked(p) {
			m.cache[p] = fp
		}
	}
	for _, p := range removed {
		delete(m.cache, p)
	}
	if len(m.cache) > m.cfg.MaxCacheSize {
		m.optimizeLocked()
	}
	m.mu.Unlock()

	for _, ev := range events {
		m.logger.Debug("file changed", zap.String("path", ev.Path), zap.Stringer("type", ev.Type))
	}
	return events, errs
}

// ForceScan runs one tick synchronously. It does not touch the error count.
func (m *Monitor) ForceScan() ([]domain.ChangeEvent, error) {
	return m.tick()
}

// SetInterval validates and stores a new interval in minutes. A running
// monitor is stopped; the caller restarts it with its callback.
func (m *Monitor) SetInterval(minutes int) error {
	if minutes < 1 || minutes > 60 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidInterval, minutes)
	}

	m.mu.Lock()
	m.cfg.Interval = time.Duration(minutes) * time.Minute
	running := m.running
	m.mu.Unlock()

	if running {
		m.Stop()
	}
	return nil
}

// Interval returns the configured poll interval.
func (m *Monitor) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Interval
}

// Stop signals the poll loop to exit and returns without waiting for it.
// Use Done to wait.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.stopCh)
	m.stopCh = nil
	m.running = false
	m.optimizeLocked()
}

// Done returns a channel closed when the current poll loop has exited.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// Err reports why the last poll loop ended on its own; nil after Stop.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// IsRunning reports whether the poll loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// OptimizeCache drops fingerprints of paths that are no longer watched.
func (m *Monitor) OptimizeCache() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.optimizeLocked()
}

func (m *Monitor) optimizeLocked() int {
	dropped := 0
	for p := range m.cache {
		if !m.isWatchedLocked(p) {
			delete(m.cache, p)
			dropped++
		}
	}
	return dropped
}

// ClearCache drops all fingerprints; the next tick reports every file as created.
func (m *Monitor) ClearCache() {
	m.mu.Lock()
	m.cache = make(map[string]domain.Fingerprint)
	m.mu.Unlock()
}

// Stats returns a snapshot of the monitor state.
func (m *Monitor) Stats() domain.MonitoringStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.MonitoringStats{
		WatchedFiles:      len(m.paths),
		CachedFingerprint: len(m.cache),
		ConsecutiveErrors: m.consecutiveErrors,
		Running:           m.running,
		Interval:          m.cfg.Interval,
		CacheSizeLimit:    m.cfg.MaxCacheSize,
		MaxScanErrors:     m.cfg.MaxScanErrors,
	}
}

func (m *Monitor) isWatchedLocked(path string) bool {
	for _, p := range m.paths {
		if p == path {
			return true
		}
	}
	return false
}
