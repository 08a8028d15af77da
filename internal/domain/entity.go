// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// Profile is a named settings file living next to the live settings file.
// Content is a snapshot taken at scan time; IsActive and Status are
// recomputed on every status refresh.
type Profile struct {
	Name     string
	Path     string
	Content  string
	IsActive bool
	Status   ActivationStatus
}

// Fingerprint is the comparable metadata of a file.
type Fingerprint struct {
	ModifiedTime time.Time
	Checksum     uint32 // CRC32 of content, 0 if skipped for size
	Size         int64
}

// Differs reports whether f and other describe different file states.
// Order matters: mtime, then size, then checksum. A zero checksum on either
// side never counts as a difference.
func (f Fingerprint) Differs(other Fingerprint) bool {
	if !f.ModifiedTime.Equal(other.ModifiedTime) {
		return true
	}
	if f.Size != other.Size {
		return true
	}
	if f.Checksum != 0 && other.Checksum != 0 && f.Checksum != other.Checksum {
		return true
	}
	return false
}

// ChangeType identifies what happened to a watched file.
type ChangeType int

const (
	ChangeCreated ChangeType = iota
	ChangeModified
	ChangeDeleted
)

// String returns a human-readable name for the change type.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeModified:
		return "modified"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ChangeEvent is emitted by the monitor's diff step.
type ChangeEvent struct {
	Path string
	Type ChangeType
}

// ProfileStatus pairs a profile name with its current activation status.
type ProfileStatus struct {
	Name   string
	Status ActivationStatus
}

// MonitoringStats is a point-in-time view of the change monitor.
type MonitoringStats struct {
	WatchedFiles      int
	CachedFingerprint int
	ConsecutiveErrors int
	Running           bool
	Interval          time.Duration
	CacheSizeLimit    int
	MaxScanErrors     int
}

// BackupInfo describes one backup copy of the live settings file.
type BackupInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// SwitchOutcome is the terminal state of a switch attempt.
type SwitchOutcome string

const (
	OutcomeCommitted  SwitchOutcome = "committed"
	OutcomeRolledBack SwitchOutcome = "rolled_back"
	OutcomeFatal      SwitchOutcome = "fatally_inconsistent"
)

// SwitchRecord is one journal entry for a switch attempt.
type SwitchRecord struct {
	ID         string
	Profile    string
	Outcome    SwitchOutcome
	BackupPath string
	Checksum   uint32 // CRC32 of the content written, 0 when nothing was committed
	Error      string
	ExecutedAt time.Time
}

// MonitorState is the registry entry of a running watch daemon.
// Persisted to a JSON file so `status` can find the daemon.
type MonitorState struct {
	PID             int    `json:"pid"`
	StartedAt       int64  `json:"started_at"`
	LastHeartbeat   int64  `json:"last_heartbeat"`
	IntervalMinutes int    `json:"interval_minutes"`
	Watched         int    `json:"watched"`
	Dir             string `json:"dir"`
	Version         string `json:"version,omitempty"`
}
