package usecase

import (
	"bytes"
	"errors"
	"hash/crc32"
	"io/fs"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

const defaultSettingsPerm fs.FileMode = 0644

// Switch makes the named profile the live settings.
//
// Order: validate, pre-flight, backup, temp-write, verify, rename, verify.
// Nothing is mutated before the backup exists. A failure after the backup
// restores it; if that restore also fails the returned error matches
// domain.ErrRollbackFailed and the live file needs manual attention.
func (s *ProfileStore) Switch(name string) error {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	if name == "" {
		return domain.NewError(domain.ErrInvalidFormat, "switch", "", errors.New("profile name is empty"))
	}
	profile, ok := s.Profile(name)
	if !ok {
		return domain.NewError(domain.ErrNotFound, "switch", name, nil)
	}
	if s.StatusOf(name).Kind == domain.StatusFullMatch {
		s.logger.Debug("profile already active", zap.String("profile", name))
		return nil
	}

	obj, err := parseObject(profile.Content)
	if err != nil {
		return domain.NewError(domain.ErrInvalidFormat, "switch", profile.Path, err)
	}
	intended, err := normalize(obj)
	if err != nil {
		return domain.NewError(domain.ErrInvalidFormat, "switch", profile.Path, err)
	}

	perm, err := s.preflight()
	if err != nil {
		return err
	}

	id := uuid.NewString()
	log := s.logger.With(zap.String("switch_id", id), zap.String("profile", name))

	backupPath, err := s.backups.Create()
	if err != nil {
		log.Warn("switch aborted, backup failed", zap.Error(err))
		return err
	}

	rec := domain.SwitchRecord{ID: id, Profile: name, BackupPath: backupPath}

	if writeErr := s.writeVerified(intended, perm); writeErr != nil {
		defer s.clearCaches()

		if rbErr := s.rollback(backupPath, log); rbErr != nil {
			fatal := domain.NewError(domain.ErrRollbackFailed, "switch", s.livePath, multierr.Combine(writeErr, rbErr))
			log.Error("rollback failed, live settings may be inconsistent",
				zap.String("backup", backupPath), zap.Error(fatal))
			rec.Outcome = domain.OutcomeFatal
			rec.Error = fatal.Error()
			s.record(rec, log)
			return fatal
		}

		log.Warn("switch rolled back", zap.Error(writeErr))
		rec.Outcome = domain.OutcomeRolledBack
		rec.Error = writeErr.Error()
		s.record(rec, log)
		return writeErr
	}

	s.clearCaches()
	_ = s.refreshStatus()
	if _, err := s.backups.Prune(s.cfg.MaxBackups); err != nil {
		log.Warn("failed to prune backups", zap.Error(err))
	}

	rec.Outcome = domain.OutcomeCommitted
	rec.Checksum = crc32.ChecksumIEEE(intended)
	s.record(rec, log)
	log.Info("switched profile", zap.String("backup", backupPath))
	return nil
}

// preflight checks the live file exists and its directory is writable.
// It returns the live file's permission bits.
func (s *ProfileStore) preflight() (fs.FileMode, error) {
	info, err := s.fs.Stat(s.livePath)
	if err != nil {
		return 0, domain.NewError(domain.ErrFileSystem, "preflight", s.livePath, err)
	}
	if !info.Mode().IsRegular() {
		return 0, domain.NewError(domain.ErrFileSystem, "preflight", s.livePath, errors.New("not a regular file"))
	}

	probe := s.livePath + ".write_test"
	if err := s.fs.WriteFile(probe, []byte("test"), defaultSettingsPerm); err != nil {
		_ = s.fs.Remove(probe)
		return 0, domain.NewError(domain.ErrFileSystem, "preflight", probe, err)
	}
	if err := s.fs.Remove(probe); err != nil {
		return 0, domain.NewError(domain.ErrFileSystem, "preflight", probe, err)
	}

	perm := info.Mode().Perm()
	if perm == 0 {
		perm = defaultSettingsPerm
	}
	return perm, nil
}

// writeVerified writes intended to <live>.tmp, checks it, renames it over
// the live file and checks the result again.
func (s *ProfileStore) writeVerified(intended []byte, perm fs.FileMode) error {
	tmpPath := s.livePath + ".tmp"
	_ = s.fs.Remove(tmpPath)

	if err := s.fs.WriteFile(tmpPath, intended, perm); err != nil {
		_ = s.fs.Remove(tmpPath)
		return domain.NewError(domain.ErrFileSystem, "write", tmpPath, err)
	}

	written, err := s.fs.ReadFile(tmpPath)
	if err != nil {
		_ = s.fs.Remove(tmpPath)
		return domain.NewError(domain.ErrFileSystem, "verify", tmpPath, err)
	}
	if !bytes.Equal(written, intended) {
		_ = s.fs.Remove(tmpPath)
		return domain.NewError(domain.ErrCorruptionDetected, "verify", tmpPath, errors.New("temp file content mismatch"))
	}

	if err := s.fs.Rename(tmpPath, s.livePath); err != nil {
		_ = s.fs.Remove(tmpPath)
		return domain.NewError(domain.ErrFileSystem, "rename", s.livePath, err)
	}

	final, err := s.fs.ReadFile(s.livePath)
	if err != nil {
		return domain.NewError(domain.ErrFileSystem, "verify", s.livePath, err)
	}
	if !bytes.Equal(final, intended) {
		return domain.NewError(domain.ErrCorruptionDetected, "verify", s.livePath, errors.New("live file content mismatch"))
	}
	return nil
}

// rollback restores the backup over the live file and drops the backup,
// which is then identical to the live file.
func (s *ProfileStore) rollback(backupPath string, log *zap.Logger) error {
	if err := s.backups.Restore(backupPath); err != nil {
		return err
	}
	if err := s.backups.Remove(backupPath); err != nil {
		log.Warn("failed to remove backup after rollback", zap.String("backup", backupPath), zap.Error(err))
	}
	return nil
}

// Backups lists live-settings backups, newest first.
func (s *ProfileStore) Backups() ([]domain.BackupInfo, error) {
	return s.backups.List()
}

// RestoreBackup replaces the live settings with the named backup.
// The backup itself is kept.
func (s *ProfileStore) RestoreBackup(name string) error {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	path, err := s.backups.Resolve(name)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	log := s.logger.With(zap.String("switch_id", id), zap.String("backup", name))
	rec := domain.SwitchRecord{ID: id, Profile: "backup:" + name, BackupPath: path}

	restoreErr := s.backups.Restore(path)
	s.clearCaches()
	if restoreErr != nil {
		log.Warn("restore failed", zap.Error(restoreErr))
		rec.Outcome = domain.OutcomeRolledBack
		rec.Error = restoreErr.Error()
		s.record(rec, log)
		return restoreErr
	}

	_ = s.refreshStatus()
	rec.Outcome = domain.OutcomeCommitted
	if data, err := s.fs.ReadFile(s.livePath); err == nil {
		rec.Checksum = crc32.ChecksumIEEE(data)
	}
	s.record(rec, log)
	log.Info("restored settings from backup")
	return nil
}

func (s *ProfileStore) clearCaches() {
	s.profileCache.Clear()
	s.liveCache.Clear()
}

func (s *ProfileStore) record(rec domain.SwitchRecord, log *zap.Logger) {
	if s.journal == nil {
		return
	}
	rec.ExecutedAt = s.now()
	if err := s.journal.Record(rec); err != nil {
		log.Warn("failed to journal switch", zap.Error(err))
	}
}
