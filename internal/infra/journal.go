package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

// JournalDBName is the journal database file inside the data dir.
const JournalDBName = "journal.db"

// Journal implements domain.SwitchJournal using a SQLCipher encrypted
// SQLite database. Profiles may carry API tokens, so the history of
// switches is kept encrypted at rest.
type Journal struct {
	db     *sql.DB
	dbPath string
}

// OpenJournal opens (or creates) the encrypted journal in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func OpenJournal(dataDir string, key []byte) (*Journal, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, JournalDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// A wrong key only surfaces on first query
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	j := &Journal{db: db, dbPath: dbPath}
	if err := j.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal tables: %w", err)
	}
	return j, nil
}

// OpenJournalWithKey loads the passphrase from src and opens the journal.
func OpenJournalWithKey(dataDir string, src domain.KeySource) (*Journal, error) {
	key, err := src.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load journal key: %w", err)
	}
	return OpenJournal(dataDir, key)
}

func (j *Journal) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS switches (
		id TEXT PRIMARY KEY,
		profile TEXT NOT NULL,
		outcome TEXT NOT NULL,
		backup_path TEXT DEFAULT '',
		checksum INTEGER DEFAULT 0,
		error TEXT DEFAULT '',
		executed_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_switches_executed_at ON switches (executed_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record appends one switch attempt. A missing ID or timestamp is filled in.
func (j *Journal) Record(rec domain.SwitchRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ExecutedAt.IsZero() {
		rec.ExecutedAt = time.Now()
	}

	_, err := j.db.Exec(`
		INSERT INTO switches (id, profile, outcome, backup_path, checksum, error, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Profile, string(rec.Outcome), rec.BackupPath, int64(rec.Checksum), rec.Error,
		rec.ExecutedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record switch %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (j *Journal) Recent(limit int) ([]domain.SwitchRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.Query(`
		SELECT id, profile, outcome, backup_path, checksum, error, executed_at
		FROM switches ORDER BY executed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.SwitchRecord
	for rows.Next() {
		var (
			rec      domain.SwitchRecord
			outcome  string
			checksum int64
			executed int64
		)
		if err := rows.Scan(&rec.ID, &rec.Profile, &outcome, &rec.BackupPath, &checksum, &rec.Error, &executed); err != nil {
			return nil, err
		}
		rec.Outcome = domain.SwitchOutcome(outcome)
		rec.Checksum = uint32(checksum)
		rec.ExecutedAt = time.Unix(0, executed)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.dbPath
}

// Close releases the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Ensure Journal implements domain.SwitchJournal.
var _ domain.SwitchJournal = (*Journal)(nil)
