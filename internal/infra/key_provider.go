package infra

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

const (
	// JournalKeyName is the passphrase file next to the journal database.
	JournalKeyName = "journal.key"
	journalKeyLen  = 32 // SQLCipher raw key
)

// JournalKey is the owner-only hex file holding the journal passphrase.
// The first Load creates it.
type JournalKey struct {
	path string
	rand io.Reader
}

// NewJournalKey returns the key file in dataDir.
func NewJournalKey(dataDir string) *JournalKey {
	return &JournalKey{path: filepath.Join(dataDir, JournalKeyName), rand: rand.Reader}
}

// Path returns the key file path.
func (k *JournalKey) Path() string {
	return k.path
}

// Load returns the passphrase, creating the file on first use.
// Two processes racing on the first run end up with the same key.
func (k *JournalKey) Load() ([]byte, error) {
	key, err := k.read()
	if !errors.Is(err, fs.ErrNotExist) {
		return key, err
	}

	key, err = RandomKey(k.rand)
	if err != nil {
		return nil, err
	}
	created, err := k.create(key)
	if err != nil {
		return nil, err
	}
	if !created {
		return k.read()
	}
	return key, nil
}

func (k *JournalKey) read() ([]byte, error) {
	info, err := os.Stat(k.path)
	if err != nil {
		return nil, err
	}
	if info.Mode().Perm()&0077 != 0 {
		return nil, fmt.Errorf("journal key %s is accessible by other users (mode %v)", k.path, info.Mode().Perm())
	}

	raw, err := os.ReadFile(k.path)
	if err != nil {
		return nil, fmt.Errorf("read journal key: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("journal key %s is not hex: %w", k.path, err)
	}
	if len(key) != journalKeyLen {
		return nil, fmt.Errorf("journal key %s has %d bytes, want %d", k.path, len(key), journalKeyLen)
	}
	return key, nil
}

// create publishes key with a hard link from a temp file, so readers
// never see a partial key. It reports false when another process
// created the file first.
func (k *JournalKey) create(key []byte) (bool, error) {
	dir := filepath.Dir(k.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return false, fmt.Errorf("create key directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, JournalKeyName+".*.tmp")
	if err != nil {
		return false, fmt.Errorf("create journal key: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(hex.EncodeToString(key) + "\n"); err != nil {
		tmp.Close()
		return false, fmt.Errorf("write journal key: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("write journal key: %w", err)
	}

	err = os.Link(tmp.Name(), k.path)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("publish journal key: %w", err)
	}
	return true, nil
}

// RandomKey draws a fresh journal passphrase from r.
func RandomKey(r io.Reader) ([]byte, error) {
	key := make([]byte, journalKeyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("generate journal key: %w", err)
	}
	return key, nil
}

var _ domain.KeySource = (*JournalKey)(nil)
