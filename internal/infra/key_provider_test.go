package infra

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalKey_Load(t *testing.T) {
	tests := []struct {
		name   string
		testFn func(t *testing.T, k *JournalKey)
	}{
		{
			name: "first load creates owner-only file",
			testFn: func(t *testing.T, k *JournalKey) {
				key, err := k.Load()
				require.NoError(t, err)
				assert.Len(t, key, journalKeyLen)

				info, err := os.Stat(k.Path())
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
			},
		},
		{
			name: "second load returns the same key",
			testFn: func(t *testing.T, k *JournalKey) {
				first, err := k.Load()
				require.NoError(t, err)
				second, err := k.Load()
				require.NoError(t, err)
				assert.Equal(t, first, second)
			},
		},
		{
			name: "creates missing directories",
			testFn: func(t *testing.T, k *JournalKey) {
				k.path = filepath.Join(filepath.Dir(k.path), "a", "b", JournalKeyName)
				_, err := k.Load()
				require.NoError(t, err)
				assert.FileExists(t, k.Path())
			},
		},
		{
			name: "rejects non-hex content",
			testFn: func(t *testing.T, k *JournalKey) {
				require.NoError(t, os.WriteFile(k.Path(), []byte("not-hex"), 0600))
				_, err := k.Load()
				require.Error(t, err)
				assert.Contains(t, err.Error(), "not hex")
			},
		},
		{
			name: "rejects wrong length",
			testFn: func(t *testing.T, k *JournalKey) {
				require.NoError(t, os.WriteFile(k.Path(), []byte("abcd\n"), 0600))
				_, err := k.Load()
				require.Error(t, err)
				assert.Contains(t, err.Error(), "has 2 bytes")
			},
		},
		{
			name: "rejects group-readable file",
			testFn: func(t *testing.T, k *JournalKey) {
				key, err := k.Load()
				require.NoError(t, err)
				require.NoError(t, os.Chmod(k.Path(), 0640))

				_, err = k.Load()
				require.Error(t, err)
				assert.Contains(t, err.Error(), "other users")
				assert.NotEmpty(t, key)
			},
		},
		{
			name: "random source failure is reported",
			testFn: func(t *testing.T, k *JournalKey) {
				k.rand = strings.NewReader("short")
				_, err := k.Load()
				require.Error(t, err)
				assert.NoFileExists(t, k.Path())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.testFn(t, NewJournalKey(t.TempDir()))
		})
	}
}

func TestJournalKey_ConcurrentFirstLoadAgrees(t *testing.T) {
	dir := t.TempDir()

	const n = 8
	keys := make([][]byte, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys[i], errs[i] = NewJournalKey(dir).Load()
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.True(t, bytes.Equal(keys[0], keys[i]), "key %d differs", i)
	}
}

func TestRandomKey_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		key, err := RandomKey(rand.Reader)
		require.NoError(t, err)
		assert.Len(t, key, journalKeyLen)
		assert.False(t, seen[string(key)], "duplicate key generated")
		seen[string(key)] = true
	}
}
