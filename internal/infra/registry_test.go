package infra

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

func TestFileRegistry_RegisterAndGet(t *testing.T) {
	pm := newMockProcessManager()
	registry := NewFileRegistry(t.TempDir(), pm)

	entry, err := registry.Get()
	require.NoError(t, err)
	assert.Nil(t, entry, "empty registry returns nil entry")

	require.NoError(t, registry.Register(domain.MonitorState{
		PID:             12345,
		IntervalMinutes: 5,
		Watched:         3,
		Dir:             "/home/u/.claude",
		Version:         "0.1.0",
	}))

	entry, err = registry.Get()
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 12345, entry.PID)
	assert.Equal(t, 5, entry.IntervalMinutes)
	assert.Equal(t, "/home/u/.claude", entry.Dir)
	assert.NotZero(t, entry.StartedAt)
	assert.NotZero(t, entry.LastHeartbeat)
}

func TestFileRegistry_UpdateHeartbeat(t *testing.T) {
	pm := newMockProcessManager()
	registry := NewFileRegistry(t.TempDir(), pm)

	assert.Error(t, registry.UpdateHeartbeat(1), "heartbeat without registration fails")

	require.NoError(t, registry.Register(domain.MonitorState{PID: 1, StartedAt: 100}))
	require.NoError(t, registry.UpdateHeartbeat(7))

	entry, err := registry.Get()
	require.NoError(t, err)
	assert.Equal(t, 7, entry.Watched)
	assert.Equal(t, int64(100), entry.StartedAt, "start time preserved")
	assert.GreaterOrEqual(t, entry.LastHeartbeat, entry.StartedAt)
}

func TestFileRegistry_IsAlive(t *testing.T) {
	tests := []struct {
		name     string
		register bool
		running  bool
		want     bool
	}{
		{name: "not registered", register: false, want: false},
		{name: "registered and running", register: true, running: true, want: true},
		{name: "registered but dead", register: true, running: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := newMockProcessManager()
			registry := NewFileRegistry(t.TempDir(), pm)
			if tt.register {
				require.NoError(t, registry.Register(domain.MonitorState{PID: 4242}))
			}
			pm.SetRunning(4242, tt.running)

			alive, err := registry.IsAlive()
			require.NoError(t, err)
			assert.Equal(t, tt.want, alive)
		})
	}
}

func TestFileRegistry_Clear(t *testing.T) {
	registry := NewFileRegistry(t.TempDir(), newMockProcessManager())
	require.NoError(t, registry.Clear(), "clearing empty registry is fine")

	require.NoError(t, registry.Register(domain.MonitorState{PID: 1}))
	require.NoError(t, registry.Clear())

	_, err := os.Stat(registry.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestFileRegistry_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, RegistryFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	registry := NewFileRegistryWithPath(path, newMockProcessManager())
	_, err := registry.Get()
	assert.Error(t, err)
}

func TestFileRegistry_ConcurrentHeartbeats(t *testing.T) {
	registry := NewFileRegistry(t.TempDir(), newMockProcessManager())
	require.NoError(t, registry.Register(domain.MonitorState{PID: 1}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, registry.UpdateHeartbeat(n))
		}(i)
	}
	wg.Wait()

	entry, err := registry.Get()
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.PID)
}
