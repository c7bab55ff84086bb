package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireServerLock(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gare.db")

	lockPath, err := AcquireServerLock(dbPath, ":8080")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(dbPath), ".serve-lock"), lockPath)

	data, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	var lock ServerLock
	require.NoError(t, json.Unmarshal(data, &lock))
	assert.Equal(t, os.Getpid(), lock.PID)
	assert.Equal(t, ":8080", lock.Addr)

	// Our own process is alive, so a second acquire fails.
	_, err = AcquireServerLock(dbPath, ":9090")
	assert.ErrorContains(t, err, "already running")

	require.NoError(t, ReleaseServerLock(lockPath))
	_, err = os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err))

	// Releasing twice is fine.
	assert.NoError(t, ReleaseServerLock(lockPath))
	assert.NoError(t, ReleaseServerLock(""))
}

func TestAcquireServerLockReplacesStaleLock(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "gare.db")
	hostname, err := os.Hostname()
	require.NoError(t, err)

	// PIDs this large are never allocated on Linux.
	stale, err := json.Marshal(ServerLock{PID: 1 << 30, Hostname: hostname, StartedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".serve-lock"), stale, 0644))

	lockPath, err := AcquireServerLock(dbPath, ":8080")
	require.NoError(t, err)
	defer ReleaseServerLock(lockPath)
}

func TestIsProcessAliveRemoteHost(t *testing.T) {
	assert.True(t, isProcessAlive(1<<30, "some-other-host.invalid"))
}
