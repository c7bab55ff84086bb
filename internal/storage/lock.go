package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ServerLock is written next to the database while `gare serve` owns it, so
// two servers never write the same tender rows.
type ServerLock struct {
	Holder    string    `json:"holder"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
}

// AcquireServerLock creates the lock file beside dbPath. A lock left by a
// dead process on this host is replaced. Returns the lock file path for
// cleanup on shutdown.
func AcquireServerLock(dbPath, addr string) (lockPath string, err error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("invalid database path: %w", err)
	}
	lockPath = filepath.Join(filepath.Dir(absPath), ".serve-lock")

	if data, err := os.ReadFile(lockPath); err == nil {
		var existing ServerLock
		if json.Unmarshal(data, &existing) == nil && isProcessAlive(existing.PID, existing.Hostname) {
			return "", fmt.Errorf("another server is already running (PID %d on %s at %s, started %s)",
				existing.PID, existing.Hostname, existing.Addr, existing.StartedAt.Format(time.RFC3339))
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}
	data, err := json.MarshalIndent(ServerLock{
		Holder:    "gare-serve",
		PID:       os.Getpid(),
		Hostname:  hostname,
		Addr:      addr,
		StartedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock: %w", err)
	}
	if err := os.WriteFile(lockPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to create server lock: %w", err)
	}
	return lockPath, nil
}

// ReleaseServerLock removes the lock file.
func ReleaseServerLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove server lock: %w", err)
	}
	return nil
}

// isProcessAlive checks if a process with the given PID exists on the given
// hostname. Remote hosts and permission errors count as alive.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		return true
	}
	if !strings.EqualFold(hostname, currentHost) {
		return true
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}
