package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DataDir is the per-project directory holding the database and uploads.
const DataDir = ".gare"

// DiscoverDatabase returns GARE_DB_PATH when set, otherwise the first
// .gare/*.db in the current directory. Parent directories are not searched,
// so a nested project never picks up its parent's tenders.
func DiscoverDatabase() (string, error) {
	if dbPath := os.Getenv("GARE_DB_PATH"); dbPath != "" {
		// Allow special values like ":memory:" or explicit paths
		return dbPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return discoverDatabaseInDir(dir)
}

func discoverDatabaseInDir(dir string) (string, error) {
	dataDir := filepath.Join(dir, DataDir)
	if info, err := os.Stat(dataDir); err == nil && info.IsDir() {
		entries, err := os.ReadDir(dataDir)
		if err == nil {
			for _, entry := range entries {
				if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".db") {
					absPath, err := filepath.Abs(filepath.Join(dataDir, entry.Name()))
					if err != nil {
						return "", fmt.Errorf("failed to get absolute path: %w", err)
					}
					return absPath, nil
				}
			}
		}
	}

	return "", fmt.Errorf(
		"no %s/*.db found in %s\n"+
			"  Run 'gare tender create' to start a database in this directory\n"+
			"  Or use --db flag to specify database path explicitly",
		DataDir, dir)
}

// GetProjectRoot returns the directory containing the .gare/ directory of
// dbPath.
func GetProjectRoot(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	dbDir := filepath.Dir(absPath)
	if filepath.Base(dbDir) != DataDir {
		return "", fmt.Errorf("database must be in a %s/ directory, got: %s", DataDir, dbPath)
	}
	return filepath.Dir(dbDir), nil
}

// UploadDir returns where uploaded files of a tender are stored for dbPath.
// In-memory databases keep uploads under the system temp directory.
func UploadDir(dbPath, tenantID, tenderID string) string {
	root := filepath.Join(os.TempDir(), "gare")
	if dbPath != ":memory:" {
		if projectRoot, err := GetProjectRoot(dbPath); err == nil {
			root = filepath.Join(projectRoot, DataDir)
		} else {
			root = filepath.Dir(dbPath)
		}
	}
	return filepath.Join(root, "uploads", tenantID, tenderID)
}
