package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// SaveJSON encodes object as JSON and atomically replaces filePath with it:
// the data is written to a temporary file in the same directory, synced and
// renamed over the target, so readers never observe a partial snapshot.
// It creates necessary directories if they don't exist.
func SaveJSON(filePath string, object any) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.Marshal(object)
	if err != nil {
		return fmt.Errorf("failed to json encode %s: %w", filePath, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			if removeErr := os.Remove(tmpName); removeErr != nil && !os.IsNotExist(removeErr) {
				slog.Warn("failed to remove temporary file", "path", tmpName, "error", removeErr)
			}
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filePath, err)
	}
	committed = true
	return nil
}

// LoadJSON decodes the JSON file at filePath into objectPointer.
// If the file does not exist, it returns os.ErrNotExist, allowing callers to handle
// fresh starts gracefully.
func LoadJSON(filePath string, objectPointer any) error {
	data, err := os.ReadFile(filePath) // #nosec G304 -- filePath is controlled by application, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return os.ErrNotExist
		}
		return fmt.Errorf("failed to read file %s: %w", filePath, err)
	}
	if err := json.Unmarshal(data, objectPointer); err != nil {
		return fmt.Errorf("failed to json decode from file %s: %w", filePath, err)
	}
	return nil
}
