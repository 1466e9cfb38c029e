package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/remindd/remindd/internal/model"
)

// FilePrefix starts every local backup file name. The record timestamp
// follows, so names sort chronologically.
const FilePrefix = "event-reminder-backup"

// FileExt is the local backup file extension.
const FileExt = ".bak"

// Save writes the record to dir as a JSON envelope and returns the
// full path. Records are immutable; an existing file with the same
// timestamp is overwritten with identical content.
func Save(record *model.BackupRecord, dir string) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("serialize backup record: %w", err)
	}

	name := fmt.Sprintf("%s %s%s", FilePrefix, record.Timestamp, FileExt)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write backup file: %w", err)
	}
	return path, nil
}

// Load reads a backup record from a local file.
func Load(path string) (*model.BackupRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backup file: %w", err)
	}

	var record model.BackupRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackupFile, err)
	}
	return &record, nil
}

// ListFiles returns the backup files in dir, oldest first.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, FilePrefix) && strings.HasSuffix(name, FileExt) {
			files = append(files, filepath.Join(dir, name))
		}
	}
	// Timestamps in names compare lexicographically in time order.
	sort.Strings(files)
	return files, nil
}

// Prune deletes the oldest backup files in dir until at most max
// remain, honoring the max-backups setting. A max below one keeps a
// single file. It returns the number of files removed.
func Prune(dir string, max int) (int, error) {
	if max < 1 {
		max = 1
	}

	files, err := ListFiles(dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for len(files)-removed > max {
		if err := os.Remove(files[removed]); err != nil {
			return removed, fmt.Errorf("prune backup: %w", err)
		}
		removed++
	}
	return removed, nil
}
