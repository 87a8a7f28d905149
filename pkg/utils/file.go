package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BackupTimeLayout is the timestamp suffix of backup files.
const BackupTimeLayout = "20060102150405"

// IsDirectory checks if a path is a directory.
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// WriteFileAtomic writes data to a temp file in the target directory, syncs
// it, and renames it over path. Readers see either the old or the new file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if IsDirectory(path) {
		return fmt.Errorf("cannot write %s: is a directory", path)
	}
	dir := filepath.Dir(path)
	if !IsDirectory(dir) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// BackupFile copies path to <path>.bak.<timestamp>. A second backup in the
// same second gets a .1, .2, ... suffix. A missing source is not an error and
// yields an empty backup path.
func BackupFile(path string, now time.Time) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s for backup: %w", path, err)
	}
	base := fmt.Sprintf("%s.bak.%s", path, now.Format(BackupTimeLayout))
	backup := base
	for seq := 1; FileExists(backup); seq++ {
		backup = fmt.Sprintf("%s.%d", base, seq)
	}
	if err := WriteFileAtomic(backup, data, 0644); err != nil {
		return "", err
	}
	return backup, nil
}

type backupFile struct {
	name string
	at   time.Time
	seq  int
}

// parseBackupSuffix splits "<timestamp>[.<seq>]".
func parseBackupSuffix(suffix string) (time.Time, int, bool) {
	stamp, seqText, hasSeq := strings.Cut(suffix, ".")
	at, err := time.Parse(BackupTimeLayout, stamp)
	if err != nil {
		return time.Time{}, 0, false
	}
	if !hasSeq {
		return at, 0, true
	}
	seq, err := strconv.Atoi(seqText)
	if err != nil || seq < 1 {
		return time.Time{}, 0, false
	}
	return at, seq, true
}

// ListBackups returns the backups of path, newest first.
func ListBackups(path string) ([]string, error) {
	matches, err := filepath.Glob(path + ".bak.*")
	if err != nil {
		return nil, err
	}
	prefix := path + ".bak."
	var found []backupFile
	for _, m := range matches {
		if at, seq, ok := parseBackupSuffix(strings.TrimPrefix(m, prefix)); ok {
			found = append(found, backupFile{name: m, at: at, seq: seq})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if !found[i].at.Equal(found[j].at) {
			return found[i].at.After(found[j].at)
		}
		return found[i].seq > found[j].seq
	})
	backups := make([]string, len(found))
	for i, b := range found {
		backups[i] = b.name
	}
	return backups, nil
}

// PruneBackups keeps the newest keep backups of path and removes the rest.
// keep <= 0 keeps everything.
func PruneBackups(path string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	backups, err := ListBackups(path)
	if err != nil {
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}
	var removed []string
	for _, b := range backups[keep:] {
		if err := os.Remove(b); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove backup %s: %w", b, err)
		}
		removed = append(removed, b)
	}
	return removed, nil
}
