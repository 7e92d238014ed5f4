// Package fsx holds the crash-safe file primitives shared by the tracking
// store and the terminal synchronizer.
package fsx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// StampFormat is the suffix layout used for backups and quarantined files.
const StampFormat = "20060102-150405.000000000"

// Stamp formats t for use in a file name.
func Stamp(t time.Time) string {
	return t.UTC().Format(StampFormat)
}

// WriteFileAtomic writes content to a temp file in the destination directory
// and renames it over path, so readers never observe a partial file.
func WriteFileAtomic(path string, content []byte, mode os.FileMode) error {
	parent := filepath.Dir(path)
	base := filepath.Base(path)

	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	tempFile, err := os.CreateTemp(parent, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(content); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Chmod(mode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS != "windows" {
			return fmt.Errorf("rename temp file: %w", err)
		}
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("remove destination before rename: %w", removeErr)
		}
		if renameErr := os.Rename(tempPath, path); renameErr != nil {
			return fmt.Errorf("rename temp file after remove: %w", renameErr)
		}
	}
	cleanup = false

	syncDirectory(parent)
	return nil
}

func syncDirectory(dir string) {
	if dirHandle, err := os.Open(dir); err == nil {
		_ = dirHandle.Sync()
		_ = dirHandle.Close()
	}
}

// maxBackupAttempts bounds the suffix search when several backups share a
// stamp.
const maxBackupAttempts = 1000

// Backup copies src into dir as <base>.<stamp>.bak and returns the backup
// path. A backup taken in the same clock tick as an earlier one gets a
// _NNN suffix, which still sorts after it. The copy is fsynced before
// returning; a caller that gets a nil error can rely on the backup being
// durable.
func Backup(src, dir string, now time.Time) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	dest, out, err := createBackup(dir, filepath.Base(src)+"."+Stamp(now), info.Mode().Perm())
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return "", fmt.Errorf("copy backup: %w", err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return "", fmt.Errorf("sync backup: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return "", fmt.Errorf("close backup: %w", err)
	}
	syncDirectory(dir)
	return dest, nil
}

func createBackup(dir, prefix string, perm os.FileMode) (string, *os.File, error) {
	for n := 0; n < maxBackupAttempts; n++ {
		name := prefix + ".bak"
		if n > 0 {
			name = fmt.Sprintf("%s_%03d.bak", prefix, n)
		}
		dest := filepath.Join(dir, name)
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
		if err == nil {
			return dest, out, nil
		}
		if !os.IsExist(err) {
			return "", nil, fmt.Errorf("create backup file: %w", err)
		}
	}
	return "", nil, fmt.Errorf("create backup file: no free name for %s in %s", prefix, dir)
}

// Restore atomically replaces dest with the contents of backup.
func Restore(backup, dest string) error {
	data, err := os.ReadFile(backup)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(backup); err == nil {
		mode = info.Mode().Perm()
	}
	return WriteFileAtomic(dest, data, mode)
}

// Quarantine renames path to <path>.corrupt-<stamp> and returns the new name.
func Quarantine(path string, now time.Time) (string, error) {
	dest := fmt.Sprintf("%s.corrupt-%s", path, Stamp(now))
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", path, err)
	}
	syncDirectory(filepath.Dir(path))
	return dest, nil
}
