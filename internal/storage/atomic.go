// Package storage writes conversion results to disk.
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// AtomicWrite writes data to path through a temporary file in the same
// directory renamed into place, so readers see the whole file or none.
// Missing parent directories are created.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	tempPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), randomHex(8)))
	if err := os.WriteFile(tempPath, data, perm); err != nil {
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming to target: %w", err)
	}
	return nil
}

// WriteOutput stores data at path, "-" meaning w.
func WriteOutput(path string, w io.Writer, data []byte) error {
	if path == "-" {
		_, err := w.Write(data)
		return err
	}
	if err := AtomicWrite(path, data, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
