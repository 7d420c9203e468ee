package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// OutputManager handles the processed and quarantine directories of an
// ingestion run.
type OutputManager struct {
	ProcessedDir string
	ErrorDir     string
}

// NewOutputManager creates a new output manager
func NewOutputManager(processedDir, errorDir string) *OutputManager {
	return &OutputManager{
		ProcessedDir: processedDir,
		ErrorDir:     errorDir,
	}
}

// EnsureOutputDirsExist creates both destination directories.
func (om *OutputManager) EnsureOutputDirsExist() error {
	for _, dir := range []string{om.ProcessedDir, om.ErrorDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Processed moves src into the processed directory and returns its new path.
func (om *OutputManager) Processed(src string) (string, error) {
	return om.relocate(src, om.ProcessedDir)
}

// Quarantine moves src into the error directory and returns its new path.
func (om *OutputManager) Quarantine(src string) (string, error) {
	return om.relocate(src, om.ErrorDir)
}

func (om *OutputManager) relocate(src, dir string) (string, error) {
	dst, err := UniquePath(dir, filepath.Base(src))
	if err != nil {
		return "", err
	}
	if err := MoveFile(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// UniquePath returns dir/name, or dir/stem.N.ext for the first N that does
// not exist yet, so an earlier file with the same name is never overwritten.
func UniquePath(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate, nil
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i < 10000; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s.%d%s", stem, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}

// MoveFile moves a file from src to dst, creating dst's directory. It tries
// a rename first and falls back to copy and delete across filesystems.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy file content: %w", err)
	}
	return out.Sync()
}
