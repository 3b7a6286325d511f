package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExportDir lays out export runs as Root/<runID>/<file>.
type ExportDir struct {
	Root string
}

func NewExportDir(root string) *ExportDir {
	return &ExportDir{Root: root}
}

// RunDir creates the directory holding one export run's files.
func (d *ExportDir) RunDir(runID string) (string, error) {
	dir := filepath.Join(d.Root, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export run directory: %w", err)
	}
	return dir, nil
}

// FilePath places fileName inside the run directory. Any directory part of
// fileName is dropped so exports cannot leave the run.
func (d *ExportDir) FilePath(runID, fileName string) (string, error) {
	dir, err := d.RunDir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(fileName)), nil
}

// FormatOf maps an export file name to "csv" or "json", or "" when the
// extension is neither.
func FormatOf(fileName string) string {
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".csv", ".json":
		return ext[1:]
	}
	return ""
}

// FileSize reports the size of a written export in bytes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
