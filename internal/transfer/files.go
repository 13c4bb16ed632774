package transfer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/Kai-project-00/clipgo/internal/config"
	"github.com/Kai-project-00/clipgo/internal/errors"
	"github.com/Kai-project-00/clipgo/internal/storage"
)

// MaxImportBytes bounds the size of an import file.
const MaxImportBytes = 64 << 20

// Files exports and imports the data set of one storage manager.
type Files struct {
	storage *storage.Manager
	baseDir string
	cfg     *config.Config
}

// New creates a Files over s. baseDir holds the default exports directory.
func New(s *storage.Manager, baseDir string, cfg *config.Config) *Files {
	return &Files{storage: s, baseDir: baseDir, cfg: cfg}
}

// ExportOutput is the result of Export.
type ExportOutput struct {
	Path       string `json:"path"`
	Bytes      int    `json:"bytes"`
	ExportedAt int64  `json:"exportedAt"`
}

// DefaultExportPath is <baseDir>/exports/clipgo-<timestamp>.json.
func (f *Files) DefaultExportPath() string {
	name := fmt.Sprintf("clipgo-%s%s", f.storage.Now().Format("2006-01-02T150405"), FileExt)
	return filepath.Join(ExportsDir(f.baseDir), name)
}

// Export writes the export document to path, or to DefaultExportPath when
// path is empty. An existing file is replaced only after the new one is
// fully written.
func (f *Files) Export(ctx context.Context, path string) (ExportOutput, error) {
	if path == "" {
		path = f.DefaultExportPath()
		if err := os.MkdirAll(ExportsDir(f.baseDir), 0700); err != nil {
			return ExportOutput{}, errors.NewInternal(fmt.Errorf("create exports directory: %w", err))
		}
	}
	if err := ValidatePath(path, PathCheckWrite, f.baseDir, f.cfg); err != nil {
		return ExportOutput{}, err
	}

	data, err := f.storage.ExportData(ctx)
	if err != nil {
		return ExportOutput{}, err
	}
	if err := writeAtomic(path, data); err != nil {
		return ExportOutput{}, err
	}
	return ExportOutput{Path: path, Bytes: len(data), ExportedAt: f.storage.Now().UnixMilli()}, nil
}

func writeAtomic(path string, data []byte) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	// Windows cannot rename an open file.
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink planted after validation.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return errors.NewInternal(fmt.Errorf("finalize export: %w", err))
	}
	success = true
	return nil
}

// Import reads an export document from path and imports it.
func (f *Files) Import(ctx context.Context, path string) (storage.ImportResult, error) {
	if err := ValidatePath(path, PathCheckRead, f.baseDir, f.cfg); err != nil {
		return storage.ImportResult{}, err
	}
	file, err := openNoFollow(path, os.O_RDONLY, 0)
	if err != nil {
		return storage.ImportResult{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImportBytes+1))
	if err != nil {
		return storage.ImportResult{}, errors.NewInternal(fmt.Errorf("read import file: %w", err))
	}
	if len(data) > MaxImportBytes {
		return storage.ImportResult{}, errors.NewInvalidRequest(
			fmt.Sprintf("import file exceeds %d bytes", MaxImportBytes))
	}
	return f.storage.ImportData(ctx, data)
}
