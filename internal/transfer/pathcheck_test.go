package transfer

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Kai-project-00/clipgo/internal/config"
	"github.com/Kai-project-00/clipgo/internal/errors"
)

func TestValidatePath_Rejected(t *testing.T) {
	baseDir := t.TempDir()
	cfg := config.DefaultConfig()

	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"parent traversal", "../backup.json"},
		{"mid-path traversal", ExportsDir(baseDir) + "/../backup.json"},
		{"no extension", filepath.Join(ExportsDir(baseDir), "backup")},
		{"wrong extension", filepath.Join(ExportsDir(baseDir), "backup.jsonl")},
		{"outside allowed dirs", filepath.Join(t.TempDir(), "backup.json")},
		{"nested in exports", filepath.Join(ExportsDir(baseDir), "sub", "backup.json")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePath(tc.path, PathCheckWrite, baseDir, cfg)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("ValidatePath(%q) = %v, want INVALID_REQUEST", tc.path, err)
			}
		})
	}
}

func TestValidatePath_ExportsDirAndAllowedPaths(t *testing.T) {
	baseDir := t.TempDir()
	extra := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{extra, "relative/ignored"}

	for _, p := range []string{
		filepath.Join(ExportsDir(baseDir), "out.json"),
		filepath.Join(extra, "out.json"),
	} {
		if err := ValidatePath(p, PathCheckWrite, baseDir, cfg); err != nil {
			t.Errorf("ValidatePath(%q) = %v, want nil", p, err)
		}
	}

	if err := ValidatePath("relative/ignored/out.json", PathCheckWrite, baseDir, cfg); err == nil {
		t.Error("relative allowed_paths entry was honoured")
	}
}

func TestValidatePath_FileNotFoundOnRead(t *testing.T) {
	baseDir := t.TempDir()
	err := ValidatePath(filepath.Join(ExportsDir(baseDir), "missing.json"), PathCheckRead, baseDir, nil)
	if !errors.Is(err, errors.ErrFileNotFound) {
		t.Errorf("err = %v, want FILE_NOT_FOUND", err)
	}
}

func TestValidatePath_AllowUnsafePaths(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	if err := ValidatePath(filepath.Join(dir, "anywhere.json"), PathCheckWrite, t.TempDir(), cfg); err != nil {
		t.Errorf("unsafe write = %v, want nil", err)
	}
	if err := ValidatePath(filepath.Join(dir, "anywhere.txt"), PathCheckWrite, t.TempDir(), cfg); err == nil {
		t.Error("unsafe paths skipped the extension check")
	}
}

func TestValidatePath_SymlinkRejected(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	baseDir := t.TempDir()
	exports := ExportsDir(baseDir)
	if err := os.MkdirAll(exports, 0700); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(t.TempDir(), "target.json")
	if err := os.WriteFile(target, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(exports, "link.json")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	for _, unsafe := range []bool{false, true} {
		cfg := config.DefaultConfig()
		cfg.AllowUnsafePaths = unsafe
		for _, mode := range []PathCheckMode{PathCheckRead, PathCheckWrite} {
			if err := ValidatePath(link, mode, baseDir, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("unsafe=%v mode=%d: err = %v, want INVALID_REQUEST", unsafe, mode, err)
			}
		}
	}
}

func TestContainsTraversal(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a/b.json", false},
		{"a..b.json", false},
		{"../b.json", true},
		{"a/../b.json", true},
	}
	for _, tc := range tests {
		if got := containsTraversal(tc.path); got != tc.want {
			t.Errorf("containsTraversal(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
