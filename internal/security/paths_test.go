package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidatePathWithin(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "runs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(dir, "escape")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in dir", filepath.Join(dir, "run.snap"), false},
		{"new file in subdir", filepath.Join(dir, "runs", "a", "run.snap"), false},
		{"dir itself", dir, false},
		{"dot dot", filepath.Join(dir, "..", "run.snap"), true},
		{"other dir", filepath.Join(outside, "run.snap"), true},
		{"through symlink", filepath.Join(dir, "escape", "run.snap"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithin(tt.path, dir)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePathWithin(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidateOutputPath(t *testing.T) {
	if err := ValidateOutputPath(filepath.Join(os.TempDir(), "sweep.csv")); err != nil {
		t.Errorf("temp path rejected: %v", err)
	}
	if err := ValidateOutputPath("sweep.csv"); err != nil {
		t.Errorf("relative path rejected: %v", err)
	}
	if err := ValidateOutputPath("/proc/self/sweep.csv"); err == nil {
		t.Error("expected /proc path to be rejected")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sweep-active_cruise_control", "sweep-active_cruise_control"},
		{"grid 3,51,51", "grid_3_51_51"},
		{"../../etc/passwd", "etc_passwd"},
		{"", "unknown"},
		{"***", "unknown"},
		{"ok///name", "ok_name"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := SanitizeFilename(strings.Repeat("a", 300)); len(got) != maxFilenameLen {
		t.Errorf("long name length = %d, want %d", len(got), maxFilenameLen)
	}
}
