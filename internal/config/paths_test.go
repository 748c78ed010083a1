package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestGetPlugdDir(t *testing.T) {
	if runtime.GOOS == "linux" {
		tmpDir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", tmpDir)

		if got, want := GetPlugdDir(), filepath.Join(tmpDir, "plugd"); got != want {
			t.Errorf("GetPlugdDir mismatch. Got %s, want %s", got, want)
		}
	}

	dir := GetPlugdDir()
	if !strings.Contains(strings.ToLower(dir), "plugd") {
		t.Errorf("Expected path to contain 'plugd', got: %s", dir)
	}
}

func TestGetStateDir(t *testing.T) {
	if runtime.GOOS == "linux" {
		tmpDir := t.TempDir()
		t.Setenv("XDG_STATE_HOME", tmpDir)

		dir := GetStateDir()
		expected := filepath.Join(tmpDir, "plugd")
		if dir != expected {
			t.Errorf("GetStateDir mismatch. Got %s, want %s", dir, expected)
		}
	} else if GetStateDir() != GetPlugdDir() {
		t.Error("GetStateDir should equal GetPlugdDir on non-Linux")
	}
}

func TestGetLogsDirAndHistoryPath(t *testing.T) {
	dir := GetLogsDir()
	if !strings.HasSuffix(dir, "logs") {
		t.Errorf("Expected path to end with 'logs', got: %s", dir)
	}

	stateDir := GetStateDir()
	if !strings.HasPrefix(dir, stateDir) {
		t.Errorf("LogsDir should be under StateDir. LogsDir: %s, StateDir: %s", dir, stateDir)
	}
	if got := GetHistoryPath(); filepath.Dir(got) != stateDir {
		t.Errorf("history database should live in StateDir, got %s", got)
	}
}

func TestEnsureDirs(t *testing.T) {
	if runtime.GOOS == "linux" {
		baseDir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", filepath.Join(baseDir, "config"))
		t.Setenv("XDG_STATE_HOME", filepath.Join(baseDir, "state"))
	}

	if err := EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs failed: %v", err)
	}

	for _, dir := range []string{GetPlugdDir(), GetStateDir(), GetLogsDir()} {
		info, err := os.Stat(dir)
		if os.IsNotExist(err) {
			t.Errorf("Directory not created: %s", dir)
		} else if err != nil {
			t.Errorf("Error checking directory %s: %v", dir, err)
		} else if !info.IsDir() {
			t.Errorf("Path exists but is not a directory: %s", dir)
		}
	}
}

func TestDirectoryHierarchy(t *testing.T) {
	if runtime.GOOS != "linux" {
		if GetStateDir() != GetPlugdDir() {
			t.Errorf("On non-Linux, StateDir should be same as PlugdDir")
		}
		return
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/config")
	t.Setenv("XDG_STATE_HOME", "/tmp/state")

	if GetPlugdDir() == GetStateDir() {
		t.Error("On Linux, PlugdDir and StateDir should be different")
	}
}
