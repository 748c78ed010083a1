package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "plugd"

// GetPlugdDir returns the directory holding settings.json.
func GetPlugdDir() string {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return filepath.Join(appData, appName)
	case "darwin": // MacOS
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", appName)
	default: // Linux
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, _ := os.UserHomeDir()
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, appName)
	}
}

// GetStateDir returns the directory for the history database and logs.
// Outside Linux it is the same as GetPlugdDir.
func GetStateDir() string {
	if runtime.GOOS != "linux" {
		return GetPlugdDir()
	}
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, _ := os.UserHomeDir()
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, appName)
}

// Returns directory for logs
func GetLogsDir() string {
	return filepath.Join(GetStateDir(), "logs")
}

func GetHistoryPath() string {
	return filepath.Join(GetStateDir(), "history.db")
}

// EnsureDirs creates all required directories
func EnsureDirs() error {
	dirs := []string{GetPlugdDir(), GetStateDir(), GetLogsDir()}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
