package utils

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
)

// ConvertBytesToHumanReadable formats a byte count with IEC units.
func ConvertBytesToHumanReadable(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatSpeed formats a transfer rate in bytes per second.
func FormatSpeed(bps int64) string {
	if bps <= 0 {
		return "--"
	}
	return ConvertBytesToHumanReadable(bps) + "/s"
}

// FormatETA renders d rounded to seconds, or "--" when unknown.
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "--"
	}
	return d.Round(time.Second).String()
}

// EnsureAbsPath returns an absolute version of path, or path unchanged if
// it cannot be resolved.
func EnsureAbsPath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
