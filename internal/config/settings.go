package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/surge-downloader/plugd/internal/task"
)

// Settings holds all user-configurable application settings organized by category.
type Settings struct {
	General GeneralSettings `json:"general"`
	Network NetworkSettings `json:"network"`
	Torrent TorrentSettings `json:"torrent"`
}

// GeneralSettings contains application behavior settings.
type GeneralSettings struct {
	DefaultDownloadDir string `json:"default_download_dir"`
	RecordHistory      bool   `json:"record_history"`
	LogRetentionCount  int    `json:"log_retention_count"`
}

// NetworkSettings contains HTTP engine parameters and the global limits.
type NetworkSettings struct {
	MaxConcurrentDownloads int           `json:"max_concurrent_downloads"`
	UserAgent              string        `json:"user_agent"`
	ProxyURL               string        `json:"proxy_url"`
	WorkerBufferSize       int           `json:"worker_buffer_size"`
	MaxTaskRetries         int           `json:"max_task_retries"`
	RetryBaseDelay         time.Duration `json:"retry_base_delay"`
	ConnectTimeout         time.Duration `json:"connect_timeout"`
	DownloadLimitKB        int           `json:"download_limit_kb"`
	UploadLimitKB          int           `json:"upload_limit_kb"`
}

// TorrentSettings contains BitTorrent client parameters.
type TorrentSettings struct {
	ListenPort               int           `json:"listen_port"`
	MaxConnectionsPerTorrent int           `json:"max_connections_per_torrent"`
	Seed                     bool          `json:"seed"`
	NoUpload                 bool          `json:"no_upload"`
	DisableDHT               bool          `json:"disable_dht"`
	InfoTimeout              time.Duration `json:"info_timeout"`
}

// UnmarshalJSON implements custom JSON unmarshalling for Settings.
// Files written before retries moved under "network" kept them in a
// "performance" block; those values are folded into Network.
func (s *Settings) UnmarshalJSON(data []byte) error {
	// Use an alias to avoid infinite recursion (alias has no methods)
	type Alias Settings
	if err := json.Unmarshal(data, (*Alias)(s)); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil // Already parsed above, ignore raw parse errors
	}

	if perf, ok := raw["performance"]; ok {
		var legacy struct {
			MaxTaskRetries int `json:"max_task_retries"`
		}
		if json.Unmarshal(perf, &legacy) == nil && legacy.MaxTaskRetries > 0 {
			s.Network.MaxTaskRetries = legacy.MaxTaskRetries
		}
	}

	return nil
}

// SettingMeta provides metadata for a single setting.
type SettingMeta struct {
	Key         string // JSON key name
	Label       string // Human-readable label
	Description string
	Type        string // "string", "int", "bool", "duration"
}

// GetSettingsMetadata returns metadata for all settings organized by category.
func GetSettingsMetadata() map[string][]SettingMeta {
	return map[string][]SettingMeta{
		"General": {
			{Key: "default_download_dir", Label: "Default Download Dir", Description: "Default directory for new downloads. Leave empty to use current directory.", Type: "string"},
			{Key: "record_history", Label: "Record History", Description: "Keep a record of finished transfers.", Type: "bool"},
			{Key: "log_retention_count", Label: "Log Retention Count", Description: "Number of recent log files to keep.", Type: "int"},
		},
		"Network": {
			{Key: "max_concurrent_downloads", Label: "Max Concurrent Downloads", Description: "Maximum number of transfers running at once (1-10).", Type: "int"},
			{Key: "user_agent", Label: "User Agent", Description: "Custom User-Agent string for HTTP requests. Leave empty for default.", Type: "string"},
			{Key: "proxy_url", Label: "Proxy URL", Description: "HTTP/HTTPS proxy URL (e.g. http://127.0.0.1:1700). Leave empty to use system default.", Type: "string"},
			{Key: "worker_buffer_size", Label: "Worker Buffer Size", Description: "I/O buffer size in bytes.", Type: "int"},
			{Key: "max_task_retries", Label: "Max Task Retries", Description: "Number of times to retry a failed request before giving up.", Type: "int"},
			{Key: "retry_base_delay", Label: "Retry Delay", Description: "Delay before the first retry; doubled on each attempt.", Type: "duration"},
			{Key: "connect_timeout", Label: "Connect Timeout", Description: "Time allowed to establish a connection.", Type: "duration"},
			{Key: "download_limit_kb", Label: "Download Limit", Description: "Global download limit in KB/s. 0 is unlimited.", Type: "int"},
			{Key: "upload_limit_kb", Label: "Upload Limit", Description: "Global upload limit in KB/s. 0 is unlimited.", Type: "int"},
		},
		"Torrent": {
			{Key: "listen_port", Label: "Listen Port", Description: "Inbound TCP port for torrent peers (1-65535).", Type: "int"},
			{Key: "max_connections_per_torrent", Label: "Max Connections/Torrent", Description: "Maximum peer connections per torrent (1-1000).", Type: "int"},
			{Key: "seed", Label: "Seed", Description: "Keep uploading after a torrent completes until stopped.", Type: "bool"},
			{Key: "no_upload", Label: "No Upload", Description: "Never upload to peers.", Type: "bool"},
			{Key: "disable_dht", Label: "Disable DHT", Description: "Find peers through trackers only.", Type: "bool"},
			{Key: "info_timeout", Label: "Metadata Timeout", Description: "How long to wait for magnet metadata.", Type: "duration"},
		},
	}
}

// CategoryOrder returns the order of categories for display.
func CategoryOrder() []string {
	return []string{"General", "Network", "Torrent"}
}

// DefaultSettings returns a new Settings instance with sensible defaults.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()

	defaultDir := ""

	// Check XDG_DOWNLOAD_DIR
	if xdgDir := os.Getenv("XDG_DOWNLOAD_DIR"); xdgDir != "" {
		if info, err := os.Stat(xdgDir); err == nil && info.IsDir() {
			defaultDir = xdgDir
		}
	}

	// Check ~/Downloads if not set
	if defaultDir == "" && homeDir != "" {
		downloadsDir := filepath.Join(homeDir, "Downloads")
		if info, err := os.Stat(downloadsDir); err == nil && info.IsDir() {
			defaultDir = downloadsDir
		}
	}

	return &Settings{
		General: GeneralSettings{
			DefaultDownloadDir: defaultDir,
			RecordHistory:      true,
			LogRetentionCount:  5,
		},
		Network: NetworkSettings{
			MaxConcurrentDownloads: 3,
			UserAgent:              "", // Empty means use default UA
			WorkerBufferSize:       task.WorkerBuffer,
			MaxTaskRetries:         task.MaxTaskRetries,
			RetryBaseDelay:         task.RetryBaseDelay,
			ConnectTimeout:         task.DefaultConnectTimeout,
		},
		Torrent: TorrentSettings{
			ListenPort:               task.TorrentListenPort,
			MaxConnectionsPerTorrent: task.TorrentMaxConnections,
			InfoTimeout:              task.TorrentInfoTimeout,
		},
	}
}

// GetSettingsPath returns the path to the settings JSON file.
func GetSettingsPath() string {
	return filepath.Join(GetPlugdDir(), "settings.json")
}

// LoadSettings loads settings from disk. Returns defaults if file doesn't exist.
func LoadSettings() (*Settings, error) {
	path := GetSettingsPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings() // Start with defaults to fill any missing fields
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// SaveSettings saves settings to disk atomically.
func SaveSettings(s *Settings) error {
	path := GetSettingsPath()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write: write to temp file, then rename
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

// ToRuntimeConfig creates the engine configuration from user Settings.
func (s *Settings) ToRuntimeConfig() *task.RuntimeConfig {
	return &task.RuntimeConfig{
		UserAgent:             s.Network.UserAgent,
		ProxyURL:              s.Network.ProxyURL,
		WorkerBufferSize:      s.Network.WorkerBufferSize,
		MaxTaskRetries:        s.Network.MaxTaskRetries,
		RetryBaseDelay:        s.Network.RetryBaseDelay,
		ConnectTimeout:        s.Network.ConnectTimeout,
		TorrentListenPort:     s.Torrent.ListenPort,
		TorrentMaxConnections: s.Torrent.MaxConnectionsPerTorrent,
		TorrentSeed:           s.Torrent.Seed,
		TorrentNoUpload:       s.Torrent.NoUpload,
		TorrentDisableDHT:     s.Torrent.DisableDHT,
		TorrentInfoTimeout:    s.Torrent.InfoTimeout,
	}
}

// Values flattens s into its JSON keys, for display alongside
// GetSettingsMetadata.
func (s *Settings) Values() (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var categories map[string]map[string]any
	if err := json.Unmarshal(data, &categories); err != nil {
		return nil, err
	}
	out := make(map[string]any)
	for _, fields := range categories {
		for k, v := range fields {
			out[k] = v
		}
	}
	return out, nil
}
