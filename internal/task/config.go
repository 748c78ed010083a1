package task

import (
	"net"
	"net/http"
	"net/url"
	"time"
)

// Size constants
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB

	// IncompleteSuffix is appended to files while downloading
	IncompleteSuffix = ".part"
)

// HTTP engine defaults
const (
	WorkerBuffer   = 32 * KB
	MaxTaskRetries = 3
	RetryBaseDelay = 500 * time.Millisecond

	DefaultConnectTimeout        = 30 * time.Second
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 15 * time.Second
	KeepAliveDuration            = 30 * time.Second

	// SpeedWindow is the interval over which engines sample transfer speed.
	SpeedWindow = time.Second
)

// Torrent engine defaults
const (
	TorrentListenPort     = 42069
	TorrentMaxConnections = 80
	TorrentInfoTimeout    = 2 * time.Minute
)

// RuntimeConfig holds dynamic settings that can override engine defaults
type RuntimeConfig struct {
	UserAgent        string
	ProxyURL         string
	WorkerBufferSize int
	MaxTaskRetries   int
	RetryBaseDelay   time.Duration
	ConnectTimeout   time.Duration

	TorrentListenPort     int
	TorrentMaxConnections int
	TorrentSeed           bool
	TorrentNoUpload       bool
	TorrentDisableDHT     bool
	TorrentInfoTimeout    time.Duration
}

// GetUserAgent returns the configured user agent or the default
func (r *RuntimeConfig) GetUserAgent() string {
	if r == nil || r.UserAgent == "" {
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return r.UserAgent
}

// GetWorkerBufferSize returns configured value or default
func (r *RuntimeConfig) GetWorkerBufferSize() int {
	if r == nil || r.WorkerBufferSize <= 0 {
		return WorkerBuffer
	}
	return r.WorkerBufferSize
}

// GetMaxTaskRetries returns configured value or default
func (r *RuntimeConfig) GetMaxTaskRetries() int {
	if r == nil || r.MaxTaskRetries <= 0 {
		return MaxTaskRetries
	}
	return r.MaxTaskRetries
}

func (r *RuntimeConfig) GetRetryBaseDelay() time.Duration {
	if r == nil || r.RetryBaseDelay <= 0 {
		return RetryBaseDelay
	}
	return r.RetryBaseDelay
}

func (r *RuntimeConfig) GetConnectTimeout() time.Duration {
	if r == nil || r.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return r.ConnectTimeout
}

// GetTorrentListenPort returns the configured port or the default. A
// negative port asks for any free port and yields 0.
func (r *RuntimeConfig) GetTorrentListenPort() int {
	if r == nil || r.TorrentListenPort == 0 || r.TorrentListenPort > 65535 {
		return TorrentListenPort
	}
	if r.TorrentListenPort < 0 {
		return 0
	}
	return r.TorrentListenPort
}

func (r *RuntimeConfig) GetTorrentMaxConnections() int {
	if r == nil || r.TorrentMaxConnections <= 0 {
		return TorrentMaxConnections
	}
	if r.TorrentMaxConnections > 1000 {
		return 1000
	}
	return r.TorrentMaxConnections
}

func (r *RuntimeConfig) GetTorrentInfoTimeout() time.Duration {
	if r == nil || r.TorrentInfoTimeout <= 0 {
		return TorrentInfoTimeout
	}
	return r.TorrentInfoTimeout
}

// HTTPClient builds a client honoring ProxyURL, falling back to the
// environment proxy. A non-positive connectTimeout uses GetConnectTimeout.
func (r *RuntimeConfig) HTTPClient(connectTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = r.GetConnectTimeout()
	}
	proxy := http.ProxyFromEnvironment
	if r != nil && r.ProxyURL != "" {
		if u, err := url.Parse(r.ProxyURL); err == nil {
			proxy = http.ProxyURL(u)
		}
	}
	transport := &http.Transport{
		Proxy: proxy,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: KeepAliveDuration,
		}).DialContext,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		ForceAttemptHTTP2:     true,
	}
	// No client timeout; requests are bounded by their context.
	return &http.Client{Transport: transport}
}
