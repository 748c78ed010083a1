package bittorrent

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/anacrolix/torrent"
	"golang.org/x/time/rate"

	"github.com/surge-downloader/plugd/internal/plugin"
	"github.com/surge-downloader/plugd/internal/task"
	"github.com/surge-downloader/plugd/internal/utils"
)

// global holds the client shared by every instance. It is created on the
// first transfer and closed once the last instance is released.
var global = struct {
	mu        sync.Mutex
	init      bool
	config    *task.RuntimeConfig
	limit     plugin.Speed
	download  *rate.Limiter
	upload    *rate.Limiter
	client    *torrent.Client
	instances map[*backend]struct{}
	errCode   int
	errString string
}{
	download:  rate.NewLimiter(rate.Inf, 0),
	upload:    rate.NewLimiter(rate.Inf, 0),
	instances: make(map[*backend]struct{}),
}

func runtimeConfig() *task.RuntimeConfig {
	global.mu.Lock()
	defer global.mu.Unlock()
	return global.config
}

func track(b *backend) {
	global.mu.Lock()
	global.instances[b] = struct{}{}
	global.mu.Unlock()
}

func untrack(b *backend) {
	global.mu.Lock()
	delete(global.instances, b)
	if len(global.instances) == 0 {
		closeClientLocked()
	}
	global.mu.Unlock()
}

func recordError(code int, msg string) {
	global.mu.Lock()
	global.errCode = code
	global.errString = msg
	global.mu.Unlock()
}

// acquireClient returns the shared client, creating it from the current
// settings when needed.
func acquireClient() (*torrent.Client, error) {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.client != nil {
		return global.client, nil
	}

	cfg := global.config
	cc := torrent.NewDefaultClientConfig()
	cc.DataDir = filepath.Join(os.TempDir(), "plugd-torrent")
	cc.ListenPort = cfg.GetTorrentListenPort()
	cc.EstablishedConnsPerTorrent = cfg.GetTorrentMaxConnections()
	cc.HTTPUserAgent = cfg.GetUserAgent()
	cc.DownloadRateLimiter = global.download
	cc.UploadRateLimiter = global.upload
	if cfg != nil {
		cc.Seed = cfg.TorrentSeed
		cc.NoUpload = cfg.TorrentNoUpload
		cc.NoDHT = cfg.TorrentDisableDHT
	}
	if err := os.MkdirAll(cc.DataDir, 0o755); err != nil {
		return nil, err
	}

	cl, err := torrent.NewClient(cc)
	if err != nil {
		return nil, fmt.Errorf("bittorrent: start client: %w", err)
	}
	utils.Debug("bittorrent: client listening on port %d", cc.ListenPort)
	global.client = cl
	return cl, nil
}

func closeClientLocked() {
	if global.client == nil {
		return
	}
	for _, err := range global.client.Close() {
		utils.Debug("bittorrent: close client: %v", err)
	}
	global.client = nil
}

func setGlobal(option plugin.Option, param any) plugin.Result {
	global.mu.Lock()
	defer global.mu.Unlock()

	switch option {
	case plugin.OptionInit:
		on, ok := param.(bool)
		if !ok {
			return plugin.ResultError
		}
		global.init = on
		if !on && len(global.instances) == 0 {
			closeClientLocked()
		}
		return plugin.ResultOK

	case plugin.OptionSetting:
		switch c := param.(type) {
		case *task.RuntimeConfig:
			if c == nil {
				global.config = nil
			} else {
				cp := *c
				global.config = &cp
			}
		case task.RuntimeConfig:
			global.config = &c
		default:
			return plugin.ResultError
		}
		return plugin.ResultOK

	case plugin.OptionSpeedLimit:
		s, ok := plugin.SpeedParam(param)
		if !ok || s.Download < 0 || s.Upload < 0 {
			return plugin.ResultError
		}
		global.limit = s
		setLimit(global.download, s.Download)
		setLimit(global.upload, s.Upload)
		return plugin.ResultOK
	}
	return plugin.ResultUnsupported
}

func getGlobal(option plugin.Option, param any) plugin.Result {
	if option == plugin.OptionMatch {
		return criteria.MatchResult(param)
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	switch option {
	case plugin.OptionInit:
		on, ok := param.(*bool)
		if !ok || on == nil {
			return plugin.ResultError
		}
		*on = global.init
		return plugin.ResultOK

	case plugin.OptionSetting:
		c, ok := param.(*task.RuntimeConfig)
		if !ok || c == nil {
			return plugin.ResultError
		}
		if global.config == nil {
			*c = task.RuntimeConfig{}
		} else {
			*c = *global.config
		}
		return plugin.ResultOK

	case plugin.OptionSpeedLimit:
		s, ok := param.(*plugin.Speed)
		if !ok || s == nil {
			return plugin.ResultError
		}
		*s = global.limit
		return plugin.ResultOK

	case plugin.OptionSpeed:
		s, ok := param.(*plugin.Speed)
		if !ok || s == nil {
			return plugin.ResultError
		}
		var down, up int64
		for b := range global.instances {
			down += b.downSpeed.Load()
			up += b.upSpeed.Load()
		}
		*s = plugin.Speed{Download: int(down), Upload: int(up)}
		return plugin.ResultOK

	case plugin.OptionErrorCode:
		c, ok := param.(*int)
		if !ok || c == nil {
			return plugin.ResultError
		}
		*c = global.errCode
		return plugin.ResultOK

	case plugin.OptionErrorString:
		s, ok := param.(*string)
		if !ok || s == nil {
			return plugin.ResultError
		}
		*s = global.errString
		return plugin.ResultOK
	}
	return plugin.ResultUnsupported
}

// setLimit applies a bytes-per-second limit to l; zero removes it. The
// client reads in blocks of up to 16 KiB, so the burst never goes below
// that.
func setLimit(l *rate.Limiter, bps int) {
	if bps <= 0 {
		l.SetLimit(rate.Inf)
		l.SetBurst(0)
		return
	}
	burst := bps
	if burst < 16*task.KB {
		burst = 16 * task.KB
	}
	l.SetLimit(rate.Limit(bps))
	l.SetBurst(burst)
}
