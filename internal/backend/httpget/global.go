package httpget

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/surge-downloader/plugd/internal/plugin"
	"github.com/surge-downloader/plugd/internal/task"
)

// global is the engine-wide state behind Info.Set and Info.Get.
var global = struct {
	mu        sync.Mutex
	init      bool
	config    *task.RuntimeConfig
	limit     plugin.Speed
	limiter   *rate.Limiter // shared by every instance
	instances map[*backend]struct{}
	errCode   int
	errString string
}{
	limiter:   rate.NewLimiter(rate.Inf, task.WorkerBuffer),
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
	global.mu.Unlock()
}

func recordError(code int, msg string) {
	global.mu.Lock()
	global.errCode = code
	global.errString = msg
	global.mu.Unlock()
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
		setLimit(global.limiter, s.Download)
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
		var total int64
		for b := range global.instances {
			total += b.speed.Load()
		}
		*s = plugin.Speed{Download: int(total)}
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

// setLimit applies a bytes-per-second limit to l; zero removes it.
func setLimit(l *rate.Limiter, bps int) {
	if bps <= 0 {
		l.SetLimit(rate.Inf)
		l.SetBurst(task.WorkerBuffer)
		return
	}
	burst := bps
	if burst > task.WorkerBuffer {
		burst = task.WorkerBuffer
	}
	l.SetLimit(rate.Limit(bps))
	l.SetBurst(burst)
}
