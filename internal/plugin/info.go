package plugin

import (
	"strings"

	"github.com/surge-downloader/plugd/internal/source"
	"github.com/surge-downloader/plugd/internal/task"
)

// Backend is the per-instance behavior of one engine. It is created by
// Info.Init and never called concurrently with itself for Sync; Ctrl and
// Accept may race with the engine's own worker and must be safe for that.
type Backend interface {
	// Accept binds data to the instance. It returns false when data lacks
	// something the engine needs.
	Accept(p *Plugin, data *task.Data) bool

	// Sync exchanges progress with data. It returns true while the engine
	// is running or has state left to flush.
	Sync(p *Plugin, data *task.Data) bool

	// Ctrl performs start, stop, speed and get-state commands.
	Ctrl(p *Plugin, code CtrlCode, data any) bool
}

// GlobalFunc is the signature of Info.Set and Info.Get.
type GlobalFunc func(option Option, param any) Result

// Info describes one backend kind. An Info must not be modified once it
// has been registered or used to create a Plugin.
type Info struct {
	Name string

	Init  func(p *Plugin) (Backend, error)
	Final func(b Backend)

	// Matching criteria. A nil or empty list never contributes to a score.
	Hosts    []string
	Schemes  []string
	FileExts []string

	Set GlobalFunc
	Get GlobalFunc
}

// SetGlobal forwards a backend-wide setting to the Set hook.
func (info *Info) SetGlobal(option Option, param any) Result {
	if info == nil || info.Set == nil {
		return ResultUnsupported
	}
	return info.Set(option, param)
}

// GetGlobal forwards a backend-wide query to the Get hook.
func (info *Info) GetGlobal(option Option, param any) Result {
	if info == nil || info.Get == nil {
		return ResultUnsupported
	}
	return info.Get(option, param)
}

// MatchResult answers OptionMatch from the descriptor's criteria, for use
// by Get hooks: OK when the string param scores above zero, FAILED when it
// does not and ERROR for any other param.
func (info *Info) MatchResult(param any) Result {
	raw, ok := param.(string)
	if !ok {
		return ResultError
	}
	if info.MatchURL(raw) > 0 {
		return ResultOK
	}
	return ResultFailed
}

// Match returns how many of the scheme, host and file extension axes of
// loc are claimed by info, from 0 to 3.
func Match(info *Info, loc source.Locator) int {
	if info == nil {
		return 0
	}
	count := 0
	if loc.Scheme != "" && containsFold(info.Schemes, loc.Scheme) {
		count++
	}
	if loc.Host != "" && matchHost(info.Hosts, loc.Host) {
		count++
	}
	if loc.Ext != "" && containsFold(info.FileExts, loc.Ext) {
		count++
	}
	return count
}

// MatchURL is Match on a raw locator. Unparseable input scores 0.
func (info *Info) MatchURL(raw string) int {
	loc, err := source.Locate(raw)
	if err != nil {
		return 0
	}
	return Match(info, loc)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimPrefix(v, "."), s) {
			return true
		}
	}
	return false
}

// matchHost accepts an exact host or any subdomain of a listed host.
func matchHost(hosts []string, host string) bool {
	for _, h := range hosts {
		h = strings.ToLower(h)
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func (info *Info) clone() *Info {
	c := *info
	c.Hosts = append([]string(nil), info.Hosts...)
	c.Schemes = append([]string(nil), info.Schemes...)
	c.FileExts = append([]string(nil), info.FileExts...)
	return &c
}
