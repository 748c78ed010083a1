package plugin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/surge-downloader/plugd/internal/task"
	"github.com/surge-downloader/plugd/internal/utils"
)

var (
	ErrNilInfo = errors.New("plugin: nil backend info")
	ErrNoInit  = errors.New("plugin: backend has no Init hook")

	// ErrRefCount is the panic value for Ref or Unref on a destroyed
	// instance.
	ErrRefCount = errors.New("plugin: reference count underflow")
)

// Plugin is one reference-counted engine instance bound to an Info.
// The instance mutex guards the reference count and the event queue only;
// transfer state belongs to the Backend.
type Plugin struct {
	info    *Info
	backend Backend

	mu       sync.Mutex
	refCount int
	head     *Event
	tail     *Event
}

// New creates an instance of info with a reference count of one.
func New(info *Info) (*Plugin, error) {
	if info == nil {
		return nil, ErrNilInfo
	}
	if info.Init == nil {
		return nil, fmt.Errorf("%s: %w", info.Name, ErrNoInit)
	}

	p := &Plugin{info: info, refCount: 1}
	b, err := info.Init(p)
	if err != nil {
		return nil, fmt.Errorf("%s: init: %w", info.Name, err)
	}
	if b == nil {
		return nil, fmt.Errorf("%s: init returned no backend", info.Name)
	}
	p.backend = b
	utils.Debug("plugin %s: created %p", info.Name, p)
	return p, nil
}

func (p *Plugin) Info() *Info { return p.info }

func (p *Plugin) Backend() Backend { return p.backend }

func (p *Plugin) Name() string { return p.info.Name }

// RefCount returns the current count. It is only meaningful for tests and
// diagnostics since it may change as soon as it is read.
func (p *Plugin) RefCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refCount
}

// Ref adds an owner. Calling Ref on a destroyed instance panics.
func (p *Plugin) Ref() {
	p.mu.Lock()
	if p.refCount <= 0 {
		p.mu.Unlock()
		panic(ErrRefCount)
	}
	p.refCount++
	p.mu.Unlock()
}

// Unref drops an owner. The caller that releases the last reference runs
// the Final hook and discards any undelivered events. Releasing more
// references than were taken panics.
func (p *Plugin) Unref() {
	p.mu.Lock()
	if p.refCount <= 0 {
		p.mu.Unlock()
		panic(ErrRefCount)
	}
	p.refCount--
	if p.refCount > 0 {
		p.mu.Unlock()
		return
	}
	pending := p.drainLocked()
	p.mu.Unlock()

	if p.info.Final != nil {
		p.info.Final(p.backend)
	}

	dropped := 0
	for e := pending; e != nil; {
		next := e.next
		e.next = nil
		e = next
		dropped++
	}
	utils.Debug("plugin %s: destroyed %p (%d undelivered events)", p.info.Name, p, dropped)
}

// Accept offers data to the backend. A running instance refuses new data
// without consulting the backend; re-binding is allowed only while idle.
func (p *Plugin) Accept(data *task.Data) bool {
	if data == nil || p.State() {
		return false
	}
	return p.backend.Accept(p, data)
}

// Sync exchanges state between data and the backend. It returns false
// once the engine has stopped and its final state has been copied.
func (p *Plugin) Sync(data *task.Data) bool {
	if data == nil {
		return p.State()
	}
	return p.backend.Sync(p, data)
}

// Ctrl dispatches a control command. CtrlSetState is reserved and never
// reaches the backend. Malformed payloads are refused.
func (p *Plugin) Ctrl(code CtrlCode, data any) bool {
	switch code {
	case CtrlStart, CtrlStop:
	case CtrlSpeed:
		s, ok := SpeedParam(data)
		if !ok || s.Download < 0 || s.Upload < 0 {
			return false
		}
		data = s
	case CtrlSetState:
		return false
	case CtrlGetState:
		if state, ok := data.(*bool); !ok || state == nil {
			return false
		}
	default:
		return false
	}
	return p.backend.Ctrl(p, code, data)
}

func (p *Plugin) Start() bool { return p.Ctrl(CtrlStart, nil) }

func (p *Plugin) Stop() bool { return p.Ctrl(CtrlStop, nil) }

// SetSpeed limits this instance's download and upload rates.
func (p *Plugin) SetSpeed(s Speed) bool { return p.Ctrl(CtrlSpeed, s) }

// State reports whether the instance is running or still stopping.
func (p *Plugin) State() bool {
	var running bool
	if !p.Ctrl(CtrlGetState, &running) {
		return false
	}
	return running
}
