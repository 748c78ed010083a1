package task

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the transfer state recorded on a Data by the host and engines.
type State string

const (
	StateQueued    State = "queued"
	StateActive    State = "active"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateError     State = "error"
)

// Common holds what a backend needs to know to perform a transfer.
type Common struct {
	ID       string
	URI      string
	Mirrors  []string
	Folder   string // Destination directory
	File     string // Destination file name; empty lets the engine decide
	User     string
	Password string
	Headers  map[string]string

	ConnectTimeout time.Duration
	RetryLimit     int
	RetryDelay     time.Duration
	MaxConnections int
}

// Progress is written by engines during Sync.
type Progress struct {
	Complete      int64
	Total         int64
	Uploaded      int64
	Percent       int
	Elapsed       time.Duration
	Left          time.Duration // Estimated time left, 0 when unknown
	DownloadSpeed int64         // bytes/s
	UploadSpeed   int64         // bytes/s
	Ratio         float64
}

// Status is the outcome side of a Data.
type Status struct {
	State   State
	Message string // Last error or notice from the engine
	Path    string // Resolved destination path once known
}

// Data is the task descriptor handed to plugins through Accept and Sync.
// Engines hold the lock while exchanging state with it.
type Data struct {
	Common   Common
	Progress Progress
	Status   Status

	mu sync.Mutex
}

// New returns a queued Data for uri with a fresh ID.
func New(uri string) *Data {
	return &Data{
		Common: Common{
			ID:  uuid.New().String(),
			URI: uri,
		},
		Status: Status{State: StateQueued},
	}
}

func (d *Data) Lock()   { d.mu.Lock() }
func (d *Data) Unlock() { d.mu.Unlock() }

// Snapshot is a consistent copy of a Data taken under its lock.
type Snapshot struct {
	Common   Common
	Progress Progress
	Status   Status
}

func (d *Data) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := Snapshot{
		Common:   d.Common,
		Progress: d.Progress,
		Status:   d.Status,
	}
	if d.Common.Mirrors != nil {
		s.Common.Mirrors = append([]string(nil), d.Common.Mirrors...)
	}
	if d.Common.Headers != nil {
		s.Common.Headers = make(map[string]string, len(d.Common.Headers))
		for k, v := range d.Common.Headers {
			s.Common.Headers[k] = v
		}
	}
	return s
}

// SetState records a state transition and an optional message.
func (d *Data) SetState(state State, msg string) {
	d.mu.Lock()
	d.Status.State = state
	if msg != "" {
		d.Status.Message = msg
	}
	d.mu.Unlock()
}

// UpdateProgress copies p into the descriptor, deriving Percent and Ratio.
func (d *Data) UpdateProgress(p Progress) {
	if p.Total > 0 {
		p.Percent = int(p.Complete * 100 / p.Total)
		if p.Percent > 100 {
			p.Percent = 100
		}
	}
	if p.Complete > 0 {
		p.Ratio = float64(p.Uploaded) / float64(p.Complete)
	}
	if p.DownloadSpeed > 0 && p.Total > p.Complete {
		p.Left = time.Duration((p.Total-p.Complete)/p.DownloadSpeed) * time.Second
	}
	d.mu.Lock()
	d.Progress = p
	d.mu.Unlock()
}
