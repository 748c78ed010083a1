package plugin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/surge-downloader/plugd/internal/source"
)

var (
	ErrDuplicate = errors.New("plugin: backend already registered")
	ErrNoName    = errors.New("plugin: backend has no name")
)

// Registry is an ordered set of backend descriptors. Earlier registrations
// win ties when selecting a backend for a locator.
type Registry struct {
	mu     sync.RWMutex
	infos  []*Info
	byName map[string]*Info
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Info)}
}

// Register stores a private copy of info and returns it. The copy is what
// Lookup and Best hand out.
func (r *Registry) Register(info *Info) (*Info, error) {
	if info == nil || info.Name == "" {
		return nil, ErrNoName
	}
	if info.Init == nil {
		return nil, fmt.Errorf("%s: %w", info.Name, ErrNoInit)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[info.Name]; ok {
		return nil, fmt.Errorf("%s: %w", info.Name, ErrDuplicate)
	}
	c := info.clone()
	r.infos = append(r.infos, c)
	r.byName[c.Name] = c
	return c, nil
}

func (r *Registry) Lookup(name string) (*Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.byName[name]
	return info, ok
}

// Infos returns the registered descriptors in registration order.
func (r *Registry) Infos() []*Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Info(nil), r.infos...)
}

// Score pairs a descriptor with its match count for one locator.
type Score struct {
	Info  *Info
	Score int
}

// Scores returns the match score of every backend for raw, in
// registration order.
func (r *Registry) Scores(raw string) []Score {
	infos := r.Infos()
	scores := make([]Score, 0, len(infos))
	loc, err := source.Locate(raw)
	for _, info := range infos {
		s := 0
		if err == nil {
			s = Match(info, loc)
		}
		scores = append(scores, Score{Info: info, Score: s})
	}
	return scores
}

// Best returns the highest scoring backend for raw. A zero score never
// selects a backend; (nil, 0) is returned instead.
func (r *Registry) Best(raw string) (*Info, int) {
	var best *Info
	top := 0
	for _, s := range r.Scores(raw) {
		if s.Score > top {
			best, top = s.Info, s.Score
		}
	}
	return best, top
}
