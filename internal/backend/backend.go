// Package backend assembles the built-in transfer engines.
package backend

import (
	"github.com/surge-downloader/plugd/internal/backend/bittorrent"
	"github.com/surge-downloader/plugd/internal/backend/httpget"
	"github.com/surge-downloader/plugd/internal/plugin"
)

// Infos lists the built-in engines in registration order. Earlier entries
// win ties when matching.
func Infos() []*plugin.Info {
	return []*plugin.Info{httpget.Info, bittorrent.Info}
}

// NewRegistry returns a registry holding every built-in engine.
func NewRegistry() (*plugin.Registry, error) {
	r := plugin.NewRegistry()
	for _, info := range Infos() {
		if _, err := r.Register(info); err != nil {
			return nil, err
		}
	}
	return r, nil
}
