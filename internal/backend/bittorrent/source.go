package bittorrent

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"

	"github.com/surge-downloader/plugd/internal/plugin"
	"github.com/surge-downloader/plugd/internal/source"
	"github.com/surge-downloader/plugd/internal/task"
)

// maxTorrentFile bounds how much of a remote .torrent is read.
const maxTorrentFile = 16 * task.MB

// checkSource validates uri without touching the network and returns the
// event code to report when it is unusable.
func checkSource(uri string) (int, error) {
	switch {
	case source.IsMagnet(uri):
		m, err := metainfo.ParseMagnetUri(uri)
		if err != nil {
			return plugin.CodeIncorrectSource, fmt.Errorf("invalid magnet link: %w", err)
		}
		if m.InfoHash == (metainfo.Hash{}) {
			return plugin.CodeIncorrectSource, fmt.Errorf("missing or invalid infohash")
		}
		return plugin.CodeNone, nil
	case source.IsTorrentFile(uri), source.IsTorrentURL(uri):
		return plugin.CodeNone, nil
	case source.IsHTTPURL(uri):
		return plugin.CodeUnsupportedFile, fmt.Errorf("not a .torrent URL: %s", uri)
	}
	return plugin.CodeUnsupportedScheme, fmt.Errorf("unsupported source: %s", uri)
}

// loadSpec resolves uri into a torrent spec. Remote .torrent files are
// fetched through client with ctx.
func loadSpec(ctx context.Context, client *http.Client, uri, userAgent string) (*torrent.TorrentSpec, error) {
	if source.IsMagnet(uri) {
		return torrent.TorrentSpecFromMagnetUri(uri)
	}

	var mi *metainfo.MetaInfo
	var err error
	if source.IsTorrentURL(uri) {
		mi, err = fetchMetaInfo(ctx, client, uri, userAgent)
	} else {
		mi, err = metainfo.LoadFromFile(source.LocalPath(uri))
	}
	if err != nil {
		return nil, err
	}
	return torrent.TorrentSpecFromMetaInfoErr(mi)
}

func fetchMetaInfo(ctx context.Context, client *http.Client, uri, userAgent string) (*metainfo.MetaInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return metainfo.Load(io.LimitReader(resp.Body, maxTorrentFile))
}
