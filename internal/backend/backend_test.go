package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_Routing(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	require.Len(t, r.Infos(), 2)

	tests := []struct {
		uri  string
		want string
	}{
		{"https://example.com/file.zip", "http"},
		{"http://example.com/", "http"},
		{"magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567", "bittorrent"},
		{"/downloads/debian.torrent", "bittorrent"},
	}
	for _, tt := range tests {
		info, score := r.Best(tt.uri)
		require.NotNil(t, info, tt.uri)
		assert.Equal(t, tt.want, info.Name, tt.uri)
		assert.Positive(t, score)
	}

	// Both engines claim an https .torrent URL once; the torrent engine's
	// extension claim does not outrank the earlier HTTP registration.
	info, score := r.Best("https://example.com/debian.torrent")
	require.NotNil(t, info)
	assert.Equal(t, "http", info.Name)
	assert.Equal(t, 1, score)

	info, _ = r.Best("ftp://example.com/file")
	assert.Nil(t, info)
}
