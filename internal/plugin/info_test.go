package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/surge-downloader/plugd/internal/source"
)

func stubInit(*Plugin) (Backend, error) { return &fakeBackend{}, nil }

func TestMatch_Axes(t *testing.T) {
	info := &Info{
		Name:    "web",
		Hosts:   []string{"example.com"},
		Schemes: []string{"http", "https"},
	}

	tests := []struct {
		raw  string
		want int
	}{
		{"https://example.com/file", 2},
		{"ftp://example.com/file", 1},
		{"http://other.org/file", 1},
		{"https://dl.example.com/file", 2},
		{"https://notexample.com/file", 1},
		{"HTTPS://EXAMPLE.COM/file", 2},
		{"ftp://other.org/file", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, info.MatchURL(tt.raw), tt.raw)
	}
}

func TestMatch_AllAxes(t *testing.T) {
	info := &Info{
		Name:     "bt",
		Hosts:    []string{"tracker.example"},
		Schemes:  []string{"https"},
		FileExts: []string{".torrent", "TORRENT"},
	}
	assert.Equal(t, 3, info.MatchURL("https://tracker.example/a/b.torrent"))
	assert.Equal(t, 1, info.MatchURL("/local/file.torrent"))
}

func TestMatch_EmptyDescriptorNeverScores(t *testing.T) {
	empty := &Info{Name: "empty"}
	rapid.Check(t, func(t *rapid.T) {
		loc := source.Locator{
			Scheme: rapid.StringMatching(`[a-z]{0,6}`).Draw(t, "scheme"),
			Host:   rapid.StringMatching(`[a-z.]{0,12}`).Draw(t, "host"),
			Ext:    rapid.StringMatching(`[a-z0-9]{0,4}`).Draw(t, "ext"),
		}
		if got := Match(empty, loc); got != 0 {
			t.Fatalf("empty descriptor scored %d for %+v", got, loc)
		}
	})
	assert.Equal(t, 0, Match(nil, source.Locator{Scheme: "http"}))
}

func TestMatch_ScoreBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		info := &Info{
			Hosts:    rapid.SliceOfN(rapid.SampledFrom([]string{"a.com", "b.org", "c.net"}), 0, 3).Draw(t, "hosts"),
			Schemes:  rapid.SliceOfN(rapid.SampledFrom([]string{"http", "https", "ftp"}), 0, 3).Draw(t, "schemes"),
			FileExts: rapid.SliceOfN(rapid.SampledFrom([]string{"zip", "iso", "mp4"}), 0, 3).Draw(t, "exts"),
		}
		loc := source.Locator{
			Scheme: rapid.SampledFrom([]string{"http", "https", "ftp", "magnet"}).Draw(t, "scheme"),
			Host:   rapid.SampledFrom([]string{"a.com", "b.org", "x.io"}).Draw(t, "host"),
			Ext:    rapid.SampledFrom([]string{"zip", "iso", "txt", ""}).Draw(t, "ext"),
		}
		got := Match(info, loc)
		if got < 0 || got > 3 {
			t.Fatalf("score %d out of range", got)
		}
		constrained := 0
		for _, set := range [][]string{info.Schemes, info.Hosts, info.FileExts} {
			if len(set) > 0 {
				constrained++
			}
		}
		if got > constrained {
			t.Fatalf("score %d exceeds the %d constrained axes", got, constrained)
		}
	})
}

func TestGlobal_Unsupported(t *testing.T) {
	bare := &Info{Name: "bare", Init: stubInit}
	assert.Equal(t, ResultUnsupported, bare.SetGlobal(OptionSpeedLimit, Speed{}))
	assert.Equal(t, ResultUnsupported, bare.GetGlobal(OptionSpeed, &Speed{}))

	var nilInfo *Info
	assert.Equal(t, ResultUnsupported, nilInfo.GetGlobal(OptionInit, nil))

	var limit Speed
	partial := &Info{
		Name: "partial",
		Init: stubInit,
		Get: func(option Option, param any) Result {
			if option == OptionSpeedLimit {
				*param.(*Speed) = Speed{Download: 7}
				return ResultOK
			}
			return ResultUnsupported
		},
	}
	assert.Equal(t, ResultOK, partial.GetGlobal(OptionSpeedLimit, &limit))
	assert.Equal(t, 7, limit.Download)
	assert.Equal(t, ResultUnsupported, partial.GetGlobal(OptionErrorString, new(string)))
	assert.Equal(t, ResultUnsupported, partial.GetGlobal(OptionDerived+1, nil))
}

func TestGlobal_MatchNeedsGetHook(t *testing.T) {
	info := &Info{Name: "web", Init: stubInit, Schemes: []string{"http"}}
	assert.Equal(t, ResultUnsupported, info.GetGlobal(OptionMatch, "http://x/y"))
	assert.Equal(t, ResultUnsupported, info.GetGlobal(OptionMatch, "ftp://x/y"))

	// A hook that declines MATCH is passed through untouched.
	info.Get = func(Option, any) Result { return ResultUnsupported }
	assert.Equal(t, ResultUnsupported, info.GetGlobal(OptionMatch, "http://x/y"))

	criteria := &Info{Schemes: []string{"http"}}
	info.Get = func(option Option, param any) Result {
		if option == OptionMatch {
			return criteria.MatchResult(param)
		}
		return ResultUnsupported
	}
	assert.Equal(t, ResultOK, info.GetGlobal(OptionMatch, "http://x/y"))
	assert.Equal(t, ResultFailed, info.GetGlobal(OptionMatch, "ftp://x/y"))
	assert.Equal(t, ResultError, info.GetGlobal(OptionMatch, 42))
}

func TestResult_Err(t *testing.T) {
	assert.NoError(t, ResultOK.Err())
	assert.ErrorIs(t, ResultUnsupported.Err(), ErrUnsupported)
	assert.ErrorIs(t, ResultFailed.Err(), ErrResultFailed)
	assert.ErrorIs(t, ResultError.Err(), ErrResultError)
	assert.NotErrorIs(t, ResultUnsupported.Err(), ErrResultError)
	assert.Equal(t, "unsupported", ResultUnsupported.String())
	assert.Equal(t, "derived(2)", (OptionDerived + 2).String())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register(&Info{Name: "x"})
	assert.ErrorIs(t, err, ErrNoInit)
	_, err = r.Register(&Info{})
	assert.ErrorIs(t, err, ErrNoName)

	schemes := []string{"http", "https"}
	web, err := r.Register(&Info{Name: "web", Init: stubInit, Schemes: schemes})
	require.NoError(t, err)
	_, err = r.Register(&Info{Name: "web", Init: stubInit})
	assert.ErrorIs(t, err, ErrDuplicate)

	mirror, err := r.Register(&Info{Name: "mirror", Init: stubInit, Schemes: []string{"https"}})
	require.NoError(t, err)
	site, err := r.Register(&Info{Name: "site", Init: stubInit, Schemes: []string{"https"}, Hosts: []string{"video.example"}})
	require.NoError(t, err)

	// Mutating the caller's slice does not reach the registered copy.
	schemes[0] = "gopher"
	got, ok := r.Lookup("web")
	require.True(t, ok)
	assert.Same(t, web, got)
	assert.Equal(t, []string{"http", "https"}, got.Schemes)

	best, score := r.Best("https://plain.example/file")
	assert.Same(t, web, best, "ties go to the earliest registration")
	assert.Equal(t, 1, score)
	assert.NotSame(t, mirror, best)

	best, score = r.Best("https://video.example/watch")
	assert.Same(t, site, best)
	assert.Equal(t, 2, score)

	best, score = r.Best("gopher://x/y")
	assert.Nil(t, best)
	assert.Zero(t, score)

	assert.Len(t, r.Infos(), 3)
	assert.Len(t, r.Scores("http://a/b"), 3)
}
