package source

import (
	"encoding/base32"
	"encoding/hex"
	"errors"
	"net/url"
	"path"
	"strings"
)

type Kind string

const (
	KindUnknown    Kind = "unknown"
	KindHTTP       Kind = "http"
	KindTorrentURL Kind = "torrent"
	KindMagnet     Kind = "magnet"
	KindFile       Kind = "file"
)

var ErrEmpty = errors.New("empty locator")

// Locator is the part of a resource locator that backends are matched on.
// All fields are lower case; Ext has no leading dot.
type Locator struct {
	Raw    string
	Scheme string
	Host   string
	Ext    string
}

// Locate parses raw into a Locator. Paths without a scheme are treated as
// local files so ".torrent" files on disk still resolve to an extension.
func Locate(raw string) (Locator, error) {
	s := Normalize(raw)
	if s == "" {
		return Locator{}, ErrEmpty
	}
	u, err := url.Parse(s)
	if err != nil {
		return Locator{}, err
	}
	loc := Locator{
		Raw:    s,
		Scheme: strings.ToLower(u.Scheme),
		Host:   strings.ToLower(u.Hostname()),
	}
	p := u.Path
	if u.Opaque != "" && p == "" {
		p = u.Opaque
	}
	if loc.Scheme == "" {
		loc.Scheme = "file"
		p = s
	}
	loc.Ext = strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	return loc, nil
}

func Normalize(raw string) string {
	return strings.TrimSpace(raw)
}

func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func IsTorrentURL(raw string) bool {
	if !IsHTTPURL(raw) {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".torrent")
}

// IsTorrentFile reports whether raw looks like a local .torrent path.
func IsTorrentFile(raw string) bool {
	s := Normalize(raw)
	if strings.Contains(s, "://") {
		return strings.HasPrefix(strings.ToLower(s), "file://") &&
			strings.HasSuffix(strings.ToLower(s), ".torrent")
	}
	return strings.HasSuffix(strings.ToLower(s), ".torrent")
}

// LocalPath strips a file:// prefix from raw.
func LocalPath(raw string) string {
	s := Normalize(raw)
	if len(s) >= 7 && strings.EqualFold(s[:7], "file://") {
		if u, err := url.Parse(s); err == nil && u.Path != "" {
			return u.Path
		}
		return s[7:]
	}
	return s
}

func IsMagnet(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if strings.ToLower(u.Scheme) != "magnet" {
		return false
	}
	// Accept any non-empty magnet payload (opaque or query).
	return u.Opaque != "" || u.RawQuery != ""
}

func KindOf(raw string) Kind {
	s := Normalize(raw)
	if s == "" {
		return KindUnknown
	}
	if IsMagnet(s) {
		return KindMagnet
	}
	if IsTorrentURL(s) {
		return KindTorrentURL
	}
	if IsHTTPURL(s) {
		return KindHTTP
	}
	if IsTorrentFile(s) {
		return KindFile
	}
	return KindUnknown
}

func IsSupported(raw string) bool {
	return KindOf(raw) != KindUnknown
}

func CanonicalKey(raw string) (Kind, string) {
	s := Normalize(raw)
	if s == "" {
		return KindUnknown, ""
	}
	if IsMagnet(s) {
		if key := magnetInfoHash(s); key != "" {
			return KindMagnet, key
		}
		// Fallback to normalized magnet string.
		return KindMagnet, strings.ToLower(s)
	}
	if IsHTTPURL(s) {
		if u, err := url.Parse(s); err == nil {
			u.Fragment = ""
			u.Scheme = strings.ToLower(u.Scheme)
			u.Host = strings.ToLower(u.Host)
			return KindOf(s), u.String()
		}
	}
	return KindOf(s), s
}

func magnetInfoHash(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	for _, xt := range u.Query()["xt"] {
		// Expected: urn:btih:<hash>
		xt = strings.ToLower(strings.TrimSpace(xt))
		hash, ok := strings.CutPrefix(xt, "urn:btih:")
		if !ok || hash == "" {
			continue
		}
		if len(hash) == 40 && isHex(hash) {
			return "btih:" + hash
		}
		if len(hash) == 32 && isBase32(hash) {
			decoded, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(hash))
			if err == nil && len(decoded) == 20 {
				return "btih:" + hex.EncodeToString(decoded)
			}
		}
	}
	return ""
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func isBase32(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '2' && c <= '7':
		default:
			return false
		}
	}
	return true
}

// ParseCommaArg parses a comma-separated input and returns the primary
// locator and its HTTP mirrors. The primary is included in the mirrors
// when it is itself an HTTP URL.
func ParseCommaArg(arg string) (string, []string) {
	primary := ""
	mirrors := []string{}

	for _, p := range strings.Split(arg, ",") {
		clean := strings.TrimSpace(p)
		if clean == "" {
			continue
		}
		if primary == "" {
			if !IsSupported(clean) {
				continue
			}
			primary = clean
			if IsHTTPURL(primary) {
				mirrors = append(mirrors, primary)
			}
			continue
		}
		if IsHTTPURL(clean) {
			mirrors = append(mirrors, clean)
		}
	}

	if primary == "" {
		return "", nil
	}
	return primary, mirrors
}
