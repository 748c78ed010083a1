package clipboard

import (
	"net/url"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/surge-downloader/plugd/internal/source"
)

var clipboardReadAll = clipboard.ReadAll

// Validator accepts clipboard text that is a single locator with one of
// the allowed schemes.
type Validator struct {
	allowedSchemes map[string]bool
}

// NewValidator allows the given schemes, or http, https and magnet when
// none are given.
func NewValidator(schemes ...string) *Validator {
	if len(schemes) == 0 {
		schemes = []string{"http", "https", "magnet"}
	}
	allowed := make(map[string]bool, len(schemes))
	for _, s := range schemes {
		allowed[strings.ToLower(s)] = true
	}
	return &Validator{allowedSchemes: allowed}
}

func (v *Validator) ExtractURL(text string) string {
	text = strings.TrimSpace(text)

	// Quick reject: too long, contains newlines, or obviously not a URL
	if len(text) > 4096 || strings.ContainsAny(text, "\n\r") {
		return ""
	}

	parsed, err := url.Parse(text)
	if err != nil {
		return ""
	}
	scheme := strings.ToLower(parsed.Scheme)
	if !v.allowedSchemes[scheme] {
		return ""
	}

	switch scheme {
	case "magnet":
		if !source.IsMagnet(text) {
			return ""
		}
		return text
	case "http", "https":
		if parsed.Host == "" {
			return ""
		}
	}
	return parsed.String()
}

// ReadURL returns the clipboard contents when v accepts them.
func (v *Validator) ReadURL() string {
	text, err := clipboardReadAll()
	if err != nil {
		return ""
	}
	return v.ExtractURL(text)
}
