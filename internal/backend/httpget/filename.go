package httpget

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vfaronov/httpheader"

	"github.com/surge-downloader/plugd/internal/task"
)

const fallbackName = "index.html"

// nameFromURL derives a file name from the last path segment of raw.
func nameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fallbackName
	}
	name := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return sanitizeName(name)
}

// nameFromResponse prefers the Content-Disposition filename and falls back
// to the final request URL, which may differ from the original after
// redirects.
func nameFromResponse(resp *http.Response) string {
	if _, filename, _ := httpheader.ContentDisposition(resp.Header); filename != "" {
		if name := sanitizeName(filename); name != fallbackName {
			return name
		}
	}
	if resp.Request != nil && resp.Request.URL != nil {
		return nameFromURL(resp.Request.URL.String())
	}
	return fallbackName
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	switch name {
	case "", ".", "/", "..":
		return fallbackName
	}
	return name
}

// uniqueFilePath returns a unique file path by appending (1), (2), etc. if
// the file or its incomplete twin exists. own is the caller's own partial
// file, which does not count as a collision.
func uniqueFilePath(path, own string) string {
	taken := func(p string) bool {
		return p != own && (exists(p) || (p+task.IncompleteSuffix != own && exists(p+task.IncompleteSuffix)))
	}
	if !taken(path) {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	name := strings.TrimSuffix(filepath.Base(path), ext)

	// Continue an existing "name(N)" counter instead of nesting them.
	base := name
	counter := 1
	cleanName := strings.TrimSpace(name)
	if len(cleanName) > 3 && cleanName[len(cleanName)-1] == ')' {
		if openParen := strings.LastIndexByte(cleanName, '('); openParen != -1 {
			if num, err := strconv.Atoi(cleanName[openParen+1 : len(cleanName)-1]); err == nil && num > 0 {
				base = cleanName[:openParen]
				counter = num + 1
			}
		}
	}

	for i := 0; i < 100; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s(%d)%s", base, counter+i, ext))
		if !taken(candidate) {
			return candidate
		}
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
