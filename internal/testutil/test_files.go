// Package testutil holds fixtures shared by engine tests.
package testutil

import (
	"bytes"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/surge-downloader/plugd/internal/task"
)

// Payload returns n bytes of a repeating, printable pattern.
func Payload(n int) []byte {
	return bytes.Repeat([]byte("0123456789abcdef"), n/16+1)[:n]
}

// CreateTestFile creates a test file with the specified size filled
// with either zeros or random data.
func CreateTestFile(dir, name string, size int64, random bool) (string, error) {
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	if !random {
		return path, f.Truncate(size)
	}

	chunk := make([]byte, 64*task.KB)
	for remaining := size; remaining > 0; {
		n := min(remaining, int64(len(chunk)))
		_, _ = rand.Read(chunk[:n])
		if _, err := f.Write(chunk[:n]); err != nil {
			return "", err
		}
		remaining -= n
	}
	return path, nil
}

// CreatePartFile writes data as the partial download of name, the way
// the HTTP engine leaves it after an interrupted transfer.
func CreatePartFile(dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, name+task.IncompleteSuffix)
	return path, os.WriteFile(path, data, 0o644)
}

// VerifyFileSize checks if a file has the expected size.
func VerifyFileSize(path string, expectedSize int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() != expectedSize {
		return &FileSizeMismatchError{
			Path:     path,
			Expected: expectedSize,
			Actual:   info.Size(),
		}
	}
	return nil
}

// FileSizeMismatchError indicates a file size doesn't match expected.
type FileSizeMismatchError struct {
	Path     string
	Expected int64
	Actual   int64
}

func (e *FileSizeMismatchError) Error() string {
	return "file size mismatch: " + e.Path
}

// RangeServer serves body with Range support and records the Range
// header of every request.
type RangeServer struct {
	*httptest.Server

	mu     sync.Mutex
	ranges []string
}

func NewRangeServer(name string, body []byte) *RangeServer {
	s := &RangeServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.ranges = append(s.ranges, r.Header.Get("Range"))
		s.mu.Unlock()
		http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(body))
	}))
	return s
}

// Ranges returns the Range headers seen so far, in arrival order.
func (s *RangeServer) Ranges() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ranges...)
}
