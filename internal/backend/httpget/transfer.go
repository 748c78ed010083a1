package httpget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/h2non/filetype"
	"golang.org/x/time/rate"

	"github.com/surge-downloader/plugd/internal/plugin"
	"github.com/surge-downloader/plugd/internal/source"
	"github.com/surge-downloader/plugd/internal/task"
	"github.com/surge-downloader/plugd/internal/utils"
)

// maxRetryWait bounds the pause between attempts.
const maxRetryWait = time.Minute

// transferError carries an event code and whether another attempt may
// succeed.
type transferError struct {
	code  int
	retry bool
	err   error
}

func (e *transferError) Error() string { return e.err.Error() }

func (e *transferError) Unwrap() error { return e.err }

func fail(code int, retry bool, err error) error {
	return &transferError{code: code, retry: retry, err: err}
}

func retryable(err error) bool {
	var te *transferError
	return errors.As(err, &te) && te.retry
}

// download runs the retry loop for job and returns the final path.
func (b *backend) download(ctx context.Context, p *plugin.Plugin, job task.Common) (string, error) {
	if err := os.MkdirAll(job.Folder, 0o755); err != nil {
		return "", fail(plugin.CodeFolderCreateFailed, false, err)
	}

	name := job.File
	if name == "" {
		name = nameFromURL(job.URI)
	}
	part := filepath.Join(job.Folder, sanitizeName(name)) + task.IncompleteSuffix

	lock := flock.New(part + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return "", fail(plugin.CodeFileOpenFailed, false, err)
	}
	if !locked {
		return "", fail(plugin.CodeFileLocked, false, fmt.Errorf("%s is in use by another transfer", filepath.Base(part)))
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	cfg := runtimeConfig()
	connectTimeout := job.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = cfg.GetConnectTimeout()
	}
	retries := job.RetryLimit
	if retries <= 0 {
		retries = cfg.GetMaxTaskRetries()
	}
	delay := job.RetryDelay
	if delay <= 0 {
		delay = cfg.GetRetryBaseDelay()
	}

	client := cfg.HTTPClient(connectTimeout)
	defer client.CloseIdleConnections()

	uris := sources(job)
	var final string
	for attempt := 0; ; attempt++ {
		uri := uris[attempt%len(uris)]
		final, err = b.attempt(ctx, client, cfg, job, uri, part)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !retryable(err) || attempt >= retries {
			return "", err
		}

		wait := backoff(delay, attempt)
		p.Post(plugin.NewEventf(plugin.EventWarning, plugin.CodeConnectFailed, "%v, retrying in %s", err, wait))
		utils.Debug("http: attempt %d for %s failed: %v", attempt+1, uri, err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}

	dest := uniqueFilePath(filepath.Join(job.Folder, final), part)
	if err := os.Rename(part, dest); err != nil {
		return "", fail(plugin.CodeFileCreateFailed, false, err)
	}

	if kind, err := filetype.MatchFile(dest); err == nil && kind != filetype.Unknown {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(dest)), ".")
		if ext != kind.Extension {
			p.Post(plugin.NewEventf(plugin.EventNormal, plugin.CodeNone, "%s looks like %s (%s)", filepath.Base(dest), kind.Extension, kind.MIME.Value))
		}
	}
	return dest, nil
}

// sources lists the primary URI followed by its distinct HTTP mirrors.
// Retries walk the list in order.
func sources(job task.Common) []string {
	uris := []string{job.URI}
	for _, m := range job.Mirrors {
		if source.IsHTTPURL(m) && !slices.Contains(uris, m) {
			uris = append(uris, m)
		}
	}
	return uris
}

// attempt performs one request, appending to part when the server honors
// the Range header. It returns the destination file name.
func (b *backend) attempt(ctx context.Context, client *http.Client, cfg *task.RuntimeConfig, job task.Common, uri, part string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", fail(plugin.CodeIncorrectSource, false, err)
	}
	req.Header.Set("User-Agent", cfg.GetUserAgent())
	for k, v := range job.Headers {
		req.Header.Set(k, v)
	}
	if job.User != "" {
		req.SetBasicAuth(job.User, job.Password)
	}

	var offset int64
	if fi, err := os.Stat(part); err == nil {
		offset = fi.Size()
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fail(plugin.CodeConnectFailed, true, err)
	}
	defer resp.Body.Close()

	name := job.File
	if name == "" {
		name = nameFromResponse(resp)
	}
	name = sanitizeName(name)

	flags := os.O_CREATE | os.O_WRONLY
	switch resp.StatusCode {
	case http.StatusOK:
		offset = 0
		flags |= os.O_TRUNC
	case http.StatusPartialContent:
		if !strings.HasPrefix(resp.Header.Get("Content-Range"), fmt.Sprintf("bytes %d-", offset)) {
			_ = os.Remove(part)
			return "", fail(plugin.CodeConnectFailed, true, fmt.Errorf("server resumed at the wrong offset: %q", resp.Header.Get("Content-Range")))
		}
		flags |= os.O_APPEND
	case http.StatusRequestedRangeNotSatisfiable:
		if offset == 0 {
			return "", fail(plugin.CodeConnectFailed, false, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
		}
		// The partial file already holds the whole body.
		b.total.Store(offset)
		b.complete.Store(offset)
		return name, nil
	default:
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return "", fail(plugin.CodeConnectFailed, retry, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	total := int64(0)
	if resp.ContentLength >= 0 {
		total = offset + resp.ContentLength
	}
	b.total.Store(total)
	b.complete.Store(offset)

	f, err := os.OpenFile(part, flags, 0o644)
	if err != nil {
		return "", fail(plugin.CodeFileCreateFailed, false, err)
	}
	defer f.Close()

	buf := make([]byte, cfg.GetWorkerBufferSize())
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if err := waitN(ctx, b.limiter, n); err != nil {
				return "", err
			}
			if err := waitN(ctx, global.limiter, n); err != nil {
				return "", err
			}
			if _, err := f.Write(buf[:n]); err != nil {
				return "", fail(plugin.CodeOutOfResource, false, err)
			}
			b.complete.Add(int64(n))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fail(plugin.CodeConnectFailed, true, readErr)
		}
	}

	if total > 0 && b.complete.Load() < total {
		return "", fail(plugin.CodeConnectFailed, true, io.ErrUnexpectedEOF)
	}
	if total == 0 {
		b.total.Store(b.complete.Load())
	}
	if err := f.Sync(); err != nil {
		return "", fail(plugin.CodeOutOfResource, false, err)
	}
	return name, nil
}

// backoff doubles delay per attempt, capped at maxRetryWait.
func backoff(delay time.Duration, attempt int) time.Duration {
	if delay <= 0 {
		return 0
	}
	if delay >= maxRetryWait {
		return maxRetryWait
	}
	for ; attempt > 0; attempt-- {
		delay *= 2
		if delay >= maxRetryWait {
			return maxRetryWait
		}
	}
	return delay
}

// tokenBucket is the part of *rate.Limiter that waitN uses.
type tokenBucket interface {
	Limit() rate.Limit
	Burst() int
	WaitN(ctx context.Context, n int) error
}

// waitN takes n tokens from l in burst-sized pieces. SetSpeed may shrink
// the burst between reading it and waiting; the piece is then taken again
// at the new size.
func waitN(ctx context.Context, l tokenBucket, n int) error {
	for n > 0 {
		chunk := n
		if burst := l.Burst(); burst > 0 && chunk > burst {
			chunk = burst
		}
		if err := l.WaitN(ctx, chunk); err != nil {
			if ctx.Err() == nil && l.Limit() != rate.Inf {
				if burst := l.Burst(); burst > 0 && chunk > burst {
					continue
				}
			}
			return err
		}
		n -= chunk
	}
	return nil
}
