package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/surge-downloader/plugd/internal/backend"
	"github.com/surge-downloader/plugd/internal/benchmark"
	"github.com/surge-downloader/plugd/internal/config"
	"github.com/surge-downloader/plugd/internal/host"
	"github.com/surge-downloader/plugd/internal/task"
)

var (
	flagServer = flag.Bool("server", false, "Run as benchmark server only")
	flagPort   = flag.Int("port", 0, "Port to listen on (0 for random)")
	flagSize   = flag.String("size", "2GB", "File size to serve (e.g. 500MB, 2GiB)")
	flagLimit  = flag.Int("limit", 0, "Global download limit in KB/s (0 for unlimited)")
)

func main() {
	flag.Parse()

	size, err := humanize.ParseBytes(*flagSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid size: %v\n", err)
		os.Exit(1)
	}
	fileSize := int64(size)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		http.ServeContent(w, r, "bench.bin", time.Now(), &ZeroReader{Size: fileSize})
	})

	if *flagServer {
		listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", *flagPort))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to listen: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Server listening on http://%s/bench.bin\n", listener.Addr().String())
		if err := http.Serve(listener, handler); err != nil {
			fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ts := httptest.NewServer(handler)
	defer ts.Close()
	fmt.Printf("Benchmark Server running at %s\n", ts.URL)

	// Write to /dev/shm when available to keep disk I/O out of the numbers.
	destDir := "/dev/shm"
	if _, err := os.Stat(destDir); err != nil {
		destDir = os.TempDir()
	}
	destDir, err = os.MkdirTemp(destDir, "plugd-bench-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(destDir)

	settings := config.DefaultSettings()
	settings.General.RecordHistory = false
	settings.Network.WorkerBufferSize = 4 * task.MB
	settings.Network.DownloadLimitKB = *flagLimit

	reg, err := backend.NewRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to register backends: %v\n", err)
		os.Exit(1)
	}
	h := host.New(reg, settings)
	if err := h.Configure(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure backends: %v\n", err)
		os.Exit(1)
	}

	metrics := benchmark.NewMetrics()
	metrics.Attach(h)

	d := task.New(ts.URL + "/bench.bin")
	d.Common.Folder = destDir

	fmt.Printf("Downloading %s to %s...\n", humanize.IBytes(size), filepath.Join(destDir, "bench.bin"))
	err = h.Run(context.Background(), d)
	metrics.Finish(d.Snapshot().Progress.Complete)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Download failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(metrics.Results())
}

// ZeroReader implements io.ReadSeeker for zeros
type ZeroReader struct {
	Size int64
	pos  int64
}

func (z *ZeroReader) Read(p []byte) (n int, err error) {
	if z.pos >= z.Size {
		return 0, io.EOF
	}
	remaining := z.Size - z.pos
	if int64(len(p)) > remaining {
		n = int(remaining)
	} else {
		n = len(p)
	}
	clear(p[:n])
	z.pos += int64(n)
	return n, nil
}

func (z *ZeroReader) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = z.pos + offset
	case io.SeekEnd:
		newPos = z.Size + offset
	}
	if newPos < 0 {
		return 0, fmt.Errorf("invalid seek")
	}
	z.pos = newPos
	return newPos, nil
}
