// Package benchmark measures transfers driven through a host.
package benchmark

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/surge-downloader/plugd/internal/host"
	"github.com/surge-downloader/plugd/internal/plugin"
	"github.com/surge-downloader/plugd/internal/task"
)

// Metrics collects performance data from host callbacks.
type Metrics struct {
	mu sync.Mutex

	StartTime     time.Time
	FirstByteTime time.Time
	EndTime       time.Time

	TotalBytes int64
	Retries    int
	Errors     int

	PeakSpeed   int64
	speedSum    int64
	sampleCount int64

	StartMemAlloc uint64
	PeakMemAlloc  uint64
}

func NewMetrics() *Metrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &Metrics{
		StartTime:     time.Now(),
		StartMemAlloc: m.Alloc,
		PeakMemAlloc:  m.Alloc,
	}
}

// Attach installs the collector as h's progress and event callbacks.
func (bm *Metrics) Attach(h *host.Host) {
	h.OnProgress = func(_ string, s task.Snapshot) { bm.RecordProgress(s.Progress) }
	h.OnEvent = func(_ *task.Data, _ string, e *plugin.Event) { bm.RecordEvent(e) }
}

// RecordProgress samples one Sync snapshot.
func (bm *Metrics) RecordProgress(p task.Progress) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if p.Complete > 0 && bm.FirstByteTime.IsZero() {
		bm.FirstByteTime = time.Now()
	}
	if p.DownloadSpeed > 0 {
		bm.speedSum += p.DownloadSpeed
		bm.sampleCount++
		if p.DownloadSpeed > bm.PeakSpeed {
			bm.PeakSpeed = p.DownloadSpeed
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.Alloc > bm.PeakMemAlloc {
		bm.PeakMemAlloc = m.Alloc
	}
}

// RecordEvent counts engine retries (warnings) and errors.
func (bm *Metrics) RecordEvent(e *plugin.Event) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	switch e.Type {
	case plugin.EventWarning:
		bm.Retries++
	case plugin.EventError:
		bm.Errors++
	}
}

// Finish marks the transfer as complete.
func (bm *Metrics) Finish(totalBytes int64) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.EndTime = time.Now()
	bm.TotalBytes = totalBytes
}

// Results returns the computed metrics.
func (bm *Metrics) Results() Results {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	elapsed := bm.EndTime.Sub(bm.StartTime)
	var ttfb time.Duration
	if !bm.FirstByteTime.IsZero() {
		ttfb = bm.FirstByteTime.Sub(bm.StartTime)
	}

	var throughput, avgSpeed int64
	if elapsed > 0 {
		throughput = int64(float64(bm.TotalBytes) / elapsed.Seconds())
	}
	if bm.sampleCount > 0 {
		avgSpeed = bm.speedSum / bm.sampleCount
	}

	return Results{
		TotalTime:  elapsed,
		TTFB:       ttfb,
		Throughput: throughput,
		AvgSpeed:   avgSpeed,
		PeakSpeed:  bm.PeakSpeed,
		TotalBytes: bm.TotalBytes,
		Retries:    bm.Retries,
		Errors:     bm.Errors,
		MemoryUsed: bm.PeakMemAlloc - bm.StartMemAlloc,
	}
}

// Results holds the final computed metrics. Speeds are bytes per second.
type Results struct {
	TotalTime  time.Duration
	TTFB       time.Duration
	Throughput int64
	AvgSpeed   int64
	PeakSpeed  int64
	TotalBytes int64
	Retries    int
	Errors     int
	MemoryUsed uint64
}

func (br Results) String() string {
	return fmt.Sprintf(`=== Benchmark Results ===
Throughput:     %s/s
Sampled Avg:    %s/s
Sampled Peak:   %s/s
Total Time:     %s
TTFB:           %s
Total Bytes:    %s
Retries:        %d
Errors:         %d
Memory Used:    %s
`,
		humanize.IBytes(uint64(br.Throughput)),
		humanize.IBytes(uint64(br.AvgSpeed)),
		humanize.IBytes(uint64(br.PeakSpeed)),
		br.TotalTime.Round(time.Millisecond),
		br.TTFB.Round(time.Millisecond),
		humanize.IBytes(uint64(br.TotalBytes)),
		br.Retries,
		br.Errors,
		humanize.IBytes(br.MemoryUsed))
}
