package profiler

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-triangles/common"
)

// DefaultUpdateInterval is how often Start recomputes the frame rate.
const DefaultUpdateInterval = 100 * time.Millisecond

// Stats is one profiler sample.
type Stats struct {
	// FPS is frames per second over the last update interval.
	FPS float64

	// HeapMB is the live heap in MiB.
	HeapMB float64

	// SysMB is the memory obtained from the OS in MiB.
	SysMB float64

	// AllocRateMB is the heap allocation rate in MiB per second since the previous sample.
	AllocRateMB float64

	// NumGC is the number of completed GC cycles.
	NumGC uint32

	// LastPause and MaxPause are the most recent and the longest GC pause since the previous sample.
	LastPause time.Duration
	MaxPause  time.Duration
}

// String formats the sample the way it is shown in a window title or log line.
func (s Stats) String() string {
	return fmt.Sprintf("fps: %d | heap: %.2f MB | alloc: %.2f MB/s | gc: %d (last %s, max %s)",
		int(math.Floor(s.FPS)), s.HeapMB, s.AllocRateMB, s.NumGC, s.LastPause, s.MaxPause)
}

// Profiler counts rendered frames and periodically turns the count into a frame rate.
//
// Count is called by the render loop once per frame with the frame timestamp. The rate is
// Δframes / Δtime between the timestamps of the last counted frames, so it does not depend on when
// the update tick fires. A tick where no time passed between counted frames is skipped and the
// previous rate is kept.
type Profiler struct {
	mu sync.Mutex

	updateInterval time.Duration
	onUpdate       func(Stats)
	readMem        bool

	frameCount     uint64
	frameTime      time.Time
	lastFrameCount uint64
	lastFrameTime  time.Time

	stats          Stats
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	lastSample     time.Time

	started bool
}

// NewProfiler creates a new Profiler. The update interval defaults to 100ms.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	now := time.Now()
	p := &Profiler{
		updateInterval: DefaultUpdateInterval,
		readMem:        true,
		frameTime:      now,
		lastFrameTime:  now,
		lastSample:     now,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Count records one rendered frame.
//
// Parameters:
//   - now: the frame timestamp
func (p *Profiler) Count(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frameCount++
	p.frameTime = now
}

// FPS returns the frame rate computed by the last successful update.
//
// Returns:
//   - float64: frames per second, 0 before the first update
func (p *Profiler) FPS() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.FPS
}

// Stats returns the last sample.
//
// Returns:
//   - Stats: the last sample
func (p *Profiler) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// UpdateInterval returns the period between frame rate updates.
//
// Returns:
//   - time.Duration: the update interval
func (p *Profiler) UpdateInterval() time.Duration {
	return p.updateInterval
}

// Start recomputes the frame rate every update interval until ctx is done. It blocks; run it on its own
// goroutine. Calling Start on a profiler that is already running returns immediately.
//
// Parameters:
//   - ctx: the context that stops the probe
func (p *Profiler) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.started = false
		p.mu.Unlock()
	}()

	ticker := time.NewTicker(p.updateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.update()
		}
	}
}

// update computes a new sample. It reports false when no time passed between the counted frames.
func (p *Profiler) update() bool {
	p.mu.Lock()

	elapsed := p.frameTime.Sub(p.lastFrameTime)
	if elapsed <= 0 {
		p.mu.Unlock()
		return false
	}
	fps := float64(p.frameCount-p.lastFrameCount) / elapsed.Seconds()
	if math.IsNaN(fps) || math.IsInf(fps, 0) {
		p.mu.Unlock()
		return false
	}
	p.lastFrameCount = p.frameCount
	p.lastFrameTime = p.frameTime
	p.stats.FPS = fps

	if p.readMem {
		p.sampleMemory()
	}
	stats := p.stats
	onUpdate := p.onUpdate
	p.mu.Unlock()

	common.Logger().Debug("profiler",
		"fps", stats.FPS,
		"heap_mb", stats.HeapMB,
		"alloc_rate_mb", stats.AllocRateMB,
		"gc", stats.NumGC,
		"gc_max_pause", stats.MaxPause,
	)
	if onUpdate != nil {
		onUpdate(stats)
	}
	return true
}

// sampleMemory must be called with mu held.
func (p *Profiler) sampleMemory() {
	runtime.ReadMemStats(&p.memStats)
	now := time.Now()
	elapsed := now.Sub(p.lastSample).Seconds()

	// Alloc: bytes of live heap objects. Sys: bytes obtained from the OS.
	p.stats.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	p.stats.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	if elapsed > 0 {
		allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
		p.stats.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed
	}

	gcCount := p.memStats.NumGC
	p.stats.NumGC = gcCount
	p.stats.LastPause, p.stats.MaxPause = 0, 0
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		p.stats.LastPause = time.Duration(p.memStats.PauseNs[(gcCount-1)%256])

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			p.stats.MaxPause = max(p.stats.MaxPause, time.Duration(p.memStats.PauseNs[i%256]))
		}
	}

	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.lastSample = now
}
