package profiler

import "time"

// ProfilerOption is a functional option applied to a Profiler during construction via NewProfiler.
type ProfilerOption func(*Profiler)

// WithUpdateInterval sets how often the frame rate is recomputed. Non-positive values are ignored.
//
// Parameters:
//   - interval: the update period
//
// Returns:
//   - ProfilerOption: a function that applies the interval to a profiler
func WithUpdateInterval(interval time.Duration) ProfilerOption {
	return func(p *Profiler) {
		if interval > 0 {
			p.updateInterval = interval
		}
	}
}

// WithOnUpdate sets a callback receiving every new sample, on the goroutine running Start.
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - ProfilerOption: a function that applies the callback to a profiler
func WithOnUpdate(fn func(Stats)) ProfilerOption {
	return func(p *Profiler) {
		p.onUpdate = fn
	}
}

// WithMemoryStats toggles the runtime memory sample taken on each update. It is on by default.
//
// Parameters:
//   - enabled: false to only compute the frame rate
//
// Returns:
//   - ProfilerOption: a function that applies the option to a profiler
func WithMemoryStats(enabled bool) ProfilerOption {
	return func(p *Profiler) {
		p.readMem = enabled
	}
}
