package staging

// BufferOption configures a Buffer created by New.
type BufferOption func(*buffer)

// WithWorkers sets the number of pool workers used by Fill.
// Values below 1 are ignored. Defaults to max(NumCPU-1, 1).
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - BufferOption: a function that applies the worker count
func WithWorkers(n int) BufferOption {
	return func(b *buffer) {
		if n < 1 {
			return
		}
		b.workers = n
	}
}

// WithChunkSize sets how many consecutive items one Fill task writes. Defaults to 1024.
// Fills of at most one chunk run on the calling goroutine.
//
// Parameters:
//   - n: items per task, values below 1 are ignored
//
// Returns:
//   - BufferOption: a function that applies the chunk size
func WithChunkSize(n int) BufferOption {
	return func(b *buffer) {
		if n < 1 {
			return
		}
		b.chunkSize = n
	}
}
