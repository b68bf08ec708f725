package staging

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/layout"
)

// FillFunc writes the data of a single item into buf through the layout's attributes.
// It is called concurrently for distinct item indices and must only touch that item.
type FillFunc func(buf []byte, itemIndex int) error

// buffer is the implementation of the Buffer interface.
type buffer struct {
	layout    layout.BufferLayout
	itemCount int
	data      []byte

	workers   int
	chunkSize int
	pool      worker.DynamicWorkerPool
	poolOnce  sync.Once
}

// Buffer is a CPU-side backing buffer of stride*itemCount bytes for one BufferLayout.
// It is the staging area that gets uploaded with Renderer.WriteBuffer.
type Buffer interface {
	// Layout returns the layout the buffer was sized for.
	//
	// Returns:
	//   - layout.BufferLayout: the layout
	Layout() layout.BufferLayout

	// Len returns the number of items (vertices or instances) the buffer holds.
	//
	// Returns:
	//   - int: the item count
	Len() int

	// Bytes returns the backing bytes. The slice aliases the buffer.
	//
	// Returns:
	//   - []byte: the interleaved data, len == Stride()*Len()
	Bytes() []byte

	// Write writes values for one attribute of one item. It is a shorthand for
	// Layout().Attribute(name) followed by AttributeLayout.Write.
	//
	// Parameters:
	//   - name: the attribute name
	//   - itemIndex: the item to write
	//   - values: the component values
	//
	// Returns:
	//   - error: any error from the lookup or the write
	Write(name string, itemIndex int, values ...float64) error

	// Fill calls fn for every item in [0, Len()). Items are split into disjoint chunks that run on a worker
	// pool; Fill returns once every chunk has finished.
	//
	// Parameters:
	//   - fn: the per-item writer
	//
	// Returns:
	//   - error: all errors returned by fn, joined, nil if none
	Fill(fn FillFunc) error

	// Reset zeroes the backing bytes.
	Reset()
}

var _ Buffer = &buffer{}

// New allocates a zeroed backing buffer of l.Stride()*itemCount bytes.
//
// Parameters:
//   - l: the buffer layout
//   - itemCount: the number of items to hold
//   - options: a variadic list of BufferOption functions
//
// Returns:
//   - Buffer: the backing buffer
//   - error: if l is nil, or layout.ErrOutOfBounds if itemCount is negative or its byte size overflows
func New(l layout.BufferLayout, itemCount int, options ...BufferOption) (Buffer, error) {
	if l == nil {
		return nil, errors.New("staging: layout is nil")
	}
	if err := l.CheckItemCount(itemCount); err != nil {
		return nil, fmt.Errorf("staging: %w", err)
	}

	b := &buffer{
		layout:    l,
		itemCount: itemCount,
		data:      make([]byte, l.BufferSize(itemCount)),
		workers:   max(runtime.NumCPU()-1, 1),
		chunkSize: 1024,
	}
	for _, opt := range options {
		opt(b)
	}
	return b, nil
}

func (b *buffer) Layout() layout.BufferLayout {
	return b.layout
}

func (b *buffer) Len() int {
	return b.itemCount
}

func (b *buffer) Bytes() []byte {
	return b.data
}

func (b *buffer) Write(name string, itemIndex int, values ...float64) error {
	a, err := b.layout.Attribute(name)
	if err != nil {
		return err
	}
	return a.Write(b.data, itemIndex, values...)
}

func (b *buffer) Reset() {
	clear(b.data)
}

func (b *buffer) Fill(fn FillFunc) error {
	if fn == nil {
		return errors.New("staging: fill func is nil")
	}
	if b.itemCount == 0 {
		return nil
	}

	// Small fills are not worth the hand-off.
	if b.itemCount <= b.chunkSize || b.workers == 1 {
		return fillRange(b.data, 0, b.itemCount, fn)
	}

	b.poolOnce.Do(func() {
		b.pool = worker.NewDynamicWorkerPool(b.workers, 256, 1*time.Second)
	})

	chunks := chunkRanges(b.itemCount, b.chunkSize)
	errs := make([]error, len(chunks))

	// pool.Wait() only returns once workers idle out, so each Fill uses its own barrier.
	var wg sync.WaitGroup
	for id, c := range chunks {
		wg.Add(1)
		b.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				errs[id] = fillRange(b.data, c[0], c[1], fn)
				return nil, nil
			},
		})
	}
	wg.Wait()

	return errors.Join(errs...)
}

// fillRange runs fn for items in [start, end) and stops at the first error.
func fillRange(data []byte, start, end int, fn FillFunc) error {
	for i := start; i < end; i++ {
		if err := fn(data, i); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// chunkRanges splits [0, n) into consecutive half-open ranges of at most size items.
func chunkRanges(n, size int) [][2]int {
	if size <= 0 {
		size = max(n, 1)
	}
	out := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}
