package renderer

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/Carmen-Shannon/oxy-triangles/common"
	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/staging"
	"github.com/Carmen-Shannon/oxy-triangles/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// DefaultWidth is the render target width used when neither the window nor WithSize gives one.
	DefaultWidth = 300

	// DefaultHeight is the render target height used when neither the window nor WithSize gives one.
	DefaultHeight = 150
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backend RendererBackend

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	presentMode          PresentMode
	msaa                 MSAASampleCount
	resize               bool
	clearColor           wgpu.Color
	width, height        int

	state     SizeState
	ready     chan struct{}
	readyOnce sync.Once
}

// Renderer is the GPU helper bound to one window surface.
//
// It owns the device, the surface configuration and the optional MSAA target, caches render pipelines by key
// and records one render pass per frame. Nothing can be drawn until the first size has been applied; Ready
// reports when that happened.
type Renderer interface {
	// State reports whether the first size has been applied.
	//
	// Returns:
	//   - SizeState: SizePending or SizeReady
	State() SizeState

	// Ready returns a channel that is closed once the first size has been applied.
	//
	// Returns:
	//   - <-chan struct{}: the readiness channel, closed exactly once
	Ready() <-chan struct{}

	// WaitReady blocks until the renderer is ready or ctx is done.
	//
	// Parameters:
	//   - ctx: the context bounding the wait
	//
	// Returns:
	//   - error: ctx.Err() if the context ended first
	WaitReady(ctx context.Context) error

	// ChangeSize applies a new render target size. Once the renderer is ready, the call is ignored unless
	// the renderer was created WithResize(true). Zero or negative sizes are ignored.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: the surface configuration error, if any
	ChangeSize(width, height int) error

	// Size returns the last applied render target size.
	//
	// Returns:
	//   - int: width in pixels
	//   - int: height in pixels
	Size() (int, int)

	// SampleCount returns the MSAA sample count, 1 when MSAA is off.
	//
	// Returns:
	//   - MSAASampleCount: the sample count
	SampleCount() MSAASampleCount

	// PresentationFormat returns the texture format of the surface.
	//
	// Returns:
	//   - wgpu.TextureFormat: the format render pipelines must target
	PresentationFormat() wgpu.TextureFormat

	// Device returns the GPU device.
	//
	// Returns:
	//   - *wgpu.Device: the device
	Device() *wgpu.Device

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines returns a copy of the pipeline cache.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: a map of pipeline keys to their corresponding Pipeline objects
	Pipelines() map[string]pipeline.Pipeline

	// CreateShaderModule compiles a shader into a GPU module. The caller releases the module.
	//
	// Parameters:
	//   - s: the shader to compile
	//
	// Returns:
	//   - *wgpu.ShaderModule: the module
	//   - error: the compilation error, if any
	CreateShaderModule(s shader.Shader) (*wgpu.ShaderModule, error)

	// CreateRenderPipeline validates p, creates its GPU pipeline with the renderer's presentation format and
	// sample count, and caches it under its key. An already cached key is replaced.
	//
	// Parameters:
	//   - p: the pipeline to create
	//
	// Returns:
	//   - error: the validation or creation error, if any
	CreateRenderPipeline(p pipeline.Pipeline) error

	// RegisterPipelines creates and caches every pipeline whose key is not cached yet.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: the first creation error
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// CreateVertexBuffer creates a vertex buffer holding count items of l, labelled with the layout's label.
	//
	// Parameters:
	//   - l: the buffer layout
	//   - count: the number of items
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer
	//   - error: an error if count is not positive, layout.ErrOutOfBounds if its byte size overflows, or the
	//     creation error
	CreateVertexBuffer(l layout.BufferLayout, count int) (*wgpu.Buffer, error)

	// WriteBuffer uploads data into buf at offset.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: the byte offset in buf
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: the queue error, if any
	WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) error

	// Upload writes the whole content of a staging buffer into buf.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - s: the staging buffer
	//
	// Returns:
	//   - error: the queue error, if any
	Upload(buf *wgpu.Buffer, s staging.Buffer) error

	// RenderPassDescriptor returns the render pass descriptor targeting the frame in progress.
	//
	// Parameters:
	//   - label: the pass label
	//
	// Returns:
	//   - *wgpu.RenderPassDescriptor: the descriptor
	//   - error: ErrNoFrame outside BeginFrame/Present
	RenderPassDescriptor(label string) (*wgpu.RenderPassDescriptor, error)

	// BeginFrame acquires the next surface texture and begins the main render pass.
	//
	// Returns:
	//   - error: ErrNotReady before the first size, or the backend error
	BeginFrame() error

	// Draw records an instanced draw of the cached pipeline. vertexBuffers are bound to slots in order and must
	// match the pipeline's vertex buffer registry.
	//
	// Parameters:
	//   - pipelineKey: the key of a pipeline created with CreateRenderPipeline
	//   - vertexBuffers: one buffer per registry slot
	//   - vertexCount: vertices per instance
	//   - instanceCount: number of instances
	//
	// Returns:
	//   - error: ErrUnknownPipeline, a slot count mismatch or ErrNoFrame
	Draw(pipelineKey string, vertexBuffers []*wgpu.Buffer, vertexCount, instanceCount uint32) error

	// EndFrame ends the render pass and submits the recorded commands.
	//
	// Returns:
	//   - error: ErrNoFrame or the submission error
	EndFrame() error

	// Present presents the frame acquired by BeginFrame.
	Present()

	// Release frees every GPU object owned by the renderer and its cached pipelines.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates the Renderer for a window's surface. The initial size is WithSize if given, then the
// window size, then 300×150. The window's resize callback is routed to ChangeSize.
//
// Parameters:
//   - win: the window providing the surface
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the ready renderer
//   - error: ErrNoAdapter, ErrNoDevice or a surface configuration error
func NewRenderer(win window.Window, options ...RendererBuilderOption) (Renderer, error) {
	if win == nil {
		return nil, errors.New("renderer: window is nil")
	}
	r := newRenderer(options...)

	backend, err := newWGPURendererBackend(win.SurfaceDescriptor(), r.forceFallbackAdapter, r.msaa)
	if err != nil {
		return nil, err
	}

	if r.width <= 0 || r.height <= 0 {
		r.width, r.height = win.Width(), win.Height()
	}
	if err := r.attach(backend); err != nil {
		backend.Release()
		return nil, err
	}

	win.SetResizeCallback(func(width, height int) {
		if err := r.ChangeSize(width, height); err != nil {
			common.Logger().Warn("resize failed", "width", width, "height", height, "err", err)
		}
	})
	return r, nil
}

// newRenderer applies options to a renderer without a backend.
func newRenderer(options ...RendererBuilderOption) *renderer {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		presentMode:   PresentModeVSync,
		msaa:          MSAAOff,
		clearColor:    wgpu.Color{R: 1, G: 1, B: 1, A: 1},
		ready:         make(chan struct{}),
	}

	// Options are applied first so adapter and MSAA config is known before the backend exists.
	for _, opt := range options {
		opt(r)
	}
	return r
}

// attach binds the backend and applies the initial size.
func (r *renderer) attach(backend RendererBackend) error {
	r.backend = backend
	r.backend.SetPresentMode(r.presentMode)
	r.backend.SetClearColor(r.clearColor)

	width, height := r.width, r.height
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	return r.ChangeSize(width, height)
}

func (r *renderer) State() SizeState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *renderer) Ready() <-chan struct{} {
	return r.ready
}

func (r *renderer) WaitReady(ctx context.Context) error {
	select {
	case <-r.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *renderer) ChangeSize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == SizeReady && !r.resize {
		return nil
	}
	if width <= 0 || height <= 0 {
		return nil
	}

	if err := r.backend.ConfigureSurface(width, height); err != nil {
		return fmt.Errorf("change size to %dx%d: %w", width, height, err)
	}
	r.width, r.height = width, height

	r.readyOnce.Do(func() {
		r.state = SizeReady
		close(r.ready)
	})
	return nil
}

func (r *renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *renderer) SampleCount() MSAASampleCount {
	return r.backend.SampleCount()
}

func (r *renderer) PresentationFormat() wgpu.TextureFormat {
	return r.backend.PresentationFormat()
}

func (r *renderer) Device() *wgpu.Device {
	return r.backend.Device()
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.pipelineCache)
}

func (r *renderer) CreateShaderModule(s shader.Shader) (*wgpu.ShaderModule, error) {
	return r.backend.CreateShaderModule(s)
}

func (r *renderer) CreateRenderPipeline(p pipeline.Pipeline) error {
	if p == nil {
		return errors.New("renderer: pipeline is nil")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := r.backend.RegisterRenderPipeline(p); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.pipelineCache[p.PipelineKey()]; ok && old != p {
		r.backend.ReleaseRenderPipeline(old)
	}
	r.pipelineCache[p.PipelineKey()] = p
	return nil
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	for _, p := range pipelines {
		if r.Pipeline(p.PipelineKey()) != nil {
			continue
		}
		if err := r.CreateRenderPipeline(p); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) CreateVertexBuffer(l layout.BufferLayout, count int) (*wgpu.Buffer, error) {
	if l == nil {
		return nil, errors.New("renderer: buffer layout is nil")
	}
	if count <= 0 {
		return nil, fmt.Errorf("renderer: vertex buffer %q needs a positive item count, got %d", l.Label(), count)
	}
	if err := l.CheckItemCount(count); err != nil {
		return nil, fmt.Errorf("renderer: vertex buffer: %w", err)
	}
	return r.backend.CreateVertexBuffer(l.Label(), uint64(l.BufferSize(count)))
}

func (r *renderer) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) error {
	if buf == nil {
		return errors.New("renderer: destination buffer is nil")
	}
	if len(data) == 0 {
		return nil
	}
	return r.backend.WriteBuffer(buf, offset, data)
}

func (r *renderer) Upload(buf *wgpu.Buffer, s staging.Buffer) error {
	if s == nil {
		return errors.New("renderer: staging buffer is nil")
	}
	return r.WriteBuffer(buf, 0, s.Bytes())
}

func (r *renderer) RenderPassDescriptor(label string) (*wgpu.RenderPassDescriptor, error) {
	return r.backend.RenderPassDescriptor(label)
}

func (r *renderer) BeginFrame() error {
	if r.State() != SizeReady {
		return ErrNotReady
	}
	return r.backend.BeginFrame("Main Render Pass")
}

func (r *renderer) Draw(pipelineKey string, vertexBuffers []*wgpu.Buffer, vertexCount, instanceCount uint32) error {
	p := r.Pipeline(pipelineKey)
	if p == nil || p.RenderPipeline() == nil {
		return fmt.Errorf("%w: %q", ErrUnknownPipeline, pipelineKey)
	}

	slots := 0
	if reg := p.VertexBuffers(); reg != nil {
		slots = reg.Len()
	}
	if len(vertexBuffers) != slots {
		return fmt.Errorf("pipeline %q reads %d vertex buffers, got %d", pipelineKey, slots, len(vertexBuffers))
	}
	for slot, buf := range vertexBuffers {
		if buf == nil {
			return fmt.Errorf("pipeline %q: vertex buffer for slot %d is nil", pipelineKey, slot)
		}
	}
	return r.backend.Draw(p, vertexBuffers, vertexCount, instanceCount)
}

func (r *renderer) EndFrame() error {
	return r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) Release() {
	r.mu.Lock()
	for key, p := range r.pipelineCache {
		r.backend.ReleaseRenderPipeline(p)
		delete(r.pipelineCache, key)
	}
	r.mu.Unlock()

	r.backend.Release()
}
