package renderer

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/staging"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type drawCall struct {
	key           string
	buffers       int
	vertexCount   uint32
	instanceCount uint32
}

type write struct {
	offset uint64
	data   []byte
}

// fakeBackend records calls instead of talking to a GPU.
type fakeBackend struct {
	mu sync.Mutex

	configured   [][2]int
	configureErr error
	presentMode  PresentMode
	clearColor   wgpu.Color
	sampleCount  MSAASampleCount

	registered []string
	released   []string
	buffers    map[string]uint64
	writes     []write
	draws      []drawCall

	inFrame  bool
	frames   int
	ended    int
	presents int
	closed   bool
}

var _ RendererBackend = &fakeBackend{}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{sampleCount: MSAAOff, buffers: map[string]uint64{}}
}

func (f *fakeBackend) ConfigureSurface(width, height int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.configureErr != nil {
		return f.configureErr
	}
	f.configured = append(f.configured, [2]int{width, height})
	return nil
}

func (f *fakeBackend) SetPresentMode(mode PresentMode) { f.presentMode = mode }
func (f *fakeBackend) SetClearColor(c wgpu.Color)      { f.clearColor = c }

func (f *fakeBackend) PresentationFormat() wgpu.TextureFormat { return wgpu.TextureFormatBGRA8Unorm }
func (f *fakeBackend) SampleCount() MSAASampleCount           { return f.sampleCount }

func (f *fakeBackend) CreateShaderModule(shader.Shader) (*wgpu.ShaderModule, error) {
	return nil, errors.New("no GPU")
}

func (f *fakeBackend) RegisterRenderPipeline(p pipeline.Pipeline) error {
	f.registered = append(f.registered, p.PipelineKey())
	p.SetRenderPipeline(&wgpu.RenderPipeline{})
	return nil
}

func (f *fakeBackend) ReleaseRenderPipeline(p pipeline.Pipeline) {
	f.released = append(f.released, p.PipelineKey())
	p.SetRenderPipeline(nil)
}

func (f *fakeBackend) CreateVertexBuffer(label string, size uint64) (*wgpu.Buffer, error) {
	f.buffers[label] = alignUp4(size)
	return &wgpu.Buffer{}, nil
}

func (f *fakeBackend) WriteBuffer(_ *wgpu.Buffer, offset uint64, data []byte) error {
	f.writes = append(f.writes, write{offset: offset, data: data})
	return nil
}

func (f *fakeBackend) RenderPassDescriptor(label string) (*wgpu.RenderPassDescriptor, error) {
	if !f.inFrame {
		return nil, ErrNoFrame
	}
	return &wgpu.RenderPassDescriptor{Label: label}, nil
}

func (f *fakeBackend) BeginFrame(string) error {
	f.inFrame = true
	f.frames++
	return nil
}

func (f *fakeBackend) Draw(p pipeline.Pipeline, vertexBuffers []*wgpu.Buffer, vertexCount, instanceCount uint32) error {
	if !f.inFrame {
		return ErrNoFrame
	}
	f.draws = append(f.draws, drawCall{p.PipelineKey(), len(vertexBuffers), vertexCount, instanceCount})
	return nil
}

func (f *fakeBackend) EndFrame() error {
	if !f.inFrame {
		return ErrNoFrame
	}
	f.ended++
	return nil
}

func (f *fakeBackend) Present() {
	f.inFrame = false
	f.presents++
}

func (f *fakeBackend) Device() *wgpu.Device { return nil }
func (f *fakeBackend) Release()             { f.closed = true }

const instancedSource = `
struct VertexOut {
  @builtin(position) position: vec4f,
  @location(0) color: vec4f,
}

@vertex fn vs(@location(0) pos: vec2f, @location(1) offset: vec2f, @location(2) color: vec4f) -> VertexOut {
  var out: VertexOut;
  out.position = vec4f(pos + offset, 0.0, 1.0);
  out.color = color;
  return out;
}

@fragment fn fs(in: VertexOut) -> @location(0) vec4f {
  return in.color;
}
`

func instancedPipeline(t *testing.T, key string) (pipeline.Pipeline, layout.BufferLayout, layout.BufferLayout) {
	t.Helper()
	vs, err := shader.NewShaderFromSource(key+"_vs", shader.ShaderTypeVertex, instancedSource)
	require.NoError(t, err)
	fs, err := shader.NewShaderFromSource(key+"_fs", shader.ShaderTypeFragment, instancedSource)
	require.NoError(t, err)

	vertices, err := layout.NewBufferLayout([]layout.AttributeSpec{
		{Name: "pos", ShaderLocation: 0, Format: layout.VertexFormatFloat32x2},
	}, layout.WithLabel("vertices"))
	require.NoError(t, err)
	instances, err := layout.NewBufferLayout([]layout.AttributeSpec{
		{Name: "offset", ShaderLocation: 1, Format: layout.VertexFormatFloat32x2},
		{Name: "color", ShaderLocation: 2, Format: layout.VertexFormatUnorm8x4},
	}, layout.WithLabel("instances"), layout.WithStepMode(layout.StepModeInstance))
	require.NoError(t, err)
	reg, err := layout.NewRegistry(vertices, instances)
	require.NoError(t, err)

	return pipeline.NewPipeline(key,
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithVertexBuffers(reg),
	), vertices, instances
}

func attached(t *testing.T, opts ...RendererBuilderOption) (*renderer, *fakeBackend) {
	t.Helper()
	r := newRenderer(opts...)
	b := newFakeBackend()
	require.NoError(t, r.attach(b))
	return r, b
}

func TestNewRendererDefaults(t *testing.T) {
	r := newRenderer()
	assert.Equal(t, MSAAOff, r.msaa)
	assert.False(t, r.resize)
	assert.Equal(t, PresentModeVSync, r.presentMode)
	assert.Equal(t, wgpu.Color{R: 1, G: 1, B: 1, A: 1}, r.clearColor)
	assert.Equal(t, SizePending, r.State())
	assert.Empty(t, r.Pipelines())
}

func TestBuilderOptions(t *testing.T) {
	clearColor := wgpu.Color{A: 1}
	r := newRenderer(
		WithMSAA(MSAA4x),
		WithResize(true),
		WithPresentMode(PresentModeUncapped),
		WithSize(640, 480),
		WithClearColor(clearColor),
		WithForceSoftwareRenderer(true),
	)
	assert.Equal(t, MSAA4x, r.msaa)
	assert.True(t, r.resize)
	assert.Equal(t, PresentModeUncapped, r.presentMode)
	assert.Equal(t, 640, r.width)
	assert.Equal(t, 480, r.height)
	assert.Equal(t, clearColor, r.clearColor)
	assert.True(t, r.forceFallbackAdapter)

	assert.Equal(t, MSAAOff, newRenderer(WithMSAA(0)).msaa)
}

func TestAttachDefaultSize(t *testing.T) {
	r, b := attached(t)

	assert.Equal(t, SizeReady, r.State())
	assert.Equal(t, [][2]int{{DefaultWidth, DefaultHeight}}, b.configured)
	w, h := r.Size()
	assert.Equal(t, DefaultWidth, w)
	assert.Equal(t, DefaultHeight, h)
	assert.Equal(t, PresentModeVSync, b.presentMode)
	assert.Equal(t, wgpu.Color{R: 1, G: 1, B: 1, A: 1}, b.clearColor)
}

func TestAttachFixedSize(t *testing.T) {
	clearColor := wgpu.Color{R: 0.1, G: 0.2, B: 0.3, A: 1}
	_, b := attached(t, WithSize(800, 600), WithClearColor(clearColor), WithPresentMode(PresentModeUncapped))

	assert.Equal(t, [][2]int{{800, 600}}, b.configured)
	assert.Equal(t, clearColor, b.clearColor)
	assert.Equal(t, PresentModeUncapped, b.presentMode)
}

func TestReadyClosedOnce(t *testing.T) {
	r := newRenderer(WithResize(true))
	b := newFakeBackend()
	r.backend = b

	select {
	case <-r.Ready():
		t.Fatal("ready before the first size")
	default:
	}

	require.NoError(t, r.ChangeSize(100, 100))
	require.NoError(t, r.ChangeSize(200, 100))

	select {
	case <-r.Ready():
	default:
		t.Fatal("not ready after the first size")
	}
	assert.Equal(t, SizeReady, r.State())
}

func TestChangeSizeIgnoredWithoutResize(t *testing.T) {
	r, b := attached(t)

	require.NoError(t, r.ChangeSize(1024, 768))
	assert.Len(t, b.configured, 1)
	w, h := r.Size()
	assert.Equal(t, DefaultWidth, w)
	assert.Equal(t, DefaultHeight, h)
}

func TestChangeSizeWithResize(t *testing.T) {
	r, b := attached(t, WithResize(true))

	require.NoError(t, r.ChangeSize(1024, 768))
	require.NoError(t, r.ChangeSize(0, 768))
	assert.Equal(t, [][2]int{{DefaultWidth, DefaultHeight}, {1024, 768}}, b.configured)
	w, h := r.Size()
	assert.Equal(t, 1024, w)
	assert.Equal(t, 768, h)
}

func TestChangeSizeErrorStaysPending(t *testing.T) {
	r := newRenderer()
	b := newFakeBackend()
	b.configureErr = errors.New("surface lost")

	err := r.attach(b)
	require.Error(t, err)
	assert.ErrorIs(t, err, b.configureErr)
	assert.Equal(t, SizePending, r.State())
	assert.ErrorIs(t, r.BeginFrame(), ErrNotReady)
}

func TestWaitReady(t *testing.T) {
	r := newRenderer()
	r.backend = newFakeBackend()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.WaitReady(ctx), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- r.WaitReady(context.Background()) }()
	require.NoError(t, r.ChangeSize(10, 10))
	assert.NoError(t, <-done)
}

func TestCreateRenderPipeline(t *testing.T) {
	r, b := attached(t)
	p, _, _ := instancedPipeline(t, "triangles")

	require.NoError(t, r.CreateRenderPipeline(p))
	assert.Equal(t, []string{"triangles"}, b.registered)
	assert.Same(t, p, r.Pipeline("triangles"))
	assert.Nil(t, r.Pipeline("missing"))

	cache := r.Pipelines()
	delete(cache, "triangles")
	assert.NotNil(t, r.Pipeline("triangles"))
}

func TestCreateRenderPipelineInvalid(t *testing.T) {
	r, b := attached(t)

	assert.Error(t, r.CreateRenderPipeline(nil))
	assert.Error(t, r.CreateRenderPipeline(pipeline.NewPipeline("empty")))
	assert.Empty(t, b.registered)
	assert.Nil(t, r.Pipeline("empty"))
}

func TestCreateRenderPipelineReplaces(t *testing.T) {
	r, b := attached(t)
	first, _, _ := instancedPipeline(t, "triangles")
	second, _, _ := instancedPipeline(t, "triangles")

	require.NoError(t, r.CreateRenderPipeline(first))
	require.NoError(t, r.CreateRenderPipeline(second))
	assert.Equal(t, []string{"triangles"}, b.released)
	assert.Nil(t, first.RenderPipeline())
	assert.Same(t, second, r.Pipeline("triangles"))
}

func TestRegisterPipelinesSkipsCached(t *testing.T) {
	r, b := attached(t)
	a, _, _ := instancedPipeline(t, "a")
	again, _, _ := instancedPipeline(t, "a")
	c, _, _ := instancedPipeline(t, "c")

	require.NoError(t, r.RegisterPipelines(a, again, c))
	assert.Equal(t, []string{"a", "c"}, b.registered)
	assert.Same(t, a, r.Pipeline("a"))
}

func TestCreateVertexBuffer(t *testing.T) {
	r, b := attached(t)
	_, vertices, instances := instancedPipeline(t, "triangles")

	buf, err := r.CreateVertexBuffer(instances, 10)
	require.NoError(t, err)
	assert.NotNil(t, buf)
	assert.Equal(t, uint64(120), b.buffers["instances"])

	_, err = r.CreateVertexBuffer(vertices, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(24), b.buffers["vertices"])

	_, err = r.CreateVertexBuffer(vertices, 0)
	assert.Error(t, err)
	_, err = r.CreateVertexBuffer(nil, 3)
	assert.Error(t, err)

	_, err = r.CreateVertexBuffer(instances, math.MaxInt/instances.Stride()+1)
	assert.ErrorIs(t, err, layout.ErrOutOfBounds)
	assert.Len(t, b.buffers, 2)
}

func TestWriteBufferAndUpload(t *testing.T) {
	r, b := attached(t)
	_, _, instances := instancedPipeline(t, "triangles")

	assert.Error(t, r.WriteBuffer(nil, 0, []byte{1}))
	require.NoError(t, r.WriteBuffer(&wgpu.Buffer{}, 0, nil))
	assert.Empty(t, b.writes)

	s, err := staging.New(instances, 4)
	require.NoError(t, err)
	require.NoError(t, s.Write("offset", 2, 0.5, -0.5))

	require.NoError(t, r.Upload(&wgpu.Buffer{}, s))
	require.Len(t, b.writes, 1)
	assert.Equal(t, uint64(0), b.writes[0].offset)
	assert.Equal(t, s.Bytes(), b.writes[0].data)

	assert.Error(t, r.Upload(&wgpu.Buffer{}, nil))
}

func TestFrame(t *testing.T) {
	r, b := attached(t)
	p, _, _ := instancedPipeline(t, "triangles")
	require.NoError(t, r.CreateRenderPipeline(p))
	buffers := []*wgpu.Buffer{{}, {}}

	_, err := r.RenderPassDescriptor("pass")
	assert.ErrorIs(t, err, ErrNoFrame)
	assert.ErrorIs(t, r.Draw("triangles", buffers, 3, 100), ErrNoFrame)

	require.NoError(t, r.BeginFrame())
	d, err := r.RenderPassDescriptor("pass")
	require.NoError(t, err)
	assert.Equal(t, "pass", d.Label)

	require.NoError(t, r.Draw("triangles", buffers, 3, 100))
	require.NoError(t, r.EndFrame())
	r.Present()

	assert.Equal(t, []drawCall{{"triangles", 2, 3, 100}}, b.draws)
	assert.Equal(t, 1, b.frames)
	assert.Equal(t, 1, b.ended)
	assert.Equal(t, 1, b.presents)
}

func TestDrawErrors(t *testing.T) {
	r, b := attached(t)
	p, _, _ := instancedPipeline(t, "triangles")
	require.NoError(t, r.CreateRenderPipeline(p))
	require.NoError(t, r.BeginFrame())

	assert.ErrorIs(t, r.Draw("missing", nil, 3, 1), ErrUnknownPipeline)
	assert.Error(t, r.Draw("triangles", []*wgpu.Buffer{{}}, 3, 1))
	assert.Error(t, r.Draw("triangles", []*wgpu.Buffer{{}, nil}, 3, 1))
	assert.Empty(t, b.draws)
}

func TestRelease(t *testing.T) {
	r, b := attached(t)
	p, _, _ := instancedPipeline(t, "triangles")
	require.NoError(t, r.CreateRenderPipeline(p))

	r.Release()
	assert.True(t, b.closed)
	assert.Equal(t, []string{"triangles"}, b.released)
	assert.Empty(t, r.Pipelines())
}

func TestCanvasColorAttachment(t *testing.T) {
	swap := &wgpu.TextureView{}
	msaa := &wgpu.TextureView{}
	clearColor := wgpu.Color{R: 1, G: 1, B: 1, A: 1}

	off := canvasColorAttachment(MSAAOff, nil, swap, clearColor)
	assert.Same(t, swap, off.View)
	assert.Nil(t, off.ResolveTarget)
	assert.Equal(t, wgpu.LoadOpClear, off.LoadOp)
	assert.Equal(t, wgpu.StoreOpStore, off.StoreOp)
	assert.Equal(t, clearColor, off.ClearValue)

	on := canvasColorAttachment(MSAA4x, msaa, swap, clearColor)
	assert.Same(t, msaa, on.View)
	assert.Same(t, swap, on.ResolveTarget)
	assert.Equal(t, wgpu.StoreOpDiscard, on.StoreOp)

	missing := canvasColorAttachment(MSAA4x, nil, swap, clearColor)
	assert.Same(t, swap, missing.View)
	assert.Nil(t, missing.ResolveTarget)
}

func TestPresentMode(t *testing.T) {
	assert.Equal(t, wgpu.PresentModeFifo, PresentModeVSync.wgpu())
	assert.Equal(t, wgpu.PresentModeImmediate, PresentModeUncapped.wgpu())
	assert.Equal(t, "pending", SizePending.String())
	assert.Equal(t, "ready", SizeReady.String())
}

func TestAlignUp4(t *testing.T) {
	for in, want := range map[uint64]uint64{0: 0, 1: 4, 4: 4, 5: 8, 12: 12, 13: 16} {
		assert.Equal(t, want, alignUp4(in), in)
	}
}
