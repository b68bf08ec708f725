package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing. This is the default.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// wgpu returns the surface present mode for m.
func (m PresentMode) wgpu() wgpu.PresentMode {
	if m == PresentModeUncapped {
		return wgpu.PresentModeImmediate
	}
	return wgpu.PresentModeFifo
}

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// Only specific power-of-two values are valid for GPU hardware. WebGPU guarantees support for
// 1 (off) and 4; higher values (8, 16) are adapter-dependent and may not be available.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1). This is the default.
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing.
	MSAA4x MSAASampleCount = 4

	// MSAA8x enables 8× multisample anti-aliasing. Adapter-dependent; not all hardware supports this.
	MSAA8x MSAASampleCount = 8

	// MSAA16x enables 16× multisample anti-aliasing. Adapter-dependent; not all hardware supports this.
	MSAA16x MSAASampleCount = 16
)

// SizeState is the two-phase readiness of the render target size.
type SizeState int

const (
	// SizePending means no size has been applied yet and nothing can be drawn.
	SizePending SizeState = iota

	// SizeReady means the surface has been configured at least once.
	SizeReady
)

func (s SizeState) String() string {
	if s == SizeReady {
		return "ready"
	}
	return "pending"
}

var (
	// ErrNoAdapter is returned when no GPU adapter is compatible with the surface.
	ErrNoAdapter = errors.New("renderer: cannot request a GPU adapter")

	// ErrNoDevice is returned when the adapter refuses to create a device.
	ErrNoDevice = errors.New("renderer: cannot request a GPU device")

	// ErrNotReady is returned when drawing before the first size has been applied.
	ErrNotReady = errors.New("renderer: size is not ready")

	// ErrNoFrame is returned when a frame operation runs outside BeginFrame/Present.
	ErrNoFrame = errors.New("renderer: no frame in progress")

	// ErrUnknownPipeline is returned when drawing with a pipeline key that was never created.
	ErrUnknownPipeline = errors.New("renderer: unknown pipeline")
)

// RendererBackend is the GPU side of the Renderer. It owns the device, surface, MSAA target and frame state.
type RendererBackend interface {
	// ConfigureSurface (re)configures the surface and, with MSAA on, recreates the multisampled color target.
	ConfigureSurface(width, height int) error

	// SetPresentMode sets the present mode used by the next ConfigureSurface.
	SetPresentMode(mode PresentMode)

	// SetClearColor sets the color the render pass clears to.
	SetClearColor(c wgpu.Color)

	// PresentationFormat returns the surface texture format chosen at creation.
	PresentationFormat() wgpu.TextureFormat

	// SampleCount returns the MSAA sample count of the color target.
	SampleCount() MSAASampleCount

	// CreateShaderModule compiles a shader's WGSL into a GPU module.
	CreateShaderModule(s shader.Shader) (*wgpu.ShaderModule, error)

	// RegisterRenderPipeline creates the GPU pipeline and stores it on p via SetRenderPipeline.
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// ReleaseRenderPipeline frees the GPU pipeline stored on p and clears it.
	ReleaseRenderPipeline(p pipeline.Pipeline)

	// CreateVertexBuffer creates a VERTEX|COPY_DST buffer of size bytes.
	CreateVertexBuffer(label string, size uint64) (*wgpu.Buffer, error)

	// WriteBuffer uploads data to buf at offset through the queue.
	WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) error

	// RenderPassDescriptor returns the descriptor targeting the current frame.
	RenderPassDescriptor(label string) (*wgpu.RenderPassDescriptor, error)

	// BeginFrame acquires the next surface texture and begins the render pass.
	BeginFrame(label string) error

	// Draw encodes a non-indexed, instanced draw in the current render pass.
	Draw(p pipeline.Pipeline, vertexBuffers []*wgpu.Buffer, vertexCount, instanceCount uint32) error

	// EndFrame ends the render pass and submits the command buffer.
	EndFrame() error

	// Present presents the acquired surface texture.
	Present()

	// Device returns the GPU device.
	Device() *wgpu.Device

	// Release frees every GPU object owned by the backend.
	Release()
}

// canvasColorAttachment builds the color attachment for the main render pass. With MSAA on, the pass
// renders into the multisampled view and resolves into the swapchain view; if the multisampled view is
// missing it falls back to rendering straight into the swapchain view.
//
// Parameters:
//   - sampleCount: the MSAA sample count
//   - msaaView: the multisampled color view, nil when MSAA is off
//   - swapView: the current swapchain texture view
//   - clear: the clear color
//
// Returns:
//   - wgpu.RenderPassColorAttachment: the attachment
func canvasColorAttachment(sampleCount MSAASampleCount, msaaView, swapView *wgpu.TextureView, clear wgpu.Color) wgpu.RenderPassColorAttachment {
	attachment := wgpu.RenderPassColorAttachment{
		View:       swapView,
		LoadOp:     wgpu.LoadOpClear,
		StoreOp:    wgpu.StoreOpStore,
		ClearValue: clear,
	}
	if sampleCount > 1 && msaaView != nil {
		attachment.View = msaaView
		attachment.ResolveTarget = swapView
		attachment.StoreOp = wgpu.StoreOpDiscard
	}
	return attachment
}

// alignUp4 rounds n up to the next multiple of 4, the granularity of buffer sizes and queue writes.
func alignUp4(n uint64) uint64 {
	return (n + 3) &^ 3
}
