package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// pipeline is the implementation of the Pipeline interface.
// It holds the render pipeline configuration and, once created by the renderer, the GPU pipeline object.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used for lookups at draw time
	pipelineKey string

	vertexShader, fragmentShader shader.Shader

	// vertexBuffers binds the vertex buffer layouts to slots; nil means the pipeline reads no vertex buffers
	vertexBuffers layout.Registry

	renderPipeline *wgpu.RenderPipeline

	blendEnabled bool
	cullMode     wgpu.CullMode
	topology     wgpu.PrimitiveTopology
	frontFace    wgpu.FrontFace
	writeMask    wgpu.ColorWriteMask
	blendState   *wgpu.BlendState
}

// Pipeline defines the interface for a render pipeline (vertex + fragment shaders) together with the vertex
// buffer layouts it consumes and its primitive and blend state.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader retrieves the shader associated with the specified stage if it exists, nil otherwise.
	//
	// Parameters:
	//   - shaderType: the stage of shader to retrieve
	//
	// Returns:
	//   - shader.Shader: the shader for the stage, or nil if not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// VertexBuffers returns the registry of vertex buffer layouts in slot order.
	//
	// Returns:
	//   - layout.Registry: the registry, nil if the pipeline reads no vertex buffers
	VertexBuffers() layout.Registry

	// Validate checks that both shaders are set with the right stages, that the vertex buffers feed every
	// vertex shader input and that every vertex buffer layout is aligned for the GPU.
	//
	// Returns:
	//   - error: the first problem found, nil if the pipeline can be created
	Validate() error

	// Descriptor builds the render pipeline descriptor for already created shader modules.
	// The pipeline layout is left nil so the device derives it from the shaders.
	//
	// Parameters:
	//   - vs: the vertex shader module
	//   - fs: the fragment shader module
	//   - format: the color target format, usually the presentation format
	//   - sampleCount: the multisample count of the render target
	//
	// Returns:
	//   - *wgpu.RenderPipelineDescriptor: the descriptor for Device.CreateRenderPipeline
	Descriptor(vs, fs *wgpu.ShaderModule, format wgpu.TextureFormat, sampleCount uint32) *wgpu.RenderPipelineDescriptor

	// RenderPipeline returns the GPU pipeline created by the renderer, nil before creation.
	//
	// Returns:
	//   - *wgpu.RenderPipeline: the GPU pipeline
	RenderPipeline() *wgpu.RenderPipeline

	// SetRenderPipeline sets the render pipeline
	//
	// Parameters:
	//   - p: the WebGPU render pipeline to set
	SetRenderPipeline(p *wgpu.RenderPipeline)

	// BlendEnabled returns whether blending is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if blending is enabled, false otherwise
	BlendEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - wgpu.CullMode: the cull mode for this pipeline
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the primitive topology for this pipeline
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this pipeline.
	//
	// Returns:
	//   - wgpu.FrontFace: the front face winding order for this pipeline
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color write mask configured for this pipeline.
	//
	// Returns:
	//   - wgpu.ColorWriteMask: the color write mask for this pipeline
	WriteMask() wgpu.ColorWriteMask

	// BlendState returns the blend state configured for this pipeline.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state used when blending is enabled
	BlendState() *wgpu.BlendState
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new render Pipeline.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified configuration
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey: pipelineKey,
		cullMode:    wgpu.CullModeNone,
		topology:    wgpu.PrimitiveTopologyTriangleList,
		frontFace:   wgpu.FrontFaceCCW,
		writeMask:   wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	default:
		return nil
	}
}

func (p *pipeline) VertexBuffers() layout.Registry {
	return p.vertexBuffers
}

func (p *pipeline) Validate() error {
	if p.vertexShader == nil || p.fragmentShader == nil {
		return errors.New("vertex and fragment shaders must be set to create a render pipeline")
	}
	if p.vertexShader.ShaderType() != shader.ShaderTypeVertex {
		return fmt.Errorf("pipeline %q: shader %q is not a vertex shader", p.pipelineKey, p.vertexShader.Key())
	}
	if p.fragmentShader.ShaderType() != shader.ShaderTypeFragment {
		return fmt.Errorf("pipeline %q: shader %q is not a fragment shader", p.pipelineKey, p.fragmentShader.Key())
	}
	if err := p.vertexShader.Validate(p.vertexBuffers); err != nil {
		return fmt.Errorf("pipeline %q: %w", p.pipelineKey, err)
	}
	if p.vertexBuffers != nil {
		for _, l := range p.vertexBuffers.Layouts() {
			if err := l.Aligned(); err != nil {
				return fmt.Errorf("pipeline %q: vertex buffer %q: %w", p.pipelineKey, l.Label(), err)
			}
		}
	}
	return nil
}

func (p *pipeline) Descriptor(vs, fs *wgpu.ShaderModule, format wgpu.TextureFormat, sampleCount uint32) *wgpu.RenderPipelineDescriptor {
	var buffers []wgpu.VertexBufferLayout
	if p.vertexBuffers != nil {
		buffers = p.vertexBuffers.WGPU()
	}

	target := wgpu.ColorTargetState{
		Format:    format,
		WriteMask: p.writeMask,
	}
	if p.blendEnabled {
		target.Blend = p.blendState
	}

	var vertexEntry, fragmentEntry string
	if p.vertexShader != nil {
		vertexEntry = p.vertexShader.EntryPoint()
	}
	if p.fragmentShader != nil {
		fragmentEntry = p.fragmentShader.EntryPoint()
	}

	return &wgpu.RenderPipelineDescriptor{
		Label: p.pipelineKey + " Render Pipeline",
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexEntry,
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentEntry,
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.topology,
			FrontFace: p.frontFace,
			CullMode:  p.cullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: max(sampleCount, 1),
			Mask:  0xFFFFFFFF,
		},
	}
}

func (p *pipeline) RenderPipeline() *wgpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}
