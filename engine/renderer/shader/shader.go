package shader

import (
	"errors"
	"fmt"
	"maps"
	"os"

	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/layout"
	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies which render stage a shader entry point belongs to.
type ShaderType int

const (
	// ShaderTypeVertex is the vertex shader type, fed by the pipeline's vertex buffers.
	ShaderTypeVertex ShaderType = iota

	// ShaderTypeFragment is the fragment shader type, used in pair with a vertex shader.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(t))
	}
}

// ErrNoEntryPoint is returned when the source has no entry point for the requested stage.
var ErrNoEntryPoint = errors.New("shader: no entry point for stage")

// shader is the implementation of the Shader interface.
// It holds the WGSL source and the metadata parsed from it for pipeline creation.
type shader struct {
	key          string
	source       string
	shaderType   ShaderType
	entryPoint   string
	vertexInputs map[uint32]layout.ShaderInput
	module       *wgpu.ShaderModuleDescriptor
}

// Shader defines the interface for a loaded and parsed WGSL shader stage. The same WGSL source may back
// both the vertex and the fragment Shader of a pipeline; each one only looks at its own entry point.
type Shader interface {
	// Key retrieves the unique identifier for this shader, also used as the module label.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// ShaderType returns the stage of the shader.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex or ShaderTypeFragment
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for this shader's stage.
	//
	// Returns:
	//   - string: the entry point name (e.g. "vs")
	EntryPoint() string

	// VertexInputs returns the @location inputs of the vertex entry point, whether declared as parameters
	// or as fields of an input struct. Fragment shaders return an empty map.
	//
	// Returns:
	//   - map[uint32]layout.ShaderInput: a copy of the inputs keyed by location
	VertexInputs() map[uint32]layout.ShaderInput

	// Validate checks that a registry of vertex buffer layouts feeds every input of this shader.
	// It is a no-op for fragment shaders.
	//
	// Parameters:
	//   - reg: the vertex buffer registry the pipeline will use
	//
	// Returns:
	//   - error: the registry's validation error, nil if compatible
	Validate(reg layout.Registry) error

	// Module returns the wgpu.ShaderModuleDescriptor for this shader.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the shader module descriptor containing the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor
}

var _ Shader = &shader{}

// NewShader loads a WGSL shader stage from a file.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the stage whose entry point is used
//   - sourcePath: the file path to read WGSL source from
//
// Returns:
//   - Shader: the parsed shader
//   - error: if the file cannot be read or has no entry point for the stage
func NewShader(key string, shaderType ShaderType, sourcePath string) (Shader, error) {
	if sourcePath == "" {
		return nil, fmt.Errorf("shader: %s has no source path", key)
	}
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to read source file %q: %w", sourcePath, err)
	}
	return NewShaderFromSource(key, shaderType, string(data))
}

// NewShaderFromSource parses a WGSL shader stage from source text.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the stage whose entry point is used
//   - source: the WGSL source
//
// Returns:
//   - Shader: the parsed shader
//   - error: ErrNoEntryPoint if the source has no entry point for the stage
func NewShaderFromSource(key string, shaderType ShaderType, source string) (Shader, error) {
	s := &shader{
		key:          key,
		source:       source,
		shaderType:   shaderType,
		vertexInputs: make(map[uint32]layout.ShaderInput),
	}

	s.entryPoint = parseEntryPoint(source, shaderType)
	if s.entryPoint == "" {
		return nil, fmt.Errorf("%w: %s in %q", ErrNoEntryPoint, shaderType, key)
	}
	if shaderType == ShaderTypeVertex {
		inputs, err := parseVertexInputs(source)
		if err != nil {
			return nil, fmt.Errorf("shader: %q: %w", key, err)
		}
		s.vertexInputs = inputs
	}

	s.module = &wgpu.ShaderModuleDescriptor{
		Label: s.key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.source,
		},
	}
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) VertexInputs() map[uint32]layout.ShaderInput {
	return maps.Clone(s.vertexInputs)
}

func (s *shader) Validate(reg layout.Registry) error {
	if s.shaderType != ShaderTypeVertex {
		return nil
	}
	if reg == nil {
		if len(s.vertexInputs) == 0 {
			return nil
		}
		return fmt.Errorf("shader: %q reads %d vertex inputs but no vertex buffers are bound", s.key, len(s.vertexInputs))
	}
	if err := reg.Validate(s.vertexInputs); err != nil {
		return fmt.Errorf("shader: %q: %w", s.key, err)
	}
	return nil
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}
