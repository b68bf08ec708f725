package layout

import (
	"fmt"
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// registry is the implementation of the Registry interface.
type registry struct {
	layouts []BufferLayout
	// locations maps every shader location to the slot and attribute feeding it.
	locations map[uint32]registeredAttribute
}

// ShaderInput is a vertex shader input as declared in WGSL: its scalar kind and component count.
type ShaderInput struct {
	Scalar     ScalarKind
	Components int
}

func (in ShaderInput) String() string {
	if in.Components <= 1 {
		return in.Scalar.String()
	}
	return fmt.Sprintf("vec%d<%s>", in.Components, in.Scalar)
}

// registeredAttribute records where a shader location is sourced from.
type registeredAttribute struct {
	slot      int
	attribute AttributeLayout
}

// Registry binds an ordered set of BufferLayouts to the vertex buffer slots of one render pipeline.
// Slot i is the i-th layout passed to NewRegistry, matching SetVertexBuffer(i, ...) at draw time.
type Registry interface {
	// Layouts returns the registered layouts in slot order.
	//
	// Returns:
	//   - []BufferLayout: a new slice of the layouts
	Layouts() []BufferLayout

	// Len returns the number of vertex buffer slots.
	//
	// Returns:
	//   - int: the slot count
	Len() int

	// Slot returns the vertex buffer slot of the layout with the given label.
	//
	// Parameters:
	//   - label: the layout label
	//
	// Returns:
	//   - int: the slot index
	//   - error: ErrUnknownLayout if no layout has that label
	Slot(label string) (int, error)

	// WireDescriptors returns the API-neutral descriptors of every layout in slot order.
	//
	// Returns:
	//   - []WireDescriptor: one descriptor per slot
	WireDescriptors() []WireDescriptor

	// WGPU returns the cogentcore/webgpu vertex buffer layouts, in slot order, for RenderPipelineDescriptor.Vertex.Buffers.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: one layout per slot
	WGPU() []wgpu.VertexBufferLayout

	// GPUTypes returns the gogpu/gputypes vertex buffer layouts in slot order.
	//
	// Returns:
	//   - []gputypes.VertexBufferLayout: one layout per slot
	GPUTypes() []gputypes.VertexBufferLayout

	// Validate checks the registry against the vertex inputs declared by a shader, keyed by @location.
	// Every input must be fed by an attribute whose format reads as the same scalar kind (e.g. unorm8x4 feeds vec4f).
	// Attributes the shader does not read are allowed.
	//
	// Parameters:
	//   - inputs: the shader's vertex inputs keyed by location
	//
	// Returns:
	//   - error: ErrMissingShaderInput or ErrFormatMismatch, nil if compatible
	Validate(inputs map[uint32]ShaderInput) error
}

var _ Registry = &registry{}

// NewRegistry creates a Registry from layouts given in vertex buffer slot order.
// Shader locations must be unique across all layouts.
//
// Parameters:
//   - layouts: the buffer layouts, one per slot
//
// Returns:
//   - Registry: the registry
//   - error: ErrInvalidAttribute for a nil layout, ErrDuplicateShaderLocation on a location clash
func NewRegistry(layouts ...BufferLayout) (Registry, error) {
	r := &registry{
		layouts:   make([]BufferLayout, 0, len(layouts)),
		locations: make(map[uint32]registeredAttribute),
	}
	for slot, l := range layouts {
		if l == nil {
			return nil, fmt.Errorf("%w: layout at slot %d is nil", ErrInvalidAttribute, slot)
		}
		for _, a := range l.Attributes() {
			if prev, exists := r.locations[a.ShaderLocation()]; exists {
				return nil, fmt.Errorf("%w: location %d used by %q (slot %d) and %q (slot %d)",
					ErrDuplicateShaderLocation, a.ShaderLocation(), prev.attribute.Name(), prev.slot, a.Name(), slot)
			}
			r.locations[a.ShaderLocation()] = registeredAttribute{slot: slot, attribute: a}
		}
		r.layouts = append(r.layouts, l)
	}
	return r, nil
}

func (r *registry) Layouts() []BufferLayout {
	out := make([]BufferLayout, len(r.layouts))
	copy(out, r.layouts)
	return out
}

func (r *registry) Len() int {
	return len(r.layouts)
}

func (r *registry) Slot(label string) (int, error) {
	for i, l := range r.layouts {
		if l.Label() == label {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownLayout, label)
}

func (r *registry) WireDescriptors() []WireDescriptor {
	out := make([]WireDescriptor, len(r.layouts))
	for i, l := range r.layouts {
		out[i] = l.WireDescriptor()
	}
	return out
}

func (r *registry) WGPU() []wgpu.VertexBufferLayout {
	out := make([]wgpu.VertexBufferLayout, len(r.layouts))
	for i, l := range r.layouts {
		out[i] = l.WGPU()
	}
	return out
}

func (r *registry) GPUTypes() []gputypes.VertexBufferLayout {
	out := make([]gputypes.VertexBufferLayout, len(r.layouts))
	for i, l := range r.layouts {
		out[i] = l.GPUTypes()
	}
	return out
}

func (r *registry) Validate(inputs map[uint32]ShaderInput) error {
	// Sorted so the reported error is deterministic.
	locs := make([]uint32, 0, len(inputs))
	for loc := range inputs {
		locs = append(locs, loc)
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i] < locs[j] })

	for _, loc := range locs {
		want := inputs[loc]
		got, ok := r.locations[loc]
		if !ok {
			return fmt.Errorf("%w: no attribute bound to location %d (%s)", ErrMissingShaderInput, loc, want)
		}
		if got.attribute.Format().Scalar() != want.Scalar {
			return fmt.Errorf("%w: location %d is %s in %q, shader expects %s",
				ErrFormatMismatch, loc, got.attribute.Format(), got.attribute.Name(), want)
		}
	}
	return nil
}
