package layout

import (
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// StepMode controls whether a vertex buffer advances per vertex or per instance.
type StepMode int

const (
	// StepModeVertex advances the buffer once per vertex. This is the default.
	StepModeVertex StepMode = iota

	// StepModeInstance advances the buffer once per instance.
	StepModeInstance
)

func (m StepMode) String() string {
	switch m {
	case StepModeVertex:
		return "vertex"
	case StepModeInstance:
		return "instance"
	default:
		return fmt.Sprintf("StepMode(%d)", int(m))
	}
}

// WGPU returns the cogentcore/webgpu step mode.
func (m StepMode) WGPU() wgpu.VertexStepMode {
	if m == StepModeInstance {
		return wgpu.VertexStepModeInstance
	}
	return wgpu.VertexStepModeVertex
}

// GPUTypes returns the gogpu/gputypes step mode.
func (m StepMode) GPUTypes() gputypes.VertexStepMode {
	if m == StepModeInstance {
		return gputypes.VertexStepModeInstance
	}
	return gputypes.VertexStepModeVertex
}

// WireAttribute is one attribute entry of a WireDescriptor.
type WireAttribute struct {
	ShaderLocation uint32
	Format         VertexFormat
	ByteOffset     int
}

// WireDescriptor is the API-neutral projection of a BufferLayout consumed when configuring a pipeline's input-assembly stage.
type WireDescriptor struct {
	Stride     int
	StepMode   StepMode
	Attributes []WireAttribute
}

// bufferLayout is the implementation of the BufferLayout interface.
type bufferLayout struct {
	label      string
	stepMode   StepMode
	stride     int
	attributes []*attributeLayout
	byName     map[string]*attributeLayout
}

// BufferLayout describes one interleaved vertex buffer: an ordered list of attributes tightly packed into a
// single stride, and a step mode. It is immutable after construction and safe to share between readers.
type BufferLayout interface {
	// Label returns the debug label of the layout, also used to label GPU buffers created from it.
	//
	// Returns:
	//   - string: the label, empty if none was set
	Label() string

	// StepMode returns whether the buffer advances per vertex or per instance.
	//
	// Returns:
	//   - StepMode: StepModeVertex or StepModeInstance
	StepMode() StepMode

	// Stride returns the byte size of one item, equal to the sum of all attribute sizes.
	//
	// Returns:
	//   - int: stride in bytes
	Stride() int

	// BufferSize returns the byte size of a backing buffer holding itemCount items.
	//
	// Parameters:
	//   - itemCount: the number of vertices or instances
	//
	// Returns:
	//   - int: stride * itemCount
	BufferSize(itemCount int) int

	// MaxItems returns the largest item count whose BufferSize fits in an int.
	//
	// Returns:
	//   - int: math.MaxInt / stride, or math.MaxInt for an empty layout
	MaxItems() int

	// CheckItemCount rejects item counts that are negative or whose byte size overflows an int.
	//
	// Parameters:
	//   - itemCount: the number of vertices or instances
	//
	// Returns:
	//   - error: ErrOutOfBounds if itemCount is out of range, nil otherwise
	CheckItemCount(itemCount int) error

	// Attribute looks up an attribute by name.
	//
	// Parameters:
	//   - name: the attribute name declared at construction
	//
	// Returns:
	//   - AttributeLayout: the attribute
	//   - error: ErrUnknownAttribute if no attribute has that name
	Attribute(name string) (AttributeLayout, error)

	// MustAttribute is like Attribute but panics if the name is unknown.
	//
	// Parameters:
	//   - name: the attribute name declared at construction
	//
	// Returns:
	//   - AttributeLayout: the attribute
	MustAttribute(name string) AttributeLayout

	// Attributes returns all attributes in declaration (packing) order.
	//
	// Returns:
	//   - []AttributeLayout: a new slice of the attributes
	Attributes() []AttributeLayout

	// WireDescriptor projects the layout into the stride / step mode / (location, format, offset) tuples used for
	// pipeline configuration. Offsets are exactly those computed at construction.
	//
	// Returns:
	//   - WireDescriptor: the projection
	WireDescriptor() WireDescriptor

	// WGPU returns the layout as a cogentcore/webgpu vertex buffer layout.
	//
	// Returns:
	//   - wgpu.VertexBufferLayout: the descriptor for RenderPipelineDescriptor.Vertex.Buffers
	WGPU() wgpu.VertexBufferLayout

	// GPUTypes returns the layout as a gogpu/gputypes vertex buffer layout.
	//
	// Returns:
	//   - gputypes.VertexBufferLayout: the descriptor for gogpu pipelines
	GPUTypes() gputypes.VertexBufferLayout

	// Aligned reports whether every attribute offset is a multiple of min(4, attribute size), the WebGPU rule.
	// Construction never pads; this lets callers reject tightly packed layouts a device would refuse.
	//
	// Returns:
	//   - error: ErrMisaligned naming the first offending attribute, nil if aligned
	Aligned() error
}

var _ BufferLayout = &bufferLayout{}

// NewBufferLayout builds a BufferLayout from an ordered list of attribute specs. Offsets are assigned in one
// left-to-right pass: attribute i sits at the sum of the sizes of attributes 0..i-1, and the stride is the
// sum of all sizes. No reordering or padding is introduced.
//
// Parameters:
//   - attrs: the attributes in packing order
//   - options: a variadic list of BufferLayoutOption functions (label, step mode)
//
// Returns:
//   - BufferLayout: the immutable layout
//   - error: ErrInvalidAttribute, ErrUnknownFormat or ErrDuplicateAttributeName on invalid input
func NewBufferLayout(attrs []AttributeSpec, options ...BufferLayoutOption) (BufferLayout, error) {
	l := &bufferLayout{
		stepMode:   StepModeVertex,
		attributes: make([]*attributeLayout, 0, len(attrs)),
		byName:     make(map[string]*attributeLayout, len(attrs)),
	}
	for _, opt := range options {
		opt(l)
	}

	offset := 0
	for i, spec := range attrs {
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: attribute %d of layout %q has no name", ErrInvalidAttribute, i, l.label)
		}
		if _, exists := l.byName[spec.Name]; exists {
			return nil, fmt.Errorf("%w: %q in layout %q", ErrDuplicateAttributeName, spec.Name, l.label)
		}
		info, err := lookup(spec.Format)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", spec.Name, err)
		}

		a := &attributeLayout{
			spec:       spec,
			byteOffset: offset,
			info:       info,
			owner:      l,
		}
		l.attributes = append(l.attributes, a)
		l.byName[spec.Name] = a
		offset += info.size()
	}
	l.stride = offset

	return l, nil
}

// MustBufferLayout is like NewBufferLayout but panics on error. Intended for static layouts declared at init.
//
// Parameters:
//   - attrs: the attributes in packing order
//   - options: a variadic list of BufferLayoutOption functions
//
// Returns:
//   - BufferLayout: the immutable layout
func MustBufferLayout(attrs []AttributeSpec, options ...BufferLayoutOption) BufferLayout {
	l, err := NewBufferLayout(attrs, options...)
	if err != nil {
		panic(fmt.Sprintf("layout: %v", err))
	}
	return l
}

func (l *bufferLayout) Label() string {
	return l.label
}

func (l *bufferLayout) StepMode() StepMode {
	return l.stepMode
}

func (l *bufferLayout) Stride() int {
	return l.stride
}

func (l *bufferLayout) BufferSize(itemCount int) int {
	return l.stride * itemCount
}

func (l *bufferLayout) MaxItems() int {
	if l.stride == 0 {
		return math.MaxInt
	}
	return math.MaxInt / l.stride
}

func (l *bufferLayout) CheckItemCount(itemCount int) error {
	if itemCount < 0 {
		return fmt.Errorf("%w: layout %q item count %d is negative", ErrOutOfBounds, l.label, itemCount)
	}
	if itemCount > l.MaxItems() {
		return fmt.Errorf("%w: layout %q item count %d overflows a %d-byte stride", ErrOutOfBounds, l.label, itemCount, l.stride)
	}
	return nil
}

func (l *bufferLayout) Attribute(name string) (AttributeLayout, error) {
	a, ok := l.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in layout %q", ErrUnknownAttribute, name, l.label)
	}
	return a, nil
}

func (l *bufferLayout) MustAttribute(name string) AttributeLayout {
	a, err := l.Attribute(name)
	if err != nil {
		panic(fmt.Sprintf("layout: %v", err))
	}
	return a
}

func (l *bufferLayout) Attributes() []AttributeLayout {
	out := make([]AttributeLayout, len(l.attributes))
	for i, a := range l.attributes {
		out[i] = a
	}
	return out
}

func (l *bufferLayout) WireDescriptor() WireDescriptor {
	attrs := make([]WireAttribute, len(l.attributes))
	for i, a := range l.attributes {
		attrs[i] = WireAttribute{
			ShaderLocation: a.spec.ShaderLocation,
			Format:         a.spec.Format,
			ByteOffset:     a.byteOffset,
		}
	}
	return WireDescriptor{
		Stride:     l.stride,
		StepMode:   l.stepMode,
		Attributes: attrs,
	}
}

func (l *bufferLayout) WGPU() wgpu.VertexBufferLayout {
	attrs := make([]wgpu.VertexAttribute, len(l.attributes))
	for i, a := range l.attributes {
		attrs[i] = wgpu.VertexAttribute{
			Format:         a.info.wgpuFormat,
			Offset:         uint64(a.byteOffset),
			ShaderLocation: a.spec.ShaderLocation,
		}
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: uint64(l.stride),
		StepMode:    l.stepMode.WGPU(),
		Attributes:  attrs,
	}
}

func (l *bufferLayout) GPUTypes() gputypes.VertexBufferLayout {
	attrs := make([]gputypes.VertexAttribute, len(l.attributes))
	for i, a := range l.attributes {
		attrs[i] = gputypes.VertexAttribute{
			Format:         a.info.gpuFormat,
			Offset:         uint64(a.byteOffset),
			ShaderLocation: a.spec.ShaderLocation,
		}
	}
	return gputypes.VertexBufferLayout{
		ArrayStride: uint64(l.stride),
		StepMode:    l.stepMode.GPUTypes(),
		Attributes:  attrs,
	}
}

func (l *bufferLayout) Aligned() error {
	for _, a := range l.attributes {
		align := min(4, a.info.size())
		if a.byteOffset%align != 0 {
			return fmt.Errorf("%w: %q (%s) at offset %d, needs multiple of %d",
				ErrMisaligned, a.spec.Name, a.spec.Format, a.byteOffset, align)
		}
	}
	return nil
}
