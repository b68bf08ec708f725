package layout

import (
	"encoding/binary"
	"fmt"
	"math"
)

// AttributeSpec declares a single named vertex attribute. It is the caller input to NewBufferLayout.
type AttributeSpec struct {
	// Name identifies the attribute inside its BufferLayout and must be unique there.
	Name string
	// ShaderLocation is the @location(N) index the attribute is bound to in the vertex shader.
	ShaderLocation uint32
	// Format is the numeric layout of the attribute.
	Format VertexFormat
}

// attributeLayout is the implementation of the AttributeLayout interface.
// It is owned by exactly one bufferLayout and its offset never changes after construction.
type attributeLayout struct {
	spec       AttributeSpec
	byteOffset int
	info       formatInfo
	// owner provides the stride; the attribute never outlives it.
	owner *bufferLayout
}

// AttributeLayout is a single attribute placed inside a BufferLayout. It knows its byte offset within
// the stride and reads/writes its values in a caller-owned interleaved buffer.
type AttributeLayout interface {
	// Name returns the attribute name.
	//
	// Returns:
	//   - string: the attribute name
	Name() string

	// ShaderLocation returns the shader binding index of the attribute.
	//
	// Returns:
	//   - uint32: the @location index
	ShaderLocation() uint32

	// Format returns the vertex format of the attribute.
	//
	// Returns:
	//   - VertexFormat: the attribute format
	Format() VertexFormat

	// ByteOffset returns the offset of the attribute within one stride.
	//
	// Returns:
	//   - int: offset in bytes from the start of an item
	ByteOffset() int

	// Size returns the byte size of one value of this attribute.
	//
	// Returns:
	//   - int: size in bytes
	Size() int

	// OffsetFor returns the absolute byte offset of this attribute for the given item.
	// It is stride*itemIndex + ByteOffset and has no side effects.
	//
	// Parameters:
	//   - itemIndex: the vertex or instance index
	//
	// Returns:
	//   - int: the byte offset into the backing buffer
	OffsetFor(itemIndex int) int

	// Write encodes values into buf at OffsetFor(itemIndex) through the attribute's view type (little-endian).
	// All checks run before any byte is written, so a failed write leaves buf unmodified.
	//
	// Parameters:
	//   - buf: the caller-owned backing buffer
	//   - itemIndex: the vertex or instance index to write
	//   - values: exactly Format().Components() values
	//
	// Returns:
	//   - error: ErrOutOfBounds or ErrArityMismatch on misuse, nil otherwise
	Write(buf []byte, itemIndex int, values ...float64) error

	// Read decodes the attribute's values for the given item from buf.
	//
	// Parameters:
	//   - buf: the backing buffer to read from
	//   - itemIndex: the vertex or instance index to read
	//
	// Returns:
	//   - []float64: the decoded component values
	//   - error: ErrOutOfBounds if the item does not fit in buf
	Read(buf []byte, itemIndex int) ([]float64, error)
}

var _ AttributeLayout = &attributeLayout{}

func (a *attributeLayout) Name() string {
	return a.spec.Name
}

func (a *attributeLayout) ShaderLocation() uint32 {
	return a.spec.ShaderLocation
}

func (a *attributeLayout) Format() VertexFormat {
	return a.spec.Format
}

func (a *attributeLayout) ByteOffset() int {
	return a.byteOffset
}

func (a *attributeLayout) Size() int {
	return a.info.size()
}

func (a *attributeLayout) OffsetFor(itemIndex int) int {
	return a.owner.stride*itemIndex + a.byteOffset
}

func (a *attributeLayout) Write(buf []byte, itemIndex int, values ...float64) error {
	if len(values) != a.info.components {
		return fmt.Errorf("%w: attribute %q (%s) takes %d values, got %d",
			ErrArityMismatch, a.spec.Name, a.spec.Format, a.info.components, len(values))
	}
	start, err := a.span(buf, itemIndex)
	if err != nil {
		return err
	}

	elem := a.info.view.ElementSize()
	for i, v := range values {
		putElement(buf[start+i*elem:], a.info.view, v)
	}
	return nil
}

func (a *attributeLayout) Read(buf []byte, itemIndex int) ([]float64, error) {
	start, err := a.span(buf, itemIndex)
	if err != nil {
		return nil, err
	}

	elem := a.info.view.ElementSize()
	out := make([]float64, a.info.components)
	for i := range out {
		out[i] = getElement(buf[start+i*elem:], a.info.view)
	}
	return out, nil
}

// span validates that the attribute's byte range for itemIndex lies inside buf and returns its start.
// The index is bounded before the offset is computed, so huge indices cannot wrap.
func (a *attributeLayout) span(buf []byte, itemIndex int) (int, error) {
	if itemIndex < 0 {
		return 0, fmt.Errorf("%w: attribute %q item %d is negative", ErrOutOfBounds, a.spec.Name, itemIndex)
	}
	size := a.info.size()
	room := len(buf) - a.byteOffset - size
	if room < 0 || itemIndex > room/a.owner.stride {
		return 0, fmt.Errorf("%w: attribute %q item %d does not fit in a %d-byte buffer with stride %d",
			ErrOutOfBounds, a.spec.Name, itemIndex, len(buf), a.owner.stride)
	}
	return a.OffsetFor(itemIndex), nil
}

// putElement stores v as a single element of the given view type.
// Integer views truncate toward zero and wrap modulo 2^n, like a typed-array store.
func putElement(b []byte, view ViewType, v float64) {
	switch view {
	case ViewTypeUint8:
		b[0] = uint8(toInt(v))
	case ViewTypeInt8:
		b[0] = byte(int8(toInt(v)))
	case ViewTypeUint16:
		binary.LittleEndian.PutUint16(b, uint16(toInt(v)))
	case ViewTypeInt16:
		binary.LittleEndian.PutUint16(b, uint16(int16(toInt(v))))
	case ViewTypeUint32:
		binary.LittleEndian.PutUint32(b, uint32(toInt(v)))
	case ViewTypeInt32:
		binary.LittleEndian.PutUint32(b, uint32(int32(toInt(v))))
	case ViewTypeFloat32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	}
}

// getElement loads a single element of the given view type.
func getElement(b []byte, view ViewType) float64 {
	switch view {
	case ViewTypeUint8:
		return float64(b[0])
	case ViewTypeInt8:
		return float64(int8(b[0]))
	case ViewTypeUint16:
		return float64(binary.LittleEndian.Uint16(b))
	case ViewTypeInt16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case ViewTypeUint32:
		return float64(binary.LittleEndian.Uint32(b))
	case ViewTypeInt32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case ViewTypeFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	default:
		return 0
	}
}

// toInt truncates toward zero. NaN and infinities store as 0, matching typed-array conversion.
func toInt(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(math.Mod(math.Trunc(v), 1<<32))
}
