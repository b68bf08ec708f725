package layout

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// VertexFormat identifies the numeric layout of a single vertex attribute, e.g. two 32-bit floats
// or four unsigned normalized 8-bit integers. Every tag maps to exactly one byte size, component count and ViewType.
type VertexFormat int

const (
	// VertexFormatUndefined is the zero value and is never a valid attribute format.
	VertexFormatUndefined VertexFormat = iota
	VertexFormatUint8x2
	VertexFormatUint8x4
	VertexFormatSint8x2
	VertexFormatSint8x4
	VertexFormatUnorm8x2
	VertexFormatUnorm8x4
	VertexFormatSnorm8x2
	VertexFormatSnorm8x4
	VertexFormatUint16x2
	VertexFormatUint16x4
	VertexFormatSint16x2
	VertexFormatSint16x4
	VertexFormatUnorm16x2
	VertexFormatUnorm16x4
	VertexFormatSnorm16x2
	VertexFormatSnorm16x4
	VertexFormatFloat16x2
	VertexFormatFloat16x4
	VertexFormatFloat32
	VertexFormatFloat32x2
	VertexFormatFloat32x3
	VertexFormatFloat32x4
	VertexFormatUint32
	VertexFormatUint32x2
	VertexFormatUint32x3
	VertexFormatUint32x4
	VertexFormatSint32
	VertexFormatSint32x2
	VertexFormatSint32x3
	VertexFormatSint32x4
)

// ViewType is the numeric element type an attribute is read and written through.
type ViewType int

const (
	ViewTypeUint8 ViewType = iota
	ViewTypeInt8
	ViewTypeUint16
	ViewTypeInt16
	ViewTypeUint32
	ViewTypeInt32
	ViewTypeFloat32
)

// ElementSize returns the byte size of a single element of the view type.
//
// Returns:
//   - int: element size in bytes
func (v ViewType) ElementSize() int {
	switch v {
	case ViewTypeUint8, ViewTypeInt8:
		return 1
	case ViewTypeUint16, ViewTypeInt16:
		return 2
	default:
		return 4
	}
}

func (v ViewType) String() string {
	switch v {
	case ViewTypeUint8:
		return "Uint8"
	case ViewTypeInt8:
		return "Int8"
	case ViewTypeUint16:
		return "Uint16"
	case ViewTypeInt16:
		return "Int16"
	case ViewTypeUint32:
		return "Uint32"
	case ViewTypeInt32:
		return "Int32"
	case ViewTypeFloat32:
		return "Float32"
	default:
		return fmt.Sprintf("ViewType(%d)", int(v))
	}
}

// formatInfo holds everything the format table knows about a VertexFormat.
type formatInfo struct {
	name       string
	view       ViewType
	components int
	scalar     ScalarKind
	wgpuFormat wgpu.VertexFormat
	gpuFormat  gputypes.VertexFormat
}

// size is derived so that byte size and view type can never disagree.
func (f formatInfo) size() int {
	return f.components * f.view.ElementSize()
}

// formatTable is the closed set of supported vertex formats.
// float16 formats are stored as raw half-float bits through a Uint16 view.
var formatTable = map[VertexFormat]formatInfo{
	VertexFormatUint8x2:   {"uint8x2", ViewTypeUint8, 2, ScalarUint, wgpu.VertexFormatUint8x2, gputypes.VertexFormatUint8x2},
	VertexFormatUint8x4:   {"uint8x4", ViewTypeUint8, 4, ScalarUint, wgpu.VertexFormatUint8x4, gputypes.VertexFormatUint8x4},
	VertexFormatSint8x2:   {"sint8x2", ViewTypeInt8, 2, ScalarSint, wgpu.VertexFormatSint8x2, gputypes.VertexFormatSint8x2},
	VertexFormatSint8x4:   {"sint8x4", ViewTypeInt8, 4, ScalarSint, wgpu.VertexFormatSint8x4, gputypes.VertexFormatSint8x4},
	VertexFormatUnorm8x2:  {"unorm8x2", ViewTypeUint8, 2, ScalarFloat, wgpu.VertexFormatUnorm8x2, gputypes.VertexFormatUnorm8x2},
	VertexFormatUnorm8x4:  {"unorm8x4", ViewTypeUint8, 4, ScalarFloat, wgpu.VertexFormatUnorm8x4, gputypes.VertexFormatUnorm8x4},
	VertexFormatSnorm8x2:  {"snorm8x2", ViewTypeInt8, 2, ScalarFloat, wgpu.VertexFormatSnorm8x2, gputypes.VertexFormatSnorm8x2},
	VertexFormatSnorm8x4:  {"snorm8x4", ViewTypeInt8, 4, ScalarFloat, wgpu.VertexFormatSnorm8x4, gputypes.VertexFormatSnorm8x4},
	VertexFormatUint16x2:  {"uint16x2", ViewTypeUint16, 2, ScalarUint, wgpu.VertexFormatUint16x2, gputypes.VertexFormatUint16x2},
	VertexFormatUint16x4:  {"uint16x4", ViewTypeUint16, 4, ScalarUint, wgpu.VertexFormatUint16x4, gputypes.VertexFormatUint16x4},
	VertexFormatSint16x2:  {"sint16x2", ViewTypeInt16, 2, ScalarSint, wgpu.VertexFormatSint16x2, gputypes.VertexFormatSint16x2},
	VertexFormatSint16x4:  {"sint16x4", ViewTypeInt16, 4, ScalarSint, wgpu.VertexFormatSint16x4, gputypes.VertexFormatSint16x4},
	VertexFormatUnorm16x2: {"unorm16x2", ViewTypeUint16, 2, ScalarFloat, wgpu.VertexFormatUnorm16x2, gputypes.VertexFormatUnorm16x2},
	VertexFormatUnorm16x4: {"unorm16x4", ViewTypeUint16, 4, ScalarFloat, wgpu.VertexFormatUnorm16x4, gputypes.VertexFormatUnorm16x4},
	VertexFormatSnorm16x2: {"snorm16x2", ViewTypeInt16, 2, ScalarFloat, wgpu.VertexFormatSnorm16x2, gputypes.VertexFormatSnorm16x2},
	VertexFormatSnorm16x4: {"snorm16x4", ViewTypeInt16, 4, ScalarFloat, wgpu.VertexFormatSnorm16x4, gputypes.VertexFormatSnorm16x4},
	VertexFormatFloat16x2: {"float16x2", ViewTypeUint16, 2, ScalarFloat, wgpu.VertexFormatFloat16x2, gputypes.VertexFormatFloat16x2},
	VertexFormatFloat16x4: {"float16x4", ViewTypeUint16, 4, ScalarFloat, wgpu.VertexFormatFloat16x4, gputypes.VertexFormatFloat16x4},
	VertexFormatFloat32:   {"float32", ViewTypeFloat32, 1, ScalarFloat, wgpu.VertexFormatFloat32, gputypes.VertexFormatFloat32},
	VertexFormatFloat32x2: {"float32x2", ViewTypeFloat32, 2, ScalarFloat, wgpu.VertexFormatFloat32x2, gputypes.VertexFormatFloat32x2},
	VertexFormatFloat32x3: {"float32x3", ViewTypeFloat32, 3, ScalarFloat, wgpu.VertexFormatFloat32x3, gputypes.VertexFormatFloat32x3},
	VertexFormatFloat32x4: {"float32x4", ViewTypeFloat32, 4, ScalarFloat, wgpu.VertexFormatFloat32x4, gputypes.VertexFormatFloat32x4},
	VertexFormatUint32:    {"uint32", ViewTypeUint32, 1, ScalarUint, wgpu.VertexFormatUint32, gputypes.VertexFormatUint32},
	VertexFormatUint32x2:  {"uint32x2", ViewTypeUint32, 2, ScalarUint, wgpu.VertexFormatUint32x2, gputypes.VertexFormatUint32x2},
	VertexFormatUint32x3:  {"uint32x3", ViewTypeUint32, 3, ScalarUint, wgpu.VertexFormatUint32x3, gputypes.VertexFormatUint32x3},
	VertexFormatUint32x4:  {"uint32x4", ViewTypeUint32, 4, ScalarUint, wgpu.VertexFormatUint32x4, gputypes.VertexFormatUint32x4},
	VertexFormatSint32:    {"sint32", ViewTypeInt32, 1, ScalarSint, wgpu.VertexFormatSint32, gputypes.VertexFormatSint32},
	VertexFormatSint32x2:  {"sint32x2", ViewTypeInt32, 2, ScalarSint, wgpu.VertexFormatSint32x2, gputypes.VertexFormatSint32x2},
	VertexFormatSint32x3:  {"sint32x3", ViewTypeInt32, 3, ScalarSint, wgpu.VertexFormatSint32x3, gputypes.VertexFormatSint32x3},
	VertexFormatSint32x4:  {"sint32x4", ViewTypeInt32, 4, ScalarSint, wgpu.VertexFormatSint32x4, gputypes.VertexFormatSint32x4},
}

// formatsByName is the reverse lookup used by ParseVertexFormat, built once from formatTable.
var formatsByName = func() map[string]VertexFormat {
	m := make(map[string]VertexFormat, len(formatTable))
	for f, info := range formatTable {
		m[info.name] = f
	}
	return m
}()

func lookup(f VertexFormat) (formatInfo, error) {
	info, ok := formatTable[f]
	if !ok {
		return formatInfo{}, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
	return info, nil
}

// SizeOf returns the byte size of a vertex format.
//
// Parameters:
//   - f: the vertex format to look up
//
// Returns:
//   - int: the byte size of one attribute value of this format
//   - error: ErrUnknownFormat if the format is not in the table
func SizeOf(f VertexFormat) (int, error) {
	info, err := lookup(f)
	if err != nil {
		return 0, err
	}
	return info.size(), nil
}

// ViewTypeOf returns the numeric view type used to read and write a vertex format.
//
// Parameters:
//   - f: the vertex format to look up
//
// Returns:
//   - ViewType: the element type of the format
//   - error: ErrUnknownFormat if the format is not in the table
func ViewTypeOf(f VertexFormat) (ViewType, error) {
	info, err := lookup(f)
	if err != nil {
		return 0, err
	}
	return info.view, nil
}

// ComponentsOf returns the number of components of a vertex format (e.g. 4 for unorm8x4).
//
// Parameters:
//   - f: the vertex format to look up
//
// Returns:
//   - int: the component count
//   - error: ErrUnknownFormat if the format is not in the table
func ComponentsOf(f VertexFormat) (int, error) {
	info, err := lookup(f)
	if err != nil {
		return 0, err
	}
	return info.components, nil
}

// ParseVertexFormat resolves a WebGPU format tag such as "float32x2" or "unorm8x4".
//
// Parameters:
//   - name: the WebGPU vertex format tag
//
// Returns:
//   - VertexFormat: the matching format
//   - error: ErrUnknownFormat if the tag is not recognized
func ParseVertexFormat(name string) (VertexFormat, error) {
	f, ok := formatsByName[name]
	if !ok {
		return VertexFormatUndefined, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return f, nil
}

// Size returns the byte size of the format, or 0 if the format is unknown.
func (f VertexFormat) Size() int {
	return formatTable[f].size()
}

// Components returns the component count of the format, or 0 if the format is unknown.
func (f VertexFormat) Components() int {
	return formatTable[f].components
}

// ViewType returns the view type of the format. Unknown formats report ViewTypeUint8; use ViewTypeOf to detect them.
func (f VertexFormat) ViewType() ViewType {
	return formatTable[f].view
}

// Valid reports whether the format is in the format table.
func (f VertexFormat) Valid() bool {
	_, ok := formatTable[f]
	return ok
}

// WGPU returns the cogentcore/webgpu vertex format, or wgpu.VertexFormatUndefined if unknown.
func (f VertexFormat) WGPU() wgpu.VertexFormat {
	info, ok := formatTable[f]
	if !ok {
		return wgpu.VertexFormatUndefined
	}
	return info.wgpuFormat
}

// GPUTypes returns the gogpu/gputypes vertex format, or gputypes.VertexFormatUndefined if unknown.
func (f VertexFormat) GPUTypes() gputypes.VertexFormat {
	info, ok := formatTable[f]
	if !ok {
		return gputypes.VertexFormatUndefined
	}
	return info.gpuFormat
}

func (f VertexFormat) String() string {
	if info, ok := formatTable[f]; ok {
		return info.name
	}
	return fmt.Sprintf("VertexFormat(%d)", int(f))
}

// ScalarKind is the shader-side scalar type class a vertex format is read as.
// unorm, snorm and float formats all read as float in the shader.
type ScalarKind int

const (
	ScalarFloat ScalarKind = iota
	ScalarUint
	ScalarSint
	// ScalarUnknown is reported for formats outside the table.
	ScalarUnknown
)

func (k ScalarKind) String() string {
	switch k {
	case ScalarUint:
		return "u32"
	case ScalarSint:
		return "i32"
	case ScalarFloat:
		return "f32"
	default:
		return fmt.Sprintf("ScalarKind(%d)", int(k))
	}
}

// Scalar returns the shader scalar kind the format is read as, ScalarUnknown for formats outside the table.
func (f VertexFormat) Scalar() ScalarKind {
	info, ok := formatTable[f]
	if !ok {
		return ScalarUnknown
	}
	return info.scalar
}
