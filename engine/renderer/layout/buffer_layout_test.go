package layout

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func posColorLayout(t *testing.T) BufferLayout {
	t.Helper()
	l, err := NewBufferLayout([]AttributeSpec{
		{Name: "pos", ShaderLocation: 0, Format: VertexFormatFloat32x2},
		{Name: "color", ShaderLocation: 1, Format: VertexFormatUnorm8x4},
	}, WithLabel("triangle"))
	require.NoError(t, err)
	return l
}

func TestPosColorScenario(t *testing.T) {
	l := posColorLayout(t)

	assert.Equal(t, 12, l.Stride())
	assert.Equal(t, StepModeVertex, l.StepMode())
	assert.Equal(t, "triangle", l.Label())
	assert.Equal(t, 0, l.MustAttribute("pos").ByteOffset())
	assert.Equal(t, 8, l.MustAttribute("color").ByteOffset())

	buf := make([]byte, l.BufferSize(3))
	require.NoError(t, l.MustAttribute("pos").Write(buf, 0, 0.5, -0.5))

	x := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))
	y := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))
	assert.Equal(t, []float32{0.5, -0.5}, []float32{x, y})
}

func TestStrideTilesAttributes(t *testing.T) {
	l, err := NewBufferLayout([]AttributeSpec{
		{Name: "a", ShaderLocation: 0, Format: VertexFormatFloat32x3},
		{Name: "b", ShaderLocation: 1, Format: VertexFormatUint8x2},
		{Name: "c", ShaderLocation: 2, Format: VertexFormatSint16x4},
		{Name: "d", ShaderLocation: 3, Format: VertexFormatFloat32},
	})
	require.NoError(t, err)

	sum := 0
	attrs := l.Attributes()
	for i, a := range attrs {
		sum += a.Size()
		if i > 0 {
			prev := attrs[i-1]
			assert.Equal(t, prev.ByteOffset()+prev.Size(), a.ByteOffset(), a.Name())
		}
	}
	assert.Equal(t, 0, attrs[0].ByteOffset())
	assert.Equal(t, sum, l.Stride())
	assert.Equal(t, 12+2+8+4, l.Stride())
}

func TestOffsetFor(t *testing.T) {
	l := posColorLayout(t)
	color := l.MustAttribute("color")
	for _, i := range []int{0, 1, 7, 1000} {
		assert.Equal(t, l.Stride()*i+color.ByteOffset(), color.OffsetFor(i))
	}
}

func TestUnknownAttribute(t *testing.T) {
	l := posColorLayout(t)
	_, err := l.Attribute("nonexistent")
	assert.ErrorIs(t, err, ErrUnknownAttribute)
	assert.Panics(t, func() { l.MustAttribute("nonexistent") })
}

func TestDuplicateAttributeName(t *testing.T) {
	_, err := NewBufferLayout([]AttributeSpec{
		{Name: "offset", ShaderLocation: 0, Format: VertexFormatFloat32x2},
		{Name: "offset", ShaderLocation: 1, Format: VertexFormatFloat32x2},
	})
	assert.ErrorIs(t, err, ErrDuplicateAttributeName)
}

func TestInvalidSpecs(t *testing.T) {
	_, err := NewBufferLayout([]AttributeSpec{{Name: "", Format: VertexFormatFloat32}})
	assert.ErrorIs(t, err, ErrInvalidAttribute)

	_, err = NewBufferLayout([]AttributeSpec{{Name: "x", Format: VertexFormatUndefined}})
	assert.ErrorIs(t, err, ErrUnknownFormat)

	assert.Panics(t, func() {
		MustBufferLayout([]AttributeSpec{{Name: "x", Format: VertexFormat(77)}})
	})
}

func TestEmptyLayout(t *testing.T) {
	l, err := NewBufferLayout(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Stride())
	assert.Empty(t, l.Attributes())
}

func TestWriteArityMismatchLeavesBufferUnmodified(t *testing.T) {
	l := posColorLayout(t)
	buf := make([]byte, l.BufferSize(2))
	for i := range buf {
		buf[i] = 0xAB
	}
	before := bytes.Clone(buf)

	err := l.MustAttribute("color").Write(buf, 1, 1, 2, 3)
	assert.ErrorIs(t, err, ErrArityMismatch)
	assert.Equal(t, before, buf)
}

func TestWriteOutOfBounds(t *testing.T) {
	l := posColorLayout(t)
	buf := make([]byte, l.BufferSize(2))
	before := bytes.Clone(buf)

	err := l.MustAttribute("pos").Write(buf, 2, 1, 1)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	err = l.MustAttribute("pos").Write(buf, -1, 1, 1)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	// the last attribute of the last item must fit exactly
	short := make([]byte, l.BufferSize(2)-1)
	err = l.MustAttribute("color").Write(short, 1, 1, 2, 3, 4)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	assert.Equal(t, before, buf)

	_, err = l.MustAttribute("pos").Read(buf, 5)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	// stride*itemIndex would wrap negative
	huge := math.MaxInt/l.Stride() + 1
	assert.ErrorIs(t, l.MustAttribute("pos").Write(buf, huge, 1, 2), ErrOutOfBounds)
	assert.ErrorIs(t, l.MustAttribute("color").Write(buf, math.MaxInt, 1, 2, 3, 4), ErrOutOfBounds)
	_, err = l.MustAttribute("pos").Read(buf, huge)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Equal(t, before, buf)

	_, err = l.MustAttribute("color").Read(nil, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestCheckItemCount(t *testing.T) {
	l := posColorLayout(t)
	require.Equal(t, 12, l.Stride())

	assert.Equal(t, math.MaxInt/12, l.MaxItems())
	assert.NoError(t, l.CheckItemCount(0))
	assert.NoError(t, l.CheckItemCount(l.MaxItems()))
	assert.ErrorIs(t, l.CheckItemCount(l.MaxItems()+1), ErrOutOfBounds)
	assert.ErrorIs(t, l.CheckItemCount(-1), ErrOutOfBounds)
}

func TestWriteReadRoundTrip(t *testing.T) {
	l, err := NewBufferLayout([]AttributeSpec{
		{Name: "pos", ShaderLocation: 0, Format: VertexFormatFloat32x3},
		{Name: "color", ShaderLocation: 1, Format: VertexFormatUnorm8x4},
		{Name: "delta", ShaderLocation: 2, Format: VertexFormatSint16x2},
		{Name: "id", ShaderLocation: 3, Format: VertexFormatUint32},
		{Name: "dir", ShaderLocation: 4, Format: VertexFormatSnorm8x2},
		{Name: "half", ShaderLocation: 5, Format: VertexFormatFloat16x2},
		{Name: "cell", ShaderLocation: 6, Format: VertexFormatSint32x2},
	}, WithStepMode(StepModeInstance))
	require.NoError(t, err)

	values := map[string][]float64{
		"pos":   {1.25, -3.5, 1024},
		"color": {255, 0, 128, 7},
		"delta": {-32768, 32767},
		"id":    {4294967295},
		"dir":   {-128, 127},
		"half":  {0x3C00, 0xC000},
		"cell":  {-2147483648, 2147483647},
	}

	buf := make([]byte, l.BufferSize(4))
	for item := 0; item < 4; item++ {
		for name, v := range values {
			require.NoError(t, l.MustAttribute(name).Write(buf, item, v...))
		}
	}
	for item := 0; item < 4; item++ {
		for name, v := range values {
			got, err := l.MustAttribute(name).Read(buf, item)
			require.NoError(t, err)
			assert.Equal(t, v, got, "%s item %d", name, item)
		}
	}
}

func TestWriteIsIdempotent(t *testing.T) {
	l := posColorLayout(t)
	once := make([]byte, l.BufferSize(2))
	twice := make([]byte, l.BufferSize(2))

	require.NoError(t, l.MustAttribute("color").Write(once, 1, 10, 20, 30, 40))
	require.NoError(t, l.MustAttribute("color").Write(twice, 1, 10, 20, 30, 40))
	require.NoError(t, l.MustAttribute("color").Write(twice, 1, 10, 20, 30, 40))
	assert.Equal(t, once, twice)
}

func TestWriteDoesNotTouchNeighbours(t *testing.T) {
	l := posColorLayout(t)
	buf := make([]byte, l.BufferSize(3))
	require.NoError(t, l.MustAttribute("color").Write(buf, 1, 1, 2, 3, 4))

	for i, b := range buf {
		if i >= 20 && i < 24 {
			continue
		}
		assert.Zero(t, b, "byte %d", i)
	}
	assert.Equal(t, []byte{1, 2, 3, 4}, buf[20:24])
}

func TestIntegerViewsWrapAndTruncate(t *testing.T) {
	l, err := NewBufferLayout([]AttributeSpec{
		{Name: "u8", ShaderLocation: 0, Format: VertexFormatUint8x2},
		{Name: "i8", ShaderLocation: 1, Format: VertexFormatSint8x2},
	})
	require.NoError(t, err)
	buf := make([]byte, l.Stride())

	require.NoError(t, l.MustAttribute("u8").Write(buf, 0, 256+3, -1))
	require.NoError(t, l.MustAttribute("i8").Write(buf, 0, 1.9, math.NaN()))

	got, err := l.MustAttribute("u8").Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 255}, got)

	got, err = l.MustAttribute("i8").Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, got)
}

func TestWireDescriptorReproducesOffsets(t *testing.T) {
	l, err := NewBufferLayout([]AttributeSpec{
		{Name: "offset", ShaderLocation: 1, Format: VertexFormatFloat32x2},
		{Name: "scale", ShaderLocation: 2, Format: VertexFormatFloat32},
		{Name: "color", ShaderLocation: 3, Format: VertexFormatUnorm8x4},
	}, WithStepMode(StepModeInstance))
	require.NoError(t, err)

	wd := l.WireDescriptor()
	assert.Equal(t, WireDescriptor{
		Stride:   16,
		StepMode: StepModeInstance,
		Attributes: []WireAttribute{
			{ShaderLocation: 1, Format: VertexFormatFloat32x2, ByteOffset: 0},
			{ShaderLocation: 2, Format: VertexFormatFloat32, ByteOffset: 8},
			{ShaderLocation: 3, Format: VertexFormatUnorm8x4, ByteOffset: 12},
		},
	}, wd)

	w := l.WGPU()
	assert.Equal(t, uint64(16), w.ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeInstance, w.StepMode)
	require.Len(t, w.Attributes, 3)
	assert.Equal(t, wgpu.VertexAttribute{Format: wgpu.VertexFormatUnorm8x4, Offset: 12, ShaderLocation: 3}, w.Attributes[2])

	g := l.GPUTypes()
	assert.Equal(t, uint64(16), g.ArrayStride)
	assert.Equal(t, gputypes.VertexStepModeInstance, g.StepMode)
	require.Len(t, g.Attributes, 3)
	assert.Equal(t, uint64(8), g.Attributes[1].Offset)
	assert.Equal(t, gputypes.VertexFormatFloat32, g.Attributes[1].Format)
}

func TestAligned(t *testing.T) {
	assert.NoError(t, posColorLayout(t).Aligned())

	l, err := NewBufferLayout([]AttributeSpec{
		{Name: "uv", ShaderLocation: 0, Format: VertexFormatUnorm8x2},
		{Name: "pos", ShaderLocation: 1, Format: VertexFormatFloat32x2},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, l.MustAttribute("pos").ByteOffset())
	assert.ErrorIs(t, l.Aligned(), ErrMisaligned)
}
