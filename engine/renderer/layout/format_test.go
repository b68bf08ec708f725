package layout

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeOfIsPositiveAndStable(t *testing.T) {
	for f := range formatTable {
		first, err := SizeOf(f)
		require.NoError(t, err, f.String())
		assert.Positive(t, first, f.String())

		second, err := SizeOf(f)
		require.NoError(t, err)
		assert.Equal(t, first, second, f.String())
		assert.Equal(t, first, f.Size(), f.String())
	}
}

func TestFormatTableSizes(t *testing.T) {
	cases := map[VertexFormat]int{
		VertexFormatUint8x2:   2,
		VertexFormatUnorm8x4:  4,
		VertexFormatSint16x4:  8,
		VertexFormatFloat16x2: 4,
		VertexFormatFloat32:   4,
		VertexFormatFloat32x2: 8,
		VertexFormatFloat32x3: 12,
		VertexFormatFloat32x4: 16,
		VertexFormatUint32x3:  12,
		VertexFormatSint32x4:  16,
	}
	for f, want := range cases {
		got, err := SizeOf(f)
		require.NoError(t, err)
		assert.Equal(t, want, got, f.String())
	}
}

func TestViewTypeOf(t *testing.T) {
	cases := map[VertexFormat]ViewType{
		VertexFormatUnorm8x4:  ViewTypeUint8,
		VertexFormatSnorm8x2:  ViewTypeInt8,
		VertexFormatFloat16x4: ViewTypeUint16,
		VertexFormatSint16x2:  ViewTypeInt16,
		VertexFormatUint32:    ViewTypeUint32,
		VertexFormatSint32x3:  ViewTypeInt32,
		VertexFormatFloat32x2: ViewTypeFloat32,
	}
	for f, want := range cases {
		got, err := ViewTypeOf(f)
		require.NoError(t, err)
		assert.Equal(t, want, got, f.String())
	}
}

func TestUnknownFormat(t *testing.T) {
	_, err := SizeOf(VertexFormatUndefined)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = ViewTypeOf(VertexFormat(999))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = ComponentsOf(VertexFormat(-1))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	assert.False(t, VertexFormat(999).Valid())
	assert.Equal(t, 0, VertexFormat(999).Size())
	assert.Equal(t, wgpu.VertexFormatUndefined, VertexFormat(999).WGPU())
	assert.Equal(t, gputypes.VertexFormatUndefined, VertexFormat(999).GPUTypes())
}

func TestParseVertexFormat(t *testing.T) {
	for f, info := range formatTable {
		parsed, err := ParseVertexFormat(info.name)
		require.NoError(t, err)
		assert.Equal(t, f, parsed)
		assert.Equal(t, info.name, f.String())
	}

	_, err := ParseVertexFormat("float64x2")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFormatBackendMapping(t *testing.T) {
	assert.Equal(t, wgpu.VertexFormatFloat32x2, VertexFormatFloat32x2.WGPU())
	assert.Equal(t, wgpu.VertexFormatUnorm8x4, VertexFormatUnorm8x4.WGPU())
	assert.Equal(t, gputypes.VertexFormatFloat32x4, VertexFormatFloat32x4.GPUTypes())
}

func TestFormatScalar(t *testing.T) {
	assert.Equal(t, ScalarFloat, VertexFormatUnorm8x4.Scalar())
	assert.Equal(t, ScalarFloat, VertexFormatFloat16x2.Scalar())
	assert.Equal(t, ScalarUint, VertexFormatUint16x2.Scalar())
	assert.Equal(t, ScalarSint, VertexFormatSint32.Scalar())
	assert.Equal(t, ScalarSint, VertexFormatSint8x2.Scalar())
	assert.Equal(t, ScalarFloat, VertexFormatSnorm16x4.Scalar())

	assert.Equal(t, ScalarUnknown, VertexFormat(9999).Scalar())
	assert.Equal(t, "ScalarKind(3)", ScalarUnknown.String())

	for f, info := range formatTable {
		assert.NotEqual(t, ScalarUnknown, info.scalar, info.name)
		assert.Equal(t, info.scalar, f.Scalar(), info.name)
	}
}
