package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instanceLayout(t *testing.T) BufferLayout {
	t.Helper()
	l, err := NewBufferLayout([]AttributeSpec{
		{Name: "offset", ShaderLocation: 1, Format: VertexFormatFloat32x2},
		{Name: "scale", ShaderLocation: 2, Format: VertexFormatFloat32},
		{Name: "color", ShaderLocation: 3, Format: VertexFormatUnorm8x4},
	}, WithLabel("instances"), WithStepMode(StepModeInstance))
	require.NoError(t, err)
	return l
}

func vertexLayout(t *testing.T) BufferLayout {
	t.Helper()
	l, err := NewBufferLayout([]AttributeSpec{
		{Name: "pos", ShaderLocation: 0, Format: VertexFormatFloat32x2},
	}, WithLabel("vertices"))
	require.NoError(t, err)
	return l
}

func TestRegistrySlots(t *testing.T) {
	r, err := NewRegistry(vertexLayout(t), instanceLayout(t))
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())

	slot, err := r.Slot("instances")
	require.NoError(t, err)
	assert.Equal(t, 1, slot)

	_, err = r.Slot("colors")
	assert.ErrorIs(t, err, ErrUnknownLayout)

	wgpuLayouts := r.WGPU()
	require.Len(t, wgpuLayouts, 2)
	assert.Equal(t, uint64(8), wgpuLayouts[0].ArrayStride)
	assert.Equal(t, uint64(16), wgpuLayouts[1].ArrayStride)

	gpuLayouts := r.GPUTypes()
	require.Len(t, gpuLayouts, 2)
	assert.Equal(t, uint64(12), gpuLayouts[1].Attributes[2].Offset)

	wire := r.WireDescriptors()
	require.Len(t, wire, 2)
	assert.Equal(t, StepModeInstance, wire[1].StepMode)
}

func TestRegistryDuplicateShaderLocation(t *testing.T) {
	other, err := NewBufferLayout([]AttributeSpec{
		{Name: "tint", ShaderLocation: 2, Format: VertexFormatFloat32x4},
	})
	require.NoError(t, err)

	_, err = NewRegistry(instanceLayout(t), other)
	assert.ErrorIs(t, err, ErrDuplicateShaderLocation)
}

func TestRegistryNilLayout(t *testing.T) {
	_, err := NewRegistry(vertexLayout(t), nil)
	assert.ErrorIs(t, err, ErrInvalidAttribute)
}

func TestRegistryLayoutsIsCopy(t *testing.T) {
	r, err := NewRegistry(vertexLayout(t))
	require.NoError(t, err)

	ls := r.Layouts()
	ls[0] = nil
	assert.NotNil(t, r.Layouts()[0])
}

func TestRegistryValidate(t *testing.T) {
	r, err := NewRegistry(vertexLayout(t), instanceLayout(t))
	require.NoError(t, err)

	inputs := map[uint32]ShaderInput{
		0: {Scalar: ScalarFloat, Components: 2},
		1: {Scalar: ScalarFloat, Components: 2},
		2: {Scalar: ScalarFloat, Components: 1},
		3: {Scalar: ScalarFloat, Components: 4},
	}
	assert.NoError(t, r.Validate(inputs))

	// unread attributes are fine
	assert.NoError(t, r.Validate(map[uint32]ShaderInput{0: {Scalar: ScalarFloat, Components: 2}}))

	inputs[5] = ShaderInput{Scalar: ScalarFloat, Components: 4}
	assert.ErrorIs(t, r.Validate(inputs), ErrMissingShaderInput)

	err = r.Validate(map[uint32]ShaderInput{3: {Scalar: ScalarUint, Components: 4}})
	assert.ErrorIs(t, err, ErrFormatMismatch)
}

func TestShaderInputString(t *testing.T) {
	assert.Equal(t, "f32", ShaderInput{Scalar: ScalarFloat, Components: 1}.String())
	assert.Equal(t, "vec4<u32>", ShaderInput{Scalar: ScalarUint, Components: 4}.String())
}
