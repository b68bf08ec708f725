package triangles

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/Carmen-Shannon/oxy-triangles/common"
	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-triangles/engine/renderer/staging"
	"github.com/chewxy/math32"
)

const (
	// VertexLabel labels the per-vertex buffer and its layout.
	VertexLabel = "triangle vertices"

	// InstanceLabel labels the per-instance buffer and its layout.
	InstanceLabel = "triangle instances"
)

// Vertex is a 2D clip-space position.
type Vertex [2]float32

// BaseTriangle returns the three corners of the demo triangle, wound clockwise.
//
// Returns:
//   - []Vertex: the corners
func BaseTriangle() []Vertex {
	return []Vertex{
		{0.5, -0.5},
		{-0.5, -0.5},
		{0, 0.5},
	}
}

// VertexLayout returns the per-vertex layout: pos float32x2 at location 0.
//
// Returns:
//   - layout.BufferLayout: the layout, stride 8
func VertexLayout() layout.BufferLayout {
	return layout.MustBufferLayout([]layout.AttributeSpec{
		{Name: "pos", ShaderLocation: 0, Format: layout.VertexFormatFloat32x2},
	}, layout.WithLabel(VertexLabel))
}

// InstanceLayout returns the per-instance layout: offset float32x2 at location 1, scale float32 at location 2
// and color unorm8x4 at location 3.
//
// Returns:
//   - layout.BufferLayout: the layout, stride 16, stepped per instance
func InstanceLayout() layout.BufferLayout {
	return layout.MustBufferLayout([]layout.AttributeSpec{
		{Name: "offset", ShaderLocation: 1, Format: layout.VertexFormatFloat32x2},
		{Name: "scale", ShaderLocation: 2, Format: layout.VertexFormatFloat32},
		{Name: "color", ShaderLocation: 3, Format: layout.VertexFormatUnorm8x4},
	}, layout.WithLabel(InstanceLabel), layout.WithStepMode(layout.StepModeInstance))
}

// littleEndian reports whether the host stores floats in vertex buffer byte order.
var littleEndian = common.SliceToBytes([]uint16{1})[0] == 1

// WriteVertices writes vertices into the "pos" attribute of buf, one vertex per item. When the layout holds
// nothing but float32x2 positions, the vertex bytes are copied in one go.
//
// Parameters:
//   - buf: a staging buffer over a layout with a "pos" attribute and len(vertices) items
//   - vertices: the positions to write
//
// Returns:
//   - error: a size mismatch, a missing "pos" attribute or the attribute write error
func WriteVertices(buf staging.Buffer, vertices []Vertex) error {
	if buf.Len() != len(vertices) {
		return fmt.Errorf("staging buffer holds %d items, got %d vertices", buf.Len(), len(vertices))
	}
	l := buf.Layout()
	pos, err := l.Attribute("pos")
	if err != nil {
		return err
	}

	if littleEndian && l.Stride() == 8 && pos.ByteOffset() == 0 && pos.Format() == layout.VertexFormatFloat32x2 {
		copy(buf.Bytes(), common.SliceToBytes(vertices))
		return nil
	}
	for i, v := range vertices {
		if err := pos.Write(buf.Bytes(), i, float64(v[0]), float64(v[1])); err != nil {
			return err
		}
	}
	return nil
}

// RegularPolygon returns a triangle list fanning out from the origin: n triangles, 3n vertices, with the
// first corner on the positive x axis.
//
// Parameters:
//   - n: the number of sides, at least 3
//   - radius: the distance from the origin to each corner
//
// Returns:
//   - []Vertex: the triangle list
//   - error: an error if n < 3 or radius is not positive
func RegularPolygon(n int, radius float32) ([]Vertex, error) {
	if n < 3 {
		return nil, fmt.Errorf("a polygon needs at least 3 sides, got %d", n)
	}
	if !(radius > 0) {
		return nil, errors.New("polygon radius must be positive")
	}

	corner := func(i int) Vertex {
		angle := 2 * math32.Pi * float32(i%n) / float32(n)
		return Vertex{radius * math32.Cos(angle), radius * math32.Sin(angle)}
	}
	out := make([]Vertex, 0, 3*n)
	for i := 0; i < n; i++ {
		out = append(out, Vertex{0, 0}, corner(i), corner(i+1))
	}
	return out, nil
}

// InstanceRanges bounds the random per-instance values.
type InstanceRanges struct {
	// Offset bounds both offset components.
	Offset [2]float64

	// Scale bounds the uniform scale.
	Scale [2]float64

	// Alpha is the color alpha, 0 to 255.
	Alpha uint8
}

// DefaultInstanceRanges keeps instances inside clip space at a readable size.
var DefaultInstanceRanges = InstanceRanges{
	Offset: [2]float64{-0.9, 0.9},
	Scale:  [2]float64{0.2, 0.5},
	Alpha:  255,
}

// RandomInstances fills every item of buf with a random offset, scale and opaque color, using
// DefaultInstanceRanges.
//
// Parameters:
//   - buf: a staging buffer over InstanceLayout
//   - rng: the seed source, nil for the global source
//
// Returns:
//   - error: the joined attribute write errors
func RandomInstances(buf staging.Buffer, rng *rand.Rand) error {
	return RandomInstancesIn(buf, rng, DefaultInstanceRanges)
}

// RandomInstancesIn is RandomInstances with explicit ranges. Items are filled in parallel through the
// staging buffer's worker pool. Each item draws from its own generator seeded from rng and the item index,
// so a seeded rng gives the same bytes whatever the chunking.
//
// Parameters:
//   - buf: a staging buffer over a layout with offset, scale and color attributes
//   - rng: the seed source, nil for the global source
//   - ranges: the value bounds
//
// Returns:
//   - error: the joined attribute write errors
func RandomInstancesIn(buf staging.Buffer, rng *rand.Rand, ranges InstanceRanges) error {
	l := buf.Layout()
	offset, err := l.Attribute("offset")
	if err != nil {
		return err
	}
	scale, err := l.Attribute("scale")
	if err != nil {
		return err
	}
	color, err := l.Attribute("color")
	if err != nil {
		return err
	}

	var seed uint64
	if rng != nil {
		seed = rng.Uint64()
	} else {
		seed = rand.Uint64()
	}

	return buf.Fill(func(data []byte, i int) error {
		r := rand.New(rand.NewPCG(seed, uint64(i)))
		if err := offset.Write(data, i,
			common.RandWith(r, ranges.Offset[0], ranges.Offset[1]),
			common.RandWith(r, ranges.Offset[0], ranges.Offset[1]),
		); err != nil {
			return err
		}
		if err := scale.Write(data, i, common.RandWith(r, ranges.Scale[0], ranges.Scale[1])); err != nil {
			return err
		}
		return color.Write(data, i,
			float64(common.RandIntWith(r, 0, 256)),
			float64(common.RandIntWith(r, 0, 256)),
			float64(common.RandIntWith(r, 0, 256)),
			float64(ranges.Alpha),
		)
	})
}
