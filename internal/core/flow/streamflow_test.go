package flow

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/noodles/internal/core/protocol"
)

type packer struct {
	buf []byte
}

func (p *packer) u32(vals ...uint32) {
	for _, v := range vals {
		p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
	}
}

func (p *packer) f32(vals ...float32) {
	for _, v := range vals {
		p.buf = binary.LittleEndian.AppendUint32(p.buf, math.Float32bits(v))
	}
}

func sampleFlow() ([]byte, protocol.StreamFlow) {
	p := &packer{}
	p.u32(8)             // two tetrahedra worth of indices
	p.u32(0, 1, 2, 3)    // tetra 0
	p.u32(1, 2, 3, 4)    // tetra 1
	p.u32(3)             // line 0: three samples
	p.f32(0, 0, 0, 1, 0, 0, 3, 0, 0)
	p.f32(0.5, 1.5, 2.5) // speed
	p.u32(2)             // line 1: two samples
	p.f32(0, -2, 0, 0, 2, 5)
	p.f32(9, -1) // speed

	header := protocol.StreamFlow{
		LineCount:  2,
		Attributes: []protocol.StreamFlowAttribute{{Name: "speed", DataType: "F32"}},
	}
	return p.buf, header
}

func TestParseStreamFlow(t *testing.T) {
	data, header := sampleFlow()

	field, err := Parse(data, header)

	require.NoError(t, err)
	assert.Equal(t, []Tetrahedron{{0, 1, 2, 3}, {1, 2, 3, 4}}, field.Tetrahedra)
	require.Len(t, field.Lines, 2)
	assert.Len(t, field.Positions, 5)
	assert.Equal(t, []float32{9, -1}, field.Lines[1].Attributes[0])
	assert.Equal(t, mgl32.Vec3{0, -2, 0}, field.Bounds.Min)
	assert.Equal(t, mgl32.Vec3{3, 2, 5}, field.Bounds.Max)
	assert.Equal(t, []Range{{Min: -1, Max: 9}}, field.AttributeRanges)
}

func TestVelocitiesRepeatLastStep(t *testing.T) {
	data, header := sampleFlow()

	field, err := Parse(data, header)

	require.NoError(t, err)
	require.Len(t, field.Velocities, len(field.Positions))
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, field.Velocities[0])
	assert.Equal(t, mgl32.Vec3{2, 0, 0}, field.Velocities[1])
	assert.Equal(t, mgl32.Vec3{2, 0, 0}, field.Velocities[2])
	assert.Equal(t, mgl32.Vec3{0, 4, 5}, field.Velocities[4])
}

func TestDeclaredAttributeBoundsWin(t *testing.T) {
	data, header := sampleFlow()
	header.Attributes[0].Bounds = []float32{0, 100}

	field, err := Parse(data, header)

	require.NoError(t, err)
	assert.Equal(t, []Range{{Min: 0, Max: 100}}, field.AttributeRanges)
}

func TestParseTruncated(t *testing.T) {
	data, header := sampleFlow()

	for _, n := range []int{0, 3, 10, 40, len(data) - 1} {
		_, err := Parse(data[:n], header)
		assert.ErrorIs(t, err, ErrTruncated, "prefix of %d bytes", n)
	}
}

func TestParseRejectsHugeCounts(t *testing.T) {
	p := &packer{}
	p.u32(math.MaxUint32)

	_, err := Parse(p.buf, protocol.StreamFlow{})

	assert.ErrorIs(t, err, ErrTruncated)
}

func TestParseBoundsAttributeCount(t *testing.T) {
	p := &packer{}
	p.u32(0)
	for range 64 {
		p.u32(0) // empty line
	}
	header := protocol.StreamFlow{
		LineCount:  64,
		Attributes: make([]protocol.StreamFlowAttribute, 1<<20),
	}

	_, err := Parse(p.buf, header)
	assert.ErrorIs(t, err, ErrTooManyAttributes)

	header.Attributes = header.Attributes[:MaxAttributes]
	field, err := Parse(p.buf, header)
	require.NoError(t, err)
	require.Len(t, field.Lines, 64)
	assert.Nil(t, field.Lines[0].Attributes)
	assert.Len(t, field.AttributeRanges, MaxAttributes)
}

func TestParseRejectsLineCountBeyondData(t *testing.T) {
	p := &packer{}
	p.u32(0, 0)

	_, err := Parse(p.buf, protocol.StreamFlow{LineCount: 1 << 30})

	assert.ErrorIs(t, err, ErrTruncated)
}
