// Package flow parses packed stream-flow physics data: tetrahedral topology
// followed by sampled polylines with per-sample scalar attributes.
package flow

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/noodles/internal/core/geometry"
	"github.com/zeusync/noodles/internal/core/protocol"
)

var (
	ErrTruncated         = errors.New("stream flow data truncated")
	ErrTooManyAttributes = errors.New("stream flow declares too many attributes")
)

// MaxAttributes bounds the per-sample attributes a header may declare.
const MaxAttributes = 256

// Tetrahedron holds four position indices into Field.Positions.
type Tetrahedron [4]uint32

type Line struct {
	Positions []mgl32.Vec3
	// Attributes[k] has one sample per position for header attribute k.
	Attributes [][]float32
}

type Range struct {
	Min float32
	Max float32
}

type Field struct {
	Tetrahedra []Tetrahedron
	Lines      []Line
	// Positions concatenates every line's samples.
	Positions []mgl32.Vec3
	// Velocities is aligned with Positions: the step to the next sample, with the
	// last sample of a line repeating its predecessor's step.
	Velocities []mgl32.Vec3
	Bounds     protocol.BoundingBox
	// AttributeRanges come from the header when declared, otherwise from the data.
	AttributeRanges []Range
}

type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) u32() (uint32, error) {
	if len(c.data)-c.pos < 4 {
		return 0, fmt.Errorf("%w at byte %d", ErrTruncated, c.pos)
	}
	v := binary.LittleEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) f32() (float32, error) {
	v, err := c.u32()
	return math.Float32frombits(v), err
}

// need fails early for counts that cannot fit, so a hostile count never
// drives a huge allocation.
func (c *cursor) need(count uint32, size int) error {
	if uint64(count)*uint64(size) > uint64(len(c.data)-c.pos) {
		return fmt.Errorf("%w: %d elements of %d bytes at byte %d", ErrTruncated, count, size, c.pos)
	}
	return nil
}

// Parse decodes data according to header.
func Parse(data []byte, header protocol.StreamFlow) (*Field, error) {
	c := &cursor{data: data}

	indexCount, err := c.u32()
	if err != nil {
		return nil, err
	}
	tetraCount := indexCount / 4
	if err := c.need(tetraCount, 16); err != nil {
		return nil, err
	}

	field := &Field{Tetrahedra: make([]Tetrahedron, tetraCount)}
	for i := range field.Tetrahedra {
		for k := 0; k < 4; k++ {
			field.Tetrahedra[i][k], _ = c.u32()
		}
	}

	attrCount := len(header.Attributes)
	if attrCount > MaxAttributes {
		return nil, fmt.Errorf("%w: %d", ErrTooManyAttributes, attrCount)
	}
	if header.LineCount > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d lines", ErrTruncated, header.LineCount)
	}
	// every line carries at least its sample count
	if err := c.need(uint32(header.LineCount), 4); err != nil {
		return nil, err
	}
	field.Lines = make([]Line, 0, header.LineCount)
	for l := uint64(0); l < header.LineCount; l++ {
		line, err := parseLine(c, attrCount)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", l, err)
		}
		field.Lines = append(field.Lines, line)
		field.Positions = append(field.Positions, line.Positions...)
		field.Velocities = append(field.Velocities, velocities(line.Positions)...)
	}

	if box, ok := geometry.ComputeBounds(field.Positions); ok {
		field.Bounds = box
	}
	field.AttributeRanges = attributeRanges(header.Attributes, field.Lines)
	return field, nil
}

func parseLine(c *cursor, attrCount int) (Line, error) {
	samples, err := c.u32()
	if err != nil {
		return Line{}, err
	}
	if err := c.need(samples, 12+4*attrCount); err != nil {
		return Line{}, err
	}

	line := Line{Positions: make([]mgl32.Vec3, samples)}
	if samples == 0 {
		return line, nil
	}
	line.Attributes = make([][]float32, attrCount)
	for i := range line.Positions {
		for k := 0; k < 3; k++ {
			line.Positions[i][k], _ = c.f32()
		}
	}
	for a := range line.Attributes {
		values := make([]float32, samples)
		for i := range values {
			values[i], _ = c.f32()
		}
		line.Attributes[a] = values
	}
	return line, nil
}

func velocities(points []mgl32.Vec3) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(points))
	for i := 0; i+1 < len(points); i++ {
		out[i] = points[i+1].Sub(points[i])
	}
	if n := len(points); n > 1 {
		out[n-1] = out[n-2]
	}
	return out
}

func attributeRanges(attrs []protocol.StreamFlowAttribute, lines []Line) []Range {
	ranges := make([]Range, len(attrs))
	for a, attr := range attrs {
		if len(attr.Bounds) >= 2 {
			ranges[a] = Range{Min: attr.Bounds[0], Max: attr.Bounds[1]}
			continue
		}
		first := true
		for _, line := range lines {
			if a >= len(line.Attributes) {
				continue
			}
			for _, v := range line.Attributes[a] {
				if first {
					ranges[a] = Range{Min: v, Max: v}
					first = false
					continue
				}
				ranges[a].Min = min(ranges[a].Min, v)
				ranges[a].Max = max(ranges[a].Max, v)
			}
		}
	}
	return ranges
}
