package geometry

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
)

// ViewSource hands out the full byte range of a buffer view.
type ViewSource interface {
	ViewBytes(id protocol.ID) ([]byte, error)
}

// Mesh is one decoded patch, ready for a renderer to upload.
type Mesh struct {
	VertexCount int
	Positions   []mgl32.Vec3
	Normals     []mgl32.Vec3
	Tangents    []mgl32.Vec3
	TexCoords   []mgl32.Vec2
	Colors      []mgl32.Vec4
	Indices     []uint32
	Topology    protocol.PrimitiveType
	Material    protocol.ID
	Bounds      protocol.BoundingBox
	// Attributes keeps the wire layout for renderers that upload raw views.
	Attributes []protocol.GeometryAttribute
}

// DecodePatch decodes every attribute it understands. Unsupported attributes
// are skipped and logged; a patch without positions is an error.
func DecodePatch(src ViewSource, patch protocol.GeometryPatch, logger log.Log) (*Mesh, error) {
	if !patch.Type.Known() {
		return nil, fmt.Errorf("%w: primitive type %q", ErrUnsupportedFormat, patch.Type)
	}
	mesh := &Mesh{
		Topology:   patch.Type,
		Material:   patch.Material,
		Attributes: patch.Attributes,
	}

	var position *protocol.GeometryAttribute
	for i := range patch.Attributes {
		attr := patch.Attributes[i]
		if err := decodeAttribute(src, mesh, attr, int(min(patch.VertexCount, math.MaxInt32))); err != nil {
			logger.Warn("attribute skipped",
				log.String("semantic", string(attr.Semantic)),
				log.String("format", string(attr.Format)),
				log.Stringer("view", attr.View),
				log.Error(err))
			continue
		}
		if attr.Semantic == protocol.SemanticPosition && position == nil {
			position = &patch.Attributes[i]
		}
	}
	if position == nil {
		return nil, ErrNoPositions
	}
	mesh.VertexCount = len(mesh.Positions)

	if box, ok := DeclaredBounds(position.Min, position.Max); ok {
		mesh.Bounds = box
	} else if box, ok := ComputeBounds(mesh.Positions); ok {
		mesh.Bounds = box
	}

	if patch.Indices != nil {
		data, err := src.ViewBytes(patch.Indices.View)
		if err != nil {
			return nil, fmt.Errorf("index view %s: %w", patch.Indices.View, err)
		}
		mesh.Indices, err = DecodeIndices(data, *patch.Indices)
		if err != nil {
			return nil, err
		}
	}
	return mesh, nil
}

func decodeAttribute(src ViewSource, mesh *Mesh, attr protocol.GeometryAttribute, count int) error {
	data, err := src.ViewBytes(attr.View)
	if err != nil {
		return err
	}
	if !attr.Format.Known() {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, attr.Format)
	}
	layout := NewLayout(attr.Offset, attr.Stride, count, attr.Format)
	if count == 0 {
		layout.Count = layout.FitCount(data)
	}

	switch attr.Semantic {
	case protocol.SemanticPosition:
		if mesh.Positions != nil {
			return fmt.Errorf("duplicate position attribute")
		}
		mesh.Positions, err = ReadVec3(data, layout)
	case protocol.SemanticNormal:
		mesh.Normals, err = ReadVec3(data, layout)
	case protocol.SemanticTangent:
		mesh.Tangents, err = readDirection(data, layout)
	case protocol.SemanticTexture:
		if attr.Channel != 0 {
			return fmt.Errorf("texture channel %d is not decoded", attr.Channel)
		}
		mesh.TexCoords, err = readTexture(data, layout)
	case protocol.SemanticColor:
		mesh.Colors, err = readColor(data, layout)
	default:
		return fmt.Errorf("%w: semantic %q", ErrUnsupportedFormat, attr.Semantic)
	}
	return err
}

func readDirection(data []byte, l Layout) ([]mgl32.Vec3, error) {
	if l.Format != protocol.FormatVec4 {
		return ReadVec3(data, l)
	}
	v4, err := ReadVec4(data, l)
	if err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec3, len(v4))
	for i, v := range v4 {
		out[i] = v.Vec3()
	}
	return out, nil
}

func readTexture(data []byte, l Layout) ([]mgl32.Vec2, error) {
	if l.Format != protocol.FormatU16Vec2 {
		return ReadTexCoords(data, l)
	}
	raw, err := ReadTexCoordsU16(data, l)
	if err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec2, len(raw))
	for i, uv := range raw {
		out[i] = mgl32.Vec2{float32(uv[0]) / math.MaxUint16, float32(uv[1]) / math.MaxUint16}
	}
	return out, nil
}

func readColor(data []byte, l Layout) ([]mgl32.Vec4, error) {
	switch l.Format {
	case protocol.FormatVec4:
		return ReadVec4(data, l)
	case protocol.FormatVec3:
		v3, err := ReadVec3(data, l)
		if err != nil {
			return nil, err
		}
		out := make([]mgl32.Vec4, len(v3))
		for i, v := range v3 {
			out[i] = v.Vec4(1)
		}
		return out, nil
	case protocol.FormatU8Vec4:
		raw, err := ReadU8Vec4(data, l)
		if err != nil {
			return nil, err
		}
		out := make([]mgl32.Vec4, len(raw))
		for i, c := range raw {
			out[i] = mgl32.Vec4{
				float32(c[0]) / 255, float32(c[1]) / 255, float32(c[2]) / 255, float32(c[3]) / 255,
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: color format %q", ErrUnsupportedFormat, l.Format)
	}
}
