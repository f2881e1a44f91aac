package geometry

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/noodles/internal/core/protocol"
)

// DecodeIndices reads count contiguous indices and widens them to uint32. A
// stride other than zero or the natural element size is rejected.
func DecodeIndices(data []byte, desc protocol.GeometryIndex) ([]uint32, error) {
	switch desc.Format {
	case protocol.FormatU8, protocol.FormatU16, protocol.FormatU32:
	default:
		return nil, fmt.Errorf("%w: index format %q", ErrUnsupportedFormat, desc.Format)
	}
	if desc.Stride != 0 && desc.Stride != uint64(desc.Format.Size()) {
		return nil, fmt.Errorf("%w: stride %d", ErrStridedIndices, desc.Stride)
	}
	if desc.Count > math.MaxInt32 {
		return nil, ErrOutOfRange
	}
	return ReadScalars(data, NewLayout(desc.Offset, 0, int(desc.Count), desc.Format))
}

// DecodeInstances reads one 4x4 matrix per instance. A zero stride packs them
// at 64 bytes each and the count is inferred from the slice length.
func DecodeInstances(data []byte, stride uint64) ([]mgl32.Mat4, error) {
	layout := NewLayout(0, stride, 0, protocol.FormatMat4)
	layout.Count = layout.FitCount(data)
	return ReadMat4(data, layout)
}

// InstanceBounds covers the position column (column 0, xyz) of every instance.
func InstanceBounds(instances []mgl32.Mat4) (protocol.BoundingBox, bool) {
	points := make([]mgl32.Vec3, len(instances))
	for i, m := range instances {
		points[i] = m.Col(0).Vec3()
	}
	return ComputeBounds(points)
}
