package geometry

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/noodles/internal/core/protocol"
)

// DeclaredBounds uses server-provided min/max metadata when both carry at least
// three components.
func DeclaredBounds(lo, hi []float32) (protocol.BoundingBox, bool) {
	if len(lo) < 3 || len(hi) < 3 {
		return protocol.BoundingBox{}, false
	}
	return protocol.BoundingBox{
		Min: mgl32.Vec3{lo[0], lo[1], lo[2]},
		Max: mgl32.Vec3{hi[0], hi[1], hi[2]},
	}, true
}

// ComputeBounds scans every point once. It reports false for an empty input.
func ComputeBounds(points []mgl32.Vec3) (protocol.BoundingBox, bool) {
	if len(points) == 0 {
		return protocol.BoundingBox{}, false
	}
	box := protocol.BoundingBox{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		box = Extend(box, p)
	}
	return box, true
}

// Extend grows box to contain p.
func Extend(box protocol.BoundingBox, p mgl32.Vec3) protocol.BoundingBox {
	for k := 0; k < 3; k++ {
		if p[k] < box.Min[k] {
			box.Min[k] = p[k]
		}
		if p[k] > box.Max[k] {
			box.Max[k] = p[k]
		}
	}
	return box
}

// Union returns the smallest box containing a and b.
func Union(a, b protocol.BoundingBox) protocol.BoundingBox {
	return Extend(Extend(a, b.Min), b.Max)
}
