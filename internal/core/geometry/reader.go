// Package geometry interprets raw buffer bytes as typed vertex, index and
// instance streams. All multi-byte values are little-endian.
package geometry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/noodles/internal/core/protocol"
)

var (
	ErrOutOfRange        = errors.New("element read out of range")
	ErrUnsupportedFormat = errors.New("unsupported element format")
	ErrStridedIndices    = errors.New("strided index buffers are not supported")
	ErrNoPositions       = errors.New("patch has no usable position attribute")
)

// EffectiveStride widens a declared stride to the format's natural size. A zero
// stride means tightly packed.
func EffectiveStride(declared uint64, format protocol.Format) int {
	natural := format.Size()
	if declared > uint64(natural) && declared <= math.MaxInt32 {
		return int(declared)
	}
	return natural
}

// Layout locates Count elements of Format inside a byte slice.
type Layout struct {
	Offset int
	Stride int
	Count  int
	Format protocol.Format
}

// NewLayout builds a layout with the effective stride applied.
func NewLayout(offset, declaredStride uint64, count int, format protocol.Format) Layout {
	off := int(offset)
	if offset > math.MaxInt32 {
		off = math.MaxInt32
	}
	return Layout{
		Offset: off,
		Stride: EffectiveStride(declaredStride, format),
		Count:  count,
		Format: format,
	}
}

// FitCount is the number of whole elements that fit in data after Offset.
func (l Layout) FitCount(data []byte) int {
	size := l.Format.Size()
	if size == 0 || l.Stride == 0 || l.Offset+size > len(data) {
		return 0
	}
	return (len(data)-l.Offset-size)/l.Stride + 1
}

func (l Layout) check(data []byte, want protocol.Format) error {
	if l.Format != want {
		return fmt.Errorf("%w: want %s, have %s", ErrUnsupportedFormat, want, l.Format)
	}
	if l.Count < 0 || l.Offset < 0 {
		return ErrOutOfRange
	}
	if l.Count == 0 {
		return nil
	}
	last := int64(l.Offset) + int64(l.Count-1)*int64(l.Stride) + int64(l.Format.Size())
	if last > int64(len(data)) {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrOutOfRange, last, len(data))
	}
	return nil
}

func (l Layout) at(i int) int {
	return l.Offset + i*l.Stride
}

func f32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func ReadVec2(data []byte, l Layout) ([]mgl32.Vec2, error) {
	if err := l.check(data, protocol.FormatVec2); err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec2, l.Count)
	for i := range out {
		p := l.at(i)
		out[i] = mgl32.Vec2{f32(data[p:]), f32(data[p+4:])}
	}
	return out, nil
}

func ReadVec3(data []byte, l Layout) ([]mgl32.Vec3, error) {
	if err := l.check(data, protocol.FormatVec3); err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec3, l.Count)
	for i := range out {
		p := l.at(i)
		out[i] = mgl32.Vec3{f32(data[p:]), f32(data[p+4:]), f32(data[p+8:])}
	}
	return out, nil
}

func ReadVec4(data []byte, l Layout) ([]mgl32.Vec4, error) {
	if err := l.check(data, protocol.FormatVec4); err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec4, l.Count)
	for i := range out {
		p := l.at(i)
		out[i] = mgl32.Vec4{f32(data[p:]), f32(data[p+4:]), f32(data[p+8:]), f32(data[p+12:])}
	}
	return out, nil
}

func ReadU16Vec2(data []byte, l Layout) ([][2]uint16, error) {
	if err := l.check(data, protocol.FormatU16Vec2); err != nil {
		return nil, err
	}
	out := make([][2]uint16, l.Count)
	for i := range out {
		p := l.at(i)
		out[i] = [2]uint16{
			binary.LittleEndian.Uint16(data[p:]),
			binary.LittleEndian.Uint16(data[p+2:]),
		}
	}
	return out, nil
}

func ReadU8Vec4(data []byte, l Layout) ([][4]uint8, error) {
	if err := l.check(data, protocol.FormatU8Vec4); err != nil {
		return nil, err
	}
	out := make([][4]uint8, l.Count)
	for i := range out {
		p := l.at(i)
		copy(out[i][:], data[p:p+4])
	}
	return out, nil
}

// ReadScalars widens U8, U16 and U32 elements to uint32.
func ReadScalars(data []byte, l Layout) ([]uint32, error) {
	switch l.Format {
	case protocol.FormatU8, protocol.FormatU16, protocol.FormatU32:
	default:
		return nil, fmt.Errorf("%w: %s is not a scalar", ErrUnsupportedFormat, l.Format)
	}
	if err := l.check(data, l.Format); err != nil {
		return nil, err
	}
	out := make([]uint32, l.Count)
	for i := range out {
		p := l.at(i)
		switch l.Format {
		case protocol.FormatU8:
			out[i] = uint32(data[p])
		case protocol.FormatU16:
			out[i] = uint32(binary.LittleEndian.Uint16(data[p:]))
		default:
			out[i] = binary.LittleEndian.Uint32(data[p:])
		}
	}
	return out, nil
}

func ReadMat3(data []byte, l Layout) ([]mgl32.Mat3, error) {
	if err := l.check(data, protocol.FormatMat3); err != nil {
		return nil, err
	}
	out := make([]mgl32.Mat3, l.Count)
	for i := range out {
		p := l.at(i)
		for k := 0; k < 9; k++ {
			out[i][k] = f32(data[p+4*k:])
		}
	}
	return out, nil
}

func ReadMat4(data []byte, l Layout) ([]mgl32.Mat4, error) {
	if err := l.check(data, protocol.FormatMat4); err != nil {
		return nil, err
	}
	out := make([]mgl32.Mat4, l.Count)
	for i := range out {
		p := l.at(i)
		for k := 0; k < 16; k++ {
			out[i][k] = f32(data[p+4*k:])
		}
	}
	return out, nil
}

// ReadTexCoords decodes float texture coordinates. The wire stores v flipped:
// stored_v = 1.0 - true_v.
func ReadTexCoords(data []byte, l Layout) ([]mgl32.Vec2, error) {
	out, err := ReadVec2(data, l)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i][1] = 1.0 - out[i][1]
	}
	return out, nil
}

// ReadTexCoordsU16 decodes normalized 16-bit texture coordinates. The wire
// stores v flipped: stored_v = 65535 - true_v.
func ReadTexCoordsU16(data []byte, l Layout) ([][2]uint16, error) {
	out, err := ReadU16Vec2(data, l)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i][1] = math.MaxUint16 - out[i][1]
	}
	return out, nil
}
