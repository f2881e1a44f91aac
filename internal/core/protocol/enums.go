package protocol

// Format is the element layout of an attribute or index stream.
type Format string

const (
	FormatU8      Format = "U8"
	FormatU16     Format = "U16"
	FormatU32     Format = "U32"
	FormatU8Vec4  Format = "U8VEC4"
	FormatU16Vec2 Format = "U16VEC2"
	FormatVec2    Format = "VEC2"
	FormatVec3    Format = "VEC3"
	FormatVec4    Format = "VEC4"
	FormatMat3    Format = "MAT3"
	FormatMat4    Format = "MAT4"
)

// Size is the tightly packed size of one element in bytes, or 0 for unknown
// formats.
func (f Format) Size() int {
	switch f {
	case FormatU8:
		return 1
	case FormatU16:
		return 2
	case FormatU32, FormatU8Vec4, FormatU16Vec2:
		return 4
	case FormatVec2:
		return 8
	case FormatVec3:
		return 12
	case FormatVec4:
		return 16
	case FormatMat3:
		return 36
	case FormatMat4:
		return 64
	default:
		return 0
	}
}

func (f Format) Known() bool {
	return f.Size() > 0
}

// Semantic is the meaning of a vertex attribute.
type Semantic string

const (
	SemanticPosition Semantic = "POSITION"
	SemanticNormal   Semantic = "NORMAL"
	SemanticTangent  Semantic = "TANGENT"
	SemanticTexture  Semantic = "TEXTURE"
	SemanticColor    Semantic = "COLOR"
)

// PrimitiveType is the topology of a geometry patch.
type PrimitiveType string

const (
	PrimitivePoints        PrimitiveType = "POINTS"
	PrimitiveLines         PrimitiveType = "LINES"
	PrimitiveLineLoop      PrimitiveType = "LINE_LOOP"
	PrimitiveLineStrip     PrimitiveType = "LINE_STRIP"
	PrimitiveTriangles     PrimitiveType = "TRIANGLES"
	PrimitiveTriangleStrip PrimitiveType = "TRIANGLE_STRIP"
)

func (p PrimitiveType) Known() bool {
	switch p {
	case PrimitivePoints, PrimitiveLines, PrimitiveLineLoop, PrimitiveLineStrip,
		PrimitiveTriangles, PrimitiveTriangleStrip:
		return true
	default:
		return false
	}
}

// ViewType hints what a buffer view holds.
type ViewType string

const (
	ViewUnknown  ViewType = "UNK"
	ViewGeometry ViewType = "GEOMETRY"
	ViewImage    ViewType = "IMAGE"
)

type Filter string

const (
	FilterNearest            Filter = "NEAREST"
	FilterLinear             Filter = "LINEAR"
	FilterLinearMipmapLinear Filter = "LINEAR_MIPMAP_LINEAR"
)

type Wrap string

const (
	WrapClampToEdge    Wrap = "CLAMP_TO_EDGE"
	WrapMirroredRepeat Wrap = "MIRRORED_REPEAT"
	WrapRepeat         Wrap = "REPEAT"
)

type LightKind string

const (
	LightPoint       LightKind = "point"
	LightSpot        LightKind = "spot"
	LightDirectional LightKind = "directional"
)
