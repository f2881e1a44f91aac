package protocol

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// MessageKind is the wire type-id of a server message.
type MessageKind uint8

const (
	KindMethodCreate MessageKind = iota
	KindMethodDelete
	KindSignalCreate
	KindSignalDelete
	KindEntityCreate
	KindEntityUpdate
	KindEntityDelete
	KindPlotCreate
	KindPlotUpdate
	KindPlotDelete
	KindBufferCreate
	KindBufferDelete
	KindBufferViewCreate
	KindBufferViewDelete
	KindMaterialCreate
	KindMaterialUpdate
	KindMaterialDelete
	KindImageCreate
	KindImageDelete
	KindTextureCreate
	KindTextureDelete
	KindSamplerCreate
	KindSamplerDelete
	KindLightCreate
	KindLightUpdate
	KindLightDelete
	KindGeometryCreate
	KindGeometryDelete
	KindTableCreate
	KindTableUpdate
	KindTableDelete
	KindDocumentUpdate
	KindDocumentReset
	KindSignalInvoke
	KindMethodReply
	KindDocumentInitialized
	KindPhysicsCreate
	KindPhysicsDelete

	kindCount
)

var kindNames = [kindCount]string{
	"method_create", "method_delete",
	"signal_create", "signal_delete",
	"entity_create", "entity_update", "entity_delete",
	"plot_create", "plot_update", "plot_delete",
	"buffer_create", "buffer_delete",
	"buffer_view_create", "buffer_view_delete",
	"material_create", "material_update", "material_delete",
	"image_create", "image_delete",
	"texture_create", "texture_delete",
	"sampler_create", "sampler_delete",
	"light_create", "light_update", "light_delete",
	"geometry_create", "geometry_delete",
	"table_create", "table_update", "table_delete",
	"document_update", "document_reset",
	"signal_invoke", "method_reply", "document_initialized",
	"physics_create", "physics_delete",
}

func (k MessageKind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Message is one decoded server message. The set of implementations is closed;
// consumers switch on the concrete type.
type Message interface {
	Kind() MessageKind
	isMessage()
}

type message struct{}

func (message) isMessage() {}

type MethodArg struct {
	Name       string
	Doc        string
	EditorHint string
}

type MethodCreate struct {
	message
	ID        ID
	Name      string
	Doc       string
	ReturnDoc string
	Args      []MethodArg
}

type MethodDelete struct {
	message
	ID ID
}

type SignalCreate struct {
	message
	ID   ID
	Name string
	Doc  string
	Args []MethodArg
}

type SignalDelete struct {
	message
	ID ID
}

type BoundingBox struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

type InstanceSource struct {
	View   ID
	Stride uint64
	Bounds *BoundingBox
}

type RenderRep struct {
	Mesh      ID
	Instances *InstanceSource
}

// EntityFields is shared by create and update. Nil pointers and nil slices mean
// "absent"; present-but-empty lists are non-nil.
type EntityFields struct {
	Name      *string
	Parent    *ID
	Transform *mgl32.Mat4
	NullRep   bool
	RenderRep *RenderRep
	Methods   []ID
	Signals   []ID
	Lights    []ID
	Tables    []ID
	Plots     []ID
	Physics   []ID
	Tags      []string
	Visible   *bool
	Billboard *bool
}

type EntityCreate struct {
	message
	ID ID
	EntityFields
}

type EntityUpdate struct {
	message
	ID ID
	EntityFields
}

type EntityDelete struct {
	message
	ID ID
}

type PlotFields struct {
	Name       *string
	Table      *ID
	SimplePlot *string
	URLPlot    *string
	Methods    []ID
	Signals    []ID
}

type PlotCreate struct {
	message
	ID ID
	PlotFields
}

type PlotUpdate struct {
	message
	ID ID
	PlotFields
}

type PlotDelete struct {
	message
	ID ID
}

// BufferCreate carries either inline bytes or a resolved URI. When the decoder
// has a fetcher, Bytes holds the fetched content.
type BufferCreate struct {
	message
	ID    ID
	Name  string
	Size  uint64
	Bytes []byte
	URI   string
}

type BufferDelete struct {
	message
	ID ID
}

type BufferViewCreate struct {
	message
	ID     ID
	Name   string
	Source ID
	Type   ViewType
	Offset uint64
	Length uint64
}

type BufferViewDelete struct {
	message
	ID ID
}

type TextureRef struct {
	Texture   ID
	Transform mgl32.Mat3
	CoordSlot uint64
}

type PBRInfo struct {
	BaseColor        mgl32.Vec4
	BaseColorTexture *TextureRef
	Metallic         float32
	Roughness        float32
}

// DefaultPBRInfo is a white, fully metallic, fully rough surface.
func DefaultPBRInfo() PBRInfo {
	return PBRInfo{
		BaseColor: mgl32.Vec4{1, 1, 1, 1},
		Metallic:  1,
		Roughness: 1,
	}
}

type MaterialFields struct {
	Name          *string
	PBR           *PBRInfo
	NormalTexture *TextureRef
	UseAlpha      *bool
	DoubleSided   *bool
}

type MaterialCreate struct {
	message
	ID ID
	MaterialFields
}

type MaterialUpdate struct {
	message
	ID ID
	MaterialFields
}

type MaterialDelete struct {
	message
	ID ID
}

type ImageCreate struct {
	message
	ID           ID
	Name         string
	BufferSource *ID
	URI          string
	Bytes        []byte
}

type ImageDelete struct {
	message
	ID ID
}

type TextureCreate struct {
	message
	ID      ID
	Name    string
	Image   ID
	Sampler *ID
}

type TextureDelete struct {
	message
	ID ID
}

type SamplerCreate struct {
	message
	ID        ID
	Name      string
	MagFilter Filter
	MinFilter Filter
	WrapS     Wrap
	WrapT     Wrap
}

type SamplerDelete struct {
	message
	ID ID
}

type LightFields struct {
	Name      *string
	Color     *mgl32.Vec4
	Intensity *float32
	Type      *LightKind
	Range     *float32
	InnerCone *float32
	OuterCone *float32
}

type LightCreate struct {
	message
	ID ID
	LightFields
}

type LightUpdate struct {
	message
	ID ID
	LightFields
}

type LightDelete struct {
	message
	ID ID
}

type GeometryAttribute struct {
	View       ID
	Semantic   Semantic
	Channel    uint64
	Offset     uint64
	Stride     uint64
	Format     Format
	Min        []float32
	Max        []float32
	Normalized bool
}

type GeometryIndex struct {
	View   ID
	Count  uint64
	Offset uint64
	Stride uint64
	Format Format
}

type GeometryPatch struct {
	Attributes  []GeometryAttribute
	VertexCount uint64
	Indices     *GeometryIndex
	Type        PrimitiveType
	Material    ID
}

type GeometryCreate struct {
	message
	ID      ID
	Name    string
	Patches []GeometryPatch
}

type GeometryDelete struct {
	message
	ID ID
}

type TableFields struct {
	Name    *string
	Meta    *string
	Methods []ID
	Signals []ID
}

type TableCreate struct {
	message
	ID ID
	TableFields
}

type TableUpdate struct {
	message
	ID ID
	TableFields
}

type TableDelete struct {
	message
	ID ID
}

type DocumentUpdate struct {
	message
	Methods []ID
	Signals []ID
}

type DocumentReset struct {
	message
}

// InvokeContext scopes a method call or signal. The zero value, and a nil
// *InvokeContext, mean document scope.
type InvokeContext struct {
	Entity *ID
	Table  *ID
	Plot   *ID
}

func (c *InvokeContext) IsDocument() bool {
	return c == nil || (c.Entity == nil && c.Table == nil && c.Plot == nil)
}

type SignalInvoke struct {
	message
	Signal  ID
	Context *InvokeContext
	Data    []any
}

// DefaultExceptionCode is used when a reply's exception omits its code.
const DefaultExceptionCode int64 = -1000000

type MethodException struct {
	Code    int64
	Message string
	Data    any
}

func (e *MethodException) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("method exception %d", e.Code)
	}
	return fmt.Sprintf("method exception %d: %s", e.Code, e.Message)
}

type MethodReply struct {
	message
	InvokeID  string
	Result    any
	Exception *MethodException
}

type DocumentInitialized struct {
	message
}

type StreamFlowAttribute struct {
	Name     string
	DataType string
	Bounds   []float32
}

type StreamFlow struct {
	LineCount  uint64
	Attributes []StreamFlowAttribute
	Data       ID
	Offset     uint64
}

type PhysicsCreate struct {
	message
	ID   ID
	Name string
	Type string
	Flow *StreamFlow
}

type PhysicsDelete struct {
	message
	ID ID
}

func (MethodCreate) Kind() MessageKind        { return KindMethodCreate }
func (MethodDelete) Kind() MessageKind        { return KindMethodDelete }
func (SignalCreate) Kind() MessageKind        { return KindSignalCreate }
func (SignalDelete) Kind() MessageKind        { return KindSignalDelete }
func (EntityCreate) Kind() MessageKind        { return KindEntityCreate }
func (EntityUpdate) Kind() MessageKind        { return KindEntityUpdate }
func (EntityDelete) Kind() MessageKind        { return KindEntityDelete }
func (PlotCreate) Kind() MessageKind          { return KindPlotCreate }
func (PlotUpdate) Kind() MessageKind          { return KindPlotUpdate }
func (PlotDelete) Kind() MessageKind          { return KindPlotDelete }
func (BufferCreate) Kind() MessageKind        { return KindBufferCreate }
func (BufferDelete) Kind() MessageKind        { return KindBufferDelete }
func (BufferViewCreate) Kind() MessageKind    { return KindBufferViewCreate }
func (BufferViewDelete) Kind() MessageKind    { return KindBufferViewDelete }
func (MaterialCreate) Kind() MessageKind      { return KindMaterialCreate }
func (MaterialUpdate) Kind() MessageKind      { return KindMaterialUpdate }
func (MaterialDelete) Kind() MessageKind      { return KindMaterialDelete }
func (ImageCreate) Kind() MessageKind         { return KindImageCreate }
func (ImageDelete) Kind() MessageKind         { return KindImageDelete }
func (TextureCreate) Kind() MessageKind       { return KindTextureCreate }
func (TextureDelete) Kind() MessageKind       { return KindTextureDelete }
func (SamplerCreate) Kind() MessageKind       { return KindSamplerCreate }
func (SamplerDelete) Kind() MessageKind       { return KindSamplerDelete }
func (LightCreate) Kind() MessageKind         { return KindLightCreate }
func (LightUpdate) Kind() MessageKind         { return KindLightUpdate }
func (LightDelete) Kind() MessageKind         { return KindLightDelete }
func (GeometryCreate) Kind() MessageKind      { return KindGeometryCreate }
func (GeometryDelete) Kind() MessageKind      { return KindGeometryDelete }
func (TableCreate) Kind() MessageKind         { return KindTableCreate }
func (TableUpdate) Kind() MessageKind         { return KindTableUpdate }
func (TableDelete) Kind() MessageKind         { return KindTableDelete }
func (DocumentUpdate) Kind() MessageKind      { return KindDocumentUpdate }
func (DocumentReset) Kind() MessageKind       { return KindDocumentReset }
func (SignalInvoke) Kind() MessageKind        { return KindSignalInvoke }
func (MethodReply) Kind() MessageKind         { return KindMethodReply }
func (DocumentInitialized) Kind() MessageKind { return KindDocumentInitialized }
func (PhysicsCreate) Kind() MessageKind       { return KindPhysicsCreate }
func (PhysicsDelete) Kind() MessageKind       { return KindPhysicsDelete }
