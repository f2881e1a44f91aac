package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/noodles/internal/core/observability/log"
)

// Fetcher loads bytes for resources the server publishes by URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// DecodeHooks observes decoder outcomes. metrics.Metrics implements it.
type DecodeHooks interface {
	FrameDecoded(messages int)
	FrameRejected(reason string)
	PairSkipped(reason string)
}

type DecoderConfig struct {
	// Host resolves structured locations that omit one.
	Host             string
	FetchTimeout     time.Duration
	MaxFrameElements int
}

func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		FetchTimeout:     30 * time.Second,
		MaxFrameElements: 1 << 20,
	}
}

// Decoder turns frames into messages. It is not safe for concurrent use; the
// connection event loop owns it.
type Decoder struct {
	mode    cbor.DecMode
	config  DecoderConfig
	fetcher Fetcher
	hooks   DecodeHooks
	logger  log.Log
}

type constructor func(d *Decoder, st *frameState, o object) (Message, error)

// frameState lives for exactly one Decode call.
type frameState struct {
	ctx     context.Context
	fetched map[string][]byte
}

var constructors = [kindCount]constructor{
	KindMethodCreate:        decodeMethodCreate,
	KindMethodDelete:        decodeDelete(func(id ID) Message { return &MethodDelete{ID: id} }),
	KindSignalCreate:        decodeSignalCreate,
	KindSignalDelete:        decodeDelete(func(id ID) Message { return &SignalDelete{ID: id} }),
	KindEntityCreate:        decodeEntityCreate,
	KindEntityUpdate:        decodeEntityUpdate,
	KindEntityDelete:        decodeDelete(func(id ID) Message { return &EntityDelete{ID: id} }),
	KindPlotCreate:          decodePlotCreate,
	KindPlotUpdate:          decodePlotUpdate,
	KindPlotDelete:          decodeDelete(func(id ID) Message { return &PlotDelete{ID: id} }),
	KindBufferCreate:        decodeBufferCreate,
	KindBufferDelete:        decodeDelete(func(id ID) Message { return &BufferDelete{ID: id} }),
	KindBufferViewCreate:    decodeBufferViewCreate,
	KindBufferViewDelete:    decodeDelete(func(id ID) Message { return &BufferViewDelete{ID: id} }),
	KindMaterialCreate:      decodeMaterialCreate,
	KindMaterialUpdate:      decodeMaterialUpdate,
	KindMaterialDelete:      decodeDelete(func(id ID) Message { return &MaterialDelete{ID: id} }),
	KindImageCreate:         decodeImageCreate,
	KindImageDelete:         decodeDelete(func(id ID) Message { return &ImageDelete{ID: id} }),
	KindTextureCreate:       decodeTextureCreate,
	KindTextureDelete:       decodeDelete(func(id ID) Message { return &TextureDelete{ID: id} }),
	KindSamplerCreate:       decodeSamplerCreate,
	KindSamplerDelete:       decodeDelete(func(id ID) Message { return &SamplerDelete{ID: id} }),
	KindLightCreate:         decodeLightCreate,
	KindLightUpdate:         decodeLightUpdate,
	KindLightDelete:         decodeDelete(func(id ID) Message { return &LightDelete{ID: id} }),
	KindGeometryCreate:      decodeGeometryCreate,
	KindGeometryDelete:      decodeDelete(func(id ID) Message { return &GeometryDelete{ID: id} }),
	KindTableCreate:         decodeTableCreate,
	KindTableUpdate:         decodeTableUpdate,
	KindTableDelete:         decodeDelete(func(id ID) Message { return &TableDelete{ID: id} }),
	KindDocumentUpdate:      decodeDocumentUpdate,
	KindDocumentReset:       func(*Decoder, *frameState, object) (Message, error) { return &DocumentReset{}, nil },
	KindSignalInvoke:        decodeSignalInvoke,
	KindMethodReply:         decodeMethodReply,
	KindDocumentInitialized: func(*Decoder, *frameState, object) (Message, error) { return &DocumentInitialized{}, nil },
	KindPhysicsCreate:       decodePhysicsCreate,
	KindPhysicsDelete:       decodeDelete(func(id ID) Message { return &PhysicsDelete{ID: id} }),
}

// NewDecoder builds a decoder. fetcher and hooks may be nil.
func NewDecoder(config DecoderConfig, fetcher Fetcher, hooks DecodeHooks, logger log.Log) (*Decoder, error) {
	if config.MaxFrameElements <= 0 {
		config.MaxFrameElements = DefaultDecoderConfig().MaxFrameElements
	}
	mode, err := cbor.DecOptions{
		MaxArrayElements: config.MaxFrameElements,
		MaxMapPairs:      config.MaxFrameElements,
		MaxNestedLevels:  64,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("build cbor decoder: %w", err)
	}
	if logger == nil {
		logger = log.Provide()
	}
	return &Decoder{
		mode:    mode,
		config:  config,
		fetcher: fetcher,
		hooks:   hooks,
		logger:  logger.With(log.Component("decoder")),
	}, nil
}

// Decode parses one frame. A structurally invalid frame yields no messages and a
// single logged anomaly; an unusable pair is skipped and the rest of the frame
// still decodes.
func (d *Decoder) Decode(ctx context.Context, frame []byte) (messages []Message) {
	defer func() {
		if r := recover(); r != nil {
			messages = nil
			d.reject("decoder panic", log.Any("panic", r), log.Int("bytes", len(frame)))
		}
	}()

	var root any
	if err := d.mode.Unmarshal(frame, &root); err != nil {
		d.reject("invalid encoding", log.Error(err), log.Int("bytes", len(frame)))
		return nil
	}

	pairs, ok := root.([]any)
	if !ok {
		d.reject("top level is not an array", log.String("type", fmt.Sprintf("%T", root)))
		return nil
	}
	if len(pairs)%2 != 0 {
		d.reject("odd element count", log.Int("elements", len(pairs)))
		return nil
	}

	st := &frameState{ctx: ctx}
	messages = make([]Message, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		msg, ok := d.decodePair(st, i/2, pairs[i], pairs[i+1])
		if ok {
			messages = append(messages, msg)
		}
	}

	if d.hooks != nil {
		d.hooks.FrameDecoded(len(messages))
	}
	return messages
}

func (d *Decoder) decodePair(st *frameState, index int, rawType, rawPayload any) (Message, bool) {
	typeID, ok := toUint64(rawType)
	if !ok {
		d.skip("bad_type_id", "message type id is not an unsigned integer", log.Int("pair", index))
		return nil, false
	}
	if typeID >= uint64(kindCount) {
		d.skip("unknown_type", "unknown message type", log.Int("pair", index), log.Uint64("type_id", typeID))
		return nil, false
	}

	kind := MessageKind(typeID)
	payload, ok := asObject(rawPayload)
	if !ok {
		// empty-bodied messages are sometimes sent with a null payload
		if kind != KindDocumentReset && kind != KindDocumentInitialized {
			d.skip("bad_payload", "payload is not a map", log.Int("pair", index), log.Stringer("kind", kind))
			return nil, false
		}
		payload = object{}
	}

	msg, err := constructors[kind](d, st, payload)
	if err != nil {
		d.skip("bad_payload", "payload rejected", log.Int("pair", index), log.Stringer("kind", kind), log.Error(err))
		return nil, false
	}
	return msg, true
}

func (d *Decoder) reject(reason string, fields ...log.Field) {
	d.logger.Warn("frame rejected: "+reason, fields...)
	if d.hooks != nil {
		d.hooks.FrameRejected(reason)
	}
}

func (d *Decoder) skip(reason, msg string, fields ...log.Field) {
	d.logger.Warn(msg, fields...)
	if d.hooks != nil {
		d.hooks.PairSkipped(reason)
	}
}

// fetch resolves and loads a location. Failures leave bytes empty.
func (d *Decoder) fetch(st *frameState, raw any) (string, []byte) {
	uri, err := resolveLocation(raw, d.config.Host)
	if err != nil {
		d.logger.Warn("unresolvable resource location", log.Error(err))
		return "", nil
	}
	if d.fetcher == nil {
		return uri, nil
	}
	if data, ok := st.fetched[uri]; ok {
		return uri, data
	}

	ctx := st.ctx
	if d.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.FetchTimeout)
		defer cancel()
	}
	data, err := d.fetcher.Fetch(ctx, uri)
	if err != nil {
		d.logger.Warn("resource fetch failed", log.String("uri", uri), log.Error(err))
		return uri, nil
	}
	if st.fetched == nil {
		st.fetched = make(map[string][]byte)
	}
	st.fetched[uri] = data
	return uri, data
}

func requireID(o object, key string) (ID, error) {
	id, ok := o.id(key)
	if !ok {
		return NullID, NewError(ErrorCodeBadPayload, "missing "+key, ErrMissingField)
	}
	return id, nil
}

func decodeDelete(build func(ID) Message) constructor {
	return func(_ *Decoder, _ *frameState, o object) (Message, error) {
		id, err := requireID(o, "id")
		if err != nil {
			return nil, err
		}
		return build(id), nil
	}
}

func decodeArgs(o object) []MethodArg {
	l, _ := o.list("arg_doc")
	args := make([]MethodArg, 0, len(l))
	for _, v := range l {
		a, ok := asObject(v)
		if !ok {
			continue
		}
		args = append(args, MethodArg{
			Name:       a.strOr("name", ""),
			Doc:        a.strOr("doc", ""),
			EditorHint: a.strOr("editor_hint", ""),
		})
	}
	return args
}

func decodeMethodCreate(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	return &MethodCreate{
		ID:        id,
		Name:      o.strOr("name", ""),
		Doc:       o.strOr("doc", ""),
		ReturnDoc: o.strOr("return_doc", ""),
		Args:      decodeArgs(o),
	}, nil
}

func decodeSignalCreate(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	return &SignalCreate{
		ID:   id,
		Name: o.strOr("name", ""),
		Doc:  o.strOr("doc", ""),
		Args: decodeArgs(o),
	}, nil
}

func optString(o object, key string) *string {
	if s, ok := o.str(key); ok {
		return &s
	}
	return nil
}

func optBool(o object, key string) *bool {
	if b, ok := o.boolean(key); ok {
		return &b
	}
	return nil
}

func optFloat(o object, key string) *float32 {
	if f, ok := o.float(key); ok {
		return &f
	}
	return nil
}

func optID(o object, key string) *ID {
	if id, ok := o.id(key); ok {
		return &id
	}
	return nil
}

func decodeBounds(o object) *BoundingBox {
	lo, okMin := o.vec3("min")
	hi, okMax := o.vec3("max")
	if !okMin || !okMax {
		return nil
	}
	return &BoundingBox{Min: lo, Max: hi}
}

func decodeEntityFields(o object) EntityFields {
	var f EntityFields
	f.Name = optString(o, "name")

	// a present-but-null parent means "move to the root"
	if raw, present := o["parent"]; present {
		p := idFromValue(raw)
		f.Parent = &p
	}
	if m, ok := o.mat4("transform"); ok {
		f.Transform = &m
	}
	if _, present := o["null_rep"]; present {
		f.NullRep = true
	}
	if rr, ok := o.obj("render_rep"); ok {
		if mesh, ok := rr.id("mesh"); ok {
			rep := &RenderRep{Mesh: mesh}
			if inst, ok := rr.obj("instances"); ok {
				if view, ok := inst.id("view"); ok {
					src := &InstanceSource{View: view, Stride: inst.uint64Or("stride", 0)}
					if bb, ok := inst.obj("bb"); ok {
						src.Bounds = decodeBounds(bb)
					}
					rep.Instances = src
				}
			}
			f.RenderRep = rep
		}
	}

	f.Methods = o.ids("methods_list")
	f.Signals = o.ids("signals_list")
	f.Lights = o.ids("lights")
	f.Tables = o.ids("tables")
	f.Plots = o.ids("plots")
	f.Physics = o.ids("physics")
	f.Tags = o.strs("tags")
	f.Visible = optBool(o, "visible")
	f.Billboard = optBool(o, "billboard")
	return f
}

func decodeEntityCreate(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	return &EntityCreate{ID: id, EntityFields: decodeEntityFields(o)}, nil
}

func decodeEntityUpdate(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	return &EntityUpdate{ID: id, EntityFields: decodeEntityFields(o)}, nil
}

func decodePlotFields(o object) PlotFields {
	return PlotFields{
		Name:       optString(o, "name"),
		Table:      optID(o, "table"),
		SimplePlot: optString(o, "simple_plot"),
		URLPlot:    optString(o, "url_plot"),
		Methods:    o.ids("methods_list"),
		Signals:    o.ids("signals_list"),
	}
}

func decodePlotCreate(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	return &PlotCreate{ID: id, PlotFields: decodePlotFields(o)}, nil
}

func decodePlotUpdate(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	return &PlotUpdate{ID: id, PlotFields: decodePlotFields(o)}, nil
}

func decodeBufferCreate(d *Decoder, st *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	msg := &BufferCreate{
		ID:   id,
		Name: o.strOr("name", ""),
		Size: o.uint64Or("size", 0),
	}
	if b, ok := o.bytes("inline_bytes"); ok {
		msg.Bytes = b
	} else if raw, ok := o.get("uri_bytes"); ok {
		msg.URI, msg.Bytes = d.fetch(st, raw)
	}
	return msg, nil
}

func decodeBufferViewCreate(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	source, err := requireID(o, "source_buffer")
	if err != nil {
		return nil, err
	}
	return &BufferViewCreate{
		ID:     id,
		Name:   o.strOr("name", ""),
		Source: source,
		Type:   ViewType(o.strOr("type", string(ViewUnknown))),
		Offset: o.uint64Or("offset", 0),
		Length: o.uint64Or("length", 0),
	}, nil
}

func decodeTextureRef(o object, key string) *TextureRef {
	ref, ok := o.obj(key)
	if !ok {
		return nil
	}
	tex, ok := ref.id("texture")
	if !ok {
		return nil
	}
	transform, ok := ref.mat3("transform")
	if !ok {
		transform = mgl32.Ident3()
	}
	return &TextureRef{
		Texture:   tex,
		Transform: transform,
		CoordSlot: ref.uint64Or("texture_coord_slot", 0),
	}
}

func decodePBR(o object) PBRInfo {
	pbr := DefaultPBRInfo()
	if c, ok := o.color("base_color"); ok {
		pbr.BaseColor = c
	}
	pbr.BaseColorTexture = decodeTextureRef(o, "base_color_texture")
	pbr.Metallic = o.floatOr("metallic", pbr.Metallic)
	pbr.Roughness = o.floatOr("roughness", pbr.Roughness)
	return pbr
}

func decodeMaterialFields(o object, create bool) MaterialFields {
	f := MaterialFields{
		Name:          optString(o, "name"),
		NormalTexture: decodeTextureRef(o, "normal_texture"),
		UseAlpha:      optBool(o, "use_alpha"),
		DoubleSided:   optBool(o, "double_sided"),
	}
	if p, ok := o.obj("pbr_info"); ok {
		pbr := decodePBR(p)
		f.PBR = &pbr
	} else if create {
		pbr := DefaultPBRInfo()
		f.PBR = &pbr
	}
	return f
}

func decodeMaterialCreate(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	return &MaterialCreate{ID: id, MaterialFields: decodeMaterialFields(o, true)}, nil
}

func decodeMaterialUpdate(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	return &MaterialUpdate{ID: id, MaterialFields: decodeMaterialFields(o, false)}, nil
}

func decodeImageCreate(d *Decoder, st *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	msg := &ImageCreate{ID: id, Name: o.strOr("name", "")}
	if src, ok := o.id("buffer_source"); ok {
		msg.BufferSource = &src
	} else if raw, ok := o.get("uri_source"); ok {
		msg.URI, msg.Bytes = d.fetch(st, raw)
	} else {
		return nil, NewError(ErrorCodeBadPayload, "image has no source", ErrMissingField)
	}
	return msg, nil
}

func decodeTextureCreate(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	image, err := requireID(o, "image")
	if err != nil {
		return nil, err
	}
	return &TextureCreate{
		ID:      id,
		Name:    o.strOr("name", ""),
		Image:   image,
		Sampler: optID(o, "sampler"),
	}, nil
}

func decodeSamplerCreate(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	return &SamplerCreate{
		ID:        id,
		Name:      o.strOr("name", ""),
		MagFilter: Filter(o.strOr("mag_filter", string(FilterLinear))),
		MinFilter: Filter(o.strOr("min_filter", string(FilterLinearMipmapLinear))),
		WrapS:     Wrap(o.strOr("wrap_s", string(WrapRepeat))),
		WrapT:     Wrap(o.strOr("wrap_t", string(WrapRepeat))),
	}, nil
}

func decodeLightFields(o object) LightFields {
	f := LightFields{
		Name:      optString(o, "name"),
		Intensity: optFloat(o, "intensity"),
	}
	if c, ok := o.color("color"); ok {
		f.Color = &c
	}
	for _, kind := range []LightKind{LightPoint, LightSpot, LightDirectional} {
		sub, ok := o.obj(string(kind))
		if !ok {
			continue
		}
		k := kind
		f.Type = &k
		f.Range = optFloat(sub, "range")
		if kind == LightSpot {
			f.InnerCone = optFloat(sub, "inner_cone_angle_rad")
			f.OuterCone = optFloat(sub, "outer_cone_angle_rad")
		}
		break
	}
	return f
}

func decodeLightCreate(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	return &LightCreate{ID: id, LightFields: decodeLightFields(o)}, nil
}

func decodeLightUpdate(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	return &LightUpdate{ID: id, LightFields: decodeLightFields(o)}, nil
}

func decodeAttribute(o object) (GeometryAttribute, bool) {
	view, ok := o.id("view")
	if !ok {
		return GeometryAttribute{}, false
	}
	normalized, _ := o.boolean("normalized")
	return GeometryAttribute{
		View:       view,
		Semantic:   Semantic(o.strOr("semantic", string(SemanticPosition))),
		Channel:    o.uint64Or("channel", 0),
		Offset:     o.uint64Or("offset", 0),
		Stride:     o.uint64Or("stride", 0),
		Format:     Format(o.strOr("format", string(FormatVec3))),
		Min:        o.floats("minimum_value"),
		Max:        o.floats("maximum_value"),
		Normalized: normalized,
	}, true
}

func decodePatch(o object) (GeometryPatch, error) {
	patch := GeometryPatch{
		VertexCount: o.uint64Or("vertex_count", 0),
		Type:        PrimitiveType(o.strOr("type", string(PrimitiveTriangles))),
		Material:    NullID,
	}
	if m, ok := o.id("material"); ok {
		patch.Material = m
	}

	attrs, _ := o.list("attributes")
	for _, raw := range attrs {
		ao, ok := asObject(raw)
		if !ok {
			continue
		}
		if attr, ok := decodeAttribute(ao); ok {
			patch.Attributes = append(patch.Attributes, attr)
		}
	}
	if len(patch.Attributes) == 0 {
		return patch, NewError(ErrorCodeBadPayload, "patch has no attributes", ErrMissingField)
	}

	if idx, ok := o.obj("indices"); ok {
		view, err := requireID(idx, "view")
		if err != nil {
			return patch, err
		}
		patch.Indices = &GeometryIndex{
			View:   view,
			Count:  idx.uint64Or("count", 0),
			Offset: idx.uint64Or("offset", 0),
			Stride: idx.uint64Or("stride", 0),
			Format: Format(idx.strOr("format", string(FormatU32))),
		}
	}
	return patch, nil
}

func decodeGeometryCreate(d *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	msg := &GeometryCreate{ID: id, Name: o.strOr("name", "")}
	patches, _ := o.list("patches")
	for i, raw := range patches {
		po, ok := asObject(raw)
		if !ok {
			continue
		}
		patch, err := decodePatch(po)
		if err != nil {
			d.logger.Warn("geometry patch dropped",
				log.Stringer("geometry", id), log.Int("patch", i), log.Error(err))
			continue
		}
		msg.Patches = append(msg.Patches, patch)
	}
	return msg, nil
}

func decodeTableFields(o object) TableFields {
	return TableFields{
		Name:    optString(o, "name"),
		Meta:    optString(o, "meta"),
		Methods: o.ids("methods_list"),
		Signals: o.ids("signals_list"),
	}
}

func decodeTableCreate(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	return &TableCreate{ID: id, TableFields: decodeTableFields(o)}, nil
}

func decodeTableUpdate(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	return &TableUpdate{ID: id, TableFields: decodeTableFields(o)}, nil
}

func decodeDocumentUpdate(_ *Decoder, _ *frameState, o object) (Message, error) {
	return &DocumentUpdate{
		Methods: o.ids("methods_list"),
		Signals: o.ids("signals_list"),
	}, nil
}

func decodeContext(o object) *InvokeContext {
	c, ok := o.obj("context")
	if !ok {
		return nil
	}
	ctx := &InvokeContext{
		Entity: optID(c, "entity"),
		Table:  optID(c, "table"),
		Plot:   optID(c, "plot"),
	}
	if ctx.IsDocument() {
		return nil
	}
	return ctx
}

func decodeSignalInvoke(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	data, _ := o.list("signal_data")
	return &SignalInvoke{Signal: id, Context: decodeContext(o), Data: data}, nil
}

func decodeMethodReply(_ *Decoder, _ *frameState, o object) (Message, error) {
	msg := &MethodReply{InvokeID: o.strOr("invoke_id", "")}
	msg.Result, _ = o.get("result")
	if ex, ok := o.obj("method_exception"); ok {
		code, ok := ex.int64("code")
		if !ok {
			code = DefaultExceptionCode
		}
		msg.Exception = &MethodException{Code: code, Message: ex.strOr("message", "")}
		msg.Exception.Data, _ = ex.get("data")
	}
	return msg, nil
}

func decodePhysicsCreate(_ *Decoder, _ *frameState, o object) (Message, error) {
	id, err := requireID(o, "id")
	if err != nil {
		return nil, err
	}
	msg := &PhysicsCreate{
		ID:   id,
		Name: o.strOr("name", ""),
		Type: o.strOr("type", ""),
	}
	if sf, ok := o.obj("stream_flow"); ok {
		data, err := requireID(sf, "data")
		if err != nil {
			return nil, err
		}
		flow := &StreamFlow{Data: data, Offset: sf.uint64Or("offset", 0)}
		if header, ok := sf.obj("header"); ok {
			flow.LineCount = header.uint64Or("line_count", 0)
			attrs, _ := header.list("attributes")
			for _, raw := range attrs {
				ao, ok := asObject(raw)
				if !ok {
					continue
				}
				flow.Attributes = append(flow.Attributes, StreamFlowAttribute{
					Name:     ao.strOr("name", ""),
					DataType: ao.strOr("data_type", "F32"),
					Bounds:   ao.floats("data_bounds"),
				})
			}
		}
		msg.Flow = flow
	}
	return msg, nil
}
