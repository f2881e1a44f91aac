package world

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
)

type recordingRenderer struct {
	NopRenderer
	changed      int
	destroyed    []protocol.ID
	reps         int
	cleared      int
	geometries   []*Geometry
	materials    int
	available    *bool
	panicOnBuild bool
}

func (r *recordingRenderer) EntityChanged(*Entity) { r.changed++ }
func (r *recordingRenderer) EntityDestroyed(e *Entity) {
	r.destroyed = append(r.destroyed, e.ID)
}
func (r *recordingRenderer) RepresentationBuilt(*Entity, *Representation) { r.reps++ }
func (r *recordingRenderer) RepresentationCleared(*Entity)                { r.cleared++ }
func (r *recordingRenderer) GeometryBuilt(g *Geometry) {
	if r.panicOnBuild {
		panic("renderer exploded")
	}
	r.geometries = append(r.geometries, g)
}
func (r *recordingRenderer) MaterialBuilt(*Material) { r.materials++ }
func (r *recordingRenderer) SetAvailable(v bool)     { r.available = &v }

type recordingObserver struct {
	summaries   []DocumentSummary
	initialized int
	signals     []SignalEvent
}

func (o *recordingObserver) DocumentUpdated(s DocumentSummary) { o.summaries = append(o.summaries, s) }
func (o *recordingObserver) DocumentInitialized()              { o.initialized++ }
func (o *recordingObserver) SignalInvoked(e SignalEvent)       { o.signals = append(o.signals, e) }

type captureSender struct {
	frames [][]byte
}

func (s *captureSender) Send(data []byte) error {
	s.frames = append(s.frames, data)
	return nil
}

func newTestWorld(t *testing.T) (*World, *recordingRenderer, *recordingObserver, *captureSender) {
	t.Helper()
	r := &recordingRenderer{}
	o := &recordingObserver{}
	s := &captureSender{}
	w := New(DefaultConfig(), log.NewNop(), WithRenderer(r), WithObserver(o), WithSender(s))
	return w, r, o, s
}

func id(slot uint32) protocol.ID {
	return protocol.NewID(slot, 0)
}

func ptr[T any](v T) *T {
	return &v
}

func floatBytes(vals ...float32) []byte {
	out := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func TestBufferViewResolvesBufferQueuedBeforeIt(t *testing.T) {
	w, _, _, _ := newTestWorld(t)

	w.Apply([]protocol.Message{
		&protocol.BufferCreate{ID: id(1), Size: 8, Bytes: []byte{0, 1, 2, 3, 4, 5, 6, 7}},
		&protocol.BufferViewCreate{ID: id(2), Source: id(1), Offset: 2, Length: 4},
	})

	view, ok := w.BufferView(id(2))
	require.True(t, ok)
	require.NotNil(t, view.Buffer())
	data, err := view.Slice(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4, 5}, data)

	data, err = view.SliceN(0, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, data)

	_, err = view.SliceN(3, 2)
	assert.ErrorIs(t, err, ErrViewOutOfRange)
}

func TestBufferViewWithoutBufferDegrades(t *testing.T) {
	w, _, _, _ := newTestWorld(t)

	w.Apply([]protocol.Message{&protocol.BufferViewCreate{ID: id(2), Source: id(1), Length: 4}})

	view, ok := w.BufferView(id(2))
	require.True(t, ok, "the view exists even without its buffer")
	_, err := view.Slice(0)
	assert.ErrorIs(t, err, ErrViewUnavailable)
}

func TestBufferFingerprint(t *testing.T) {
	w, _, _, _ := newTestWorld(t)
	w.Apply([]protocol.Message{
		&protocol.BufferCreate{ID: id(1), Bytes: []byte("abc")},
		&protocol.BufferCreate{ID: id(2), Bytes: []byte("abc")},
		&protocol.BufferCreate{ID: id(3), Bytes: []byte("abd")},
	})

	a, _ := w.Buffer(id(1))
	b, _ := w.Buffer(id(2))
	c, _ := w.Buffer(id(3))
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.NotEqual(t, a.Fingerprint, c.Fingerprint)
}

func TestEntityUpdateIsIdempotent(t *testing.T) {
	w, _, _, _ := newTestWorld(t)
	w.Apply([]protocol.Message{
		&protocol.MethodCreate{ID: id(1), Name: "noo::set_position"},
		&protocol.EntityCreate{ID: id(10)},
		&protocol.EntityCreate{ID: id(11)},
	})

	tf := mgl32.Translate3D(1, 2, 3)
	update := &protocol.EntityUpdate{ID: id(11), EntityFields: protocol.EntityFields{
		Name:      ptr("child"),
		Parent:    ptr(id(10)),
		Transform: &tf,
		Methods:   []protocol.ID{id(1)},
		Tags:      []string{"a"},
		Visible:   ptr(false),
	}}

	w.Apply([]protocol.Message{update})
	once, _ := w.Entity(id(11))
	snapshot := *once
	parentOnce, _ := w.Entity(id(10))
	childrenOnce := parentOnce.Children()
	rootsOnce := w.Roots()

	w.Apply([]protocol.Message{update})
	twice, _ := w.Entity(id(11))
	parentTwice, _ := w.Entity(id(10))

	assert.Equal(t, snapshot.Name, twice.Name)
	assert.Equal(t, snapshot.Parent, twice.Parent)
	assert.Equal(t, snapshot.Transform, twice.Transform)
	assert.Equal(t, snapshot.Methods, twice.Methods)
	assert.Equal(t, snapshot.Capabilities, twice.Capabilities)
	assert.Equal(t, snapshot.Tags, twice.Tags)
	assert.Equal(t, snapshot.Visible, twice.Visible)
	assert.Equal(t, childrenOnce, parentTwice.Children())
	assert.Equal(t, rootsOnce, w.Roots())
	assert.Equal(t, []protocol.ID{id(10)}, w.Roots())
	assert.True(t, twice.Capabilities.Has(CapMove))
}

func TestEntityUpdateLeavesAbsentFields(t *testing.T) {
	w, _, _, _ := newTestWorld(t)
	w.Apply([]protocol.Message{
		&protocol.EntityCreate{ID: id(1), EntityFields: protocol.EntityFields{
			Name: ptr("box"), Tags: []string{"x"}, Billboard: ptr(true),
		}},
		&protocol.EntityUpdate{ID: id(1), EntityFields: protocol.EntityFields{Visible: ptr(false)}},
	})

	e, ok := w.Entity(id(1))
	require.True(t, ok)
	assert.Equal(t, "box", e.Name)
	assert.Equal(t, []string{"x"}, e.Tags)
	assert.True(t, e.Billboard)
	assert.False(t, e.Visible)
}

func TestEntityMissingParentKeepsCurrent(t *testing.T) {
	w, _, _, _ := newTestWorld(t)
	w.Apply([]protocol.Message{
		&protocol.EntityCreate{ID: id(1)},
		&protocol.EntityUpdate{ID: id(1), EntityFields: protocol.EntityFields{Parent: ptr(id(99))}},
	})

	e, _ := w.Entity(id(1))
	assert.Equal(t, protocol.NullID, e.Parent)
	assert.Equal(t, []protocol.ID{id(1)}, w.Roots())
}

func TestEntityDeleteReattachesChildrenToRoot(t *testing.T) {
	w, r, _, _ := newTestWorld(t)
	w.Apply([]protocol.Message{
		&protocol.EntityCreate{ID: id(1)},
		&protocol.EntityCreate{ID: id(2), EntityFields: protocol.EntityFields{Parent: ptr(id(1))}},
		&protocol.EntityDelete{ID: id(1)},
	})

	child, ok := w.Entity(id(2))
	require.True(t, ok)
	assert.Equal(t, protocol.NullID, child.Parent)
	assert.Equal(t, []protocol.ID{id(2)}, w.Roots())
	assert.Equal(t, []protocol.ID{id(1)}, r.destroyed)
}

func TestEntityRepresentation(t *testing.T) {
	w, r, _, _ := newTestWorld(t)
	instances := floatBytes(
		1, 2, 3, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		-1, 0, 5, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	)
	w.Apply([]protocol.Message{
		&protocol.BufferCreate{ID: id(1), Bytes: append(floatBytes(0, 0, 0, 1, 1, 1), instances...)},
		&protocol.BufferViewCreate{ID: id(2), Source: id(1), Length: 24},
		&protocol.BufferViewCreate{ID: id(3), Source: id(1), Offset: 24, Length: 128},
		&protocol.GeometryCreate{ID: id(4), Patches: []protocol.GeometryPatch{{
			VertexCount: 2,
			Type:        protocol.PrimitiveLines,
			Material:    id(9),
			Attributes: []protocol.GeometryAttribute{
				{View: id(2), Semantic: protocol.SemanticPosition, Format: protocol.FormatVec3},
			},
		}}},
		&protocol.EntityCreate{ID: id(5), EntityFields: protocol.EntityFields{
			RenderRep: &protocol.RenderRep{Mesh: id(4), Instances: &protocol.InstanceSource{View: id(3)}},
		}},
	})

	e, ok := w.Entity(id(5))
	require.True(t, ok)
	require.NotNil(t, e.Rep)
	assert.Len(t, e.Rep.Instances, 2)
	require.NotNil(t, e.Rep.InstanceBounds)
	assert.Equal(t, mgl32.Vec3{-1, 0, 3}, e.Rep.InstanceBounds.Min)
	require.Len(t, r.geometries, 1)
	require.Len(t, r.geometries[0].Parts, 1)
	assert.Nil(t, r.geometries[0].Parts[0].Material, "missing material degrades")
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, r.geometries[0].Bounds.Max)

	w.Apply([]protocol.Message{&protocol.EntityUpdate{ID: id(5), EntityFields: protocol.EntityFields{NullRep: true}}})
	assert.Nil(t, e.Rep)
	assert.Equal(t, 1, r.reps)
	assert.Equal(t, 1, r.cleared)
}

func TestEntityRepresentationWithMissingGeometry(t *testing.T) {
	w, r, _, _ := newTestWorld(t)
	w.Apply([]protocol.Message{&protocol.EntityCreate{ID: id(5), EntityFields: protocol.EntityFields{
		RenderRep: &protocol.RenderRep{Mesh: id(4)},
	}}})

	e, ok := w.Entity(id(5))
	require.True(t, ok)
	assert.Nil(t, e.Rep)
	assert.Zero(t, r.reps)
}

func TestMaterialUpdateMergesAndRebuilds(t *testing.T) {
	w, r, _, _ := newTestWorld(t)
	w.Apply([]protocol.Message{
		&protocol.MaterialCreate{ID: id(1), MaterialFields: protocol.MaterialFields{Name: ptr("paint")}},
		&protocol.MaterialUpdate{ID: id(1), MaterialFields: protocol.MaterialFields{UseAlpha: ptr(true)}},
	})

	m, ok := w.Material(id(1))
	require.True(t, ok)
	assert.Equal(t, "paint", m.Name)
	assert.True(t, m.UseAlpha)
	assert.Equal(t, protocol.DefaultPBRInfo(), m.PBR)
	assert.Equal(t, 2, r.materials)
}

func TestMethodDeleteOnlyDropsOwnName(t *testing.T) {
	w, _, _, _ := newTestWorld(t)
	w.Apply([]protocol.Message{
		&protocol.MethodCreate{ID: id(1), Name: "ping"},
		&protocol.MethodCreate{ID: id(2), Name: "ping"},
		&protocol.MethodDelete{ID: id(1)},
	})

	m, ok := w.MethodByName("ping")
	require.True(t, ok)
	assert.Equal(t, id(2), m.ID)
}

func TestDocumentCapabilitiesDistinguishStepAndAnimate(t *testing.T) {
	w, _, o, _ := newTestWorld(t)
	w.Apply([]protocol.Message{
		&protocol.MethodCreate{ID: id(1), Name: "noo::animate_time"},
		&protocol.MethodCreate{ID: id(2), Name: "noo::step_time"},
		&protocol.DocumentUpdate{Methods: []protocol.ID{id(1), id(77)}},
	})

	caps := w.DocumentCapabilities()
	assert.True(t, caps.Has(DocAnimateTime))
	assert.False(t, caps.Has(DocStepTime))
	require.Len(t, o.summaries, 1)
	assert.Len(t, o.summaries[0].Methods, 1, "missing methods are skipped")

	w.Apply([]protocol.Message{&protocol.DocumentUpdate{Methods: []protocol.ID{id(2)}}})
	caps = w.DocumentCapabilities()
	assert.True(t, caps.Has(DocStepTime))
	assert.False(t, caps.Has(DocAnimateTime))
}

func TestEntityCapabilities(t *testing.T) {
	methods := []*Method{{Name: "noo::activate"}, {Name: "noo::set_rotation"}, {Name: "other"}}

	caps := EntityCapabilities(methods)

	assert.True(t, caps.Has(CapActivate))
	assert.True(t, caps.Has(CapRotate))
	assert.False(t, caps.Has(CapMove))
	assert.True(t, caps.Manipulable())
	assert.Equal(t, "activate|rotate", caps.String())
}

func TestSignalInvokeReachesObserver(t *testing.T) {
	w, _, o, _ := newTestWorld(t)
	w.Apply([]protocol.Message{
		&protocol.SignalCreate{ID: id(1), Name: "tick"},
		&protocol.SignalInvoke{Signal: id(1), Data: []any{"x"}},
		&protocol.SignalInvoke{Signal: id(2)},
	})

	require.Len(t, o.signals, 1)
	assert.Equal(t, "tick", o.signals[0].Signal.Name)
	assert.Equal(t, []any{"x"}, o.signals[0].Data)
}

func TestDocumentInitialized(t *testing.T) {
	w, _, o, _ := newTestWorld(t)
	w.Apply([]protocol.Message{&protocol.DocumentInitialized{}})

	assert.True(t, w.Initialized())
	assert.Equal(t, 1, o.initialized)
}

func TestResetClearsEverything(t *testing.T) {
	w, r, _, _ := newTestWorld(t)
	w.Apply([]protocol.Message{
		&protocol.MethodCreate{ID: id(1), Name: "noo::step_time"},
		&protocol.BufferCreate{ID: id(1), Bytes: []byte{1}},
		&protocol.EntityCreate{ID: id(1)},
		&protocol.LightCreate{ID: id(1)},
		&protocol.DocumentUpdate{Methods: []protocol.ID{id(1)}},
		&protocol.DocumentInitialized{},
		&protocol.DocumentReset{},
	})

	assert.Equal(t, Stats{}, w.Stats())
	assert.Zero(t, w.DocumentCapabilities())
	assert.False(t, w.Initialized())
	assert.Empty(t, w.Roots())
	_, ok := w.MethodByName("noo::step_time")
	assert.False(t, ok)
	assert.Equal(t, []protocol.ID{id(1)}, r.destroyed)
}

func TestClearKeepsBuffersAndMethods(t *testing.T) {
	w, _, _, _ := newTestWorld(t)
	w.Apply([]protocol.Message{
		&protocol.MethodCreate{ID: id(1), Name: "m"},
		&protocol.BufferCreate{ID: id(1), Bytes: []byte{1}},
		&protocol.EntityCreate{ID: id(1)},
		&protocol.MaterialCreate{ID: id(1)},
	})

	w.Clear()

	stats := w.Stats()
	assert.Equal(t, 1, stats.Methods)
	assert.Equal(t, 1, stats.Buffers)
	assert.Zero(t, stats.Entities)
	assert.Zero(t, stats.Materials)
}

func TestLightDefaultsAndSparseUpdate(t *testing.T) {
	w, _, _, _ := newTestWorld(t)
	spot := protocol.LightSpot
	w.Apply([]protocol.Message{
		&protocol.LightCreate{ID: id(1), LightFields: protocol.LightFields{Name: ptr("sun")}},
		&protocol.LightUpdate{ID: id(1), LightFields: protocol.LightFields{Type: &spot, Intensity: ptr(float32(3))}},
	})

	l, ok := w.Light(id(1))
	require.True(t, ok)
	assert.Equal(t, "sun", l.Name)
	assert.Equal(t, protocol.LightSpot, l.Type)
	assert.Equal(t, float32(3), l.Intensity)
	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, l.Color)
}

func TestHookPanicDoesNotStopBatch(t *testing.T) {
	w, r, _, _ := newTestWorld(t)
	r.panicOnBuild = true

	w.Apply([]protocol.Message{
		&protocol.GeometryCreate{ID: id(1)},
		&protocol.EntityCreate{ID: id(2)},
	})

	_, ok := w.Entity(id(2))
	assert.True(t, ok)
}

func TestPhysicsParsesStreamFlow(t *testing.T) {
	w, _, _, _ := newTestWorld(t)
	data := binary.LittleEndian.AppendUint32(nil, 0)
	data = binary.LittleEndian.AppendUint32(data, 2)
	data = append(data, floatBytes(0, 0, 0, 1, 1, 1)...)

	w.Apply([]protocol.Message{
		&protocol.BufferCreate{ID: id(1), Bytes: data},
		&protocol.BufferViewCreate{ID: id(1), Source: id(1), Length: uint64(len(data))},
		&protocol.PhysicsCreate{ID: id(1), Flow: &protocol.StreamFlow{LineCount: 1, Data: id(1)}},
		&protocol.PhysicsCreate{ID: id(2), Flow: &protocol.StreamFlow{LineCount: 5, Data: id(1)}},
		&protocol.EntityCreate{ID: id(1), EntityFields: protocol.EntityFields{Physics: []protocol.ID{id(9), id(2)}}},
	})

	good, _ := w.Physics(id(1))
	require.NotNil(t, good.Flow)
	assert.Len(t, good.Flow.Positions, 2)

	bad, ok := w.Physics(id(2))
	require.True(t, ok, "failed flow keeps the physics object")
	assert.Nil(t, bad.Flow)

	e, _ := w.Entity(id(1))
	assert.Same(t, bad, e.Physics, "first resolvable physics is attached")
}

func decodeInvoke(t *testing.T, frame []byte) map[any]any {
	t.Helper()
	var msg []any
	require.NoError(t, cbor.Unmarshal(frame, &msg))
	require.Len(t, msg, 2)
	assert.EqualValues(t, protocol.ClientInvokeMethod, msg[0])
	payload, ok := msg[1].(map[any]any)
	require.True(t, ok)
	return payload
}

func TestInvocationCorrelation(t *testing.T) {
	w, _, _, s := newTestWorld(t)
	var replies []Reply

	require.NoError(t, w.Invoke(id(3), nil, []any{1}, func(r Reply) { replies = append(replies, r) }))
	require.Equal(t, 1, w.PendingInvocations())
	token, _ := decodeInvoke(t, s.frames[0])["invoke_id"].(string)
	require.NotEmpty(t, token)

	w.Apply([]protocol.Message{&protocol.MethodReply{InvokeID: "not-" + token, Result: "x"}})
	assert.Equal(t, 1, w.PendingInvocations())
	assert.Empty(t, replies)

	w.Apply([]protocol.Message{&protocol.MethodReply{InvokeID: token, Result: "ok"}})
	w.Apply([]protocol.Message{&protocol.MethodReply{InvokeID: token, Result: "again"}})
	assert.Zero(t, w.PendingInvocations())
	require.Len(t, replies, 1)
	assert.Equal(t, "ok", replies[0].Result)
	assert.NoError(t, replies[0].Err())
}

func TestInvokeWithoutCallbackSendsNoToken(t *testing.T) {
	w, _, _, s := newTestWorld(t)

	require.NoError(t, w.Invoke(id(3), &protocol.InvokeContext{Entity: ptr(id(4))}, nil, nil))

	payload := decodeInvoke(t, s.frames[0])
	assert.NotContains(t, payload, "invoke_id")
	assert.Contains(t, payload, "context")
	assert.Zero(t, w.PendingInvocations())
}

func TestInvocationTimeout(t *testing.T) {
	w, _, _, _ := newTestWorld(t)
	var got []Reply
	require.NoError(t, w.Invoke(id(1), nil, nil, func(r Reply) { got = append(got, r) }))

	assert.Zero(t, w.SweepInvocations(time.Now()))
	assert.Equal(t, 1, w.SweepInvocations(time.Now().Add(2*time.Minute)))
	assert.Zero(t, w.SweepInvocations(time.Now().Add(4*time.Minute)))

	require.Len(t, got, 1)
	require.NotNil(t, got[0].Exception)
	assert.Equal(t, TimeoutExceptionCode, got[0].Exception.Code)
}

func TestCorrelatorCap(t *testing.T) {
	c := NewCorrelator(2, time.Minute, log.NewNop())
	noop := func(Reply) {}

	_, err := c.Track(id(1), noop)
	require.NoError(t, err)
	_, err = c.Track(id(1), noop)
	require.NoError(t, err)
	_, err = c.Track(id(1), noop)
	assert.ErrorIs(t, err, ErrTooManyPending)
}

func TestInvokeByName(t *testing.T) {
	w, _, _, s := newTestWorld(t)
	w.Apply([]protocol.Message{
		&protocol.MethodCreate{ID: id(1), Name: "noo::activate"},
		&protocol.MethodCreate{ID: id(2), Name: "global"},
		&protocol.EntityCreate{ID: id(5), EntityFields: protocol.EntityFields{Methods: []protocol.ID{id(1)}}},
	})
	entity := &protocol.InvokeContext{Entity: ptr(id(5))}

	require.NoError(t, w.InvokeByName("noo::activate", entity, nil, nil))
	assert.ErrorIs(t, w.InvokeByName("global", entity, nil, nil), ErrMethodNotFound)
	require.NoError(t, w.InvokeByName("global", nil, nil, nil), "document scope falls back to the name table")
	assert.ErrorIs(t, w.InvokeByName("nope", nil, nil, nil), ErrMethodNotFound)
	assert.Len(t, s.frames, 2)
}

func TestSetAvailableReachesRenderer(t *testing.T) {
	w, r, _, _ := newTestWorld(t)

	w.SetAvailable(false)

	require.NotNil(t, r.available)
	assert.False(t, *r.available)
}
