// Package world is the client-side replica of a scene document. A World is
// owned by one writer goroutine which applies decoded server messages in
// arrival order; nothing in this package is safe for concurrent use.
package world

import (
	"fmt"
	"sort"
	"time"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
	"github.com/zeusync/noodles/internal/core/registry"
)

type Config struct {
	MaxPending int
	PendingTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxPending: 1024,
		PendingTTL: 60 * time.Second,
	}
}

type Option func(*World)

func WithRenderer(r Renderer) Option {
	return func(w *World) {
		if r != nil {
			w.renderer = r
		}
	}
}

func WithObserver(o Observer) Option {
	return func(w *World) {
		if o != nil {
			w.observer = o
		}
	}
}

func WithHooks(h Hooks) Option {
	return func(w *World) {
		if h != nil {
			w.hooks = h
		}
	}
}

func WithSender(s Sender) Option {
	return func(w *World) {
		w.sender = s
	}
}

type World struct {
	config   Config
	logger   log.Log
	renderer Renderer
	observer Observer
	hooks    Hooks
	sender   Sender

	methods    *registry.Registry[*World, *Method]
	signals    *registry.Registry[*World, *Signal]
	entities   *registry.Registry[*World, *Entity]
	plots      *registry.Registry[*World, *Plot]
	buffers    *registry.Registry[*World, *Buffer]
	views      *registry.Registry[*World, *BufferView]
	materials  *registry.Registry[*World, *Material]
	images     *registry.Registry[*World, *Image]
	textures   *registry.Registry[*World, *Texture]
	samplers   *registry.Registry[*World, *Sampler]
	lights     *registry.Registry[*World, *Light]
	geometries *registry.Registry[*World, *Geometry]
	tables     *registry.Registry[*World, *Table]
	physics    *registry.Registry[*World, *Physics]

	methodNames map[string]*Method
	roots       map[protocol.ID]struct{}

	docMethods      []*Method
	docSignals      []*Signal
	docCapabilities DocumentCapability
	initialized     bool

	pending *Correlator
}

func New(config Config, logger log.Log, opts ...Option) *World {
	if logger == nil {
		logger = log.Provide()
	}
	w := &World{
		config:      config,
		logger:      logger.With(log.Component("world")),
		renderer:    NopRenderer{},
		observer:    NopObserver{},
		hooks:       nopHooks{},
		methodNames: make(map[string]*Method),
		roots:       make(map[protocol.ID]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.methods = registry.New[*World, *Method]("method", w, w.logger)
	w.signals = registry.New[*World, *Signal]("signal", w, w.logger)
	w.entities = registry.New[*World, *Entity]("entity", w, w.logger)
	w.plots = registry.New[*World, *Plot]("plot", w, w.logger)
	w.buffers = registry.New[*World, *Buffer]("buffer", w, w.logger)
	w.views = registry.New[*World, *BufferView]("buffer_view", w, w.logger)
	w.materials = registry.New[*World, *Material]("material", w, w.logger)
	w.images = registry.New[*World, *Image]("image", w, w.logger)
	w.textures = registry.New[*World, *Texture]("texture", w, w.logger)
	w.samplers = registry.New[*World, *Sampler]("sampler", w, w.logger)
	w.lights = registry.New[*World, *Light]("light", w, w.logger)
	w.geometries = registry.New[*World, *Geometry]("geometry", w, w.logger)
	w.tables = registry.New[*World, *Table]("table", w, w.logger)
	w.physics = registry.New[*World, *Physics]("physics", w, w.logger)

	w.pending = NewCorrelator(config.MaxPending, config.PendingTTL, w.logger)
	return w
}

func (w *World) SetSender(s Sender) {
	w.sender = s
}

// Apply applies messages in order. A panic inside a collaborator hook is
// logged and the remaining messages still apply.
func (w *World) Apply(messages []protocol.Message) {
	for _, msg := range messages {
		w.applyOne(msg)
	}
}

func (w *World) applyOne(msg protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("apply panicked",
				log.Stringer("kind", msg.Kind()),
				log.String("panic", fmt.Sprint(r)))
		}
	}()
	w.apply(msg)
	w.hooks.MessageApplied(msg.Kind())
}

func (w *World) apply(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.MethodCreate:
		w.set(w.methods.Set(m.ID, newMethod(m)), m)
	case *protocol.MethodDelete:
		w.erase(w.methods.Erase(m.ID), m, m.ID)
	case *protocol.SignalCreate:
		w.set(w.signals.Set(m.ID, newSignal(m)), m)
	case *protocol.SignalDelete:
		w.erase(w.signals.Erase(m.ID), m, m.ID)

	case *protocol.EntityCreate:
		w.set(w.entities.Set(m.ID, newEntity(m)), m)
	case *protocol.EntityUpdate:
		e, ok := w.entities.Get(m.ID)
		if !ok {
			w.logger.Warn("update for unknown entity", log.Stringer("id", m.ID))
			return
		}
		e.apply(w, m.EntityFields)
	case *protocol.EntityDelete:
		w.erase(w.entities.Erase(m.ID), m, m.ID)

	case *protocol.PlotCreate:
		w.set(w.plots.Set(m.ID, &Plot{ID: m.ID}), m)
		w.updatePlot(m.ID, m.PlotFields)
	case *protocol.PlotUpdate:
		w.updatePlot(m.ID, m.PlotFields)
	case *protocol.PlotDelete:
		w.erase(w.plots.Erase(m.ID), m, m.ID)

	case *protocol.BufferCreate:
		w.set(w.buffers.Set(m.ID, newBuffer(m)), m)
	case *protocol.BufferDelete:
		w.erase(w.buffers.Erase(m.ID), m, m.ID)
	case *protocol.BufferViewCreate:
		w.set(w.views.Set(m.ID, newBufferView(m)), m)
	case *protocol.BufferViewDelete:
		w.erase(w.views.Erase(m.ID), m, m.ID)

	case *protocol.MaterialCreate:
		w.set(w.materials.Set(m.ID, newMaterial(m)), m)
	case *protocol.MaterialUpdate:
		mat, ok := w.materials.Get(m.ID)
		if !ok {
			w.logger.Warn("update for unknown material", log.Stringer("id", m.ID))
			return
		}
		mat.update(w, m.MaterialFields)
	case *protocol.MaterialDelete:
		w.erase(w.materials.Erase(m.ID), m, m.ID)

	case *protocol.ImageCreate:
		w.set(w.images.Set(m.ID, newImage(m)), m)
	case *protocol.ImageDelete:
		w.erase(w.images.Erase(m.ID), m, m.ID)
	case *protocol.TextureCreate:
		w.set(w.textures.Set(m.ID, newTexture(m)), m)
	case *protocol.TextureDelete:
		w.erase(w.textures.Erase(m.ID), m, m.ID)
	case *protocol.SamplerCreate:
		w.set(w.samplers.Set(m.ID, newSampler(m)), m)
	case *protocol.SamplerDelete:
		w.erase(w.samplers.Erase(m.ID), m, m.ID)

	case *protocol.LightCreate:
		w.set(w.lights.Set(m.ID, newLight(m.ID)), m)
		w.updateLight(m.ID, m.LightFields)
	case *protocol.LightUpdate:
		w.updateLight(m.ID, m.LightFields)
	case *protocol.LightDelete:
		w.erase(w.lights.Erase(m.ID), m, m.ID)

	case *protocol.GeometryCreate:
		w.set(w.geometries.Set(m.ID, newGeometry(m)), m)
	case *protocol.GeometryDelete:
		w.erase(w.geometries.Erase(m.ID), m, m.ID)

	case *protocol.TableCreate:
		w.set(w.tables.Set(m.ID, &Table{ID: m.ID}), m)
		w.updateTable(m.ID, m.TableFields)
	case *protocol.TableUpdate:
		w.updateTable(m.ID, m.TableFields)
	case *protocol.TableDelete:
		w.erase(w.tables.Erase(m.ID), m, m.ID)

	case *protocol.PhysicsCreate:
		w.set(w.physics.Set(m.ID, newPhysics(m)), m)
	case *protocol.PhysicsDelete:
		w.erase(w.physics.Erase(m.ID), m, m.ID)

	case *protocol.DocumentUpdate:
		w.updateDocument(m)
	case *protocol.DocumentReset:
		w.Reset()
	case *protocol.SignalInvoke:
		w.invokeSignal(m)
	case *protocol.MethodReply:
		w.pending.Resolve(m)
		w.hooks.PendingInvocations(w.pending.Len())
	case *protocol.DocumentInitialized:
		w.initialized = true
		w.observer.DocumentInitialized()

	default:
		w.logger.Warn("unhandled message", log.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (w *World) set(err error, msg protocol.Message) {
	if err != nil {
		w.logger.Warn("create rejected", log.Stringer("kind", msg.Kind()), log.Error(err))
	}
}

func (w *World) erase(err error, msg protocol.Message, id protocol.ID) {
	if err != nil {
		w.logger.Warn("delete ignored",
			log.Stringer("kind", msg.Kind()), log.Stringer("id", id), log.Error(err))
	}
}

// Reset forgets the whole document, tearing registries down in reverse
// dependency order.
func (w *World) Reset() {
	w.entities.Clear()
	w.roots = make(map[protocol.ID]struct{})
	w.physics.Clear()
	w.methods.Clear()
	w.signals.Clear()
	w.plots.Clear()
	w.tables.Clear()
	w.lights.Clear()
	w.geometries.Clear()
	w.materials.Clear()
	w.textures.Clear()
	w.samplers.Clear()
	w.images.Clear()
	w.views.Clear()
	w.buffers.Clear()

	w.methodNames = make(map[string]*Method)
	w.docMethods = nil
	w.docSignals = nil
	w.docCapabilities = 0
	w.initialized = false
}

// Clear drops visible content (entities, materials, geometry, textures and
// images) but keeps buffers, methods and the document state.
func (w *World) Clear() {
	w.entities.Clear()
	w.roots = make(map[protocol.ID]struct{})
	w.geometries.Clear()
	w.materials.Clear()
	w.textures.Clear()
	w.images.Clear()
}

// SetAvailable forwards the primary/fallback toggle to the renderer.
func (w *World) SetAvailable(available bool) {
	w.renderer.SetAvailable(available)
}

func (w *World) Initialized() bool {
	return w.initialized
}

func (w *World) DocumentCapabilities() DocumentCapability {
	return w.docCapabilities
}

func (w *World) Entity(id protocol.ID) (*Entity, bool)         { return w.entities.Get(id) }
func (w *World) Method(id protocol.ID) (*Method, bool)         { return w.methods.Get(id) }
func (w *World) Signal(id protocol.ID) (*Signal, bool)         { return w.signals.Get(id) }
func (w *World) Plot(id protocol.ID) (*Plot, bool)             { return w.plots.Get(id) }
func (w *World) Buffer(id protocol.ID) (*Buffer, bool)         { return w.buffers.Get(id) }
func (w *World) BufferView(id protocol.ID) (*BufferView, bool) { return w.views.Get(id) }
func (w *World) Material(id protocol.ID) (*Material, bool)     { return w.materials.Get(id) }
func (w *World) Image(id protocol.ID) (*Image, bool)           { return w.images.Get(id) }
func (w *World) Texture(id protocol.ID) (*Texture, bool)       { return w.textures.Get(id) }
func (w *World) Sampler(id protocol.ID) (*Sampler, bool)       { return w.samplers.Get(id) }
func (w *World) Light(id protocol.ID) (*Light, bool)           { return w.lights.Get(id) }
func (w *World) Geometry(id protocol.ID) (*Geometry, bool)     { return w.geometries.Get(id) }
func (w *World) Table(id protocol.ID) (*Table, bool)           { return w.tables.Get(id) }
func (w *World) Physics(id protocol.ID) (*Physics, bool)       { return w.physics.Get(id) }

// MethodByName looks a method up in the global name table.
func (w *World) MethodByName(name string) (*Method, bool) {
	m, ok := w.methodNames[name]
	return m, ok
}

// Roots lists top-level entities in slot order.
func (w *World) Roots() []protocol.ID {
	return sortedIDs(w.roots)
}

// ViewBytes returns the full range of a buffer view. It lets the geometry
// decoder read attributes straight out of the registries.
func (w *World) ViewBytes(id protocol.ID) ([]byte, error) {
	v, ok := w.views.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: view %s", ErrViewUnavailable, id)
	}
	return v.Slice(0)
}

// Stats counts live objects per kind.
type Stats struct {
	Entities   int
	Methods    int
	Signals    int
	Buffers    int
	Views      int
	Geometries int
	Materials  int
	Images     int
	Textures   int
	Samplers   int
	Lights     int
	Tables     int
	Plots      int
	Physics    int
	Pending    int
}

func (w *World) Stats() Stats {
	return Stats{
		Entities:   w.entities.Len(),
		Methods:    w.methods.Len(),
		Signals:    w.signals.Len(),
		Buffers:    w.buffers.Len(),
		Views:      w.views.Len(),
		Geometries: w.geometries.Len(),
		Materials:  w.materials.Len(),
		Images:     w.images.Len(),
		Textures:   w.textures.Len(),
		Samplers:   w.samplers.Len(),
		Lights:     w.lights.Len(),
		Tables:     w.tables.Len(),
		Plots:      w.plots.Len(),
		Physics:    w.physics.Len(),
		Pending:    w.pending.Len(),
	}
}

func sortedIDs(set map[protocol.ID]struct{}) []protocol.ID {
	ids := make([]protocol.ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Slot != ids[j].Slot {
			return ids[i].Slot < ids[j].Slot
		}
		return ids[i].Gen < ids[j].Gen
	})
	return ids
}
