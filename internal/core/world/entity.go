package world

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/noodles/internal/core/geometry"
	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
)

// Representation is what a renderer draws for an entity: a geometry, possibly
// instanced.
type Representation struct {
	Geometry       *Geometry
	Instances      []mgl32.Mat4
	InstanceBounds *protocol.BoundingBox
}

type Entity struct {
	ID protocol.ID

	Name      string
	Parent    protocol.ID
	Transform mgl32.Mat4
	Visible   bool
	Billboard bool
	Tags      []string

	Rep          *Representation
	Methods      []*Method
	Signals      []*Signal
	Capabilities Capability
	Lights       []protocol.ID
	Tables       []protocol.ID
	Plots        []protocol.ID
	Physics      *Physics

	children map[protocol.ID]struct{}
	initial  protocol.EntityFields
}

func newEntity(m *protocol.EntityCreate) *Entity {
	return &Entity{
		ID:        m.ID,
		Parent:    protocol.NullID,
		Transform: mgl32.Ident4(),
		Visible:   true,
		children:  make(map[protocol.ID]struct{}),
		initial:   m.EntityFields,
	}
}

// Children lists direct children in slot order.
func (e *Entity) Children() []protocol.ID {
	return sortedIDs(e.children)
}

func (e *Entity) Create(w *World) {
	w.roots[e.ID] = struct{}{}
	e.apply(w, e.initial)
	e.initial = protocol.EntityFields{}
}

func (e *Entity) Destroy(w *World) {
	w.renderer.EntityDestroyed(e)
	e.clearRepresentation(w)
	e.detach(w)
	for _, id := range e.Children() {
		child, ok := w.entities.Get(id)
		if !ok {
			continue
		}
		child.Parent = protocol.NullID
		w.roots[child.ID] = struct{}{}
		w.renderer.EntityChanged(child)
	}
	e.children = make(map[protocol.ID]struct{})
}

// apply overwrites every field present in f and leaves the rest alone.
func (e *Entity) apply(w *World, f protocol.EntityFields) {
	if f.Name != nil {
		e.Name = *f.Name
	}
	if f.Parent != nil {
		e.reparent(w, *f.Parent)
	}
	if f.Transform != nil {
		e.Transform = *f.Transform
	}

	if f.NullRep {
		e.clearRepresentation(w)
	} else if f.RenderRep != nil {
		e.buildRepresentation(w, *f.RenderRep)
	}

	if f.Methods != nil {
		e.Methods = w.resolveMethods(f.Methods)
		e.Capabilities = EntityCapabilities(e.Methods)
	}
	if f.Signals != nil {
		e.Signals = w.resolveSignals(f.Signals)
	}
	if f.Lights != nil {
		e.Lights = f.Lights
	}
	if f.Tables != nil {
		e.Tables = f.Tables
	}
	if f.Plots != nil {
		e.Plots = f.Plots
	}
	if f.Tags != nil {
		e.Tags = f.Tags
	}
	if f.Physics != nil {
		e.attachPhysics(w, f.Physics)
	}
	if f.Visible != nil {
		e.Visible = *f.Visible
	}
	if f.Billboard != nil {
		e.Billboard = *f.Billboard
	}

	w.renderer.EntityChanged(e)
}

func (e *Entity) reparent(w *World, parent protocol.ID) {
	if !parent.Valid() {
		e.detach(w)
		e.Parent = protocol.NullID
		w.roots[e.ID] = struct{}{}
		return
	}
	if parent == e.ID {
		w.logger.Warn("entity cannot parent itself", log.Stringer("id", e.ID))
		return
	}
	p, ok := w.entities.Get(parent)
	if !ok {
		w.logger.Warn("missing parent entity",
			log.Stringer("id", e.ID), log.Stringer("parent", parent))
		return
	}
	e.detach(w)
	e.Parent = parent
	p.children[e.ID] = struct{}{}
}

func (e *Entity) detach(w *World) {
	delete(w.roots, e.ID)
	if !e.Parent.Valid() {
		return
	}
	if p, ok := w.entities.Get(e.Parent); ok {
		delete(p.children, e.ID)
	}
}

func (e *Entity) clearRepresentation(w *World) {
	if e.Rep == nil {
		return
	}
	e.Rep = nil
	w.renderer.RepresentationCleared(e)
}

// buildRepresentation always tears the old representation down first.
func (e *Entity) buildRepresentation(w *World, rep protocol.RenderRep) {
	e.clearRepresentation(w)

	g, ok := w.geometries.Get(rep.Mesh)
	if !ok {
		w.logger.Warn("missing geometry for representation",
			log.Stringer("entity", e.ID), log.Stringer("geometry", rep.Mesh))
		return
	}
	r := &Representation{Geometry: g}
	if rep.Instances != nil {
		r.Instances, r.InstanceBounds = w.instances(e.ID, *rep.Instances)
	}
	e.Rep = r
	w.renderer.RepresentationBuilt(e, r)
}

func (w *World) instances(owner protocol.ID, src protocol.InstanceSource) ([]mgl32.Mat4, *protocol.BoundingBox) {
	view, ok := w.views.Get(src.View)
	if !ok {
		w.logger.Warn("missing instance view",
			log.Stringer("entity", owner), log.Stringer("view", src.View))
		return nil, nil
	}
	data, err := view.Slice(0)
	if err != nil {
		w.logger.Warn("instance view unreadable", log.Stringer("entity", owner), log.Error(err))
		return nil, nil
	}
	inst, err := geometry.DecodeInstances(data, src.Stride)
	if err != nil {
		w.logger.Warn("instances skipped", log.Stringer("entity", owner), log.Error(err))
		return nil, nil
	}
	if src.Bounds != nil {
		box := *src.Bounds
		return inst, &box
	}
	if box, ok := geometry.InstanceBounds(inst); ok {
		return inst, &box
	}
	return inst, nil
}

func (e *Entity) attachPhysics(w *World, ids []protocol.ID) {
	e.Physics = nil
	for _, id := range ids {
		if p, ok := w.physics.Get(id); ok {
			e.Physics = p
			return
		}
		w.logger.Warn("missing physics", log.Stringer("entity", e.ID), log.Stringer("physics", id))
	}
}
