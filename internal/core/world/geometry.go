package world

import (
	"github.com/zeusync/noodles/internal/core/flow"
	"github.com/zeusync/noodles/internal/core/geometry"
	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
)

// Part is one decoded patch with its material resolved.
type Part struct {
	Mesh     *geometry.Mesh
	Material *Material
}

type Geometry struct {
	ID      protocol.ID
	Name    string
	Patches []protocol.GeometryPatch
	Parts   []Part
	Bounds  protocol.BoundingBox
}

func newGeometry(m *protocol.GeometryCreate) *Geometry {
	return &Geometry{ID: m.ID, Name: m.Name, Patches: m.Patches}
}

func (g *Geometry) Create(w *World) {
	g.Parts = make([]Part, 0, len(g.Patches))
	for i, patch := range g.Patches {
		mesh, err := geometry.DecodePatch(w, patch, w.logger)
		if err != nil {
			w.logger.Warn("patch skipped",
				log.Stringer("geometry", g.ID), log.Int("patch", i), log.Error(err))
			continue
		}
		part := Part{Mesh: mesh}
		if mat, ok := w.materials.Get(patch.Material); ok {
			part.Material = mat
		} else {
			w.logger.Warn("missing patch material",
				log.Stringer("geometry", g.ID), log.Stringer("material", patch.Material))
		}
		if len(g.Parts) == 0 {
			g.Bounds = mesh.Bounds
		} else {
			g.Bounds = geometry.Union(g.Bounds, mesh.Bounds)
		}
		g.Parts = append(g.Parts, part)
	}
	w.renderer.GeometryBuilt(g)
}

func (g *Geometry) Destroy(w *World) {
	w.renderer.GeometryDestroyed(g)
}

type Physics struct {
	ID     protocol.ID
	Name   string
	Type   string
	Header *protocol.StreamFlow
	// Flow is nil when there is no stream flow or it failed to parse.
	Flow *flow.Field
}

func newPhysics(m *protocol.PhysicsCreate) *Physics {
	return &Physics{ID: m.ID, Name: m.Name, Type: m.Type, Header: m.Flow}
}

func (p *Physics) Create(w *World) {
	if p.Header == nil {
		return
	}
	view, ok := w.views.Get(p.Header.Data)
	if !ok {
		w.logger.Warn("missing stream flow view",
			log.Stringer("physics", p.ID), log.Stringer("view", p.Header.Data))
		return
	}
	data, err := view.Slice(p.Header.Offset)
	if err != nil {
		w.logger.Warn("stream flow view unreadable", log.Stringer("physics", p.ID), log.Error(err))
		return
	}
	field, err := flow.Parse(data, *p.Header)
	if err != nil {
		w.logger.Warn("stream flow rejected", log.Stringer("physics", p.ID), log.Error(err))
		return
	}
	p.Flow = field
}

func (*Physics) Destroy(*World) {}
