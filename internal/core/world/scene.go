package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
)

type Light struct {
	ID        protocol.ID
	Name      string
	Color     mgl32.Vec4
	Intensity float32
	Type      protocol.LightKind
	// Range is negative for an unbounded light.
	Range     float32
	InnerCone float32
	OuterCone float32
}

func newLight(id protocol.ID) *Light {
	return &Light{
		ID:        id,
		Color:     mgl32.Vec4{1, 1, 1, 1},
		Intensity: 1,
		Type:      protocol.LightPoint,
		Range:     -1,
		OuterCone: math.Pi / 4,
	}
}

func (*Light) Create(*World)  {}
func (*Light) Destroy(*World) {}

func (w *World) updateLight(id protocol.ID, f protocol.LightFields) {
	l, ok := w.lights.Get(id)
	if !ok {
		w.logger.Warn("update for unknown light", log.Stringer("id", id))
		return
	}
	if f.Name != nil {
		l.Name = *f.Name
	}
	if f.Color != nil {
		l.Color = *f.Color
	}
	if f.Intensity != nil {
		l.Intensity = *f.Intensity
	}
	if f.Type != nil {
		l.Type = *f.Type
	}
	if f.Range != nil {
		l.Range = *f.Range
	}
	if f.InnerCone != nil {
		l.InnerCone = *f.InnerCone
	}
	if f.OuterCone != nil {
		l.OuterCone = *f.OuterCone
	}
}

type Plot struct {
	ID         protocol.ID
	Name       string
	Table      *protocol.ID
	SimplePlot string
	URLPlot    string
	Methods    []*Method
	Signals    []*Signal
}

func (*Plot) Create(*World)  {}
func (*Plot) Destroy(*World) {}

func (w *World) updatePlot(id protocol.ID, f protocol.PlotFields) {
	p, ok := w.plots.Get(id)
	if !ok {
		w.logger.Warn("update for unknown plot", log.Stringer("id", id))
		return
	}
	if f.Name != nil {
		p.Name = *f.Name
	}
	if f.Table != nil {
		table := *f.Table
		p.Table = &table
	}
	if f.SimplePlot != nil {
		p.SimplePlot = *f.SimplePlot
		p.URLPlot = ""
	}
	if f.URLPlot != nil {
		p.URLPlot = *f.URLPlot
		p.SimplePlot = ""
	}
	if f.Methods != nil {
		p.Methods = w.resolveMethods(f.Methods)
	}
	if f.Signals != nil {
		p.Signals = w.resolveSignals(f.Signals)
	}
}

type Table struct {
	ID      protocol.ID
	Name    string
	Meta    string
	Methods []*Method
	Signals []*Signal
}

func (*Table) Create(*World)  {}
func (*Table) Destroy(*World) {}

func (w *World) updateTable(id protocol.ID, f protocol.TableFields) {
	t, ok := w.tables.Get(id)
	if !ok {
		w.logger.Warn("update for unknown table", log.Stringer("id", id))
		return
	}
	if f.Name != nil {
		t.Name = *f.Name
	}
	if f.Meta != nil {
		t.Meta = *f.Meta
	}
	if f.Methods != nil {
		t.Methods = w.resolveMethods(f.Methods)
	}
	if f.Signals != nil {
		t.Signals = w.resolveSignals(f.Signals)
	}
}
