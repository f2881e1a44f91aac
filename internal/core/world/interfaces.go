package world

import (
	"errors"

	"github.com/zeusync/noodles/internal/core/protocol"
)

var (
	ErrMethodNotFound  = errors.New("method not found")
	ErrTooManyPending  = errors.New("too many pending invocations")
	ErrNoSender        = errors.New("world has no sender")
	ErrViewOutOfRange  = errors.New("buffer view range out of bounds")
	ErrViewUnavailable = errors.New("buffer view has no data")
)

// Renderer receives scene changes from the world. Every call happens on the
// single writer goroutine; implementations must not call back into the world
// from another goroutine.
type Renderer interface {
	// Entities

	EntityChanged(e *Entity)
	EntityDestroyed(e *Entity)
	RepresentationBuilt(e *Entity, rep *Representation)
	RepresentationCleared(e *Entity)

	// Resources

	GeometryBuilt(g *Geometry)
	GeometryDestroyed(g *Geometry)
	MaterialBuilt(m *Material)
	MaterialDestroyed(m *Material)
	ImageCreated(img *Image)
	ImageDestroyed(img *Image)

	// Availability

	SetAvailable(available bool)
}

// Observer is the UI side of the world: document-level summaries and signals.
type Observer interface {
	DocumentUpdated(summary DocumentSummary)
	DocumentInitialized()
	SignalInvoked(event SignalEvent)
}

// Hooks count world activity for an observability sink.
type Hooks interface {
	MessageApplied(kind protocol.MessageKind)
	PendingInvocations(n int)
}

// Sender delivers an encoded client message to the server.
type Sender interface {
	Send(data []byte) error
}

type DocumentSummary struct {
	Methods      []MethodInfo
	Signals      []SignalInfo
	Capabilities DocumentCapability
	Initialized  bool
}

type MethodInfo struct {
	ID   protocol.ID
	Name string
	Doc  string
}

type SignalInfo struct {
	ID   protocol.ID
	Name string
}

// SignalEvent is a resolved signal_invoke. Context is nil for document scope.
type SignalEvent struct {
	Signal  *Signal
	Context *protocol.InvokeContext
	Data    []any
}

// NopRenderer ignores everything. Embed it to implement only some hooks.
type NopRenderer struct{}

func (NopRenderer) EntityChanged(*Entity)                        {}
func (NopRenderer) EntityDestroyed(*Entity)                      {}
func (NopRenderer) RepresentationBuilt(*Entity, *Representation) {}
func (NopRenderer) RepresentationCleared(*Entity)                {}
func (NopRenderer) GeometryBuilt(*Geometry)                      {}
func (NopRenderer) GeometryDestroyed(*Geometry)                  {}
func (NopRenderer) MaterialBuilt(*Material)                      {}
func (NopRenderer) MaterialDestroyed(*Material)                  {}
func (NopRenderer) ImageCreated(*Image)                          {}
func (NopRenderer) ImageDestroyed(*Image)                        {}
func (NopRenderer) SetAvailable(bool)                            {}

type NopObserver struct{}

func (NopObserver) DocumentUpdated(DocumentSummary) {}
func (NopObserver) DocumentInitialized()            {}
func (NopObserver) SignalInvoked(SignalEvent)       {}

type nopHooks struct{}

func (nopHooks) MessageApplied(protocol.MessageKind) {}
func (nopHooks) PendingInvocations(int)              {}
