package world

import (
	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
)

type Method struct {
	ID        protocol.ID
	Name      string
	Doc       string
	ReturnDoc string
	Args      []protocol.MethodArg
}

func newMethod(m *protocol.MethodCreate) *Method {
	return &Method{ID: m.ID, Name: m.Name, Doc: m.Doc, ReturnDoc: m.ReturnDoc, Args: m.Args}
}

func (m *Method) Create(w *World) {
	if prev, ok := w.methodNames[m.Name]; ok && prev.ID != m.ID {
		w.logger.Debug("method name rebound",
			log.String("name", m.Name), log.Stringer("old", prev.ID), log.Stringer("new", m.ID))
	}
	w.methodNames[m.Name] = m
}

func (m *Method) Destroy(w *World) {
	if w.methodNames[m.Name] == m {
		delete(w.methodNames, m.Name)
	}
}

type Signal struct {
	ID   protocol.ID
	Name string
	Doc  string
	Args []protocol.MethodArg
}

func newSignal(m *protocol.SignalCreate) *Signal {
	return &Signal{ID: m.ID, Name: m.Name, Doc: m.Doc, Args: m.Args}
}

func (*Signal) Create(*World)  {}
func (*Signal) Destroy(*World) {}

// resolveMethods drops ids that are not registered.
func (w *World) resolveMethods(ids []protocol.ID) []*Method {
	out := make([]*Method, 0, len(ids))
	for _, id := range ids {
		m, ok := w.methods.Get(id)
		if !ok {
			w.logger.Warn("missing method", log.Stringer("id", id))
			continue
		}
		out = append(out, m)
	}
	return out
}

func (w *World) resolveSignals(ids []protocol.ID) []*Signal {
	out := make([]*Signal, 0, len(ids))
	for _, id := range ids {
		s, ok := w.signals.Get(id)
		if !ok {
			w.logger.Warn("missing signal", log.Stringer("id", id))
			continue
		}
		out = append(out, s)
	}
	return out
}

func (w *World) updateDocument(m *protocol.DocumentUpdate) {
	if m.Methods != nil {
		w.docMethods = w.resolveMethods(m.Methods)
		w.docCapabilities = DocumentCapabilities(w.docMethods)
	}
	if m.Signals != nil {
		w.docSignals = w.resolveSignals(m.Signals)
	}
	w.observer.DocumentUpdated(w.Summary())
}

// Summary describes the document-level methods and signals.
func (w *World) Summary() DocumentSummary {
	s := DocumentSummary{
		Methods:      make([]MethodInfo, 0, len(w.docMethods)),
		Signals:      make([]SignalInfo, 0, len(w.docSignals)),
		Capabilities: w.docCapabilities,
		Initialized:  w.initialized,
	}
	for _, m := range w.docMethods {
		s.Methods = append(s.Methods, MethodInfo{ID: m.ID, Name: m.Name, Doc: m.Doc})
	}
	for _, sig := range w.docSignals {
		s.Signals = append(s.Signals, SignalInfo{ID: sig.ID, Name: sig.Name})
	}
	return s
}

func (w *World) invokeSignal(m *protocol.SignalInvoke) {
	sig, ok := w.signals.Get(m.Signal)
	if !ok {
		w.logger.Warn("invoke of unknown signal", log.Stringer("id", m.Signal))
		return
	}
	w.observer.SignalInvoked(SignalEvent{Signal: sig, Context: m.Context, Data: m.Data})
}
