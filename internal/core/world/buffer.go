package world

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
)

type Buffer struct {
	ID    protocol.ID
	Name  string
	Size  uint64
	URI   string
	Bytes []byte
	// Fingerprint is the xxhash of Bytes; renderers key uploads by it.
	Fingerprint uint64
}

func newBuffer(m *protocol.BufferCreate) *Buffer {
	return &Buffer{ID: m.ID, Name: m.Name, Size: m.Size, URI: m.URI, Bytes: m.Bytes}
}

func (b *Buffer) Create(w *World) {
	b.Fingerprint = xxhash.Sum64(b.Bytes)
	switch {
	case len(b.Bytes) == 0 && b.URI != "":
		w.logger.Warn("buffer has no bytes", log.Stringer("id", b.ID), log.String("uri", b.URI))
	case b.Size != 0 && uint64(len(b.Bytes)) < b.Size:
		w.logger.Warn("buffer shorter than declared",
			log.Stringer("id", b.ID), log.Uint64("size", b.Size), log.Int("bytes", len(b.Bytes)))
	}
}

func (*Buffer) Destroy(*World) {}

type BufferView struct {
	ID     protocol.ID
	Name   string
	Source protocol.ID
	Type   protocol.ViewType
	Offset uint64
	Length uint64

	buffer *Buffer
}

func newBufferView(m *protocol.BufferViewCreate) *BufferView {
	return &BufferView{
		ID:     m.ID,
		Name:   m.Name,
		Source: m.Source,
		Type:   m.Type,
		Offset: m.Offset,
		Length: m.Length,
	}
}

func (v *BufferView) Create(w *World) {
	b, ok := w.buffers.Get(v.Source)
	if !ok {
		w.logger.Warn("missing source buffer",
			log.Stringer("view", v.ID), log.Stringer("buffer", v.Source))
		return
	}
	v.buffer = b
}

func (v *BufferView) Destroy(*World) {
	v.buffer = nil
}

// Buffer is the resolved source, or nil when it was missing at creation.
func (v *BufferView) Buffer() *Buffer {
	return v.buffer
}

// Slice returns the view's bytes from offset o to the end of the view.
func (v *BufferView) Slice(o uint64) ([]byte, error) {
	if o > v.Length {
		return nil, fmt.Errorf("%w: offset %d past length %d", ErrViewOutOfRange, o, v.Length)
	}
	return v.SliceN(o, v.Length-o)
}

// SliceN returns n bytes of the view starting at offset o.
func (v *BufferView) SliceN(o, n uint64) ([]byte, error) {
	if v.buffer == nil {
		return nil, fmt.Errorf("%w: view %s", ErrViewUnavailable, v.ID)
	}
	start := v.Offset + o
	end := start + n
	if start < v.Offset || end < start || o+n > v.Length || end > uint64(len(v.buffer.Bytes)) {
		return nil, fmt.Errorf("%w: [%d:%d] of view %s (buffer holds %d bytes)",
			ErrViewOutOfRange, start, end, v.ID, len(v.buffer.Bytes))
	}
	return v.buffer.Bytes[start:end], nil
}
