package world

import (
	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
)

type Image struct {
	ID     protocol.ID
	Name   string
	Source *protocol.ID
	URI    string
	Bytes  []byte
}

func newImage(m *protocol.ImageCreate) *Image {
	return &Image{ID: m.ID, Name: m.Name, Source: m.BufferSource, URI: m.URI, Bytes: m.Bytes}
}

func (img *Image) Create(w *World) {
	if img.Source != nil {
		img.Bytes = nil
		view, ok := w.views.Get(*img.Source)
		if !ok {
			w.logger.Warn("missing image view", log.Stringer("image", img.ID), log.Stringer("view", *img.Source))
		} else if data, err := view.Slice(0); err != nil {
			w.logger.Warn("image view unreadable", log.Stringer("image", img.ID), log.Error(err))
		} else {
			img.Bytes = data
		}
	}
	if len(img.Bytes) == 0 {
		w.logger.Warn("image has no bytes", log.Stringer("image", img.ID), log.String("uri", img.URI))
	}
	w.renderer.ImageCreated(img)
}

func (img *Image) Destroy(w *World) {
	w.renderer.ImageDestroyed(img)
}

type Sampler struct {
	ID        protocol.ID
	Name      string
	MagFilter protocol.Filter
	MinFilter protocol.Filter
	WrapS     protocol.Wrap
	WrapT     protocol.Wrap
}

func newSampler(m *protocol.SamplerCreate) *Sampler {
	return &Sampler{
		ID:        m.ID,
		Name:      m.Name,
		MagFilter: m.MagFilter,
		MinFilter: m.MinFilter,
		WrapS:     m.WrapS,
		WrapT:     m.WrapT,
	}
}

func (*Sampler) Create(*World)  {}
func (*Sampler) Destroy(*World) {}

type Texture struct {
	ID        protocol.ID
	Name      string
	ImageID   protocol.ID
	SamplerID *protocol.ID

	// Image and Sampler are resolved at creation; either may be nil.
	Image   *Image
	Sampler *Sampler
}

func newTexture(m *protocol.TextureCreate) *Texture {
	return &Texture{ID: m.ID, Name: m.Name, ImageID: m.Image, SamplerID: m.Sampler}
}

func (t *Texture) Create(w *World) {
	if img, ok := w.images.Get(t.ImageID); ok {
		t.Image = img
	} else {
		w.logger.Warn("missing texture image", log.Stringer("texture", t.ID), log.Stringer("image", t.ImageID))
	}
	if t.SamplerID == nil {
		return
	}
	if s, ok := w.samplers.Get(*t.SamplerID); ok {
		t.Sampler = s
	} else {
		w.logger.Warn("missing texture sampler", log.Stringer("texture", t.ID), log.Stringer("sampler", *t.SamplerID))
	}
}

func (*Texture) Destroy(*World) {}

type Material struct {
	ID          protocol.ID
	Name        string
	PBR         protocol.PBRInfo
	Normal      *protocol.TextureRef
	UseAlpha    bool
	DoubleSided bool

	// Resolved texture snapshots; nil when unset or missing.
	BaseColorTexture *Texture
	NormalTexture    *Texture

	pending protocol.MaterialFields
}

func newMaterial(m *protocol.MaterialCreate) *Material {
	return &Material{ID: m.ID, PBR: protocol.DefaultPBRInfo(), pending: m.MaterialFields}
}

func (m *Material) Create(w *World) {
	m.update(w, m.pending)
	m.pending = protocol.MaterialFields{}
}

func (m *Material) Destroy(w *World) {
	w.renderer.MaterialDestroyed(m)
}

// update merges the present fields and rebuilds the material.
func (m *Material) update(w *World, f protocol.MaterialFields) {
	if f.Name != nil {
		m.Name = *f.Name
	}
	if f.PBR != nil {
		m.PBR = *f.PBR
	}
	if f.NormalTexture != nil {
		m.Normal = f.NormalTexture
	}
	if f.UseAlpha != nil {
		m.UseAlpha = *f.UseAlpha
	}
	if f.DoubleSided != nil {
		m.DoubleSided = *f.DoubleSided
	}

	m.BaseColorTexture = w.textureRef(m.ID, m.PBR.BaseColorTexture)
	m.NormalTexture = w.textureRef(m.ID, m.Normal)
	w.renderer.MaterialBuilt(m)
}

func (w *World) textureRef(material protocol.ID, ref *protocol.TextureRef) *Texture {
	if ref == nil {
		return nil
	}
	t, ok := w.textures.Get(ref.Texture)
	if !ok {
		w.logger.Warn("missing material texture",
			log.Stringer("material", material), log.Stringer("texture", ref.Texture))
		return nil
	}
	return t
}
