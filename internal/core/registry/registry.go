// Package registry stores protocol objects of one kind, keyed by slot, and runs
// their lifecycle hooks.
package registry

import (
	"errors"
	"sort"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
)

var (
	ErrInvalidID       = errors.New("invalid object id")
	ErrNotFound        = errors.New("object not found")
	ErrStaleGeneration = errors.New("stale object generation")
)

// Component is an object with lifecycle hooks. E is the environment the hooks
// may consult, normally the world that owns every registry. Hooks must degrade
// rather than fail when something they reference is missing.
type Component[E any] interface {
	Create(env E)
	Destroy(env E)
}

type entry[T any] struct {
	id    protocol.ID
	value T
}

// Registry is not safe for concurrent use. A single writer owns it.
type Registry[E any, T Component[E]] struct {
	kind   string
	env    E
	items  map[uint32]entry[T]
	logger log.Log
}

func New[E any, T Component[E]](kind string, env E, logger log.Log) *Registry[E, T] {
	if logger == nil {
		logger = log.Provide()
	}
	return &Registry[E, T]{
		kind:   kind,
		env:    env,
		items:  make(map[uint32]entry[T]),
		logger: logger.With(log.String("registry", kind)),
	}
}

func (r *Registry[E, T]) Kind() string {
	return r.kind
}

func (r *Registry[E, T]) Len() int {
	return len(r.items)
}

// Set inserts v and runs its create hook. An occupant of the same slot is
// destroyed first.
func (r *Registry[E, T]) Set(id protocol.ID, v T) error {
	if !id.Valid() {
		return ErrInvalidID
	}
	if old, ok := r.items[id.Slot]; ok {
		r.logger.Warn("replacing live object",
			log.Stringer("old", old.id), log.Stringer("new", id))
		old.value.Destroy(r.env)
		delete(r.items, id.Slot)
	}
	r.items[id.Slot] = entry[T]{id: id, value: v}
	v.Create(r.env)
	return nil
}

// Get requires the full id to match. A slot hit with another generation is
// reported as a miss.
func (r *Registry[E, T]) Get(id protocol.ID) (T, bool) {
	var zero T
	if !id.Valid() {
		return zero, false
	}
	e, ok := r.items[id.Slot]
	if !ok {
		return zero, false
	}
	if e.id.Gen != id.Gen {
		r.logger.Warn("stale reference",
			log.Stringer("requested", id), log.Stringer("live", e.id))
		return zero, false
	}
	return e.value, true
}

// Erase runs the destroy hook, then forgets the object.
func (r *Registry[E, T]) Erase(id protocol.ID) error {
	if !id.Valid() {
		return ErrInvalidID
	}
	e, ok := r.items[id.Slot]
	if !ok {
		return ErrNotFound
	}
	if e.id.Gen != id.Gen {
		return ErrStaleGeneration
	}
	e.value.Destroy(r.env)
	delete(r.items, id.Slot)
	return nil
}

// Clear destroys every object in slot order.
func (r *Registry[E, T]) Clear() {
	for _, slot := range r.slots() {
		r.items[slot].value.Destroy(r.env)
	}
	r.items = make(map[uint32]entry[T])
}

// Each visits objects in slot order until fn returns false.
func (r *Registry[E, T]) Each(fn func(id protocol.ID, v T) bool) {
	for _, slot := range r.slots() {
		e, ok := r.items[slot]
		if !ok {
			continue
		}
		if !fn(e.id, e.value) {
			return
		}
	}
}

func (r *Registry[E, T]) slots() []uint32 {
	slots := make([]uint32, 0, len(r.items))
	for slot := range r.items {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}
