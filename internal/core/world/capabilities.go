package world

import "strings"

// Capability is a bit set of interactions an entity supports.
type Capability uint8

const (
	CapActivate Capability = 1 << iota
	CapMove
	CapScale
	CapRotate
	CapSelect
	CapProbe
)

// DocumentCapability is a bit set of document-wide interactions.
type DocumentCapability uint8

const (
	DocStepTime DocumentCapability = 1 << iota
	DocAnimateTime
)

var entityCapabilities = map[string]Capability{
	"noo::activate":      CapActivate,
	"noo::set_position":  CapMove,
	"noo::set_scale":     CapScale,
	"noo::set_rotation":  CapRotate,
	"noo::select_region": CapSelect,
	"noo::probe_at":      CapProbe,
}

var documentCapabilities = map[string]DocumentCapability{
	"noo::step_time":    DocStepTime,
	"noo::animate_time": DocAnimateTime,
}

var capabilityNames = []struct {
	bit  Capability
	name string
}{
	{CapActivate, "activate"},
	{CapMove, "move"},
	{CapScale, "scale"},
	{CapRotate, "rotate"},
	{CapSelect, "select"},
	{CapProbe, "probe"},
}

func (c Capability) Has(bit Capability) bool {
	return c&bit == bit
}

// Manipulable reports whether a user can drag, scale or rotate the entity.
func (c Capability) Manipulable() bool {
	return c&(CapMove|CapScale|CapRotate) != 0
}

func (c Capability) String() string {
	var names []string
	for _, n := range capabilityNames {
		if c.Has(n.bit) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

func (c DocumentCapability) Has(bit DocumentCapability) bool {
	return c&bit == bit
}

func EntityCapabilities(methods []*Method) Capability {
	var c Capability
	for _, m := range methods {
		c |= entityCapabilities[m.Name]
	}
	return c
}

func DocumentCapabilities(methods []*Method) DocumentCapability {
	var c DocumentCapability
	for _, m := range methods {
		c |= documentCapabilities[m.Name]
	}
	return c
}
