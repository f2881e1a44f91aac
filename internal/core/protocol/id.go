package protocol

import (
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// ID is a generational object handle. The server allocates them; the client only
// echoes them back.
type ID struct {
	Slot uint32
	Gen  uint32
}

// NullID is the "none" handle. It is never valid.
var NullID = ID{Slot: math.MaxUint32, Gen: math.MaxUint32}

func NewID(slot, gen uint32) ID {
	return ID{Slot: slot, Gen: gen}
}

func (id ID) Valid() bool {
	return id.Slot < math.MaxUint32 && id.Gen < math.MaxUint32
}

func (id ID) String() string {
	if !id.Valid() {
		return "null"
	}
	return fmt.Sprintf("%d/%d", id.Slot, id.Gen)
}

// MarshalCBOR encodes the handle as [slot, gen].
func (id ID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal([2]uint32{id.Slot, id.Gen})
}

// UnmarshalCBOR never fails on well-formed CBOR: malformed handles decode to NullID.
func (id *ID) UnmarshalCBOR(data []byte) error {
	var raw any
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	*id = idFromValue(raw)
	return nil
}

func idFromValue(v any) ID {
	arr, ok := v.([]any)
	if !ok || len(arr) < 2 {
		return NullID
	}
	slot, ok := toUint32(arr[0])
	if !ok {
		return NullID
	}
	gen, ok := toUint32(arr[1])
	if !ok {
		return NullID
	}
	return ID{Slot: slot, Gen: gen}
}
