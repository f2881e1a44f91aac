package protocol

import (
	"github.com/fxamacker/cbor/v2"
)

// Client to server message type ids.
const (
	ClientIntroduction uint64 = 0
	ClientInvokeMethod uint64 = 1
)

type Introduction struct {
	ClientName string `cbor:"client_name"`
}

type invokeContext struct {
	Entity *ID `cbor:"entity,omitempty"`
	Table  *ID `cbor:"table,omitempty"`
	Plot   *ID `cbor:"plot,omitempty"`
}

// InvokeMethod asks the server to run a method. A nil Context targets the
// document; an empty InvokeID makes the call fire-and-forget.
type InvokeMethod struct {
	Method   ID
	Context  *InvokeContext
	Args     []any
	InvokeID string
}

type invokeMethodWire struct {
	Method   ID             `cbor:"method"`
	Args     []any          `cbor:"args"`
	InvokeID string         `cbor:"invoke_id,omitempty"`
	Context  *invokeContext `cbor:"context,omitempty"`
}

// EncodeIntroduction builds the handshake sent right after connecting.
func EncodeIntroduction(clientName string) ([]byte, error) {
	return encodeClientMessage(ClientIntroduction, Introduction{ClientName: clientName})
}

func EncodeInvoke(m InvokeMethod) ([]byte, error) {
	wire := invokeMethodWire{
		Method:   m.Method,
		Args:     m.Args,
		InvokeID: m.InvokeID,
	}
	if wire.Args == nil {
		wire.Args = []any{}
	}
	if !m.Context.IsDocument() {
		wire.Context = &invokeContext{
			Entity: m.Context.Entity,
			Table:  m.Context.Table,
			Plot:   m.Context.Plot,
		}
	}
	return encodeClientMessage(ClientInvokeMethod, wire)
}

func encodeClientMessage(typeID uint64, payload any) ([]byte, error) {
	data, err := cbor.Marshal([]any{typeID, payload})
	if err != nil {
		return nil, NewError(ErrorCodeBadPayload, "encode client message", err)
	}
	return data, nil
}
