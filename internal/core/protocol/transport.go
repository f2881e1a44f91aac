package protocol

import (
	"context"
	"fmt"
	"time"
)

// CloseNormal is the close code of an orderly shutdown. Anything else is
// abnormal and triggers reconnection.
const CloseNormal = 1000

type TransportEventKind uint8

const (
	TransportConnected TransportEventKind = iota
	TransportDisconnected
	TransportBinary
	TransportError
)

func (k TransportEventKind) String() string {
	switch k {
	case TransportConnected:
		return "connected"
	case TransportDisconnected:
		return "disconnected"
	case TransportBinary:
		return "binary"
	case TransportError:
		return "error"
	default:
		return fmt.Sprintf("transport_event(%d)", uint8(k))
	}
}

// TransportEvent is stamped with the session that produced it so consumers can
// discard events from connections they already abandoned.
type TransportEvent struct {
	Session uint64
	Kind    TransportEventKind
	Code    int
	Data    []byte
	Err     error
}

// Transport is a persistent binary-framed connection. Connect dials in the
// background and reports the outcome on Events. Send and Disconnect are safe
// for concurrent use.
type Transport interface {
	Connect(ctx context.Context) uint64
	Disconnect() error
	Send(data []byte) error
	Events() <-chan TransportEvent
	Close() error
}

type TransportConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	MaxFrameSize     int64
	EventBuffer      int
	// InsecureSkipVerify disables TLS verification for wss and quic.
	InsecureSkipVerify bool
}

func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		URL:              "ws://localhost:50000",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		MaxFrameSize:     256 << 20,
		EventBuffer:      64,
	}
}
