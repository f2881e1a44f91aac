package client

import (
	"net/url"

	"github.com/pkg/errors"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
	"github.com/zeusync/noodles/internal/core/protocol/quic"
	"github.com/zeusync/noodles/internal/core/protocol/websocket"
)

// NewTransport picks a transport from the URL scheme: ws and wss dial
// websockets, quic dials a QUIC stream.
func NewTransport(config protocol.TransportConfig, logger log.Log) (protocol.Transport, error) {
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "url %q: %v", config.URL, err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return websocket.NewTransport(config, logger), nil
	case "quic":
		return quic.NewTransport(config, logger), nil
	default:
		return nil, errors.Wrapf(protocol.ErrUnsupportedScheme, "%q", u.Scheme)
	}
}
