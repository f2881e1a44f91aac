// Package websocket implements protocol.Transport over gorilla/websocket.
package websocket

import (
	"context"
	"crypto/tls"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
)

var _ protocol.Transport = (*Transport)(nil)

type Transport struct {
	config protocol.TransportConfig
	dialer *websocket.Dialer
	logger log.Log

	events    chan protocol.TransportEvent
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	session uint64
	conn    *Connection
	cancel  context.CancelFunc
}

func NewTransport(config protocol.TransportConfig, logger log.Log) *Transport {
	if logger == nil {
		logger = log.Provide()
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = protocol.DefaultTransportConfig().EventBuffer
	}
	dialer := &websocket.Dialer{
		HandshakeTimeout: config.HandshakeTimeout,
		ReadBufferSize:   64 << 10,
		WriteBufferSize:  64 << 10,
	}
	if config.InsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Transport{
		config: config,
		dialer: dialer,
		logger: logger.With(log.Component("websocket"), log.String("url", config.URL)),
		events: make(chan protocol.TransportEvent, config.EventBuffer),
		done:   make(chan struct{}),
	}
}

func (t *Transport) Events() <-chan protocol.TransportEvent {
	return t.events
}

// Connect drops any current connection and dials a new session in the
// background.
func (t *Transport) Connect(ctx context.Context) uint64 {
	t.mu.Lock()
	if old := t.dropLocked(); old != nil {
		go func() { _ = old.Close() }()
	}
	t.session++
	session := t.session
	dialCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	go t.dial(dialCtx, session)
	return session
}

func (t *Transport) dial(ctx context.Context, session uint64) {
	t.logger.Debug("dialing", log.Uint64("session", session))
	ws, _, err := t.dialer.DialContext(ctx, t.config.URL, nil)
	if err != nil {
		t.emit(protocol.TransportEvent{
			Session: session,
			Kind:    protocol.TransportError,
			Err:     errors.Wrapf(err, "dial %s", t.config.URL),
		})
		return
	}
	if t.config.MaxFrameSize > 0 {
		ws.SetReadLimit(t.config.MaxFrameSize)
	}
	conn := newConnection(ws, t.config.WriteTimeout)

	t.mu.Lock()
	if session != t.session {
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	t.conn = conn
	t.mu.Unlock()

	t.logger.Info("connected", log.Uint64("session", session), log.Stringer("remote", conn.RemoteAddr()))
	t.emit(protocol.TransportEvent{Session: session, Kind: protocol.TransportConnected})
	t.read(session, conn)
}

func (t *Transport) read(session uint64, conn *Connection) {
	defer t.release(conn)
	for {
		kind, data, err := conn.receive()
		if err != nil {
			t.emit(t.readFailure(session, conn, err))
			return
		}
		switch kind {
		case websocket.BinaryMessage:
			t.emit(protocol.TransportEvent{Session: session, Kind: protocol.TransportBinary, Data: data})
		case websocket.TextMessage:
			t.logger.Debug("text frame ignored", log.Int("bytes", len(data)))
		}
	}
}

func (t *Transport) readFailure(session uint64, conn *Connection, err error) protocol.TransportEvent {
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr):
		return protocol.TransportEvent{Session: session, Kind: protocol.TransportDisconnected, Code: closeErr.Code}
	case conn.IsClosed():
		return protocol.TransportEvent{Session: session, Kind: protocol.TransportDisconnected, Code: protocol.CloseNormal}
	default:
		return protocol.TransportEvent{
			Session: session,
			Kind:    protocol.TransportError,
			Err:     errors.Wrap(err, "read frame"),
		}
	}
}

func (t *Transport) release(conn *Connection) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	_ = conn.conn.Close()
}

// emit blocks until the consumer takes the event, which stalls the reader
// when the consumer falls behind.
func (t *Transport) emit(ev protocol.TransportEvent) {
	select {
	case t.events <- ev:
	case <-t.done:
	}
}

func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return protocol.ErrNotConnected
	}
	if t.config.MaxFrameSize > 0 && int64(len(data)) > t.config.MaxFrameSize {
		return protocol.ErrFrameTooLarge
	}
	return conn.Send(data)
}

// Disconnect closes the current session with a normal close frame.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	conn := t.dropLocked()
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// dropLocked cancels a dial in flight and detaches the live connection,
// returning it for the caller to close.
func (t *Transport) dropLocked() *Connection {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	conn := t.conn
	t.conn = nil
	return conn
}

// Close disconnects and stops event delivery for good.
func (t *Transport) Close() error {
	err := t.Disconnect()
	t.closeOnce.Do(func() { close(t.done) })
	return err
}
