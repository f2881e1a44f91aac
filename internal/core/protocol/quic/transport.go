package quic

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
)

var _ protocol.Transport = (*Transport)(nil)

// Transport dials quic:// URLs. Each session opens one bidirectional stream;
// frames on it are prefixed with a big-endian uint32 length.
type Transport struct {
	config     protocol.TransportConfig
	quicConfig *quic.Config
	logger     log.Log

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
	defaults := protocol.DefaultTransportConfig()
	if config.EventBuffer <= 0 {
		config.EventBuffer = defaults.EventBuffer
	}
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = defaults.MaxFrameSize
	}
	return &Transport{
		config: config,
		quicConfig: &quic.Config{
			HandshakeIdleTimeout: config.HandshakeTimeout,
			MaxIdleTimeout:       DefaultIdleTimeout,
			KeepAlivePeriod:      DefaultKeepAlive,
		},
		logger: logger.With(log.Component("quic"), log.String("url", config.URL)),
		events: make(chan protocol.TransportEvent, config.EventBuffer),
		done:   make(chan struct{}),
	}
}

func (t *Transport) Events() <-chan protocol.TransportEvent {
	return t.events
}

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
	conn, err := t.open(ctx)
	if err != nil {
		t.emit(protocol.TransportEvent{Session: session, Kind: protocol.TransportError, Err: err})
		return
	}

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

func (t *Transport) open(ctx context.Context) (*Connection, error) {
	addr, host, err := dialTarget(t.config.URL)
	if err != nil {
		return nil, err
	}
	if t.config.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.HandshakeTimeout)
		defer cancel()
	}

	t.logger.Debug("dialing", log.String("addr", addr))
	qc, err := quic.DialAddr(ctx, addr, clientTLS(host, t.config.InsecureSkipVerify), t.quicConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	stream, err := qc.OpenStreamSync(ctx)
	if err != nil {
		_ = qc.CloseWithError(0, "stream open failed")
		return nil, errors.Wrap(err, "open stream")
	}
	return newConnection(qc, stream, t.config.MaxFrameSize, t.config.WriteTimeout), nil
}

func (t *Transport) read(session uint64, conn *Connection) {
	defer t.release(conn)
	for {
		data, err := conn.receive()
		if err != nil {
			t.emit(t.readFailure(session, conn, err))
			return
		}
		t.emit(protocol.TransportEvent{Session: session, Kind: protocol.TransportBinary, Data: data})
	}
}

func (t *Transport) readFailure(session uint64, conn *Connection, err error) protocol.TransportEvent {
	disconnected := func(code int) protocol.TransportEvent {
		return protocol.TransportEvent{Session: session, Kind: protocol.TransportDisconnected, Code: code}
	}

	var appErr *quic.ApplicationError
	switch {
	case conn.IsClosed():
		return disconnected(protocol.CloseNormal)
	case errors.As(err, &appErr):
		if !appErr.Remote || appErr.ErrorCode == 0 {
			return disconnected(protocol.CloseNormal)
		}
		return disconnected(int(appErr.ErrorCode))
	case errors.Is(err, io.EOF):
		return disconnected(closeGoingAway)
	default:
		return protocol.TransportEvent{Session: session, Kind: protocol.TransportError, Err: errors.Wrap(err, "read frame")}
	}
}

func (t *Transport) release(conn *Connection) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	_ = conn.CloseWithCode(0, "")
}

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
	return conn.Send(data)
}

// Disconnect closes the session with application code 0, which the read side
// reports as a normal close.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	conn := t.dropLocked()
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (t *Transport) dropLocked() *Connection {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	conn := t.conn
	t.conn = nil
	return conn
}

func (t *Transport) Close() error {
	err := t.Disconnect()
	t.closeOnce.Do(func() { close(t.done) })
	return err
}
