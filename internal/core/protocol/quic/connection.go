package quic

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/noodles/internal/core/protocol"
)

// Connection pairs a QUIC connection with the one stream that carries frames.
type Connection struct {
	conn         *quic.Conn
	stream       *quic.Stream
	maxFrameSize int64
	writeTimeout time.Duration
	connectedAt  time.Time
	closed       atomic.Bool

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64

	writeMu sync.Mutex
}

func newConnection(conn *quic.Conn, stream *quic.Stream, maxFrameSize int64, writeTimeout time.Duration) *Connection {
	return &Connection{
		conn:         conn,
		stream:       stream,
		maxFrameSize: maxFrameSize,
		writeTimeout: writeTimeout,
		connectedAt:  time.Now(),
	}
}

func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

func (c *Connection) Send(data []byte) error {
	if c.IsClosed() {
		return protocol.ErrTransportClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.stream.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := WriteFrame(c.stream, data, c.maxFrameSize); err != nil {
		return err
	}
	c.bytesSent.Add(uint64(len(data)))
	return nil
}

func (c *Connection) receive() ([]byte, error) {
	data, err := ReadFrame(c.stream, c.maxFrameSize)
	if err == nil {
		c.bytesReceived.Add(uint64(len(data)))
	}
	return data, err
}

// CloseWithCode closes the connection with an application error code. Only
// the first call has any effect.
func (c *Connection) CloseWithCode(code uint64, reason string) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writeMu.Lock()
	_ = c.stream.Close()
	c.writeMu.Unlock()

	if err := c.conn.CloseWithError(quic.ApplicationErrorCode(code), reason); err != nil {
		return errors.Wrap(err, "failed to close connection")
	}
	return nil
}

func (c *Connection) Close() error {
	return c.CloseWithCode(0, "client disconnect")
}

func (c *Connection) Stats() (sent, received uint64, uptime time.Duration) {
	return c.bytesSent.Load(), c.bytesReceived.Load(), time.Since(c.connectedAt)
}
