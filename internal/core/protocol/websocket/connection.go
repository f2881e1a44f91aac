package websocket

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/noodles/internal/core/protocol"
)

// Connection is one dialed websocket. Writes are serialized; reads belong to
// the transport's reader goroutine.
type Connection struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	connectedAt  time.Time
	closed       atomic.Bool

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64

	// Write mutex to ensure thread-safe writes
	writeMu sync.Mutex
}

func newConnection(conn *websocket.Conn, writeTimeout time.Duration) *Connection {
	return &Connection{
		conn:         conn,
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

// Send writes one binary frame.
func (c *Connection) Send(data []byte) error {
	if c.IsClosed() {
		return protocol.ErrTransportClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	c.bytesSent.Add(uint64(len(data)))
	return nil
}

// receive blocks for the next frame.
func (c *Connection) receive() (int, []byte, error) {
	kind, data, err := c.conn.ReadMessage()
	if err == nil {
		c.bytesReceived.Add(uint64(len(data)))
	}
	return kind, data, err
}

// CloseWithReason sends a close frame with code and reason, then drops the
// socket. Only the first call has any effect.
func (c *Connection) CloseWithReason(code int, reason string) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()

	return c.conn.Close()
}

func (c *Connection) Close() error {
	return c.CloseWithReason(websocket.CloseNormalClosure, "client disconnect")
}

// Stats reports bytes moved since the connection was dialed.
func (c *Connection) Stats() (sent, received uint64, uptime time.Duration) {
	return c.bytesSent.Load(), c.bytesReceived.Load(), time.Since(c.connectedAt)
}
