package client

import (
	"context"
	"fmt"
	"time"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
	"github.com/zeusync/noodles/internal/core/world"
)

type commandKind uint8

const (
	commandConnect commandKind = iota
	commandDisconnect
)

type command struct {
	kind   commandKind
	result chan error
}

// job is either a decoded batch or a function to run on the writer.
type job struct {
	batch []protocol.Message
	fn    func(w *world.World)
	done  chan struct{}
}

// run is the event loop. It owns the state machine and the decoder.
func (c *Client) run(ctx context.Context) error {
	sweepInterval := c.config.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = world.DefaultConfig().PendingTTL
	}
	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()
	defer c.stopReconnect()
	defer c.abortSession()

	events := c.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return nil

		case cmd := <-c.commands:
			cmd.result <- c.handleCommand(ctx, cmd.kind)

		case ev, ok := <-events:
			if !ok {
				c.logger.Warn("Transport event stream closed")
				return nil
			}
			c.handleTransport(ctx, ev)

		case <-c.reconnectC:
			c.reconnect, c.reconnectC = nil, nil
			c.logger.Info("Reconnection attempt", log.Int("attempt", c.attempt))
			c.dial(ctx)

		case now := <-sweep.C:
			c.enqueue(ctx, job{fn: func(w *world.World) { w.SweepInvocations(now) }})
		}
	}
}

func (c *Client) handleCommand(ctx context.Context, kind commandKind) error {
	switch kind {
	case commandConnect:
		switch c.State() {
		case StateConnected, StateConnecting:
			return ErrAlreadyConnected
		}
		c.stopReconnect()
		c.attempt = 0
		c.dial(ctx)
		return nil

	case commandDisconnect:
		c.stopReconnect()
		c.attempt = 0
		c.session = 0
		err := c.transport.Disconnect()
		if c.State() != StateDisconnected {
			c.setState(StateDisconnected)
			c.emitEvent(Event{Type: EventTypeDisconnected, Data: map[string]any{"code": protocol.CloseNormal}})
		}
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context) {
	c.sessionCtx = c.beginSession(ctx)
	c.session = c.transport.Connect(ctx)
	c.setState(StateConnecting)
	c.logger.Info("Connecting to server", log.Uint64("session", c.session))
}

func (c *Client) handleTransport(ctx context.Context, ev protocol.TransportEvent) {
	if ev.Session != c.session {
		c.logger.Debug("Dropping event from stale session",
			log.Uint64("session", ev.Session),
			log.Stringer("kind", ev.Kind))
		return
	}

	switch ev.Kind {
	case protocol.TransportConnected:
		c.connected(ctx)

	case protocol.TransportBinary:
		c.hooks.FrameReceived(len(ev.Data))
		sessionCtx := c.sessionCtx
		if sessionCtx == nil {
			sessionCtx = ctx
		}
		messages := c.decoder.Decode(sessionCtx, ev.Data)
		if sessionCtx.Err() != nil {
			c.logger.Debug("Dropping frame of an aborted session", log.Uint64("session", ev.Session))
			return
		}
		if len(messages) > 0 {
			c.enqueue(ctx, job{batch: messages})
		}

	case protocol.TransportDisconnected:
		if ev.Code == protocol.CloseNormal {
			c.session = 0
			c.setState(StateDisconnected)
			c.logger.Info("Disconnected from server")
			c.emitEvent(Event{Type: EventTypeDisconnected, Data: map[string]any{"code": ev.Code}})
			return
		}
		c.lost(ctx, fmt.Errorf("connection closed with code %d", ev.Code))

	case protocol.TransportError:
		err := ev.Err
		if err == nil {
			err = protocol.ErrTransportClosed
		}
		c.lost(ctx, err)
	}
}

func (c *Client) connected(ctx context.Context) {
	c.attempt = 0
	c.setState(StateConnected)
	c.logger.Info("Connected to server")

	// The server replays the whole document on every session.
	if c.hadSession {
		c.enqueue(ctx, job{fn: func(w *world.World) { w.Reset() }})
	}
	c.hadSession = true
	if c.unavailable {
		c.unavailable = false
		c.enqueue(ctx, job{fn: func(w *world.World) { w.SetAvailable(true) }})
	}

	intro, err := protocol.EncodeIntroduction(c.config.ClientName)
	if err == nil {
		err = c.transport.Send(intro)
	}
	if err != nil {
		c.logger.Error("Failed to send introduction", log.Error(err))
		c.emitEvent(Event{Type: EventTypeError, Error: err})
	}
	c.emitEvent(Event{Type: EventTypeConnected})
}

// lost handles any abnormal end of a session: schedule the next attempt, or
// give up once the budget is spent.
func (c *Client) lost(ctx context.Context, cause error) {
	c.session = 0
	c.abortSession()
	c.logger.Warn("Connection lost", log.Int("attempt", c.attempt), log.Error(cause))
	c.emitEvent(Event{Type: EventTypeError, Error: cause})

	if c.attempt >= c.config.MaxReconnectAttempts {
		c.logger.Error("Reconnect attempts exhausted", log.Int("attempts", c.attempt))
		c.setState(StateDisconnected)
		c.unavailable = true
		c.enqueue(ctx, job{fn: func(w *world.World) { w.SetAvailable(false) }})
		c.emitEvent(Event{Type: EventTypeUnavailable, Error: ErrUnavailable})
		return
	}

	c.attempt++
	delay := ReconnectDelay(c.config.ReconnectBase, c.attempt)
	c.hooks.ReconnectScheduled(c.attempt)
	c.setState(StateReconnecting)
	c.reconnect = time.NewTimer(delay)
	c.reconnectC = c.reconnect.C
	c.emitEvent(Event{
		Type: EventTypeReconnecting,
		Data: map[string]any{"attempt": c.attempt, "delay": delay},
	})
}

func (c *Client) stopReconnect() {
	if c.reconnect != nil {
		c.reconnect.Stop()
	}
	c.reconnect, c.reconnectC = nil, nil
}

// enqueue blocks while the writer is behind. Frames are never dropped.
func (c *Client) enqueue(ctx context.Context, j job) {
	select {
	case c.jobs <- j:
		c.hooks.QueueDepth(len(c.jobs))
	case <-ctx.Done():
	}
}

// applyLoop is the writer: the only goroutine that touches the world.
func (c *Client) applyLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-c.jobs:
			c.hooks.QueueDepth(len(c.jobs))
			c.runJob(j)
		}
	}
}

func (c *Client) runJob(j job) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Writer job panicked", log.Any("panic", r))
		}
		if j.done != nil {
			close(j.done)
		}
	}()
	if j.fn != nil {
		j.fn(c.world)
		return
	}
	c.world.Apply(j.batch)
}
