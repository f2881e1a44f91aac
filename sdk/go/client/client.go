// Package client keeps a live replica of a remote scene document. It owns the
// transport, decodes frames off the socket, and applies them to a world.World
// from a single writer goroutine.
package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/observability/metrics"
	"github.com/zeusync/noodles/internal/core/protocol"
	"github.com/zeusync/noodles/internal/core/world"
)

// Client is one connection to one document server and the world it feeds.
type Client struct {
	config    Config
	logger    log.Log
	transport protocol.Transport
	decoder   *protocol.Decoder
	world     *world.World
	hooks     Hooks

	state    atomic.Int32
	commands chan command
	jobs     chan job

	ctx       context.Context
	cancel    context.CancelFunc
	group     *errgroup.Group
	closed    chan struct{}
	closeOnce sync.Once

	eventHandlers map[EventType][]EventHandler
	handlerMutex  sync.RWMutex

	// sessionCancel aborts resource fetches of the current session. Disconnect
	// calls it from outside the event loop, which may be blocked in a fetch.
	sessionMu     sync.Mutex
	sessionCancel context.CancelFunc

	// Owned by the event loop.
	sessionCtx  context.Context
	session     uint64
	attempt     int
	hadSession  bool
	unavailable bool
	reconnect   *time.Timer
	reconnectC  <-chan time.Time
}

// Config holds configuration for the client
type Config struct {
	URL        string
	ClientName string

	// Reconnect delays grow as ReconnectBase * 2^attempt.
	ReconnectBase        time.Duration
	MaxReconnectAttempts int

	// ApplyQueueSize bounds decoded batches waiting for the writer.
	ApplyQueueSize int
	// SweepInterval is how often expired invocations time out.
	SweepInterval time.Duration

	Transport protocol.TransportConfig
	Decoder   protocol.DecoderConfig
	World     world.Config
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		URL:                  "ws://localhost:50000",
		ClientName:           "noodles-go",
		ReconnectBase:        5 * time.Second,
		MaxReconnectAttempts: 8,
		ApplyQueueSize:       256,
		SweepInterval:        5 * time.Second,
		Transport:            protocol.DefaultTransportConfig(),
		Decoder:              protocol.DefaultDecoderConfig(),
		World:                world.DefaultConfig(),
	}
}

func (c Config) validate() error {
	switch {
	case c.URL == "":
		return errors.Wrap(ErrInvalidConfig, "url is empty")
	case c.ReconnectBase <= 0:
		return errors.Wrap(ErrInvalidConfig, "reconnect base must be positive")
	case c.MaxReconnectAttempts < 0:
		return errors.Wrap(ErrInvalidConfig, "max reconnect attempts is negative")
	case c.ApplyQueueSize <= 0:
		return errors.Wrap(ErrInvalidConfig, "apply queue size must be positive")
	}
	return nil
}

// ReconnectDelay is the wait before the given 1-based reconnect attempt.
func ReconnectDelay(base time.Duration, attempt int) time.Duration {
	return base << uint(attempt)
}

// State of the connection state machine.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Hooks observes the connection. metrics.Metrics implements it.
type Hooks interface {
	ReconnectScheduled(attempt int)
	QueueDepth(n int)
	FrameReceived(size int)
	StateChanged(state string)
}

type nopHooks struct{}

func (nopHooks) ReconnectScheduled(int) {}
func (nopHooks) QueueDepth(int)         {}
func (nopHooks) FrameReceived(int)      {}
func (nopHooks) StateChanged(string)    {}

// EventHandler defines a function type for handling client events
type EventHandler func(event Event) error

// EventType represents different types of client events
type EventType string

const (
	EventTypeConnected           EventType = "connected"
	EventTypeDisconnected        EventType = "disconnected"
	EventTypeReconnecting        EventType = "reconnecting"
	EventTypeUnavailable         EventType = "unavailable"
	EventTypeError               EventType = "error"
	EventTypeDocumentUpdated     EventType = "document_updated"
	EventTypeDocumentInitialized EventType = "document_initialized"
	EventTypeSignal              EventType = "signal"
)

// Event represents a client event
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]any
	Error     error
}

type options struct {
	transport   protocol.Transport
	renderer    world.Renderer
	fetcher     protocol.Fetcher
	hooks       Hooks
	decodeHooks protocol.DecodeHooks
	worldHooks  world.Hooks
}

type Option func(*options)

// WithTransport replaces the transport picked from the URL scheme.
func WithTransport(t protocol.Transport) Option {
	return func(o *options) { o.transport = t }
}

func WithRenderer(r world.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithFetcher resolves URI-backed buffers and images.
func WithFetcher(f protocol.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

func WithHooks(h Hooks) Option {
	return func(o *options) { o.hooks = h }
}

// WithMetrics routes connection, decoder and world counters to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.hooks = m
		o.decodeHooks = m
		o.worldHooks = m
	}
}

// NewClient builds a client and starts its event and writer goroutines. It
// does not dial until Connect.
func NewClient(config Config, logger log.Log, opts ...Option) (*Client, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Provide()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.hooks == nil {
		o.hooks = nopHooks{}
	}

	config.Transport.URL = config.URL
	if config.Decoder.Host == "" {
		if u, err := url.Parse(config.URL); err == nil {
			config.Decoder.Host = u.Hostname()
		}
	}

	transport := o.transport
	if transport == nil {
		var err error
		if transport, err = NewTransport(config.Transport, logger); err != nil {
			return nil, err
		}
	}
	decoder, err := protocol.NewDecoder(config.Decoder, o.fetcher, o.decodeHooks, logger)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:        config,
		logger:        logger.With(log.Component("client"), log.String("url", config.URL)),
		transport:     transport,
		decoder:       decoder,
		hooks:         o.hooks,
		commands:      make(chan command),
		jobs:          make(chan job, config.ApplyQueueSize),
		closed:        make(chan struct{}),
		eventHandlers: make(map[EventType][]EventHandler),
	}

	worldOpts := []world.Option{world.WithSender(transport), world.WithObserver(observer{c})}
	if o.renderer != nil {
		worldOpts = append(worldOpts, world.WithRenderer(o.renderer))
	}
	if o.worldHooks != nil {
		worldOpts = append(worldOpts, world.WithHooks(o.worldHooks))
	}
	c.world = world.New(config.World, logger, worldOpts...)

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.group, c.ctx = errgroup.WithContext(c.ctx)
	c.group.Go(func() error { return c.run(c.ctx) })
	c.group.Go(func() error { return c.applyLoop(c.ctx) })

	c.setState(StateDisconnected)
	c.logger.Info("Client created", log.String("client_name", config.ClientName))
	return c, nil
}

// State reports the connection state. It may lag the event loop slightly.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	if State(c.state.Swap(int32(s))) != s {
		c.logger.Debug("State changed", log.Stringer("state", s))
	}
	c.hooks.StateChanged(s.String())
}

// Connect starts dialing. It returns once the event loop accepted the request;
// progress is reported through events.
func (c *Client) Connect(ctx context.Context) error {
	return c.submit(ctx, commandConnect)
}

// Disconnect closes the session and cancels any scheduled reconnect. Fetches
// still running for the session are aborted and their frames dropped.
func (c *Client) Disconnect(ctx context.Context) error {
	c.abortSession()
	return c.submit(ctx, commandDisconnect)
}

// beginSession derives the context for one transport session's fetches,
// aborting the previous one.
func (c *Client) beginSession(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	c.sessionMu.Lock()
	if c.sessionCancel != nil {
		c.sessionCancel()
	}
	c.sessionCancel = cancel
	c.sessionMu.Unlock()
	return ctx
}

func (c *Client) abortSession() {
	c.sessionMu.Lock()
	if c.sessionCancel != nil {
		c.sessionCancel()
		c.sessionCancel = nil
	}
	c.sessionMu.Unlock()
}

func (c *Client) submit(ctx context.Context, kind commandKind) error {
	cmd := command{kind: kind, result: make(chan error, 1)}
	select {
	case c.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrClientClosed
	}
	select {
	case err := <-cmd.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrClientClosed
	}
}

// Do runs fn on the writer goroutine, the only place the world may be read or
// changed, and waits for it to finish. fn must not call Do.
func (c *Client) Do(ctx context.Context, fn func(w *world.World)) error {
	done := make(chan struct{})
	select {
	case c.jobs <- job{fn: fn, done: done}:
		c.hooks.QueueDepth(len(c.jobs))
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrClientClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrClientClosed
	}
}

// Invoke calls a method by id. cb, if set, runs on the writer goroutine when
// the reply arrives or the call times out.
func (c *Client) Invoke(ctx context.Context, method protocol.ID, target *protocol.InvokeContext, args []any, cb world.Callback) error {
	var err error
	if doErr := c.Do(ctx, func(w *world.World) { err = w.Invoke(method, target, args, cb) }); doErr != nil {
		return doErr
	}
	return err
}

// InvokeByName resolves a method name in the target's scope, then invokes it.
func (c *Client) InvokeByName(ctx context.Context, name string, target *protocol.InvokeContext, args []any, cb world.Callback) error {
	var err error
	if doErr := c.Do(ctx, func(w *world.World) { err = w.InvokeByName(name, target, args, cb) }); doErr != nil {
		return doErr
	}
	return err
}

// OnEvent registers an event handler
func (c *Client) OnEvent(eventType EventType, handler EventHandler) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()

	c.eventHandlers[eventType] = append(c.eventHandlers[eventType], handler)
	c.logger.Debug("Event handler registered", log.String("type", string(eventType)))
}

// emitEvent hands the event to each handler on its own goroutine, so handlers
// may call back into the client.
func (c *Client) emitEvent(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	c.handlerMutex.RLock()
	handlers := c.eventHandlers[event.Type]
	c.handlerMutex.RUnlock()

	for _, handler := range handlers {
		go func(h EventHandler) {
			if err := h(event); err != nil {
				c.logger.Error("Event handler error", log.String("type", string(event.Type)), log.Error(err))
			}
		}(handler)
	}
}

// Close stops both goroutines and the transport. The client cannot be reused.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.logger.Info("Closing client")
		close(c.closed)
		c.cancel()
		err = c.group.Wait()
		if closeErr := c.transport.Close(); err == nil {
			err = closeErr
		}
		c.setState(StateDisconnected)
	})
	return err
}

// observer turns world notifications into client events. It runs on the
// writer goroutine.
type observer struct{ c *Client }

func (o observer) DocumentUpdated(summary world.DocumentSummary) {
	o.c.emitEvent(Event{Type: EventTypeDocumentUpdated, Data: map[string]any{"summary": summary}})
}

func (o observer) DocumentInitialized() {
	o.c.emitEvent(Event{Type: EventTypeDocumentInitialized})
}

func (o observer) SignalInvoked(ev world.SignalEvent) {
	o.c.emitEvent(Event{
		Type: EventTypeSignal,
		Data: map[string]any{
			"signal":  ev.Signal.Name,
			"context": ev.Context,
			"args":    ev.Data,
		},
	})
}
