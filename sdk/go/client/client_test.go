package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
	"github.com/zeusync/noodles/internal/core/world"
)

// fakeTransport answers every Connect with the event dial returns.
type fakeTransport struct {
	mu          sync.Mutex
	session     uint64
	connects    int
	disconnects int
	sent        [][]byte
	events      chan protocol.TransportEvent
	dial        func(session uint64) protocol.TransportEvent
}

func newFakeTransport(dial func(uint64) protocol.TransportEvent) *fakeTransport {
	return &fakeTransport{events: make(chan protocol.TransportEvent, 64), dial: dial}
}

func connectOK(s uint64) protocol.TransportEvent {
	return protocol.TransportEvent{Session: s, Kind: protocol.TransportConnected}
}

func connectFails(s uint64) protocol.TransportEvent {
	return protocol.TransportEvent{Session: s, Kind: protocol.TransportError, Err: assert.AnError}
}

func (f *fakeTransport) Connect(context.Context) uint64 {
	f.mu.Lock()
	f.session++
	f.connects++
	s, dial := f.session, f.dial
	f.mu.Unlock()
	f.events <- dial(s)
	return s
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	f.sent = append(f.sent, data)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Events() <-chan protocol.TransportEvent { return f.events }
func (f *fakeTransport) Close() error                            { return nil }

func (f *fakeTransport) push(kind protocol.TransportEventKind, data []byte) {
	f.mu.Lock()
	s := f.session
	f.mu.Unlock()
	f.events <- protocol.TransportEvent{Session: s, Kind: kind, Data: data}
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeTransport) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

type recordingHooks struct {
	nopHooks
	mu       sync.Mutex
	attempts []int
}

func (h *recordingHooks) ReconnectScheduled(attempt int) {
	h.mu.Lock()
	h.attempts = append(h.attempts, attempt)
	h.mu.Unlock()
}

func (h *recordingHooks) scheduled() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.attempts...)
}

type availabilityRenderer struct {
	world.NopRenderer
	mu        sync.Mutex
	available []bool
}

func (r *availabilityRenderer) SetAvailable(v bool) {
	r.mu.Lock()
	r.available = append(r.available, v)
	r.mu.Unlock()
}

func newTestClient(t *testing.T, tr *fakeTransport, mutate func(*Config), opts ...Option) *Client {
	t.Helper()
	cfg := DefaultClientConfig()
	cfg.ClientName = "test"
	cfg.ReconnectBase = time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg, log.NewNop(), append([]Option{WithTransport(tr)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func subscribe(c *Client, eventType EventType) <-chan Event {
	ch := make(chan Event, 32)
	c.OnEvent(eventType, func(e Event) error {
		ch <- e
		return nil
	})
	return ch
}

func await(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
		return Event{}
	}
}

func frame(t *testing.T, pairs ...any) []byte {
	t.Helper()
	data, err := cbor.Marshal(pairs)
	require.NoError(t, err)
	return data
}

func hasBuffer(c *Client, id protocol.ID) bool {
	var ok bool
	_ = c.Do(context.Background(), func(w *world.World) { _, ok = w.Buffer(id) })
	return ok
}

func TestReconnectDelaySchedule(t *testing.T) {
	want := []time.Duration{10, 20, 40, 80, 160, 320, 640, 1280}
	for i, seconds := range want {
		assert.Equal(t, seconds*time.Second, ReconnectDelay(5*time.Second, i+1), "attempt %d", i+1)
	}
}

func TestReconnectBudgetExhausted(t *testing.T) {
	tr := newFakeTransport(connectFails)
	hooks := &recordingHooks{}
	renderer := &availabilityRenderer{}
	c := newTestClient(t, tr, func(cfg *Config) { cfg.MaxReconnectAttempts = 3 },
		WithHooks(hooks), WithRenderer(renderer))
	unavailable := subscribe(c, EventTypeUnavailable)

	require.NoError(t, c.Connect(context.Background()))
	ev := await(t, unavailable)
	assert.ErrorIs(t, ev.Error, ErrUnavailable)

	assert.Equal(t, []int{1, 2, 3}, hooks.scheduled())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 4, tr.connectCount())
	assert.Equal(t, StateDisconnected, c.State())

	require.NoError(t, c.Do(context.Background(), func(*world.World) {}))
	renderer.mu.Lock()
	assert.Equal(t, []bool{false}, renderer.available)
	renderer.mu.Unlock()
}

func TestExplicitConnectRestoresAvailability(t *testing.T) {
	tr := newFakeTransport(connectFails)
	renderer := &availabilityRenderer{}
	c := newTestClient(t, tr, func(cfg *Config) { cfg.MaxReconnectAttempts = 0 }, WithRenderer(renderer))
	unavailable := subscribe(c, EventTypeUnavailable)
	connected := subscribe(c, EventTypeConnected)

	require.NoError(t, c.Connect(context.Background()))
	await(t, unavailable)

	tr.mu.Lock()
	tr.dial = connectOK
	tr.mu.Unlock()
	require.NoError(t, c.Connect(context.Background()))
	await(t, connected)

	require.NoError(t, c.Do(context.Background(), func(*world.World) {}))
	renderer.mu.Lock()
	assert.Equal(t, []bool{false, true}, renderer.available)
	renderer.mu.Unlock()
}

func TestHandshakeOnConnect(t *testing.T) {
	tr := newFakeTransport(connectOK)
	c := newTestClient(t, tr, nil)
	connected := subscribe(c, EventTypeConnected)

	require.NoError(t, c.Connect(context.Background()))
	await(t, connected)
	assert.Equal(t, StateConnected, c.State())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyConnected)

	sent := tr.sentFrames()
	require.Len(t, sent, 1)
	var msg []any
	require.NoError(t, cbor.Unmarshal(sent[0], &msg))
	require.Len(t, msg, 2)
	assert.EqualValues(t, protocol.ClientIntroduction, msg[0])
	assert.Equal(t, map[any]any{"client_name": "test"}, msg[1])
}

func TestDisconnectCancelsReconnect(t *testing.T) {
	tr := newFakeTransport(connectFails)
	c := newTestClient(t, tr, func(cfg *Config) { cfg.ReconnectBase = 100 * time.Millisecond })
	reconnecting := subscribe(c, EventTypeReconnecting)

	require.NoError(t, c.Connect(context.Background()))
	ev := await(t, reconnecting)
	assert.Equal(t, 1, ev.Data["attempt"])
	assert.Equal(t, 200*time.Millisecond, ev.Data["delay"])

	require.NoError(t, c.Disconnect(context.Background()))
	assert.Equal(t, StateDisconnected, c.State())

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 1, tr.connectCount())
}

func TestNormalCloseDoesNotReconnect(t *testing.T) {
	tr := newFakeTransport(connectOK)
	c := newTestClient(t, tr, nil)
	connected := subscribe(c, EventTypeConnected)
	disconnected := subscribe(c, EventTypeDisconnected)

	require.NoError(t, c.Connect(context.Background()))
	await(t, connected)

	tr.events <- protocol.TransportEvent{Session: 1, Kind: protocol.TransportDisconnected, Code: protocol.CloseNormal}
	ev := await(t, disconnected)
	assert.Equal(t, protocol.CloseNormal, ev.Data["code"])

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, tr.connectCount())
}

func TestStaleSessionEventsIgnored(t *testing.T) {
	tr := newFakeTransport(connectOK)
	c := newTestClient(t, tr, nil)
	connected := subscribe(c, EventTypeConnected)

	require.NoError(t, c.Connect(context.Background()))
	await(t, connected)

	tr.events <- protocol.TransportEvent{Session: 99, Kind: protocol.TransportError, Err: assert.AnError}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, 1, tr.connectCount())
}

func TestFramesApplyInOrder(t *testing.T) {
	tr := newFakeTransport(connectOK)
	c := newTestClient(t, tr, nil)
	connected := subscribe(c, EventTypeConnected)

	require.NoError(t, c.Connect(context.Background()))
	await(t, connected)

	buffer, view := protocol.NewID(0, 0), protocol.NewID(0, 0)
	tr.push(protocol.TransportBinary, frame(t,
		uint64(protocol.KindBufferCreate), map[string]any{"id": buffer, "size": 4, "inline_bytes": []byte{1, 2, 3, 4}},
	))
	tr.push(protocol.TransportBinary, frame(t,
		uint64(protocol.KindBufferViewCreate), map[string]any{"id": view, "source_buffer": buffer, "length": 4},
	))

	var resolved *world.Buffer
	require.Eventually(t, func() bool {
		_ = c.Do(context.Background(), func(w *world.World) {
			if v, ok := w.BufferView(view); ok {
				resolved = v.Buffer()
			}
		})
		return resolved != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []byte{1, 2, 3, 4}, resolved.Bytes)
}

func TestReconnectResetsWorld(t *testing.T) {
	tr := newFakeTransport(connectOK)
	c := newTestClient(t, tr, nil)
	connected := subscribe(c, EventTypeConnected)

	require.NoError(t, c.Connect(context.Background()))
	await(t, connected)

	buffer := protocol.NewID(3, 0)
	tr.push(protocol.TransportBinary, frame(t,
		uint64(protocol.KindBufferCreate), map[string]any{"id": buffer, "size": 1, "inline_bytes": []byte{9}},
	))
	require.Eventually(t, func() bool { return hasBuffer(c, buffer) }, 2*time.Second, 10*time.Millisecond)

	tr.push(protocol.TransportError, nil)
	await(t, connected)

	assert.False(t, hasBuffer(c, buffer))
	assert.Equal(t, 2, tr.connectCount())
	assert.Len(t, tr.sentFrames(), 2)
}

func TestInvokeRequiresKnownMethod(t *testing.T) {
	tr := newFakeTransport(connectOK)
	c := newTestClient(t, tr, nil)

	err := c.InvokeByName(context.Background(), "missing", nil, nil, nil)
	assert.ErrorIs(t, err, world.ErrMethodNotFound)
}

func TestClosedClientRejectsWork(t *testing.T) {
	tr := newFakeTransport(connectOK)
	c := newTestClient(t, tr, nil)
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Connect(context.Background()), ErrClientClosed)
	assert.ErrorIs(t, c.Do(context.Background(), func(*world.World) {}), ErrClientClosed)
}

func TestNewClientValidatesConfig(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.ApplyQueueSize = 0
	_, err := NewClient(cfg, log.NewNop(), WithTransport(newFakeTransport(connectOK)))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultClientConfig()
	cfg.URL = "tcp://localhost:1"
	_, err = NewClient(cfg, log.NewNop())
	assert.ErrorIs(t, err, protocol.ErrUnsupportedScheme)
}

// stallingFetcher blocks until the fetch context ends.
type stallingFetcher struct {
	started chan struct{}
}

func (f *stallingFetcher) Fetch(ctx context.Context, _ string) ([]byte, error) {
	close(f.started)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(3 * time.Second):
		return []byte{1}, nil
	}
}

func TestDisconnectAbortsPendingFetch(t *testing.T) {
	tr := newFakeTransport(connectOK)
	fetcher := &stallingFetcher{started: make(chan struct{})}
	c := newTestClient(t, tr, nil, WithFetcher(fetcher))
	connected := subscribe(c, EventTypeConnected)

	require.NoError(t, c.Connect(context.Background()))
	await(t, connected)

	buffer := protocol.NewID(0, 0)
	tr.push(protocol.TransportBinary, frame(t,
		uint64(protocol.KindBufferCreate), map[string]any{"id": buffer, "size": 1, "uri_bytes": "http://cdn.local/slow"},
	))
	select {
	case <-fetcher.started:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch not started")
	}

	start := time.Now()
	require.NoError(t, c.Disconnect(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StateDisconnected, c.State())
	assert.False(t, hasBuffer(c, buffer))
}
