package world

import (
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/noodles/internal/core/observability/log"
	"github.com/zeusync/noodles/internal/core/protocol"
)

// TimeoutExceptionCode is reported to callbacks whose reply never came.
const TimeoutExceptionCode int64 = -32001

// Reply is what a completion callback receives. Exactly one of Result and
// Exception is meaningful.
type Reply struct {
	Result    any
	Exception *protocol.MethodException
}

func (r Reply) Err() error {
	if r.Exception == nil {
		return nil
	}
	return r.Exception
}

type Callback func(Reply)

type pendingCall struct {
	method   protocol.ID
	callback Callback
	issued   time.Time
}

// Correlator matches method replies to the calls that asked for them.
type Correlator struct {
	limit   int
	ttl     time.Duration
	pending map[string]pendingCall
	now     func() time.Time
	logger  log.Log
}

func NewCorrelator(limit int, ttl time.Duration, logger log.Log) *Correlator {
	if limit <= 0 {
		limit = DefaultConfig().MaxPending
	}
	if ttl <= 0 {
		ttl = DefaultConfig().PendingTTL
	}
	return &Correlator{
		limit:   limit,
		ttl:     ttl,
		pending: make(map[string]pendingCall),
		now:     time.Now,
		logger:  logger,
	}
}

func (c *Correlator) Len() int {
	return len(c.pending)
}

// Track registers cb and returns the token to send as invoke_id.
func (c *Correlator) Track(method protocol.ID, cb Callback) (string, error) {
	if len(c.pending) >= c.limit {
		return "", ErrTooManyPending
	}
	token := uuid.NewString()
	c.pending[token] = pendingCall{method: method, callback: cb, issued: c.now()}
	return token, nil
}

// Forget drops a token without calling its callback.
func (c *Correlator) Forget(token string) {
	delete(c.pending, token)
}

// Resolve fires the callback of the matching call once. Unknown tokens are
// dropped.
func (c *Correlator) Resolve(reply *protocol.MethodReply) bool {
	call, ok := c.pending[reply.InvokeID]
	if !ok {
		c.logger.Debug("reply without pending call", log.String("invoke_id", reply.InvokeID))
		return false
	}
	delete(c.pending, reply.InvokeID)
	call.callback(Reply{Result: reply.Result, Exception: reply.Exception})
	return true
}

// Sweep expires calls older than the TTL and returns how many it expired.
func (c *Correlator) Sweep(now time.Time) int {
	expired := 0
	for token, call := range c.pending {
		if now.Sub(call.issued) < c.ttl {
			continue
		}
		delete(c.pending, token)
		expired++
		c.logger.Warn("invocation timed out",
			log.String("invoke_id", token), log.Stringer("method", call.method))
		call.callback(Reply{Exception: &protocol.MethodException{
			Code:    TimeoutExceptionCode,
			Message: "request timed out",
		}})
	}
	return expired
}

// Invoke sends a method call. A nil cb makes it fire-and-forget; otherwise cb
// runs once on the writer, with the reply or a timeout.
func (w *World) Invoke(method protocol.ID, ctx *protocol.InvokeContext, args []any, cb Callback) error {
	if w.sender == nil {
		return ErrNoSender
	}
	msg := protocol.InvokeMethod{Method: method, Context: ctx, Args: args}
	if cb != nil {
		token, err := w.pending.Track(method, cb)
		if err != nil {
			return err
		}
		msg.InvokeID = token
	}

	data, err := protocol.EncodeInvoke(msg)
	if err == nil {
		err = w.sender.Send(data)
	}
	if err != nil {
		w.pending.Forget(msg.InvokeID)
	}
	w.hooks.PendingInvocations(w.pending.Len())
	return err
}

// InvokeByName resolves name against the context's methods before invoking.
func (w *World) InvokeByName(name string, ctx *protocol.InvokeContext, args []any, cb Callback) error {
	m, ok := w.lookupMethod(name, ctx)
	if !ok {
		return ErrMethodNotFound
	}
	return w.Invoke(m.ID, ctx, args, cb)
}

func (w *World) lookupMethod(name string, ctx *protocol.InvokeContext) (*Method, bool) {
	var scoped []*Method
	switch {
	case ctx.IsDocument():
		scoped = w.docMethods
	case ctx.Entity != nil:
		e, ok := w.entities.Get(*ctx.Entity)
		if !ok {
			return nil, false
		}
		scoped = e.Methods
	case ctx.Table != nil:
		if t, ok := w.tables.Get(*ctx.Table); ok {
			scoped = t.Methods
		}
	case ctx.Plot != nil:
		if p, ok := w.plots.Get(*ctx.Plot); ok {
			scoped = p.Methods
		}
	}
	for _, m := range scoped {
		if m.Name == name {
			return m, true
		}
	}
	if ctx != nil && ctx.Entity != nil {
		return nil, false
	}
	return w.MethodByName(name)
}

// SweepInvocations expires overdue calls.
func (w *World) SweepInvocations(now time.Time) int {
	n := w.pending.Sweep(now)
	if n > 0 {
		w.hooks.PendingInvocations(w.pending.Len())
	}
	return n
}

func (w *World) PendingInvocations() int {
	return w.pending.Len()
}
