package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/roach88/dmap/internal/entries"
	"github.com/roach88/dmap/internal/eventlog"
	"github.com/roach88/dmap/internal/ir"
	"github.com/roach88/dmap/internal/registry"
)

// Engine is the single-writer call executor.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Exec(): safe from any goroutine; serialised with Run by mu
type Engine struct {
	registry *registry.Registry
	entries  *entries.Entries
	clock    Sequencer
	queue    *callQueue
	ids      eventlog.CallIDGenerator
	log      zerolog.Logger

	mu sync.Mutex // held for the whole of each executed call
}

// Sequencer hands out strictly increasing call seqs. *Clock is the
// production implementation.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock. Use NewClockAt to resume numbering.
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithCallIDs sets the call id generator. Default: UUIDv7Generator.
func WithCallIDs(g eventlog.CallIDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets the logger. Default: zerolog.Nop().
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// New creates an engine dispatching to reg and ent. ent may be nil, in
// which case entries calls fail with UnknownOpError.
func New(reg *registry.Registry, ent *entries.Entries, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		entries:  ent,
		clock:    NewClock(),
		queue:    newCallQueue(),
		ids:      eventlog.UUIDv7Generator{},
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() Sequencer {
	return e.clock
}

// Submit queues c for the Run loop and waits for its result.
//
// If ctx is cancelled before the call is executed Submit returns ctx.Err();
// the call may still run later. Returns ErrStopped if the engine is stopped.
func (e *Engine) Submit(ctx context.Context, c Call) (Result, error) {
	p := &pending{ctx: ctx, call: c, reply: make(chan reply, 1)}
	if !e.queue.Enqueue(p) {
		return Result{Call: c}, ErrStopped
	}

	select {
	case r := <-p.reply:
		return r.res, r.err
	case <-ctx.Done():
		return Result{Call: c}, ctx.Err()
	}
}

// Run starts the single-writer call loop.
// Blocks until ctx is cancelled or Stop() is called.
//
// Must be called from exactly ONE goroutine.
//
// A failed call is logged with its full context and processing continues.
// Calls still queued when Run returns receive ErrStopped.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info().Msg("engine starting")
	defer e.abandon()

	for {
		p, ok := e.queue.TryDequeue()
		if ok {
			e.process(p)
			continue
		}

		select {
		case <-ctx.Done():
			e.log.Info().Msg("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed by Close, so this fires
			// immediately once the queue is stopped.
			if e.queue.Len() == 0 && e.stopped() {
				e.log.Info().Msg("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run finishes the calls already queued, then returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) stopped() bool {
	e.queue.mu.Lock()
	defer e.queue.mu.Unlock()
	return e.queue.closed
}

func (e *Engine) abandon() {
	for _, p := range e.queue.Drain() {
		p.reply <- reply{res: Result{Call: p.call}, err: ErrStopped}
	}
}

func (e *Engine) process(p *pending) {
	if err := p.ctx.Err(); err != nil {
		p.reply <- reply{res: Result{Call: p.call}, err: err}
		return
	}
	res, err := e.Exec(p.ctx, p.call)
	if err != nil {
		e.logCallError(res.Call, err)
	}
	p.reply <- reply{res: res, err: err}
}

// Exec executes c synchronously, stamping it with the next seq and (if
// unset) a call id. The event of a successful call carries the same seq.
func (e *Engine) Exec(ctx context.Context, c Call) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c.Seq = e.clock.Next()
	if c.CallID == "" {
		c.CallID = e.ids.Generate()
	}
	ctx = eventlog.WithSeq(eventlog.WithCallID(ctx, c.CallID), c.Seq)

	e.log.Debug().
		Int64("seq", c.Seq).
		Str("call_id", c.CallID).
		Stringer("call", c).
		Msg("executing call")

	ev, err := e.dispatch(ctx, c)
	return Result{Call: c, Event: ev}, err
}

func (e *Engine) dispatch(ctx context.Context, c Call) (ir.Event, error) {
	switch c.Op {
	case OpJoin:
		return e.registry.Join(ctx, c.Caller)
	case OpAssignToGroup:
		return e.registry.AssignToGroup(ctx, c.Caller, c.Group, c.Score)
	case OpRemoveMember:
		return e.registry.RemoveMember(ctx, c.Caller)
	case OpRemoveGroupScores:
		return e.registry.RemoveGroupScores(ctx, c.Caller, c.Group)
	}

	if e.entries == nil {
		return ir.Event{}, &UnknownOpError{Op: c.Op}
	}
	switch c.Op {
	case OpEntrySet:
		return e.entries.Set(ctx, c.Caller, c.Value)
	case OpEntryGet:
		return e.entries.Get(ctx, c.Caller, c.Account)
	case OpEntryTake:
		return e.entries.Take(ctx, c.Caller)
	case OpEntryIncrease:
		return e.entries.Increase(ctx, c.Caller, c.Value)
	default:
		return ir.Event{}, &UnknownOpError{Op: c.Op}
	}
}

// logCallError logs a failed call with enough context to reproduce it.
// Rejections are expected outcomes and logged at debug level.
func (e *Engine) logCallError(c Call, err error) {
	lvl := e.log.Error()
	if ir.IsCallError(err) {
		lvl = e.log.Debug()
	}
	lvl.Err(err).
		Int64("seq", c.Seq).
		Str("call_id", c.CallID).
		Str("op", string(c.Op)).
		Uint64("caller", uint64(c.Caller)).
		Str("call", fmt.Sprint(c)).
		Msg("call failed")
}
