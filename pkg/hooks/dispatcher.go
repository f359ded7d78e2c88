package hooks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Dispatcher fans events out to registered handlers and records each
// handler result in the audit sink. A nil *Dispatcher is valid and drops
// every event.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler
	sink     AuditSink
	nowFn    func() time.Time
}

func NewDispatcher(sink AuditSink, handlers ...Handler) *Dispatcher {
	return &Dispatcher{
		handlers: handlers,
		sink:     sink,
		nowFn:    time.Now,
	}
}

func (d *Dispatcher) Register(h Handler) {
	if d == nil || h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// Emit delivers one event to every handler. Handler failures are audited,
// never returned.
func (d *Dispatcher) Emit(ctx context.Context, ev Event, data Context) {
	if d == nil {
		return
	}
	if data.Timestamp.IsZero() {
		data.Timestamp = d.nowFn()
	}
	if data.EventID == "" {
		data.EventID = uuid.NewString()
	}

	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	for _, h := range handlers {
		start := d.nowFn()
		res := safeHandle(ctx, h, ev, data)
		if res.DurationMs == 0 {
			res.DurationMs = d.nowFn().Sub(start).Milliseconds()
		}
		d.audit(h.Name(), ev, data, res)
	}
}

// Instrument emits before, runs work, then emits after with the context work
// returned. The event ID is shared by both events.
func (d *Dispatcher) Instrument(ctx context.Context, before, after Event, data Context, work func(context.Context) Context) Context {
	if data.EventID == "" {
		data.EventID = uuid.NewString()
	}
	d.Emit(ctx, before, data)

	start := time.Now()
	out := work(ctx)
	if out.EventID == "" {
		out.EventID = data.EventID
	}
	if out.DurationMs == 0 {
		out.DurationMs = time.Since(start).Milliseconds()
	}
	out.Timestamp = time.Time{}

	d.Emit(ctx, after, out)
	if out.ErrorMessage != "" {
		d.Emit(ctx, EventOnError, out)
	}
	return out
}

func (d *Dispatcher) audit(handler string, ev Event, data Context, res Result) {
	if d.sink == nil {
		return
	}
	entry := AuditEntry{
		EventID:    data.EventID,
		Event:      ev,
		Handler:    handler,
		Status:     res.Status,
		Message:    res.Message,
		DurationMs: res.DurationMs,
		Timestamp:  data.Timestamp,
		Component:  data.Component,
		Operation:  data.Operation,
		Command:    data.Command,
		ExitCode:   data.ExitCode,
		Strategy:   data.Strategy,
		Metadata:   res.Metadata,
	}
	if res.Err != nil {
		entry.Error = res.Err.Error()
	}
	_ = d.sink.Write(entry)
}

func safeHandle(ctx context.Context, h Handler, ev Event, data Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Status: StatusError, Message: "handler panicked"}
		}
	}()
	return h.Handle(ctx, ev, data)
}
