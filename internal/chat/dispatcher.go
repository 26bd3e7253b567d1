package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handler processes one inbound event and returns the replies to send.
// Implemented by the flow machine.
type Handler interface {
	Handle(ctx context.Context, ev Event) ([]Message, error)
}

// Poller is the inbound side of the transport (long-poll in production,
// a fake in tests).
type Poller interface {
	Updates(ctx context.Context, offset int64, timeout time.Duration) ([]Event, int64, error)
	Send(ctx context.Context, m Message) error
	AckCallback(ctx context.Context, callbackID string) error
}

// Dispatcher drains inbound events and runs them through the handler.
//
// Events are routed into a per-chat FIFO queue with one worker per active
// chat: a chat's events run in arrival order, while different chats proceed
// in parallel. The machine's lock guards cross-instance exclusion; ordering
// within an instance is the dispatcher's job. Handler failures never kill the
// poll loop and the user always gets a reply.
type Dispatcher struct {
	transport   Poller
	handler     Handler
	log         *slog.Logger
	pollTimeout time.Duration

	mu     sync.Mutex
	queues map[int64]*chatQueue
}

// chatQueue holds a chat's pending events. The entry exists only while its
// worker is running; pending order is arrival order.
type chatQueue struct {
	pending []Event
}

func NewDispatcher(transport Poller, handler Handler, log *slog.Logger, pollTimeout time.Duration) *Dispatcher {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Dispatcher{
		transport:   transport,
		handler:     handler,
		log:         log,
		pollTimeout: pollTimeout,
		queues:      map[int64]*chatQueue{},
	}
}

const genericFailure = "Something went wrong. Please try again or send /start."

// Run polls until ctx is done. New events stop being accepted on shutdown;
// in-flight handlers are not drained — financial consistency is protected by
// idempotent reconciliation, not graceful shutdown.
func (d *Dispatcher) Run(ctx context.Context) {
	offset := int64(0)
	for {
		if ctx.Err() != nil {
			return
		}

		events, next, err := d.transport.Updates(ctx, offset, d.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Error("update poll failed", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}
		offset = next

		for _, ev := range events {
			d.enqueue(ctx, ev)
		}
	}
}

// enqueue appends the event to its chat's queue, starting a worker if the
// chat has none. Appending under the dispatcher mutex is what preserves
// arrival order; a goroutine per event would let two events from one batch
// reach the chat lock in swapped order.
func (d *Dispatcher) enqueue(ctx context.Context, ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if q, ok := d.queues[ev.ChatID]; ok {
		q.pending = append(q.pending, ev)
		return
	}
	q := &chatQueue{pending: []Event{ev}}
	d.queues[ev.ChatID] = q
	go d.drain(ctx, ev.ChatID, q)
}

// drain runs the chat's events to completion in order, then retires the
// queue so idle chats don't accumulate entries.
func (d *Dispatcher) drain(ctx context.Context, chatID int64, q *chatQueue) {
	for {
		d.mu.Lock()
		if len(q.pending) == 0 {
			delete(d.queues, chatID)
			d.mu.Unlock()
			return
		}
		ev := q.pending[0]
		q.pending = q.pending[1:]
		d.mu.Unlock()

		d.dispatch(ctx, ev)
	}
}

// dispatch runs one event to completion. All handler-level errors are caught
// here, logged, and converted to a generic user-visible failure; no raw
// internal detail reaches the chat.
func (d *Dispatcher) dispatch(ctx context.Context, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error("handler panicked", "chat_id", ev.ChatID, "panic", p)
			_ = d.transport.Send(ctx, Message{ChatID: ev.ChatID, Text: genericFailure})
		}
	}()

	if ev.CallbackID != "" {
		if err := d.transport.AckCallback(ctx, ev.CallbackID); err != nil {
			d.log.Warn("callback ack failed", "chat_id", ev.ChatID, "err", err)
		}
	}

	replies, err := d.handler.Handle(ctx, ev)
	if err != nil {
		d.log.Error("event handling failed", "chat_id", ev.ChatID, "err", err)
		_ = d.transport.Send(ctx, Message{ChatID: ev.ChatID, Text: genericFailure})
		return
	}
	for _, m := range replies {
		if err := d.transport.Send(ctx, m); err != nil {
			d.log.Error("send failed", "chat_id", m.ChatID, "err", err)
		}
	}
}
