package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mvigil90/oc-friends/internal/logging"
	"github.com/mvigil90/oc-friends/internal/models"
)

// Component names the emitter of friendship lifecycle events.
const Component = "FriendshipMapper"

// Lifecycle event names.
const (
	PostCreate  = "post_create"
	PostRequest = "post_request"
	PostAccept  = "post_accept"
	PostDelete  = "post_delete"
)

// Payload is the body carried by a lifecycle event.
type Payload struct {
	Friendship models.Friendship `json:"friendship"`
}

// Event is a notification that a friendship changed.
type Event struct {
	Component  string    `json:"component"`
	Name       string    `json:"event"`
	Payload    Payload   `json:"payload"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Emitter delivers events to interested parts of the application.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, event Event) error

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Nop discards every event.
var Nop Emitter = EmitterFunc(func(context.Context, Event) error { return nil })

// Fanout delivers each event to every sink, even when an earlier sink fails.
type Fanout []Emitter

// Emit forwards event to all sinks and joins their errors.
func (f Fanout) Emit(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogEmitter writes each event to the request-scoped logger.
type LogEmitter struct {
	Level slog.Level
}

// Emit logs event.
func (l LogEmitter) Emit(ctx context.Context, event Event) error {
	f := event.Payload.Friendship
	logging.FromContext(ctx).Log(ctx, l.Level, "friendship event",
		slog.String("component", event.Component),
		slog.String("event", event.Name),
		slog.String("friend_uid1", f.FriendUID1),
		slog.String("friend_uid2", f.FriendUID2),
		slog.String("status", f.Status.String()),
	)
	return nil
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit records event.
func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		names = append(names, ev.Name)
	}
	return names
}

// Reset clears the recorder.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
