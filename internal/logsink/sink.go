// Package logsink carries the operator log: the human-readable progress and
// failure lines an import produces.
//
// The engine never writes to a medium directly. Callers pass a Sink and
// decide where lines go (slog, a channel, memory). Error lines carry the
// "ERROR!" prefix so tooling can grep failures out of a run log.
package logsink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// ErrorMarker prefixes every error line.
const ErrorMarker = "ERROR!"

// Level of an event.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "info"
}

// Event is one operator log line.
type Event struct {
	Level   Level
	Message string
}

// String renders the event, adding the error marker to error events.
func (e Event) String() string {
	if e.Level == LevelError && !strings.HasPrefix(e.Message, ErrorMarker) {
		return ErrorMarker + " " + e.Message
	}
	return e.Message
}

// Sink receives operator log events.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// Infof emits an info event.
func Infof(ctx context.Context, s Sink, format string, args ...any) {
	s.Emit(ctx, Event{Level: LevelInfo, Message: fmt.Sprintf(format, args...)})
}

// Errorf emits an error event.
func Errorf(ctx context.Context, s Sink, format string, args ...any) {
	s.Emit(ctx, Event{Level: LevelError, Message: fmt.Sprintf(format, args...)})
}

// Slog forwards events to a slog.Logger.
type Slog struct {
	Logger *slog.Logger
}

// NewSlog wraps l. A nil logger uses slog.Default().
func NewSlog(l *slog.Logger) *Slog {
	if l == nil {
		l = slog.Default()
	}
	return &Slog{Logger: l}
}

func (s *Slog) Emit(ctx context.Context, e Event) {
	if e.Level == LevelError {
		s.Logger.ErrorContext(ctx, e.String())
		return
	}
	s.Logger.InfoContext(ctx, e.String())
}

// Chan delivers events on a buffered channel. Emit blocks when the buffer is
// full until the consumer reads or ctx is done, in which case the event is
// dropped.
type Chan struct {
	C chan Event
}

// NewChan creates a channel sink with the given buffer size.
func NewChan(size int) *Chan {
	return &Chan{C: make(chan Event, size)}
}

func (c *Chan) Emit(ctx context.Context, e Event) {
	select {
	case c.C <- e:
	case <-ctx.Done():
	}
}

// Close closes the channel. Emit must not be called afterwards.
func (c *Chan) Close() {
	close(c.C)
}

// Recorder keeps events in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Lines returns the rendered events.
func (r *Recorder) Lines() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.String()
	}
	return out
}

// Errors returns the rendered error events.
func (r *Recorder) Errors() []string {
	var out []string
	for _, e := range r.Events() {
		if e.Level == LevelError {
			out = append(out, e.String())
		}
	}
	return out
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(context.Context, Event) {}
