package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// State is a step of an encryption or decryption run.
type State int

const (
	Idle State = iota
	ValidatingInputs
	DerivingKey
	ProcessingFiles
	Finalizing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ValidatingInputs:
		return "validating inputs"
	case DerivingKey:
		return "deriving key"
	case ProcessingFiles:
		return "processing files"
	case Finalizing:
		return "finalizing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// EventKind tells which fields of an Event are set.
type EventKind int

const (
	// EventState carries State.
	EventState EventKind = iota
	// EventProgress carries Path, Done and Total.
	EventProgress
	// EventLog carries Level, Message and optionally Path.
	EventLog
)

// Level is the severity of a log event.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
)

// Event is emitted by a run as it proceeds.
type Event struct {
	Session uuid.UUID
	Kind    EventKind
	State   State
	Path    string
	Done    int
	Total   int
	Level   Level
	Message string
}

// Sink receives the events of a run, synchronously and in order.
type Sink func(Event)

// ChannelSink delivers events on ch. A send blocks until received or ctx is done,
// after which events are dropped.
func ChannelSink(ctx context.Context, ch chan<- Event) Sink {
	return func(e Event) {
		select {
		case ch <- e:
		case <-ctx.Done():
		}
	}
}

// emitter stamps events with the session and forwards them to an optional sink.
type emitter struct {
	session uuid.UUID
	sink    Sink
	state   State
}

func (e *emitter) emit(ev Event) {
	if e.sink == nil {
		return
	}

	ev.Session = e.session
	e.sink(ev)
}

func (e *emitter) transition(to State) {
	e.state = to
	e.emit(Event{Kind: EventState, State: to})
}

func (e *emitter) progress(path string, done, total int) {
	e.emit(Event{Kind: EventProgress, State: e.state, Path: path, Done: done, Total: total})
}

func (e *emitter) logf(level Level, path, format string, args ...any) {
	e.emit(Event{Kind: EventLog, State: e.state, Level: level, Path: path, Message: fmt.Sprintf(format, args...)})
}
