package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid events for the same path so a burst of
// writes turns into one rescan. Merge rules by operation sequence:
//
//	CREATE + MODIFY = CREATE
//	CREATE + DELETE = nothing (the file never really existed)
//	MODIFY + DELETE = DELETE
//	DELETE + CREATE = MODIFY (the file was replaced)
type Debouncer struct {
	window time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingEvent
	timer   *time.Timer
	output  chan []Event
	stopped bool
}

type pendingEvent struct {
	event   Event
	firstOp Operation
}

// NewDebouncer creates a Debouncer emitting batches after each quiet
// window.
func NewDebouncer(window time.Duration, bufferSize int, logger *slog.Logger) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer{
		window:  window,
		logger:  logger,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []Event, bufferSize),
	}
}

// Add feeds one event in, coalescing with any pending event for the
// same path and (re)arming the flush timer.
func (d *Debouncer) Add(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[ev.Path]; ok {
		merged, keep := coalesce(existing.firstOp, ev)
		if !keep {
			delete(d.pending, ev.Path)
		} else {
			existing.event = merged
		}
	} else {
		d.pending[ev.Path] = &pendingEvent{event: ev, firstOp: ev.Operation}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// coalesce merges a new event into a pending one. keep=false means the
// pair cancelled out.
func coalesce(firstOp Operation, ev Event) (Event, bool) {
	switch firstOp {
	case OpCreate:
		switch ev.Operation {
		case OpModify:
			ev.Operation = OpCreate
			return ev, true
		case OpDelete:
			return Event{}, false
		}
	case OpDelete:
		if ev.Operation == OpCreate {
			ev.Operation = OpModify
			return ev, true
		}
	}
	return ev, true
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]Event, 0, len(d.pending))
	for _, pe := range d.pending {
		batch = append(batch, pe.event)
	}
	d.pending = make(map[string]*pendingEvent)

	select {
	case d.output <- batch:
	default:
		// The consumer is behind; the periodic rescan covers the loss.
		d.logger.Warn("debouncer output full, dropping batch",
			slog.Int("batch_size", len(batch)))
	}
}

// Output returns the batch channel. Closed on Stop.
func (d *Debouncer) Output() <-chan []Event {
	return d.output
}

// Stop stops the debouncer and closes the output channel. Safe to call
// multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
