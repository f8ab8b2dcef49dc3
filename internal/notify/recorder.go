package notify

import (
	"context"
	"sync"
)

// Recorder is an Emitter that captures events for assertions in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	edits  map[int64][]string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{edits: make(map[int64][]string)}
}

func (r *Recorder) Send(ctx context.Context, event Event) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return int64(len(r.events)), nil
}

func (r *Recorder) Edit(ctx context.Context, handle int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits[handle] = append(r.edits[handle], text)
	return nil
}

// Events returns a copy of everything sent so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Edits returns the edit history for a delivery handle.
func (r *Recorder) Edits(handle int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.edits[handle]...)
}

var _ Emitter = (*Recorder)(nil)
