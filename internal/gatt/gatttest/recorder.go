// Package gatttest provides a recording gatt.Peripheral for tests.
package gatttest

import (
	"sync"

	"github.com/google/uuid"
)

// Notification is one recorded Notify call
type Notification struct {
	Char  uuid.UUID
	Value string
}

// Recorder is an in-memory gatt.Peripheral
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
	values        map[uuid.UUID][]byte
	active        [][]uuid.UUID

	// NotifyErr is returned from every Notify call when set
	NotifyErr error
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{values: make(map[uuid.UUID][]byte)}
}

// Notify implements gatt.Peripheral
func (r *Recorder) Notify(char uuid.UUID, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.NotifyErr != nil {
		return r.NotifyErr
	}
	r.notifications = append(r.notifications, Notification{Char: char, Value: string(value)})
	return nil
}

// SetValue implements gatt.Peripheral
func (r *Recorder) SetValue(char uuid.UUID, value []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[char] = append([]byte(nil), value...)
}

// SetActiveServices implements gatt.Peripheral
func (r *Recorder) SetActiveServices(services []uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = append(r.active, append([]uuid.UUID(nil), services...))
}

// Notified returns the values notified on char, oldest first
func (r *Recorder) Notified(char uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notifications {
		if n.Char == char {
			out = append(out, n.Value)
		}
	}
	return out
}

// Value returns the readable value of char
func (r *Recorder) Value(char uuid.UUID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.values[char])
}

// Active returns the most recent active service set
func (r *Recorder) Active() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.active) == 0 {
		return nil
	}
	return r.active[len(r.active)-1]
}

// Reset forgets recorded notifications
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = nil
}
