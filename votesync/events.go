// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package votesync

import "github.com/danielhkuo/startup-votes/models"

type EventKind string

const (
	EventApplied       EventKind = "applied"
	EventReverted      EventKind = "reverted"
	EventReconciled    EventKind = "reconciled"
	EventLoaded        EventKind = "loaded"
	EventNotification  EventKind = "notification"
	EventLoginRequired EventKind = "login_required"
)

// LevelError marks a notification the page shows as a failure.
const LevelError = "error"

// Event describes a change the page should render.
type Event struct {
	Kind      EventKind        `json:"kind"`
	StartupID int              `json:"startup_id,omitempty"`
	Vote      string           `json:"vote,omitempty"`
	Displayed int              `json:"displayed"`
	Buttons   models.Highlight `json:"buttons,omitempty"`
	Message   string           `json:"message,omitempty"`
	Level     string           `json:"level,omitempty"`
}

// Listener is called synchronously, never with the state lock held.
type Listener func(Event)

// Subscribe registers fn and returns a function that removes it.
func (s *Synchronizer) Subscribe(fn Listener) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Synchronizer) emit(ev Event) {
	s.lmu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
