package observer

import (
	"sync"
	"time"
)

type Event string

const (
	EventSessionCreated     Event = "session_created"
	EventDetectionCompleted Event = "detection_completed"
	EventDetectionFailed    Event = "detection_failed"
	EventSessionDeleted     Event = "session_deleted"
)

// DetectionData travels with every detection lifecycle event. Fields that do
// not apply to an event are left zero.
type DetectionData struct {
	SessionID string
	ModelID   string
	Counts    map[string]int
	Total     int
	Duration  time.Duration
	Err       error
}

type Observer interface {
	Update(event Event, data DetectionData)
}

type Subject interface {
	Attach(o Observer)
	Notify(event Event, data DetectionData)
}

// Broadcaster fans events out to its observers synchronously, in attach order.
type Broadcaster struct {
	mu        sync.RWMutex
	observers []Observer
}

func NewBroadcaster(observers ...Observer) *Broadcaster {
	return &Broadcaster{observers: observers}
}

func (b *Broadcaster) Attach(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

func (b *Broadcaster) Notify(event Event, data DetectionData) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, o := range b.observers {
		o.Update(event, data)
	}
}

// Func adapts a plain function.
type Func func(event Event, data DetectionData)

func (f Func) Update(event Event, data DetectionData) {
	f(event, data)
}
