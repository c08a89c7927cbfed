package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event types published by the core.
const (
	InstructionSent   = "instruction.sent"
	InstructionFailed = "instruction.failed"
	FunctionStarted   = "function.started"
	FunctionCompleted = "function.completed"
	FunctionFailed    = "function.failed"
	StepStarted       = "step.started"
	StepCompleted     = "step.completed"
	StepFailed        = "step.failed"
	TemperatureSample = "temperature.sample"
	StateChanged      = "state.changed"
	StatusChanged     = "status.changed"
)

type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type subscription struct {
	ch     chan *Event
	filter map[string]bool
}

// Streamer fans events out to subscribers. Publishing never blocks: a full
// subscriber channel drops the event.
type Streamer struct {
	mu          sync.RWMutex
	subscribers []*subscription
	bufferSize  int
	dropped     atomic.Uint64
}

func NewStreamer() *Streamer {
	return &Streamer{bufferSize: 100}
}

// Subscribe returns a channel receiving events of the given types, or of
// every type when none are given.
func (s *Streamer) Subscribe(eventTypes ...string) <-chan *Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &subscription{ch: make(chan *Event, s.bufferSize)}
	if len(eventTypes) > 0 {
		sub.filter = make(map[string]bool, len(eventTypes))
		for _, t := range eventTypes {
			sub.filter[t] = true
		}
	}
	s.subscribers = append(s.subscribers, sub)
	return sub.ch
}

func (s *Streamer) Unsubscribe(ch <-chan *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub.ch == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(sub.ch)
			break
		}
	}
}

// Publish builds an event and broadcasts it. Safe on a nil Streamer.
func (s *Streamer) Publish(eventType string, payload map[string]any) {
	if s == nil {
		return
	}
	s.Broadcast(&Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

func (s *Streamer) Broadcast(event *Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscribers {
		if sub.filter != nil && !sub.filter[event.Type] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			s.dropped.Add(1)
		}
	}
}

// Dropped counts events skipped because a subscriber was full.
func (s *Streamer) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Streamer) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}
