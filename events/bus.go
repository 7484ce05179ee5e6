package events

import (
	"sync"
	"time"
)

// EventType identifies what happened.
type EventType string

const (
	ParticipantRegistered EventType = "participant_registered"
	ParticipantPruned     EventType = "participant_pruned"
	ParticipantLeft       EventType = "participant_left"
	StakeChanged          EventType = "stake_changed"
	BlockAccepted         EventType = "block_accepted"
	BlockDiscarded        EventType = "block_discarded"
	EpochCompleted        EventType = "epoch_completed"
)

// Event is published to all subscribers when consensus state changes.
type Event struct {
	Type          EventType
	ParticipantID string
	BlockHeight   int64
	Timestamp     time.Time
	Detail        interface{}
}

// Bus is an explicit observer list; consumers subscribe instead of relying
// on implicit event names.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a cancel function. The channel
// is buffered; a subscriber that falls behind misses events rather than
// blocking publishers.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 64)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
