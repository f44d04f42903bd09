package engine

import (
	"sync"
	"time"

	"elo-ledger/server/ledger"
)

type EventKind string

const (
	EventResultCommitted EventKind = "result_committed"
	EventResultUndone    EventKind = "result_undone"
	EventPendingChanged  EventKind = "pending_changed"
	EventCommentAdded    EventKind = "comment_added"
	EventPlayersChanged  EventKind = "players_changed"
)

// Event signals that a scope's ledgers or logs changed. Game is empty when
// the change is not tied to one game.
type Event struct {
	Scope ledger.Scope `json:"scope"`
	Game  string       `json:"game,omitempty"`
	Kind  EventKind    `json:"kind"`
	At    time.Time    `json:"at"`
}

const subscriberBuffer = 64

type broker struct {
	mu     sync.Mutex
	subs   []chan Event
	closed bool
}

func newBroker() *broker { return &broker{} }

func (b *broker) subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *broker) publish(evs ...Event) {
	if len(evs) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ev := range evs {
		for _, ch := range b.subs {
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
