// services/broadcaster.go - In-process fan-out of quest events
package services

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types announced after successful transitions.
const (
	EventNewTask           = "NEW_TASK"
	EventTaskCompleted     = "TASK_COMPLETED"
	EventTaskFailed        = "TASK_FAILED"
	EventPunishmentApplied = "PUNISHMENT_APPLIED"
)

// Send channel buffer size per subscriber
const subscriberBuffer = 64

// Emitter is what the lifecycle code needs from a notification layer.
type Emitter interface {
	Emit(userID uint, eventType string, payload any)
}

type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

// Subscription is one connected observer of a user's events.
type Subscription struct {
	ID     string
	UserID uint
	Events <-chan Event

	send chan Event
}

// Broadcaster delivers events to whoever is connected at emit time. Nothing
// is queued for absent observers; a subscriber with a full buffer misses
// the event.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[uint]map[string]*Subscription
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint]map[string]*Subscription)}
}

func (b *Broadcaster) Subscribe(userID uint) *Subscription {
	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{ID: uuid.NewString(), UserID: userID, Events: ch, send: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[string]*Subscription)
	}
	b.subs[userID][sub.ID] = sub
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	userSubs, ok := b.subs[sub.UserID]
	if !ok {
		return
	}
	if _, ok := userSubs[sub.ID]; !ok {
		return
	}
	delete(userSubs, sub.ID)
	if len(userSubs) == 0 {
		delete(b.subs, sub.UserID)
	}
	close(sub.send)
}

// Emit never blocks.
func (b *Broadcaster) Emit(userID uint, eventType string, payload any) {
	event := Event{Type: eventType, Data: payload, At: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[userID] {
		select {
		case sub.send <- event:
		default:
			log.Printf("⚠️ Event buffer full for subscriber %s, dropping %s", sub.ID, eventType)
		}
	}
}

// Subscribers reports how many observers a user currently has.
func (b *Broadcaster) Subscribers(userID uint) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}
