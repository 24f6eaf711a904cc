package game

import (
	"sync"

	"github.com/NemeanGames/jackpot-game/models"
)

// TopicAll receives every state update.
const TopicAll = "games"

// TopicTier scopes updates to one tier's wheel.
func TopicTier(tier models.Tier) string {
	return "tier:" + string(tier)
}

// TopicGame scopes updates to a single game.
func TopicGame(gameUUID string) string {
	return "game:" + gameUUID
}

// Handler receives published state updates on the publisher's goroutine.
type Handler func(update StateUpdate)

// EventBus fans engine state changes out to subscribers. Delivery is
// in-process, synchronous and best-effort: a handler registered after
// a publish misses that event. Constructed once at startup and injected
// wherever it is needed.
type EventBus struct {
	mu     sync.RWMutex
	nextID int
	topics map[string]map[int]Handler
}

func NewEventBus() *EventBus {
	return &EventBus{topics: make(map[string]map[int]Handler)}
}

// Subscribe registers a handler on a topic and returns its
// subscription id for later removal.
func (b *EventBus) Subscribe(topic string, h Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[int]Handler)
	}
	b.topics[topic][id] = h
	return id
}

// Unsubscribe removes a subscription; unknown ids are a no-op.
func (b *EventBus) Unsubscribe(topic string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}

// Publish fans the update out to the global, tier and game topics.
func (b *EventBus) Publish(update StateUpdate) {
	topics := []string{
		TopicAll,
		TopicTier(update.Tier),
		TopicGame(update.GameUUID),
	}

	b.mu.RLock()
	var handlers []Handler
	for _, topic := range topics {
		for _, h := range b.topics[topic] {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(update)
	}
}

// SubscriberCount reports live subscriptions on a topic.
func (b *EventBus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
