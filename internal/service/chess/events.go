package chess

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type EventType string

const (
	EventPlayerMoved EventType = "player-moved"
	EventBotThinking EventType = "bot-thinking"
	EventBotMoved    EventType = "bot-moved"
	EventGameOver    EventType = "game-over"
	EventSessionNew  EventType = "session-reset"
	// EventCommentary carries a ply once its commentary has been stored.
	EventCommentary EventType = "commentary"
)

type Event struct {
	Type        EventType
	PlayerHash  string
	SessionUUID string
	Move        *PlyRecord
	State       *SessionState
	At          time.Time
}

type subscriber struct {
	playerHash string
	ch         chan Event
}

// EventBus fans events out to per-player subscribers. Publishing never
// blocks; a subscriber that falls behind misses events.
type EventBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
	closed bool
	logger *zap.Logger
}

func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{subs: make(map[int]*subscriber), logger: logger}
}

// Subscribe returns a channel of events for one player and a cancel func
// that closes it. An empty playerHash receives every event.
func (b *EventBus) Subscribe(playerHash string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscriber{playerHash: playerHash, ch: make(chan Event, buffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = sub
	b.mu.Unlock()

	return sub.ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.ch)
		}
	}
}

// Close ends every subscription. Later subscribers get a closed channel.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}

func (b *EventBus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.playerHash != "" && sub.playerHash != ev.PlayerHash {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.logger.Debug("chess event dropped", zap.String("type", string(ev.Type)))
		}
	}
}

func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
