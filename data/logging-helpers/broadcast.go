package logginghelpers

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Broadcaster is a logrus hook copying every formatted entry to its subscribers.
// A subscriber that falls behind misses entries instead of blocking the logger.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]chan []byte
	formatter   log.Formatter
	level       log.Level
}

func NewBroadcaster(level log.Level) *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uuid.UUID]chan []byte),
		formatter: &log.TextFormatter{
			ForceColors:      true,
			DisableTimestamp: true,
		},
		level: level,
	}
}

func (b *Broadcaster) Levels() []log.Level {
	levels := make([]log.Level, 0, len(log.AllLevels))
	for _, level := range log.AllLevels {
		if level <= b.level {
			levels = append(levels, level)
		}
	}
	return levels
}

func (b *Broadcaster) Fire(entry *log.Entry) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.subscribers) == 0 {
		return nil
	}
	line, err := b.formatter.Format(entry)
	if err != nil {
		return err
	}
	for _, send := range b.subscribers {
		// each subscriber gets its own copy
		msg := append([]byte(nil), line...)
		select {
		case send <- msg:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel receiving formatted entries until Unsubscribe.
func (b *Broadcaster) Subscribe(buffer int) (uuid.UUID, <-chan []byte) {
	id := uuid.New()
	send := make(chan []byte, buffer)
	b.mu.Lock()
	b.subscribers[id] = send
	b.mu.Unlock()
	return id, send
}

func (b *Broadcaster) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if send, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(send)
	}
}

func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
