package engine

import (
	"sync"
	"time"

	"trailing_bot/internal/models"
)

// Bus — шина событий движка. Publish неблокирующий: подписчик с забитым
// буфером теряет событие, порядок по одной позиции сохраняется.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan models.Event
	closed bool
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe возвращает канал событий с буфером buf.
func (b *Bus) Subscribe(buf int) <-chan models.Event {
	if buf <= 0 {
		buf = 64
	}
	ch := make(chan models.Event, buf)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) Publish(ev models.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// подписчик не успевает — дропаем, шина не должна тормозить движок
		}
	}
}

func (b *Bus) Close() {
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
