package events

import (
	"sync"

	"bourse/internal/metrics"

	"github.com/rs/zerolog/log"
)

type Subscription struct {
	ch chan []byte
}

// C delivers encoded events. It is closed on Unsubscribe.
func (s *Subscription) C() <-chan []byte {
	return s.ch
}

// Hub fans encoded events out to in-process subscribers, typically websocket
// connections. A subscriber whose buffer is full misses the event.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

var _ Sink = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

func (h *Hub) Subscribe(buffer int) *Subscription {
	sub := &Subscription{ch: make(chan []byte, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	metrics.Subscribers.Inc()
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
	metrics.Subscribers.Dec()
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Publish(ev Event) {
	msg, err := Encode(ev)
	if err != nil {
		log.Error().Err(err).Msg("unable to encode event")
		return
	}
	h.Broadcast(msg)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- msg:
		default:
		}
	}
}
