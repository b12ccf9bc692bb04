package events

import (
	"sync"
	"time"

	"bourse/internal/metrics"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	DefaultQueueSize = 1024

	// DefaultReportWait bounds how long Publish blocks on a full queue for
	// events that report an outcome to a trader.
	DefaultReportWait = time.Second
)

// Dispatcher decouples publishers from slow sinks. Publish only enqueues; a
// single goroutine delivers every event to every sink in the order it was
// published.
type Dispatcher struct {
	queue      chan Event
	reportWait time.Duration

	mu    sync.RWMutex
	sinks []Sink
}

var _ Sink = (*Dispatcher)(nil)

func NewDispatcher(queueSize int, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		queue:      make(chan Event, queueSize),
		reportWait: DefaultReportWait,
		sinks:      sinks,
	}
}

// Attach adds a downstream sink.
func (d *Dispatcher) Attach(sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, sink)
}

// Publish enqueues an event. When the queue is full, snapshot events are
// dropped at once since the next tick supersedes them. Trade and rejection
// reports wait up to the report bound for room before being dropped.
func (d *Dispatcher) Publish(ev Event) {
	select {
	case d.queue <- ev:
		return
	default:
	}

	if isReport(ev) {
		timer := time.NewTimer(d.reportWait)
		defer timer.Stop()
		select {
		case d.queue <- ev:
			return
		case <-timer.C:
		}
	}
	metrics.EventsDropped.Inc()
	log.Warn().Str("type", ev.Type()).Msg("event queue full, dropping event")
}

func isReport(ev Event) bool {
	switch ev.(type) {
	case TradeExecuted, OrderRejected:
		return true
	}
	return false
}

// Run delivers queued events until the tomb starts dying, then flushes what
// is left in the queue.
func (d *Dispatcher) Run(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			d.drain()
			return nil
		case ev := <-d.queue:
			d.deliver(ev)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	d.mu.RLock()
	sinks := d.sinks
	d.mu.RUnlock()

	for _, sink := range sinks {
		publishSafely(sink, ev)
	}
}

// publishSafely keeps one misbehaving sink from taking down delivery.
func publishSafely(sink Sink, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("type", ev.Type()).Msg("event sink panicked")
		}
	}()
	sink.Publish(ev)
}
