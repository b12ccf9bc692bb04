package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"bourse/internal/book"
	"bourse/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"
)

// --- Setup & Helpers --------------------------------------------------------

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func tradeEvent(id string) TradeExecuted {
	return TradeExecuted{Trade: common.Trade{ID: id, Symbol: "AAPL", Price: 100, Quantity: 1}}
}

// --- Tests ------------------------------------------------------------------

func TestEncodeAddsType(t *testing.T) {
	msg, err := Encode(tradeEvent("t-1"))
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(msg, &decoded))
	assert.JSONEq(t, `"trade_executed"`, string(decoded["type"]))
	assert.Contains(t, decoded, "trade")

	var trade common.Trade
	require.NoError(t, json.Unmarshal(decoded["trade"], &trade))
	assert.Equal(t, "t-1", trade.ID)
}

func TestEncodeOrderBookUpdate(t *testing.T) {
	msg, err := Encode(OrderBookUpdate{
		Symbol:    "AAPL",
		OrderBook: book.NewOrderBook("AAPL").Snapshot(),
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"order_book_update","symbol":"AAPL","order_book":{"symbol":"AAPL","buy":[],"sell":[]}}`,
		string(msg))
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(16, sink)

	var tb tomb.Tomb
	tb.Go(func() error { return d.Run(&tb) })

	for _, id := range []string{"a", "b", "c"} {
		d.Publish(tradeEvent(id))
	}

	assert.Eventually(t, func() bool { return len(sink.Events()) == 3 }, time.Second, time.Millisecond)
	tb.Kill(nil)
	require.NoError(t, tb.Wait())

	var ids []string
	for _, ev := range sink.Events() {
		ids = append(ids, ev.(TradeExecuted).Trade.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestDispatcherDropsSnapshotsWhenFull(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(2, sink)

	// Not running yet, so the queue only holds two.
	for range 3 {
		d.Publish(MarketUpdate{})
	}

	var tb tomb.Tomb
	tb.Go(func() error { return d.Run(&tb) })
	tb.Kill(nil)
	require.NoError(t, tb.Wait())

	assert.Len(t, sink.Events(), 2)
}

func TestDispatcherWaitsForTradeReports(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(1, sink)

	d.Publish(MarketUpdate{})
	d.Publish(MarketUpdate{}) // dropped, queue is full

	published := make(chan struct{})
	go func() {
		d.Publish(tradeEvent("a"))
		close(published)
	}()

	var tb tomb.Tomb
	tb.Go(func() error { return d.Run(&tb) })
	<-published
	assert.Eventually(t, func() bool { return len(sink.Events()) == 2 }, time.Second, time.Millisecond)
	tb.Kill(nil)
	require.NoError(t, tb.Wait())

	got := sink.Events()
	require.Len(t, got, 2)
	assert.Equal(t, TypeMarketUpdate, got[0].Type())
	assert.Equal(t, TypeTradeExecuted, got[1].Type())
}

func TestDispatcherDropsReportAfterWait(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(1, sink)
	d.reportWait = 10 * time.Millisecond

	d.Publish(tradeEvent("a"))
	start := time.Now()
	d.Publish(OrderRejected{Order: common.Order{ID: "o-1"}, Reason: "insufficient_funds"})
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	var tb tomb.Tomb
	tb.Go(func() error { return d.Run(&tb) })
	tb.Kill(nil)
	require.NoError(t, tb.Wait())

	require.Len(t, sink.Events(), 1)
	assert.Equal(t, "a", sink.Events()[0].(TradeExecuted).Trade.ID)
}

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(4, SinkFunc(func(Event) { panic("boom") }))
	d.Attach(sink)

	d.Publish(tradeEvent("a"))

	var tb tomb.Tomb
	tb.Go(func() error { return d.Run(&tb) })
	tb.Kill(nil)
	require.NoError(t, tb.Wait())

	assert.Len(t, sink.Events(), 1)
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub()
	first := hub.Subscribe(1)
	second := hub.Subscribe(1)
	assert.Equal(t, 2, hub.Len())

	hub.Publish(tradeEvent("a"))

	for _, sub := range []*Subscription{first, second} {
		select {
		case msg := <-sub.C():
			assert.Contains(t, string(msg), `"trade_executed"`)
		default:
			t.Fatal("subscriber did not receive event")
		}
	}

	hub.Unsubscribe(first)
	hub.Unsubscribe(first)
	assert.Equal(t, 1, hub.Len())
	_, open := <-first.C()
	assert.False(t, open)
}

func TestHubSkipsFullSubscriber(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(1)
	defer hub.Unsubscribe(sub)

	hub.Broadcast([]byte("one"))
	hub.Broadcast([]byte("two"))

	assert.Equal(t, "one", string(<-sub.C()))
	select {
	case msg := <-sub.C():
		t.Fatalf("unexpected message %q", msg)
	default:
	}
}
