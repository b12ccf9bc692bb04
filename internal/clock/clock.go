// Package clock drives the market: on every interval it perturbs prices and
// runs the matching engine.
package clock

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"bourse/internal/common"
	"bourse/internal/metrics"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultMinPct   = -1.5
	DefaultMaxPct   = 1.5

	// MinPrice is the floor a random walk can take a price down to.
	MinPrice = 1.0
)

type State int32

const (
	Idle State = iota
	Ticking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ticking:
		return "ticking"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Ticker is the part of the market the clock drives.
type Ticker interface {
	Tick(reprice func(price float64) float64) ([]common.Trade, error)
}

type Simulator struct {
	market   Ticker
	interval time.Duration
	minPct   float64
	maxPct   float64
	rng      *rand.Rand

	state     atomic.Int32
	heartbeat atomic.Int64 // Unix nanos of the last completed tick.
}

type Option func(*Simulator)

func WithInterval(d time.Duration) Option {
	return func(s *Simulator) { s.interval = d }
}

// WithRange sets the bounds, in percent, of the uniform price change drawn
// for every company on every tick.
func WithRange(minPct, maxPct float64) Option {
	return func(s *Simulator) { s.minPct, s.maxPct = minPct, maxPct }
}

// WithRand fixes the random source, mainly for tests.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulator) { s.rng = rng }
}

func New(market Ticker, opts ...Option) *Simulator {
	s := &Simulator{
		market:   market,
		interval: DefaultInterval,
		minPct:   DefaultMinPct,
		maxPct:   DefaultMaxPct,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks the market until the tomb starts dying. The wait for the next
// tick starts only once the previous one has returned.
func (s *Simulator) Run(t *tomb.Tomb) error {
	log.Info().
		Dur("interval", s.interval).
		Float64("min_pct", s.minPct).
		Float64("max_pct", s.maxPct).
		Msg("market clock started")

	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	for {
		select {
		case <-t.Dying():
			log.Info().Msg("market clock stopped")
			return nil
		case <-timer.C:
			s.Step()
			timer.Reset(s.interval)
		}
	}
}

// Step runs a single tick. A failing tick is logged and counted; it never
// stops the clock.
func (s *Simulator) Step() {
	s.state.Store(int32(Ticking))
	defer s.state.Store(int32(Idle))

	start := time.Now()
	trades, err := s.tick()
	metrics.TickDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TickFailures.Inc()
		log.Error().Err(err).Msg("market tick failed")
		return
	}

	metrics.Ticks.Inc()
	s.heartbeat.Store(time.Now().UnixNano())
	log.Debug().Int("trades", len(trades)).Dur("took", time.Since(start)).Msg("market tick")
}

func (s *Simulator) tick() (trades []common.Trade, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	return s.market.Tick(s.Reprice)
}

// Reprice applies a random percentage change in [min, max] to price, floors
// it at MinPrice and rounds to cents.
func (s *Simulator) Reprice(price float64) float64 {
	change := s.minPct + s.rng.Float64()*(s.maxPct-s.minPct)
	return common.Round2(math.Max(MinPrice, price*(1+change/100)))
}

func (s *Simulator) State() State {
	return State(s.state.Load())
}

// Heartbeat is the completion time of the last successful tick, or the zero
// time if none has completed yet.
func (s *Simulator) Heartbeat() time.Time {
	nanos := s.heartbeat.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

func (s *Simulator) Interval() time.Duration {
	return s.interval
}
