package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"token_scanner/internal/domain"
	"token_scanner/internal/generator"
	"token_scanner/internal/infra"
	"token_scanner/internal/seed"
	"token_scanner/internal/wire"

	"github.com/puzpuzpuz/xsync/v4"
)

// Topic selects which events a pair stream emits.
type Topic uint32

const (
	TopicTick Topic = 1 << iota
	TopicStats
)

func (t Topic) String() string {
	switch t {
	case TopicTick:
		return "tick"
	case TopicStats:
		return "stats"
	}
	return "unknown"
}

// Config controls emission pacing. Pacing never affects emitted values.
type Config struct {
	Interval   time.Duration
	MaxStagger time.Duration
	StatsEvery int
	FastTiming bool
	FastFactor int
}

// Defaults
const (
	DefaultInterval   = time.Second
	DefaultMaxStagger = 1500 * time.Millisecond
	DefaultStatsEvery = 2
	DefaultFastFactor = 20
)

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxStagger <= 0 {
		c.MaxStagger = DefaultMaxStagger
	}
	if c.StatsEvery <= 0 {
		c.StatsEvery = DefaultStatsEvery
	}
	if c.FastFactor <= 0 {
		c.FastFactor = DefaultFastFactor
	}
	return c
}

// Emission is one event produced for a pair.
type Emission struct {
	Key   domain.PairKey
	Topic Topic
	Event string
	Data  any
}

// ProfileSource resolves the reference profile of a pair.
type ProfileSource interface {
	Resolve(key domain.PairKey) generator.Profile
}

// Scheduler runs one emitter goroutine per subscribed pair. A Scheduler
// belongs to a single connection; StopAll tears it down.
type Scheduler struct {
	base     uint32
	cfg      Config
	profiles ProfileSource
	emit     func(Emission)
	now      func() time.Time
	timeline func() int
	metrics  *infra.Metrics

	mu      sync.Mutex // serializes Start/Stop
	streams *xsync.Map[domain.PairKey, *pairStream]
}

type pairStream struct {
	key    domain.PairKey
	topics atomic.Uint32
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler. emit is called from emitter goroutines
// and must not block for long.
func NewScheduler(base uint32, cfg Config, profiles ProfileSource, emit func(Emission), metrics *infra.Metrics) *Scheduler {
	if metrics == nil {
		metrics = infra.NewMetrics()
	}
	return &Scheduler{
		base:     base,
		cfg:      cfg.withDefaults(),
		profiles: profiles,
		emit:     emit,
		now:      time.Now,
		timeline: func() int { return 0 },
		metrics:  metrics,
		streams:  xsync.NewMap[domain.PairKey, *pairStream](),
	}
}

// WithTimeline makes new streams join the shared tick timeline at
// tickIndex() instead of at zero, so a pair subscribed late continues the
// price path every other subscriber sees.
func (s *Scheduler) WithTimeline(tickIndex func() int) *Scheduler {
	if tickIndex != nil {
		s.timeline = tickIndex
	}
	return s
}

// Start adds topic to the pair's stream, starting the emitter if none runs.
// Starting an already running topic is a no-op.
func (s *Scheduler) Start(key domain.PairKey, topic Topic) {
	key = key.Canonical()
	s.mu.Lock()
	defer s.mu.Unlock()

	if ps, ok := s.streams.Load(key); ok {
		ps.topics.Or(uint32(topic))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ps := &pairStream{key: key, cancel: cancel, done: make(chan struct{})}
	ps.topics.Store(uint32(topic))
	s.streams.Store(key, ps)
	s.metrics.AddStreams(1)

	go s.run(ctx, ps)
	slog.Debug("stream started", slog.String("pair", key.PairAddress), slog.String("topic", topic.String()))
}

// Stop removes topic from the pair's stream. When no topic remains the
// emitter is cancelled and Stop waits for it to exit, so nothing is emitted
// for the pair after Stop returns.
func (s *Scheduler) Stop(key domain.PairKey, topic Topic) {
	key = key.Canonical()
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, ok := s.streams.Load(key)
	if !ok {
		return
	}
	if ps.topics.And(^uint32(topic))&^uint32(topic) != 0 {
		return
	}
	s.streams.Delete(key)
	s.halt(ps)
}

// StopAll cancels every emitter and waits for all of them.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*pairStream
	s.streams.Range(func(_ domain.PairKey, ps *pairStream) bool {
		all = append(all, ps)
		return true
	})
	for _, ps := range all {
		ps.cancel()
	}
	for _, ps := range all {
		s.streams.Delete(ps.key)
		<-ps.done
		s.metrics.AddStreams(-1)
	}
}

func (s *Scheduler) halt(ps *pairStream) {
	ps.cancel()
	<-ps.done
	s.metrics.AddStreams(-1)
}

// Active reports whether topic is currently emitted for key.
func (s *Scheduler) Active(key domain.PairKey, topic Topic) bool {
	ps, ok := s.streams.Load(key.Canonical())
	return ok && Topic(ps.topics.Load())&topic != 0
}

// Len returns the number of running emitters.
func (s *Scheduler) Len() int {
	return s.streams.Size()
}

// Stagger is the delay before the first emission for key.
func (s *Scheduler) Stagger(key domain.PairKey) time.Duration {
	maxMs := uint32(s.cfg.MaxStagger / time.Millisecond)
	if maxMs == 0 {
		return 0
	}
	d := time.Duration(seed.Hash(key.String())%maxMs) * time.Millisecond
	return s.pace(d)
}

func (s *Scheduler) pace(d time.Duration) time.Duration {
	if s.cfg.FastTiming {
		return d / time.Duration(s.cfg.FastFactor)
	}
	return d
}

func (s *Scheduler) run(ctx context.Context, ps *pairStream) {
	defer close(ps.done)

	profile := s.profiles.Resolve(ps.key)
	n0 := max(s.timeline(), 0)
	price := PriceAt(s.base, profile, n0)

	timer := time.NewTimer(s.Stagger(ps.key))
	defer timer.Stop()

	for n := n0 + 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}

		price = NextPrice(s.base, ps.key, n, price)
		topics := Topic(ps.topics.Load())
		if topics&TopicTick != 0 {
			s.emit(Emission{Key: ps.key, Topic: TopicTick, Event: wire.EventTick, Data: BuildTick(s.base, profile, n, price, s.now())})
			s.metrics.RecordTick()
		}
		if topics&TopicStats != 0 && n%s.cfg.StatsEvery == 0 {
			s.emit(Emission{Key: ps.key, Topic: TopicStats, Event: wire.EventPairStats, Data: BuildStats(s.base, ps.key, n)})
			s.metrics.RecordStats()
		}

		timer.Reset(s.pace(s.cfg.Interval))
	}
}
