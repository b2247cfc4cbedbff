package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"token_scanner/internal/infra"
	"token_scanner/internal/wire"
)

// Sequencer is the single goroutine that owns the canonical state.
// Commands from all pairs are reduced in inbox order, so per-pair ordering
// holds by construction.
type Sequencer struct {
	inbox   chan wire.Command
	resets  chan chan struct{}
	reducer *Reducer
	state   atomic.Pointer[State]
	metrics *infra.Metrics

	processed atomic.Uint64

	// Boundary: notified with every new state, from the sequencer goroutine.
	onStateUpdate func(*State)
}

// NewSequencer creates a new sequencer instance.
func NewSequencer(inboxSize int, reducer *Reducer, metrics *infra.Metrics, onUpdate func(*State)) *Sequencer {
	if reducer == nil {
		reducer = NewReducer(ReducerConfig{}, nil)
	}
	if metrics == nil {
		metrics = infra.NewMetrics()
	}
	s := &Sequencer{
		inbox:         make(chan wire.Command, inboxSize),
		resets:        make(chan chan struct{}),
		reducer:       reducer,
		metrics:       metrics,
		onStateUpdate: onUpdate,
	}
	reducer.OnUnknownPair = func(pair string) {
		metrics.RecordUnknownPair()
		slog.Debug("dropping update for unknown pair", slog.String("pair", pair))
	}
	s.state.Store(NewState())
	return s
}

// Inbox returns the command channel. Producers send commands here.
func (s *Sequencer) Inbox() chan<- wire.Command {
	return s.inbox
}

// Submit enqueues cmd, blocking until there is room or ctx is done.
func (s *Sequencer) Submit(ctx context.Context, cmd wire.Command) error {
	select {
	case s.inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the latest published state. Safe for concurrent readers.
func (s *Sequencer) State() *State {
	return s.state.Load()
}

// Processed returns the number of commands reduced so far.
func (s *Sequencer) Processed() uint64 {
	return s.processed.Load()
}

// Run starts the main loop. This MUST be run in a single goroutine.
func (s *Sequencer) Run(ctx context.Context) {
	slog.Info("Sequencer started")

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState("panic_dump.json")
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sequencer stopping...", slog.Uint64("processed", s.processed.Load()))
			return
		case done := <-s.resets:
			empty := NewState()
			empty.Version = s.state.Load().Version + 1
			s.publish(empty)
			close(done)
		case cmd := <-s.inbox:
			s.process(cmd)
		}
	}
}

func (s *Sequencer) process(cmd wire.Command) {
	start := time.Now()
	prev := s.state.Load()
	next := s.reducer.Reduce(prev, cmd)
	s.processed.Add(1)
	s.metrics.RecordCommand(time.Since(start).Nanoseconds())

	if next == prev {
		return
	}
	s.publish(next)
}

func (s *Sequencer) publish(next *State) {
	s.state.Store(next)
	s.metrics.SetTokens(int64(next.Len()))
	if s.onStateUpdate != nil {
		s.onStateUpdate(next)
	}
}

// Reset clears every token. It is applied between two commands and returns
// once the empty state is published.
func (s *Sequencer) Reset(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case s.resets <- done:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DumpState writes the current state to a file (for post-mortem).
func (s *Sequencer) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	data := struct {
		Processed uint64 `json:"processed"`
		State     *State `json:"state"`
	}{
		Processed: s.processed.Load(),
		State:     s.state.Load(),
	}

	b, err := wire.MarshalIndent(data)
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
