// Package tracker implements the opponent state estimator: an elixir
// accounting state machine and a cycle-inference engine fed by noisy,
// possibly out-of-order card detection events, reconciled through a
// bounded retroactive-correction window.
package tracker

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/croverlay/croverlay/internal/events"
	"github.com/croverlay/croverlay/internal/knowledge"
	"github.com/croverlay/croverlay/internal/metrics"
)

// Config holds the tracking tunables. The defaults are starting points;
// all of them should be validated against recorded match traces.
type Config struct {
	// SpendTolerance is the slack (in elixir) before a spend is flagged
	// anomalous and before an unaffordable candidate is excluded.
	SpendTolerance float64

	// HistorySize is the retroactive-correction window K: how many
	// committed events stay revisable.
	HistorySize int

	// ReorderWindow is how long incoming events are buffered so that
	// out-of-order delivery can be sorted by timestamp.
	ReorderWindow time.Duration

	// LockThreshold is the per-card confidence all 8 hypothesis entries
	// must reach before the deck locks.
	LockThreshold float64

	// DueBoost is the multiplicative posterior boost for due candidates
	// once the deck is locked.
	DueBoost float64

	// CycleDeviationTolerance is how many off-cycle reappearances are
	// absorbed after locking before a hypothesis reset is requested.
	CycleDeviationTolerance int

	// InitialElixir is the opponent's elixir at match start.
	InitialElixir float64
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		SpendTolerance:          0.5,
		HistorySize:             12,
		ReorderWindow:           750 * time.Millisecond,
		LockThreshold:           0.6,
		DueBoost:                0.35,
		CycleDeviationTolerance: 3,
		InitialElixir:           5.0,
	}
}

// Validate checks the tunables for values that can never work.
func (c Config) Validate() error {
	if c.SpendTolerance < 0 {
		return fmt.Errorf("spend tolerance cannot be negative: %v", c.SpendTolerance)
	}
	if c.HistorySize < 1 {
		return fmt.Errorf("history size must be at least 1: %d", c.HistorySize)
	}
	if c.ReorderWindow < 0 {
		return fmt.Errorf("reorder window cannot be negative: %v", c.ReorderWindow)
	}
	if c.LockThreshold <= 0 || c.LockThreshold > 1 {
		return fmt.Errorf("lock threshold must be in (0, 1]: %v", c.LockThreshold)
	}
	if c.DueBoost < 0 {
		return fmt.Errorf("due boost cannot be negative: %v", c.DueBoost)
	}
	if c.CycleDeviationTolerance < 0 {
		return fmt.Errorf("cycle deviation tolerance cannot be negative: %d", c.CycleDeviationTolerance)
	}
	if c.InitialElixir < 0 || c.InitialElixir > knowledge.MaxElixir {
		return fmt.Errorf("initial elixir %v out of range [0, %v]", c.InitialElixir, knowledge.MaxElixir)
	}
	return nil
}

// Session owns all mutable tracking state for one match. Events may be
// pushed from multiple producers, but every mutation happens under one
// lock in strict timestamp order, so external reads always observe a
// fully consistent snapshot. Nothing is shared across sessions except the
// read-only knowledge base.
type Session struct {
	mu         sync.Mutex
	cfg        Config
	kb         *knowledge.Base
	dispatcher *events.Dispatcher
	metrics    *metrics.Tracker

	queue      *reorderQueue
	elixir     *ElixirMachine
	hypothesis *DeckHypothesis
	cycle      *CycleEngine
	resolver   *Resolver

	active     bool
	matchID    string
	matchStart time.Time
	playSeq    int
}

// NewSession creates a session against a loaded knowledge base.
// dispatcher and m may be nil when no observers or metrics are wanted.
func NewSession(kb *knowledge.Base, cfg Config, dispatcher *events.Dispatcher, m *metrics.Tracker) (*Session, error) {
	if kb == nil {
		return nil, fmt.Errorf("knowledge base cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracker config: %w", err)
	}

	s := &Session{
		cfg:        cfg,
		kb:         kb,
		dispatcher: dispatcher,
		metrics:    m,
	}
	s.rebuild()
	return s, nil
}

// rebuild wires fresh state machines. Callers hold the lock (or own the
// session exclusively, as in NewSession).
func (s *Session) rebuild() {
	s.queue = newReorderQueue(s.cfg.ReorderWindow)
	s.elixir = NewElixirMachine(s.kb, s.cfg.SpendTolerance)
	s.hypothesis = NewDeckHypothesis(s.cfg.LockThreshold)
	s.cycle = NewCycleEngine(s.kb, s.cfg.CycleDeviationTolerance)
	s.resolver = NewResolver(s.kb, s.elixir, s.hypothesis, s.cycle,
		s.cfg.HistorySize, s.cfg.SpendTolerance, s.cfg.DueBoost)
	s.playSeq = 0
}

// HandleDetection ingests one classifier observation. The event is copied;
// the producer keeps ownership of its own resources. Identities outside
// the knowledge base are a configuration error and reject the event.
func (s *Session) HandleDetection(ev DetectionEvent) error {
	if len(ev.Probabilities) == 0 {
		return ErrEmptyDistribution
	}
	positive := false
	for id, p := range ev.Probabilities {
		if !s.kb.Known(id) {
			return fmt.Errorf("%w: %q", ErrUnknownCard, id)
		}
		if p > 0 {
			positive = true
		}
	}
	if !positive {
		return ErrEmptyDistribution
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrSessionInactive
	}
	copied := ev.clone()
	s.ingest(inboundEvent{detection: &copied})
	return nil
}

// HandleTick ingests a regeneration tick.
func (s *Session) HandleTick(ev TickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrSessionInactive
	}
	s.ingest(inboundEvent{tick: &ev})
	return nil
}

// HandleLifecycle ingests a match lifecycle transition. Start and end
// take effect immediately: start resets all state atomically, end flushes
// the reordering buffer and deactivates the session. Phase changes are
// ordered through the queue with the other events.
func (s *Session) HandleLifecycle(ev MatchLifecycleEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case LifecycleStart:
		s.start(ev.Timestamp)
		return nil
	case LifecycleEnd:
		if !s.active {
			return ErrSessionInactive
		}
		s.end(ev.Timestamp)
		return nil
	case LifecyclePhaseChange:
		if !s.active {
			return ErrSessionInactive
		}
		if !ev.Phase.Valid() {
			return fmt.Errorf("invalid phase %q", ev.Phase)
		}
		s.ingest(inboundEvent{lifecycle: &ev})
		return nil
	default:
		return fmt.Errorf("unknown lifecycle kind %q", ev.Kind)
	}
}

func (s *Session) start(ts time.Time) {
	s.rebuild()
	s.elixir.Reset(s.cfg.InitialElixir, ts)
	s.active = true
	s.matchStart = ts
	s.matchID = fmt.Sprintf("match-%s", ts.UTC().Format("20060102-150405.000"))
	log.Printf("[Session] Match started: %s", s.matchID)

	s.emit(events.TypeMatchStarted, events.MatchStartedEvent{
		MatchID:   s.matchID,
		StartedAt: ts,
	}, ts)
}

func (s *Session) end(ts time.Time) {
	for _, ev := range s.queue.flush() {
		s.process(ev)
	}
	s.active = false
	log.Printf("[Session] Match ended: %s (%d plays, %d dropped)",
		s.matchID, s.playSeq, s.queue.droppedCount())

	s.emit(events.TypeMatchEnded, events.MatchEndedEvent{
		MatchID: s.matchID,
		EndedAt: ts,
		Plays:   s.playSeq,
		Dropped: s.queue.droppedCount(),
	}, ts)
}

// Reset discards buffered events, the correction window, hypothesis and
// cycle state atomically, and restarts elixir accounting at the initial
// value. The match stays active.
func (s *Session) Reset(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuild()
	s.elixir.Reset(s.cfg.InitialElixir, now)
}

// ingest routes one event through the reordering queue and processes
// whatever the queue releases. Callers hold the lock.
func (s *Session) ingest(ev inboundEvent) {
	ready, dropped := s.queue.push(ev)
	if dropped {
		if s.metrics != nil {
			s.metrics.RecordDrop()
		}
		s.emit(events.TypeEventDropped, events.EventDroppedEvent{
			MatchID: s.matchID,
			At:      ev.timestamp(),
			Dropped: s.queue.droppedCount(),
		}, ev.timestamp())
		return
	}
	for _, r := range ready {
		s.process(r)
	}
}

// process applies one released event to the state machines. Callers hold
// the lock; nothing here blocks.
func (s *Session) process(ev inboundEvent) {
	switch {
	case ev.tick != nil:
		s.elixir.Advance(ev.tick.Timestamp)
		s.emitSnapshot(ev.tick.Timestamp)

	case ev.lifecycle != nil:
		s.elixir.SetPhase(ev.lifecycle.Phase, ev.lifecycle.Timestamp)
		log.Printf("[Session] Phase change: %s at %v", ev.lifecycle.Phase, ev.lifecycle.Timestamp)
		s.emit(events.TypePhaseChanged, events.PhaseChangedEvent{
			MatchID: s.matchID,
			Phase:   string(ev.lifecycle.Phase),
			At:      ev.lifecycle.Timestamp,
		}, ev.lifecycle.Timestamp)
		s.emitSnapshot(ev.lifecycle.Timestamp)

	case ev.detection != nil:
		s.processDetection(*ev.detection)
	}
}

func (s *Session) processDetection(ev DetectionEvent) {
	available := s.elixir.ProjectedValue(ev.Timestamp)

	started := time.Now()
	play := s.resolver.Resolve(ev)
	if s.metrics != nil {
		s.metrics.ResolveLatencyMs.Observe(float64(time.Since(started).Microseconds()) / 1000.0)
		if play.Corrected > 0 {
			s.metrics.CorrectionDepth.Observe(float64(play.Corrected))
		}
	}

	if play.Contradiction {
		// A 9th distinct identity (or systematic cycle deviation) that the
		// resolver could not explain away by rewriting its window: the
		// hypothesis no longer explains what we see. Discard the
		// hypothesis and rotation, keep the elixir estimate.
		s.resetHypothesis(play.Card, ev.Timestamp)
		s.emitSnapshot(ev.Timestamp)
		return
	}

	s.playSeq++
	s.emit(events.TypePlayCommitted, events.PlayCommittedEvent{
		MatchID:    s.matchID,
		Seq:        s.playSeq,
		At:         ev.Timestamp,
		Card:       string(play.Card),
		Cost:       play.Cost,
		Confidence: play.Confidence,
		Evolved:    play.Evolved,
		Anomalous:  play.Anomalous,
		Corrected:  play.Corrected,
	}, ev.Timestamp)

	if play.Anomalous {
		if s.metrics != nil {
			s.metrics.RecordAnomalousSpend()
		}
		s.emit(events.TypeAnomalousSpend, events.AnomalousSpendEvent{
			MatchID:   s.matchID,
			Card:      string(play.Card),
			Cost:      play.Cost,
			Available: available,
			At:        ev.Timestamp,
		}, ev.Timestamp)
	}

	s.emitSnapshot(ev.Timestamp)
}

// resetHypothesis discards hypothesis, cycle and the correction window.
// Elixir state is deliberately preserved: regeneration accounting is not
// invalidated by a wrong deck belief.
func (s *Session) resetHypothesis(trigger knowledge.CardID, ts time.Time) {
	if s.metrics != nil {
		s.metrics.RecordReset()
	}
	log.Printf("[Session] Hypothesis reset triggered by %q", trigger)
	s.hypothesis.Reset()
	s.cycle.Reset()
	s.resolver.Reset()

	s.emit(events.TypeHypothesisReset, events.HypothesisResetEvent{
		MatchID: s.matchID,
		Trigger: string(trigger),
		At:      ts,
	}, ts)
}

// AdjustElixir applies a manual operator correction (hotkey +/-).
func (s *Session) AdjustElixir(delta float64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrSessionInactive
	}
	s.elixir.Advance(now)
	s.elixir.AdjustBy(delta)
	s.emitSnapshot(now)
	return nil
}

// ElixirSnapshot returns a consistent copy of the elixir estimate.
func (s *Session) ElixirSnapshot() ElixirSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elixir.Snapshot()
}

// CycleSnapshot returns a consistent copy of the rotation estimate.
func (s *Session) CycleSnapshot() CycleSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle.Snapshot()
}

// Active reports whether a match is in progress.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// MatchID returns the identifier of the current (or last) match.
func (s *Session) MatchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchID
}

// DroppedEvents returns how many events were dropped beyond the
// reordering window this match.
func (s *Session) DroppedEvents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.droppedCount()
}

func (s *Session) emit(eventType string, payload any, ts time.Time) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(events.Event{Type: eventType, Payload: payload, Timestamp: ts})
}

func (s *Session) emitSnapshot(ts time.Time) {
	if s.dispatcher == nil {
		return
	}
	s.emit(events.TypeSnapshotUpdated, events.SnapshotUpdatedEvent{
		MatchID: s.matchID,
		Elixir:  toElixirInfo(s.elixir.Snapshot()),
		Cycle:   toCycleInfo(s.cycle.Snapshot()),
	}, ts)
}

func toElixirInfo(s ElixirSnapshot) events.ElixirInfo {
	return events.ElixirInfo{
		Value:      s.Value,
		Phase:      string(s.Phase),
		LastUpdate: s.LastUpdate,
	}
}

func toCycleInfo(c CycleSnapshot) events.CycleInfo {
	slots := make([]events.SlotInfo, len(c.Slots))
	for i, slot := range c.Slots {
		slots[i] = events.SlotInfo{
			Card:       string(slot.Card),
			Resolved:   slot.Resolved,
			Confidence: slot.Confidence,
		}
	}
	return events.CycleInfo{
		Slots:         slots,
		DeckCoverage:  c.DeckCoverage,
		DueCandidates: cardStrings(c.DueCandidates),
		InferredHand:  cardStrings(c.InferredHand),
		Locked:        c.Locked,
	}
}

func cardStrings(ids []knowledge.CardID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
