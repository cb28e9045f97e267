package tracker

import (
	"sort"

	"github.com/croverlay/croverlay/internal/knowledge"
)

// Resolver is the central reconciliation point: it narrows each
// detection's probability distribution with structural priors from the
// elixir machine, the deck hypothesis and the cycle engine, commits the
// maximum-posterior identity, and retains the event in a bounded history
// window so that later structural evidence can retroactively re-resolve
// it. Corrections never reach past the window: evicted interpretations
// stand permanently.
type Resolver struct {
	kb        *knowledge.Base
	tolerance float64
	dueBoost  float64

	elixir     *ElixirMachine
	hypothesis *DeckHypothesis
	cycle      *CycleEngine
	history    *historyRing

	// pinnedDeck carries the locked 8-card set into a replay, where the
	// restored hypothesis predates the lock.
	pinnedDeck  map[knowledge.CardID]bool
	reconciling bool
}

// NewResolver wires a resolver to the session's state machines. tolerance
// is the affordability slack in elixir units, dueBoost the multiplicative
// posterior boost for due candidates, historySize the correction window K.
func NewResolver(kb *knowledge.Base, elixir *ElixirMachine, hypothesis *DeckHypothesis, cycle *CycleEngine, historySize int, tolerance, dueBoost float64) *Resolver {
	return &Resolver{
		kb:         kb,
		tolerance:  tolerance,
		dueBoost:   dueBoost,
		elixir:     elixir,
		hypothesis: hypothesis,
		cycle:      cycle,
		history:    newHistoryRing(historySize),
	}
}

// Resolve commits an interpretation of the detection and applies it to
// the state machines. When the commitment locks the hypothesis or flags
// an anomalous spend, the history window is reconciled and the returned
// play reflects any re-resolution. A contradiction is first tested
// against the window: a 9th distinct identity implies either a
// misclassification in the window or a wrong hypothesis, so the window
// is searched for the misclassification before the contradiction is
// reported upward.
func (r *Resolver) Resolve(ev DetectionEvent) ResolvedPlay {
	wasLocked := r.hypothesis.Locked()
	play := r.commit(ev)

	if play.Contradiction {
		if corrected, ok := r.explainContradiction(); ok {
			play = r.history.at(r.history.len() - 1).committed
			play.Corrected = corrected
		}
		return play
	}

	corrected := 0
	if r.hypothesis.Locked() && !wasLocked {
		r.cycle.Lock(r.hypothesis.Entries())
		corrected = r.reconcile()
	} else if play.Anomalous {
		corrected = r.reconcile()
	}

	if corrected > 0 && r.history.len() > 0 {
		// The window tail may have been re-resolved, this event included.
		play = r.history.at(r.history.len() - 1).committed
	}
	play.Corrected = corrected
	return play
}

// commit interprets one event against current state, applies it, and
// pushes it onto the history window with a pre-application checkpoint.
func (r *Resolver) commit(ev DetectionEvent) ResolvedPlay {
	entry := &historyEntry{
		event:      ev,
		elixir:     r.elixir.clone(),
		hypothesis: r.hypothesis.clone(),
		cycle:      r.cycle.clone(),
	}

	card, confidence, posterior := r.posterior(ev)
	info, _ := r.kb.Card(card)
	cost := info.Cost
	if ev.Evolved {
		cost = info.EvolutionCost
	}

	anomalous := r.elixir.ApplySpend(cost, ev.Timestamp)
	contradiction := r.hypothesis.Observe(card, confidence, ev.Timestamp)
	if !contradiction {
		if r.cycle.RecordPlay(card, confidence, posterior, ev.Evolved) {
			// Systematic cycle deviation: the locked hypothesis no longer
			// explains the plays we see.
			contradiction = true
		}
	}

	play := ResolvedPlay{
		Card:          card,
		Cost:          cost,
		Confidence:    confidence,
		Evolved:       ev.Evolved,
		Anomalous:     anomalous,
		Contradiction: contradiction,
	}
	entry.committed = play
	r.history.push(entry)
	return play
}

// posterior narrows the event's distribution: candidates the opponent
// could not afford are excluded, candidates outside a locked deck are
// excluded, and due candidates get a boost. If the priors eliminate
// everything, the raw distribution stands and downstream state flags the
// anomaly; no event here is ever independently falsifiable.
func (r *Resolver) posterior(ev DetectionEvent) (knowledge.CardID, float64, map[knowledge.CardID]float64) {
	available := r.elixir.ProjectedValue(ev.Timestamp)

	locked := r.hypothesis.Locked() || r.pinnedDeck != nil
	inDeck := func(id knowledge.CardID) bool {
		if r.pinnedDeck != nil {
			return r.pinnedDeck[id]
		}
		return r.hypothesis.Contains(id)
	}

	due := make(map[knowledge.CardID]bool)
	if locked {
		for _, id := range r.cycle.DueCandidates() {
			due[id] = true
		}
	}

	weights := make(map[knowledge.CardID]float64, len(ev.Probabilities))
	total := 0.0
	for id, p := range ev.Probabilities {
		if p <= 0 {
			continue
		}
		w := p
		info, _ := r.kb.Card(id)
		cost := info.Cost
		if ev.Evolved {
			cost = info.EvolutionCost
		}
		if cost > available+r.tolerance {
			continue
		}
		if locked && !inDeck(id) {
			continue
		}
		if due[id] {
			w *= 1 + r.dueBoost
		}
		weights[id] = w
		total += w
	}

	if total == 0 {
		for id, p := range ev.Probabilities {
			if p > 0 {
				weights[id] = p
				total += p
			}
		}
	}
	for id := range weights {
		weights[id] /= total
	}

	return argmax(weights), weights[argmax(weights)], weights
}

// reconcile scans the window for the earliest interpretation that the
// now-locked deck contradicts, restores that entry's checkpoint, and
// replays the rest of the window against the established facts. Returns
// the number of entries whose committed identity changed. A needed
// correction older than the window is simply never found: the stale
// interpretation stands.
func (r *Resolver) reconcile() int {
	if r.reconciling || !r.hypothesis.Locked() {
		return 0
	}
	r.reconciling = true
	defer func() {
		r.reconciling = false
		r.pinnedDeck = nil
	}()

	r.pinnedDeck = make(map[knowledge.CardID]bool, DeckSize)
	for _, e := range r.hypothesis.Entries() {
		r.pinnedDeck[e.Card] = true
	}

	start := -1
	for i := 0; i < r.history.len(); i++ {
		if r.inconsistent(r.history.at(i)) {
			start = i
			break
		}
	}
	if start < 0 {
		return 0
	}
	corrected, _ := r.replayFrom(start)
	return corrected
}

// explainContradiction runs after a contradicting commit: the window is
// searched for a single ambiguous sighting whose committed identity can
// be reinterpreted as the newcomer, and if one exists the window is
// replayed from it with the repaired 8-card set pinned. Returns the
// number of rewritten entries and whether the replay absorbed the
// conflict; false means the contradiction stands and the hypothesis must
// go. Only once-seen interpretations qualify as the misclassification:
// an identity sighted repeatedly is established by independent evidence.
func (r *Resolver) explainContradiction() (int, bool) {
	n := r.history.len()
	if r.reconciling || n < 2 {
		return 0, false
	}
	newcomer := r.history.at(n - 1).committed.Card
	if r.hypothesis.Contains(newcomer) {
		// Cycle deviation, not a 9th identity. The newcomer is already
		// held, so no reinterpretation of the window removes it.
		return 0, false
	}

	sightings := make(map[knowledge.CardID]int)
	for i := 0; i < n-1; i++ {
		sightings[r.history.at(i).committed.Card]++
	}

	suspect := -1
	var suspectCard knowledge.CardID
	for i := 0; i < n-1; i++ {
		e := r.history.at(i)
		card := e.committed.Card
		if !r.hypothesis.Contains(card) || sightings[card] != 1 {
			continue
		}
		if e.event.Probabilities[newcomer] > 0 {
			suspect = i
			suspectCard = card
			break
		}
	}
	if suspect < 0 {
		return 0, false
	}

	r.reconciling = true
	r.pinnedDeck = make(map[knowledge.CardID]bool, DeckSize)
	for _, e := range r.hypothesis.Entries() {
		if e.Card != suspectCard {
			r.pinnedDeck[e.Card] = true
		}
	}
	r.pinnedDeck[newcomer] = true
	defer func() {
		r.reconciling = false
		r.pinnedDeck = nil
	}()

	return r.replayFrom(suspect)
}

// replayFrom restores the checkpoint taken before window entry start and
// recommits every event from there on with the pinned deck in force.
// Returns the number of entries whose committed identity changed, and
// false if the replay itself ran into a contradiction.
func (r *Resolver) replayFrom(start int) (int, bool) {
	first := r.history.at(start)
	r.elixir.restore(first.elixir)
	r.hypothesis.restore(first.hypothesis)
	r.cycle.restore(first.cycle)

	var old []ResolvedPlay
	var evs []DetectionEvent
	for i := start; i < r.history.len(); i++ {
		old = append(old, r.history.at(i).committed)
		evs = append(evs, r.history.at(i).event)
	}
	r.history.truncate(start)

	corrected := 0
	for i, ev := range evs {
		wasLocked := r.hypothesis.Locked()
		play := r.commit(ev)
		if play.Contradiction {
			return corrected, false
		}
		if r.hypothesis.Locked() && !wasLocked {
			r.cycle.Lock(r.hypothesis.Entries())
		}
		if play.Card != old[i].Card {
			corrected++
		}
	}
	return corrected, true
}

// inconsistent reports whether an entry's committed identity contradicts
// the locked deck while the event offered a deck member as an
// alternative.
func (r *Resolver) inconsistent(e *historyEntry) bool {
	if r.pinnedDeck[e.committed.Card] {
		return false
	}
	for id, p := range e.event.Probabilities {
		if p > 0 && r.pinnedDeck[id] {
			return true
		}
	}
	return false
}

// WindowLen returns the number of revisable events currently held.
func (r *Resolver) WindowLen() int {
	return r.history.len()
}

// Reset clears the correction window. Called whenever hypothesis or cycle
// state is discarded: checkpoints across that boundary are meaningless.
func (r *Resolver) Reset() {
	r.history.clear()
}

// argmax picks the highest-weight identity; ties resolve to the lexically
// smallest so interpretation is deterministic.
func argmax(weights map[knowledge.CardID]float64) knowledge.CardID {
	ids := make([]knowledge.CardID, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if weights[ids[i]] != weights[ids[j]] {
			return weights[ids[i]] > weights[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}
