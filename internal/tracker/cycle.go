package tracker

import (
	"sort"

	"github.com/croverlay/croverlay/internal/knowledge"
)

// HandSize is the number of cards held at once.
const HandSize = 4

// resolveConfidence is the posterior below which a play fills a slot as an
// unresolved placeholder rather than a resolved identity.
const resolveConfidence = 0.5

// cycleSlot is one position in the 8-slot rotation.
type cycleSlot struct {
	card       knowledge.CardID // best identity, "" while nothing observed
	resolved   bool
	confidence float64
	candidates map[knowledge.CardID]float64 // retained for unresolved placeholders
}

// CycleEngine maintains the 8-slot FIFO rotation: each play returns that
// card to the back, and a card becomes due again once 7 other plays have
// intervened. Before the deck hypothesis locks, slots fill with
// placeholders weighted by observed candidates; after locking the rotation
// is deterministic modulo detection noise.
type CycleEngine struct {
	kb       *knowledge.Base
	rotation []*cycleSlot // always DeckSize long, front of the cycle first

	sinceSeen  map[knowledge.CardID]int // plays since the card last appeared
	lastSeenAt map[knowledge.CardID]int // play ordinal of the last appearance
	lastConf   map[knowledge.CardID]float64
	evoCharge  map[knowledge.CardID]int
	playCount  int

	// strict is set once the hypothesis locks: reappearance intervals are
	// then checked against the cycle length.
	strict             bool
	deviations         int
	deviationTolerance int
}

// NewCycleEngine creates an empty rotation. deviationTolerance is how many
// off-cycle reappearances are absorbed after locking before the engine
// requests a hypothesis reset.
func NewCycleEngine(kb *knowledge.Base, deviationTolerance int) *CycleEngine {
	e := &CycleEngine{
		kb:                 kb,
		sinceSeen:          make(map[knowledge.CardID]int),
		lastSeenAt:         make(map[knowledge.CardID]int),
		lastConf:           make(map[knowledge.CardID]float64),
		evoCharge:          make(map[knowledge.CardID]int),
		deviationTolerance: deviationTolerance,
	}
	e.rotation = emptyRotation()
	return e
}

func emptyRotation() []*cycleSlot {
	slots := make([]*cycleSlot, DeckSize)
	for i := range slots {
		slots[i] = &cycleSlot{}
	}
	return slots
}

// RecordPlay applies one resolved play: counters advance for every other
// known card, the played card's slot moves to the back, and in strict mode
// the reappearance interval is checked against the cycle length. The
// return value requests a hypothesis reset when deviations exceed the
// tolerance.
func (e *CycleEngine) RecordPlay(card knowledge.CardID, confidence float64, candidates map[knowledge.CardID]float64, evolved bool) (resetRequested bool) {
	e.playCount++

	if prev, seen := e.lastSeenAt[card]; seen && e.strict {
		if e.playCount-prev != DeckSize {
			e.deviations++
			if e.deviations > e.deviationTolerance {
				return true
			}
		}
	}
	e.lastSeenAt[card] = e.playCount
	e.lastConf[card] = confidence

	for id := range e.sinceSeen {
		if id != card {
			e.sinceSeen[id]++
		}
	}
	e.sinceSeen[card] = 0

	if c, ok := e.kb.Card(card); ok && c.EvolutionCycles > 0 {
		if evolved {
			e.evoCharge[card] = 0
		} else {
			e.evoCharge[card]++
		}
	}

	idx := e.slotIndex(card)
	slot := e.rotation[idx]
	slot.card = card
	slot.confidence = confidence
	slot.resolved = e.strict || confidence >= resolveConfidence
	if slot.resolved {
		slot.candidates = nil
	} else {
		slot.candidates = copyDistribution(candidates)
	}

	// To the back of the rotation.
	e.rotation = append(append(e.rotation[:idx:idx], e.rotation[idx+1:]...), slot)
	return false
}

// slotIndex picks the slot a play belongs to: the card's existing slot if
// it has one, otherwise the front-most slot still unclaimed.
func (e *CycleEngine) slotIndex(card knowledge.CardID) int {
	for i, s := range e.rotation {
		if s.card == card {
			return i
		}
	}
	for i, s := range e.rotation {
		if s.card == "" {
			return i
		}
	}
	for i, s := range e.rotation {
		if !s.resolved {
			return i
		}
	}
	return 0
}

// Lock switches the engine to strict cycle checking and places any locked
// deck member that has not yet claimed a slot, so that slot identities are
// a permutation of exactly the 8 locked cards.
func (e *CycleEngine) Lock(deck []HypothesisEntry) {
	e.strict = true
	for _, entry := range deck {
		if e.hasSlot(entry.Card) {
			continue
		}
		idx := e.slotIndex(entry.Card)
		slot := e.rotation[idx]
		slot.card = entry.Card
		slot.confidence = entry.Confidence
		slot.resolved = true
		slot.candidates = nil
		if _, ok := e.sinceSeen[entry.Card]; !ok {
			// Never committed as a play: treat as maximally due.
			e.sinceSeen[entry.Card] = e.playCount
			e.lastConf[entry.Card] = entry.Confidence
		}
	}
}

func (e *CycleEngine) hasSlot(card knowledge.CardID) bool {
	for _, s := range e.rotation {
		if s.card == card {
			return true
		}
	}
	return false
}

// DueCandidates returns up to 4 identities most likely to appear next:
// the stalest cards that have been out of the hand long enough to have
// been drawn back in, at least DeckSize-HandSize plays since last seen.
// Ordered highest plays-since-last-seen first, ties broken by cheaper
// cost (filler plays favor cheap cards), then by higher observation
// confidence. Early in a match, before anything has cleared the draw
// delay, nothing is due.
func (e *CycleEngine) DueCandidates() []knowledge.CardID {
	var due []knowledge.CardID
	for _, id := range e.rankedByStaleness() {
		if e.sinceSeen[id] < DeckSize-HandSize || len(due) == HandSize {
			break
		}
		due = append(due, id)
	}
	return due
}

// InferredHand returns the recency-based guess at the current hand: the 4
// known cards that went longest without being played, regardless of
// whether they have cleared the draw delay. With fewer than 4 known cards
// it returns everything discovered so far.
func (e *CycleEngine) InferredHand() []knowledge.CardID {
	ranked := e.rankedByStaleness()
	if len(ranked) > HandSize {
		ranked = ranked[:HandSize]
	}
	return ranked
}

func (e *CycleEngine) rankedByStaleness() []knowledge.CardID {
	ids := make([]knowledge.CardID, 0, len(e.sinceSeen))
	for id := range e.sinceSeen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if e.sinceSeen[a] != e.sinceSeen[b] {
			return e.sinceSeen[a] > e.sinceSeen[b]
		}
		costA, costB := e.kb.Cost(a), e.kb.Cost(b)
		if costA != costB {
			return costA < costB
		}
		if e.lastConf[a] != e.lastConf[b] {
			return e.lastConf[a] > e.lastConf[b]
		}
		return a < b
	})
	return ids
}

// EvolutionReady reports whether the card's evolution is charged: enough
// normal plays have accumulated since the last evolved play.
func (e *CycleEngine) EvolutionReady(card knowledge.CardID) bool {
	c, ok := e.kb.Card(card)
	if !ok || c.EvolutionCycles == 0 {
		return false
	}
	return e.evoCharge[card] >= c.EvolutionCycles
}

// PlaysSinceSeen returns the counter for card and whether the card has
// been seen at all.
func (e *CycleEngine) PlaysSinceSeen(card knowledge.CardID) (int, bool) {
	n, ok := e.sinceSeen[card]
	return n, ok
}

// PlayCount returns the total number of committed plays.
func (e *CycleEngine) PlayCount() int {
	return e.playCount
}

// Snapshot returns an immutable copy of the rotation state.
func (e *CycleEngine) Snapshot() CycleSnapshot {
	slots := make([]SlotSnapshot, len(e.rotation))
	for i, s := range e.rotation {
		slots[i] = SlotSnapshot{
			Card:       s.card,
			Resolved:   s.resolved,
			Confidence: s.confidence,
		}
	}
	return CycleSnapshot{
		Slots:         slots,
		DeckCoverage:  len(e.sinceSeen),
		DueCandidates: e.DueCandidates(),
		InferredHand:  e.InferredHand(),
		Locked:        e.strict,
	}
}

// Reset discards all rotation state.
func (e *CycleEngine) Reset() {
	e.rotation = emptyRotation()
	e.sinceSeen = make(map[knowledge.CardID]int)
	e.lastSeenAt = make(map[knowledge.CardID]int)
	e.lastConf = make(map[knowledge.CardID]float64)
	e.evoCharge = make(map[knowledge.CardID]int)
	e.playCount = 0
	e.strict = false
	e.deviations = 0
}

// clone returns an independent copy used for history checkpoints.
func (e *CycleEngine) clone() *CycleEngine {
	c := &CycleEngine{
		kb:                 e.kb,
		rotation:           make([]*cycleSlot, len(e.rotation)),
		sinceSeen:          copyCounters(e.sinceSeen),
		lastSeenAt:         copyCounters(e.lastSeenAt),
		lastConf:           copyDistribution(e.lastConf),
		evoCharge:          copyCounters(e.evoCharge),
		playCount:          e.playCount,
		strict:             e.strict,
		deviations:         e.deviations,
		deviationTolerance: e.deviationTolerance,
	}
	for i, s := range e.rotation {
		dup := *s
		dup.candidates = copyDistribution(s.candidates)
		c.rotation[i] = &dup
	}
	return c
}

// restore copies the state of a checkpoint back into the live engine.
func (e *CycleEngine) restore(from *CycleEngine) {
	c := from.clone()
	*e = *c
}

func copyCounters(m map[knowledge.CardID]int) map[knowledge.CardID]int {
	out := make(map[knowledge.CardID]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyDistribution(m map[knowledge.CardID]float64) map[knowledge.CardID]float64 {
	if m == nil {
		return nil
	}
	out := make(map[knowledge.CardID]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
