package tracker

import (
	"sort"
	"time"

	"github.com/croverlay/croverlay/internal/knowledge"
)

// DeckSize is the number of distinct cards in a deck.
const DeckSize = 8

// HypothesisEntry is one believed deck member with its accumulated
// confidence.
type HypothesisEntry struct {
	Card          knowledge.CardID
	Confidence    float64
	FirstObserved time.Time
	LastObserved  time.Time
}

// DeckHypothesis accumulates the growing set of up to 8 distinct cards
// believed to compose the opponent's deck. The set grows monotonically
// until it locks; it never shrinks except on explicit reset.
type DeckHypothesis struct {
	entries       []HypothesisEntry // sorted by confidence, highest first
	locked        bool
	lockThreshold float64
}

// NewDeckHypothesis creates an empty hypothesis. lockThreshold is the
// per-card confidence all 8 entries must clear before the set freezes.
func NewDeckHypothesis(lockThreshold float64) *DeckHypothesis {
	return &DeckHypothesis{lockThreshold: lockThreshold}
}

// Observe records a sighting of card with the given posterior confidence.
// A repeat sighting reinforces the stored confidence with a weighted
// average that favors the newer observation when it is the stronger one.
// A 9th distinct identity is a contradiction: it is not absorbed, and the
// caller decides whether to reset the hypothesis.
func (h *DeckHypothesis) Observe(card knowledge.CardID, confidence float64, ts time.Time) (contradiction bool) {
	for i := range h.entries {
		if h.entries[i].Card != card {
			continue
		}
		// Weight toward the observation when it is more confident than
		// what we already hold; otherwise let it nudge, not overwrite.
		weight := 0.35
		if confidence > h.entries[i].Confidence {
			weight = 0.65
		}
		h.entries[i].Confidence = h.entries[i].Confidence*(1-weight) + confidence*weight
		h.entries[i].LastObserved = ts
		h.sort()
		h.tryLock()
		return false
	}

	if len(h.entries) >= DeckSize {
		return true
	}

	h.entries = append(h.entries, HypothesisEntry{
		Card:          card,
		Confidence:    confidence,
		FirstObserved: ts,
		LastObserved:  ts,
	})
	h.sort()
	h.tryLock()
	return false
}

func (h *DeckHypothesis) sort() {
	sort.SliceStable(h.entries, func(i, j int) bool {
		return h.entries[i].Confidence > h.entries[j].Confidence
	})
}

// tryLock freezes the set once exactly 8 entries all clear the threshold.
func (h *DeckHypothesis) tryLock() {
	if h.locked || len(h.entries) < DeckSize {
		return
	}
	for _, e := range h.entries {
		if e.Confidence < h.lockThreshold {
			return
		}
	}
	h.locked = true
}

// Locked reports whether the 8-card set is frozen.
func (h *DeckHypothesis) Locked() bool {
	return h.locked
}

// Contains reports whether card is part of the current hypothesis.
func (h *DeckHypothesis) Contains(card knowledge.CardID) bool {
	for _, e := range h.entries {
		if e.Card == card {
			return true
		}
	}
	return false
}

// Confidence returns the stored confidence for card, or 0 if absent.
func (h *DeckHypothesis) Confidence(card knowledge.CardID) float64 {
	for _, e := range h.entries {
		if e.Card == card {
			return e.Confidence
		}
	}
	return 0
}

// Len returns the number of distinct identities held.
func (h *DeckHypothesis) Len() int {
	return len(h.entries)
}

// Entries returns a copy of the entries ordered by confidence.
func (h *DeckHypothesis) Entries() []HypothesisEntry {
	out := make([]HypothesisEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Reset discards all entries and unlocks the hypothesis.
func (h *DeckHypothesis) Reset() {
	h.entries = h.entries[:0]
	h.locked = false
}

// clone returns an independent copy used for history checkpoints.
func (h *DeckHypothesis) clone() *DeckHypothesis {
	c := &DeckHypothesis{
		entries:       make([]HypothesisEntry, len(h.entries)),
		locked:        h.locked,
		lockThreshold: h.lockThreshold,
	}
	copy(c.entries, h.entries)
	return c
}

// restore copies the state of a checkpoint back into the live hypothesis.
func (h *DeckHypothesis) restore(from *DeckHypothesis) {
	h.entries = make([]HypothesisEntry, len(from.entries))
	copy(h.entries, from.entries)
	h.locked = from.locked
	h.lockThreshold = from.lockThreshold
}
