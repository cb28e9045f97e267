package tracker

import (
	"testing"
	"time"

	"github.com/croverlay/croverlay/internal/knowledge"
)

func newTestResolver(t *testing.T, initialElixir float64, historySize int) (*Resolver, *ElixirMachine, *DeckHypothesis, *CycleEngine) {
	t.Helper()
	kb := testBase(t)
	elixir := NewElixirMachine(kb, 0.5)
	elixir.Reset(initialElixir, t0)
	hypothesis := NewDeckHypothesis(0.6)
	cycle := NewCycleEngine(kb, 3)
	r := NewResolver(kb, elixir, hypothesis, cycle, historySize, 0.5, 0.35)
	return r, elixir, hypothesis, cycle
}

func TestResolverAffordabilityPrior(t *testing.T) {
	r, elixir, _, _ := newTestResolver(t, 3.0, 12)

	// golem (8) is unaffordable at 3.0+0.5; knight survives the prior even
	// though the raw distribution favored golem.
	play := r.Resolve(DetectionEvent{
		Timestamp:     t0,
		Probabilities: map[knowledge.CardID]float64{"golem": 0.7, "knight": 0.3},
	})

	if play.Card != "knight" {
		t.Fatalf("Expected knight, got %s", play.Card)
	}
	if play.Anomalous {
		t.Error("Affordable play flagged anomalous")
	}
	if !almostEqual(play.Confidence, 1.0) {
		t.Errorf("Expected renormalized confidence 1.0, got %v", play.Confidence)
	}
	if !almostEqual(elixir.Value(), 0) {
		t.Errorf("Expected elixir 0 after 3-cost play, got %v", elixir.Value())
	}
}

func TestResolverFallbackWhenPriorsEliminateEverything(t *testing.T) {
	r, elixir, _, _ := newTestResolver(t, 1.0, 12)

	// Neither candidate is affordable: the raw distribution stands and the
	// spend is flagged anomalous downstream.
	play := r.Resolve(DetectionEvent{
		Timestamp:     t0,
		Probabilities: map[knowledge.CardID]float64{"golem": 0.6, "rocket": 0.4},
	})

	if play.Card != "golem" {
		t.Fatalf("Expected raw argmax golem, got %s", play.Card)
	}
	if !play.Anomalous {
		t.Error("Expected anomalous spend")
	}
	if elixir.Value() != 0 {
		t.Errorf("Expected elixir clamped to 0, got %v", elixir.Value())
	}
}

func TestResolverDeterministicTieBreak(t *testing.T) {
	r, _, _, _ := newTestResolver(t, 10, 12)

	play := r.Resolve(DetectionEvent{
		Timestamp:     t0,
		Probabilities: map[knowledge.CardID]float64{"knight": 0.5, "archers": 0.5},
	})
	// Equal posteriors resolve to the lexically smaller identity.
	if play.Card != "archers" {
		t.Errorf("Expected archers on tie, got %s", play.Card)
	}
}

func TestResolverLockedDeckFilter(t *testing.T) {
	r, elixir, hypothesis, cycle := newTestResolver(t, 10, 12)

	for _, card := range testDeck {
		hypothesis.Observe(card, 0.9, t0)
	}
	if !hypothesis.Locked() {
		t.Fatal("Expected locked hypothesis")
	}
	cycle.Lock(hypothesis.Entries())
	elixir.Reset(10, t0)

	play := r.Resolve(DetectionEvent{
		Timestamp:     t0,
		Probabilities: map[knowledge.CardID]float64{"golem": 0.6, "knight": 0.4},
	})
	if play.Card != "knight" {
		t.Errorf("Expected off-deck golem excluded, got %s", play.Card)
	}
}

func TestResolverDueBoost(t *testing.T) {
	r, elixir, hypothesis, cycle := newTestResolver(t, 10, 12)

	for _, card := range testDeck {
		hypothesis.Observe(card, 0.9, t0)
	}
	for _, card := range testDeck {
		cycle.RecordPlay(card, 0.9, nil, false)
	}
	cycle.Lock(hypothesis.Entries())
	elixir.Reset(10, t0)

	// knight is among the four stalest cards, archers is not; the boost
	// overturns the raw distribution's slight preference for archers.
	play := r.Resolve(DetectionEvent{
		Timestamp:     t0,
		Probabilities: map[knowledge.CardID]float64{"archers": 0.52, "knight": 0.48},
	})
	if play.Card != "knight" {
		t.Errorf("Expected due boost to pick knight, got %s", play.Card)
	}
}

func TestResolverContradictionRewritesWindow(t *testing.T) {
	r, elixir, hypothesis, _ := newTestResolver(t, 10, 12)

	// Seven deck members observed with certainty.
	ts := t0
	for _, card := range testDeck[:7] {
		ts = ts.Add(8 * time.Second)
		elixir.Reset(10, ts)
		play := r.Resolve(certain(card, ts))
		if play.Contradiction {
			t.Fatalf("Unexpected contradiction on %s", card)
		}
		if play.Card != card {
			t.Fatalf("Expected %s committed, got %s", card, play.Card)
		}
	}

	// An ambiguous sighting slightly favoring off-deck golem over the
	// still-unseen 8th member. Nothing rules golem out yet, so it commits.
	ts = ts.Add(8 * time.Second)
	elixir.Reset(10, ts)
	play := r.Resolve(DetectionEvent{
		Timestamp:     ts,
		Probabilities: map[knowledge.CardID]float64{"golem": 0.55, "hog_rider": 0.45},
	})
	if play.Card != "golem" {
		t.Fatalf("Expected golem committed pre-lock, got %s", play.Card)
	}
	if hypothesis.Locked() {
		t.Fatal("Hypothesis should not lock on an ambiguous 8th entry")
	}

	// A certain hog_rider would be a 9th identity, but the ambiguous golem
	// sighting explains it: the window is rewritten from that event on
	// instead of discarding the hypothesis.
	ts = ts.Add(8 * time.Second)
	elixir.Reset(10, ts)
	play = r.Resolve(certain("hog_rider", ts))

	if play.Contradiction {
		t.Fatal("Expected the window to absorb the contradiction")
	}
	if play.Card != "hog_rider" {
		t.Errorf("Expected hog_rider committed, got %s", play.Card)
	}
	if play.Corrected != 1 {
		t.Errorf("Expected 1 corrected entry, got %d", play.Corrected)
	}
	if hypothesis.Contains("golem") {
		t.Error("Rewritten hypothesis still contains golem")
	}
	if !hypothesis.Contains("hog_rider") {
		t.Error("Rewritten hypothesis missing hog_rider")
	}
	if !hypothesis.Locked() {
		t.Error("Expected the repaired deck to lock")
	}
	last := r.history.at(r.history.len() - 1).committed
	if last.Card != "hog_rider" {
		t.Errorf("Expected window tail hog_rider, got %s", last.Card)
	}
	if r.WindowLen() != 9 {
		t.Errorf("Expected window length 9, got %d", r.WindowLen())
	}
}

func TestResolverContradictionNotExplainedByReinforcedMember(t *testing.T) {
	r, elixir, hypothesis, _ := newTestResolver(t, 10, 12)

	ts := t0
	for _, card := range testDeck[:7] {
		ts = ts.Add(8 * time.Second)
		elixir.Reset(10, ts)
		r.Resolve(certain(card, ts))
	}

	// Ambiguous 8th entry commits golem, then golem is sighted again with
	// certainty: two independent sightings establish it.
	ts = ts.Add(8 * time.Second)
	elixir.Reset(10, ts)
	r.Resolve(DetectionEvent{
		Timestamp:     ts,
		Probabilities: map[knowledge.CardID]float64{"golem": 0.55, "hog_rider": 0.45},
	})
	ts = ts.Add(8 * time.Second)
	elixir.Reset(10, ts)
	r.Resolve(certain("golem", ts))

	// A repeatedly-seen member cannot be explained away by its one
	// ambiguous sighting; the contradiction stands.
	ts = ts.Add(8 * time.Second)
	elixir.Reset(10, ts)
	play := r.Resolve(certain("hog_rider", ts))
	if !play.Contradiction {
		t.Error("Expected contradiction to stand against a twice-seen member")
	}
	if !hypothesis.Contains("golem") {
		t.Error("Established golem entry should survive the failed explanation")
	}
}

func TestResolverWindowEviction(t *testing.T) {
	r, elixir, _, _ := newTestResolver(t, 10, 3)

	ts := t0
	for i := 0; i < 5; i++ {
		ts = ts.Add(8 * time.Second)
		elixir.Reset(10, ts)
		r.Resolve(certain(testDeck[i], ts))
	}
	if r.WindowLen() != 3 {
		t.Errorf("Expected window capped at 3, got %d", r.WindowLen())
	}
}

func TestResolverContradictionShortCircuits(t *testing.T) {
	r, elixir, hypothesis, _ := newTestResolver(t, 10, 12)

	ts := t0
	for _, card := range testDeck {
		ts = ts.Add(8 * time.Second)
		elixir.Reset(10, ts)
		r.Resolve(certain(card, ts))
	}
	if hypothesis.Len() != DeckSize {
		t.Fatalf("Expected full hypothesis, got %d", hypothesis.Len())
	}

	ts = ts.Add(8 * time.Second)
	elixir.Reset(10, ts)
	play := r.Resolve(certain("golem", ts))
	if !play.Contradiction {
		t.Error("Expected contradiction for 9th distinct identity")
	}
}
