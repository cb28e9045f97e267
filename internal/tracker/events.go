package tracker

import (
	"errors"
	"time"

	"github.com/croverlay/croverlay/internal/knowledge"
)

// Errors surfaced by event ingestion. Everything else that goes wrong at
// runtime is absorbed into best-effort state rather than returned.
var (
	// ErrUnknownCard is returned when a detection names a card identity
	// that is not in the knowledge base. Unknown identities are a
	// configuration problem, not a runtime anomaly.
	ErrUnknownCard = errors.New("unknown card identity")

	// ErrEmptyDistribution is returned when a detection carries no
	// candidate probabilities.
	ErrEmptyDistribution = errors.New("empty probability distribution")

	// ErrSessionInactive is returned when an event arrives outside a
	// started match.
	ErrSessionInactive = errors.New("no active match")
)

// DetectionEvent is one observation from the classification pipeline: a
// probability distribution over card identities at a point in time. The
// producer owns the event; the session copies what it needs and retains no
// producer-side resources.
type DetectionEvent struct {
	Timestamp     time.Time
	Probabilities map[knowledge.CardID]float64
	FrameID       string

	// Evolved is set when the classifier recognized the evolved art of
	// the card.
	Evolved bool
}

// clone returns a deep copy so the session never aliases producer memory.
func (e DetectionEvent) clone() DetectionEvent {
	probs := make(map[knowledge.CardID]float64, len(e.Probabilities))
	for id, p := range e.Probabilities {
		probs[id] = p
	}
	e.Probabilities = probs
	return e
}

// TickEvent drives elixir regeneration between plays.
type TickEvent struct {
	Timestamp time.Time
}

// LifecycleKind distinguishes match lifecycle transitions.
type LifecycleKind string

// Lifecycle transitions supplied by match-state detection.
const (
	LifecycleStart       LifecycleKind = "start"
	LifecyclePhaseChange LifecycleKind = "phaseChange"
	LifecycleEnd         LifecycleKind = "end"
)

// MatchLifecycleEvent signals a match boundary or a regeneration phase
// change. Phase is only meaningful for LifecyclePhaseChange.
type MatchLifecycleEvent struct {
	Kind      LifecycleKind
	Timestamp time.Time
	Phase     knowledge.Phase
}

// ElixirSnapshot is a consistent, immutable copy of the opponent elixir
// estimate.
type ElixirSnapshot struct {
	Value      float64         `json:"value"`
	Phase      knowledge.Phase `json:"phase"`
	LastUpdate time.Time       `json:"lastUpdate"`
}

// SlotSnapshot describes one rotation slot: either a resolved identity or
// an unresolved placeholder with its best candidate.
type SlotSnapshot struct {
	Card       knowledge.CardID `json:"card,omitempty"`
	Resolved   bool             `json:"resolved"`
	Confidence float64          `json:"confidence"`
}

// CycleSnapshot is a consistent, immutable copy of the rotation estimate.
type CycleSnapshot struct {
	// Slots is the rotation in order, front of the cycle first.
	Slots []SlotSnapshot `json:"slots"`

	// DeckCoverage counts the distinct identities discovered so far (0-8).
	DeckCoverage int `json:"deckCoverage"`

	// DueCandidates are up to 4 identities most likely to appear next.
	DueCandidates []knowledge.CardID `json:"dueCandidates"`

	// InferredHand is the recency-based guess at the opponent's current
	// 4-card hand.
	InferredHand []knowledge.CardID `json:"inferredHand"`

	// Locked reports whether the 8-card deck hypothesis is frozen.
	Locked bool `json:"locked"`
}

// ResolvedPlay is the committed interpretation of one detection.
type ResolvedPlay struct {
	Card       knowledge.CardID
	Cost       float64
	Confidence float64
	Evolved    bool

	// Anomalous marks a spend that exceeded the estimated elixir by more
	// than the configured tolerance.
	Anomalous bool

	// Contradiction marks a 9th distinct identity observed against a full
	// hypothesis; the session resets hypothesis and cycle state.
	Contradiction bool

	// Corrected counts historical events that were re-resolved as a
	// consequence of this one.
	Corrected int
}
