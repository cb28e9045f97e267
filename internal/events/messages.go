package events

import "time"

// Event types dispatched by the tracking core.
const (
	TypeMatchStarted    = "match:started"
	TypeMatchEnded      = "match:ended"
	TypePhaseChanged    = "match:phase"
	TypePlayCommitted   = "tracker:play"
	TypeSnapshotUpdated = "tracker:snapshot"
	TypeAnomalousSpend  = "tracker:anomalous_spend"
	TypeHypothesisReset = "tracker:hypothesis_reset"
	TypeEventDropped    = "tracker:event_dropped"
)

// MatchStartedEvent is the payload for match:started.
type MatchStartedEvent struct {
	MatchID   string    `json:"matchId"`
	StartedAt time.Time `json:"startedAt"`
}

// MatchEndedEvent is the payload for match:ended.
type MatchEndedEvent struct {
	MatchID string    `json:"matchId"`
	EndedAt time.Time `json:"endedAt"`
	Plays   int       `json:"plays"`   // Committed plays this match
	Dropped int       `json:"dropped"` // Events dropped as too old
}

// PhaseChangedEvent is the payload for match:phase.
type PhaseChangedEvent struct {
	MatchID string    `json:"matchId"`
	Phase   string    `json:"phase"` // "single", "double" or "triple"
	At      time.Time `json:"at"`
}

// PlayCommittedEvent is the payload for tracker:play. One committed
// interpretation of a detection.
type PlayCommittedEvent struct {
	MatchID    string    `json:"matchId"`
	Seq        int       `json:"seq"` // Play ordinal within the match
	At         time.Time `json:"at"`
	Card       string    `json:"card"`
	Cost       float64   `json:"cost"`
	Confidence float64   `json:"confidence"`
	Evolved    bool      `json:"evolved"`
	Anomalous  bool      `json:"anomalous"`
	Corrected  int       `json:"corrected"` // Historical entries re-resolved by this play
}

// ElixirInfo mirrors the elixir snapshot for observers.
type ElixirInfo struct {
	Value      float64   `json:"value"`
	Phase      string    `json:"phase"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// SlotInfo is one rotation slot in a snapshot payload.
type SlotInfo struct {
	Card       string  `json:"card,omitempty"`
	Resolved   bool    `json:"resolved"`
	Confidence float64 `json:"confidence"`
}

// CycleInfo mirrors the cycle snapshot for observers.
type CycleInfo struct {
	Slots         []SlotInfo `json:"slots"`
	DeckCoverage  int        `json:"deckCoverage"`
	DueCandidates []string   `json:"dueCandidates"`
	InferredHand  []string   `json:"inferredHand"`
	Locked        bool       `json:"locked"`
}

// SnapshotUpdatedEvent is the payload for tracker:snapshot, emitted after
// every committed state change.
type SnapshotUpdatedEvent struct {
	MatchID string     `json:"matchId"`
	Elixir  ElixirInfo `json:"elixir"`
	Cycle   CycleInfo  `json:"cycle"`
}

// AnomalousSpendEvent is the payload for tracker:anomalous_spend: a play
// whose cost exceeded the elixir estimate beyond the tolerance.
type AnomalousSpendEvent struct {
	MatchID   string    `json:"matchId"`
	Card      string    `json:"card"`
	Cost      float64   `json:"cost"`
	Available float64   `json:"available"` // Estimate before the spend
	At        time.Time `json:"at"`
}

// HypothesisResetEvent is the payload for tracker:hypothesis_reset: a 9th
// distinct identity or a systematic cycle deviation forced the session to
// discard hypothesis and cycle state. Elixir state is preserved.
type HypothesisResetEvent struct {
	MatchID string    `json:"matchId"`
	Trigger string    `json:"trigger"` // Card identity that forced the reset
	At      time.Time `json:"at"`
}

// EventDroppedEvent is the payload for tracker:event_dropped: an event
// arrived behind the committed frontier, beyond the reordering window.
type EventDroppedEvent struct {
	MatchID string    `json:"matchId"`
	At      time.Time `json:"at"`      // Timestamp of the dropped event
	Dropped int       `json:"dropped"` // Running drop count this match
}
