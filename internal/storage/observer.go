package storage

import (
	"context"
	"fmt"

	"github.com/croverlay/croverlay/internal/events"
)

// Observer persists tracker events as they are dispatched. Register it on
// the session's dispatcher to record a match trace.
type Observer struct {
	name string
	repo *MatchRepository
}

// NewObserver creates a persistence observer over the match repository.
func NewObserver(repo *MatchRepository) *Observer {
	return &Observer{name: "StorageObserver", repo: repo}
}

// OnEvent writes the event to the store.
func (o *Observer) OnEvent(event events.Event) error {
	ctx := context.Background()

	switch event.Type {
	case events.TypeMatchStarted:
		p, ok := events.Payload[events.MatchStartedEvent](event)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", event.Type)
		}
		return o.repo.CreateMatch(ctx, p.MatchID, p.StartedAt)

	case events.TypeMatchEnded:
		p, ok := events.Payload[events.MatchEndedEvent](event)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", event.Type)
		}
		return o.repo.EndMatch(ctx, p.MatchID, p.EndedAt, p.Plays, p.Dropped)

	case events.TypePlayCommitted:
		p, ok := events.Payload[events.PlayCommittedEvent](event)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", event.Type)
		}
		return o.repo.RecordPlay(ctx, Play{
			MatchID:    p.MatchID,
			Seq:        p.Seq,
			PlayedAt:   p.At,
			Card:       p.Card,
			Cost:       p.Cost,
			Confidence: p.Confidence,
			Evolved:    p.Evolved,
			Anomalous:  p.Anomalous,
			Corrected:  p.Corrected,
		})

	case events.TypeAnomalousSpend:
		p, ok := events.Payload[events.AnomalousSpendEvent](event)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", event.Type)
		}
		return o.repo.RecordAnomaly(ctx, Anomaly{
			MatchID:    p.MatchID,
			OccurredAt: p.At,
			Card:       p.Card,
			Cost:       p.Cost,
			Available:  p.Available,
		})

	case events.TypeHypothesisReset:
		p, ok := events.Payload[events.HypothesisResetEvent](event)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", event.Type)
		}
		return o.repo.IncrementResets(ctx, p.MatchID)
	}
	return nil
}

// GetName returns the observer's name.
func (o *Observer) GetName() string {
	return o.name
}

// ShouldHandle accepts the persisted event types.
func (o *Observer) ShouldHandle(eventType string) bool {
	switch eventType {
	case events.TypeMatchStarted, events.TypeMatchEnded, events.TypePlayCommitted,
		events.TypeAnomalousSpend, events.TypeHypothesisReset:
		return true
	}
	return false
}
