package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Match is one recorded match.
type Match struct {
	ID               string
	StartedAt        time.Time
	EndedAt          sql.NullTime
	Plays            int
	DroppedEvents    int
	HypothesisResets int
}

// Play is one committed play interpretation.
type Play struct {
	MatchID    string
	Seq        int
	PlayedAt   time.Time
	Card       string
	Cost       float64
	Confidence float64
	Evolved    bool
	Anomalous  bool
	Corrected  int
}

// Anomaly is one spend that exceeded the elixir estimate.
type Anomaly struct {
	MatchID    string
	OccurredAt time.Time
	Card       string
	Cost       float64
	Available  float64
}

// MatchRepository provides access to recorded matches.
type MatchRepository struct {
	db *DB
}

// NewMatchRepository creates a repository over an open database.
func NewMatchRepository(db *DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// CreateMatch inserts a new match row.
func (r *MatchRepository) CreateMatch(ctx context.Context, id string, startedAt time.Time) error {
	_, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO matches (id, started_at) VALUES (?, ?)`, id, startedAt)
	if err != nil {
		return fmt.Errorf("create match %s: %w", id, err)
	}
	return nil
}

// EndMatch records the end of a match with its final counters.
func (r *MatchRepository) EndMatch(ctx context.Context, id string, endedAt time.Time, plays, dropped int) error {
	_, err := r.db.conn.ExecContext(ctx,
		`UPDATE matches SET ended_at = ?, plays = ?, dropped_events = ? WHERE id = ?`,
		endedAt, plays, dropped, id)
	if err != nil {
		return fmt.Errorf("end match %s: %w", id, err)
	}
	return nil
}

// IncrementResets counts one hypothesis reset against the match.
func (r *MatchRepository) IncrementResets(ctx context.Context, id string) error {
	_, err := r.db.conn.ExecContext(ctx,
		`UPDATE matches SET hypothesis_resets = hypothesis_resets + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment resets for %s: %w", id, err)
	}
	return nil
}

// RecordPlay inserts one committed play.
func (r *MatchRepository) RecordPlay(ctx context.Context, p Play) error {
	_, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO plays (match_id, seq, played_at, card, cost, confidence, evolved, anomalous, corrected)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.MatchID, p.Seq, p.PlayedAt, p.Card, p.Cost, p.Confidence, p.Evolved, p.Anomalous, p.Corrected)
	if err != nil {
		return fmt.Errorf("record play %s/%d: %w", p.MatchID, p.Seq, err)
	}
	return nil
}

// RecordAnomaly inserts one anomalous spend.
func (r *MatchRepository) RecordAnomaly(ctx context.Context, a Anomaly) error {
	_, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO anomalies (match_id, occurred_at, card, cost, available)
		 VALUES (?, ?, ?, ?, ?)`,
		a.MatchID, a.OccurredAt, a.Card, a.Cost, a.Available)
	if err != nil {
		return fmt.Errorf("record anomaly for %s: %w", a.MatchID, err)
	}
	return nil
}

// GetMatch returns one match by ID.
func (r *MatchRepository) GetMatch(ctx context.Context, id string) (*Match, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT id, started_at, ended_at, plays, dropped_events, hypothesis_resets
		 FROM matches WHERE id = ?`, id)

	var m Match
	if err := row.Scan(&m.ID, &m.StartedAt, &m.EndedAt, &m.Plays, &m.DroppedEvents, &m.HypothesisResets); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get match %s: %w", id, err)
	}
	return &m, nil
}

// ListMatches returns the most recent matches, newest first.
func (r *MatchRepository) ListMatches(ctx context.Context, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT id, started_at, ended_at, plays, dropped_events, hypothesis_resets
		 FROM matches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.StartedAt, &m.EndedAt, &m.Plays, &m.DroppedEvents, &m.HypothesisResets); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// PlaysForMatch returns all committed plays for a match in sequence order.
func (r *MatchRepository) PlaysForMatch(ctx context.Context, matchID string) ([]Play, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT match_id, seq, played_at, card, cost, confidence, evolved, anomalous, corrected
		 FROM plays WHERE match_id = ? ORDER BY seq`, matchID)
	if err != nil {
		return nil, fmt.Errorf("plays for match %s: %w", matchID, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var plays []Play
	for rows.Next() {
		var p Play
		if err := rows.Scan(&p.MatchID, &p.Seq, &p.PlayedAt, &p.Card, &p.Cost, &p.Confidence, &p.Evolved, &p.Anomalous, &p.Corrected); err != nil {
			return nil, fmt.Errorf("scan play: %w", err)
		}
		plays = append(plays, p)
	}
	return plays, rows.Err()
}

// PlayCounts returns how often each card was committed in a match.
func (r *MatchRepository) PlayCounts(ctx context.Context, matchID string) (map[string]int, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT card, COUNT(*) FROM plays WHERE match_id = ? GROUP BY card`, matchID)
	if err != nil {
		return nil, fmt.Errorf("play counts for %s: %w", matchID, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := make(map[string]int)
	for rows.Next() {
		var card string
		var n int
		if err := rows.Scan(&card, &n); err != nil {
			return nil, fmt.Errorf("scan play count: %w", err)
		}
		counts[card] = n
	}
	return counts, rows.Err()
}
