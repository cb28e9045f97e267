// Package knowledge provides the immutable per-match reference data:
// card identities with their elixir costs, evolution data and rarity, and
// the regeneration rate of each match phase. A Base is loaded once at
// startup and shared read-only across sessions.
package knowledge

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// CardID identifies a card. IDs are the lowercase snake_case card names
// used by the classification pipeline (e.g. "hog_rider").
type CardID string

// Phase is a match-time regime determining the elixir regeneration rate.
type Phase string

// Match phases in chronological order.
const (
	PhaseSingle Phase = "single"
	PhaseDouble Phase = "double"
	PhaseTriple Phase = "triple"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseSingle, PhaseDouble, PhaseTriple:
		return true
	}
	return false
}

// MaxElixir is the elixir cap. The bar never holds more than this.
const MaxElixir = 10.0

// Card holds the static properties of a single card.
type Card struct {
	// Cost is the elixir cost of a normal play.
	Cost float64

	// EvolutionCost is the elixir cost when the evolved form is played.
	// Equals Cost for cards without a changed evolution cost.
	EvolutionCost float64

	// EvolutionCycles is how many plays charge one evolution.
	// Zero means the card has no evolution.
	EvolutionCycles int

	// Rarity is informational only ("common", "rare", "epic", "legendary",
	// "champion").
	Rarity string
}

// Base is the immutable knowledge base. It is safe for concurrent use;
// nothing mutates it after construction.
type Base struct {
	cards            map[CardID]Card
	secondsPerElixir map[Phase]float64
}

// baseFile mirrors the TOML layout of a knowledge file:
//
//	[phases]
//	single = 2.8
//	double = 1.4
//	triple = 0.9
//
//	[cards.knight]
//	cost = 3
//	rarity = "common"
//	evolution_cycles = 2
type baseFile struct {
	Phases map[string]float64  `toml:"phases"`
	Cards  map[string]cardFile `toml:"cards"`
}

type cardFile struct {
	Cost            float64 `toml:"cost"`
	EvolutionCost   float64 `toml:"evolution_cost"`
	EvolutionCycles int     `toml:"evolution_cycles"`
	Rarity          string  `toml:"rarity"`
}

// Load reads and validates a knowledge file. Any missing section, unknown
// phase, or out-of-range cost is a fatal startup error: no session can be
// constructed without a valid Base.
func Load(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge file: %w", err)
	}
	base, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("knowledge file %s: %w", path, err)
	}
	return base, nil
}

// Parse builds a Base from raw TOML.
func Parse(data []byte) (*Base, error) {
	var file baseFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse knowledge TOML: %w", err)
	}

	if len(file.Phases) == 0 {
		return nil, fmt.Errorf("missing required [phases] section")
	}
	if len(file.Cards) == 0 {
		return nil, fmt.Errorf("missing required [cards] section")
	}

	secondsPerElixir := make(map[Phase]float64, len(file.Phases))
	for name, seconds := range file.Phases {
		phase := Phase(name)
		if !phase.Valid() {
			return nil, fmt.Errorf("unknown phase %q", name)
		}
		if seconds <= 0 {
			return nil, fmt.Errorf("phase %q: seconds per elixir must be positive, got %v", name, seconds)
		}
		secondsPerElixir[phase] = seconds
	}
	for _, phase := range []Phase{PhaseSingle, PhaseDouble, PhaseTriple} {
		if _, ok := secondsPerElixir[phase]; !ok {
			return nil, fmt.Errorf("missing regeneration rate for phase %q", phase)
		}
	}

	cards := make(map[CardID]Card, len(file.Cards))
	for name, c := range file.Cards {
		if name == "" {
			return nil, fmt.Errorf("card with empty identity")
		}
		if c.Cost <= 0 || c.Cost > MaxElixir {
			return nil, fmt.Errorf("card %q: cost %v out of range (0, %v]", name, c.Cost, MaxElixir)
		}
		evoCost := c.EvolutionCost
		if evoCost == 0 {
			evoCost = c.Cost
		}
		if evoCost < 0 || evoCost > MaxElixir {
			return nil, fmt.Errorf("card %q: evolution cost %v out of range", name, evoCost)
		}
		if c.EvolutionCycles < 0 {
			return nil, fmt.Errorf("card %q: evolution cycles cannot be negative", name)
		}
		cards[CardID(name)] = Card{
			Cost:            c.Cost,
			EvolutionCost:   evoCost,
			EvolutionCycles: c.EvolutionCycles,
			Rarity:          c.Rarity,
		}
	}

	return &Base{cards: cards, secondsPerElixir: secondsPerElixir}, nil
}

// Card returns the static data for id.
func (b *Base) Card(id CardID) (Card, bool) {
	c, ok := b.cards[id]
	return c, ok
}

// Known reports whether id is a card this Base knows about.
func (b *Base) Known(id CardID) bool {
	_, ok := b.cards[id]
	return ok
}

// Cost returns the normal play cost for id, or 0 if unknown.
func (b *Base) Cost(id CardID) float64 {
	return b.cards[id].Cost
}

// SecondsPerElixir returns the seconds needed to regenerate one elixir in
// the given phase. Unknown phases fall back to single-elixir timing.
func (b *Base) SecondsPerElixir(phase Phase) float64 {
	if s, ok := b.secondsPerElixir[phase]; ok {
		return s
	}
	return b.secondsPerElixir[PhaseSingle]
}

// NumCards returns the number of known cards.
func (b *Base) NumCards() int {
	return len(b.cards)
}

// Cards returns a copy of all known card identities.
func (b *Base) Cards() []CardID {
	ids := make([]CardID, 0, len(b.cards))
	for id := range b.cards {
		ids = append(ids, id)
	}
	return ids
}
