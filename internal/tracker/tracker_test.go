package tracker

import (
	"math"
	"testing"
	"time"

	"github.com/croverlay/croverlay/internal/knowledge"
)

// testKnowledge is the fixture deck pool: costs cover the full range so
// affordability priors have something to exclude.
const testKnowledge = `
[phases]
single = 2.8
double = 1.4
triple = 0.9

[cards.skeletons]
cost = 1
rarity = "common"
evolution_cycles = 2

[cards.ice_spirit]
cost = 1
rarity = "common"

[cards.zap]
cost = 2
rarity = "common"

[cards.knight]
cost = 3
rarity = "common"
evolution_cycles = 2

[cards.archers]
cost = 3
rarity = "common"

[cards.cannon]
cost = 3
rarity = "common"

[cards.musketeer]
cost = 4
rarity = "rare"

[cards.fireball]
cost = 4
rarity = "rare"

[cards.hog_rider]
cost = 4
rarity = "rare"

[cards.giant]
cost = 5
rarity = "rare"

[cards.rocket]
cost = 6
rarity = "rare"

[cards.golem]
cost = 8
rarity = "epic"
`

// testDeck is the 8-card set most tests treat as the opponent's deck.
var testDeck = []knowledge.CardID{
	"skeletons", "ice_spirit", "zap", "knight",
	"archers", "cannon", "musketeer", "hog_rider",
}

func testBase(t *testing.T) *knowledge.Base {
	t.Helper()
	base, err := knowledge.Parse([]byte(testKnowledge))
	if err != nil {
		t.Fatalf("Failed to parse test knowledge: %v", err)
	}
	return base
}

// certain builds a detection that names one card with probability 1.
func certain(card knowledge.CardID, ts time.Time) DetectionEvent {
	return DetectionEvent{
		Timestamp:     ts,
		Probabilities: map[knowledge.CardID]float64{card: 1.0},
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// t0 is an arbitrary match start instant.
var t0 = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
