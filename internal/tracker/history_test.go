package tracker

import "testing"

func pushCard(r *historyRing, i int) {
	r.push(&historyEntry{committed: ResolvedPlay{Card: testDeck[i]}})
}

func TestHistoryRingEvictsOldest(t *testing.T) {
	r := newHistoryRing(3)
	for i := 0; i < 5; i++ {
		pushCard(r, i)
	}

	if r.len() != 3 {
		t.Fatalf("Expected 3 entries, got %d", r.len())
	}
	// The two oldest were evicted; logical order is preserved.
	for i := 0; i < 3; i++ {
		if got := r.at(i).committed.Card; got != testDeck[i+2] {
			t.Errorf("Entry %d: expected %s, got %s", i, testDeck[i+2], got)
		}
	}
}

func TestHistoryRingTruncateAndRefill(t *testing.T) {
	r := newHistoryRing(3)
	for i := 0; i < 5; i++ {
		pushCard(r, i)
	}

	// Window holds testDeck[2..4]; a replay drops the tail from index 1.
	r.truncate(1)
	if r.len() != 1 {
		t.Fatalf("Expected 1 entry after truncate, got %d", r.len())
	}
	if got := r.at(0).committed.Card; got != testDeck[2] {
		t.Errorf("Expected %s kept, got %s", testDeck[2], got)
	}

	for i := 5; i < 8; i++ {
		pushCard(r, i)
	}
	if r.len() != 3 {
		t.Fatalf("Expected 3 entries after refill, got %d", r.len())
	}
	if got := r.at(0).committed.Card; got != testDeck[5] {
		t.Errorf("Expected %s at the front, got %s", testDeck[5], got)
	}
	if got := r.at(2).committed.Card; got != testDeck[7] {
		t.Errorf("Expected %s at the back, got %s", testDeck[7], got)
	}
}

func TestHistoryRingClear(t *testing.T) {
	r := newHistoryRing(3)
	for i := 0; i < 4; i++ {
		pushCard(r, i)
	}

	r.clear()
	if r.len() != 0 {
		t.Fatalf("Expected empty ring, got %d", r.len())
	}

	pushCard(r, 0)
	if r.len() != 1 || r.at(0).committed.Card != testDeck[0] {
		t.Errorf("Expected ring usable after clear, got len=%d", r.len())
	}
}
