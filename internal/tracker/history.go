package tracker

// historyEntry is one committed-but-revisable detection: the original
// event, its committed interpretation, and a checkpoint of all mutable
// state taken immediately before the event was applied. Restoring the
// checkpoint and replaying forward is how retroactive correction works.
type historyEntry struct {
	event      DetectionEvent
	committed  ResolvedPlay
	elixir     *ElixirMachine
	hypothesis *DeckHypothesis
	cycle      *CycleEngine
}

// historyRing is the bounded window of revisable events, stored as an
// indexed ring so eviction moves the head instead of copying. Once an
// entry is evicted its interpretation is permanently committed and never
// revisited; eviction itself is free because entries are applied to the
// state machines at commit time, not at eviction.
type historyRing struct {
	entries []*historyEntry
	head    int
	count   int
}

func newHistoryRing(cap int) *historyRing {
	return &historyRing{entries: make([]*historyEntry, cap)}
}

// push appends a committed entry, evicting the oldest when full.
func (r *historyRing) push(e *historyEntry) {
	if r.count == len(r.entries) {
		r.entries[r.head] = e
		r.head = (r.head + 1) % len(r.entries)
		return
	}
	r.entries[(r.head+r.count)%len(r.entries)] = e
	r.count++
}

func (r *historyRing) len() int {
	return r.count
}

// at indexes logically: 0 is the oldest retained entry.
func (r *historyRing) at(i int) *historyEntry {
	return r.entries[(r.head+i)%len(r.entries)]
}

// truncate drops every entry from logical index i on; used when a replay
// rebuilds the tail of the window.
func (r *historyRing) truncate(i int) {
	for j := i; j < r.count; j++ {
		r.entries[(r.head+j)%len(r.entries)] = nil
	}
	r.count = i
}

func (r *historyRing) clear() {
	r.truncate(0)
	r.head = 0
}
