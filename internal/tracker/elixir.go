package tracker

import (
	"fmt"
	"time"

	"github.com/croverlay/croverlay/internal/knowledge"
)

// ElixirMachine tracks the single continuous elixir estimate for the
// opponent and the active regeneration phase. All mutation happens on the
// session's processing sequence; the machine itself is not locked.
type ElixirMachine struct {
	kb        *knowledge.Base
	tolerance float64

	value      float64
	phase      knowledge.Phase
	lastUpdate time.Time
	started    bool
}

// NewElixirMachine creates a machine in the single-elixir phase with an
// empty bar. tolerance is the anomalous-spend slack in elixir units.
func NewElixirMachine(kb *knowledge.Base, tolerance float64) *ElixirMachine {
	return &ElixirMachine{
		kb:        kb,
		tolerance: tolerance,
		phase:     knowledge.PhaseSingle,
	}
}

// Reset puts the machine back to a known value at the given instant,
// discarding all accumulated state. Called on match start.
func (m *ElixirMachine) Reset(value float64, now time.Time) {
	m.value = clampElixir(value)
	m.phase = knowledge.PhaseSingle
	m.lastUpdate = now
	m.started = true
}

// Advance regenerates elixir for the time elapsed since the last update,
// clamped to the cap. Calling it twice with the same instant is a no-op
// the second time; an instant earlier than the last update is ignored.
func (m *ElixirMachine) Advance(now time.Time) {
	if !m.started {
		m.lastUpdate = now
		m.started = true
		return
	}
	elapsed := now.Sub(m.lastUpdate)
	if elapsed <= 0 {
		return
	}
	gain := elapsed.Seconds() / m.kb.SecondsPerElixir(m.phase)
	m.value = clampElixir(m.value + gain)
	m.lastUpdate = now
}

// ApplySpend advances to the spend instant and subtracts cost. A cost that
// exceeds the current estimate by more than the tolerance is still applied
// (clamped to zero) but reported as anomalous: the true elixir is never
// directly observable, so a best-effort estimate beats rejection.
//
// A negative cost is a contract violation and panics; card costs are
// validated at knowledge load, so one can only appear through a
// programming error.
func (m *ElixirMachine) ApplySpend(cost float64, now time.Time) (anomalous bool) {
	if cost < 0 {
		panic(fmt.Sprintf("tracker: negative elixir cost %v", cost))
	}
	m.Advance(now)
	anomalous = cost > m.value+m.tolerance
	m.value = clampElixir(m.value - cost)
	return anomalous
}

// SetPhase transitions to a new regeneration phase at the given instant.
// Advancing first at the old rate preserves continuity across the
// boundary.
func (m *ElixirMachine) SetPhase(phase knowledge.Phase, now time.Time) {
	m.Advance(now)
	m.phase = phase
}

// AdjustBy applies a manual operator correction, clamped to [0, cap].
func (m *ElixirMachine) AdjustBy(delta float64) {
	m.value = clampElixir(m.value + delta)
}

// Value returns the current estimate without advancing time.
func (m *ElixirMachine) Value() float64 {
	return m.value
}

// Phase returns the active regeneration phase.
func (m *ElixirMachine) Phase() knowledge.Phase {
	return m.phase
}

// ProjectedValue returns the estimate the machine would report at the
// given instant, without mutating any state.
func (m *ElixirMachine) ProjectedValue(now time.Time) float64 {
	if !m.started {
		return m.value
	}
	elapsed := now.Sub(m.lastUpdate)
	if elapsed <= 0 {
		return m.value
	}
	gain := elapsed.Seconds() / m.kb.SecondsPerElixir(m.phase)
	return clampElixir(m.value + gain)
}

// Snapshot returns an immutable copy of the current state.
func (m *ElixirMachine) Snapshot() ElixirSnapshot {
	return ElixirSnapshot{
		Value:      m.value,
		Phase:      m.phase,
		LastUpdate: m.lastUpdate,
	}
}

// clone returns an independent copy used for history checkpoints.
func (m *ElixirMachine) clone() *ElixirMachine {
	c := *m
	return &c
}

// restore copies the state of a checkpoint back into the live machine.
func (m *ElixirMachine) restore(from *ElixirMachine) {
	*m = *from
}

func clampElixir(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > knowledge.MaxElixir {
		return knowledge.MaxElixir
	}
	return v
}
