package tracker

import (
	"testing"
	"time"

	"github.com/croverlay/croverlay/internal/knowledge"
)

func TestElixirRegeneration(t *testing.T) {
	m := NewElixirMachine(testBase(t), 0.5)
	m.Reset(5.0, t0)

	// One full single-elixir interval regenerates exactly one elixir.
	m.Advance(t0.Add(2800 * time.Millisecond))
	if !almostEqual(m.Value(), 6.0) {
		t.Errorf("Expected 6.0 after one interval, got %v", m.Value())
	}

	// Half an interval regenerates half an elixir.
	m.Advance(t0.Add(4200 * time.Millisecond))
	if !almostEqual(m.Value(), 6.5) {
		t.Errorf("Expected 6.5, got %v", m.Value())
	}
}

func TestElixirCap(t *testing.T) {
	m := NewElixirMachine(testBase(t), 0.5)
	m.Reset(9.5, t0)

	m.Advance(t0.Add(time.Minute))
	if m.Value() != knowledge.MaxElixir {
		t.Errorf("Expected cap %v, got %v", knowledge.MaxElixir, m.Value())
	}
}

func TestElixirAdvanceIdempotent(t *testing.T) {
	m := NewElixirMachine(testBase(t), 0.5)
	m.Reset(5.0, t0)

	now := t0.Add(2800 * time.Millisecond)
	m.Advance(now)
	first := m.Value()
	m.Advance(now)
	if m.Value() != first {
		t.Errorf("Second advance at the same instant changed the value: %v -> %v", first, m.Value())
	}

	// An earlier instant is ignored, never regressed.
	m.Advance(t0.Add(time.Second))
	if m.Value() != first {
		t.Errorf("Advance into the past changed the value: %v -> %v", first, m.Value())
	}
}

func TestElixirPhaseContinuity(t *testing.T) {
	m := NewElixirMachine(testBase(t), 0.5)
	m.Reset(2.0, t0)

	// 2.8s at single rate, then the double-elixir boundary, then 1.4s at
	// double rate: one elixir on each side of the boundary.
	boundary := t0.Add(2800 * time.Millisecond)
	m.SetPhase(knowledge.PhaseDouble, boundary)
	if !almostEqual(m.Value(), 3.0) {
		t.Errorf("Expected 3.0 at the phase boundary, got %v", m.Value())
	}
	if m.Phase() != knowledge.PhaseDouble {
		t.Errorf("Expected phase double, got %v", m.Phase())
	}

	m.Advance(boundary.Add(1400 * time.Millisecond))
	if !almostEqual(m.Value(), 4.0) {
		t.Errorf("Expected 4.0 after one double interval, got %v", m.Value())
	}
}

func TestElixirSpend(t *testing.T) {
	m := NewElixirMachine(testBase(t), 0.5)
	m.Reset(5.0, t0)

	// The spend instant regenerates first: 5.0 + 0.5 - 3 = 2.5.
	anomalous := m.ApplySpend(3, t0.Add(1400*time.Millisecond))
	if anomalous {
		t.Error("Affordable spend flagged anomalous")
	}
	if !almostEqual(m.Value(), 2.5) {
		t.Errorf("Expected 2.5 after spend, got %v", m.Value())
	}
}

func TestElixirAnomalousSpendClampsToZero(t *testing.T) {
	m := NewElixirMachine(testBase(t), 0.5)
	m.Reset(2.9, t0)

	anomalous := m.ApplySpend(4, t0)
	if !anomalous {
		t.Error("Expected spend of 4 at 2.9 to be anomalous")
	}
	if m.Value() != 0 {
		t.Errorf("Expected clamp to 0, got %v", m.Value())
	}
}

func TestElixirSpendWithinTolerance(t *testing.T) {
	m := NewElixirMachine(testBase(t), 0.5)
	m.Reset(3.6, t0)

	// 4 > 3.6 but within the 0.5 tolerance: applied, not anomalous.
	if m.ApplySpend(4, t0) {
		t.Error("Spend within tolerance flagged anomalous")
	}
	if m.Value() != 0 {
		t.Errorf("Expected clamp to 0, got %v", m.Value())
	}
}

func TestElixirNegativeCostPanics(t *testing.T) {
	m := NewElixirMachine(testBase(t), 0.5)
	m.Reset(5.0, t0)

	defer func() {
		if recover() == nil {
			t.Error("Expected panic for negative cost")
		}
	}()
	m.ApplySpend(-1, t0)
}

func TestElixirProjectedValueIsPure(t *testing.T) {
	m := NewElixirMachine(testBase(t), 0.5)
	m.Reset(5.0, t0)

	projected := m.ProjectedValue(t0.Add(2800 * time.Millisecond))
	if !almostEqual(projected, 6.0) {
		t.Errorf("Expected projection 6.0, got %v", projected)
	}
	if !almostEqual(m.Value(), 5.0) {
		t.Errorf("Projection mutated the machine: %v", m.Value())
	}
}

func TestElixirAdjustClamps(t *testing.T) {
	m := NewElixirMachine(testBase(t), 0.5)
	m.Reset(5.0, t0)

	m.AdjustBy(100)
	if m.Value() != knowledge.MaxElixir {
		t.Errorf("Expected cap after large positive adjust, got %v", m.Value())
	}
	m.AdjustBy(-100)
	if m.Value() != 0 {
		t.Errorf("Expected 0 after large negative adjust, got %v", m.Value())
	}
}

func TestElixirCloneRestore(t *testing.T) {
	m := NewElixirMachine(testBase(t), 0.5)
	m.Reset(5.0, t0)

	checkpoint := m.clone()
	m.ApplySpend(4, t0.Add(time.Second))
	m.SetPhase(knowledge.PhaseTriple, t0.Add(2*time.Second))

	m.restore(checkpoint)
	if !almostEqual(m.Value(), 5.0) {
		t.Errorf("Expected restored value 5.0, got %v", m.Value())
	}
	if m.Phase() != knowledge.PhaseSingle {
		t.Errorf("Expected restored phase single, got %v", m.Phase())
	}
}
