package resourcestate

import (
	"context"
	"math"
)

// markDirty adds i to the scratch set in O(1), no-op if already present.
func (s *State) markDirty(i int) {
	if s.dirtyPosition[i] != -1 {
		return
	}
	s.dirtyPosition[i] = len(s.dirtyScratch)
	s.dirtyScratch = append(s.dirtyScratch, i)
	s.dirtyThisTick[i] = true
}

// ClearDirtyScratch empties the dirty set without otherwise touching the
// publish guard state. Used for forced recovery and for tests.
func (s *State) ClearDirtyScratch() {
	for _, i := range s.dirtyScratch {
		s.dirtyPosition[i] = -1
		s.dirtyThisTick[i] = false
	}
	s.dirtyScratch = s.dirtyScratch[:0]
}

// DirtyCount reports how many slots are currently in the scratch set.
func (s *State) DirtyCount() int { return len(s.dirtyScratch) }

// tolerance computes the equality tolerance for slot i given the live and
// comparison values. The configured per-resource dirtyTolerance is a floor:
// a change must exceed it to count as dirty regardless of magnitude. Float
// noise at very large magnitudes can otherwise dominate (a difference of a
// few ULPs can exceed a tight configured tolerance), so the relative term
// 1e-9*max(|a|,|b|) is folded in as a second floor. Saturated reports when
// that relative term alone exceeds maxDirtyTolerance, which the ceiling
// clamps unless a per-resource floorToleranceOverride honors the operator's
// intent above the ceiling.
func (s *State) tolerance(i int, a, b float64) (tol float64, saturated bool) {
	relative := minDirtyTolerance * math.Max(math.Abs(a), math.Abs(b))
	tol = math.Max(minDirtyTolerance, math.Max(s.dirtyTolerance[i], relative))

	if relative > maxDirtyTolerance {
		saturated = true
		tol = maxDirtyTolerance
	}

	if floor := s.toleranceFloor[i]; !math.IsNaN(floor) && floor > tol {
		tol = floor
	}

	return tol, saturated
}

func (s *State) equalWithinTolerance(i int, a, b float64) bool {
	tol, saturated := s.tolerance(i, a, b)
	if saturated {
		s.telemetry.Warn(context.Background(), "ResourceDirtyToleranceSaturated",
			"relative tolerance exceeded the resource's tolerance ceiling",
			map[string]any{"index": i, "id": s.ids[i]})
	}
	return math.Abs(a-b) <= tol
}

// reconcileDirtyState compares a field's live value against the value
// currently held in the active publish buffer and marks i as a dirty
// candidate if they differ beyond tolerance. It never clears i: a
// different field on the same index may already be dirty, and only
// snapshot's own field-wise comparison against the prior publish is
// authoritative for deciding what actually gets republished or dropped as
// reverted.
func (s *State) reconcileDirtyState(i int, live, published float64) {
	if !s.equalWithinTolerance(i, live, published) {
		s.markDirty(i)
	}
}
