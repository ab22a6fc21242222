package resourcestate

import (
	"context"
	"fmt"

	"github.com/hansjm10/idle-simcore/pkg/simerrors"
)

// FinalizeTick integrates income/expense into amounts over deltaMs and
// advances the publish guard from Idle to Finalized.
func (s *State) FinalizeTick(deltaMs float64) {
	deltaSeconds := deltaMs / 1000
	active := &s.publish[s.activeSide]

	for i := range s.amounts {
		proposed := (s.incomePerSecond[i] - s.expensePerSecond[i]) * deltaSeconds
		next := clamp(s.amounts[i]+proposed, 0, s.capacities[i])
		s.tickDelta[i] += next - s.amounts[i]
		s.netPerSecond[i] = s.incomePerSecond[i] - s.expensePerSecond[i]
		s.amounts[i] = next
		s.reconcileDirtyState(i, s.amounts[i], active.amounts[i])
	}

	s.guard = guardFinalized
}

// Snapshot implements both publish modes. ModePublish flips the active
// buffer and returns the newly active buffer's view; ModeRecorder returns a
// deep copy of live state without touching the publish guard.
func (s *State) Snapshot(mode PublishMode) Snapshot {
	if mode == ModeRecorder {
		return s.recorderSnapshot()
	}
	return s.publishSnapshot()
}

func (s *State) publishSnapshot() Snapshot {
	priorSide := s.activeSide
	newSide := 1 - priorSide
	prior := &s.publish[priorSide]
	next := &s.publish[newSide]

	// Candidates are every index either already published-dirty from the
	// prior publish, or marked as a live dirty candidate this tick. Order
	// is deterministic: prior publish order, then ascending scratch
	// position, each index visited once.
	seen := make([]bool, len(s.ids))
	candidates := make([]int, 0, len(prior.dirtyIndices)+len(s.dirtyScratch))
	for _, i := range prior.dirtyIndices {
		if !seen[i] {
			seen[i] = true
			candidates = append(candidates, i)
		}
	}
	for _, i := range s.dirtyScratch {
		if !seen[i] {
			seen[i] = true
			candidates = append(candidates, i)
		}
	}

	next.amounts = append([]float64(nil), prior.amounts...)
	next.capacities = append([]float64(nil), prior.capacities...)
	next.incomePerSecond = append([]float64(nil), prior.incomePerSecond...)
	next.expensePerSecond = append([]float64(nil), prior.expensePerSecond...)
	next.netPerSecond = append([]float64(nil), prior.netPerSecond...)
	next.tickDelta = append([]float64(nil), prior.tickDelta...)
	next.dirtyTolerance = append([]float64(nil), prior.dirtyTolerance...)
	next.unlocked = append([]bool(nil), prior.unlocked...)
	next.visible = append([]bool(nil), prior.visible...)
	next.flags = append([]uint8(nil), prior.flags...)
	next.dirtyIndices = next.dirtyIndices[:0]

	for _, i := range candidates {
		if s.fieldsEqual(i, prior) {
			continue // transient change that reverted; drop it
		}
		next.amounts[i] = s.amounts[i]
		next.capacities[i] = s.capacities[i]
		next.incomePerSecond[i] = s.incomePerSecond[i]
		next.expensePerSecond[i] = s.expensePerSecond[i]
		next.netPerSecond[i] = s.netPerSecond[i]
		next.tickDelta[i] = s.tickDelta[i]
		next.dirtyTolerance[i] = s.dirtyTolerance[i]
		next.unlocked[i] = s.unlocked[i]
		next.visible[i] = s.visible[i]
		next.flags[i] = s.snapshotFlags(i)
		next.dirtyIndices = append(next.dirtyIndices, i)
		prior.tickDelta[i] = 0
	}

	s.activeSide = newSide
	s.ClearDirtyScratch()
	s.guard = guardPublished

	return Snapshot{
		IDs:              s.ids,
		Amounts:          next.amounts,
		Capacities:       next.capacities,
		IncomePerSecond:  next.incomePerSecond,
		ExpensePerSecond: next.expensePerSecond,
		NetPerSecond:     next.netPerSecond,
		TickDelta:        next.tickDelta,
		Flags:            next.flags,
		DirtyTolerance:   next.dirtyTolerance,
		Unlocked:         next.unlocked,
		Visible:          next.visible,
		DirtyIndices:     append([]int(nil), next.dirtyIndices...),
	}
}

// snapshotFlags packs slot i's live visible/unlocked/dirty-this-tick state
// into the publish-snapshot bitfield. Must be read before
// ClearDirtyScratch resets dirtyThisTick for the next tick.
func (s *State) snapshotFlags(i int) uint8 {
	var f uint8
	if s.visible[i] {
		f |= flagVisible
	}
	if s.unlocked[i] {
		f |= flagUnlocked
	}
	if s.dirtyThisTick[i] {
		f |= flagDirtyThisTick
	}
	return f
}

// fieldsEqual reports whether every published-relevant field at i matches
// the live value within i's dirty tolerance (bools compare exactly).
func (s *State) fieldsEqual(i int, prior *publishBuffer) bool {
	if !s.equalWithinTolerance(i, s.amounts[i], prior.amounts[i]) {
		return false
	}
	if !s.equalWithinTolerance(i, s.incomePerSecond[i], prior.incomePerSecond[i]) {
		return false
	}
	if !s.equalWithinTolerance(i, s.expensePerSecond[i], prior.expensePerSecond[i]) {
		return false
	}
	if s.capacities[i] != prior.capacities[i] {
		return false
	}
	if s.unlocked[i] != prior.unlocked[i] {
		return false
	}
	if s.visible[i] != prior.visible[i] {
		return false
	}
	return true
}

func (s *State) recorderSnapshot() Snapshot {
	flags := make([]uint8, len(s.ids))
	for i := range flags {
		flags[i] = s.snapshotFlags(i)
	}
	return Snapshot{
		IDs:              append([]string(nil), s.ids...),
		Amounts:          append([]float64(nil), s.amounts...),
		Capacities:       append([]float64(nil), s.capacities...),
		IncomePerSecond:  append([]float64(nil), s.incomePerSecond...),
		ExpensePerSecond: append([]float64(nil), s.expensePerSecond...),
		NetPerSecond:     append([]float64(nil), s.netPerSecond...),
		TickDelta:        append([]float64(nil), s.tickDelta...),
		Flags:            flags,
		DirtyTolerance:   append([]float64(nil), s.dirtyTolerance...),
		Unlocked:         append([]bool(nil), s.unlocked...),
		Visible:          append([]bool(nil), s.visible...),
		DirtyIndices:     append([]int(nil), s.dirtyScratch...),
	}
}

// Snapshot is the read-only view returned to observers. It never aliases
// live buffers.
type Snapshot struct {
	IDs              []string
	Amounts          []float64
	Capacities       []float64
	IncomePerSecond  []float64
	ExpensePerSecond []float64
	NetPerSecond     []float64
	TickDelta        []float64
	Flags            []uint8
	DirtyTolerance   []float64
	Unlocked         []bool
	Visible          []bool
	DirtyIndices     []int
}

// ResetPerTickAccumulators zeroes income, expense, and tickDelta ahead of
// the next tick, and returns the guard to Idle. Must be called only after a
// publish snapshot; calling it from Idle or Finalized is an invariant
// violation.
func (s *State) ResetPerTickAccumulators() error {
	if s.guard != guardPublished {
		err := fmt.Errorf("%w: guard was %s, want Published", simerrors.ErrResourceResetOutOfOrder, s.guard)
		s.telemetry.Errorf(context.Background(), "ResourceResetOutOfOrder", err.Error(), map[string]any{"guard": s.guard.String()})
		return err
	}
	for i := range s.incomePerSecond {
		s.incomePerSecond[i] = 0
		s.expensePerSecond[i] = 0
		s.tickDelta[i] = 0
	}
	s.guard = guardIdle
	return nil
}

// ForceClearDirtyState resets the publish guard to Idle unconditionally and
// empties the dirty scratch set, for disaster recovery after a host
// detects corrupted tick state. Emits telemetry naming the prior guard.
func (s *State) ForceClearDirtyState() {
	prior := s.guard
	s.ClearDirtyScratch()
	s.guard = guardIdle
	s.telemetry.Warn(context.Background(), "ResourceForceClearedDirtyState",
		"dirty state force-cleared outside the normal publish lifecycle",
		map[string]any{"priorGuard": prior.String()})
}
