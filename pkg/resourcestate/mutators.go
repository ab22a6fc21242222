package resourcestate

// SpendContext carries the caller-supplied context for a spend. Reason
// names who requested it (e.g. "generator-purchase:<id>"); SpendAmount
// accepts it but does not read it.
type SpendContext struct {
	Reason string
}

func (s *State) reconcileDirtyBool(i int, live, published bool) {
	if live != published {
		s.markDirty(i)
	}
}

// setAmount writes a new live amount, folding the delta into tickDelta and
// checking it against the active publish buffer. Every mutator that moves
// amounts[i] routes through this.
func (s *State) setAmount(i int, next float64) {
	delta := next - s.amounts[i]
	s.amounts[i] = next
	s.tickDelta[i] += delta
	active := &s.publish[s.activeSide]
	s.reconcileDirtyState(i, s.amounts[i], active.amounts[i])
}

// SetCapacity updates slot i's capacity, clamping the live amount down if
// it now exceeds the new ceiling.
func (s *State) SetCapacity(i int, capacity float64) {
	s.capacities[i] = capacity
	if s.amounts[i] > capacity {
		s.setAmount(i, capacity)
	}
}

// SetDirtyTolerance overrides slot i's dirty-publish tolerance at runtime
// (an upgrade-effect override), clamped into the same
// [minDirtyTolerance, maxDirtyTolerance] band construction enforces.
func (s *State) SetDirtyTolerance(i int, tolerance float64) {
	s.dirtyTolerance[i] = clamp(tolerance, minDirtyTolerance, maxDirtyTolerance)
}

// AddAmount adds x (which may be negative) to slot i, clamped into
// [0, capacity].
func (s *State) AddAmount(i int, x float64) {
	s.setAmount(i, clamp(s.amounts[i]+x, 0, s.capacities[i]))
}

// SpendAmount attempts to deduct x from slot i. Returns false and leaves
// the amount untouched if the slot holds less than x.
func (s *State) SpendAmount(i int, x float64, _ SpendContext) bool {
	if s.amounts[i] < x {
		return false
	}
	s.setAmount(i, clamp(s.amounts[i]-x, 0, s.capacities[i]))
	return true
}

// ApplyIncome sets slot i's live income rate, replacing (not accumulating)
// the prior value: generators/upgrades recompute the full rate each tick.
// A rate change alone (no amount movement) still queues the slot for
// republish.
func (s *State) ApplyIncome(i int, perSecond float64) {
	s.incomePerSecond[i] = perSecond
	active := &s.publish[s.activeSide]
	s.reconcileDirtyState(i, s.incomePerSecond[i], active.incomePerSecond[i])
}

// ApplyExpense sets slot i's live expense rate.
func (s *State) ApplyExpense(i int, perSecond float64) {
	s.expensePerSecond[i] = perSecond
	active := &s.publish[s.activeSide]
	s.reconcileDirtyState(i, s.expensePerSecond[i], active.expensePerSecond[i])
}

// GrantVisibility marks slot i visible.
func (s *State) GrantVisibility(i int) {
	s.visible[i] = true
	active := &s.publish[s.activeSide]
	s.reconcileDirtyBool(i, s.visible[i], active.visible[i])
}

// Unlock marks slot i unlocked (and implicitly visible, matching the
// content model where an unlocked resource is always displayable).
func (s *State) Unlock(i int) {
	s.unlocked[i] = true
	s.visible[i] = true
	active := &s.publish[s.activeSide]
	s.reconcileDirtyBool(i, s.unlocked[i], active.unlocked[i])
}
