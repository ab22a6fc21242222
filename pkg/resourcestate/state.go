// Package resourcestate maintains per-resource amounts, capacities, and
// rate accumulators as parallel columns, publishes only the columns that
// actually changed each tick, and serializes/hydrates that state against a
// content pack's definitions.
package resourcestate

import (
	"math"

	"github.com/hansjm10/idle-simcore/pkg/digest"
	"github.com/hansjm10/idle-simcore/pkg/telemetry"
)

const (
	minDirtyTolerance     = 1e-9
	maxDirtyTolerance     = 5e-1
	defaultDirtyTolerance = 1e-6
)

// Definition is one resource's starting configuration, as handed to
// create. Capacity nil means unbounded.
type Definition struct {
	ID             string
	StartAmount    float64
	Capacity       *float64
	DirtyTolerance float64
	ToleranceFloor *float64
	Unlocked       bool
	Visible        bool
}

// PublishMode selects what snapshot returns.
type PublishMode int

const (
	// ModePublish flips the active publish buffer and returns only the
	// columns that changed since the last publish.
	ModePublish PublishMode = iota
	// ModeRecorder returns a full deep copy of live state, independent of
	// the publish buffers, for external recording/debugging.
	ModeRecorder
)

// guardState is the publish lifecycle: Idle -> Finalized -> Published -> Idle.
type guardState int

const (
	guardIdle guardState = iota
	guardFinalized
	guardPublished
)

func (g guardState) String() string {
	switch g {
	case guardIdle:
		return "Idle"
	case guardFinalized:
		return "Finalized"
	case guardPublished:
		return "Published"
	default:
		return "Unknown"
	}
}

// publishBuffer is one side of the double-buffered publish state.
type publishBuffer struct {
	amounts          []float64
	capacities       []float64
	incomePerSecond  []float64
	expensePerSecond []float64
	netPerSecond     []float64
	tickDelta        []float64
	dirtyTolerance   []float64
	unlocked         []bool
	visible          []bool
	flags            []uint8
	dirtyIndices     []int
}

// State holds every resource's live columns plus the two publish buffers
// consumers read from. All mutation happens through State's methods; the
// zero value is not usable, construct with Create.
type State struct {
	ids   []string
	index map[string]int

	amounts          []float64
	capacities       []float64
	incomePerSecond  []float64
	expensePerSecond []float64
	netPerSecond     []float64
	tickDelta        []float64
	dirtyTolerance   []float64
	toleranceFloor   []float64 // NaN = no operator override
	unlocked         []bool
	visible          []bool

	dirtyScratch   []int
	dirtyPosition  []int // sparse-set inverse position; -1 = not in scratch
	dirtyThisTick  []bool

	publish    [2]publishBuffer
	activeSide int
	guard      guardState

	telemetry *telemetry.Recorder
}

const (
	flagDirty uint8 = 1 << iota
)

// Publish-snapshot flag bits, distinct from flagDirty (which marks the
// serialized-save wire format and has nothing to do with this bitfield).
const (
	flagVisible uint8 = 1 << iota
	flagUnlocked
	flagDirtyThisTick
)

// Create sanitizes each definition and builds a State. Amounts are clamped
// into [0, capacity]; nil capacity becomes +Inf; DirtyTolerance <= 0 is
// replaced with defaultDirtyTolerance before being clamped into
// [minDirtyTolerance, maxDirtyTolerance].
func Create(definitions []Definition) *State {
	n := len(definitions)
	s := &State{
		ids:              make([]string, n),
		index:            make(map[string]int, n),
		amounts:          make([]float64, n),
		capacities:       make([]float64, n),
		incomePerSecond:  make([]float64, n),
		expensePerSecond: make([]float64, n),
		netPerSecond:     make([]float64, n),
		tickDelta:        make([]float64, n),
		dirtyTolerance:   make([]float64, n),
		toleranceFloor:   make([]float64, n),
		unlocked:         make([]bool, n),
		visible:          make([]bool, n),
		dirtyPosition:    make([]int, n),
		dirtyThisTick:    make([]bool, n),
	}

	for i, def := range definitions {
		s.ids[i] = def.ID
		s.index[def.ID] = i

		capacity := math.Inf(1)
		if def.Capacity != nil {
			capacity = *def.Capacity
		}
		s.capacities[i] = capacity
		s.amounts[i] = clamp(def.StartAmount, 0, capacity)

		tol := def.DirtyTolerance
		if tol <= 0 {
			tol = defaultDirtyTolerance
		}
		s.dirtyTolerance[i] = clamp(tol, minDirtyTolerance, maxDirtyTolerance)

		if def.ToleranceFloor != nil {
			s.toleranceFloor[i] = *def.ToleranceFloor
		} else {
			s.toleranceFloor[i] = math.NaN()
		}

		s.unlocked[i] = def.Unlocked
		s.visible[i] = def.Visible
		s.dirtyPosition[i] = -1
	}

	for side := range s.publish {
		s.publish[side] = publishBuffer{
			amounts:          append([]float64(nil), s.amounts...),
			capacities:       append([]float64(nil), s.capacities...),
			incomePerSecond:  make([]float64, n),
			expensePerSecond: make([]float64, n),
			netPerSecond:     make([]float64, n),
			tickDelta:        make([]float64, n),
			dirtyTolerance:   append([]float64(nil), s.dirtyTolerance...),
			unlocked:         append([]bool(nil), s.unlocked...),
			visible:          append([]bool(nil), s.visible...),
			flags:            make([]uint8, n),
		}
	}

	return s
}

// WithTelemetry attaches the recorder used for dirty-tolerance saturation
// and publish-guard warnings. Returns s for chaining after Create.
func (s *State) WithTelemetry(r *telemetry.Recorder) *State {
	s.telemetry = r
	return s
}

// Len returns the number of resource slots.
func (s *State) Len() int { return len(s.ids) }

// IndexOf returns the live slot for id, or -1 if unknown.
func (s *State) IndexOf(id string) int {
	if i, ok := s.index[id]; ok {
		return i
	}
	return -1
}

// ID returns the slot id at i.
func (s *State) ID(i int) string { return s.ids[i] }

// Amount returns the live amount at i.
func (s *State) Amount(i int) float64 { return s.amounts[i] }

// Capacity returns the live capacity at i (math.Inf(1) if unbounded).
func (s *State) Capacity(i int) float64 { return s.capacities[i] }

// Unlocked reports whether slot i is unlocked.
func (s *State) Unlocked(i int) bool { return s.unlocked[i] }

// Visible reports whether slot i is visible.
func (s *State) Visible(i int) bool { return s.visible[i] }

// NetPerSecond returns the live net rate computed at the last finalizeTick.
func (s *State) NetPerSecond(i int) float64 { return s.netPerSecond[i] }

// TickDelta returns the live accumulated amount delta for the current tick.
func (s *State) TickDelta(i int) float64 { return s.tickDelta[i] }

// DefinitionDigest hashes the live id sequence in slot order, the same
// algorithm used to stamp a save's digest and validate one on hydration.
func (s *State) DefinitionDigest() string {
	return digest.ComputeStable(s.ids)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
