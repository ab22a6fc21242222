package resourcestate

import (
	"context"
	"fmt"
	"math"

	"github.com/hansjm10/idle-simcore/pkg/digest"
	"github.com/hansjm10/idle-simcore/pkg/simerrors"
)

// DefinitionDigest pins a Serialized save to the id sequence it was taken
// against, so hydration can detect a stale or tampered save before trusting
// its contents.
type DefinitionDigest struct {
	IDs     []string
	Version int
	Hash    string
}

// Serialized is the host-facing save shape for one State.
type Serialized struct {
	IDs              []string
	Amounts          []float64
	Capacities       []*float64 // nil entry = unbounded
	Unlocked         []bool
	Visible          []bool
	Flags            []uint8
	DefinitionDigest DefinitionDigest
}

// ExportForSave produces a host-persistable snapshot of live state. Amounts
// and flags are copied, never aliased.
func (s *State) ExportForSave() Serialized {
	capacities := make([]*float64, len(s.ids))
	for i, c := range s.capacities {
		if math.IsInf(c, 1) {
			continue
		}
		v := c
		capacities[i] = &v
	}

	flags := make([]uint8, len(s.ids))
	for i := range flags {
		if s.dirtyThisTick[i] {
			flags[i] |= flagDirty
		}
	}

	return Serialized{
		IDs:        append([]string(nil), s.ids...),
		Amounts:    append([]float64(nil), s.amounts...),
		Capacities: capacities,
		Unlocked:   append([]bool(nil), s.unlocked...),
		Visible:    append([]bool(nil), s.visible...),
		Flags:      flags,
		DefinitionDigest: DefinitionDigest{
			IDs:     append([]string(nil), s.ids...),
			Version: len(s.ids),
			Hash:    digest.ComputeStable(s.ids),
		},
	}
}

// ReconciliationResult reports how a save's ids relate to the live
// definitions it is being hydrated against.
type ReconciliationResult struct {
	// Remap[saveIndex] = liveIndex, for every saved id still present live.
	Remap      map[int]int
	AddedIds   []string
	RemovedIds []string
	DigestsMatch bool
}

// ReconcileSaveAgainstDefinitions validates serialized for internal
// consistency, then maps its ids onto the live State s was created from.
// Removed ids (present in the save, absent from live definitions) are
// fatal. Added ids (present live, absent from the save) are acceptable;
// their slots keep the values they received from Create.
func (s *State) ReconcileSaveAgainstDefinitions(serialized Serialized) (ReconciliationResult, error) {
	if err := validateSerializedShape(serialized); err != nil {
		return ReconciliationResult{}, err
	}

	wantHash := digest.ComputeStable(serialized.IDs)
	d := serialized.DefinitionDigest
	if d.Version != len(d.IDs) || !stringSlicesEqual(d.IDs, serialized.IDs) || d.Hash != wantHash {
		return ReconciliationResult{}, &simerrors.HydrationError{
			Code: "digest-hash-mismatch",
			Err:  fmt.Errorf("%w: save digest does not match its own id sequence", simerrors.ErrDigestHashMismatch),
		}
	}

	result := ReconciliationResult{Remap: make(map[int]int, len(serialized.IDs))}

	for saveIdx, id := range serialized.IDs {
		if liveIdx, ok := s.index[id]; ok {
			result.Remap[saveIdx] = liveIdx
		} else {
			result.RemovedIds = append(result.RemovedIds, id)
		}
	}

	savedIDs := make(map[string]struct{}, len(serialized.IDs))
	for _, id := range serialized.IDs {
		savedIDs[id] = struct{}{}
	}
	for _, id := range s.ids {
		if _, ok := savedIDs[id]; !ok {
			result.AddedIds = append(result.AddedIds, id)
		}
	}

	result.DigestsMatch = serialized.DefinitionDigest.Hash == s.DefinitionDigest()

	if len(result.RemovedIds) > 0 {
		err := &simerrors.HydrationError{
			Code: "resource-hydration-mismatch",
			Err:  fmt.Errorf("%w: save references ids no longer in the content pack: %v", simerrors.ErrResourceHydrationMismatch, result.RemovedIds),
		}
		s.telemetry.Errorf(context.Background(), "ResourceHydrationMismatch", err.Error(), map[string]any{"removedIds": result.RemovedIds})
		return result, err
	}

	if len(result.AddedIds) > 0 {
		s.telemetry.Progress(context.Background(), "HydrationAddedIds", "content pack defines resources absent from the save; new slots keep their initial values", map[string]any{"addedIds": result.AddedIds})
	}

	for saveIdx, liveIdx := range result.Remap {
		s.hydrateSlot(liveIdx, serialized, saveIdx)
	}

	return result, nil
}

func (s *State) hydrateSlot(liveIdx int, serialized Serialized, saveIdx int) {
	s.amounts[liveIdx] = serialized.Amounts[saveIdx]
	if c := serialized.Capacities[saveIdx]; c != nil {
		s.capacities[liveIdx] = *c
	} else {
		s.capacities[liveIdx] = math.Inf(1)
	}
	s.unlocked[liveIdx] = serialized.Unlocked[saveIdx]
	s.visible[liveIdx] = serialized.Visible[saveIdx]
}

func validateSerializedShape(serialized Serialized) error {
	n := len(serialized.IDs)
	if len(serialized.Amounts) != n || len(serialized.Capacities) != n ||
		len(serialized.Unlocked) != n || len(serialized.Visible) != n || len(serialized.Flags) != n {
		return &simerrors.HydrationError{
			Code: "malformed-save-arrays",
			Err:  fmt.Errorf("%w: serialized arrays have mismatched lengths", simerrors.ErrResourceHydrationInvalidData),
		}
	}

	seen := make(map[string]struct{}, n)
	for i, id := range serialized.IDs {
		if id == "" {
			return &simerrors.HydrationError{Code: "malformed-save-arrays", Err: fmt.Errorf("%w: empty id at index %d", simerrors.ErrResourceHydrationInvalidData, i)}
		}
		if _, dup := seen[id]; dup {
			return &simerrors.HydrationError{Code: "malformed-save-arrays", Err: fmt.Errorf("%w: duplicate id %q", simerrors.ErrResourceHydrationInvalidData, id)}
		}
		seen[id] = struct{}{}

		if math.IsNaN(serialized.Amounts[i]) || math.IsInf(serialized.Amounts[i], 0) {
			return &simerrors.HydrationError{Code: "malformed-save-arrays", Err: fmt.Errorf("%w: non-finite amount for %q", simerrors.ErrResourceHydrationInvalidData, id)}
		}
		if c := serialized.Capacities[i]; c != nil && *c < 0 {
			return &simerrors.HydrationError{Code: "malformed-save-arrays", Err: fmt.Errorf("%w: negative capacity for %q", simerrors.ErrResourceHydrationInvalidData, id)}
		}
	}

	return nil
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
