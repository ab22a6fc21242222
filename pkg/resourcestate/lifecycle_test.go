package resourcestate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansjm10/idle-simcore/pkg/simerrors"
)

// S3 — net-zero mutation sequence within tolerance publishes nothing.
func TestPublish_NetZeroMutationIsNotPublished(t *testing.T) {
	s := Create([]Definition{{ID: "e", StartAmount: 10}})

	s.AddAmount(0, 5)
	s.AddAmount(0, -5)
	s.FinalizeTick(0)
	snap := s.Snapshot(ModePublish)

	assert.Equal(t, 0, len(snap.DirtyIndices))
	assert.Equal(t, []float64{10}, snap.Amounts)
}

func TestLifecycleGuard_ResetBeforePublishFails(t *testing.T) {
	s := Create([]Definition{{ID: "e"}})
	s.FinalizeTick(0)

	err := s.ResetPerTickAccumulators()
	require.Error(t, err)
	assert.True(t, errors.Is(err, simerrors.ErrResourceResetOutOfOrder))
}

func TestLifecycleGuard_ResetAfterPublishSucceedsAndRezeros(t *testing.T) {
	s := Create([]Definition{{ID: "e"}})
	s.ApplyIncome(0, 5)
	s.FinalizeTick(1000)
	s.Snapshot(ModePublish)

	err := s.ResetPerTickAccumulators()
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.incomePerSecond[0])
	assert.Equal(t, 0.0, s.tickDelta[0])

	err = s.ResetPerTickAccumulators()
	assert.Error(t, err)
}

func TestForceClearDirtyState_ResetsGuardToIdle(t *testing.T) {
	s := Create([]Definition{{ID: "e"}})
	s.FinalizeTick(0)
	s.AddAmount(0, 1)

	s.ForceClearDirtyState()

	assert.Equal(t, guardIdle, s.guard)
	assert.Equal(t, 0, s.DirtyCount())
}

func TestRecorderSnapshot_DeepCopiesLiveState(t *testing.T) {
	s := Create([]Definition{{ID: "e", StartAmount: 3}})
	snap := s.Snapshot(ModeRecorder)

	s.AddAmount(0, 100)

	assert.Equal(t, 3.0, snap.Amounts[0])
}

// A pure income-rate change with no amount movement must still reach the
// next publish, since rate consumers would otherwise read a stale value
// indefinitely.
func TestPublish_IncomeRateChangeAloneIsPublished(t *testing.T) {
	s := Create([]Definition{{ID: "e", StartAmount: 10}})
	s.FinalizeTick(0)
	s.Snapshot(ModePublish)
	require.NoError(t, s.ResetPerTickAccumulators())

	s.ApplyIncome(0, 3)
	s.FinalizeTick(0)
	snap := s.Snapshot(ModePublish)

	require.Equal(t, []int{0}, snap.DirtyIndices)
	assert.Equal(t, 3.0, snap.IncomePerSecond[0])
}

func TestPublish_SnapshotCarriesFlagsAndDirtyTolerance(t *testing.T) {
	s := Create([]Definition{{ID: "e", StartAmount: 0, Unlocked: false, Visible: false, DirtyTolerance: 0.01}})
	s.GrantVisibility(0)
	s.Unlock(0)
	s.FinalizeTick(0)
	snap := s.Snapshot(ModePublish)

	require.Len(t, snap.Flags, 1)
	assert.NotZero(t, snap.Flags[0]&flagVisible)
	assert.NotZero(t, snap.Flags[0]&flagUnlocked)
	assert.NotZero(t, snap.Flags[0]&flagDirtyThisTick)
	assert.Equal(t, 0.01, snap.DirtyTolerance[0])
}
