package coordinator

import "github.com/hansjm10/idle-simcore/pkg/managers"

// CoordinatorCheckpoint snapshots manager-level derived state that lives
// outside resourcestate.Serialized: achievement completion records,
// prestige counts, and generator purchase-cooldown timers. It is additive
// to the resource-state save/hydrate cycle, not a replacement for it — a
// host restoring a session calls both ReconcileSaveAgainstDefinitions for
// resource amounts and RestoreCheckpoint for this.
type CoordinatorCheckpoint struct {
	Achievements []managers.AchievementCheckpoint
	Prestige     []managers.PrestigeCheckpoint
	Generators   []managers.GeneratorCheckpoint
}

// Checkpoint captures the coordinator's current manager-level derived
// state.
func (c *Coordinator) Checkpoint() CoordinatorCheckpoint {
	return CoordinatorCheckpoint{
		Achievements: c.achievements.ExportCheckpoint(),
		Prestige:     c.prestige.ExportCheckpoint(),
		Generators:   c.generators.ExportCheckpoint(),
	}
}

// RestoreCheckpoint replays a previously captured checkpoint onto the
// coordinator's managers. Entries for ids no longer in the content pack
// are ignored by each manager's own RestoreCheckpoint.
func (c *Coordinator) RestoreCheckpoint(cp CoordinatorCheckpoint) {
	c.achievements.RestoreCheckpoint(cp.Achievements)
	c.prestige.RestoreCheckpoint(cp.Prestige)
	c.generators.RestoreCheckpoint(cp.Generators)
}
