package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/hansjm10/idle-simcore/pkg/digest"
	"github.com/hansjm10/idle-simcore/pkg/resourcestate"
	"github.com/hansjm10/idle-simcore/pkg/simerrors"
	"github.com/hansjm10/idle-simcore/pkg/telemetry"
)

// ApplyMigrations threads state through each migration's transform in
// order. A transform failure wraps the offending migration's id into a
// MIGRATION_ERROR and stops immediately; nothing downstream runs.
func ApplyMigrations(state resourcestate.Serialized, migrations []Migration) (resourcestate.Serialized, error) {
	cur := state
	for _, m := range migrations {
		next, err := m.Transform(cur)
		if err != nil {
			return resourcestate.Serialized{}, &simerrors.MigrationError{
				Code: "MIGRATION_ERROR",
				Err:  fmt.Errorf("migration %q: %w", m.ID, err),
			}
		}
		cur = next
	}
	return cur, nil
}

// stripDigest discards the stale DefinitionDigest a migrated save carries
// over from its source content pack and replaces it with one freshly
// computed from the migrated id sequence, so revalidation's self-consistency
// check passes against the save's new shape rather than its old one.
func stripDigest(s resourcestate.Serialized) resourcestate.Serialized {
	s.DefinitionDigest = resourcestate.DefinitionDigest{
		IDs:     append([]string(nil), s.IDs...),
		Version: len(s.IDs),
		Hash:    digest.ComputeStable(s.IDs),
	}
	return s
}

// Runner finds and applies a migration path against a live resource state,
// emitting the spec's PersistenceMigration* telemetry at each stage.
type Runner struct {
	registry *Registry
	recorder *telemetry.Recorder
}

// NewRunner binds registry to recorder. A nil recorder is safe; telemetry
// calls on it become no-ops.
func NewRunner(registry *Registry, recorder *telemetry.Recorder) *Runner {
	return &Runner{registry: registry, recorder: recorder}
}

// Migrate carries stored from its own digest to targetDigest, applies the
// path found against it, strips and revalidates the result against live,
// and on success hydrates live with the migrated save. Returns the migrated
// Serialized (for the host to persist immediately, per spec) and the
// reconciliation result.
func (r *Runner) Migrate(stored resourcestate.Serialized, targetDigest string, live *resourcestate.State) (resourcestate.Serialized, resourcestate.ReconciliationResult, error) {
	ctx := context.Background()
	from := stored.DefinitionDigest.Hash

	path := r.registry.FindPath(from, targetDigest)
	if !path.Found {
		err := &simerrors.MigrationError{
			Code: "MIGRATION_PATH_NOT_FOUND",
			Err:  fmt.Errorf("%w: from %q to %q", simerrors.ErrMigrationPathNotFound, from, targetDigest),
		}
		r.recorder.Errorf(ctx, "PersistenceMigrationFailed", err.Error(), map[string]any{"fromDigest": from, "toDigest": targetDigest})
		return resourcestate.Serialized{}, resourcestate.ReconciliationResult{}, err
	}

	registrationIDs := make([]string, len(path.Migrations))
	for i, m := range path.Migrations {
		registrationIDs[i] = m.RegistrationID
	}
	r.recorder.Progress(ctx, "PersistenceMigrationStarted", "applying migration path", map[string]any{
		"fromDigest": from, "toDigest": targetDigest, "steps": len(path.Migrations), "registrationIds": registrationIDs,
	})

	migrated, err := ApplyMigrations(stored, path.Migrations)
	if err != nil {
		r.recorder.Errorf(ctx, "PersistenceMigrationFailed", err.Error(), map[string]any{"fromDigest": from, "toDigest": targetDigest})
		return resourcestate.Serialized{}, resourcestate.ReconciliationResult{}, err
	}
	migrated = stripDigest(migrated)

	if digest.ComputeStable(migrated.IDs) != targetDigest {
		r.recorder.Warn(ctx, "PersistenceMigrationDigestMismatch", "migrated id sequence does not match the target digest; trusting revalidation", map[string]any{
			"fromDigest": from, "toDigest": targetDigest,
		})
	}

	result, recErr := live.ReconcileSaveAgainstDefinitions(migrated)
	if recErr != nil {
		err := classifyRevalidationFailure(recErr)
		r.recorder.Errorf(ctx, "PersistenceMigrationFailed", err.Error(), map[string]any{"fromDigest": from, "toDigest": targetDigest})
		return resourcestate.Serialized{}, resourcestate.ReconciliationResult{}, err
	}

	r.recorder.Progress(ctx, "PersistenceMigrationApplied", "migration path applied and revalidated", map[string]any{
		"fromDigest": from, "toDigest": targetDigest, "steps": len(path.Migrations),
	})
	return migrated, result, nil
}

// classifyRevalidationFailure maps a reconciliation error onto the two
// migration-specific failure codes the spec names: ids still missing after
// every transform ran (MIGRATION_INCOMPLETE) versus the save being
// self-inconsistent or malformed (MIGRATION_VALIDATION_FAILED).
func classifyRevalidationFailure(err error) error {
	var hydrationErr *simerrors.HydrationError
	if errors.As(err, &hydrationErr) && errors.Is(hydrationErr, simerrors.ErrResourceHydrationMismatch) {
		return &simerrors.MigrationError{Code: "MIGRATION_INCOMPLETE", Err: fmt.Errorf("%w: %v", simerrors.ErrMigrationIncomplete, err)}
	}
	return &simerrors.MigrationError{Code: "MIGRATION_VALIDATION_FAILED", Err: fmt.Errorf("%w: %v", simerrors.ErrMigrationValidationFailed, err)}
}
