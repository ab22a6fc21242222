package sqladapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/hansjm10/idle-simcore/pkg/resourcestate"
)

// StoredSnapshot is the host-facing persisted save record: everything a
// load/save cycle needs besides the live resource and manager state that
// the coordinator and resourcestate.State hold in memory.
type StoredSnapshot struct {
	SlotID           string
	SchemaVersion    int
	CapturedAt       time.Time
	WorkerStep       int64
	MonotonicMs      float64
	State            resourcestate.Serialized
	RuntimeVersion   string
	ContentDigest    string
	PendingMigration bool
}

// Adapter persists StoredSnapshot records through bun against a
// Postgres-compatible database. It takes a bun.IDB rather than a concrete
// *bun.DB so callers can pass a transaction for atomic multi-slot writes.
type Adapter struct {
	db bun.IDB
}

// New builds an Adapter over db, which may be a *bun.DB or a *bun.Tx.
func New(db bun.IDB) *Adapter {
	return &Adapter{db: db}
}

// Save upserts snap by slot id.
func (a *Adapter) Save(ctx context.Context, snap StoredSnapshot) error {
	stateJSON, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("sqladapter: marshal state: %w", err)
	}

	model := &snapshotModel{
		SlotID:           snap.SlotID,
		SchemaVersion:    snap.SchemaVersion,
		CapturedAt:       snap.CapturedAt,
		WorkerStep:       snap.WorkerStep,
		MonotonicMs:      snap.MonotonicMs,
		StateJSON:        stateJSON,
		RuntimeVersion:   snap.RuntimeVersion,
		ContentDigest:    snap.ContentDigest,
		PendingMigration: snap.PendingMigration,
	}

	_, err = a.db.NewInsert().
		Model(model).
		On("CONFLICT (slot_id) DO UPDATE").
		Set("schema_version = EXCLUDED.schema_version").
		Set("captured_at = EXCLUDED.captured_at").
		Set("worker_step = EXCLUDED.worker_step").
		Set("monotonic_ms = EXCLUDED.monotonic_ms").
		Set("state_json = EXCLUDED.state_json").
		Set("runtime_version = EXCLUDED.runtime_version").
		Set("content_digest = EXCLUDED.content_digest").
		Set("pending_migration = EXCLUDED.pending_migration").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqladapter: save slot %q: %w", snap.SlotID, err)
	}
	return nil
}

// Load fetches the snapshot for slotID. A missing slot returns (nil, nil),
// not an error: an empty slot is a normal state for a new player.
func (a *Adapter) Load(ctx context.Context, slotID string) (*StoredSnapshot, error) {
	model := new(snapshotModel)
	err := a.db.NewSelect().Model(model).Where("slot_id = ?", slotID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqladapter: load slot %q: %w", slotID, err)
	}

	var state resourcestate.Serialized
	if err := json.Unmarshal(model.StateJSON, &state); err != nil {
		return nil, fmt.Errorf("sqladapter: unmarshal state for slot %q: %w", slotID, err)
	}

	return &StoredSnapshot{
		SlotID:           model.SlotID,
		SchemaVersion:    model.SchemaVersion,
		CapturedAt:       model.CapturedAt,
		WorkerStep:       model.WorkerStep,
		MonotonicMs:      model.MonotonicMs,
		State:            state,
		RuntimeVersion:   model.RuntimeVersion,
		ContentDigest:    model.ContentDigest,
		PendingMigration: model.PendingMigration,
	}, nil
}

// DeleteSlot removes slotID's row, if any. Deleting an absent slot is not
// an error.
func (a *Adapter) DeleteSlot(ctx context.Context, slotID string) error {
	_, err := a.db.NewDelete().Model((*snapshotModel)(nil)).Where("slot_id = ?", slotID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqladapter: delete slot %q: %w", slotID, err)
	}
	return nil
}

// ListPendingMigration returns every slot id flagged PendingMigration, for
// a host running a batch migration sweep.
func (a *Adapter) ListPendingMigration(ctx context.Context) ([]string, error) {
	var ids []string
	err := a.db.NewSelect().
		Model((*snapshotModel)(nil)).
		Column("slot_id").
		Where("pending_migration = ?", true).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("sqladapter: list pending migration: %w", err)
	}
	return ids, nil
}
