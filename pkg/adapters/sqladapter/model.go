// Package sqladapter is a reference persistence adapter for the save
// runtime: it stores one row per save slot in a Postgres-compatible
// database via bun, and round-trips resourcestate.Serialized as a JSON
// column rather than a normalized schema, since the column's shape changes
// with every content-pack revision.
package sqladapter

import (
	"time"

	"github.com/uptrace/bun"
)

// snapshotModel is the bun-mapped row for one save slot. StateJSON carries
// a resourcestate.Serialized marshaled as JSON; PendingMigration mirrors
// the host-facing StoredSnapshot flag so a caller can filter slots that
// still need pkg/migration applied without unmarshaling StateJSON first.
type snapshotModel struct {
	bun.BaseModel `bun:"table:simcore_snapshots,alias:s"`

	SlotID           string    `bun:"slot_id,pk"`
	SchemaVersion    int       `bun:"schema_version,notnull"`
	CapturedAt       time.Time `bun:"captured_at,notnull"`
	WorkerStep       int64     `bun:"worker_step,notnull"`
	MonotonicMs      float64   `bun:"monotonic_ms,notnull"`
	StateJSON        []byte    `bun:"state_json,notnull"`
	RuntimeVersion   string    `bun:"runtime_version,notnull"`
	ContentDigest    string    `bun:"content_digest,notnull"`
	PendingMigration bool      `bun:"pending_migration,notnull,default:false"`
}
