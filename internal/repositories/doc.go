// Package repositories implements SQLite persistence for the export history.
//
// [ExportRunRepository] stores one [models.ExportRun] per playlist per export command. The
// history is an audit trail only and is never read back by the export pipeline.
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
