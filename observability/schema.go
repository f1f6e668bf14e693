// Package observability records autofill run telemetry in SQLite. Event
// writes are non-blocking for the caller: a failing telemetry store never
// blocks or fails an autofill run.
package observability

import "database/sql"

// Schema contains the DDL for the telemetry tables. Applied idempotently.
const Schema = `
CREATE TABLE IF NOT EXISTS autofill_event_logs (
    event_id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    page_url TEXT,
    fields_detected INTEGER NOT NULL DEFAULT 0,
    mappings_found INTEGER NOT NULL DEFAULT 0,
    fallback_used INTEGER NOT NULL DEFAULT 0,
    capacity_dropped INTEGER NOT NULL DEFAULT 0,
    success INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_autofill_events_run
    ON autofill_event_logs(run_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_autofill_events_type_time
    ON autofill_event_logs(event_type, created_at DESC);
`

// Init applies the schema.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
