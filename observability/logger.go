package observability

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/superfill/sfc/dbopen"
	"github.com/superfill/sfc/idgen"
)

// Event types emitted over one autofill run.
const (
	EventRunStarted      = "run_started"
	EventRunCompleted    = "run_completed"
	EventRunFailed       = "run_failed"
	EventFallbackUsed    = "fallback_used"
	EventCapacityDropped = "capacity_dropped"
)

// RunEvent is one telemetry record of an autofill run.
type RunEvent struct {
	RunID           string
	EventType       string
	PageURL         string
	FieldsDetected  int
	MappingsFound   int
	FallbackUsed    bool
	CapacityDropped int
	Success         bool
	Error           string
	Duration        time.Duration
}

// EventLogger writes run events.
type EventLogger struct {
	db    *sql.DB
	newID idgen.Generator
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// NewEventLogger creates a logger backed by the given database.
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.NanoID(12)),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records a run event. Errors are logged via slog but never
// propagate: telemetry must not fail the run it observes.
func (l *EventLogger) LogEvent(ctx context.Context, event RunEvent) {
	_, err := dbopen.Exec(ctx, l.db, `
		INSERT INTO autofill_event_logs (
			event_id, run_id, event_type, page_url, fields_detected,
			mappings_found, fallback_used, capacity_dropped, success,
			error, duration_ms, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		l.newID(), event.RunID, event.EventType, event.PageURL,
		event.FieldsDetected, event.MappingsFound, event.FallbackUsed,
		event.CapacityDropped, event.Success, event.Error,
		event.Duration.Milliseconds(), time.Now().Unix())
	if err != nil {
		slog.Error("observability: event log failed",
			"error", err, "event_type", event.EventType, "run_id", event.RunID)
	}
}

// Cleanup deletes events older than the retention window. Zero days means
// no cleanup.
func Cleanup(ctx context.Context, db *sql.DB, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().Unix() - int64(retentionDays)*86400
	_, err := db.ExecContext(ctx,
		`DELETE FROM autofill_event_logs WHERE created_at < ?`, cutoff)
	return err
}
