package observability

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/superfill/sfc/dbopen"
)

func TestLogEvent(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	l := NewEventLogger(db, WithEventIDGenerator(func() string { return "evt-1" }))

	l.LogEvent(context.Background(), RunEvent{
		RunID:          "run-1",
		EventType:      EventRunCompleted,
		PageURL:        "https://example.com/signup",
		FieldsDetected: 5,
		MappingsFound:  3,
		Success:        true,
		Duration:       120 * time.Millisecond,
	})

	var eventType string
	var fields, mappings, durMS int
	var success bool
	err := db.QueryRow(`
		SELECT event_type, fields_detected, mappings_found, success, duration_ms
		FROM autofill_event_logs WHERE event_id = 'evt-1'`).
		Scan(&eventType, &fields, &mappings, &success, &durMS)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if eventType != EventRunCompleted || fields != 5 || mappings != 3 || !success || durMS != 120 {
		t.Errorf("row: %s %d %d %v %d", eventType, fields, mappings, success, durMS)
	}
}

func TestLogEventNeverFails(t *testing.T) {
	db := dbopen.OpenMemory(t) // no schema applied
	l := NewEventLogger(db)

	// Must not panic or propagate despite the missing table.
	l.LogEvent(context.Background(), RunEvent{RunID: "run-1", EventType: EventRunFailed})
}

func TestCleanup(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	old := time.Now().Unix() - 90*86400
	if _, err := db.Exec(`
		INSERT INTO autofill_event_logs (event_id, run_id, event_type, created_at)
		VALUES ('evt-old', 'run-1', 'run_completed', ?),
		       ('evt-new', 'run-2', 'run_completed', strftime('%s','now'))`, old); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := Cleanup(context.Background(), db, 30); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM autofill_event_logs`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("rows after cleanup: got %d, want 1", n)
	}
}
