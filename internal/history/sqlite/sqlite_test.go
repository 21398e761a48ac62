package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/loykin/cockpit/internal/history"
)

func runEvents(t *testing.T, sink *Sink) {
	t.Helper()
	ctx := context.Background()
	rec := history.Record{Name: "server", PID: 12345, WorkDir: "/app", State: "starting"}
	events := []history.Event{
		{Type: history.EventStart, OccurredAt: time.Now().UTC(), Record: rec},
		{Type: history.EventReady, OccurredAt: time.Now().UTC(), Record: rec},
	}
	rec.State = "stopped"
	rec.Detail = "quit"
	events = append(events, history.Event{Type: history.EventStop, OccurredAt: time.Now().UTC(), Record: rec})
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("send %s: %v", e.Type, err)
		}
	}
	for _, typ := range []history.EventType{history.EventStart, history.EventReady, history.EventStop} {
		n, err := sink.Count(ctx, typ)
		if err != nil {
			t.Fatalf("count %s: %v", typ, err)
		}
		if n != 1 {
			t.Fatalf("count %s = %d, want 1", typ, n)
		}
	}
}

func TestSQLiteSink_File(t *testing.T) {
	dbPath := t.TempDir() + "/history.db"
	sink, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()
	runEvents(t, sink)

	// reopening keeps the schema and rows
	again, err := New(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = again.Close() }()
	if n, err := again.Count(context.Background(), history.EventStop); err != nil || n != 1 {
		t.Fatalf("rows after reopen: n=%d err=%v", n, err)
	}
}

func TestSQLiteSink_InMemory(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory sink: %v", err)
	}
	defer func() { _ = sink.Close() }()
	runEvents(t, sink)
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestSQLiteSink_ContextCancellation(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = sink.Send(ctx, history.Event{Type: history.EventStart, OccurredAt: time.Now().UTC()})
	if err == nil {
		t.Fatal("expected error with cancelled context")
	}
}
