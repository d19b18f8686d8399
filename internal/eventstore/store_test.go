package eventstore

import (
	"errors"
	"testing"
	"time"
)

const testBuildID = "build-123"

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEventStoreAppendAndRetrieve(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	at := time.Date(2024, 5, 1, 10, 0, 0, 123e6, time.UTC)

	ev, err := NewBuildStarted(testBuildID, at, BuildStartedData{ExportPath: "export.xml", OutputDir: "site"})
	if err != nil {
		t.Fatalf("failed to create event: %v", err)
	}
	if err := store.Append(ctx, ev); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}

	events, err := store.GetByBuildID(ctx, testBuildID)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	got := events[0]
	if got.ID() == 0 {
		t.Error("expected store-assigned id")
	}
	if got.Type() != TypeBuildStarted {
		t.Errorf("expected type %s, got %s", TypeBuildStarted, got.Type())
	}
	if !got.Timestamp().Equal(at) {
		t.Errorf("expected timestamp %v, got %v", at, got.Timestamp())
	}
	if string(got.Payload()) != `{"export_path":"export.xml","output_dir":"site"}` {
		t.Errorf("unexpected payload %s", got.Payload())
	}
}

func TestEventStoreGetRange(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		ev, err := NewBuildStarted(id, base.Add(time.Duration(i)*time.Hour), BuildStartedData{})
		if err != nil {
			t.Fatalf("failed to create event: %v", err)
		}
		if err := store.Append(ctx, ev); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
	}

	events, err := store.GetRange(ctx, base.Add(30*time.Minute), base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("failed to get range: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].BuildID() != "b" || events[1].BuildID() != "c" {
		t.Errorf("unexpected builds %s, %s", events[0].BuildID(), events[1].BuildID())
	}
}

func TestEventStoreClosedAppendFails(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	_ = store.Close()

	ev, _ := NewBuildStarted(testBuildID, time.Now(), BuildStartedData{})
	err = store.Append(t.Context(), ev)
	if !errors.Is(err, ErrEventAppendFailed) {
		t.Fatalf("expected ErrEventAppendFailed, got %v", err)
	}
}

func TestEventStorePersistsToFile(t *testing.T) {
	path := t.TempDir() + "/history.db"
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ev, _ := NewBuildStarted(testBuildID, time.Now(), BuildStartedData{})
	if err := store.Append(t.Context(), ev); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}
	_ = store.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	events, err := reopened.GetByBuildID(t.Context(), testBuildID)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event after reopen, got %d", len(events))
	}
}
