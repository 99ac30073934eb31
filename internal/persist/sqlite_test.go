package persist_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"fieldsync/internal/entry"
	"fieldsync/internal/persist"
	"fieldsync/internal/services"
)

func openTestDB(t *testing.T, dir string) *persist.SQLite {
	t.Helper()
	db, err := persist.OpenSQLite(context.Background(), filepath.Join(dir, "entries.db"), filepath.Join(dir, "fieldsync.lock"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	return db
}

func TestSQLiteLoadEmpty(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	defer db.Close()

	entries, err := db.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestSQLiteRoundTripAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir)

	e := entry.New("/data/clip_1.mp4", entry.Params{"length": "4"})
	e = entry.RecordUpload(e, entry.PayloadVideo, true, json.RawMessage(`{"status":"success"}`))
	if err := db.Save(context.Background(), []entry.Entry{e}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	e2 := entry.New("/data/clip_2.mp4", nil)
	if err := db.Save(context.Background(), []entry.Entry{e, e2}); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openTestDB(t, dir)
	defer reopened.Close()
	loaded, err := reopened.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(loaded))
	}
	if loaded[0].ID != "clip_1.mp4" || loaded[0].VideoUploadStatus != entry.UploadUploaded {
		t.Fatalf("unexpected first entry: %+v", loaded[0])
	}
	if string(loaded[0].VideoUploadResponse) != `{"status":"success"}` {
		t.Fatalf("response not preserved: %s", loaded[0].VideoUploadResponse)
	}
	if loaded[0].Params["length"] != "4" {
		t.Fatalf("params not preserved: %v", loaded[0].Params)
	}
	if loaded[1].ID != "clip_2.mp4" {
		t.Fatalf("order not preserved: %q", loaded[1].ID)
	}
}

func TestSQLiteSecondOpenIsLocked(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir)
	defer db.Close()

	_, err := persist.OpenSQLite(context.Background(), filepath.Join(dir, "entries.db"), filepath.Join(dir, "fieldsync.lock"))
	if !errors.Is(err, persist.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestSQLiteSaveAfterCloseIsPersistenceError(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	err := db.Save(context.Background(), nil)
	if !errors.Is(err, services.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestMemoryAdapter(t *testing.T) {
	seed := entry.New("/data/clip_1.mp4", nil)
	mem := persist.NewMemory(seed)
	loaded, err := mem.Load(context.Background())
	if err != nil || len(loaded) != 1 {
		t.Fatalf("unexpected load: %v %v", loaded, err)
	}
	loaded[0].Params["mutated"] = true
	if _, ok := mem.Snapshot()[0].Params["mutated"]; ok {
		t.Fatal("Load must return a copy")
	}

	mem.SaveErr = errors.New("disk full")
	if err := mem.Save(context.Background(), nil); err == nil {
		t.Fatal("expected injected save error")
	}
	if mem.Saves() != 0 {
		t.Fatalf("failed save should not count, got %d", mem.Saves())
	}
}
