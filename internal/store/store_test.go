package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"fieldsync/internal/entry"
	"fieldsync/internal/logging"
	"fieldsync/internal/persist"
	"fieldsync/internal/store"
)

type countingObserver struct {
	lastCount int
	failures  int
}

func (o *countingObserver) EntriesChanged(n int) { o.lastCount = n }
func (o *countingObserver) PersistFailed()       { o.failures++ }

func openStore(t *testing.T, adapter persist.Adapter, opts ...store.Option) *store.Store {
	t.Helper()
	return store.Open(context.Background(), adapter, logging.NewNop(), opts...)
}

func TestAddIsNoopForExistingID(t *testing.T) {
	mem := persist.NewMemory()
	s := openStore(t, mem)
	ctx := context.Background()

	created, ok, all := s.Add(ctx, "/a/clip_1.mp4", entry.Params{"length": "4"})
	if !ok || created.ID != "clip_1.mp4" || len(all) != 1 {
		t.Fatalf("unexpected add result: %+v %v %d", created, ok, len(all))
	}
	_, ok, all = s.Add(ctx, "/b/clip_1.mp4", nil)
	if ok {
		t.Fatal("expected second add with same id to be skipped")
	}
	if len(all) != 1 || all[0].MediaPath != "/a/clip_1.mp4" {
		t.Fatalf("unexpected collection after skipped add: %+v", all)
	}
	if got := len(mem.Snapshot()); got != 1 {
		t.Fatalf("expected persisted snapshot of 1, got %d", got)
	}
}

func TestReturnedCollectionsAreCopies(t *testing.T) {
	s := openStore(t, persist.NewMemory())
	_, _, all := s.Add(context.Background(), "/a/clip_1.mp4", entry.Params{"length": "4"})
	all[0].Params["length"] = "99"
	all[0].VideoUploadStatus = entry.UploadUploaded

	got, _ := s.Get("clip_1.mp4")
	if got.Params["length"] != "4" || got.VideoUploadStatus != entry.UploadNew {
		t.Fatalf("store state leaked through returned collection: %+v", got)
	}
}

func TestUpdateParamsChangeResetsDependents(t *testing.T) {
	s := openStore(t, persist.NewMemory())
	ctx := context.Background()
	s.Add(ctx, "/a/clip_1.mp4", entry.Params{"length": "4"})
	markSettled(t, s, "clip_1.mp4")

	updated, changed, _, err := s.Update(ctx, "clip_1.mp4", entry.Patch{Params: entry.Params{"length": "5"}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !changed {
		t.Fatal("expected changed")
	}
	if updated.ParamUploadStatus != entry.UploadNew || updated.ParamUploadResponse != nil {
		t.Fatalf("params not reset: %+v", updated)
	}
	if updated.InferenceStatus != entry.InferenceNew || updated.InferenceResponse != nil {
		t.Fatalf("inference not reset: %+v", updated)
	}
	if updated.VideoUploadStatus != entry.UploadUploaded {
		t.Fatalf("video should be untouched, got %s", updated.VideoUploadStatus)
	}
}

func TestUpdatePathChangeRederivesID(t *testing.T) {
	s := openStore(t, persist.NewMemory())
	ctx := context.Background()
	s.Add(ctx, "/videos/clip_1.mp4", entry.Params{"length": "4"})
	markSettled(t, s, "clip_1.mp4")

	newPath := "/videos/clip_2.mp4"
	updated, changed, all, err := s.Update(ctx, "clip_1.mp4", entry.Patch{MediaPath: &newPath, Params: entry.Params{"length": "4"}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !changed {
		t.Fatal("expected changed")
	}
	if updated.ID != "clip_2.mp4" {
		t.Fatalf("expected id clip_2.mp4, got %q", updated.ID)
	}
	if updated.VideoUploadStatus != entry.UploadNew || updated.VideoUploadResponse != nil {
		t.Fatalf("video not reset: %s %s", updated.VideoUploadStatus, updated.VideoUploadResponse)
	}
	if updated.ParamUploadStatus != entry.UploadUploaded || updated.ParamUploadResponse == nil {
		t.Fatalf("params should be unaffected: %s", updated.ParamUploadStatus)
	}
	if len(all) != 1 {
		t.Fatalf("expected in-place mutation, got %d entries", len(all))
	}
	if _, ok := s.Get("clip_1.mp4"); ok {
		t.Fatal("old id should no longer resolve")
	}
}

func TestUpdateRejectsDuplicateAndMissing(t *testing.T) {
	s := openStore(t, persist.NewMemory())
	ctx := context.Background()
	s.Add(ctx, "/v/clip_1.mp4", nil)
	s.Add(ctx, "/v/clip_2.mp4", nil)

	collide := "/other/clip_2.mp4"
	if _, _, _, err := s.Update(ctx, "clip_1.mp4", entry.Patch{MediaPath: &collide}); !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if got, _ := s.Get("clip_1.mp4"); got.MediaPath != "/v/clip_1.mp4" {
		t.Fatalf("failed update must not mutate: %+v", got)
	}
	if _, _, _, err := s.Update(ctx, "missing.mp4", entry.Patch{}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPruneToKnownPaths(t *testing.T) {
	mem := persist.NewMemory()
	s := openStore(t, mem)
	ctx := context.Background()
	s.Add(ctx, "/v/a.mp4", nil)
	s.Add(ctx, "/v/b.mp4", nil)
	s.Add(ctx, "/v/c.mp4", nil)

	all, removed := s.PruneToKnownPaths(ctx, []string{"/v/a.mp4", "/v/c.mp4"})
	if len(all) != 2 || all[0].ID != "a.mp4" || all[1].ID != "c.mp4" {
		t.Fatalf("unexpected remaining entries: %+v", all)
	}
	if len(removed) != 1 || removed[0] != "b.mp4" {
		t.Fatalf("unexpected removed ids: %v", removed)
	}
	if len(mem.Snapshot()) != 2 {
		t.Fatalf("prune not persisted")
	}
}

func TestRemoveAndClearAll(t *testing.T) {
	s := openStore(t, persist.NewMemory())
	ctx := context.Background()
	s.Add(ctx, "/v/a.mp4", nil)
	s.Add(ctx, "/v/b.mp4", nil)

	if all := s.Remove(ctx, "missing"); len(all) != 2 {
		t.Fatalf("remove of missing id should be a no-op, got %d", len(all))
	}
	if all := s.Remove(ctx, "a.mp4"); len(all) != 1 || all[0].ID != "b.mp4" {
		t.Fatalf("unexpected collection after remove: %+v", all)
	}
	if all := s.ClearAll(ctx); len(all) != 0 || s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", len(all))
	}
}

func TestOpenRecoversInterruptedStatuses(t *testing.T) {
	seed := entry.New("/v/a.mp4", nil)
	seed = entry.MarkUploading(seed, entry.PayloadVideo)
	seed = entry.SetInference(seed, entry.InferenceRunning, nil)
	mem := persist.NewMemory(seed)

	s := openStore(t, mem)
	got, ok := s.Get("a.mp4")
	if !ok {
		t.Fatal("expected entry loaded")
	}
	if got.VideoUploadStatus != entry.UploadFailed {
		t.Fatalf("expected uploading to become failed, got %s", got.VideoUploadStatus)
	}
	if got.InferenceStatus != entry.InferenceNew {
		t.Fatalf("expected running to become new, got %s", got.InferenceStatus)
	}
	if mem.Saves() != 1 {
		t.Fatalf("expected recovered snapshot to be saved once, got %d", mem.Saves())
	}
}

func TestOpenStartsEmptyOnLoadFailure(t *testing.T) {
	mem := persist.NewMemory(entry.New("/v/a.mp4", nil))
	mem.LoadErr = errors.New("corrupt")
	s := openStore(t, mem)
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
}

func TestSaveFailureKeepsInMemoryState(t *testing.T) {
	mem := persist.NewMemory()
	mem.SaveErr = errors.New("disk full")
	obs := &countingObserver{}
	s := openStore(t, mem, store.WithObserver(obs))

	_, ok, all := s.Add(context.Background(), "/v/a.mp4", nil)
	if !ok || len(all) != 1 {
		t.Fatalf("expected add to succeed in memory: %v %d", ok, len(all))
	}
	if obs.failures != 1 {
		t.Fatalf("expected one persist failure, got %d", obs.failures)
	}
	if obs.lastCount != 1 {
		t.Fatalf("expected observer count 1, got %d", obs.lastCount)
	}
}

func TestModifyStampsUpdatedAt(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := openStore(t, persist.NewMemory(), store.WithClock(func() time.Time { return fixed }))
	ctx := context.Background()
	s.Add(ctx, "/v/a.mp4", nil)

	got, ok := s.Modify(ctx, "a.mp4", func(e entry.Entry) entry.Entry {
		return entry.MarkUploading(e, entry.PayloadParams)
	})
	if !ok {
		t.Fatal("expected modify to find entry")
	}
	if got.ParamUploadStatus != entry.UploadUploading {
		t.Fatalf("unexpected status %s", got.ParamUploadStatus)
	}
	if !got.UpdatedAt.Equal(fixed) {
		t.Fatalf("unexpected UpdatedAt %s", got.UpdatedAt)
	}
	if _, ok := s.Modify(ctx, "missing", func(e entry.Entry) entry.Entry { return e }); ok {
		t.Fatal("expected modify of missing id to report false")
	}
}

func markSettled(t *testing.T, s *store.Store, id string) {
	t.Helper()
	_, ok := s.Modify(context.Background(), id, func(e entry.Entry) entry.Entry {
		e = entry.RecordUpload(e, entry.PayloadVideo, true, json.RawMessage(`{"status":"success"}`))
		e = entry.RecordUpload(e, entry.PayloadParams, true, json.RawMessage(`{"status":"success"}`))
		return entry.SetInference(e, entry.InferenceCompleted, json.RawMessage(`{"status":"completed"}`))
	})
	if !ok {
		t.Fatalf("entry %s not found", id)
	}
}
