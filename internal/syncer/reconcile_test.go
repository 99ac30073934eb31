package syncer

import (
	"context"
	"errors"
	"slices"
	"testing"

	"fieldsync/internal/entry"
	"fieldsync/internal/services"
)

func TestReconcileEmptyInput(t *testing.T) {
	st := newStore(t)

	plan, err := Reconcile(context.Background(), st, nil)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(plan.Upload) != 0 || len(plan.InferenceOnly) != 0 || len(plan.Entries) != 0 {
		t.Fatalf("expected empty plan, got %+v", plan)
	}
	if st.Len() != 0 {
		t.Fatalf("expected empty store, got %d entries", st.Len())
	}
}

func TestReconcileNewItemsGoToUploadInOrder(t *testing.T) {
	st := newStore(t)
	items := []MediaItem{
		{Path: "/data/field_a/clip_2.mp4", Params: entry.Params{"length": "4"}},
		{Path: "/data/field_a/clip_1.mp4"},
	}

	plan, err := Reconcile(context.Background(), st, items)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if want := []string{"clip_2.mp4", "clip_1.mp4"}; !slices.Equal(plan.Upload, want) {
		t.Fatalf("upload set = %v, want %v", plan.Upload, want)
	}
	if len(plan.InferenceOnly) != 0 {
		t.Fatalf("expected no inference-only entries, got %v", plan.InferenceOnly)
	}
	second := mustGet(t, st, "clip_1.mp4")
	if second.Params == nil || len(second.Params) != 0 {
		t.Fatalf("expected nil params normalized to empty, got %#v", second.Params)
	}
}

func TestReconcileUnchangedUploadedEntryIsInferenceOnly(t *testing.T) {
	st := newStore(t)
	seedUploaded(t, st, "/data/clip_1.mp4", entry.Params{"length": "4"})

	plan, err := Reconcile(context.Background(), st, []MediaItem{{Path: "/data/clip_1.mp4", Params: entry.Params{"length": "4"}}})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(plan.Upload) != 0 {
		t.Fatalf("expected empty upload set, got %v", plan.Upload)
	}
	if !slices.Equal(plan.InferenceOnly, []string{"clip_1.mp4"}) {
		t.Fatalf("unexpected inference-only set %v", plan.InferenceOnly)
	}
}

func TestReconcileParamsChangeResetsParamsOnly(t *testing.T) {
	st := newStore(t)
	seedUploaded(t, st, "/data/clip_1.mp4", entry.Params{"length": "4"})

	plan, err := Reconcile(context.Background(), st, []MediaItem{{Path: "/data/clip_1.mp4", Params: entry.Params{"length": "5"}}})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !slices.Equal(plan.Upload, []string{"clip_1.mp4"}) {
		t.Fatalf("expected entry in upload set, got %v", plan.Upload)
	}
	got := mustGet(t, st, "clip_1.mp4")
	if got.ParamUploadStatus != entry.UploadNew || got.ParamUploadResponse != nil {
		t.Fatalf("expected params reset, got %s %s", got.ParamUploadStatus, got.ParamUploadResponse)
	}
	if got.VideoUploadStatus != entry.UploadUploaded {
		t.Fatalf("expected video untouched, got %s", got.VideoUploadStatus)
	}
	if got.InferenceStatus != entry.InferenceNew {
		t.Fatalf("expected inference reset, got %s", got.InferenceStatus)
	}
}

func TestReconcileRetriesFailedPayloads(t *testing.T) {
	st := newStore(t)
	seeded := seedUploaded(t, st, "/data/clip_1.mp4", nil)
	st.Modify(context.Background(), seeded.ID, func(e entry.Entry) entry.Entry {
		return entry.FailUpload(e, entry.PayloadVideo)
	})

	plan, err := Reconcile(context.Background(), st, []MediaItem{{Path: "/data/clip_1.mp4"}})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !slices.Equal(plan.Upload, []string{"clip_1.mp4"}) {
		t.Fatalf("expected failed entry to be retried, got upload=%v inference=%v", plan.Upload, plan.InferenceOnly)
	}
}

func TestReconcilePrunesEntriesWithoutItems(t *testing.T) {
	st := newStore(t)
	seedUploaded(t, st, "/data/clip_1.mp4", nil)
	seedUploaded(t, st, "/data/clip_2.mp4", nil)

	plan, err := Reconcile(context.Background(), st, []MediaItem{{Path: "/data/clip_2.mp4"}})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !slices.Equal(plan.Pruned, []string{"clip_1.mp4"}) {
		t.Fatalf("unexpected pruned ids %v", plan.Pruned)
	}
	if _, ok := st.Get("clip_1.mp4"); ok {
		t.Fatal("expected clip_1.mp4 removed")
	}
	if len(plan.Entries) != 1 || plan.Entries[0].ID != "clip_2.mp4" {
		t.Fatalf("unexpected remaining entries %+v", plan.Entries)
	}
}

func TestReconcileRejectsDuplicateIDs(t *testing.T) {
	st := newStore(t)
	seedUploaded(t, st, "/data/other.mp4", nil)

	_, err := Reconcile(context.Background(), st, []MediaItem{
		{Path: "/data/field_a/clip_1.mp4"},
		{Path: "/data/field_b/clip_1.mp4"},
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := st.Get("other.mp4"); !ok {
		t.Fatal("expected store untouched after rejected input")
	}
}

func TestReconcileRejectsEmptyPath(t *testing.T) {
	st := newStore(t)
	_, err := Reconcile(context.Background(), st, []MediaItem{{Path: "  "}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	st := newStore(t)
	items := []MediaItem{
		{Path: "/data/clip_1.mp4", Params: entry.Params{"length": 4}},
		{Path: "/data/clip_2.mp4", Params: entry.Params{"plant": "p1"}},
	}

	first, err := Reconcile(context.Background(), st, items)
	if err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}
	second, err := Reconcile(context.Background(), st, items)
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if len(second.Entries) != len(first.Entries) {
		t.Fatalf("entry count changed: %d -> %d", len(first.Entries), len(second.Entries))
	}
	for i := range first.Entries {
		a, b := first.Entries[i], second.Entries[i]
		if a.ID != b.ID || a.VideoUploadStatus != b.VideoUploadStatus || a.ParamUploadStatus != b.ParamUploadStatus ||
			a.InferenceStatus != b.InferenceStatus || !a.UpdatedAt.Equal(b.UpdatedAt) {
			t.Fatalf("entry %d changed between identical reconciliations: %+v vs %+v", i, a, b)
		}
	}
	// Entries still waiting for upload stay in the upload set.
	if !slices.Equal(second.Upload, []string{"clip_1.mp4", "clip_2.mp4"}) {
		t.Fatalf("unexpected upload set on second pass: %v", second.Upload)
	}
}

func TestReconcileRequiresStore(t *testing.T) {
	_, err := Reconcile(context.Background(), nil, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
