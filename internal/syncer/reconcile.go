package syncer

import (
	"context"
	"fmt"
	"strings"

	"fieldsync/internal/entry"
	"fieldsync/internal/services"
	"fieldsync/internal/store"
)

// Reconcile diffs items against the store. Entries whose media path is no
// longer supplied are pruned first. New and changed entries go to the upload
// set, as do unchanged entries with a payload still new or failed so the next
// cycle retries them. Every other supplied entry goes to the inference-only
// set. Both sets keep the input order.
func Reconcile(ctx context.Context, st *store.Store, items []MediaItem) (Plan, error) {
	if st == nil {
		return Plan{}, services.Wrap(services.ErrConfiguration, string(PhaseReconcile), "", "no entry store", nil)
	}

	paths := make([]string, 0, len(items))
	seen := make(map[string]string, len(items))
	for i, item := range items {
		path := strings.TrimSpace(item.Path)
		id := entry.IDFromPath(path)
		if id == "" {
			return Plan{}, services.Wrap(services.ErrValidation, string(PhaseReconcile), "media items", fmt.Sprintf("item %d has no path", i), nil)
		}
		if prev, dup := seen[id]; dup {
			return Plan{}, services.Wrap(services.ErrValidation, string(PhaseReconcile), "media items",
				fmt.Sprintf("duplicate id %s for %s and %s", id, prev, path), nil)
		}
		seen[id] = path
		paths = append(paths, path)
	}

	plan := Plan{}
	_, plan.Pruned = st.PruneToKnownPaths(ctx, paths)

	for i, item := range items {
		path := paths[i]
		params := item.Params
		if params == nil {
			params = entry.Params{}
		}
		id := entry.IDFromPath(path)

		existing, ok := st.Get(id)
		if !ok {
			if created, added, _ := st.Add(ctx, path, params); added {
				plan.Upload = append(plan.Upload, created.ID)
			}
			continue
		}

		updated, changed, _, err := st.Update(ctx, existing.ID, entry.Patch{MediaPath: &path, Params: params})
		if err != nil {
			return Plan{}, services.Wrap(services.ErrValidation, string(PhaseReconcile), "update entry", id, err)
		}
		switch {
		case changed, needsRetry(updated):
			plan.Upload = append(plan.Upload, updated.ID)
		default:
			plan.InferenceOnly = append(plan.InferenceOnly, updated.ID)
		}
	}

	plan.Entries = st.Entries()
	return plan, nil
}

func needsRetry(e entry.Entry) bool {
	for _, status := range []entry.UploadStatus{e.VideoUploadStatus, e.ParamUploadStatus} {
		if status == entry.UploadNew || status == entry.UploadFailed {
			return true
		}
	}
	return false
}
