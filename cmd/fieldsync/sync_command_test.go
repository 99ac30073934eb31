package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"fieldsync/internal/entry"
)

func TestSyncUploadsThenPolls(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"sync"}, env.configPath)
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	requireContains(t, out, "Sync finished: 2 entries, 4 uploaded")
	requireContains(t, out, "[upload] clip_1.mp4: video uploaded")

	if n := env.server.Count("/send/video"); n != 2 {
		t.Fatalf("expected 2 video uploads, got %d", n)
	}
	for _, req := range env.server.Requests() {
		if req.ID == "clip_1.mp4" && req.Params["length"] != "4" {
			t.Fatalf("expected manifest params forwarded, got %v", req.Params)
		}
	}
	if _, err := os.Stat(env.cfg.Metrics.Textfile); err != nil {
		t.Fatalf("expected metrics textfile: %v", err)
	}

	env.server.SetInference("clip_1", `{"status":"completed","results":{"leaves":1}}`)
	out, _, err = runCLI(t, []string{"sync", "--quiet"}, env.configPath)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	requireContains(t, out, "1 completed")

	out, _, err = runCLI(t, []string{"entries", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("entries list: %v", err)
	}
	var entries []entry.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode entries: %v\n%s", err, out)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "clip_1.mp4" || entries[0].InferenceStatus != entry.InferenceCompleted {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].InferenceStatus != entry.InferenceRunning {
		t.Fatalf("expected clip_2 still running, got %s", entries[1].InferenceStatus)
	}
}

func TestSyncManifestFlagAndMissingManifest(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"sync", "--manifest", filepath.Join(env.baseDir, "nope.yaml")}, env.configPath); err == nil {
		t.Fatal("expected error for missing manifest")
	}
	if env.server.Count("/") != 0 {
		t.Fatal("expected no server traffic when the manifest cannot load")
	}
}

func TestSyncServerFlagOverridesConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"sync", "--server", "ftp://nowhere"}, env.configPath); err == nil {
		t.Fatal("expected invalid --server to fail")
	}
}
