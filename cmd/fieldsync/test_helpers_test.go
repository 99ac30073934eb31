package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"fieldsync/internal/config"
	"fieldsync/internal/testsupport"
)

const testManifest = `
fields:
  - name: north
    plants:
      - name: p1
        leaves:
          - name: l1
            video: clips/clip_1.mp4
            params: {length: "4"}
          - name: l2
            video: clips/clip_2.mp4
          - name: l3
`

type cliTestEnv struct {
	cfg        *config.Config
	server     *testsupport.FakeServer
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	server := testsupport.NewFakeServer(t)
	cfg := testsupport.NewConfig(t, testsupport.WithServerURL(server.URL))
	base := testsupport.BaseDir(cfg)

	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	testsupport.WriteVideo(t, filepath.Join(base, "clips"), "clip_1.mp4")
	testsupport.WriteVideo(t, filepath.Join(base, "clips"), "clip_2.mp4")
	manifestPath := filepath.Join(base, "manifest.yaml")
	if err := os.WriteFile(manifestPath, []byte(testManifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	cfg.Paths.Manifest = manifestPath
	cfg.Metrics.Textfile = filepath.Join(base, "fieldsync.prom")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		server:     server,
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
