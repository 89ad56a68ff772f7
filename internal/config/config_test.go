package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "prism.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config fixture: %v", err)
	}
	return path
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  bogus_field: true
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: local
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HNSW.M != 16 || cfg.HNSW.EfConstruction != 200 || cfg.HNSW.EfSearch != 100 {
		t.Fatalf("expected default HNSW params, got %+v", cfg.HNSW)
	}
	if cfg.BM25.K1 != 1.2 || cfg.BM25.B != 0.75 {
		t.Fatalf("expected default BM25 params, got %+v", cfg.BM25)
	}
	if cfg.Hybrid.DefaultStrategy != "rrf" || cfg.Hybrid.RRFK != 60 {
		t.Fatalf("expected default hybrid params, got %+v", cfg.Hybrid)
	}
	if cfg.Limits.MaxBulkActions != 10000 {
		t.Fatalf("expected default max_bulk_actions 10000, got %d", cfg.Limits.MaxBulkActions)
	}
	if cfg.Cluster.DrainState != "normal" {
		t.Fatalf("expected default drain_state normal, got %q", cfg.Cluster.DrainState)
	}
}

func TestLoadValidatesStorageBackend(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: carrier-pigeon
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "/storage/backend") {
		t.Fatalf("expected storage.backend error, got %v", err)
	}
}

func TestLoadValidatesRemoteRequiresBucket(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: remote
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "storage.remote.bucket") {
		t.Fatalf("expected bucket error, got %v", err)
	}
}

func TestLoadValidatesDrainState(t *testing.T) {
	path := writeConfig(t, `
cluster:
  drain_state: confused
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "drain_state") {
		t.Fatalf("expected drain_state error, got %v", err)
	}
}

func TestLoadValidatesHybridStrategy(t *testing.T) {
	path := writeConfig(t, `
hybrid:
  default_strategy: magic
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "/hybrid/default_strategy") {
		t.Fatalf("expected hybrid.default_strategy error, got %v", err)
	}
}

func TestLoadRejectsDuplicateAPIKeys(t *testing.T) {
	path := writeConfig(t, `
auth:
  api_keys:
    - key: "shared-key"
      principal: "alice"
    - key: "shared-key"
      principal: "bob"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "must be unique") {
		t.Fatalf("expected uniqueness error, got %v", err)
	}
}

func TestLoadShortJWTSecretRejected(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: "too-short"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "jwt_secret") {
		t.Fatalf("expected jwt_secret error, got %v", err)
	}
}

func TestLoadEnvOverridesHost(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
`)
	t.Setenv("PRISM_HOST", "10.0.0.5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Host != "10.0.0.5" {
		t.Fatalf("expected env override to apply, got %q", cfg.Server.Host)
	}
}

func TestLoadResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.yaml")
	if err := os.WriteFile(basePath, []byte("hnsw:\n  m: 32\n"), 0o644); err != nil {
		t.Fatalf("failed to write include fixture: %v", err)
	}
	mainPath := filepath.Join(dir, "prism.yaml")
	if err := os.WriteFile(mainPath, []byte("$include: base.yaml\nbm25:\n  k1: 1.5\n"), 0o644); err != nil {
		t.Fatalf("failed to write main fixture: %v", err)
	}

	cfg, err := Load(mainPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HNSW.M != 32 {
		t.Fatalf("expected included hnsw.m=32, got %d", cfg.HNSW.M)
	}
	if cfg.BM25.K1 != 1.5 {
		t.Fatalf("expected bm25.k1=1.5, got %v", cfg.BM25.K1)
	}
}
