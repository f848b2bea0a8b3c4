package cli

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvLoaderLoadsRequestedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.env")
	if err := os.WriteFile(path, []byte("SI_CLI_TEST_VALUE=from-file\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv(EnvFileOverrideVar, "")
	t.Setenv("SI_CLI_TEST_VALUE", "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, ".env", "")
	if err := fs.Parse([]string{"--env", path}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	loaded, err := loader.Load()
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if loaded != path {
		t.Fatalf("unexpected loaded path: got %q want %q", loaded, path)
	}
	if got := os.Getenv("SI_CLI_TEST_VALUE"); got != "from-file" {
		t.Fatalf("unexpected env value: %q", got)
	}
}

func TestEnvLoaderCandidates(t *testing.T) {
	t.Parallel()

	value := "/etc/sustain/prod.env"
	loader := &EnvLoader{value: &value, defaultPath: ".env"}
	got := loader.candidates()
	want := []string{"/etc/sustain/prod.env", "prod.env", ".env"}
	if len(got) != len(want) {
		t.Fatalf("unexpected candidates: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected candidate %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestEnvLoaderMissingFileReturnsError(t *testing.T) {
	t.Setenv(EnvFileOverrideVar, "")

	value := filepath.Join(t.TempDir(), "missing.env")
	loader := &EnvLoader{value: &value, defaultPath: filepath.Join(t.TempDir(), "also-missing.env")}
	if _, err := loader.Load(); err == nil {
		t.Fatalf("expected error for missing env files")
	}
}
