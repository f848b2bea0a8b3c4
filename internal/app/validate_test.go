package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCollectJSONFilesRecursive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.json"), `{"k":"v"}`)
	mustWriteFile(t, filepath.Join(root, "b.txt"), `x`)
	mustWriteFile(t, filepath.Join(root, ".hidden.json"), `{}`)
	mustWriteFile(t, filepath.Join(root, "nested", "c.json"), `{"k":"v2"}`)
	mustWriteFile(t, filepath.Join(root, ".git", "d.json"), `{}`)

	files, err := collectJSONFiles(root, true)
	if err != nil {
		t.Fatalf("collectJSONFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 json files, got %d (%v)", len(files), files)
	}
}

func TestCollectJSONFilesNonRecursive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.json"), `{"k":"v"}`)
	mustWriteFile(t, filepath.Join(root, "nested", "c.json"), `{"k":"v2"}`)

	files, err := collectJSONFiles(root, false)
	if err != nil {
		t.Fatalf("collectJSONFiles failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 json file, got %d (%v)", len(files), files)
	}
	if _, err := collectJSONFiles(filepath.Join(root, "a.json"), false); err == nil {
		t.Fatalf("expected not-a-directory error")
	}
}

func TestValidateFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	valid := filepath.Join(root, "valid.json")
	invalid := filepath.Join(root, "invalid.json")
	malformed := filepath.Join(root, "malformed.json")
	mustWriteFile(t, valid, `{"api_source":"newsapi","title":"Heat pumps","url":"https://example.com/hp"}`)
	mustWriteFile(t, invalid, `{"api_source":"newsapi"}`)
	mustWriteFile(t, malformed, `{"api_source":`)

	result := validateFiles([]string{valid, invalid, malformed})
	if result.Scanned != 3 || result.Valid != 1 || result.Invalid != 2 {
		t.Fatalf("unexpected validate result: %+v", result)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}
