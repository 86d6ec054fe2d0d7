package common

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTypos(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "typos.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write typo file: %v", err)
	}
	return path
}

func TestLoadTypoDictionaryMergesOverDefaults(t *testing.T) {
	path := writeTypos(t, "typos:\n  RELAINCE: reliance\n  portfolo: holdings\n")

	typos, err := LoadTypoDictionary(path)
	if err != nil {
		t.Fatalf("LoadTypoDictionary failed: %v", err)
	}

	if typos["relaince"] != "reliance" {
		t.Errorf("Expected lower-cased file entry, got %q", typos["relaince"])
	}
	if typos["portfolo"] != "holdings" {
		t.Errorf("Expected file entry to override default, got %q", typos["portfolo"])
	}
	if typos["perfomance"] != "performance" {
		t.Errorf("Expected built-in entries to survive, got %q", typos["perfomance"])
	}
}

func TestLoadTypoDictionaryRejectsEmptyCorrection(t *testing.T) {
	path := writeTypos(t, "typos:\n  tcs: \"\"\n")

	_, err := LoadTypoDictionary(path)
	if err == nil || !strings.Contains(err.Error(), "no correction") {
		t.Fatalf("Expected empty correction error, got %v", err)
	}
}

func TestLoadTypoDictionaryMissingFile(t *testing.T) {
	if _, err := LoadTypoDictionary(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoadTypoDictionaryInvalidYAML(t *testing.T) {
	path := writeTypos(t, "typos: [not, a, map]\n")

	if _, err := LoadTypoDictionary(path); err == nil {
		t.Fatal("Expected parse error")
	}
}
