package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtensionMechanism(t *testing.T) {
	tempDir := t.TempDir()
	dataDir := filepath.Join(tempDir, "data")
	out := filepath.Join(tempDir, "env.txt")

	// pf-hello dumps its FOLIO_* environment and exits with its first argument.
	script := "#!/bin/sh\nenv | grep '^FOLIO_' > \"$2\"\nexit \"$1\"\n"
	if err := os.WriteFile(filepath.Join(tempDir, "pf-hello"), []byte(script), 0755); err != nil {
		t.Fatalf("Failed to write pf-hello: %v", err)
	}
	t.Setenv("PATH", tempDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	t.Setenv("FOLIO_DIR", dataDir)
	t.Setenv("FOLIO_CURRENCY", "XYZ")

	found, code := RunExtension("hello", []string{"3", out})
	if !found {
		t.Fatal("RunExtension() did not find pf-hello")
	}
	if code != 3 {
		t.Errorf("RunExtension() exit code = %d, want 3", code)
	}

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("pf-hello did not run: %v", err)
	}
	for _, want := range []string{
		"FOLIO_DIR=" + dataDir,
		"FOLIO_LOG_FILE=" + filepath.Join(dataDir, "events.jsonl"),
		"FOLIO_CURRENCY=XYZ",
	} {
		if !strings.Contains(string(b), want) {
			t.Errorf("extension environment does not contain %q:\n%s", want, b)
		}
	}
}

func TestExtensionMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	if found, _ := RunExtension("nothing-here", nil); found {
		t.Error("RunExtension() found a missing extension")
	}
}
