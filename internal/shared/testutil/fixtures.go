package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates dir/rel with the given raw bytes, creating parent
// directories, and returns the full path. Content is written as-is, so
// Latin-1 fixtures can be expressed with \x escapes.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create fixture directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", rel, err)
	}
	return path
}

// SurveillanceFixture writes the two-file scenario used across packages: a
// UTF-8 birth record file and a Latin-1 notification file with a different
// schema. It returns the input directory.
func SurveillanceFixture(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	WriteFile(t, dir, "a/sinasc.csv", "CODMUNRES,DT_NASC,PESO\n123,01012020,3000\n")
	WriteFile(t, dir, "b/sinan.csv", "CODMUNNOT,NOME\n355030.0,Jos\xe9\n")
	return dir
}
