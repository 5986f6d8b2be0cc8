package integration

import (
	"os"
	"path/filepath"
	"testing"
)

// writeDefinition writes a definition file into a temp dir and returns its path.
func writeDefinition(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write definition: %v", err)
	}
	return path
}
