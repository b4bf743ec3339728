package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCatalogFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write catalog file: %v", err)
	}
	return path
}

func TestCatalog_LoadOverrides(t *testing.T) {
	path := writeCatalogFile(t, `
models:
  - id: claude-internal-ft
    context_window: 180000
    input_per_million: 2.0
    output_per_million: 10.0
    aliases: [ft]
  - id: claude-sonnet-4-5-20250929
    context_window: 1000000
    input_per_million: 3.0
    output_per_million: 15.0
`)

	c := NewCatalog()
	if err := c.LoadOverrides(path); err != nil {
		t.Fatalf("LoadOverrides() error = %v", err)
	}

	info, ok := c.Lookup("ft")
	if !ok {
		t.Fatal("alias from the override file not registered")
	}
	if info.ID != "claude-internal-ft" || info.ContextWindow != 180000 {
		t.Errorf("override entry = %+v", info)
	}

	builtin, _ := c.Lookup("sonnet")
	if builtin.ContextWindow != 1000000 {
		t.Errorf("builtin override: ContextWindow = %d, want 1000000", builtin.ContextWindow)
	}
}

func TestCatalog_LoadOverridesMissingFileIsFine(t *testing.T) {
	c := NewCatalog()
	if err := c.LoadOverrides(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Errorf("LoadOverrides() on a missing file = %v, want nil", err)
	}
}

func TestCatalog_LoadOverridesRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed yaml", "models: [", "parse model catalog"},
		{"entry without id", "models:\n  - context_window: 1000\n", "no id"},
		{"entry without window", "models:\n  - id: x\n", "context window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCatalogFile(t, tt.content)
			err := NewCatalog().LoadOverrides(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadOverrides() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
