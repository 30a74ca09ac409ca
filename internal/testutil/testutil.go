// Package testutil provides testing utilities and helpers for MemoryHub.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MycelicMemory/memoryhub/internal/memoryhub"
	"github.com/MycelicMemory/memoryhub/pkg/config"
)

// NewStore opens a fresh Hub rooted at a temp directory, closing it when
// the test completes.
func NewStore(t *testing.T) *memoryhub.Hub {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "store")

	hub, err := memoryhub.Open(cfg)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		_ = hub.Close()
	})
	return hub
}

// TempDir creates a temporary directory for testing, cleaned up
// automatically after the test completes.
func TempDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// TempFile creates a temporary file for testing, cleaned up
// automatically after the test completes.
func TempFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return path
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
}

// AssertEqual fails the test if got != want.
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Errorf("Got %v, want %v", got, want)
	}
}

// AssertStringContains fails the test if str doesn't contain substr.
func AssertStringContains(t *testing.T, str, substr string) {
	t.Helper()
	if !strings.Contains(str, substr) {
		t.Errorf("String %q does not contain %q", str, substr)
	}
}
