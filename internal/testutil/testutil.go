// Package testutil provides helpers shared by the package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/incident.report/internal/monitoring"
)

// MuteLogs silences the package loggers for the duration of the test.
func MuteLogs(t testing.TB) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

// WriteFile writes content to name inside a fresh temp directory and returns
// the full path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
