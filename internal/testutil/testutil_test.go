package testutil

import (
	"fmt"
	"os"
	"testing"

	"github.com/banshee-data/incident.report/internal/monitoring"
)

func TestMuteLogsRestores(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()

	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Run("muted", func(t *testing.T) {
		MuteLogs(t)
		monitoring.Logf("dropped %d", 1)
	})
	monitoring.Logf("kept %d", 2)

	if len(lines) != 1 || lines[0] != "kept 2" {
		t.Errorf("lines = %q, want [\"kept 2\"]", lines)
	}
}

func TestWriteFile(t *testing.T) {
	path := WriteFile(t, "a.txt", "hello")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("content = %q, want %q", data, "hello")
	}
}
