package event

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/incident.report/internal/monitoring"
)

// maxLineBytes bounds a single JSON line.
const maxLineBytes = 4 * 1024 * 1024

// ReadJSONLines parses one JSON object per line. Blank lines are ignored and
// malformed lines are logged and skipped; only a read error from r is returned.
func ReadJSONLines(r io.Reader) ([]Event, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var events []Event
	skipped := 0
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		raw, err := decodeObject(b)
		if err != nil {
			monitoring.Logf("event: skipping line %d: %v", line, err)
			skipped++
			continue
		}
		events = append(events, Parse(raw))
	}
	if err := scanner.Err(); err != nil {
		return events, skipped, fmt.Errorf("read events: %w", err)
	}
	return events, skipped, nil
}

// ReadJSONArray parses a JSON array of objects.
func ReadJSONArray(r io.Reader) ([]Event, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raws []map[string]any
	if err := dec.Decode(&raws); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return ParseAll(raws), nil
}

func decodeObject(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("not a JSON object")
	}
	return raw, nil
}
