// Package logtail reads the tail of tome's own log file for the
// diagnostics view. The logger writes one JSON object per line; this
// package extracts the last N lines with a ring buffer and decodes each
// into an Entry the view can style.
package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Entry is one decoded log line. Lines that are not valid JSON (panics,
// stray writes) surface verbatim in Message with an empty Level.
type Entry struct {
	Time    time.Time
	Level   string
	Caller  string
	Message string
}

type rawEntry struct {
	Level  string  `json:"level"`
	TS     float64 `json:"ts"`
	Caller string  `json:"caller"`
	Msg    string  `json:"msg"`
}

// Tail returns at most maxLines decoded entries from the end of the log
// file at path. A missing file yields no entries and no error.
func Tail(path string, maxLines int) ([]Entry, error) {
	lines, err := tailLines(path, maxLines)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, Parse(line))
	}
	return entries, nil
}

// Parse decodes a single log line.
func Parse(line string) Entry {
	var raw rawEntry
	if err := json.Unmarshal([]byte(line), &raw); err != nil || raw.Msg == "" {
		return Entry{Message: line}
	}
	entry := Entry{
		Level:   raw.Level,
		Caller:  raw.Caller,
		Message: raw.Msg,
	}
	if raw.TS > 0 {
		sec := int64(raw.TS)
		entry.Time = time.Unix(sec, int64((raw.TS-float64(sec))*1e9))
	}
	return entry
}

func tailLines(path string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	ring := make([]string, maxLines)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}
