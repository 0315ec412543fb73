package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeLog(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tome.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTail(t *testing.T) {
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, fmt.Sprintf(`{"level":"info","ts":1757000000.%d,"msg":"event %d"}`, i, i))
	}
	path := writeLog(t, lines)

	tests := []struct {
		name     string
		maxLines int
		first    string
		count    int
	}{
		{name: "partial", maxLines: 3, first: "event 8", count: 3},
		{name: "exact", maxLines: 10, first: "event 1", count: 10},
		{name: "more than exists", maxLines: 40, first: "event 1", count: 10},
		{name: "zero", maxLines: 0, count: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tail(path, tt.maxLines)
			if err != nil {
				t.Fatalf("Tail: %v", err)
			}
			if len(got) != tt.count {
				t.Fatalf("len = %d, want %d", len(got), tt.count)
			}
			if tt.count > 0 && got[0].Message != tt.first {
				t.Errorf("first message = %q, want %q", got[0].Message, tt.first)
			}
		})
	}
}

func TestTail_MissingFile(t *testing.T) {
	got, err := Tail(filepath.Join(t.TempDir(), "absent.log"), 10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if got != nil {
		t.Fatalf("entries = %v, want nil for missing file", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Entry
	}{
		{
			name:  "structured line",
			input: `{"level":"warn","ts":1757000000.5,"caller":"library/store.go:92","msg":"rollback"}`,
			want: Entry{
				Time:    time.Unix(1757000000, 500000000),
				Level:   "warn",
				Caller:  "library/store.go:92",
				Message: "rollback",
			},
		},
		{
			name:  "plain text falls through",
			input: "panic: runtime error",
			want:  Entry{Message: "panic: runtime error"},
		},
		{
			name:  "empty line",
			input: "",
			want:  Entry{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if got.Level != tt.want.Level || got.Caller != tt.want.Caller || got.Message != tt.want.Message {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
			if !got.Time.Equal(tt.want.Time) && tt.want.Time.Sub(got.Time).Abs() > time.Millisecond {
				t.Errorf("Time = %v, want %v", got.Time, tt.want.Time)
			}
		})
	}
}
