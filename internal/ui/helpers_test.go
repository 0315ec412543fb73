package ui

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"tome/internal/api"
)

func entry(id int64, title, author, status string, rating float64, updated string) api.ReadingStatus {
	return api.ReadingStatus{
		ID:        id,
		Status:    status,
		Rating:    rating,
		UpdatedAt: updated,
		Book:      api.Book{ID: id, Title: title, Author: author},
	}
}

func TestVisibleEntries_Filter(t *testing.T) {
	entries := []api.ReadingStatus{
		entry(1, "Dune", "Herbert", api.StatusCompleted, 5, ""),
		entry(2, "Hyperion", "Simmons", api.StatusReading, 0, ""),
		entry(3, "Solaris", "Lem", api.StatusWantToRead, 0, ""),
	}

	tests := []struct {
		name   string
		filter StatusFilter
		want   []int64
	}{
		{name: "all", filter: FilterAll, want: []int64{1, 2, 3}},
		{name: "completed", filter: FilterCompleted, want: []int64{1}},
		{name: "reading", filter: FilterReading, want: []int64{2}},
		{name: "want to read", filter: FilterWantToRead, want: []int64{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := visibleEntries(entries, tt.filter, SortByTitle)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("got[%d].ID = %d, want %d", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestVisibleEntries_Sort(t *testing.T) {
	entries := []api.ReadingStatus{
		entry(1, "solaris", "Lem", api.StatusCompleted, 3, "2025-01-01T10:00:00Z"),
		entry(2, "Dune", "herbert", api.StatusCompleted, 5, "2025-03-01T10:00:00Z"),
		entry(3, "Hyperion", "Simmons", api.StatusCompleted, 4, "2025-02-01T10:00:00Z"),
	}

	tests := []struct {
		name string
		mode SortMode
		want []int64
	}{
		{name: "title is case insensitive", mode: SortByTitle, want: []int64{2, 3, 1}},
		{name: "author", mode: SortByAuthor, want: []int64{2, 1, 3}},
		{name: "rating descends", mode: SortByRating, want: []int64{2, 3, 1}},
		{name: "updated newest first", mode: SortByUpdated, want: []int64{2, 3, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := visibleEntries(entries, FilterAll, tt.mode)
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("got[%d].ID = %d, want %d", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestVisibleEntries_DoesNotMutateInput(t *testing.T) {
	entries := []api.ReadingStatus{
		entry(2, "B", "", api.StatusReading, 0, ""),
		entry(1, "A", "", api.StatusReading, 0, ""),
	}
	visibleEntries(entries, FilterAll, SortByTitle)
	if entries[0].ID != 2 {
		t.Fatal("input slice was reordered")
	}
}

func TestStepRating(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		delta   float64
		want    float64
	}{
		{name: "up half", current: 3, delta: 0.5, want: 3.5},
		{name: "down half", current: 3, delta: -0.5, want: 2.5},
		{name: "floor at minimum", current: 0.5, delta: -0.5, want: api.MinRating},
		{name: "unrated steps to minimum", current: 0, delta: -0.5, want: api.MinRating},
		{name: "ceiling at five", current: 5, delta: 0.5, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stepRating(tt.current, tt.delta); got != tt.want {
				t.Errorf("stepRating(%v, %v) = %v, want %v", tt.current, tt.delta, got, tt.want)
			}
		})
	}
}

func TestValidateSignUp(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		confirm  string
		wantErr  bool
	}{
		{name: "valid", username: "maria", email: "m@example.com", password: "pw", confirm: "pw"},
		{name: "missing username", email: "m@example.com", password: "pw", confirm: "pw", wantErr: true},
		{name: "short username", username: "ab", email: "m@example.com", password: "pw", confirm: "pw", wantErr: true},
		{name: "missing email", username: "maria", password: "pw", confirm: "pw", wantErr: true},
		{name: "bad email", username: "maria", email: "nope", password: "pw", confirm: "pw", wantErr: true},
		{name: "password mismatch", username: "maria", email: "m@example.com", password: "pw", confirm: "other", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := validateSignUp(tt.username, tt.email, tt.password, tt.confirm)
			if (got != "") != tt.wantErr {
				t.Errorf("validateSignUp() = %q, wantErr %v", got, tt.wantErr)
			}
		})
	}
}

func TestFormatRating(t *testing.T) {
	if got := formatRating(0); got != "  -  " {
		t.Errorf("formatRating(0) = %q", got)
	}
	if got := formatRating(4.5); got != " 4.5★" {
		t.Errorf("formatRating(4.5) = %q", got)
	}
}

func TestOpenCover(t *testing.T) {
	t.Run("empty path means no upload", func(t *testing.T) {
		cover, done, err := openCover("")
		if err != nil {
			t.Fatalf("openCover: %v", err)
		}
		defer done()
		if cover != nil {
			t.Fatalf("cover = %+v, want nil", cover)
		}
	})

	t.Run("existing file becomes an upload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cover.png")
		if err := os.WriteFile(path, []byte("png-bytes"), 0o644); err != nil {
			t.Fatalf("write cover: %v", err)
		}

		cover, done, err := openCover(path)
		if err != nil {
			t.Fatalf("openCover: %v", err)
		}
		defer done()
		if cover.Filename != "cover.png" {
			t.Errorf("Filename = %q, want cover.png", cover.Filename)
		}
		data, err := io.ReadAll(cover.Reader)
		if err != nil {
			t.Fatalf("read cover: %v", err)
		}
		if string(data) != "png-bytes" {
			t.Errorf("content = %q", data)
		}
	})

	t.Run("missing file errors", func(t *testing.T) {
		if _, _, err := openCover(filepath.Join(t.TempDir(), "absent.png")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}

func TestStatusLabel(t *testing.T) {
	if got := statusLabel(api.StatusWantToRead); got != "Want" {
		t.Errorf("statusLabel(W) = %q", got)
	}
	if got := statusLabel("X"); got != "X" {
		t.Errorf("unknown status should pass through, got %q", got)
	}
}
