package ui

import (
	"fmt"
	"sort"
	"strings"

	"tome/internal/api"
)

// SortMode orders the library listing.
type SortMode int

const (
	SortByTitle SortMode = iota
	SortByAuthor
	SortByRating
	SortByUpdated
)

// StatusFilter narrows the library listing to one reading status.
type StatusFilter int

const (
	FilterAll StatusFilter = iota
	FilterWantToRead
	FilterReading
	FilterCompleted
)

func (f StatusFilter) status() string {
	switch f {
	case FilterWantToRead:
		return api.StatusWantToRead
	case FilterReading:
		return api.StatusReading
	case FilterCompleted:
		return api.StatusCompleted
	default:
		return ""
	}
}

func (f StatusFilter) label() string {
	switch f {
	case FilterWantToRead:
		return "Want to read"
	case FilterReading:
		return "Reading"
	case FilterCompleted:
		return "Completed"
	default:
		return "All"
	}
}

func (s SortMode) label() string {
	switch s {
	case SortByAuthor:
		return "Author"
	case SortByRating:
		return "Rating"
	case SortByUpdated:
		return "Updated"
	default:
		return "Title"
	}
}

// visibleEntries applies the filter then the sort, leaving the store's
// collection untouched.
func visibleEntries(entries []api.ReadingStatus, filter StatusFilter, mode SortMode) []api.ReadingStatus {
	want := filter.status()
	out := make([]api.ReadingStatus, 0, len(entries))
	for _, e := range entries {
		if want == "" || e.Status == want {
			out = append(out, e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		switch mode {
		case SortByAuthor:
			return strings.ToLower(out[i].Book.Author) < strings.ToLower(out[j].Book.Author)
		case SortByRating:
			return out[i].Rating > out[j].Rating
		case SortByUpdated:
			return out[i].ParsedUpdatedAt().After(out[j].ParsedUpdatedAt())
		default:
			return strings.ToLower(out[i].Book.Title) < strings.ToLower(out[j].Book.Title)
		}
	})
	return out
}

// formatRating renders a half-star rating, or a dash when unrated.
func formatRating(r float64) string {
	if r <= 0 {
		return "  -  "
	}
	return fmt.Sprintf("%4.1f★", r)
}

func statusLabel(status string) string {
	switch status {
	case api.StatusWantToRead:
		return "Want"
	case api.StatusReading:
		return "Reading"
	case api.StatusCompleted:
		return "Done"
	default:
		return status
	}
}

func (m Model) renderAddForm() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Add book"))
	b.WriteString("\n\n")
	b.WriteString(m.addForm.input.View())
	b.WriteString("\n")
	b.WriteString("status: " + statusLabel(m.addForm.status) + "  (space to cycle)")
	b.WriteString("\n")
	if m.addForm.errMsg != "" {
		b.WriteString(m.styles.DangerText.Render(m.addForm.errMsg))
		b.WriteString("\n")
	}
	b.WriteString(m.styles.MutedText.Render("enter to add, esc to cancel"))
	return b.String()
}

func (m Model) renderLibrary() string {
	var b strings.Builder

	snap := m.librarySnap
	entries := visibleEntries(snap.Entries, m.filterMode, m.sortMode)

	title := fmt.Sprintf("Library  %s  sort:%s", m.filterMode.label(), m.sortMode.label())
	if snap.Stale {
		title += "  (cached)"
	}
	if snap.Loading {
		title += "  ..."
	}
	b.WriteString(m.styles.Title.Render(title))
	b.WriteString("\n")

	if snap.LastError != nil {
		b.WriteString(m.renderError(snap.LastError))
		b.WriteString("\n")
	}

	if len(entries) == 0 {
		b.WriteString(m.styles.MutedText.Render("No books yet. Press a to add one."))
		return b.String()
	}

	for i, entry := range entries {
		line := fmt.Sprintf("%-7s %s  %s  %s",
			statusLabel(entry.Status),
			formatRating(entry.Rating),
			entry.Book.Title,
			m.styles.MutedText.Render(entry.Book.Author),
		)
		if i == m.selectedRow {
			line = m.styles.Selected.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if snap.Page.Total > 1 {
		b.WriteString(m.styles.MutedText.Render(
			fmt.Sprintf("page %d/%d  [ and ] to flip", snap.Page.Current, snap.Page.Total)))
	}
	return b.String()
}
