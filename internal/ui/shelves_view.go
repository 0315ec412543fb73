package ui

import (
	"fmt"
	"strings"

	"tome/internal/api"
)

// bookRow is one line of a shelf's contents.
type bookRow struct {
	ID     int64
	Title  string
	Author string
}

func bookRows(books []api.Book) []bookRow {
	rows := make([]bookRow, len(books))
	for i, b := range books {
		rows[i] = bookRow{ID: b.ID, Title: b.Title, Author: b.Author}
	}
	return rows
}

func (m Model) renderShelves() string {
	var b strings.Builder

	snap := m.shelvesSnap
	title := "Bookshelves"
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

	if len(snap.Shelves) == 0 {
		b.WriteString(m.styles.MutedText.Render("No shelves yet. Press n to create one."))
		return b.String()
	}

	for i, shelf := range snap.Shelves {
		line := fmt.Sprintf("%-30s %3d books", shelf.Name, shelf.BookCount)
		if shelf.Description != "" {
			line += "  " + m.styles.MutedText.Render(shelf.Description)
		}
		if i == m.selectedShelf {
			line = m.styles.Selected.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderShelfDetail() string {
	var b strings.Builder

	name := "Shelf"
	for _, s := range m.shelvesSnap.Shelves {
		if s.ID == m.detailShelfID {
			name = s.Name
			break
		}
	}
	b.WriteString(m.styles.Title.Render(name))
	b.WriteString("\n")

	if m.shelvesSnap.LastError != nil {
		b.WriteString(m.renderError(m.shelvesSnap.LastError))
		b.WriteString("\n")
	}

	if len(m.detailBooks) == 0 {
		b.WriteString(m.styles.MutedText.Render("This shelf is empty."))
		return b.String()
	}

	for i, row := range m.detailBooks {
		line := row.Title + "  " + m.styles.MutedText.Render(row.Author)
		if i == m.detailRow {
			line = m.styles.Selected.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderShelfForm() string {
	var b strings.Builder

	title := "New shelf"
	if m.shelfForm.editID != 0 {
		title = "Rename shelf"
	}
	b.WriteString(m.styles.Title.Render(title))
	b.WriteString("\n\n")
	for i := range m.shelfForm.inputs {
		b.WriteString(m.shelfForm.inputs[i].View())
		b.WriteString("\n")
	}
	if m.shelfForm.errMsg != "" {
		b.WriteString(m.styles.DangerText.Render(m.shelfForm.errMsg))
		b.WriteString("\n")
	}
	b.WriteString(m.styles.MutedText.Render("enter to save, esc to cancel"))
	return b.String()
}
