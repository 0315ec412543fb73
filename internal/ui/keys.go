package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"tome/internal/api"
	"tome/internal/library"
	"tome/internal/session"
	"tome/internal/shelves"
)

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// Form views own the keyboard; global keys would swallow typed text.
	switch m.currentView {
	case ViewLogin:
		return m.handleLoginKey(msg)
	case ViewSignUp:
		return m.handleSignUpKey(msg)
	}
	if m.showShelfForm {
		return m.handleShelfFormKey(msg)
	}
	if m.showAddForm {
		return m.handleAddFormKey(msg)
	}

	switch msg.String() {
	case "?":
		m.showHelp = true
		return m, nil

	case "b":
		m.currentView = ViewLibrary
		return m, nil

	case "B":
		m.currentView = ViewShelves
		return m, fetchShelvesCmd(m.ctx, m.shelves)

	case "L":
		m.currentView = ViewLogs
		return m, tailLogCmd(m.logPath)

	case "P":
		m.currentView = ViewProfile
		return m, nil

	case "Q":
		m.session.Logout()
		m.currentView = ViewLogin
		m.loginForm = newLoginForm()
		return m, sessionSnapshotCmd(m.session)

	case "esc":
		switch m.currentView {
		case ViewShelfDetail:
			m.currentView = ViewShelves
		case ViewLogs, ViewShelves, ViewProfile:
			m.currentView = ViewLibrary
		}
		return m, nil
	}

	switch m.currentView {
	case ViewLibrary:
		return m.handleLibraryKey(msg)
	case ViewShelves:
		return m.handleShelvesKey(msg)
	case ViewShelfDetail:
		return m.handleShelfDetailKey(msg)
	}
	return m, nil
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab", "down", "up":
		m.loginForm.next()
		return m, nil

	case "enter":
		if !m.loginForm.validate() {
			return m, nil
		}
		username := m.loginForm.inputs[0].Value()
		password := m.loginForm.inputs[1].Value()
		return m, loginCmd(m.ctx, m.session, username, password)

	case "ctrl+s":
		m.currentView = ViewSignUp
		m.signUpForm = newSignUpForm()
		return m, nil
	}

	// "s" switches views only when the username field is empty; otherwise
	// it is just a letter being typed.
	if msg.String() == "s" && m.loginForm.inputs[0].Value() == "" && m.loginForm.focus == 0 {
		m.currentView = ViewSignUp
		m.signUpForm = newSignUpForm()
		return m, nil
	}

	var cmd tea.Cmd
	m.loginForm.inputs[m.loginForm.focus], cmd = m.loginForm.inputs[m.loginForm.focus].Update(msg)
	return m, cmd
}

func (m Model) handleSignUpKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.currentView = ViewLogin
		return m, nil

	case "tab", "shift+tab", "down", "up":
		m.signUpForm.next()
		return m, nil

	case "enter":
		if !m.signUpForm.validate() {
			return m, nil
		}
		return m, signUpCmd(m.ctx, m.session, m.signUpForm.input())
	}

	var cmd tea.Cmd
	m.signUpForm.inputs[m.signUpForm.focus], cmd = m.signUpForm.inputs[m.signUpForm.focus].Update(msg)
	return m, cmd
}

func (m Model) handleLibraryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := visibleEntries(m.librarySnap.Entries, m.filterMode, m.sortMode)

	switch msg.String() {
	case "j", "down":
		if m.selectedRow < len(entries)-1 {
			m.selectedRow++
		}
		return m, nil
	case "k", "up":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
		return m, nil
	case "g", "home":
		m.selectedRow = 0
		return m, nil
	case "G", "end":
		m.selectedRow = max(0, len(entries)-1)
		return m, nil

	case "a":
		m.addForm = newAddForm()
		m.showAddForm = true
		return m, nil

	case "f":
		m.filterMode = (m.filterMode + 1) % 4
		m.selectedRow = 0
		return m, nil
	case "o":
		m.sortMode = (m.sortMode + 1) % 4
		return m, nil

	case "[":
		if m.librarySnap.Page.HasPrevious {
			return m, fetchLibraryCmd(m.ctx, m.library, m.librarySnap.Page.Current-1)
		}
		return m, nil
	case "]":
		if m.librarySnap.Page.HasNext {
			return m, fetchLibraryCmd(m.ctx, m.library, m.librarySnap.Page.Current+1)
		}
		return m, nil
	}

	selected, ok := selectedEntry(entries, m.selectedRow)
	if !ok {
		return m, nil
	}

	switch msg.String() {
	case "1", "2", "3", "4", "5":
		rating := float64(msg.String()[0] - '0')
		return m, setRatingCmd(m.ctx, m.library, selected.ID, rating)

	case "+", "=":
		return m, setRatingCmd(m.ctx, m.library, selected.ID, stepRating(selected.Rating, 0.5))
	case "-":
		return m, setRatingCmd(m.ctx, m.library, selected.ID, stepRating(selected.Rating, -0.5))

	case "w":
		return m, setStatusCmd(m.ctx, m.library, selected.ID, api.StatusWantToRead)
	case "r":
		return m, setStatusCmd(m.ctx, m.library, selected.ID, api.StatusReading)
	case "c":
		return m, setStatusCmd(m.ctx, m.library, selected.ID, api.StatusCompleted)

	case "d":
		return m, removeEntryCmd(m.ctx, m.library, selected.ID)
	}
	return m, nil
}

func (m Model) handleShelvesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	shelvesList := m.shelvesSnap.Shelves

	switch msg.String() {
	case "j", "down":
		if m.selectedShelf < len(shelvesList)-1 {
			m.selectedShelf++
		}
		return m, nil
	case "k", "up":
		if m.selectedShelf > 0 {
			m.selectedShelf--
		}
		return m, nil

	case "n":
		m.shelfForm = newShelfForm()
		m.showShelfForm = true
		return m, nil

	case "e":
		if m.selectedShelf < len(shelvesList) {
			shelf := shelvesList[m.selectedShelf]
			m.shelfForm = newShelfForm()
			m.shelfForm.editID = shelf.ID
			m.shelfForm.isPublic = shelf.IsPublic
			m.shelfForm.inputs[0].SetValue(shelf.Name)
			m.shelfForm.inputs[1].SetValue(shelf.Description)
			m.showShelfForm = true
		}
		return m, nil

	case "d":
		if m.selectedShelf < len(shelvesList) {
			return m, removeShelfCmd(m.ctx, m.shelves, shelvesList[m.selectedShelf].ID)
		}
		return m, nil

	case "enter":
		if m.selectedShelf < len(shelvesList) {
			m.detailShelfID = shelvesList[m.selectedShelf].ID
			m.detailBooks = nil
			m.detailRow = 0
			m.currentView = ViewShelfDetail
			return m, fetchShelfBooksCmd(m.ctx, m.shelves, m.detailShelfID)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleShelfDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.detailRow < len(m.detailBooks)-1 {
			m.detailRow++
		}
		return m, nil
	case "k", "up":
		if m.detailRow > 0 {
			m.detailRow--
		}
		return m, nil

	case "d":
		if m.detailRow < len(m.detailBooks) {
			bookID := m.detailBooks[m.detailRow].ID
			shelfID := m.detailShelfID
			return m, tea.Sequence(
				removeShelfBookCmd(m.ctx, m.shelves, shelfID, bookID),
				fetchShelfBooksCmd(m.ctx, m.shelves, shelfID),
			)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleAddFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.showAddForm = false
		return m, nil

	case " ":
		m.addForm.cycleStatus()
		return m, nil

	case "enter":
		id, ok := m.addForm.validate()
		if !ok {
			return m, nil
		}
		status := m.addForm.status
		m.showAddForm = false
		return m, addEntryCmd(m.ctx, m.library, id, status)
	}

	var cmd tea.Cmd
	m.addForm.input, cmd = m.addForm.input.Update(msg)
	return m, cmd
}

func (m Model) handleShelfFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.showShelfForm = false
		return m, nil

	case "tab", "shift+tab", "down", "up":
		m.shelfForm.next()
		return m, nil

	case "enter":
		if !m.shelfForm.validate() {
			return m, nil
		}
		input := m.shelfForm.input()
		coverPath := m.shelfForm.coverPath()
		editID := m.shelfForm.editID
		m.showShelfForm = false
		if editID != 0 {
			return m, updateShelfCmd(m.ctx, m.shelves, editID, input, coverPath)
		}
		return m, createShelfCmd(m.ctx, m.shelves, input, coverPath)
	}

	var cmd tea.Cmd
	m.shelfForm.inputs[m.shelfForm.focus], cmd = m.shelfForm.inputs[m.shelfForm.focus].Update(msg)
	return m, cmd
}

// selectedEntry guards against the cursor pointing past a collection that
// shrank under an optimistic removal.
func selectedEntry(entries []api.ReadingStatus, row int) (api.ReadingStatus, bool) {
	if row < 0 || row >= len(entries) {
		return api.ReadingStatus{}, false
	}
	return entries[row], true
}

// stepRating nudges a rating by a half star within the valid range.
func stepRating(current, delta float64) float64 {
	next := current + delta
	if next < api.MinRating {
		return api.MinRating
	}
	if next > 5 {
		return 5
	}
	return next
}

// Mutation commands. Each runs the store operation off the UI goroutine
// and reports back with opDoneMsg; errors surface via store snapshots.

func loginCmd(ctx context.Context, store *session.Store, username, password string) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{err: store.Login(ctx, username, password)}
	}
}

func signUpCmd(ctx context.Context, store *session.Store, input api.RegisterInput) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{err: store.SignUp(ctx, input)}
	}
}

func setRatingCmd(ctx context.Context, store *library.Store, id int64, rating float64) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{err: store.SetRating(ctx, id, rating)}
	}
}

func setStatusCmd(ctx context.Context, store *library.Store, id int64, status string) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{err: store.SetStatus(ctx, id, status)}
	}
}

func addEntryCmd(ctx context.Context, store *library.Store, bookID int64, status string) tea.Cmd {
	return func() tea.Msg {
		_, err := store.Add(ctx, bookID, status)
		return opDoneMsg{err: err}
	}
}

func removeEntryCmd(ctx context.Context, store *library.Store, id int64) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{err: store.Remove(ctx, id)}
	}
}

func createShelfCmd(ctx context.Context, store *shelves.Store, input api.ShelfInput, coverPath string) tea.Cmd {
	return func() tea.Msg {
		cover, done, err := openCover(coverPath)
		if err != nil {
			return opDoneMsg{err: err}
		}
		defer done()
		_, err = store.Create(ctx, input, cover)
		return opDoneMsg{err: err}
	}
}

func updateShelfCmd(ctx context.Context, store *shelves.Store, id int64, input api.ShelfInput, coverPath string) tea.Cmd {
	return func() tea.Msg {
		cover, done, err := openCover(coverPath)
		if err != nil {
			return opDoneMsg{err: err}
		}
		defer done()
		return opDoneMsg{err: store.Update(ctx, id, input, cover)}
	}
}

// openCover turns a user-supplied file path into a multipart upload. An
// empty path means no cover; done must be called after the request.
func openCover(path string) (*api.Upload, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open cover image: %w", err)
	}
	return &api.Upload{
		Filename: filepath.Base(path),
		Reader:   file,
	}, func() { _ = file.Close() }, nil
}

func removeShelfCmd(ctx context.Context, store *shelves.Store, id int64) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{err: store.Remove(ctx, id)}
	}
}

func removeShelfBookCmd(ctx context.Context, store *shelves.Store, shelfID, bookID int64) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{err: store.RemoveBook(ctx, shelfID, bookID)}
	}
}

func fetchShelfBooksCmd(ctx context.Context, store *shelves.Store, shelfID int64) tea.Cmd {
	return func() tea.Msg {
		books, err := store.Books(ctx, shelfID)
		if err != nil {
			return shelfBooksMsg{shelfID: shelfID}
		}
		return shelfBooksMsg{shelfID: shelfID, books: bookRows(books)}
	}
}
