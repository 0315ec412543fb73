// Package ui is the Bubble Tea front end for tome.
package ui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tome/internal/library"
	"tome/internal/logtail"
	"tome/internal/session"
	"tome/internal/shelves"
)

// View represents the current active view.
type View int

const (
	ViewLogin View = iota
	ViewSignUp
	ViewLibrary
	ViewShelves
	ViewShelfDetail
	ViewProfile
	ViewLogs
)

const logTailLines = 400

// Options configures the UI.
type Options struct {
	Context  context.Context
	Session  *session.Store
	Library  *library.Store
	Shelves  *shelves.Store
	LogPath  string
	PollTick time.Duration
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx      context.Context
	session  *session.Store
	library  *library.Store
	shelves  *shelves.Store
	logPath  string
	pollTick time.Duration

	theme  Theme
	styles Styles

	currentView View
	width       int
	height      int
	ready       bool

	sessionSnap session.Session
	librarySnap library.Snapshot
	shelvesSnap shelves.Snapshot
	lastUpdated time.Time

	// Library state
	selectedRow int
	sortMode    SortMode
	filterMode  StatusFilter

	// Shelves state
	selectedShelf int
	detailShelfID int64
	detailBooks   []bookRow
	detailRow     int

	// Forms
	loginForm     loginForm
	signUpForm    signUpForm
	shelfForm     shelfForm
	showShelfForm bool
	addForm       addForm
	showAddForm   bool

	// Logs state
	logEntries []logtail.Entry

	showHelp bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick == 0 {
		pollTick = time.Second
	}

	theme := DefaultTheme()
	return Model{
		ctx:         ctx,
		session:     opts.Session,
		library:     opts.Library,
		shelves:     opts.Shelves,
		logPath:     opts.LogPath,
		pollTick:    pollTick,
		theme:       theme,
		styles:      theme.Styles(),
		currentView: ViewLogin,
		loginForm:   newLoginForm(),
		signUpForm:  newSignUpForm(),
		shelfForm:   newShelfForm(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tickCmd(m.pollTick),
	}
	if m.session != nil {
		cmds = append(cmds, checkAuthCmd(m.ctx, m.session))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case tickMsg:
		return m.handleTick()

	case sessionSnapshotMsg:
		return m.handleSessionSnapshot(session.Session(msg))

	case librarySnapshotMsg:
		m.librarySnap = library.Snapshot(msg)
		m.lastUpdated = time.Now()
		m.clampSelection()
		return m, nil

	case shelvesSnapshotMsg:
		m.shelvesSnap = shelves.Snapshot(msg)
		m.lastUpdated = time.Now()
		m.clampSelection()
		return m, nil

	case shelfBooksMsg:
		if msg.shelfID == m.detailShelfID {
			m.detailBooks = msg.books
			if m.detailRow >= len(m.detailBooks) {
				m.detailRow = 0
			}
		}
		return m, nil

	case logEntriesMsg:
		m.logEntries = msg
		return m, nil

	case opDoneMsg:
		// Stores surface their own errors through snapshots; nothing to
		// do here beyond refreshing.
		return m, m.refreshData()
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.renderLogin()
	case ViewSignUp:
		return m.renderSignUp()
	case ViewLibrary:
		if m.showAddForm {
			return m.renderAddForm()
		}
		return m.renderLibrary()
	case ViewShelves:
		if m.showShelfForm {
			return m.renderShelfForm()
		}
		return m.renderShelves()
	case ViewShelfDetail:
		return m.renderShelfDetail()
	case ViewProfile:
		return m.renderProfile()
	case ViewLogs:
		return m.renderLogs()
	default:
		return ""
	}
}

// handleSessionSnapshot routes the user to the right view as auth state
// settles: startup restore lands on the library, a lost session falls
// back to the login form.
func (m Model) handleSessionSnapshot(snap session.Session) (tea.Model, tea.Cmd) {
	wasAuthed := m.sessionSnap.IsAuthenticated
	m.sessionSnap = snap

	if snap.IsAuthenticated && !wasAuthed {
		m.currentView = ViewLibrary
		m.loginForm = newLoginForm()
		m.signUpForm = newSignUpForm()
		return m, tea.Batch(
			fetchLibraryCmd(m.ctx, m.library, 1),
			fetchShelvesCmd(m.ctx, m.shelves),
		)
	}
	if !snap.IsAuthenticated && !snap.IsInitializing && wasAuthed {
		m.currentView = ViewLogin
	}
	return m, nil
}

// handleTick polls store snapshots so optimistic mutations and background
// refreshes surface without explicit wiring per operation.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.session != nil {
		cmds = append(cmds, sessionSnapshotCmd(m.session))
	}
	if m.sessionSnap.IsAuthenticated {
		if m.library != nil {
			cmds = append(cmds, librarySnapshotCmd(m.library))
		}
		if m.shelves != nil {
			cmds = append(cmds, shelvesSnapshotCmd(m.shelves))
		}
	}
	if m.currentView == ViewLogs && m.logPath != "" {
		cmds = append(cmds, tailLogCmd(m.logPath))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) refreshData() tea.Cmd {
	var cmds []tea.Cmd
	if m.session != nil {
		cmds = append(cmds, sessionSnapshotCmd(m.session))
	}
	if m.library != nil {
		cmds = append(cmds, librarySnapshotCmd(m.library))
	}
	if m.shelves != nil {
		cmds = append(cmds, shelvesSnapshotCmd(m.shelves))
	}
	return tea.Batch(cmds...)
}

func (m *Model) clampSelection() {
	if n := len(m.librarySnap.Entries); m.selectedRow >= n {
		m.selectedRow = max(0, n-1)
	}
	if n := len(m.shelvesSnap.Shelves); m.selectedShelf >= n {
		m.selectedShelf = max(0, n-1)
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Messages

type tickMsg time.Time

type sessionSnapshotMsg session.Session

type librarySnapshotMsg library.Snapshot

type shelvesSnapshotMsg shelves.Snapshot

type shelfBooksMsg struct {
	shelfID int64
	books   []bookRow
}

type logEntriesMsg []logtail.Entry

type opDoneMsg struct{ err error }

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func sessionSnapshotCmd(store *session.Store) tea.Cmd {
	return func() tea.Msg {
		return sessionSnapshotMsg(store.Snapshot())
	}
}

func librarySnapshotCmd(store *library.Store) tea.Cmd {
	return func() tea.Msg {
		return librarySnapshotMsg(store.Snapshot())
	}
}

func shelvesSnapshotCmd(store *shelves.Store) tea.Cmd {
	return func() tea.Msg {
		return shelvesSnapshotMsg(store.Snapshot())
	}
}

func checkAuthCmd(ctx context.Context, store *session.Store) tea.Cmd {
	return func() tea.Msg {
		store.CheckAuth(ctx)
		return sessionSnapshotMsg(store.Snapshot())
	}
}

func fetchLibraryCmd(ctx context.Context, store *library.Store, page int) tea.Cmd {
	return func() tea.Msg {
		_ = store.FetchAll(ctx, page)
		return librarySnapshotMsg(store.Snapshot())
	}
}

func fetchShelvesCmd(ctx context.Context, store *shelves.Store) tea.Cmd {
	return func() tea.Msg {
		_ = store.FetchAll(ctx)
		return shelvesSnapshotMsg(store.Snapshot())
	}
}

func tailLogCmd(path string) tea.Cmd {
	return func() tea.Msg {
		entries, err := logtail.Tail(path, logTailLines)
		if err != nil {
			return logEntriesMsg(nil)
		}
		return logEntriesMsg(entries)
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
