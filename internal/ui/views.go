package ui

import (
	"errors"
	"fmt"
	"strings"

	"tome/internal/api"
	"tome/internal/logtail"
)

func (m Model) renderHeader() string {
	logo := m.styles.Title.Render("tome")

	var status string
	switch {
	case m.sessionSnap.IsInitializing:
		status = m.styles.MutedText.Render("checking session...")
	case m.sessionSnap.IsAuthenticated && m.sessionSnap.User != nil:
		status = m.styles.SuccessText.Render(m.sessionSnap.User.Username)
	case m.sessionSnap.IsAuthenticated:
		status = m.styles.SuccessText.Render("signed in")
	default:
		status = m.styles.MutedText.Render("signed out")
	}
	return logo + "  " + status
}

func (m Model) renderFooter() string {
	var hints string
	switch m.currentView {
	case ViewLogin:
		hints = "tab: next field  enter: sign in  s: sign up  ctrl+c: quit"
	case ViewSignUp:
		hints = "tab: next field  enter: create account  esc: back"
	case ViewLibrary:
		hints = "j/k: move  a: add  1-5: rate  +/-: half star  w/r/c: status  d: remove  f: filter  o: sort  [ ]: page  B: shelves  ?: help"
	case ViewShelves:
		hints = "j/k: move  enter: open  n: new  e: rename  d: delete  b: library  L: logs"
	case ViewShelfDetail:
		hints = "j/k: move  d: remove book  esc: back"
	case ViewProfile, ViewLogs:
		hints = "esc: back"
	}
	return m.styles.Footer.Render(hints)
}

// renderError maps the error taxonomy to a single display line.
func (m Model) renderError(err error) string {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return m.styles.DangerText.Render(err.Error())
	}
	switch apiErr.Kind {
	case api.Unauthenticated:
		return m.styles.WarningText.Render("Session expired. Sign in again.")
	case api.NotFound:
		return m.styles.WarningText.Render("Not found: " + apiErr.Message)
	case api.Validation:
		if summary := apiErr.FieldSummary(); len(summary) > 0 {
			return m.styles.DangerText.Render(strings.Join(summary, "\n"))
		}
		return m.styles.DangerText.Render(apiErr.Message)
	case api.NetworkError:
		return m.styles.WarningText.Render("Cannot reach the server. Changes were not saved.")
	default:
		return m.styles.DangerText.Render("Server error. Try again.")
	}
}

func (m Model) renderLogin() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Sign in"))
	b.WriteString("\n\n")
	for i := range m.loginForm.inputs {
		b.WriteString(m.loginForm.inputs[i].View())
		b.WriteString("\n")
	}
	if m.sessionSnap.IsLoading {
		b.WriteString(m.styles.MutedText.Render("signing in..."))
		b.WriteString("\n")
	}
	if m.loginForm.errMsg != "" {
		b.WriteString(m.styles.DangerText.Render(m.loginForm.errMsg))
		b.WriteString("\n")
	} else if m.sessionSnap.Err != "" {
		b.WriteString(m.styles.DangerText.Render(m.sessionSnap.Err))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderSignUp() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Create account"))
	b.WriteString("\n\n")
	for i := range m.signUpForm.inputs {
		b.WriteString(m.signUpForm.inputs[i].View())
		b.WriteString("\n")
	}
	if m.signUpForm.errMsg != "" {
		b.WriteString(m.styles.DangerText.Render(m.signUpForm.errMsg))
		b.WriteString("\n")
	} else if m.sessionSnap.Err != "" {
		b.WriteString(m.styles.DangerText.Render(m.sessionSnap.Err))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderProfile() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Profile"))
	b.WriteString("\n\n")

	user := m.sessionSnap.User
	if user == nil {
		b.WriteString(m.styles.MutedText.Render("not signed in"))
		return b.String()
	}
	b.WriteString("username  " + user.Username + "\n")
	if user.Email != "" {
		b.WriteString("email     " + user.Email + "\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.MutedText.Render("Q to sign out, esc to go back"))
	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Diagnostics"))
	b.WriteString("\n")

	if len(m.logEntries) == 0 {
		b.WriteString(m.styles.MutedText.Render("log is empty"))
		return b.String()
	}

	visible := m.logEntries
	if limit := m.height - 4; limit > 0 && len(visible) > limit {
		visible = visible[len(visible)-limit:]
	}
	for _, entry := range visible {
		b.WriteString(m.renderLogEntry(entry))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderLogEntry(entry logtail.Entry) string {
	if entry.Level == "" {
		return m.styles.MutedText.Render(entry.Message)
	}

	var level string
	switch entry.Level {
	case "error", "fatal", "panic":
		level = m.styles.DangerText.Render(strings.ToUpper(entry.Level))
	case "warn":
		level = m.styles.WarningText.Render("WARN")
	case "debug":
		level = m.styles.AccentText.Render("DEBUG")
	default:
		level = m.styles.SuccessText.Render("INFO")
	}

	ts := ""
	if !entry.Time.IsZero() {
		ts = m.styles.MutedText.Render(entry.Time.Format("15:04:05")) + " "
	}
	return fmt.Sprintf("%s%s %s", ts, level, entry.Message)
}

func (m Model) renderHelp() string {
	lines := []string{
		m.styles.Title.Render("tome keys"),
		"",
		"b          library view",
		"B          shelves view",
		"P          profile",
		"L          diagnostics log",
		"j/k        move selection",
		"a          add a book to the library",
		"1-5        rate selected book",
		"+/-        adjust rating by half a star",
		"w/r/c      mark want-to-read / reading / completed",
		"d          remove selected entry",
		"f          cycle status filter",
		"o          cycle sort order",
		"[ ]        previous / next page",
		"Q          sign out",
		"ctrl+c     quit",
		"",
		m.styles.MutedText.Render("any key to close"),
	}
	return strings.Join(lines, "\n")
}
