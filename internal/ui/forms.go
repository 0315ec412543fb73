package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"

	"tome/internal/api"
)

// loginForm holds the sign-in inputs.
type loginForm struct {
	inputs [2]textinput.Model // username, password
	focus  int
	errMsg string
}

func newLoginForm() loginForm {
	var f loginForm
	f.inputs[0] = textinput.New()
	f.inputs[0].Placeholder = "username"
	f.inputs[0].Focus()
	f.inputs[1] = textinput.New()
	f.inputs[1].Placeholder = "password"
	f.inputs[1].EchoMode = textinput.EchoPassword
	return f
}

func (f *loginForm) next() {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + 1) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

// validate runs the local checks before any network call.
func (f *loginForm) validate() bool {
	f.errMsg = ""
	if strings.TrimSpace(f.inputs[0].Value()) == "" {
		f.errMsg = "username is required"
		return false
	}
	if f.inputs[1].Value() == "" {
		f.errMsg = "password is required"
		return false
	}
	return true
}

// signUpForm holds the registration inputs.
type signUpForm struct {
	inputs [5]textinput.Model // username, email, first name, password, confirm
	focus  int
	errMsg string
}

func newSignUpForm() signUpForm {
	var f signUpForm
	labels := []string{"username", "email", "first name (optional)", "password", "confirm password"}
	for i := range f.inputs {
		f.inputs[i] = textinput.New()
		f.inputs[i].Placeholder = labels[i]
	}
	f.inputs[3].EchoMode = textinput.EchoPassword
	f.inputs[4].EchoMode = textinput.EchoPassword
	f.inputs[0].Focus()
	return f
}

func (f *signUpForm) next() {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + 1) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

func (f *signUpForm) validate() bool {
	f.errMsg = validateSignUp(
		f.inputs[0].Value(),
		f.inputs[1].Value(),
		f.inputs[3].Value(),
		f.inputs[4].Value(),
	)
	return f.errMsg == ""
}

func (f *signUpForm) input() api.RegisterInput {
	return api.RegisterInput{
		Username:  strings.TrimSpace(f.inputs[0].Value()),
		Email:     strings.TrimSpace(f.inputs[1].Value()),
		FirstName: strings.TrimSpace(f.inputs[2].Value()),
		Password:  f.inputs[3].Value(),
	}
}

// validateSignUp returns an empty string when the inputs pass local
// checks, otherwise the first problem found.
func validateSignUp(username, email, password, confirm string) string {
	username = strings.TrimSpace(username)
	if username == "" {
		return "username is required"
	}
	if len(username) < 3 {
		return "username must be at least 3 characters"
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "email is required"
	}
	if !strings.Contains(email, "@") {
		return "email looks invalid"
	}
	if password == "" {
		return "password is required"
	}
	if password != confirm {
		return "passwords do not match"
	}
	return ""
}

// addForm adds a book to the library by its catalog ID.
type addForm struct {
	input  textinput.Model
	status string
	errMsg string
}

func newAddForm() addForm {
	f := addForm{status: api.StatusWantToRead}
	f.input = textinput.New()
	f.input.Placeholder = "book id"
	f.input.CharLimit = 12
	f.input.Focus()
	return f
}

func (f *addForm) validate() (int64, bool) {
	f.errMsg = ""
	id, err := strconv.ParseInt(strings.TrimSpace(f.input.Value()), 10, 64)
	if err != nil || id <= 0 {
		f.errMsg = "enter a numeric book id"
		return 0, false
	}
	return id, true
}

func (f *addForm) cycleStatus() {
	switch f.status {
	case api.StatusWantToRead:
		f.status = api.StatusReading
	case api.StatusReading:
		f.status = api.StatusCompleted
	default:
		f.status = api.StatusWantToRead
	}
}

// shelfForm creates or renames a shelf.
type shelfForm struct {
	inputs   [3]textinput.Model // name, description, cover path
	focus    int
	errMsg   string
	editID   int64 // 0 means create
	isPublic bool
}

func newShelfForm() shelfForm {
	var f shelfForm
	f.inputs[0] = textinput.New()
	f.inputs[0].Placeholder = "shelf name"
	f.inputs[0].Focus()
	f.inputs[1] = textinput.New()
	f.inputs[1].Placeholder = "description (optional)"
	f.inputs[2] = textinput.New()
	f.inputs[2].Placeholder = "cover image path (optional)"
	return f
}

func (f *shelfForm) next() {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + 1) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

func (f *shelfForm) validate() bool {
	f.errMsg = ""
	if strings.TrimSpace(f.inputs[0].Value()) == "" {
		f.errMsg = "shelf name is required"
		return false
	}
	return true
}

func (f *shelfForm) input() api.ShelfInput {
	return api.ShelfInput{
		Name:        strings.TrimSpace(f.inputs[0].Value()),
		Description: strings.TrimSpace(f.inputs[1].Value()),
		IsPublic:    f.isPublic,
	}
}

func (f *shelfForm) coverPath() string {
	return strings.TrimSpace(f.inputs[2].Value())
}
