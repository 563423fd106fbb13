package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/saravenpi/parley/internal/validate"
)

type formField struct {
	key   string
	label string
	input textinput.Model
}

func newField(key, label, placeholder string, secret bool, limit int) formField {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = limit
	in.Width = 50
	if secret {
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '•'
	}
	return formField{key: key, label: label, input: in}
}

// form is the input handling shared by the login, signup and reset screens.
type form struct {
	title      string
	fields     []formField
	focusIndex int
	errs       map[string]string
	serverErr  string
	submitting bool
	spinner    spinner.Model
}

func newForm(title string, fields ...formField) form {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusStyle

	f := form{title: title, fields: fields, spinner: s}
	f.updateFocus()
	return f
}

func (f form) value(key string) string {
	for _, field := range f.fields {
		if field.key == key {
			return field.input.Value()
		}
	}
	return ""
}

func (f *form) move(delta int) {
	f.focusIndex = (f.focusIndex + delta + len(f.fields)) % len(f.fields)
	f.updateFocus()
}

func (f *form) updateFocus() {
	for i := range f.fields {
		if i == f.focusIndex {
			f.fields[i].input.Focus()
		} else {
			f.fields[i].input.Blur()
		}
	}
}

func (f *form) updateInputs(msg tea.Msg) tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(f.fields))
	for i := range f.fields {
		var cmd tea.Cmd
		f.fields[i].input, cmd = f.fields[i].input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// check records r and reports whether the form may be submitted.
func (f *form) check(r validate.Result) bool {
	f.errs = r.Errors
	f.serverErr = ""
	return r.Valid()
}

// handleKey deals with navigation. submit is true when the user asked to send
// the form.
func (f *form) handleKey(msg tea.KeyMsg) (handled, submit bool) {
	switch msg.String() {
	case "tab", "down":
		f.move(1)
		return true, false
	case "shift+tab", "up":
		f.move(-1)
		return true, false
	case "ctrl+s":
		return true, true
	case "enter":
		if f.focusIndex == len(f.fields)-1 {
			return true, true
		}
		f.move(1)
		return true, false
	}
	return false, false
}

func (f form) view(extra, help string) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(f.title) + "\n\n")

	for i, field := range f.fields {
		style := blurredLabelStyle
		if i == f.focusIndex {
			style = focusedLabelStyle
		}
		b.WriteString(style.Render(field.label) + "\n")
		b.WriteString(field.input.View() + "\n")
		if msg := f.errs[field.key]; msg != "" {
			b.WriteString(errorStyle.Render("  "+msg) + "\n")
		}
		b.WriteString("\n")
	}

	if extra != "" {
		b.WriteString(extra + "\n\n")
	}

	if f.submitting {
		b.WriteString(fmt.Sprintf("%s Please wait...\n\n", f.spinner.View()))
	} else if f.serverErr != "" {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %s", f.serverErr)) + "\n\n")
	}

	b.WriteString(helpStyle.Render(help))
	return b.String()
}
