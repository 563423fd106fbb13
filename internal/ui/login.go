package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/saravenpi/parley/internal/api"
	"github.com/saravenpi/parley/internal/app"
	"github.com/saravenpi/parley/internal/validate"
	"go.uber.org/zap"
)

type LoginModel struct {
	env          *app.Env
	form         form
	windowWidth  int
	windowHeight int
}

func NewLoginModel(env *app.Env) LoginModel {
	return LoginModel{
		env: env,
		form: newForm("Log in",
			newField(validate.FieldPhoneNumber, "Phone number:", "+1 555 123 4567", false, 20),
			newField(validate.FieldPassword, "Password:", "Password", true, 100),
		),
	}
}

func (m LoginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m LoginModel) submit() tea.Cmd {
	phone := validate.CleanPhone(m.form.value(validate.FieldPhoneNumber))
	password := m.form.value(validate.FieldPassword)
	env := m.env
	return func() tea.Msg {
		sess, err := env.Login(context.Background(), phone, password)
		return authDoneMsg{session: sess, err: err}
	}
}

func (m LoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		return m, nil

	case authDoneMsg:
		m.form.submitting = false
		if msg.err != nil {
			m.env.Log.Warn("login_failed", zap.Error(msg.err))
			m.form.serverErr = api.Message(msg.err)
			return m, nil
		}
		return openChat(m.env, msg.session, m.windowWidth, m.windowHeight)

	case spinner.TickMsg:
		if m.form.submitting {
			var cmd tea.Cmd
			m.form.spinner, cmd = m.form.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.form.submitting {
			return m, nil
		}
		if msg.String() == "esc" {
			return switchTo(NewMenuModel(m.env, ""), m.windowWidth, m.windowHeight)
		}

		if handled, submit := m.form.handleKey(msg); handled {
			if !submit {
				return m, nil
			}
			if !m.form.check(validate.LoginForm(m.form.value(validate.FieldPhoneNumber), m.form.value(validate.FieldPassword))) {
				return m, nil
			}
			m.form.submitting = true
			return m, tea.Batch(m.form.spinner.Tick, m.submit())
		}
	}

	cmd := m.form.updateInputs(msg)
	return m, cmd
}

func (m LoginModel) View() string {
	return m.form.view("", "tab/↑↓: navigate • enter: next/submit • esc: back")
}
