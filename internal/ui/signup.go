package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/saravenpi/parley/internal/api"
	"github.com/saravenpi/parley/internal/app"
	"github.com/saravenpi/parley/internal/validate"
	"go.uber.org/zap"
)

type SignupModel struct {
	env          *app.Env
	form         form
	windowWidth  int
	windowHeight int
}

func NewSignupModel(env *app.Env) SignupModel {
	return SignupModel{
		env: env,
		form: newForm("Sign up",
			newField(validate.FieldName, "Name:", "Your name", false, 50),
			newField(validate.FieldPhoneNumber, "Phone number:", "+1 555 123 4567", false, 20),
			newField(validate.FieldPassword, "Password:", "At least 6 characters", true, 100),
			newField(validate.FieldConfirmPassword, "Confirm password:", "Repeat password", true, 100),
		),
	}
}

func (m SignupModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m SignupModel) result() validate.Result {
	return validate.SignupForm(
		m.form.value(validate.FieldName),
		m.form.value(validate.FieldPhoneNumber),
		m.form.value(validate.FieldPassword),
		m.form.value(validate.FieldConfirmPassword),
	)
}

func (m SignupModel) submit() tea.Cmd {
	name := strings.TrimSpace(m.form.value(validate.FieldName))
	phone := validate.CleanPhone(m.form.value(validate.FieldPhoneNumber))
	password := m.form.value(validate.FieldPassword)
	env := m.env
	return func() tea.Msg {
		sess, err := env.Signup(context.Background(), name, phone, password)
		return authDoneMsg{session: sess, err: err}
	}
}

func (m SignupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		return m, nil

	case authDoneMsg:
		m.form.submitting = false
		if msg.err != nil {
			m.env.Log.Warn("signup_failed", zap.Error(msg.err))
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
			if !submit || !m.form.check(m.result()) {
				return m, nil
			}
			m.form.submitting = true
			return m, tea.Batch(m.form.spinner.Tick, m.submit())
		}
	}

	cmd := m.form.updateInputs(msg)
	return m, cmd
}

func (m SignupModel) View() string {
	extra := ""
	if pw := m.form.value(validate.FieldPassword); pw != "" {
		strength, message, _ := validate.PasswordStrength(pw)
		style := errorStyle
		switch strength {
		case validate.Medium:
			style = statusStyle
		case validate.Strong:
			style = onlineStyle
		}
		extra = style.Render(fmt.Sprintf("Strength: %s (%s)", strength, message))
	}
	return m.form.view(extra, "tab/↑↓: navigate • enter: next/submit • esc: back")
}
