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

type ResetModel struct {
	env          *app.Env
	form         form
	windowWidth  int
	windowHeight int
}

func NewResetModel(env *app.Env) ResetModel {
	return ResetModel{
		env: env,
		form: newForm("Reset password",
			newField(validate.FieldPhoneNumber, "Phone number:", "+1 555 123 4567", false, 20),
			newField(validate.FieldNewPassword, "New password:", "At least 6 characters", true, 100),
		),
	}
}

func (m ResetModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m ResetModel) submit() tea.Cmd {
	phone := validate.CleanPhone(m.form.value(validate.FieldPhoneNumber))
	password := m.form.value(validate.FieldNewPassword)
	env := m.env
	return func() tea.Msg {
		return resetDoneMsg{err: env.ResetPassword(context.Background(), phone, password)}
	}
}

func (m ResetModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		return m, nil

	case resetDoneMsg:
		m.form.submitting = false
		if msg.err != nil {
			m.env.Log.Warn("reset_password_failed", zap.Error(msg.err))
			m.form.serverErr = api.Message(msg.err)
			return m, nil
		}
		return switchTo(NewMenuModel(m.env, "Password reset. You can log in now."), m.windowWidth, m.windowHeight)

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
			if !m.form.check(validate.ResetForm(m.form.value(validate.FieldPhoneNumber), m.form.value(validate.FieldNewPassword))) {
				return m, nil
			}
			m.form.submitting = true
			return m, tea.Batch(m.form.spinner.Tick, m.submit())
		}
	}

	cmd := m.form.updateInputs(msg)
	return m, cmd
}

func (m ResetModel) View() string {
	return m.form.view("", "tab/↑↓: navigate • enter: next/submit • esc: back")
}
