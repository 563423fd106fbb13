package ui

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/saravenpi/parley/internal/app"
)

type menuAction int

const (
	actionLogin menuAction = iota
	actionSignup
	actionReset
	actionQuit
)

type menuItem struct {
	title  string
	desc   string
	action menuAction
}

func (i menuItem) FilterValue() string { return i.title }
func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }

// MenuModel is the landing screen shown while nobody is logged in.
type MenuModel struct {
	env          *app.Env
	list         list.Model
	notice       string
	windowWidth  int
	windowHeight int
}

// NewMenuModel creates the landing menu. notice is shown under the list,
// e.g. after a logout.
func NewMenuModel(env *app.Env, notice string) MenuModel {
	items := []list.Item{
		menuItem{title: "🔑 Log in", desc: "Sign in with your phone number", action: actionLogin},
		menuItem{title: "✨ Sign up", desc: "Create a new account", action: actionSignup},
		menuItem{title: "🔁 Forgot password", desc: "Reset your password", action: actionReset},
		menuItem{title: "👋 Quit", desc: "Leave parley", action: actionQuit},
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("5")).
		Bold(true)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("8"))

	l := list.New(items, delegate, 80, 14)
	l.Title = "Parley - Terminal Chat"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return MenuModel{
		env:          env,
		list:         l,
		notice:       notice,
		windowWidth:  80,
		windowHeight: 30,
	}
}

func (m MenuModel) Init() tea.Cmd {
	return nil
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(msg.Height - 4)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

		if msg.String() == "enter" {
			selectedItem, ok := m.list.SelectedItem().(menuItem)
			if !ok {
				return m, nil
			}

			switch selectedItem.action {
			case actionLogin:
				return switchTo(NewLoginModel(m.env), m.windowWidth, m.windowHeight)
			case actionSignup:
				return switchTo(NewSignupModel(m.env), m.windowWidth, m.windowHeight)
			case actionReset:
				return switchTo(NewResetModel(m.env), m.windowWidth, m.windowHeight)
			case actionQuit:
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m MenuModel) View() string {
	s := m.list.View() + "\n"
	if m.notice != "" {
		s += statusStyle.Render(m.notice) + "\n"
	}
	s += helpStyle.Render("↑↓/jk: navigate • enter: select • q: quit")
	return s
}
