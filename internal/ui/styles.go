package ui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("213")).
		MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("213"))

	normalStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("255"))

	mutedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("243"))

	helpStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("243")).
		Italic(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	statusStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("117"))

	unreadStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("213")).
		Bold(true).
		Padding(0, 1)

	onlineStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("120"))

	messageFromMeStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("111"))

	messageFromOtherStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("120"))

	messageHeaderStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("243")).
		Italic(true)

	daySeparatorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("243")).
		Align(lipgloss.Center)

	inputStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("117")).
		Bold(true)

	focusedLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	blurredLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	paneStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(0, 1)

	focusedPaneStyle = paneStyle.
		BorderForeground(lipgloss.Color("213"))
)
