package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/saravenpi/parley/internal/api"
	"github.com/saravenpi/parley/internal/app"
	"github.com/saravenpi/parley/internal/chat"
	"github.com/saravenpi/parley/internal/models"
	"github.com/saravenpi/parley/internal/realtime"
	"go.uber.org/zap"
)

// ChatModel is the main screen: the conversation sidebar next to the active
// thread. It owns the app session and closes it when leaving.
type ChatModel struct {
	env  *app.Env
	sess *app.Session
	sync *chat.Synchronizer
	log  *zap.Logger

	focus models.ViewMode

	sidebar sidebar

	viewport viewport.Model
	composer textarea.Model
	spinner  spinner.Model

	loadingList    bool
	loadingHistory bool
	connState      realtime.State

	notice      string
	noticeIsErr bool
	noticeID    int

	windowWidth  int
	windowHeight int
}

// openChat starts a session for identity and shows the chat screen.
func openChat(env *app.Env, identity models.Session, width, height int) (tea.Model, tea.Cmd) {
	sess, err := app.Open(env, identity)
	if err != nil {
		env.Log.Error("session_open_failed", zap.Error(err))
		return switchTo(NewMenuModel(env, "Could not start session. Please log in again."), width, height)
	}
	return switchTo(NewChatModel(env, sess), width, height)
}

func NewChatModel(env *app.Env, sess *app.Session) ChatModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusStyle

	vp := viewport.New(60, 20)

	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.CharLimit = 1000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	search := textinput.New()
	search.Placeholder = "Search name or user id"
	search.CharLimit = 64
	search.Prompt = "/ "

	return ChatModel{
		env:          env,
		sess:         sess,
		sync:         sess.Sync,
		log:          env.Log.Named("ui"),
		focus:        models.ViewList,
		sidebar:      sidebar{search: search},
		viewport:     vp,
		composer:     ta,
		spinner:      s,
		loadingList:  true,
		windowWidth:  100,
		windowHeight: 30,
	}
}

func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchConversationsCmd(m.sess.API, m.sess.Identity.UserID),
		waitEvent(m.sess),
	)
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.resize()
		m.refreshThread(false)
		return m, nil

	case conversationsFetchedMsg:
		m.loadingList = false
		if msg.err != nil {
			return m.fail("list_conversations", msg.err)
		}
		m.sync.SetConversations(msg.conversations)
		m.sidebar.clamp(m.rows())
		return m, nil

	case historyFetchedMsg:
		if !m.sync.Current(msg.gen) {
			return m, nil
		}
		m.loadingHistory = false
		if msg.err != nil {
			return m.fail("list_messages", msg.err)
		}
		m.sync.ApplyHistory(msg.gen, msg.messages)
		m.refreshThread(true)
		return m, nil

	case markedReadMsg:
		if msg.err != nil {
			return m.fail("mark_read", msg.err)
		}
		m.sync.MarkRead(msg.conversationID)
		return m, nil

	case deliveredMsg:
		if msg.err != nil {
			m.sync.Discard(msg.pendingID)
			m.refreshThread(true)
			return m.fail("send_message", msg.err)
		}
		if msg.viaREST {
			m.log.Info("message_sent_via_rest")
			m.sync.Confirm(msg.pendingID)
			m.refreshThread(true)
		}
		return m, nil

	case usersFoundMsg:
		if msg.query != m.sidebar.filter.Query {
			return m, nil
		}
		if msg.err != nil {
			return m.fail("search_users", msg.err)
		}
		m.sidebar.remote = msg.users
		m.sidebar.clamp(m.rows())
		return m, nil

	case conversationCreatedMsg:
		if msg.err != nil {
			return m.fail("create_conversation", msg.err)
		}
		conv := m.sync.Upsert(msg.conversation)
		m.sidebar.reset()
		return m.activate(conv.ID)

	case sessionEventMsg:
		m.handleEvent(msg.event)
		return m, waitEvent(m.sess)

	case sessionClosedMsg:
		return m, nil

	case noticeExpiredMsg:
		if msg.id == m.noticeID {
			m.notice = ""
		}
		return m, nil

	case spinner.TickMsg:
		if m.loadingList || m.loadingHistory {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *ChatModel) handleEvent(ev any) {
	switch ev := ev.(type) {
	case app.InboundEvent:
		if err := m.sync.Inbound(ev.Message); err != nil {
			m.log.Debug("inbound_dropped", zap.Error(err))
		}
		m.sidebar.clamp(m.rows())
		if ev.Message.ConversationID == m.sync.ActiveID() {
			m.refreshThread(true)
		}
	case app.StateEvent:
		m.connState = ev.State
	}
}

func (m ChatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.sess.Close()
		return m, tea.Quit
	case "ctrl+o":
		return m.logout("Logged out.")
	}

	if m.sidebar.searching {
		return m.handleSearchKey(msg)
	}

	if msg.String() == "tab" {
		m.toggleFocus()
		return m, nil
	}

	if m.focus == models.ViewDetail {
		return m.handleThreadKey(msg)
	}
	return m.handleSidebarKey(msg)
}

func (m *ChatModel) toggleFocus() {
	if m.focus == models.ViewList && m.sync.ActiveID() != "" {
		m.focus = models.ViewDetail
		m.composer.Focus()
		return
	}
	m.focus = models.ViewList
	m.composer.Blur()
}

func (m ChatModel) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.rows()
	switch msg.String() {
	case "q":
		m.sess.Close()
		return m, tea.Quit
	case "up", "k":
		m.sidebar.move(-1, rows)
	case "down", "j":
		m.sidebar.move(1, rows)
	case "/":
		m.sidebar.searching = true
		cmd := m.sidebar.search.Focus()
		return m, cmd
	case "u":
		m.sidebar.filter.UnreadOnly = !m.sidebar.filter.UnreadOnly
		m.sidebar.clamp(m.rows())
	case "c":
		m.sidebar.cycleCategory(chat.Categories(m.sync.Conversations()))
		m.sidebar.clamp(m.rows())
	case "esc":
		if m.sidebar.filter.Active() {
			m.sidebar.reset()
			m.sidebar.clamp(m.rows())
		}
	case "r":
		if !m.loadingList {
			m.loadingList = true
			return m, tea.Batch(m.spinner.Tick, fetchConversationsCmd(m.sess.API, m.sess.Identity.UserID))
		}
	case "enter":
		if m.sidebar.cursor < len(rows) {
			return m.open(rows[m.sidebar.cursor])
		}
	}
	return m, nil
}

func (m ChatModel) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.sidebar.reset()
		m.sidebar.clamp(m.rows())
		return m, nil
	case "enter", "tab", "down":
		m.sidebar.searching = false
		m.sidebar.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.sidebar.search, cmd = m.sidebar.search.Update(msg)
	query := m.sidebar.search.Value()
	if query == m.sidebar.filter.Query {
		return m, cmd
	}

	m.sidebar.filter.Query = query
	m.sidebar.remote = nil
	m.sidebar.cursor = 0
	if api.LooksLikeUserID(query) {
		return m, tea.Batch(cmd, searchUsersCmd(m.sess.API, query))
	}
	return m, cmd
}

func (m ChatModel) handleThreadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.toggleFocus()
		return m, nil
	case "enter", "ctrl+s":
		return m.send()
	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	return m, cmd
}

// open activates a conversation row, or starts a conversation with a user
// found by remote search.
func (m ChatModel) open(r row) (tea.Model, tea.Cmd) {
	if r.conversation != nil {
		return m.activate(r.conversation.ID)
	}

	user := r.user
	if user.ID == m.sess.Identity.UserID {
		return m.showNotice("That's you.", false)
	}
	if conv, ok := m.sync.FindWith(user.ID); ok {
		m.sidebar.reset()
		return m.activate(conv.ID)
	}
	return m, createConversationCmd(m.sess.API, m.sess.Identity.UserID, user.ID)
}

func (m ChatModel) activate(id string) (tea.Model, tea.Cmd) {
	fetch, err := m.sync.Activate(id)
	if err != nil {
		m.log.Warn("activate_failed", zap.String("conversation", id), zap.Error(err))
		return m, nil
	}

	m.loadingHistory = true
	m.focus = models.ViewDetail
	m.sidebar.clamp(m.rows())
	m.refreshThread(true)
	blink := m.composer.Focus()

	return m, tea.Batch(
		m.spinner.Tick,
		blink,
		fetchHistoryCmd(m.sess.API, m.sess.Identity.UserID, fetch),
		markReadCmd(m.sess.API, id),
	)
}

func (m ChatModel) send() (tea.Model, tea.Cmd) {
	out, pending, err := m.sync.Compose(m.composer.Value())
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return m, nil
	case err != nil:
		return m.showNotice("Select a conversation first.", true)
	}

	m.composer.Reset()
	m.sync.Sent(out)
	m.sidebar.clamp(m.rows())
	m.refreshThread(true)
	return m, deliverCmd(m.sess, out, pending.ID)
}

// fail reports err to the user. An unauthorized error ends the session.
func (m ChatModel) fail(op string, err error) (tea.Model, tea.Cmd) {
	if errors.Is(err, context.Canceled) {
		return m, nil
	}
	if errors.Is(err, api.ErrUnauthorized) {
		m.log.Warn("session_rejected", zap.String("op", op))
		return m.logout(api.Message(err))
	}
	m.log.Warn("request_failed", zap.String("op", op), zap.Error(err))
	return m.showNotice(api.Message(err), true)
}

func (m ChatModel) showNotice(text string, isErr bool) (tea.Model, tea.Cmd) {
	m.noticeID++
	m.notice = text
	m.noticeIsErr = isErr
	return m, expireNotice(m.noticeID)
}

func (m ChatModel) logout(notice string) (tea.Model, tea.Cmd) {
	if err := m.sess.Logout(); err != nil {
		m.log.Error("logout_failed", zap.Error(err))
	}
	return switchTo(NewMenuModel(m.env, notice), m.windowWidth, m.windowHeight)
}

func (m ChatModel) rows() []row {
	return m.sidebar.rows(m.sync.Conversations())
}

func (m ChatModel) sidebarWidth() int {
	w := m.windowWidth / 3
	if w > 40 {
		w = 40
	}
	if w < 24 {
		w = 24
	}
	return w
}

func (m *ChatModel) resize() {
	threadWidth := m.windowWidth - m.sidebarWidth() - 4
	if threadWidth < 20 {
		threadWidth = 20
	}
	composerHeight := 5
	headerHeight := 3
	footerHeight := 2
	m.viewport.Width = threadWidth - 4
	m.viewport.Height = m.windowHeight - headerHeight - composerHeight - footerHeight - 2
	if m.viewport.Height < 3 {
		m.viewport.Height = 3
	}
	m.composer.SetWidth(threadWidth - 4)
}

func (m *ChatModel) refreshThread(toBottom bool) {
	conv, _ := m.sync.Active()
	m.viewport.SetContent(renderThread(m.sync.Messages(), m.sess.Identity.UserID, conv.DisplayName, m.viewport.Width))
	if toBottom {
		m.viewport.GotoBottom()
	}
}

func (m ChatModel) connectionView() string {
	switch m.connState {
	case realtime.Connected:
		return onlineStyle.Render("● live")
	case realtime.Connecting:
		return statusStyle.Render("◌ connecting")
	default:
		return errorStyle.Render("○ offline")
	}
}

func (m ChatModel) threadView(width int) string {
	conv, ok := m.sync.Active()
	if !ok {
		return mutedStyle.Render("Select a conversation to start chatting.")
	}

	header := titleStyle.Render(fmt.Sprintf("💬 %s", conv.DisplayName))
	header = lipgloss.JoinHorizontal(lipgloss.Top, header, "  ", m.connectionView())

	body := m.viewport.View()
	if m.loadingHistory && len(m.sync.Messages()) == 0 {
		body = fmt.Sprintf("%s Loading messages...", m.spinner.View())
	} else if len(m.sync.Messages()) == 0 {
		body = normalStyle.Render("No messages yet. Say hi!")
	}

	label := blurredLabelStyle.Render("Message:")
	if m.focus == models.ViewDetail {
		label = inputStyle.Render("Message:")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.NewStyle().Height(m.viewport.Height).Width(width).Render(body),
		label,
		m.composer.View(),
	)
}

func (m ChatModel) View() string {
	sw := m.sidebarWidth()
	tw := m.windowWidth - sw - 4
	height := m.windowHeight - 3

	left := paneStyle
	right := focusedPaneStyle
	if m.focus == models.ViewList || m.sidebar.searching {
		left, right = focusedPaneStyle, paneStyle
	}

	sidebarBody := m.sidebar.view(m.sync.Conversations(), sw-4, height-2)
	if m.loadingList {
		sidebarBody = fmt.Sprintf("%s Loading conversations...", m.spinner.View())
	}

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		left.Width(sw-2).Height(height-2).Render(sidebarBody),
		right.Width(tw-2).Height(height-2).Render(m.threadView(tw-4)),
	)

	status := ""
	if m.notice != "" {
		style := statusStyle
		if m.noticeIsErr {
			style = errorStyle
		}
		status = style.Render(m.notice)
	}

	help := "tab: switch pane • ↑↓/jk: move • enter: open • /: search • u: unread • c: category • r: refresh • ctrl+o: logout • q: quit"
	if m.focus == models.ViewDetail && !m.sidebar.searching {
		help = "enter/ctrl+s: send • pgup/pgdown: scroll • esc/tab: conversations • ctrl+o: logout • ctrl+c: quit"
	}

	return panes + "\n" + status + "\n" + helpStyle.Render(help)
}
