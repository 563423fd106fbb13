package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/saravenpi/parley/internal/api"
	"github.com/saravenpi/parley/internal/app"
	"github.com/saravenpi/parley/internal/chat"
	"github.com/saravenpi/parley/internal/models"
)

const (
	noticeTTL   = 4 * time.Second
	sendTimeout = 15 * time.Second
)

type authDoneMsg struct {
	session models.Session
	err     error
}

type resetDoneMsg struct {
	err error
}

type conversationsFetchedMsg struct {
	conversations []models.Conversation
	err           error
}

type historyFetchedMsg struct {
	gen            uint64
	conversationID string
	messages       []models.Message
	err            error
}

type markedReadMsg struct {
	conversationID string
	err            error
}

type deliveredMsg struct {
	pendingID string
	viaREST   bool
	err       error
}

type usersFoundMsg struct {
	query string
	users []models.UserSummary
	err   error
}

type conversationCreatedMsg struct {
	conversation models.Conversation
	err          error
}

type sessionEventMsg struct {
	event any
}

type sessionClosedMsg struct{}

type noticeExpiredMsg struct {
	id int
}

// waitEvent blocks for the next event from the session. It is re-armed after
// every event it delivers.
func waitEvent(s *app.Session) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-s.Events():
			return sessionEventMsg{event: ev}
		case <-s.Done():
			return sessionClosedMsg{}
		}
	}
}

func fetchConversationsCmd(client *api.Client, userID string) tea.Cmd {
	return func() tea.Msg {
		convs, err := client.ListConversations(context.Background(), userID)
		return conversationsFetchedMsg{conversations: convs, err: err}
	}
}

func fetchHistoryCmd(client *api.Client, userID string, f chat.Fetch) tea.Cmd {
	return func() tea.Msg {
		msgs, err := client.ListMessages(f.Ctx, userID, f.PeerID)
		return historyFetchedMsg{gen: f.Gen, conversationID: f.ConversationID, messages: msgs, err: err}
	}
}

func markReadCmd(client *api.Client, conversationID string) tea.Cmd {
	return func() tea.Msg {
		err := client.MarkRead(context.Background(), conversationID)
		return markedReadMsg{conversationID: conversationID, err: err}
	}
}

func deliverCmd(s *app.Session, out models.OutgoingMessage, pendingID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		viaREST, err := chat.Deliver(ctx, s.Channel, s.API, out)
		return deliveredMsg{pendingID: pendingID, viaREST: viaREST, err: err}
	}
}

func searchUsersCmd(client *api.Client, query string) tea.Cmd {
	return func() tea.Msg {
		users, err := client.SearchUsers(context.Background(), query)
		return usersFoundMsg{query: query, users: users, err: err}
	}
}

func createConversationCmd(client *api.Client, senderID, receiverID string) tea.Cmd {
	return func() tea.Msg {
		conv, err := client.CreateConversation(context.Background(), senderID, receiverID)
		return conversationCreatedMsg{conversation: conv, err: err}
	}
}

func expireNotice(id int) tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}

// switchTo hands the terminal size to the next screen before it renders.
func switchTo(next tea.Model, width, height int) (tea.Model, tea.Cmd) {
	initCmd := next.Init()
	if width <= 0 {
		return next, initCmd
	}
	next, sizeCmd := next.Update(tea.WindowSizeMsg{Width: width, Height: height})
	return next, tea.Batch(initCmd, sizeCmd)
}

// Shutdown releases whatever the final screen still holds.
func Shutdown(m tea.Model) {
	if c, ok := m.(ChatModel); ok {
		c.sess.Close()
	}
}
