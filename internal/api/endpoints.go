package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/saravenpi/parley/internal/models"
)

type authResponse struct {
	Token string `json:"token"`
	ID    string `json:"id"`
	Name  string `json:"name"`
}

// Login exchanges credentials for a session. It does not need one.
func (c *Client) Login(ctx context.Context, phoneNumber, password string) (models.Session, error) {
	var resp authResponse
	err := c.do(ctx, request{
		op:     "login",
		method: "POST",
		path:   "/auth/login",
		body: map[string]string{
			"phoneNumber": phoneNumber,
			"password":    password,
		},
	}, &resp)
	if err != nil {
		return models.Session{}, err
	}

	sess := models.Session{UserID: resp.ID, DisplayName: resp.Name, Token: resp.Token}
	if !sess.Valid() {
		return models.Session{}, fmt.Errorf("login: server response is missing token or user id")
	}
	return sess, nil
}

func (c *Client) Register(ctx context.Context, name, phoneNumber, password string) error {
	return c.do(ctx, request{
		op:     "register",
		method: "POST",
		path:   "/auth/register",
		body: map[string]string{
			"name":        name,
			"phoneNumber": phoneNumber,
			"password":    password,
		},
	}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, phoneNumber, newPassword string) error {
	return c.do(ctx, request{
		op:     "reset_password",
		method: "POST",
		path:   "/auth/reset-password",
		body: map[string]string{
			"phoneNumber": phoneNumber,
			"newPassword": newPassword,
		},
	}, nil)
}

// conversationPayload accepts both the list DTO (displayName) and the raw
// entity returned by create (name).
type conversationPayload struct {
	models.Conversation
	Name string `json:"name"`
}

func (p conversationPayload) normalize() models.Conversation {
	conv := p.Conversation
	if conv.DisplayName == "" {
		conv.DisplayName = p.Name
	}
	return conv
}

func (c *Client) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	var payload []conversationPayload
	err := c.do(ctx, request{
		op:     "list_conversations",
		method: "GET",
		path:   pathEscape("conversations", "user", userID),
		auth:   true,
	}, &payload)
	if err != nil {
		return nil, err
	}

	conversations := make([]models.Conversation, 0, len(payload))
	for _, p := range payload {
		conversations = append(conversations, p.normalize())
	}
	return conversations, nil
}

// CreateConversation starts a conversation between senderID and receiverID.
// The server returns the existing conversation when the pair already has one.
func (c *Client) CreateConversation(ctx context.Context, senderID, receiverID string) (models.Conversation, error) {
	var payload conversationPayload
	err := c.do(ctx, request{
		op:     "create_conversation",
		method: "POST",
		path:   "/conversations",
		body: map[string]string{
			"senderId":   senderID,
			"receiverId": receiverID,
		},
		auth: true,
	}, &payload)
	if err != nil {
		return models.Conversation{}, err
	}
	if payload.ID == "" {
		return models.Conversation{}, fmt.Errorf("create_conversation: server returned no conversation")
	}
	return payload.normalize(), nil
}

func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, request{
		op:     "mark_read",
		method: "POST",
		path:   pathEscape("conversations", conversationID, "read"),
		auth:   true,
	}, nil)
}

// ListMessages returns the history between userID and otherUserID,
// oldest first.
func (c *Client) ListMessages(ctx context.Context, userID, otherUserID string) ([]models.Message, error) {
	var messages []models.Message
	err := c.do(ctx, request{
		op:     "list_messages",
		method: "GET",
		path:   pathEscape("messages", userID, otherUserID),
		auth:   true,
	}, &messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts msg over HTTP. Only used when the real-time channel
// cannot take the message.
func (c *Client) SendMessage(ctx context.Context, msg models.OutgoingMessage) error {
	return c.do(ctx, request{
		op:     "send_message",
		method: "POST",
		path:   "/messages",
		body:   msg,
		auth:   true,
	}, nil)
}

// LooksLikeUserID reports whether query is worth a remote user search: all
// digits and at least five of them.
func LooksLikeUserID(query string) bool {
	if len(query) < 5 {
		return false
	}
	for _, r := range query {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SearchUsers looks users up by numeric identifier. Queries that do not look
// like one return nothing without touching the network.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]models.UserSummary, error) {
	if !LooksLikeUserID(query) {
		return nil, nil
	}

	var users []models.UserSummary
	err := c.do(ctx, request{
		op:     "search_users",
		method: "GET",
		path:   "/users/search",
		query:  url.Values{"query": {query}},
		auth:   true,
	}, &users)
	if err != nil {
		return nil, err
	}
	return users, nil
}
