package models

import "time"

// Session is the authenticated identity every API call and the real-time
// channel are constructed with.
type Session struct {
	UserID      string
	DisplayName string
	Token       string
}

func (s Session) Valid() bool {
	return s.Token != "" && s.UserID != ""
}

type Conversation struct {
	ID              string `json:"id"`
	DisplayName     string `json:"displayName"`
	LastMessage     string `json:"lastMessage"`
	LastMessageTime Stamp  `json:"lastMessageTime"`
	SenderID        string `json:"senderId"`
	ReceiverID      string `json:"receiverId"`
	UnreadCount     int    `json:"unreadCount"`
	Online          bool   `json:"online"`
	Category        string `json:"category"`
	AvatarColor     string `json:"avatarColor,omitempty"`
	ChatID          string `json:"chatId,omitempty"`
}

// Involves reports whether the conversation is between a and b, in either
// direction.
func (c Conversation) Involves(a, b string) bool {
	return (c.SenderID == a && c.ReceiverID == b) || (c.SenderID == b && c.ReceiverID == a)
}

type Sender struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId,omitempty"`
	ReceiverID     string    `json:"receiverId,omitempty"`
	Sender         *Sender   `json:"sender,omitempty"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	Read           bool      `json:"read"`

	// Pending marks a locally composed message that has not been echoed
	// back by the broker yet.
	Pending bool `json:"-"`
}

// From returns the sender id. Broker payloads do not always carry the
// nested sender object.
func (m Message) From() string {
	if m.Sender != nil && m.Sender.ID != "" {
		return m.Sender.ID
	}
	return m.SenderID
}

func (m Message) SenderName() string {
	if m.Sender != nil {
		return m.Sender.Name
	}
	return ""
}

// OutgoingMessage is the chat payload published to the broker and, as a
// fallback, posted to the REST API.
type OutgoingMessage struct {
	SenderID       string    `json:"senderId"`
	ReceiverID     string    `json:"receiverId"`
	ConversationID string    `json:"conversationId"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

type UserSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Status      string `json:"status"`
}

func (u UserSummary) Online() bool {
	return u.Status == "online"
}

// StatusUpdate is a presence broadcast. It is only logged for now.
type StatusUpdate struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// ViewMode says which pane of the chat screen has focus.
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
)
