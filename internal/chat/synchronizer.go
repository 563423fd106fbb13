package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/saravenpi/parley/internal/models"
	"go.uber.org/zap"
)

var (
	ErrUnknownConversation  = errors.New("unknown conversation")
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrEmptyMessage         = errors.New("message is empty")
)

const DefaultDedupWindow = time.Second

// pendingPrefix marks ids generated locally for optimistic messages.
const pendingPrefix = "local-"

type Option func(*Synchronizer)

func WithDedupWindow(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.window = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

// Synchronizer owns the conversation list and the active thread. It merges
// the REST snapshot, broker pushes and local sends into one ordered view.
//
// It is not safe for concurrent use; the UI event loop is its only caller.
type Synchronizer struct {
	self models.Session

	conversations []models.Conversation
	messages      []models.Message
	active        string

	gen    uint64
	cancel context.CancelFunc

	window time.Duration
	now    func() time.Time
	log    *zap.Logger
}

func New(self models.Session, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		self:   self,
		window: DefaultDedupWindow,
		now:    time.Now,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synchronizer) Self() models.Session {
	return s.self
}

// Conversations returns a copy of the ordered list, most recent first.
func (s *Synchronizer) Conversations() []models.Conversation {
	return append([]models.Conversation(nil), s.conversations...)
}

// Messages returns a copy of the active thread, oldest first.
func (s *Synchronizer) Messages() []models.Message {
	return append([]models.Message(nil), s.messages...)
}

func (s *Synchronizer) ActiveID() string {
	return s.active
}

func (s *Synchronizer) Active() (models.Conversation, bool) {
	return s.Conversation(s.active)
}

func (s *Synchronizer) Conversation(id string) (models.Conversation, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.conversations[i], true
	}
	return models.Conversation{}, false
}

// SetConversations replaces the list with a fresh snapshot. Rows repeating an
// id are dropped. The list is ordered by last activity when every row carries
// a full timestamp; otherwise the server's order is kept.
func (s *Synchronizer) SetConversations(list []models.Conversation) {
	seen := make(map[string]struct{}, len(list))
	out := make([]models.Conversation, 0, len(list))
	for _, c := range list {
		if _, dup := seen[c.ID]; dup {
			s.log.Debug("conversation_duplicate_dropped", zap.String("conversation", c.ID))
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	if orderable(out) {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].LastMessageTime.Time.After(out[j].LastMessageTime.Time)
		})
	}
	s.conversations = out
}

// orderable reports whether no row has a display-only time.
func orderable(list []models.Conversation) bool {
	for _, c := range list {
		if !c.LastMessageTime.IsZero() && !c.LastMessageTime.Exact() {
			return false
		}
	}
	return true
}

// Inbound applies a message pushed by the broker.
func (s *Synchronizer) Inbound(msg models.Message) error {
	if msg.ConversationID != "" && msg.ConversationID == s.active {
		if !s.appendUnique(msg) {
			s.log.Debug("message_duplicate_dropped",
				zap.String("id", msg.ID),
				zap.String("conversation", msg.ConversationID),
			)
		}
	}

	i := s.indexOf(msg.ConversationID)
	if i < 0 {
		s.log.Warn("inbound_unknown_conversation",
			zap.String("id", msg.ID),
			zap.String("conversation", msg.ConversationID),
		)
		return ErrUnknownConversation
	}

	conv := s.conversations[i]
	conv.LastMessage = msg.Content
	at := msg.Timestamp
	if at.IsZero() {
		at = s.now()
	}
	conv.LastMessageTime = models.StampAt(at)
	if conv.ID == s.active {
		conv.UnreadCount = 0
	} else {
		conv.UnreadCount++
	}
	s.moveToHead(i, conv)
	return nil
}

// appendUnique appends msg to the thread unless it is already there. A
// pending local entry matching msg is replaced by it. Reports whether the
// thread changed.
func (s *Synchronizer) appendUnique(msg models.Message) bool {
	for i, existing := range s.messages {
		if !s.same(existing, msg) {
			continue
		}
		if existing.Pending {
			msg.Pending = false
			s.messages[i] = msg
			return true
		}
		return false
	}
	s.messages = append(s.messages, msg)
	return true
}

// same implements message identity: equal ids, or equal sender and content
// with timestamps less than the dedup window apart.
func (s *Synchronizer) same(a, b models.Message) bool {
	if a.ID != "" && a.ID == b.ID {
		return true
	}
	if a.From() != b.From() || a.Content != b.Content {
		return false
	}
	d := a.Timestamp.Sub(b.Timestamp)
	if d < 0 {
		d = -d
	}
	return d < s.window
}

// Fetch describes the history request for a newly activated conversation.
// Ctx is cancelled as soon as another conversation is activated.
type Fetch struct {
	Gen            uint64
	Ctx            context.Context
	ConversationID string
	PeerID         string
}

// Activate makes id the active conversation. Switching to a different
// conversation empties the thread straight away; its history arrives later
// through ApplyHistory.
func (s *Synchronizer) Activate(id string) (Fetch, error) {
	conv, ok := s.Conversation(id)
	if !ok {
		return Fetch{}, ErrUnknownConversation
	}

	if id != s.active {
		s.messages = nil
		s.active = id
	}

	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.gen++

	return Fetch{
		Gen:            s.gen,
		Ctx:            ctx,
		ConversationID: id,
		PeerID:         s.PeerOf(conv),
	}, nil
}

// Current reports whether gen belongs to the latest Activate call.
func (s *Synchronizer) Current(gen uint64) bool {
	return gen == s.gen
}

// ApplyHistory replaces the thread with msgs when gen is still current. It
// returns false for a stale response, which is discarded.
func (s *Synchronizer) ApplyHistory(gen uint64, msgs []models.Message) bool {
	if gen != s.gen {
		s.log.Debug("history_stale", zap.Uint64("gen", gen), zap.Uint64("current", s.gen))
		return false
	}
	s.messages = append([]models.Message(nil), msgs...)
	return true
}

// MarkRead zeroes the local unread counter of id.
func (s *Synchronizer) MarkRead(id string) {
	if i := s.indexOf(id); i >= 0 {
		s.conversations[i].UnreadCount = 0
	}
}

// Compose builds the outgoing payload for content in the active conversation
// and appends a pending copy to the thread. The pending entry is reconciled
// with the broker echo by Inbound.
func (s *Synchronizer) Compose(content string) (models.OutgoingMessage, models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.OutgoingMessage{}, models.Message{}, ErrEmptyMessage
	}
	conv, ok := s.Active()
	if !ok {
		return models.OutgoingMessage{}, models.Message{}, ErrNoActiveConversation
	}

	now := s.now().UTC()
	out := models.OutgoingMessage{
		SenderID:       s.self.UserID,
		ReceiverID:     s.PeerOf(conv),
		ConversationID: conv.ID,
		Content:        content,
		Timestamp:      now,
	}
	pending := models.Message{
		ID:             pendingPrefix + uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       s.self.UserID,
		ReceiverID:     out.ReceiverID,
		Sender:         &models.Sender{ID: s.self.UserID, Name: s.self.DisplayName},
		Content:        content,
		Timestamp:      now,
		Pending:        true,
	}
	s.messages = append(s.messages, pending)
	return out, pending, nil
}

// Sent records a send in the conversation summary, whichever transport
// carried it.
func (s *Synchronizer) Sent(out models.OutgoingMessage) {
	i := s.indexOf(out.ConversationID)
	if i < 0 {
		return
	}
	conv := s.conversations[i]
	conv.LastMessage = out.Content
	conv.LastMessageTime = models.StampAt(out.Timestamp)
	s.moveToHead(i, conv)
}

// Confirm settles a pending entry once the server accepted it without an
// echo from the broker.
func (s *Synchronizer) Confirm(pendingID string) {
	for i, m := range s.messages {
		if m.ID == pendingID {
			s.messages[i].Pending = false
			return
		}
	}
}

// Discard removes a pending entry whose delivery failed.
func (s *Synchronizer) Discard(pendingID string) {
	for i, m := range s.messages {
		if m.ID == pendingID && m.Pending {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// FindWith returns the local conversation between the current user and
// userID, if there is one.
func (s *Synchronizer) FindWith(userID string) (models.Conversation, bool) {
	for _, c := range s.conversations {
		if c.Involves(s.self.UserID, userID) {
			return c, true
		}
	}
	return models.Conversation{}, false
}

// Upsert merges conv into the list: a row with the same id, or the same pair
// of users, is updated in place and moved to the head. Anything else is
// prepended. The stored row is returned.
func (s *Synchronizer) Upsert(conv models.Conversation) models.Conversation {
	i := s.indexOf(conv.ID)
	if i < 0 {
		for j, c := range s.conversations {
			if c.Involves(conv.SenderID, conv.ReceiverID) {
				i = j
				break
			}
		}
	}
	if i < 0 {
		s.conversations = append([]models.Conversation{conv}, s.conversations...)
		return conv
	}

	merged := merge(s.conversations[i], conv)
	s.moveToHead(i, merged)
	return merged
}

func merge(dst, src models.Conversation) models.Conversation {
	if src.ID != "" {
		dst.ID = src.ID
	}
	if src.DisplayName != "" {
		dst.DisplayName = src.DisplayName
	}
	if src.LastMessage != "" {
		dst.LastMessage = src.LastMessage
	}
	if !src.LastMessageTime.IsZero() {
		dst.LastMessageTime = src.LastMessageTime
	}
	if src.SenderID != "" {
		dst.SenderID = src.SenderID
	}
	if src.ReceiverID != "" {
		dst.ReceiverID = src.ReceiverID
	}
	if src.UnreadCount != 0 {
		dst.UnreadCount = src.UnreadCount
	}
	if src.Online {
		dst.Online = true
	}
	if src.Category != "" {
		dst.Category = src.Category
	}
	if src.AvatarColor != "" {
		dst.AvatarColor = src.AvatarColor
	}
	if src.ChatID != "" {
		dst.ChatID = src.ChatID
	}
	return dst
}

// PeerOf returns the participant of conv that is not the current user.
func (s *Synchronizer) PeerOf(conv models.Conversation) string {
	if conv.SenderID == s.self.UserID {
		return conv.ReceiverID
	}
	return conv.SenderID
}

// Close cancels any history fetch still in flight.
func (s *Synchronizer) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Synchronizer) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, c := range s.conversations {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) moveToHead(i int, conv models.Conversation) {
	copy(s.conversations[1:i+1], s.conversations[:i])
	s.conversations[0] = conv
}
