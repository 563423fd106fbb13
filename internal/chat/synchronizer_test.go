package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/saravenpi/parley/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	me    = models.Session{UserID: "u1", DisplayName: "Ada", Token: "tok"}
	epoch = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
)

func fixedClock() func() time.Time {
	return func() time.Time { return epoch }
}

func conv(id, peer string, at time.Time) models.Conversation {
	return models.Conversation{ID: id, DisplayName: "with " + peer, SenderID: "u1", ReceiverID: peer, LastMessageTime: models.StampAt(at)}
}

func newSync(t *testing.T) *Synchronizer {
	t.Helper()
	s := New(me, WithClock(fixedClock()))
	s.SetConversations([]models.Conversation{
		conv("a", "u2", epoch.Add(-1*time.Minute)),
		conv("b", "u3", epoch.Add(-2*time.Minute)),
		conv("c", "u4", epoch.Add(-3*time.Minute)),
	})
	t.Cleanup(s.Close)
	return s
}

func ids(convs []models.Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.ID
	}
	return out
}

func assertUniqueIDs(t *testing.T, convs []models.Conversation) {
	t.Helper()
	seen := map[string]bool{}
	for _, c := range convs {
		assert.False(t, seen[c.ID], "conversation %s listed twice", c.ID)
		seen[c.ID] = true
	}
}

func inbound(id, convID, from, content string, at time.Time) models.Message {
	return models.Message{ID: id, ConversationID: convID, SenderID: from, Content: content, Timestamp: at}
}

func TestSetConversationsDropsDuplicatesAndOrders(t *testing.T) {
	s := New(me)
	s.SetConversations([]models.Conversation{
		conv("old", "u2", epoch.Add(-time.Hour)),
		conv("new", "u3", epoch),
		{ID: "new", DisplayName: "shadow"},
	})

	got := s.Conversations()
	assert.Equal(t, []string{"new", "old"}, ids(got))
	assert.Equal(t, "with u3", got[0].DisplayName)
}

func TestSetConversationsKeepsServerOrderForClockTimes(t *testing.T) {
	s := New(me)
	s.SetConversations([]models.Conversation{
		{ID: "x", SenderID: "u1", ReceiverID: "u2", LastMessageTime: models.ParseStamp("09:15")},
		{ID: "y", SenderID: "u1", ReceiverID: "u3", LastMessageTime: models.ParseStamp("14:32")},
		{ID: "z", SenderID: "u1", ReceiverID: "u4"},
	})
	assert.Equal(t, []string{"x", "y", "z"}, ids(s.Conversations()))

	require.NoError(t, s.Inbound(inbound("m1", "y", "u3", "hey", epoch)))
	got := s.Conversations()
	assert.Equal(t, []string{"y", "x", "z"}, ids(got))
	assert.True(t, got[0].LastMessageTime.Exact())
}

func TestInboundActiveConversationAppearsOnce(t *testing.T) {
	s := newSync(t)
	_, err := s.Activate("b")
	require.NoError(t, err)

	msg := inbound("m1", "b", "u3", "hi", epoch)
	require.NoError(t, s.Inbound(msg))
	require.NoError(t, s.Inbound(msg))

	copyWithNewID := msg
	copyWithNewID.ID = "m1-redelivered"
	copyWithNewID.Timestamp = epoch.Add(300 * time.Millisecond)
	require.NoError(t, s.Inbound(copyWithNewID))

	require.Len(t, s.Messages(), 1)
	assert.Equal(t, "m1", s.Messages()[0].ID)

	c, _ := s.Conversation("b")
	assert.Equal(t, "hi", c.LastMessage)
	assert.Zero(t, c.UnreadCount)
	assert.Equal(t, "b", s.Conversations()[0].ID)
}

func TestInboundOutsideWindowIsNewMessage(t *testing.T) {
	s := newSync(t)
	_, err := s.Activate("a")
	require.NoError(t, err)

	require.NoError(t, s.Inbound(inbound("m1", "a", "u2", "ok", epoch)))
	require.NoError(t, s.Inbound(inbound("m2", "a", "u2", "ok", epoch.Add(5*time.Second))))
	assert.Len(t, s.Messages(), 2)

	// Exactly one window apart is already a different message.
	require.NoError(t, s.Inbound(inbound("m3", "a", "u2", "ok", epoch.Add(6*time.Second))))
	assert.Len(t, s.Messages(), 3)

	require.NoError(t, s.Inbound(inbound("m4", "a", "u2", "ok", epoch.Add(6*time.Second+999*time.Millisecond))))
	assert.Len(t, s.Messages(), 3)
}

func TestInboundOtherConversationCountsUnread(t *testing.T) {
	s := newSync(t)
	_, err := s.Activate("a")
	require.NoError(t, err)

	require.NoError(t, s.Inbound(inbound("m1", "c", "u4", "ping", epoch)))
	require.NoError(t, s.Inbound(inbound("m2", "c", "u4", "pong", epoch.Add(time.Second*2))))

	assert.Empty(t, s.Messages())
	c, _ := s.Conversation("c")
	assert.Equal(t, 2, c.UnreadCount)
	assert.Equal(t, "pong", c.LastMessage)
	assert.Equal(t, []string{"c", "a", "b"}, ids(s.Conversations()))
	assertUniqueIDs(t, s.Conversations())
}

func TestInboundUnknownConversation(t *testing.T) {
	s := newSync(t)
	before := s.Conversations()

	err := s.Inbound(inbound("m1", "zzz", "u9", "hello", epoch))
	assert.ErrorIs(t, err, ErrUnknownConversation)
	assert.Equal(t, before, s.Conversations())
}

func TestActivateClearsThreadBeforeHistory(t *testing.T) {
	s := newSync(t)
	fa, err := s.Activate("a")
	require.NoError(t, err)
	require.True(t, s.ApplyHistory(fa.Gen, []models.Message{
		inbound("1", "a", "u2", "one", epoch),
		inbound("2", "a", "u1", "two", epoch),
		inbound("3", "a", "u2", "three", epoch),
	}))
	require.Len(t, s.Messages(), 3)

	fb, err := s.Activate("b")
	require.NoError(t, err)
	assert.Empty(t, s.Messages())
	assert.Equal(t, "u3", fb.PeerID)
	assert.Error(t, fa.Ctx.Err(), "previous fetch should be cancelled")
	assert.NoError(t, fb.Ctx.Err())

	require.True(t, s.ApplyHistory(fb.Gen, nil))
	assert.Empty(t, s.Messages())
}

func TestStaleHistoryDiscarded(t *testing.T) {
	s := newSync(t)
	fa, err := s.Activate("a")
	require.NoError(t, err)
	fb, err := s.Activate("b")
	require.NoError(t, err)

	assert.False(t, s.ApplyHistory(fa.Gen, []models.Message{inbound("1", "a", "u2", "late", epoch)}))
	assert.Empty(t, s.Messages())
	assert.False(t, s.Current(fa.Gen))
	assert.True(t, s.Current(fb.Gen))
}

func TestActivateSameConversationKeepsThread(t *testing.T) {
	s := newSync(t)
	f, err := s.Activate("a")
	require.NoError(t, err)
	s.ApplyHistory(f.Gen, []models.Message{inbound("1", "a", "u2", "one", epoch)})

	_, err = s.Activate("a")
	require.NoError(t, err)
	assert.Len(t, s.Messages(), 1)
}

func TestActivateUnknown(t *testing.T) {
	s := newSync(t)
	_, err := s.Activate("nope")
	assert.ErrorIs(t, err, ErrUnknownConversation)
	assert.Empty(t, s.ActiveID())
}

func TestMarkReadIsIdempotent(t *testing.T) {
	s := newSync(t)
	require.NoError(t, s.Inbound(inbound("m1", "b", "u3", "hi", epoch)))
	c, _ := s.Conversation("b")
	require.Equal(t, 1, c.UnreadCount)

	s.MarkRead("b")
	once := s.Conversations()
	s.MarkRead("b")
	assert.Equal(t, once, s.Conversations())
	c, _ = s.Conversation("b")
	assert.Zero(t, c.UnreadCount)
}

func TestComposeAndEchoReconcile(t *testing.T) {
	s := newSync(t)
	_, err := s.Activate("c")
	require.NoError(t, err)

	out, pending, err := s.Compose("  hello there  ")
	require.NoError(t, err)
	assert.Equal(t, "hello there", out.Content)
	assert.Equal(t, "u1", out.SenderID)
	assert.Equal(t, "u4", out.ReceiverID)
	assert.Equal(t, "c", out.ConversationID)
	assert.True(t, pending.Pending)
	assert.NotEmpty(t, pending.ID)

	s.Sent(out)
	assert.Equal(t, "c", s.Conversations()[0].ID)
	assert.Equal(t, "hello there", s.Conversations()[0].LastMessage)

	echo := models.Message{
		ID: "srv-1", ConversationID: "c",
		Sender:    &models.Sender{ID: "u1", Name: "Ada"},
		Content:   "hello there",
		Timestamp: epoch.Add(200 * time.Millisecond),
	}
	require.NoError(t, s.Inbound(echo))
	require.NoError(t, s.Inbound(echo))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "srv-1", msgs[0].ID)
	assert.False(t, msgs[0].Pending)
}

func TestComposeRejectsEmptyAndInactive(t *testing.T) {
	s := newSync(t)
	_, _, err := s.Compose("hello")
	assert.ErrorIs(t, err, ErrNoActiveConversation)

	_, err = s.Activate("a")
	require.NoError(t, err)
	_, _, err = s.Compose(" \n\t ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, s.Messages())
}

func TestDiscardRemovesPendingOnly(t *testing.T) {
	s := newSync(t)
	f, err := s.Activate("a")
	require.NoError(t, err)
	s.ApplyHistory(f.Gen, []models.Message{inbound("1", "a", "u2", "one", epoch)})

	_, pending, err := s.Compose("two")
	require.NoError(t, err)
	require.Len(t, s.Messages(), 2)

	s.Discard("1")
	s.Discard(pending.ID)
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "1", msgs[0].ID)
}

func TestFindWith(t *testing.T) {
	s := newSync(t)
	s.Upsert(models.Conversation{ID: "d", SenderID: "u7", ReceiverID: "u1"})

	c, ok := s.FindWith("u7")
	require.True(t, ok)
	assert.Equal(t, "d", c.ID)
	assert.Equal(t, "u7", s.PeerOf(c))

	_, ok = s.FindWith("u99")
	assert.False(t, ok)
}

func TestUpsertMergesKnownID(t *testing.T) {
	s := newSync(t)
	got := s.Upsert(models.Conversation{ID: "c", DisplayName: "Renamed", SenderID: "u1", ReceiverID: "u4"})

	convs := s.Conversations()
	require.Len(t, convs, 3)
	assertUniqueIDs(t, convs)
	assert.Equal(t, "c", convs[0].ID)
	assert.Equal(t, "Renamed", got.DisplayName)
	assert.Equal(t, epoch.Add(-3*time.Minute), got.LastMessageTime.Time)
}

func TestUpsertMergesKnownPair(t *testing.T) {
	s := newSync(t)
	s.Upsert(models.Conversation{ID: "b2", SenderID: "u3", ReceiverID: "u1"})

	convs := s.Conversations()
	require.Len(t, convs, 3)
	assert.Equal(t, "b2", convs[0].ID)
	_, ok := s.Conversation("b")
	assert.False(t, ok)
}

func TestUpsertPrependsNew(t *testing.T) {
	s := newSync(t)
	s.Upsert(models.Conversation{ID: "z", SenderID: "u1", ReceiverID: "u9"})
	assert.Equal(t, []string{"z", "a", "b", "c"}, ids(s.Conversations()))
}

func TestConversationIDsStayUnique(t *testing.T) {
	s := newSync(t)
	_, err := s.Activate("a")
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		id := []string{"a", "b", "c", "d"}[i%4]
		s.Upsert(models.Conversation{ID: id, SenderID: "u1", ReceiverID: fmt.Sprintf("p%d", i%4)})
		_ = s.Inbound(inbound(fmt.Sprintf("m%d", i), id, "u2", "x", epoch.Add(time.Duration(i)*time.Hour)))
		out, _, err := s.Compose(fmt.Sprintf("reply %d", i))
		require.NoError(t, err)
		s.Sent(out)
		assertUniqueIDs(t, s.Conversations())
	}
}

type fakePublisher struct {
	ok    bool
	calls int
}

func (p *fakePublisher) Send(models.OutgoingMessage) bool {
	p.calls++
	return p.ok
}

type fakePoster struct {
	err   error
	calls int
}

func (p *fakePoster) SendMessage(context.Context, models.OutgoingMessage) error {
	p.calls++
	return p.err
}

func TestDeliverUsesChannelWhenConnected(t *testing.T) {
	pub, post := &fakePublisher{ok: true}, &fakePoster{}
	viaREST, err := Deliver(context.Background(), pub, post, models.OutgoingMessage{Content: "hi"})
	require.NoError(t, err)
	assert.False(t, viaREST)
	assert.Equal(t, 1, pub.calls)
	assert.Zero(t, post.calls)
}

func TestDeliverFallsBackOnce(t *testing.T) {
	pub, post := &fakePublisher{ok: false}, &fakePoster{}
	viaREST, err := Deliver(context.Background(), pub, post, models.OutgoingMessage{Content: "hi"})
	require.NoError(t, err)
	assert.True(t, viaREST)
	assert.Equal(t, 1, post.calls)

	_, err = Deliver(context.Background(), nil, post, models.OutgoingMessage{Content: "again"})
	require.NoError(t, err)
	assert.Equal(t, 2, post.calls)
}

func TestDeliverFallbackError(t *testing.T) {
	post := &fakePoster{err: assert.AnError}
	viaREST, err := Deliver(context.Background(), &fakePublisher{}, post, models.OutgoingMessage{})
	assert.True(t, viaREST)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, post.calls)
}

func TestConfirmSettlesPending(t *testing.T) {
	s := newSync(t)
	_, err := s.Activate("a")
	require.NoError(t, err)
	_, pending, err := s.Compose("over rest")
	require.NoError(t, err)

	s.Confirm(pending.ID)
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].Pending)

	s.Discard(pending.ID)
	assert.Len(t, s.Messages(), 1, "confirmed messages are not discarded")
}
