package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/server"
	"github.com/saravenpi/parley/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second

func startBroker(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	go func() { _ = server.Serve(l) }()
	return l.Addr().String()
}

func tcpDialer(addr string) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
}

func peer(t *testing.T, addr string) *stomp.Conn {
	t.Helper()
	conn, err := stomp.Dial("tcp", addr, stomp.ConnOpt.HeartBeat(0, 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Disconnect() })
	return conn
}

type recorder struct {
	mu       sync.Mutex
	states   []State
	messages []models.Message
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnMessage: func(m models.Message) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.messages = append(r.messages, m)
		},
		OnStateChange: func(s State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, s)
		},
	}
}

func (r *recorder) received() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Message(nil), r.messages...)
}

func (r *recorder) seen() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func newChannel(dial Dialer, rec *recorder) *Channel {
	return New(Options{
		UserID:         "u1",
		Token:          "tok-1",
		Dial:           dial,
		ReconnectDelay: 10 * time.Millisecond,
	}, rec.handlers())
}

func waitConnected(t *testing.T, ch *Channel) {
	t.Helper()
	require.Eventually(t, func() bool { return ch.State() == Connected }, waitFor, 5*time.Millisecond)
}

func TestChannelConnects(t *testing.T) {
	addr := startBroker(t)
	rec := &recorder{}
	ch := newChannel(tcpDialer(addr), rec).Connect()
	defer ch.Disconnect()

	waitConnected(t, ch)
	assert.Equal(t, []State{Connecting, Connected}, rec.seen())
}

func TestChannelDeliversInbound(t *testing.T) {
	addr := startBroker(t)
	rec := &recorder{}
	ch := newChannel(tcpDialer(addr), rec).Connect()
	defer ch.Disconnect()
	waitConnected(t, ch)

	body, err := json.Marshal(models.Message{
		ID: "m1", ConversationID: "c1", SenderID: "u2", Content: "hi", Timestamp: time.Now(),
	})
	require.NoError(t, err)

	sender := peer(t, addr)
	// The subscription may land a moment after the state flips; resend until seen.
	require.Eventually(t, func() bool {
		_ = sender.Send(QueueFor("u1"), "application/json", body)
		return len(rec.received()) > 0
	}, waitFor, 20*time.Millisecond)

	got := rec.received()[0]
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, "u2", got.From())
	assert.Equal(t, "hi", got.Content)
}

func TestChannelSend(t *testing.T) {
	addr := startBroker(t)
	listener := peer(t, addr)
	sub, err := listener.Subscribe(sendDestination, stomp.AckAuto)
	require.NoError(t, err)

	rec := &recorder{}
	ch := newChannel(tcpDialer(addr), rec).Connect()
	defer ch.Disconnect()
	waitConnected(t, ch)

	out := models.OutgoingMessage{SenderID: "u1", ReceiverID: "u2", ConversationID: "c1", Content: "hello"}
	require.True(t, ch.Send(out))

	select {
	case msg := <-sub.C:
		require.NoError(t, msg.Err)
		var got models.OutgoingMessage
		require.NoError(t, json.Unmarshal(msg.Body, &got))
		assert.Equal(t, "hello", got.Content)
		assert.Equal(t, "c1", got.ConversationID)
	case <-time.After(waitFor):
		t.Fatal("broker never received the message")
	}
}

func TestChannelSendWhileDisconnected(t *testing.T) {
	ch := newChannel(nil, &recorder{})
	assert.False(t, ch.Send(models.OutgoingMessage{Content: "hello"}))
	assert.Equal(t, Disconnected, ch.State())
}

func TestChannelDisconnectIsIdempotent(t *testing.T) {
	addr := startBroker(t)
	rec := &recorder{}
	ch := newChannel(tcpDialer(addr), rec).Connect()
	waitConnected(t, ch)

	ch.Disconnect()
	ch.Disconnect()

	assert.Equal(t, Disconnected, ch.State())
	assert.Equal(t, []State{Connecting, Connected, Disconnected}, rec.seen())
	assert.False(t, ch.Send(models.OutgoingMessage{Content: "late"}))
}

func TestChannelConnectTwiceDialsOnce(t *testing.T) {
	addr := startBroker(t)
	var dials atomic.Int32
	base := tcpDialer(addr)
	dial := func(ctx context.Context) (io.ReadWriteCloser, error) {
		dials.Add(1)
		return base(ctx)
	}

	ch := newChannel(dial, &recorder{})
	ch.Connect()
	ch.Connect()
	defer ch.Disconnect()

	waitConnected(t, ch)
	ch.Connect()
	assert.EqualValues(t, 1, dials.Load())
}

func TestChannelReconnectsAfterFailure(t *testing.T) {
	addr := startBroker(t)
	var dials atomic.Int32
	base := tcpDialer(addr)
	dial := func(ctx context.Context) (io.ReadWriteCloser, error) {
		if dials.Add(1) == 1 {
			return nil, errors.New("broker unavailable")
		}
		return base(ctx)
	}

	rec := &recorder{}
	ch := newChannel(dial, rec).Connect()
	defer ch.Disconnect()

	waitConnected(t, ch)
	assert.EqualValues(t, 2, dials.Load())
	assert.Equal(t, []State{Connecting, Disconnected, Connecting, Connected}, rec.seen())
}

func TestChannelReconnectsAfterDrop(t *testing.T) {
	addr := startBroker(t)
	base := tcpDialer(addr)

	var mu sync.Mutex
	var streams []io.ReadWriteCloser
	dial := func(ctx context.Context) (io.ReadWriteCloser, error) {
		stream, err := base(ctx)
		if err == nil {
			mu.Lock()
			streams = append(streams, stream)
			mu.Unlock()
		}
		return stream, err
	}
	dialed := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(streams)
	}

	rec := &recorder{}
	ch := newChannel(dial, rec).Connect()
	defer ch.Disconnect()
	waitConnected(t, ch)

	mu.Lock()
	first := streams[0]
	mu.Unlock()
	require.NoError(t, first.Close())

	require.Eventually(t, func() bool {
		return dialed() == 2 && ch.State() == Connected
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, []State{Connecting, Connected, Disconnected, Connecting, Connected}, rec.seen())

	body, err := json.Marshal(models.Message{
		ID: "m2", ConversationID: "c1", SenderID: "u2", Content: "back again", Timestamp: time.Now(),
	})
	require.NoError(t, err)

	sender := peer(t, addr)
	require.Eventually(t, func() bool {
		_ = sender.Send(QueueFor("u1"), "application/json", body)
		return len(rec.received()) > 0
	}, waitFor, 20*time.Millisecond)
	assert.Equal(t, "back again", rec.received()[0].Content)
}

func TestChannelStopsRetryingAfterDisconnect(t *testing.T) {
	var dials atomic.Int32
	dial := func(ctx context.Context) (io.ReadWriteCloser, error) {
		dials.Add(1)
		return nil, errors.New("broker unavailable")
	}

	ch := newChannel(dial, &recorder{}).Connect()
	require.Eventually(t, func() bool { return dials.Load() >= 2 }, waitFor, 5*time.Millisecond)

	ch.Disconnect()
	settled := dials.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, dials.Load(), settled+1)
	assert.Equal(t, Disconnected, ch.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
}
