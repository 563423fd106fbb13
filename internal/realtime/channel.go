package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/saravenpi/parley/internal/models"
	"go.uber.org/zap"
)

const (
	sendDestination   = "/app/chat"
	statusDestination = "/user/topic"

	disconnectTimeout = 2 * time.Second
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// QueueFor is the private destination chat messages for userID arrive on.
func QueueFor(userID string) string {
	return fmt.Sprintf("/user/%s/queue/messages", userID)
}

type Options struct {
	UserID         string
	Token          string
	Host           string
	Dial           Dialer
	ReconnectDelay time.Duration
	HeartBeat      time.Duration
	Logger         *zap.Logger
}

// Handlers are called from the channel's own goroutines.
type Handlers struct {
	OnMessage     func(models.Message)
	OnStateChange func(State)
}

// Channel is a reconnecting STOMP client bound to one user. It never queues
// outgoing messages: Send either hands the frame to the broker connection or
// reports false.
type Channel struct {
	opts     Options
	handlers Handlers
	log      *zap.Logger

	mu      sync.Mutex
	state   State
	conn    *stomp.Conn
	stream  io.ReadWriteCloser
	epoch   uint64
	stopped bool
	cancel  context.CancelFunc
	retry   *time.Timer
}

func New(opts Options, handlers Handlers) *Channel {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Channel{
		opts:     opts,
		handlers: handlers,
		log:      opts.Logger.With(zap.String("user", opts.UserID)),
	}
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts connecting in the background. It is a no-op while the
// channel is already connecting or connected.
func (c *Channel) Connect() *Channel {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return c
	}
	c.stopped = false
	notify := c.startLocked()
	c.mu.Unlock()

	notify()
	return c
}

// startLocked moves to Connecting and launches a connection attempt.
func (c *Channel) startLocked() func() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.epoch++
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(ctx, c.epoch)
	return c.setStateLocked(Connecting)
}

func (c *Channel) run(ctx context.Context, epoch uint64) {
	stream, conn, chat, status, err := c.dial(ctx)
	if err != nil {
		c.log.Warn("channel_connect_failed", zap.Error(err), zap.Duration("retry_in", c.opts.ReconnectDelay))
		c.lost(epoch)
		return
	}

	c.mu.Lock()
	if epoch != c.epoch || c.stopped {
		c.mu.Unlock()
		c.teardown(stream, conn)
		return
	}
	c.conn = conn
	c.stream = stream
	notify := c.setStateLocked(Connected)
	c.mu.Unlock()

	c.log.Info("channel_connected")
	notify()

	go c.consumeStatus(status)
	c.consumeChat(chat)
	c.lost(epoch)
}

func (c *Channel) dial(ctx context.Context) (io.ReadWriteCloser, *stomp.Conn, *stomp.Subscription, *stomp.Subscription, error) {
	if c.opts.Dial == nil {
		return nil, nil, nil, nil, fmt.Errorf("no dialer configured")
	}

	stream, err := c.opts.Dial(ctx)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("dial: %w", err)
	}

	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.HeartBeat(c.opts.HeartBeat, c.opts.HeartBeat),
	}
	if c.opts.Host != "" {
		opts = append(opts, stomp.ConnOpt.Host(c.opts.Host))
	}
	if c.opts.Token != "" {
		opts = append(opts, stomp.ConnOpt.Header("Authorization", "Bearer "+c.opts.Token))
	}

	conn, err := stomp.Connect(stream, opts...)
	if err != nil {
		stream.Close()
		return nil, nil, nil, nil, fmt.Errorf("stomp connect: %w", err)
	}

	chat, err := conn.Subscribe(QueueFor(c.opts.UserID), stomp.AckAuto)
	if err != nil {
		c.teardown(stream, conn)
		return nil, nil, nil, nil, fmt.Errorf("subscribe %s: %w", QueueFor(c.opts.UserID), err)
	}

	status, err := conn.Subscribe(statusDestination, stomp.AckAuto)
	if err != nil {
		c.teardown(stream, conn)
		return nil, nil, nil, nil, fmt.Errorf("subscribe %s: %w", statusDestination, err)
	}

	return stream, conn, chat, status, nil
}

func (c *Channel) consumeChat(sub *stomp.Subscription) {
	for msg := range sub.C {
		if msg.Err != nil {
			c.log.Warn("channel_receive_failed", zap.Error(msg.Err))
			return
		}

		var message models.Message
		if err := json.Unmarshal(msg.Body, &message); err != nil {
			c.log.Warn("channel_decode_failed", zap.Error(err), zap.ByteString("body", msg.Body))
			continue
		}

		c.log.Debug("channel_message",
			zap.String("id", message.ID),
			zap.String("conversation", message.ConversationID),
		)
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(message)
		}
	}
}

func (c *Channel) consumeStatus(sub *stomp.Subscription) {
	for msg := range sub.C {
		if msg.Err != nil {
			return
		}

		var update models.StatusUpdate
		if err := json.Unmarshal(msg.Body, &update); err != nil {
			c.log.Info("user_status_update", zap.ByteString("raw", msg.Body))
			continue
		}
		c.log.Info("user_status_update",
			zap.String("user_id", update.UserID),
			zap.String("status", update.Status),
		)
	}
}

// lost handles the end of a connection attempt or of a live connection, and
// schedules a reconnect unless the channel was disconnected on purpose.
func (c *Channel) lost(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch || c.stopped {
		c.mu.Unlock()
		return
	}

	stream, conn := c.stream, c.conn
	c.stream, c.conn = nil, nil
	notify := c.setStateLocked(Disconnected)
	c.retry = time.AfterFunc(c.opts.ReconnectDelay, c.reconnect)
	c.mu.Unlock()

	if conn != nil {
		c.log.Info("channel_closed", zap.Duration("retry_in", c.opts.ReconnectDelay))
		// The broker is gone; there is no receipt to wait for.
		_ = conn.MustDisconnect()
		stream.Close()
	}
	notify()
}

func (c *Channel) reconnect() {
	c.mu.Lock()
	if c.stopped || c.state != Disconnected {
		c.mu.Unlock()
		return
	}
	c.retry = nil
	c.log.Info("channel_reconnecting")
	notify := c.startLocked()
	c.mu.Unlock()

	notify()
}

// Send publishes msg if the channel is connected right now. A false return
// means the caller should use another path; nothing is retried here.
func (c *Channel) Send(msg models.OutgoingMessage) bool {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == Connected && conn != nil
	c.mu.Unlock()

	if !connected {
		c.log.Debug("channel_send_skipped", zap.String("reason", "not connected"))
		return false
	}

	body, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("channel_encode_failed", zap.Error(err))
		return false
	}

	if err := conn.Send(sendDestination, "application/json", body); err != nil {
		c.log.Warn("channel_send_failed", zap.Error(err))
		return false
	}
	return true
}

// Disconnect stops the channel and any pending reconnect. Safe to call more
// than once.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.stopped = true
	c.epoch++
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	stream, conn := c.stream, c.conn
	c.stream, c.conn = nil, nil
	notify := c.setStateLocked(Disconnected)
	c.mu.Unlock()

	if conn != nil {
		c.teardown(stream, conn)
		c.log.Info("channel_disconnected")
	}
	notify()
}

// teardown sends DISCONNECT and waits briefly for the receipt before closing
// the stream underneath.
func (c *Channel) teardown(stream io.ReadWriteCloser, conn *stomp.Conn) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := conn.Disconnect(); err != nil {
			c.log.Debug("stomp_disconnect", zap.Error(err))
		}
	}()

	select {
	case <-done:
	case <-time.After(disconnectTimeout):
	}
	if stream != nil {
		stream.Close()
	}
}

// setStateLocked records the new state and returns the notification to run
// once the lock is released.
func (c *Channel) setStateLocked(s State) func() {
	if c.state == s {
		return func() {}
	}
	c.state = s
	handler := c.handlers.OnStateChange
	return func() {
		if handler != nil {
			handler(s)
		}
	}
}
