// Package app wires configuration, persistence and the backend clients into
// the objects the UI works with.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/saravenpi/parley/internal/api"
	"github.com/saravenpi/parley/internal/chat"
	"github.com/saravenpi/parley/internal/config"
	"github.com/saravenpi/parley/internal/models"
	"github.com/saravenpi/parley/internal/realtime"
	"github.com/saravenpi/parley/internal/session"
	"go.uber.org/zap"
)

const eventBuffer = 256

// Env holds what exists before anyone logs in.
type Env struct {
	Config config.Config
	Store  *session.Store
	API    *api.Client
	Log    *zap.Logger

	// Dial overrides the broker dialer. Nil means a websocket to
	// Config.BrokerURL.
	Dial func(identity models.Session) realtime.Dialer
}

func NewEnv(cfg config.Config, logger *zap.Logger) (*Env, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := session.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return &Env{
		Config: cfg,
		Store:  store,
		API:    api.New(cfg.APIURL, cfg.RequestTimeout, logger.Named("api")),
		Log:    logger,
	}, nil
}

func (e *Env) Close() error {
	return e.Store.Close()
}

// Resume returns the saved session, or session.ErrNoSession.
func (e *Env) Resume() (models.Session, error) {
	return e.Store.Load()
}

// Login authenticates and persists the resulting session.
func (e *Env) Login(ctx context.Context, phoneNumber, password string) (models.Session, error) {
	sess, err := e.API.Login(ctx, phoneNumber, password)
	if err != nil {
		return models.Session{}, err
	}
	if err := e.Store.Save(sess.Token, sess.UserID, sess.DisplayName); err != nil {
		return models.Session{}, fmt.Errorf("failed to persist session: %w", err)
	}
	e.Log.Info("login", zap.String("user_id", sess.UserID))
	return sess, nil
}

// Signup registers an account and logs straight into it.
func (e *Env) Signup(ctx context.Context, name, phoneNumber, password string) (models.Session, error) {
	if err := e.API.Register(ctx, name, phoneNumber, password); err != nil {
		return models.Session{}, err
	}
	e.Log.Info("registered", zap.String("phone_number", phoneNumber))
	return e.Login(ctx, phoneNumber, password)
}

func (e *Env) ResetPassword(ctx context.Context, phoneNumber, newPassword string) error {
	return e.API.ResetPassword(ctx, phoneNumber, newPassword)
}

func (e *Env) dialer(identity models.Session) realtime.Dialer {
	if e.Dial != nil {
		return e.Dial(identity)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+identity.Token)
	return realtime.WebsocketDialer(e.Config.BrokerURL, header)
}

// InboundEvent carries a message pushed by the broker.
type InboundEvent struct {
	Message models.Message
}

// StateEvent reports a change of the real-time connection.
type StateEvent struct {
	State realtime.State
}

// Session is everything that lives for one authenticated login: the signed
// REST client, the real-time channel and the conversation state.
type Session struct {
	Identity models.Session
	API      *api.Client
	Channel  *realtime.Channel
	Sync     *chat.Synchronizer

	env       *Env
	log       *zap.Logger
	events    chan any
	done      chan struct{}
	closeOnce sync.Once
}

// Open builds the session for identity and starts connecting the channel.
// Close must be called to release it.
func Open(env *Env, identity models.Session) (*Session, error) {
	if !identity.Valid() {
		return nil, errors.New("open session: identity has no token or user id")
	}

	log := env.Log.With(zap.String("user_id", identity.UserID))
	s := &Session{
		Identity: identity,
		API:      env.API.WithSession(identity),
		Sync: chat.New(identity,
			chat.WithDedupWindow(env.Config.DedupWindow),
			chat.WithLogger(log.Named("sync")),
		),
		env:    env,
		log:    log,
		events: make(chan any, eventBuffer),
		done:   make(chan struct{}),
	}

	s.Channel = realtime.New(realtime.Options{
		UserID:         identity.UserID,
		Token:          identity.Token,
		Host:           env.Config.BrokerHost(),
		Dial:           env.dialer(identity),
		ReconnectDelay: env.Config.ReconnectDelay,
		HeartBeat:      env.Config.HeartBeat,
		Logger:         log.Named("realtime"),
	}, realtime.Handlers{
		OnMessage: func(m models.Message) {
			s.forward(InboundEvent{Message: m})
		},
		OnStateChange: func(st realtime.State) {
			s.forward(StateEvent{State: st})
		},
	})
	s.Channel.Connect()

	log.Info("session_opened")
	return s, nil
}

// Events delivers InboundEvent and StateEvent values until Close.
func (s *Session) Events() <-chan any {
	return s.events
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) forward(ev any) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Close disconnects the channel. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.Channel.Disconnect()
		s.Sync.Close()
		s.log.Info("session_closed")
	})
}

// Logout closes the session and forgets the saved credentials.
func (s *Session) Logout() error {
	s.Close()
	if err := s.env.Store.Clear(); err != nil {
		return err
	}
	s.log.Info("logout")
	return nil
}
