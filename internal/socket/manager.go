// Package socket owns the persistent connection to the chat server: the
// authenticated connect, disconnect detection, backoff reconnection, and
// the typed event stream the rest of the engine consumes.
package socket

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pulsechat/pulsechat-go/internal/model"
	"github.com/pulsechat/pulsechat-go/pkg/logger"
	"github.com/pulsechat/pulsechat-go/pkg/metrics"
)

const (
	defaultEventBuffer = 64
	writeTimeout       = 10 * time.Second
)

// Conn abstracts one open transport connection so tests can script frames.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens a transport connection to the given URL.
type Dialer func(ctx context.Context, rawURL string) (Conn, error)

// Config holds connection manager settings.
type Config struct {
	// ServerURL is the chat server base URL (http/https); it is rewritten
	// to ws/wss for dialing.
	ServerURL  string
	SocketPath string

	BaseDelay   time.Duration
	MaxDelay    time.Duration
	EventBuffer int
}

type credentials struct {
	userID int64
	token  string
}

// Manager owns the single physical socket. It emits typed events on a
// buffered channel in transport delivery order and reconnects with
// backoff after unexpected disconnects. Retries are uncapped: the delay
// ramps linearly and then holds at the configured ceiling.
type Manager struct {
	cfg    Config
	dial   Dialer
	log    *logger.Logger
	events chan model.Event

	mu         sync.Mutex
	state      model.ConnectionState
	attempt    int
	conn       Conn
	cancelRead context.CancelFunc
	retryTimer *time.Timer
	creds      credentials
	halted     bool
}

// NewManager creates a connection manager. A nil dialer uses the
// websocket transport.
func NewManager(cfg Config, dial Dialer, log *logger.Logger) *Manager {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	if dial == nil {
		dial = WebsocketDialer()
	}
	return &Manager{
		cfg:    cfg,
		dial:   dial,
		log:    log,
		events: make(chan model.Event, cfg.EventBuffer),
		state:  model.StateDisconnected,
	}
}

// Events returns the inbound event stream. Events are delivered in the
// order the transport delivered them; the manager never reorders,
// batches, or coalesces.
func (m *Manager) Events() <-chan model.Event {
	return m.events
}

// State returns the current connection state.
func (m *Manager) State() model.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempt returns the current reconnect attempt counter.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Connect opens the socket with connection-level credentials. It is
// idempotent: a no-op while connected or connecting. A pending backoff
// timer is cancelled so only one physical connection can exist.
func (m *Manager) Connect(ctx context.Context, userID int64, token string) error {
	m.mu.Lock()
	if m.state == model.StateConnected || m.state == model.StateConnecting {
		m.mu.Unlock()
		return nil
	}
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.creds = credentials{userID: userID, token: token}
	m.halted = false
	m.state = model.StateConnecting
	attempt := m.attempt
	m.mu.Unlock()

	m.emitState(model.StateConnecting, attempt)

	conn, err := m.dial(ctx, m.socketURL())
	if err != nil {
		m.mu.Lock()
		m.state = model.StateDisconnected
		halted := m.halted
		attempt = m.attempt
		m.mu.Unlock()

		m.emitState(model.StateDisconnected, attempt)
		if !halted {
			m.scheduleReconnect()
		}
		return fmt.Errorf("dial socket: %w", err)
	}

	m.mu.Lock()
	if m.halted {
		// Disconnect raced the dial; drop the fresh connection.
		m.state = model.StateDisconnected
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.conn = conn
	m.state = model.StateConnected
	m.attempt = 0
	readCtx, cancel := context.WithCancel(context.Background())
	m.cancelRead = cancel
	m.mu.Unlock()

	m.log.Info("socket connected", zap.Int64("user_id", userID))
	m.emitState(model.StateConnected, 0)

	go m.readLoop(readCtx, conn)
	return nil
}

// Disconnect closes the transport and halts reconnection, including any
// pending backoff timer.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.halted = true
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.cancelRead != nil {
		m.cancelRead()
		m.cancelRead = nil
	}
	conn := m.conn
	m.conn = nil
	wasDisconnected := m.state == model.StateDisconnected
	m.state = model.StateDisconnected
	m.attempt = 0
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if !wasDisconnected {
		m.emitState(model.StateDisconnected, 0)
	}
}

// Send dispatches an outbound command. It fails with ErrNotConnected when
// the socket is not open; nothing is buffered or replayed.
func (m *Manager) Send(ctx context.Context, cmd model.Command) error {
	m.mu.Lock()
	conn := m.conn
	state := m.state
	m.mu.Unlock()

	if state != model.StateConnected || conn == nil {
		m.log.Warn("send while not connected",
			zap.String("command", cmd.CommandType()),
			zap.String("state", string(state)),
		)
		return model.ErrNotConnected
	}

	data, err := model.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, data); err != nil {
		return fmt.Errorf("write %s: %w", cmd.CommandType(), err)
	}
	return nil
}

func (m *Manager) readLoop(ctx context.Context, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			m.mu.Lock()
			halted := m.halted
			if m.conn == conn {
				m.conn = nil
				m.state = model.StateDisconnected
			}
			attempt := m.attempt
			m.mu.Unlock()

			if halted {
				return
			}

			m.log.Warn("socket dropped", zap.Error(err))
			m.emitState(model.StateDisconnected, attempt)
			m.scheduleReconnect()
			return
		}

		ev, err := model.DecodeEvent(data)
		if err != nil {
			m.log.Warn("undecodable frame", zap.Error(err))
			continue
		}

		metrics.EventsTotal.WithLabelValues(eventName(ev)).Inc()
		m.events <- ev
	}
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.halted || m.retryTimer != nil {
		m.mu.Unlock()
		return
	}
	m.attempt++
	attempt := m.attempt
	creds := m.creds
	delay := Delay(attempt, m.cfg.BaseDelay, m.cfg.MaxDelay)
	m.retryTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		m.retryTimer = nil
		m.mu.Unlock()
		// Errors reschedule internally; nothing to surface here.
		_ = m.Connect(context.Background(), creds.userID, creds.token)
	})
	m.mu.Unlock()

	metrics.ReconnectAttemptsTotal.Inc()
	m.log.Info("reconnect scheduled",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
	)
}

func (m *Manager) emitState(state model.ConnectionState, attempt int) {
	metrics.RecordState(string(state))
	m.events <- model.StateChanged{State: state, Attempt: attempt}
}

func (m *Manager) socketURL() string {
	u := m.cfg.ServerURL
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	u = strings.TrimRight(u, "/") + m.cfg.SocketPath

	m.mu.Lock()
	creds := m.creds
	m.mu.Unlock()

	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(creds.userID, 10))
	q.Set("token", creds.token)
	return u + "?" + q.Encode()
}

func eventName(ev model.Event) string {
	switch ev.(type) {
	case model.NewMessage:
		return model.EventNewMessage
	case model.MessageRead:
		return model.EventMessageRead
	case model.ConversationRead:
		return model.EventConversationRead
	case model.UserStatusChanged:
		return model.EventUserStatus
	case model.MemberJoined:
		return model.EventUserJoined
	case model.MemberLeft:
		return model.EventUserLeft
	default:
		return "state_changed"
	}
}
