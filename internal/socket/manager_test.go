package socket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulsechat/pulsechat-go/internal/model"
	"github.com/pulsechat/pulsechat-go/pkg/logger"
)

// fakeConn is a scriptable transport connection.
type fakeConn struct {
	frames chan []byte
	closed chan struct{}

	mu     sync.Mutex
	writes [][]byte
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.closed:
		return nil, errors.New("connection dropped")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	c.writes = append(c.writes, data)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) drop() { c.Close() }

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// fakeDialer replays a script of outcomes: a nil error hands out a fresh
// fakeConn, anything else fails the dial. The script's last entry repeats.
type fakeDialer struct {
	mu     sync.Mutex
	script []error
	conns  []*fakeConn
	dials  int
}

func (d *fakeDialer) dial(ctx context.Context, rawURL string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.dials
	d.dials++
	if i >= len(d.script) {
		i = len(d.script) - 1
	}
	if err := d.script[i]; err != nil {
		return nil, err
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func newTestManager(t *testing.T, d *fakeDialer) *Manager {
	t.Helper()
	m := NewManager(Config{
		ServerURL:  "http://chat.test",
		SocketPath: "/ws",
		BaseDelay:  2 * time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
	}, d.dial, logger.NewNop())
	t.Cleanup(m.Disconnect)
	return m
}

func frame(t *testing.T, eventType string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(model.Envelope{Type: eventType, Payload: raw})
	require.NoError(t, err)
	return data
}

func TestConnectDeliversEventsInOrder(t *testing.T) {
	d := &fakeDialer{script: []error{nil}}
	m := newTestManager(t, d)

	require.NoError(t, m.Connect(context.Background(), 1, "tok"))
	require.Equal(t, model.StateConnected, m.State())

	conn := d.lastConn()
	conn.frames <- frame(t, model.EventNewMessage, model.Message{
		ID: 10, ConversationID: 5, SenderID: 2, Content: "hi",
	})
	conn.frames <- frame(t, model.EventMessageRead, model.MessageRead{
		MessageID: 10, UserID: 2, ConversationID: 5,
	})
	conn.frames <- frame(t, model.EventUserStatus, model.UserStatusChanged{
		UserID: 2, Status: model.UserStatusOnline,
	})

	var got []model.Event
	timeout := time.After(2 * time.Second)
	for len(got) < 5 {
		select {
		case ev := <-m.Events():
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out after %d events", len(got))
		}
	}

	require.Equal(t, model.StateChanged{State: model.StateConnecting}, got[0])
	require.Equal(t, model.StateChanged{State: model.StateConnected}, got[1])

	nm, ok := got[2].(model.NewMessage)
	require.True(t, ok, "expected NewMessage, got %T", got[2])
	require.Equal(t, int64(10), nm.Message.ID)
	require.Equal(t, "hi", nm.Message.Content)

	mr, ok := got[3].(model.MessageRead)
	require.True(t, ok, "expected MessageRead, got %T", got[3])
	require.Equal(t, int64(10), mr.MessageID)

	us, ok := got[4].(model.UserStatusChanged)
	require.True(t, ok, "expected UserStatusChanged, got %T", got[4])
	require.Equal(t, model.UserStatusOnline, us.Status)
}

func TestConnectIsIdempotent(t *testing.T) {
	d := &fakeDialer{script: []error{nil}}
	m := newTestManager(t, d)

	require.NoError(t, m.Connect(context.Background(), 1, "tok"))
	require.NoError(t, m.Connect(context.Background(), 1, "tok"))
	require.Equal(t, 1, d.dialCount())
}

func TestSendWhileDisconnected(t *testing.T) {
	d := &fakeDialer{script: []error{nil}}
	m := newTestManager(t, d)

	err := m.Send(context.Background(), model.MarkRead{MessageID: 7})
	require.ErrorIs(t, err, model.ErrNotConnected)
}

func TestSendWritesEncodedCommand(t *testing.T) {
	d := &fakeDialer{script: []error{nil}}
	m := newTestManager(t, d)

	require.NoError(t, m.Connect(context.Background(), 1, "tok"))
	require.NoError(t, m.Send(context.Background(), model.JoinConversation{ConversationID: 42}))

	writes := d.lastConn().written()
	require.Len(t, writes, 1)

	var env model.Envelope
	require.NoError(t, json.Unmarshal(writes[0], &env))
	require.Equal(t, model.CommandJoinConversation, env.Type)
}

func TestReconnectAfterFailuresResetsAttempt(t *testing.T) {
	// Three dial failures, then success: the manager keeps retrying with
	// backoff and zeroes the attempt counter once connected.
	dialErr := errors.New("refused")
	d := &fakeDialer{script: []error{dialErr, dialErr, dialErr, nil}}
	m := newTestManager(t, d)

	err := m.Connect(context.Background(), 1, "tok")
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return m.State() == model.StateConnected
	}, 2*time.Second, time.Millisecond)

	require.Equal(t, 4, d.dialCount())
	require.Equal(t, 0, m.Attempt())
}

func TestDropTriggersReconnect(t *testing.T) {
	d := &fakeDialer{script: []error{nil}}
	m := newTestManager(t, d)

	require.NoError(t, m.Connect(context.Background(), 1, "tok"))
	d.lastConn().drop()

	require.Eventually(t, func() bool {
		return d.dialCount() >= 2 && m.State() == model.StateConnected
	}, 2*time.Second, time.Millisecond)
	require.Equal(t, 0, m.Attempt())
}

func TestDisconnectHaltsReconnection(t *testing.T) {
	dialErr := errors.New("refused")
	d := &fakeDialer{script: []error{dialErr}}
	// Long enough that Disconnect lands before the retry timer fires.
	m := NewManager(Config{
		ServerURL:  "http://chat.test",
		SocketPath: "/ws",
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
	}, d.dial, logger.NewNop())

	require.Error(t, m.Connect(context.Background(), 1, "tok"))
	m.Disconnect()

	time.Sleep(250 * time.Millisecond)
	require.Equal(t, 1, d.dialCount(), "backoff timer should be cancelled")
	require.Equal(t, model.StateDisconnected, m.State())
}

func TestConnectCancelsPendingBackoffTimer(t *testing.T) {
	dialErr := errors.New("refused")
	// First dial fails (schedules a retry), the explicit reconnect
	// succeeds; the cancelled timer must not produce a third dial.
	d := &fakeDialer{script: []error{dialErr, nil}}
	m := NewManager(Config{
		ServerURL:  "http://chat.test",
		SocketPath: "/ws",
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   time.Second,
	}, d.dial, logger.NewNop())
	t.Cleanup(m.Disconnect)

	require.Error(t, m.Connect(context.Background(), 1, "tok"))
	require.NoError(t, m.Connect(context.Background(), 1, "tok"))
	require.Equal(t, model.StateConnected, m.State())

	time.Sleep(120 * time.Millisecond)
	require.Equal(t, 2, d.dialCount(), "pending timer should have been cancelled")
}
