package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killindicator/extension/pkg/core"
	"github.com/killindicator/extension/pkg/streaming"
)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and sends acks for start_session/end_session.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.setSecret(r.URL.Query().Get("secret"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeStartSession || env.Type == streaming.TypeEndSession {
				ack := streaming.AckMessage{Type: "ack", For: env.Type}
				data, _ := json.Marshal(ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
	secret   string
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) setSecret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartAndEndSession(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "test", Version: "v2"}, quiet())
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.SessionInfo{Role: core.RoleClient, LocalNode: 4}))
	require.NoError(t, b.EndSession())

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, streaming.TypeStartSession, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndSession, msgs[len(msgs)-1].Type)

	var start streaming.StartSessionPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &start))
	assert.Equal(t, streaming.StartSessionPayload{Role: "client", LocalNode: 4, Version: "v2"}, start)

	ml.mu.Lock()
	assert.Equal(t, "test", ml.secret)
	ml.mu.Unlock()
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"}, quiet())
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.SessionInfo{Role: core.RoleAuthority}))
	require.NoError(t, b.RecordKill(&core.KillEvent{Entity: 3, Player: &core.Agent{ID: 1}}))
	require.NoError(t, b.RecordIndicator(&core.IndicatorEvent{Entity: 3, Source: core.SourcePredicted}))
	require.NoError(t, b.RecordIndicator(&core.IndicatorEvent{Entity: 4, Source: core.SourceRemote}))
	require.NoError(t, b.EndSession())

	// Give a moment for all messages to arrive at server.
	time.Sleep(50 * time.Millisecond)

	types := make(map[string]int)
	for _, m := range ml.all() {
		types[m.Type]++
	}

	assert.Equal(t, 1, types[streaming.TypeStartSession])
	assert.Equal(t, 1, types[streaming.TypeEndSession])
	assert.Equal(t, 1, types[streaming.TypeKill])
	assert.Equal(t, 2, types[streaming.TypeIndicator])

	sent, dropped := b.Stats()
	assert.Equal(t, uint64(5), sent)
	assert.Zero(t, dropped)
}

func TestInit_DialError(t *testing.T) {
	b := New(Config{URL: "ws://127.0.0.1:1/feed"}, quiet())
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestEndSession_AckTimeout(t *testing.T) {
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, quiet())
	b.conn.ackTimeout = 20 * time.Millisecond
	require.NoError(t, b.Init())
	defer b.Close()

	err := b.EndSession()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout waiting for ack")
}

func TestEnqueue_DropsWhenFull(t *testing.T) {
	c := newFeedConn(quiet())
	for i := 0; i < outQueueSize; i++ {
		require.True(t, c.enqueue([]byte("kill")))
	}
	assert.False(t, c.enqueue([]byte("kill")))
	assert.False(t, c.enqueue([]byte("kill")))
	assert.Equal(t, uint64(2), c.dropped.Load())
}

func TestRequest_QueueFull(t *testing.T) {
	c := newFeedConn(quiet())
	for i := 0; i < outQueueSize; i++ {
		c.enqueue([]byte("kill"))
	}
	err := c.request([]byte("end"), streaming.TypeEndSession)
	assert.ErrorContains(t, err, "queue full")
	assert.Empty(t, c.waiting[streaming.TypeEndSession], "no waiter left behind")
}

func TestAcked_ReleasesEveryWaiter(t *testing.T) {
	c := newFeedConn(quiet())
	a := c.expect(streaming.TypeStartSession)
	b := c.expect(streaming.TypeStartSession)
	other := c.expect(streaming.TypeEndSession)

	c.acked(streaming.TypeStartSession)

	for _, ch := range []chan struct{}{a, b} {
		select {
		case <-ch:
		default:
			t.Fatal("waiter not released")
		}
	}
	select {
	case <-other:
		t.Fatal("end_session waiter released by start_session ack")
	default:
	}
}

func TestReconnect_ReplaysStartSession(t *testing.T) {
	var (
		mu    sync.Mutex
		conns int
		got   []string
	)
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		mu.Lock()
		conns++
		first := conns == 1
		mu.Unlock()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if json.Unmarshal(msg, &env) != nil {
				continue
			}
			mu.Lock()
			got = append(got, env.Type)
			mu.Unlock()
			if env.Type == streaming.TypeStartSession {
				data, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: env.Type})
				_ = c.WriteMessage(ws.TextMessage, data)
				if first {
					return // drop the first socket right after the ack
				}
			}
		}
	}))
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, quiet())
	b.conn.retry = retryPolicy{attempts: 5, initial: 10 * time.Millisecond, max: 20 * time.Millisecond}
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.SessionInfo{Role: core.RoleClient, LocalNode: 2}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return conns == 2 && len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{streaming.TypeStartSession, streaming.TypeStartSession}, got)
}

func TestClose_Idempotent(t *testing.T) {
	c := newFeedConn(quiet())
	assert.NoError(t, c.close())
	assert.NoError(t, c.close())
}

func TestClose_StopsRunLoop(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, quiet())
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())

	select {
	case <-b.conn.stopped:
	default:
		t.Fatal("run loop still alive after Close")
	}
}
