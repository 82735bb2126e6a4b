package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/killindicator/extension/internal/channel"
	"github.com/killindicator/extension/pkg/streaming"
)

const (
	outQueueSize = 1024
	writeWait    = 10 * time.Second
)

// retryPolicy bounds how hard a lost socket is redialled.
type retryPolicy struct {
	attempts int
	initial  time.Duration
	max      time.Duration
}

// feedConn owns one socket to the feed server. A single run goroutine does
// every write and every redial; a reader goroutine per socket only routes
// acks back to the callers waiting on them.
type feedConn struct {
	url    string
	secret string

	out     *channel.Buffered[[]byte]
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	mu      sync.Mutex
	running bool
	start   []byte // start_session, replayed after every redial
	waiting map[string][]chan struct{}

	retry      retryPolicy
	ackTimeout time.Duration

	sent    atomic.Uint64
	dropped atomic.Uint64

	logger *slog.Logger
}

func newFeedConn(logger *slog.Logger) *feedConn {
	return &feedConn{
		out:        channel.NewBuffered[[]byte](outQueueSize),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		waiting:    make(map[string][]chan struct{}),
		retry:      retryPolicy{attempts: 10, initial: time.Second, max: 30 * time.Second},
		ackTimeout: 10 * time.Second,
		logger:     logger,
	}
}

// open dials once and hands the socket to the run loop. Later failures are
// retried in the background.
func (c *feedConn) open(rawURL, secret string) error {
	c.url, c.secret = rawURL, secret
	conn, err := c.dial()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	go c.run(conn)
	return nil
}

func (c *feedConn) dial() (*ws.Conn, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (c *feedConn) run(conn *ws.Conn) {
	defer close(c.stopped)
	for conn != nil {
		lost := make(chan error, 1)
		go c.read(conn, lost)

		err := c.pump(conn, lost)
		_ = conn.Close()
		if err == nil {
			return
		}
		c.logger.Warn("Kill feed socket lost", "error", err)
		conn = c.redial()
	}
}

// pump writes queued messages until the socket fails or the conn is closed.
// A nil return means closed.
func (c *feedConn) pump(conn *ws.Conn, lost <-chan error) error {
	for {
		select {
		case <-c.done:
			_ = conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return nil
		case err := <-lost:
			return err
		case data := <-c.out.Receive():
			if err := write(conn, data); err != nil {
				return err
			}
			c.sent.Add(1)
		}
	}
}

func write(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// read routes acks to their waiters until the socket fails.
func (c *feedConn) read(conn *ws.Conn, lost chan<- error) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			lost <- err
			return
		}
		var ack streaming.AckMessage
		if err := json.Unmarshal(msg, &ack); err != nil || ack.Type != "ack" {
			c.logger.Debug("Ignoring server message", "raw", string(msg))
			continue
		}
		c.acked(ack.For)
	}
}

// redial backs off exponentially between attempts and replays the cached
// start_session on the new socket. Nil when closed or out of attempts.
func (c *feedConn) redial() *ws.Conn {
	wait := c.retry.initial
	for attempt := 1; attempt <= c.retry.attempts; attempt++ {
		timer := time.NewTimer(wait)
		select {
		case <-c.done:
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, err := c.dial()
		if err == nil {
			if err = c.replayStart(conn); err == nil {
				c.logger.Info("Kill feed socket reconnected", "attempt", attempt)
				return conn
			}
			_ = conn.Close()
		}
		c.logger.Warn("Kill feed redial failed", "attempt", attempt, "backoff", wait, "error", err)
		wait = min(wait*2, c.retry.max)
	}
	c.logger.Error("Giving up on kill feed socket", "attempts", c.retry.attempts)
	return nil
}

func (c *feedConn) replayStart(conn *ws.Conn) error {
	c.mu.Lock()
	start := c.start
	c.mu.Unlock()
	if start == nil {
		return nil
	}
	return write(conn, start)
}

func (c *feedConn) setStart(data []byte) {
	c.mu.Lock()
	c.start = data
	c.mu.Unlock()
}

// enqueue hands data to the run loop without blocking. It reports false and
// counts a drop when the queue is full.
func (c *feedConn) enqueue(data []byte) bool {
	if c.out.TrySend(data) {
		return true
	}
	if n := c.dropped.Add(1); n%100 == 1 {
		c.logger.Warn("Kill feed queue full, dropping message", "dropped", n)
	}
	return false
}

// request enqueues data and blocks until the server acks kind.
func (c *feedConn) request(data []byte, kind string) error {
	ack := c.expect(kind)
	if !c.enqueue(data) {
		c.forget(kind, ack)
		return fmt.Errorf("kill feed queue full, %s not sent", kind)
	}

	timer := time.NewTimer(c.ackTimeout)
	defer timer.Stop()
	select {
	case <-ack:
		return nil
	case <-timer.C:
		c.forget(kind, ack)
		return fmt.Errorf("timeout waiting for ack of %q", kind)
	case <-c.done:
		return fmt.Errorf("connection closed while waiting for ack of %q", kind)
	}
}

func (c *feedConn) expect(kind string) chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	c.waiting[kind] = append(c.waiting[kind], ch)
	c.mu.Unlock()
	return ch
}

func (c *feedConn) forget(kind string, ch chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.waiting[kind]
	for i := range w {
		if w[i] == ch {
			c.waiting[kind] = append(w[:i], w[i+1:]...)
			return
		}
	}
}

// acked releases every caller waiting on kind.
func (c *feedConn) acked(kind string) {
	c.mu.Lock()
	w := c.waiting[kind]
	delete(c.waiting, kind)
	c.mu.Unlock()
	for _, ch := range w {
		close(ch)
	}
}

// close sends a close frame and waits for the run loop to exit. Messages
// still queued are abandoned.
func (c *feedConn) close() error {
	c.once.Do(func() { close(c.done) })

	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if running {
		<-c.stopped
	}
	return nil
}
