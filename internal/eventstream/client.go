// Package eventstream is a websocket client for the chess event stream.
package eventstream

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/park285/chessbattle/pkg/chessdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

type (
	EventCallback func(ev chessdto.Event)
	StateCallback func(state State)
)

type callbackEntry[T any] struct {
	id       int
	callback T
}

// Client keeps a websocket open to /api/chess/events and hands every event
// to the registered callbacks. It redials with backoff after a drop.
type Client struct {
	url    string
	header http.Header
	logger *zap.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	state  State
	stateM sync.RWMutex

	cbM      sync.RWMutex
	nextID   int
	eventCbs []callbackEntry[EventCallback]
	stateCbs []callbackEntry[StateCallback]

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

type Option func(*Client)

func WithReconnect(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxReconnectAttempts = attempts
		c.reconnectDelay = delay
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient targets wsURL; room and player become the identity headers.
func NewClient(wsURL, room, player string, opts ...Option) *Client {
	header := http.Header{}
	if v := strings.TrimSpace(room); v != "" {
		header.Set("X-Chess-Room", v)
	}
	if v := strings.TrimSpace(player); v != "" {
		header.Set("X-Chess-Player", v)
	}
	c := &Client{
		url:                  wsURL,
		header:               header,
		logger:               zap.NewNop(),
		state:                StateDisconnected,
		maxReconnectAttempts: 5,
		reconnectDelay:       500 * time.Millisecond,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rootCtx, c.rootCancel = context.WithCancel(context.Background())
	return c
}

func (c *Client) Connect(ctx context.Context) error {
	switch c.State() {
	case StateConnected, StateConnecting:
		return nil
	}
	c.setState(StateConnecting)
	if err := c.dial(ctx); err != nil {
		c.setState(StateFailed)
		c.scheduleReconnect()
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      c.header.Clone(),
	})
	if err != nil {
		return err
	}
	c.connMu.Lock()
	if c.isStopping() {
		c.connMu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "close")
		return context.Canceled
	}
	c.conn = conn
	c.connMu.Unlock()
	c.setState(StateConnected)

	c.wg.Add(2)
	go c.listen(conn)
	go c.pingLoop(conn)
	return nil
}

func (c *Client) listen(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		var ev chessdto.Event
		if err := wsjson.Read(c.rootCtx, conn, &ev); err != nil {
			if c.isStopping() {
				return
			}
			c.logger.Debug("event stream read failed", zap.Error(err))
			c.dropConn(conn, websocket.StatusGoingAway, "reconnect")
			c.setState(StateDisconnected)
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return
			}
			c.scheduleReconnect()
			return
		}

		c.cbM.RLock()
		callbacks := append([]callbackEntry[EventCallback](nil), c.eventCbs...)
		c.cbM.RUnlock()
		for _, entry := range callbacks {
			entry.callback(ev)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-c.rootCtx.Done():
			return
		case <-t.C:
			if !c.isCurrent(conn) {
				return
			}
			ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				// listen 쪽 Read가 실패하면서 재연결을 맡는다
				c.dropConn(conn, websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (c *Client) scheduleReconnect() {
	if c.maxReconnectAttempts <= 0 || c.isStopping() {
		return
	}
	c.setState(StateReconnecting)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for attempt := 1; attempt <= c.maxReconnectAttempts; attempt++ {
			select {
			case <-c.stopCh:
				return
			case <-time.After(c.backoff(attempt)):
			}
			if err := c.dial(c.rootCtx); err != nil {
				c.logger.Debug("event stream redial failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			return
		}
		c.setState(StateFailed)
	}()
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.reconnectDelay << (attempt - 1)
	if max := 10 * time.Second; d > max || d <= 0 {
		return max
	}
	return d
}

func (c *Client) OnEvent(cb EventCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextID++
	c.eventCbs = append(c.eventCbs, callbackEntry[EventCallback]{id: c.nextID, callback: cb})
	return c.nextID
}

func (c *Client) OnStateChange(cb StateCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextID++
	c.stateCbs = append(c.stateCbs, callbackEntry[StateCallback]{id: c.nextID, callback: cb})
	return c.nextID
}

// RemoveCallback unregisters an event or state callback by id.
func (c *Client) RemoveCallback(id int) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.eventCbs = removeEntry(c.eventCbs, id)
	c.stateCbs = removeEntry(c.stateCbs, id)
}

func removeEntry[T any](list []callbackEntry[T], id int) []callbackEntry[T] {
	for i, e := range list {
		if e.id == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (c *Client) State() State {
	c.stateM.RLock()
	defer c.stateM.RUnlock()
	return c.state
}

func (c *Client) setState(state State) {
	c.stateM.Lock()
	c.state = state
	c.stateM.Unlock()

	c.cbM.RLock()
	callbacks := append([]callbackEntry[StateCallback](nil), c.stateCbs...)
	c.cbM.RUnlock()
	for _, entry := range callbacks {
		entry.callback(state)
	}
}

// Close stops reconnecting, closes the connection and waits for the
// background goroutines or ctx, whichever comes first.
func (c *Client) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	c.rootCancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		c.setState(StateDisconnected)
		return nil
	}
}

func (c *Client) dropConn(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()
	if err := conn.Close(code, reason); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Debug("event stream close", zap.Error(err))
	}
}

func (c *Client) isCurrent(conn *websocket.Conn) bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn == conn
}

func (c *Client) isStopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}
