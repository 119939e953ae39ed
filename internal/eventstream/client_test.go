package eventstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/chessbattle/pkg/chessdto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type fakeStream struct {
	conns   atomic.Int32
	players chan string
	// dropFirst closes the first connection right after its event.
	dropFirst bool
}

func (f *fakeStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := f.conns.Add(1)
	select {
	case f.players <- r.Header.Get("X-Chess-Player"):
	default:
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := conn.CloseRead(r.Context())
	ev := chessdto.Event{Type: "bot-moved", SessionUUID: "s-" + string(rune('0'+n)), At: time.Now()}
	if err := wsjson.Write(ctx, conn, ev); err != nil {
		return
	}
	if f.dropFirst && n == 1 {
		conn.Close(websocket.StatusGoingAway, "restart")
		return
	}
	<-ctx.Done()
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientReceivesEventsWithIdentityHeaders(t *testing.T) {
	stream := &fakeStream{players: make(chan string, 4)}
	srv := httptest.NewServer(stream)
	defer srv.Close()

	client := NewClient(wsURL(srv), "room-1", "alice", WithReconnect(0, 0))
	events := make(chan chessdto.Event, 4)
	client.OnEvent(func(ev chessdto.Event) { events <- ev })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if got := client.State(); got != StateConnected {
		t.Fatalf("expected connected, got %s", got)
	}

	select {
	case player := <-stream.players:
		if player != "alice" {
			t.Fatalf("expected player header alice, got %q", player)
		}
	case <-ctx.Done():
		t.Fatalf("server never saw a connection")
	}
	select {
	case ev := <-events:
		if ev.Type != "bot-moved" || ev.SessionUUID != "s-1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-ctx.Done():
		t.Fatalf("no event received")
	}

	if err := client.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := client.State(); got != StateDisconnected {
		t.Fatalf("expected disconnected after close, got %s", got)
	}
}

func TestClientReconnectsAfterServerDrop(t *testing.T) {
	stream := &fakeStream{players: make(chan string, 4), dropFirst: true}
	srv := httptest.NewServer(stream)
	defer srv.Close()

	client := NewClient(wsURL(srv), "", "bob", WithReconnect(3, 10*time.Millisecond))
	var (
		mu     sync.Mutex
		states []State
	)
	client.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	events := make(chan chessdto.Event, 4)
	client.OnEvent(func(ev chessdto.Event) { events <- ev })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close(context.Background())

	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case ev := <-events:
			seen[ev.SessionUUID] = true
		case <-ctx.Done():
			t.Fatalf("expected events from two connections, saw %v", seen)
		}
	}
	if n := stream.conns.Load(); n < 2 {
		t.Fatalf("expected a redial, got %d connections", n)
	}

	mu.Lock()
	defer mu.Unlock()
	reconnecting := false
	for _, s := range states {
		if s == StateReconnecting {
			reconnecting = true
		}
	}
	if !reconnecting {
		t.Fatalf("expected a reconnecting transition, got %v", states)
	}
}

func TestConnectFailureWithoutRetriesReportsFailed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	client := NewClient(url, "", "carol", WithReconnect(0, 0))
	if err := client.Connect(context.Background()); err == nil {
		t.Fatalf("expected dial error")
	}
	if got := client.State(); got != StateFailed {
		t.Fatalf("expected failed, got %s", got)
	}
	_ = client.Close(context.Background())
}

func TestRemoveCallback(t *testing.T) {
	client := NewClient("ws://unused", "", "dave")
	id := client.OnEvent(func(chessdto.Event) {})
	client.OnStateChange(func(State) {})
	client.RemoveCallback(id)
	if len(client.eventCbs) != 0 || len(client.stateCbs) != 1 {
		t.Fatalf("unexpected callbacks: %d events, %d states", len(client.eventCbs), len(client.stateCbs))
	}
}

func TestBackoffCapped(t *testing.T) {
	client := NewClient("ws://unused", "", "erin", WithReconnect(10, time.Second))
	if got := client.backoff(1); got != time.Second {
		t.Fatalf("attempt 1: %s", got)
	}
	if got := client.backoff(3); got != 4*time.Second {
		t.Fatalf("attempt 3: %s", got)
	}
	if got := client.backoff(8); got != 10*time.Second {
		t.Fatalf("attempt 8: %s", got)
	}
}
