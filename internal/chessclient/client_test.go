package chessclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/park285/chessbattle/pkg/chessdto"
)

func TestMoveCheckRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chess/movecheck" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req chessdto.MoveCheckRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(chessdto.MoveCheckResponse{Move: "d2d5", Tier: req.Tier, Score: 5})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).MoveCheck(context.Background(), "4k3/8/8/3q4/8/8/3R4/4K3 w - - 0 1", "deep")
	if err != nil {
		t.Fatalf("MoveCheck: %v", err)
	}
	if resp.Move != "d2d5" || resp.Tier != "deep" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
}

func TestPlaySendsIdentityAndDecodesErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("X-Chess-Player") != "alice" || r.Header.Get("X-Chess-Room") != "room-1" {
			t.Errorf("missing identity headers: %v", r.Header)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(chessdto.DomainError{Code: "invalid_move", Message: "Illegal move"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithIdentity("room-1", "alice")).Play(context.Background(), "e2e5")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Body.Code != "invalid_move" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if calls.Load() != 1 {
		t.Fatalf("moves must not be retried, got %d calls", calls.Load())
	}
}

func TestHistoryQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "3" {
			t.Errorf("expected limit=3, got %q", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(chessdto.HistoryResponse{Games: []*chessdto.ChessGame{{ID: 7}}})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, WithIdentity("", "bob")).History(context.Background(), 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(resp.Games) != 1 || resp.Games[0].ID != 7 {
		t.Fatalf("unexpected history %+v", resp.Games)
	}
}

func TestEventsURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080/": "ws://localhost:8080/api/chess/events",
		"https://chess.example":  "wss://chess.example/api/chess/events",
	}
	for base, want := range cases {
		if got := NewClient(base).EventsURL(); got != want {
			t.Fatalf("%s: expected %s, got %s", base, want, got)
		}
	}
}
