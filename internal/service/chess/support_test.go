package chess

import (
	"bytes"
	"context"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chessbattle/internal/domain"
	"golang.org/x/image/font/basicfont"
)

func TestApplyGameResultStreakAndRating(t *testing.T) {
	id := deriveIdentity(alice)
	now := time.Now()

	profile, delta := applyGameResult(nil, id, "random", nchess.WhiteWon, now)
	if profile.Wins != 1 || profile.Streak != 1 || profile.StreakType != "win" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if delta != 1 || profile.Rating != 1201 {
		t.Fatalf("win against random: delta=%d rating=%d", delta, profile.Rating)
	}

	profile, _ = applyGameResult(profile, id, "random", nchess.WhiteWon, now)
	if profile.Streak != 2 {
		t.Fatalf("expected streak 2, got %d", profile.Streak)
	}
	profile, delta = applyGameResult(profile, id, "deep", nchess.Draw, now)
	if profile.Draws != 1 || profile.Streak != 1 || profile.StreakType != "draw" || delta <= 0 {
		t.Fatalf("draw against deep: delta=%d profile=%+v", delta, profile)
	}
	if profile.GamesPlayed != 3 || profile.LastTier != "deep" {
		t.Fatalf("unexpected counters: %+v", profile)
	}
}

func TestTierApproxRatingAcceptsAliases(t *testing.T) {
	if tierApproxRating("hard") != 1400 || tierApproxRating("medium") != 1000 || tierApproxRating("nope") != 600 {
		t.Fatalf("unexpected tier ratings")
	}
}

func TestComputeMaterialTracksCaptures(t *testing.T) {
	payload := &sessionPayload{Plies: []PlyRecord{
		{UCI: "e2e4"}, {UCI: "d7d5"}, {UCI: "e4d5"}, {UCI: "d8d5"},
	}}
	game, err := replaySession(payload)
	if err != nil {
		t.Fatalf("replaySession: %v", err)
	}
	score, captured := computeMaterial(game)
	if score.White != InitialMaterial()-1 || score.Black != InitialMaterial()-1 || score.Diff() != 0 {
		t.Fatalf("unexpected material: %+v", score)
	}
	if len(captured.White) != 1 || captured.White[0] != nchess.Pawn || len(captured.Black) != 1 {
		t.Fatalf("unexpected captures: %+v", captured)
	}
	if InitialMaterial() != 39 {
		t.Fatalf("expected 39, got %d", InitialMaterial())
	}
}

func TestReplaySessionRejectsBadMove(t *testing.T) {
	if _, err := replaySession(&sessionPayload{Plies: []PlyRecord{{UCI: "e2e5"}}}); err == nil {
		t.Fatalf("expected replay error")
	}
}

func TestDeriveIdentity(t *testing.T) {
	a := deriveIdentity(SessionMeta{Room: " Room-1 ", Sender: "ALICE"})
	b := deriveIdentity(SessionMeta{Room: "room-1", Sender: "alice"})
	if a != b {
		t.Fatalf("identity should ignore case and spaces: %+v vs %+v", a, b)
	}
	if a.SessionID != "room-1:alice" || len(a.PlayerHash) != 64 {
		t.Fatalf("unexpected identity: %+v", a)
	}
	c := deriveIdentity(SessionMeta{SessionID: "web-123", Room: "room-1", Sender: "alice"})
	if c.SessionID != "web-123" || c.PlayerHash != a.PlayerHash {
		t.Fatalf("explicit session id should keep player hash: %+v", c)
	}
}

func TestNormalizePlayerLabel(t *testing.T) {
	if got := normalizePlayerLabel("  Alice   Kim "); got != "Alice Kim" {
		t.Fatalf("got %q", got)
	}
	long := normalizePlayerLabel("abcdefghijklmnopqrstuvwxyz0123")
	if long != "abcdefghijklmnopqrstuvwx..." {
		t.Fatalf("got %q", long)
	}
}

func TestEventBusFiltersByPlayer(t *testing.T) {
	bus := NewEventBus(nil)
	mine, cancelMine := bus.Subscribe("p1", 4)
	all, cancelAll := bus.Subscribe("", 4)
	defer cancelAll()

	bus.Publish(Event{Type: EventBotMoved, PlayerHash: "p2"})
	bus.Publish(Event{Type: EventGameOver, PlayerHash: "p1"})

	if ev := <-mine; ev.Type != EventGameOver || ev.At.IsZero() {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev := <-all; ev.Type != EventBotMoved {
		t.Fatalf("unexpected event %+v", ev)
	}
	if bus.Subscribers() != 2 {
		t.Fatalf("expected 2 subscribers")
	}
	cancelMine()
	cancelMine()
	if _, open := <-mine; open {
		t.Fatalf("channel should be closed")
	}
	if bus.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber")
	}
}

func TestEventBusDropsWhenFull(t *testing.T) {
	bus := NewEventBus(nil)
	ch, cancel := bus.Subscribe("p1", 1)
	defer cancel()
	bus.Publish(Event{Type: EventPlayerMoved, PlayerHash: "p1"})
	bus.Publish(Event{Type: EventBotMoved, PlayerHash: "p1"})
	if ev := <-ch; ev.Type != EventPlayerMoved {
		t.Fatalf("unexpected event %s", ev.Type)
	}
	select {
	case ev := <-ch:
		t.Fatalf("expected drop, got %s", ev.Type)
	default:
	}
}

func TestEventBusCloseEndsSubscriptions(t *testing.T) {
	bus := NewEventBus(nil)
	ch, cancel := bus.Subscribe("p1", 1)
	bus.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	cancel()

	late, cancelLate := bus.Subscribe("p1", 1)
	defer cancelLate()
	if _, ok := <-late; ok {
		t.Fatalf("expected closed channel after Close")
	}
	bus.Publish(Event{Type: EventBotMoved, PlayerHash: "p1"})
	if bus.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", bus.Subscribers())
	}
}

func TestPacerReplacesAndStops(t *testing.T) {
	p := newPacer()
	var fired atomic.Int32
	done := make(chan string, 2)

	p.schedule("s1", time.Hour, func(context.Context) { fired.Add(1) })
	p.schedule("s1", 5*time.Millisecond, func(context.Context) { done <- "second" })
	if !p.pending("s1") {
		t.Fatalf("expected pending turn")
	}
	select {
	case got := <-done:
		if got != "second" {
			t.Fatalf("unexpected run %s", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("scheduled turn never ran")
	}

	p.schedule("s2", time.Hour, func(context.Context) { fired.Add(1) })
	p.stop("s2")
	if p.pending("s2") {
		t.Fatalf("stop left the turn pending")
	}
	p.close()
	if fired.Load() != 0 {
		t.Fatalf("replaced or stopped turns ran")
	}
	if p.schedule("s3", 0, func(context.Context) {}) {
		t.Fatalf("closed pacer accepted a turn")
	}
}

func TestPacerCloseCancelsRunningTurn(t *testing.T) {
	p := newPacer()
	started := make(chan struct{})
	p.schedule("s1", 0, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started
	p.close()
}

func TestRenderPNGDimensions(t *testing.T) {
	r := NewSVGBoardRenderer()
	game := nchess.NewGame()
	from, to := nchess.E2, nchess.E4
	data, err := r.RenderPNG(context.Background(), game.Position().Board(), RenderOptions{
		LastMove: &MoveHighlight{From: from, To: to},
		Selected: &from,
		Targets:  []nchess.Square{nchess.E3, nchess.E4},
		Header:   "Alice vs Stockfish",
		Footer:   "white to move",
	})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 64*8+28*2 || b.Dy() != 64*8+56*2 {
		t.Fatalf("unexpected size %v", b)
	}
}

func TestRenderPNGRejectsNilBoardAndCancelledContext(t *testing.T) {
	r := NewSVGBoardRenderer()
	if _, err := r.RenderPNG(context.Background(), nil, RenderOptions{}); err == nil {
		t.Fatalf("expected error for nil board")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.RenderPNG(ctx, nchess.NewGame().Position().Board(), RenderOptions{}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestTruncateWithEllipsis(t *testing.T) {
	face := basicfont.Face7x13
	if got := truncateWithEllipsis(face, "short", 200); got != "short" {
		t.Fatalf("got %q", got)
	}
	got := truncateWithEllipsis(face, "a very long header line for the board", 70)
	if len(got) != 10 || got[7:] != "..." {
		t.Fatalf("got %q", got)
	}
	if formatMaterialDiff(MaterialScore{White: 39, Black: 36}) != "+3" || formatMaterialDiff(MaterialScore{}) != "0" {
		t.Fatalf("unexpected material diff format")
	}
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Now()
	for i, uuid := range []string{"g1", "g2", "g3"} {
		id, err := repo.InsertGame(ctx, &domain.ChessGame{SessionUUID: uuid, PlayerHash: "p1", EndedAt: base.Add(time.Duration(i) * time.Minute)})
		if err != nil || id != int64(i+1) {
			t.Fatalf("InsertGame %s: id=%d err=%v", uuid, id, err)
		}
	}
	if _, err := repo.InsertGame(ctx, &domain.ChessGame{SessionUUID: "g1", PlayerHash: "p1"}); err != ErrDuplicateGame {
		t.Fatalf("expected ErrDuplicateGame, got %v", err)
	}
	recent, err := repo.GetRecentGames(ctx, "p1", 2)
	if err != nil || len(recent) != 2 || recent[0].SessionUUID != "g3" {
		t.Fatalf("unexpected recent games: %+v %v", recent, err)
	}
	if g, _ := repo.GetGame(ctx, 1, "p2"); g != nil {
		t.Fatalf("game leaked to another player")
	}
	if g, _ := repo.GetGameBySession(ctx, "g2", "p1"); g == nil || g.ID != 2 {
		t.Fatalf("GetGameBySession: %+v", g)
	}

	if p, _ := repo.GetProfile(ctx, "p1", "r1"); p != nil {
		t.Fatalf("expected no profile")
	}
	if err := repo.UpsertProfile(ctx, &domain.ChessProfile{PlayerHash: "p1", RoomHash: "r1", Rating: 1300}); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	p, _ := repo.GetProfile(ctx, "p1", "r1")
	if p == nil || p.Rating != 1300 {
		t.Fatalf("unexpected profile %+v", p)
	}
	p.Rating = 1
	if again, _ := repo.GetProfile(ctx, "p1", "r1"); again.Rating != 1300 {
		t.Fatalf("profile not copied")
	}
}
