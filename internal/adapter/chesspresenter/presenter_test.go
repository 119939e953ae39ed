package chesspresenter

import (
	"fmt"
	"strings"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chessbattle/internal/domain"
	svc "github.com/park285/chessbattle/internal/service/chess"
	"github.com/park285/chessbattle/pkg/chessdto"
)

func sampleState() *svc.SessionState {
	return &svc.SessionState{
		SessionUUID:  "s-1",
		Tier:         "greedy",
		BotName:      "Magnus",
		FEN:          "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2",
		Turn:         "white",
		PlayerToMove: true,
		MoveCount:    2,
		Plies: []svc.PlyRecord{
			{By: "player", UCI: "e2e4", SAN: "e4", Commentary: "Bold start!"},
			{By: "bot", UCI: "e7e5", SAN: "e5", Nodes: 21},
		},
		Material: svc.MaterialScore{White: 39, Black: 36},
		Captured: svc.CapturedPieces{White: []nchess.PieceType{nchess.Knight, nchess.NoPieceType}},
		LastMove: &svc.MoveHighlight{From: nchess.E7, To: nchess.E5},
		Outcome:  nchess.NoOutcome,
	}
}

func TestToDTOState(t *testing.T) {
	dto := ToDTOState(sampleState())
	if dto.Material.Diff != 3 || len(dto.Plies) != 2 || dto.Plies[1].Nodes != 21 {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if len(dto.LastMove) != 2 || dto.LastMove[0] != "e7" || dto.LastMove[1] != "e5" {
		t.Fatalf("unexpected last move: %v", dto.LastMove)
	}
	if len(dto.Captured.White) != 1 || dto.Captured.White[0] != "knight" || dto.Captured.Black == nil {
		t.Fatalf("unexpected captures: %+v", dto.Captured)
	}
	if dto.Outcome != "*" || dto.OutcomeMeta != "" {
		t.Fatalf("unexpected outcome: %q %q", dto.Outcome, dto.OutcomeMeta)
	}
	if ToDTOState(nil) != nil {
		t.Fatalf("nil state should map to nil")
	}
}

func TestToDTOProfileAndGame(t *testing.T) {
	p := ToDTOProfile(&domain.ChessProfile{Rating: 1218, Wins: 1})
	if p.LastPlayedAt != nil || p.Rating != 1218 {
		t.Fatalf("unexpected profile: %+v", p)
	}
	g := ToDTOGame(&domain.ChessGame{ID: 7, Duration: 90 * time.Second, BotThinkTime: 1500 * time.Millisecond})
	if g.DurationMS != 90000 || g.BotThinkMS != 1500 || g.MovesUCI == nil {
		t.Fatalf("unexpected game: %+v", g)
	}
	if games := ToDTOGames([]*domain.ChessGame{nil, {ID: 1}}); len(games) != 1 {
		t.Fatalf("nil games should be skipped")
	}
}

func TestFormatterMoveFinished(t *testing.T) {
	f := NewFormatter(nil)
	state := ToDTOState(sampleState())
	state.Finished = true
	state.Result = "win"
	state.OutcomeMeta = "Checkmate"
	summary := &chessdto.MoveSummary{
		State:       state,
		Player:      chessdto.Ply{SAN: "Qxf7#", Commentary: "Game over, buddy."},
		Finished:    true,
		GameID:      12,
		RatingDelta: 18,
		Profile:     &chessdto.ChessProfile{Rating: 1218, Wins: 1},
	}
	got := f.Move(summary)
	want := []string{
		"You played Qxf7#.",
		"Game over, buddy.",
		"You won by checkmate against Magnus!",
		"Rating 1218 (+18), record 1W 0L 0D.",
		"Saved as game #12.",
	}
	if got != strings.Join(want, "\n") {
		t.Fatalf("unexpected text:\n%s", got)
	}
}

func TestFormatterMovePending(t *testing.T) {
	f := NewFormatter(nil)
	got := f.Move(&chessdto.MoveSummary{State: ToDTOState(sampleState()), Player: chessdto.Ply{SAN: "Nf3"}, BotPending: true})
	if got != "You played Nf3.\nMagnus is thinking..." {
		t.Fatalf("got %q", got)
	}
}

func TestFormatterErrors(t *testing.T) {
	f := NewFormatter(nil)
	e := f.Error(fmt.Errorf("wrapped: %w", svc.ErrUndoNotAvailable))
	if e.Code != "undo_unavailable" || e.Message != "No more moves to undo" || e.Retryable {
		t.Fatalf("unexpected error: %+v", e)
	}
	if e := f.Error(fmt.Errorf("boom")); e.Code != "internal" || !e.Retryable || e.Message == "" {
		t.Fatalf("unexpected error: %+v", e)
	}
}

func TestPresenterEvent(t *testing.T) {
	p := NewPresenter(nil)
	move := svc.PlyRecord{By: "bot", UCI: "e7e5", SAN: "e5"}
	ev := p.Event(svc.Event{Type: svc.EventBotMoved, SessionUUID: "s-1", Move: &move, State: sampleState()})
	if ev.Type != "bot-moved" || ev.Move == nil || ev.Message != "Magnus played e5." {
		t.Fatalf("unexpected event: %+v", ev)
	}
	thinking := p.Event(svc.Event{Type: svc.EventBotThinking, State: sampleState()})
	if thinking.Message != "Magnus is thinking..." {
		t.Fatalf("unexpected thinking message %q", thinking.Message)
	}
	noted := svc.PlyRecord{By: "player", UCI: "e2e4", SAN: "e4", Commentary: "Bold start!"}
	comment := p.Event(svc.Event{Type: svc.EventCommentary, SessionUUID: "s-1", Move: &noted})
	if comment.Type != "commentary" || comment.Message != "Bold start!" {
		t.Fatalf("unexpected commentary event: %+v", comment)
	}
}
