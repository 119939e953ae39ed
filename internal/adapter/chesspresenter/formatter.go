package chesspresenter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/park285/chessbattle/internal/msgcat"
	svc "github.com/park285/chessbattle/internal/service/chess"
	"github.com/park285/chessbattle/pkg/chessdto"
)

// Formatter renders DTOs into short player-facing text using the message
// catalog.
type Formatter struct {
	catalog *msgcat.Catalog
}

func NewFormatter(catalog *msgcat.Catalog) *Formatter {
	if catalog == nil {
		catalog = msgcat.MustDefault()
	}
	return &Formatter{catalog: catalog}
}

func (f *Formatter) render(key string, data any) string {
	return f.catalog.RenderOr(key, data, "")
}

func (f *Formatter) Start(state *chessdto.SessionState, resumed bool) string {
	if state == nil {
		return f.render("chess.errors.internal", nil)
	}
	data := map[string]any{"BotName": state.BotName, "Tier": state.Tier, "MoveCount": state.MoveCount}
	if resumed {
		return f.render("chess.resumed", data)
	}
	return f.render("chess.start", data)
}

func (f *Formatter) Status(state *chessdto.SessionState) string {
	if state == nil {
		return f.render("chess.errors.session_not_found", nil)
	}
	if state.Finished {
		return f.outcome(state)
	}
	return f.render("chess.status", map[string]any{
		"BotName":   state.BotName,
		"Tier":      state.Tier,
		"MoveCount": state.MoveCount,
		"Turn":      state.Turn,
		"InCheck":   state.InCheck,
		"Material":  formatDiff(state.Material.Diff),
	})
}

// Move describes the player's move, the bot's reply and the result if the
// game ended, one sentence per line.
func (f *Formatter) Move(summary *chessdto.MoveSummary) string {
	if summary == nil || summary.State == nil {
		return ""
	}
	state := summary.State
	lines := []string{f.render("chess.move.player", map[string]any{"SAN": summary.Player.SAN})}
	if c := strings.TrimSpace(summary.Player.Commentary); c != "" {
		lines = append(lines, c)
	}
	switch {
	case summary.Bot != nil:
		lines = append(lines, f.render("chess.move.bot", map[string]any{"BotName": state.BotName, "SAN": summary.Bot.SAN}))
		if c := strings.TrimSpace(summary.Bot.Commentary); c != "" {
			lines = append(lines, c)
		}
	case summary.BotPending:
		lines = append(lines, f.render("chess.move.thinking", map[string]any{"BotName": state.BotName}))
	}
	if state.InCheck && !state.Finished {
		lines = append(lines, f.render("chess.move.check", nil))
	}
	if summary.Finished {
		lines = append(lines, f.outcome(state))
		if summary.Profile != nil {
			lines = append(lines, f.rating(summary.Profile, summary.RatingDelta))
		}
		if summary.GameID > 0 {
			lines = append(lines, f.render("chess.game_id", map[string]any{"ID": summary.GameID}))
		}
	}
	return joinLines(lines)
}

func (f *Formatter) Undo(*chessdto.SessionState) string {
	return f.render("chess.undo", nil)
}

func (f *Formatter) NewGame(state *chessdto.SessionState) string {
	if state == nil {
		return ""
	}
	return f.render("chess.new_game", map[string]any{"BotName": state.BotName})
}

func (f *Formatter) Resign(state *chessdto.SessionState) string {
	lines := []string{f.render("chess.resign", nil)}
	if state != nil && state.Profile != nil {
		lines = append(lines, f.rating(state.Profile, state.RatingDelta))
	}
	return joinLines(lines)
}

func (f *Formatter) Tier(state *chessdto.SessionState) string {
	if state == nil {
		return ""
	}
	return f.render("chess.tier", map[string]any{"Tier": state.Tier})
}

func (f *Formatter) Profile(p *chessdto.ChessProfile) string {
	if p == nil {
		return f.render("chess.errors.profile_not_found", nil)
	}
	tier := p.PreferredTier
	if tier == "" {
		tier = "-"
	}
	return f.render("chess.profile", map[string]any{
		"Rating": p.Rating, "Games": p.GamesPlayed,
		"Wins": p.Wins, "Losses": p.Losses, "Draws": p.Draws, "Tier": tier,
	})
}

func (f *Formatter) HistoryItem(g *chessdto.ChessGame) string {
	if g == nil {
		return ""
	}
	return f.render("chess.history.item", map[string]any{
		"ID": g.ID, "Result": g.Result, "Method": g.ResultMethod,
		"BotName": g.BotName, "Tier": g.Tier, "Moves": len(g.MovesUCI),
	})
}

func (f *Formatter) BadRequest() string {
	return f.render("chess.errors.bad_request", nil)
}

func (f *Formatter) Help() string {
	return f.render("chess.help", nil)
}

func (f *Formatter) outcome(state *chessdto.SessionState) string {
	method := strings.ReplaceAll(state.OutcomeMeta, "_", " ")
	if method == "" {
		method = "agreement"
	}
	key := "chess.outcome.draw"
	switch state.Result {
	case "win":
		key = "chess.outcome.win"
	case "loss":
		key = "chess.outcome.loss"
	}
	return f.render(key, map[string]any{"BotName": state.BotName, "Method": strings.ToLower(method)})
}

func (f *Formatter) rating(p *chessdto.ChessProfile, delta int) string {
	return f.render("chess.rating", map[string]any{
		"Rating": p.Rating, "Delta": delta, "Wins": p.Wins, "Losses": p.Losses, "Draws": p.Draws,
	})
}

// Error maps a service error to its catalog code and text. Unknown errors
// map to "internal".
func (f *Formatter) Error(err error) chessdto.DomainError {
	code := ErrorCode(err)
	return chessdto.DomainError{
		Code:      code,
		Message:   f.render("chess.errors."+code, nil),
		Retryable: code == "internal",
	}
}

var errorCodes = []struct {
	err  error
	code string
}{
	{svc.ErrSessionNotFound, "session_not_found"},
	{svc.ErrSessionInProgress, "session_in_progress"},
	{svc.ErrInvalidMove, "invalid_move"},
	{svc.ErrInvalidSquare, "invalid_square"},
	{svc.ErrInvalidPosition, "invalid_position"},
	{svc.ErrNotPlayerTurn, "not_player_turn"},
	{svc.ErrNotBotTurn, "not_bot_turn"},
	{svc.ErrUndoNotAvailable, "undo_unavailable"},
	{svc.ErrGameFinished, "game_finished"},
	{svc.ErrGameNotFound, "game_not_found"},
	{svc.ErrProfileNotFound, "profile_not_found"},
}

func ErrorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "internal"
}

func formatDiff(diff int) string {
	if diff > 0 {
		return fmt.Sprintf("+%d", diff)
	}
	return fmt.Sprintf("%d", diff)
}

func joinLines(lines []string) string {
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
