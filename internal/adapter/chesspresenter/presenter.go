package chesspresenter

import (
	svc "github.com/park285/chessbattle/internal/service/chess"
	"github.com/park285/chessbattle/pkg/chessdto"
)

// Presenter turns service events into the payloads pushed to clients.
type Presenter struct {
	formatter *Formatter
}

func NewPresenter(formatter *Formatter) *Presenter {
	if formatter == nil {
		formatter = NewFormatter(nil)
	}
	return &Presenter{formatter: formatter}
}

func (p *Presenter) Formatter() *Formatter { return p.formatter }

func (p *Presenter) Event(ev svc.Event) chessdto.Event {
	out := chessdto.Event{
		Type:        string(ev.Type),
		SessionUUID: ev.SessionUUID,
		State:       ToDTOState(ev.State),
		At:          ev.At,
	}
	if ev.Move != nil {
		ply := toDTOPly(*ev.Move)
		out.Move = &ply
	}

	botName := ""
	if out.State != nil {
		botName = out.State.BotName
	}
	switch ev.Type {
	case svc.EventPlayerMoved:
		if out.Move != nil {
			out.Message = p.formatter.render("chess.move.player", map[string]any{"SAN": out.Move.SAN})
		}
	case svc.EventBotThinking:
		out.Message = p.formatter.render("chess.move.thinking", map[string]any{"BotName": botName})
	case svc.EventBotMoved:
		if out.Move != nil && botName != "" {
			out.Message = p.formatter.render("chess.move.bot", map[string]any{"BotName": botName, "SAN": out.Move.SAN})
		}
	case svc.EventGameOver:
		if out.State != nil {
			out.Message = p.formatter.outcome(out.State)
		}
	case svc.EventCommentary:
		if out.Move != nil {
			out.Message = out.Move.Commentary
		}
	case svc.EventSessionNew:
		out.Message = p.formatter.render("chess.new_game", map[string]any{"BotName": botName})
	}
	return out
}
