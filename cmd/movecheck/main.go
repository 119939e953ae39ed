// movecheck asks the engine for a move on a FEN, either in-process or
// against a running server, and can tail a player's event stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	corechess "github.com/park285/chessbattle/internal/chess"
	"github.com/park285/chessbattle/internal/chess/rules"
	"github.com/park285/chessbattle/internal/chessclient"
	"github.com/park285/chessbattle/internal/eventstream"
	"github.com/park285/chessbattle/internal/obslog"
	"github.com/park285/chessbattle/pkg/chessdto"
	"go.uber.org/zap"
)

func main() {
	var (
		fen     = flag.String("fen", rules.StartingPosition().FEN(), "position to analyse")
		tier    = flag.String("tier", "deep", "random, greedy or deep (aliases accepted)")
		depth   = flag.Int("depth", corechess.DefaultMaxDepth, "search depth for the deep tier")
		workers = flag.Int("workers", 1, "parallel root workers")
		server  = flag.String("server", os.Getenv("CHESS_BASE_URL"), "chess server base URL; empty runs the engine locally")
		player  = flag.String("player", os.Getenv("CHESS_PLAYER"), "player name for -watch")
		room    = flag.String("room", os.Getenv("CHESS_ROOM"), "room for -watch")
		watch   = flag.Duration("watch", 0, "tail the player's event stream for this long")
	)
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		resp *chessdto.MoveCheckResponse
		err  error
	)
	if *server == "" {
		resp, err = checkLocal(ctx, *fen, *tier, corechess.SearchOptions{MaxDepth: *depth, Workers: *workers}, logger)
	} else {
		resp, err = chessclient.NewClient(*server, chessclient.WithTimeout(time.Minute)).MoveCheck(ctx, *fen, *tier)
	}
	if err != nil {
		log.Fatalf("move check failed: %v", err)
	}
	if resp.NoMove {
		fmt.Printf("tier=%s no legal move\n", resp.Tier)
	} else {
		fmt.Printf("tier=%s move=%s san=%s score=%d nodes=%d cutoffs=%d think=%dms\n",
			resp.Tier, resp.Move, resp.SAN, resp.Score, resp.Nodes, resp.Cutoffs, resp.ThinkMS)
	}

	if *watch <= 0 {
		return
	}
	if *server == "" || *player == "" {
		log.Fatal("-watch needs -server and -player")
	}
	tail(ctx, chessclient.NewClient(*server).EventsURL(), *room, *player, *watch, logger)
}

func checkLocal(ctx context.Context, fen, label string, opts corechess.SearchOptions, logger *zap.Logger) (*chessdto.MoveCheckResponse, error) {
	pos, err := rules.ParseFEN(fen)
	if err != nil {
		return nil, err
	}
	tier, ok := corechess.ParseTier(label)
	if !ok {
		logger.Warn("unknown chess tier, using random", zap.String("tier", label))
	}
	engine := corechess.NewEngine(corechess.WithSearchOptions(opts), corechess.WithLogger(logger))
	dec, found, err := engine.SelectMove(ctx, pos, tier)
	if err != nil {
		return nil, err
	}
	resp := &chessdto.MoveCheckResponse{
		Tier:    dec.Tier.String(),
		Score:   dec.Score,
		Nodes:   dec.Stats.Nodes,
		Cutoffs: dec.Stats.Cutoffs,
		ThinkMS: dec.Duration.Milliseconds(),
		NoMove:  !found,
	}
	if found {
		resp.Move = dec.Move.UCI()
		resp.SAN = pos.SAN(dec.Move)
	}
	return resp, nil
}

func tail(ctx context.Context, url, room, player string, d time.Duration, logger *zap.Logger) {
	ws := eventstream.NewClient(url, room, player,
		eventstream.WithReconnect(5, time.Second),
		eventstream.WithLogger(logger),
	)
	ws.OnStateChange(func(state eventstream.State) {
		log.Printf("WS state: %s", state)
	})
	ws.OnEvent(func(ev chessdto.Event) {
		move := ""
		if ev.Move != nil {
			move = ev.Move.UCI
		}
		fmt.Printf("event type=%s session=%s move=%s %s\n", ev.Type, ev.SessionUUID, move, ev.Message)
	})

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := ws.Connect(cctx)
	cancel()
	if err != nil {
		log.Printf("WS connect error: %v", err)
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = ws.Close(closeCtx)
}
