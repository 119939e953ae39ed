package chess

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/park285/chessbattle/internal/chess/rules"
	"go.uber.org/zap"
)

// Decision is the move chosen for one bot turn.
type Decision struct {
	Tier     Tier
	Move     rules.Move
	Score    int
	Stats    SearchStats
	Duration time.Duration
}

// Engine picks moves for the computer side. It holds no game state; the
// random source is the only shared field.
type Engine struct {
	randMu sync.Mutex
	rand   *rand.Rand
	search SearchOptions
	logger *zap.Logger
}

type Option func(*Engine)

func WithSearchOptions(opts SearchOptions) Option {
	return func(e *Engine) { e.search = opts.normalized() }
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rand = rand.New(rand.NewSource(seed)) }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
		search: DefaultSearchOptions(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) SearchOptions() SearchOptions { return e.search }

// SelectMove returns the move for the side to move at the given tier.
// ok is false when there is no legal move; that is not an error.
func (e *Engine) SelectMove(ctx context.Context, pos rules.Position, tier Tier) (Decision, bool, error) {
	start := time.Now()
	if pos.IsZero() {
		return Decision{}, false, rules.ErrNilPosition
	}

	var (
		dec Decision
		ok  bool
		err error
	)
	switch tier {
	case TierGreedy:
		dec, ok = selectGreedy(pos)
	case TierDeep:
		var res SearchResult
		res, ok, err = FindBestMove(ctx, pos, e.search)
		dec = Decision{Move: res.Move, Score: res.Score, Stats: res.Stats}
	default:
		if tier != TierRandom {
			e.logger.Warn("unknown chess tier, falling back to random", zap.Int("tier", int(tier)))
			tier = TierRandom
		}
		dec, ok = selectRandom(pos, e.random())
	}
	if err != nil {
		return Decision{}, false, err
	}
	dec.Tier = tier
	dec.Duration = time.Since(start)
	if ok {
		e.logger.Debug("chess move selected",
			zap.String("tier", tier.String()),
			zap.String("move", dec.Move.UCI()),
			zap.Int("score", dec.Score),
			zap.Int64("nodes", dec.Stats.Nodes),
			zap.Duration("duration", dec.Duration),
		)
	}
	return dec, ok, nil
}

func selectRandom(pos rules.Position, r *rand.Rand) (Decision, bool) {
	moves := pos.LegalMoves()
	if len(moves) == 0 {
		return Decision{}, false
	}
	return Decision{Move: moves[r.Intn(len(moves))]}, true
}

// selectGreedy scores every child from the mover's side one ply deep.
func selectGreedy(pos rules.Position) (Decision, bool) {
	moves := pos.LegalMoves()
	if len(moves) == 0 {
		return Decision{}, false
	}
	mover := pos.Turn()
	bestIdx := 0
	bestScore := EvaluateFor(pos.Apply(moves[0]), mover)
	for i := 1; i < len(moves); i++ {
		score := EvaluateFor(pos.Apply(moves[i]), mover)
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	return Decision{
		Move:  moves[bestIdx],
		Score: bestScore,
		Stats: SearchStats{Nodes: int64(len(moves) + 1)},
	}, true
}

func (e *Engine) random() *rand.Rand {
	e.randMu.Lock()
	seed := e.rand.Int63()
	e.randMu.Unlock()
	return rand.New(rand.NewSource(seed))
}

func (e *Engine) SetRandomSeed(seed int64) {
	e.randMu.Lock()
	e.rand = rand.New(rand.NewSource(seed))
	e.randMu.Unlock()
}
