package chess

import (
	"context"
	"math"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chessbattle/internal/chess/rules"
)

const (
	DefaultMaxDepth = 3
	maxSearchDepth  = 6

	// scoreInf stays well inside int range so negation never overflows.
	scoreInf = math.MaxInt32

	ctxCheckMask = 1023
)

// SearchOptions tunes the deep tier. MaxDepth counts plies including the
// root move.
type SearchOptions struct {
	MaxDepth       int
	Workers        int
	DisablePruning bool
}

func DefaultSearchOptions() SearchOptions {
	return SearchOptions{MaxDepth: DefaultMaxDepth, Workers: 1}
}

func (o SearchOptions) normalized() SearchOptions {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MaxDepth > maxSearchDepth {
		o.MaxDepth = maxSearchDepth
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return o
}

type SearchStats struct {
	Nodes   int64
	Cutoffs int64
}

func (s *SearchStats) add(other SearchStats) {
	s.Nodes += other.Nodes
	s.Cutoffs += other.Cutoffs
}

type SearchResult struct {
	Move     rules.Move
	Score    int
	Stats    SearchStats
	Duration time.Duration
}

type searcher struct {
	ctx     context.Context
	pruning bool
	stats   SearchStats
}

func (s *searcher) negamax(pos rules.Position, depth, alpha, beta, color int) (int, error) {
	s.stats.Nodes++
	if s.stats.Nodes&ctxCheckMask == 0 {
		if err := s.ctx.Err(); err != nil {
			return 0, err
		}
	}
	if depth == 0 {
		return color * Evaluate(pos), nil
	}
	moves := pos.LegalMoves()
	if len(moves) == 0 {
		return color * Evaluate(pos), nil
	}

	best := -scoreInf
	for _, m := range moves {
		v, err := s.negamax(pos.Apply(m), depth-1, -beta, -alpha, -color)
		if err != nil {
			return 0, err
		}
		v = -v
		if v > best {
			best = v
		}
		if v > alpha {
			alpha = v
		}
		if s.pruning && alpha >= beta {
			s.stats.Cutoffs++
			break
		}
	}
	return best, nil
}

// scoreRoot evaluates one root move from the mover's side with a full window.
func (s *searcher) scoreRoot(child rules.Position, depth, moverColor int) (int, error) {
	v, err := s.negamax(child, depth, -scoreInf, scoreInf, -moverColor)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

// FindBestMove runs negamax over every root move and keeps the first move
// with the highest score. ok is false when the side to move has no legal
// moves.
func FindBestMove(ctx context.Context, pos rules.Position, opts SearchOptions) (SearchResult, bool, error) {
	start := time.Now()
	opts = opts.normalized()
	if ctx == nil {
		ctx = context.Background()
	}

	moves := pos.LegalMoves()
	if len(moves) == 0 {
		return SearchResult{Duration: time.Since(start)}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return SearchResult{Duration: time.Since(start)}, false, err
	}

	moverColor := 1
	if pos.Turn() == nchess.Black {
		moverColor = -1
	}
	childDepth := opts.MaxDepth - 1

	scores := make([]int, len(moves))
	var stats SearchStats
	var err error
	if opts.Workers > 1 && len(moves) > 1 {
		stats, err = scoreParallel(ctx, pos, moves, scores, childDepth, moverColor, opts)
	} else {
		s := &searcher{ctx: ctx, pruning: !opts.DisablePruning}
		for i, m := range moves {
			if err = ctx.Err(); err != nil {
				break
			}
			scores[i], err = s.scoreRoot(pos.Apply(m), childDepth, moverColor)
			if err != nil {
				break
			}
		}
		stats = s.stats
	}
	stats.Nodes++ // root
	if err != nil {
		return SearchResult{Stats: stats, Duration: time.Since(start)}, false, err
	}

	bestIdx := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[bestIdx] {
			bestIdx = i
		}
	}
	return SearchResult{
		Move:     moves[bestIdx],
		Score:    scores[bestIdx],
		Stats:    stats,
		Duration: time.Since(start),
	}, true, nil
}

// scoreParallel fans root moves out to at most opts.Workers goroutines.
// Every root move is scored with its own full window, so the result is the
// same as the sequential loop.
func scoreParallel(ctx context.Context, pos rules.Position, moves []rules.Move, scores []int, depth, moverColor int, opts SearchOptions) (SearchStats, error) {
	children := make([]rules.Position, len(moves))
	for i, m := range moves {
		children[i] = pos.Apply(m)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		total    SearchStats
		firstErr error
		skipped  bool
	)
	sem := make(chan struct{}, opts.Workers)
	for i := range children {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				skipped = true
				mu.Unlock()
				return
			}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				mu.Lock()
				skipped = true
				mu.Unlock()
				return
			}

			s := &searcher{ctx: ctx, pruning: !opts.DisablePruning}
			v, err := s.scoreRoot(children[idx], depth, moverColor)

			mu.Lock()
			defer mu.Unlock()
			total.add(s.stats)
			if err != nil {
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				return
			}
			scores[idx] = v
		}(i)
	}
	wg.Wait()

	if firstErr == nil && skipped {
		firstErr = ctx.Err()
	}
	return total, firstErr
}
