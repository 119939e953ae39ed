package chess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	corechess "github.com/park285/chessbattle/internal/chess"
	"github.com/park285/chessbattle/internal/chess/rules"
	"github.com/park285/chessbattle/internal/commentary"
	"github.com/park285/chessbattle/internal/domain"
	"github.com/park285/chessbattle/internal/service/cache"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound   = errors.New("chess session not found")
	ErrSessionInProgress = errors.New("chess session already in progress")
	ErrInvalidMove       = errors.New("invalid chess move")
	ErrInvalidSquare     = errors.New("invalid chess square")
	ErrInvalidPosition   = errors.New("invalid start position")
	ErrNotPlayerTurn     = errors.New("not the player's turn")
	ErrNotBotTurn        = errors.New("not the bot's turn")
	ErrUndoNotAvailable  = errors.New("no more moves to undo")
	ErrGameFinished      = errors.New("chess game already finished")
	ErrGameNotFound      = errors.New("chess game not found")
	ErrProfileNotFound   = errors.New("chess profile not found")
)

const (
	profileCacheTTL      = 6 * time.Hour
	maxHistoryLimit      = 50
	playerLabelRuneLimit = 24
	defaultPlayerLabel   = "Player"
)

// MoveSelector picks the bot's move. *corechess.Engine implements it.
type MoveSelector interface {
	SelectMove(ctx context.Context, pos rules.Position, tier corechess.Tier) (corechess.Decision, bool, error)
}

type Commentator interface {
	Comment(ctx context.Context, move string) string
}

type unavailableCommentator struct{}

func (unavailableCommentator) Comment(context.Context, string) string { return commentary.Unavailable }

type Config struct {
	DefaultTier   corechess.Tier
	SessionTTL    time.Duration
	HistoryLimit  int
	ThinkDelay    time.Duration
	SearchTimeout time.Duration
	BotNames      []string
}

type Service struct {
	engine     MoveSelector
	cache      *cache.CacheService
	renderer   BoardRenderer
	repo       Repository
	commentary Commentator
	events     *EventBus
	pacer      *pacer
	cfg        Config
	logger     *zap.Logger
}

type Option func(*Service)

func WithCommentator(c Commentator) Option {
	return func(s *Service) {
		if c != nil {
			s.commentary = c
		}
	}
}

func WithEventBus(bus *EventBus) Option {
	return func(s *Service) {
		if bus != nil {
			s.events = bus
		}
	}
}

func NewService(engine MoveSelector, cacheSvc *cache.CacheService, repo Repository, renderer BoardRenderer, cfg Config, logger *zap.Logger, opts ...Option) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("chess move selector is required")
	}
	if cacheSvc == nil {
		return nil, fmt.Errorf("cache service is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("chess repository is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("board renderer is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be greater than 0")
	}
	if !cfg.DefaultTier.Valid() {
		return nil, fmt.Errorf("default tier %s is not valid", cfg.DefaultTier)
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > maxHistoryLimit {
		cfg.HistoryLimit = 10
	}
	if cfg.ThinkDelay < 0 {
		cfg.ThinkDelay = 0
	}
	cfg.BotNames = append([]string(nil), cfg.BotNames...)
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		engine:     engine,
		cache:      cacheSvc,
		renderer:   renderer,
		repo:       repo,
		commentary: unavailableCommentator{},
		events:     NewEventBus(logger),
		pacer:      newPacer(),
		cfg:        cfg,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close stops pending bot turns and waits for running ones.
func (s *Service) Close() {
	s.pacer.close()
	s.events.Close()
}

func (s *Service) Events() *EventBus { return s.events }

// Subscribe streams the events of one player's sessions.
func (s *Service) Subscribe(meta SessionMeta) (<-chan Event, func()) {
	return s.events.Subscribe(deriveIdentity(meta).PlayerHash, 32)
}

type StartOptions struct {
	Tier string
	// FEN optionally starts from a position; White must be to move.
	FEN string
}

func (s *Service) StartSession(ctx context.Context, meta SessionMeta, opts StartOptions) (*SessionState, error) {
	identity := deriveIdentity(meta)

	existing, err := s.loadSession(ctx, identity.SessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !existing.finished() {
		state, err := s.buildState(ctx, identity, existing)
		if err != nil {
			return nil, err
		}
		return state, ErrSessionInProgress
	}

	startFEN, err := validateStartFEN(opts.FEN)
	if err != nil {
		return nil, err
	}

	profile, err := s.fetchProfile(ctx, identity, false)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}
	tier := s.resolveTier(opts.Tier, profile)

	now := time.Now()
	fresh := sessionPayload{
		SessionUUID: uuid.NewString(),
		PlayerHash:  identity.PlayerHash,
		RoomHash:    identity.RoomHash,
		PlayerName:  playerLabel(meta.Sender),
		Tier:        tier.String(),
		BotName:     pickBotName(s.cfg.BotNames),
		StartFEN:    startFEN,
		Plies:       []PlyRecord{},
		Status:      statusActive,
		StartedAt:   now,
		UpdatedAt:   now,
	}

	payload, err := cache.Update(ctx, s.cache, s.sessionKey(identity.SessionID), s.cfg.SessionTTL, func(cur *sessionPayload, exists bool) error {
		if exists && cur.SessionUUID != "" && !cur.finished() {
			return ErrSessionInProgress
		}
		*cur = fresh
		return nil
	})
	if errors.Is(err, ErrSessionInProgress) {
		state, statusErr := s.Status(ctx, meta)
		if statusErr != nil {
			return nil, statusErr
		}
		return state, ErrSessionInProgress
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("chess session started",
		zap.String("session_uuid", payload.SessionUUID),
		zap.String("tier", payload.Tier),
		zap.String("bot", payload.BotName),
	)
	state, err := s.buildState(ctx, identity, payload)
	if err != nil {
		return nil, err
	}
	state.Profile = profile
	return state, nil
}

func validateStartFEN(fen string) (string, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || strings.EqualFold(fen, "startpos") {
		return "", nil
	}
	pos, err := rules.ParseFEN(fen)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	if pos.Turn() != rules.White {
		return "", fmt.Errorf("%w: white must be to move", ErrInvalidPosition)
	}
	if len(pos.LegalMoves()) == 0 {
		return "", fmt.Errorf("%w: no legal moves", ErrInvalidPosition)
	}
	return pos.FEN(), nil
}

func (s *Service) resolveTier(label string, profile *domain.ChessProfile) corechess.Tier {
	if strings.TrimSpace(label) == "" && profile != nil {
		label = profile.PreferredTier
	}
	if strings.TrimSpace(label) == "" {
		return s.cfg.DefaultTier
	}
	tier, ok := corechess.ParseTier(label)
	if !ok {
		s.logger.Warn("unknown chess tier, using random", zap.String("tier", label))
	}
	return tier
}

func (s *Service) Status(ctx context.Context, meta SessionMeta) (*SessionState, error) {
	identity := deriveIdentity(meta)
	payload, err := s.loadSession(ctx, identity.SessionID)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, ErrSessionNotFound
	}
	return s.buildState(ctx, identity, payload)
}

func (s *Service) buildState(ctx context.Context, identity sessionIdentity, payload *sessionPayload) (*SessionState, error) {
	game, err := replaySession(payload)
	if err != nil {
		return nil, err
	}
	state := s.stateFromGame(payload, game)
	state.BotThinking = s.pacer.pending(identity.SessionID)
	if state.PlayerName == "" {
		state.PlayerName = defaultPlayerLabel
	}
	if profile, err := s.fetchProfile(ctx, identity, true); err == nil {
		state.Profile = profile
	}
	return state, nil
}

type LegalTargets struct {
	From    string
	Targets []string
}

// LegalTargets lists destination squares for the piece on square. Squares
// without a piece of the side to move yield an empty list.
func (s *Service) LegalTargets(ctx context.Context, meta SessionMeta, square string) (*LegalTargets, error) {
	from, err := rules.ParseSquare(square)
	if err != nil {
		return nil, ErrInvalidSquare
	}
	identity := deriveIdentity(meta)
	payload, err := s.loadSession(ctx, identity.SessionID)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, ErrSessionNotFound
	}
	game, err := replaySession(payload)
	if err != nil {
		return nil, err
	}
	pos, err := currentPosition(game)
	if err != nil {
		return nil, err
	}
	out := &LegalTargets{From: from.String(), Targets: []string{}}
	if payload.finished() {
		return out, nil
	}
	seen := make(map[rules.Square]bool)
	for _, m := range pos.LegalMovesFrom(from) {
		if seen[m.To()] {
			continue
		}
		seen[m.To()] = true
		out.Targets = append(out.Targets, m.To().String())
	}
	return out, nil
}

type MoveSummary struct {
	State       *SessionState
	Player      PlyRecord
	Bot         *PlyRecord
	BotPending  bool
	Finished    bool
	GameID      int64
	Profile     *domain.ChessProfile
	RatingDelta int
}

// Play applies the player's move and then runs the bot's reply, either
// inline or after the configured think delay.
func (s *Service) Play(ctx context.Context, meta SessionMeta, moveText string) (*MoveSummary, error) {
	if strings.TrimSpace(moveText) == "" {
		return nil, ErrInvalidMove
	}
	identity := deriveIdentity(meta)

	var (
		played PlyRecord
		desc   string
	)
	payload, err := cache.Update(ctx, s.cache, s.sessionKey(identity.SessionID), s.cfg.SessionTTL, func(cur *sessionPayload, exists bool) error {
		if !exists || cur.SessionUUID == "" {
			return ErrSessionNotFound
		}
		if cur.finished() {
			return ErrGameFinished
		}
		game, err := replaySession(cur)
		if err != nil {
			return err
		}
		pos, err := currentPosition(game)
		if err != nil {
			return err
		}
		if pos.Turn() != rules.White {
			return ErrNotPlayerTurn
		}
		move, err := pos.DecodeMove(moveText)
		if err != nil {
			return ErrInvalidMove
		}
		desc = describeMove(pos, move)
		played, err = applyMove(game, pos, move, sideHuman)
		if err != nil {
			return err
		}
		cur.Plies = append(cur.Plies, played)
		cur.UpdatedAt = time.Now()
		markOutcome(cur, game)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.annotate(identity, payload.SessionUUID, played, len(payload.Plies)-1, desc)
	s.events.Publish(Event{Type: EventPlayerMoved, PlayerHash: identity.PlayerHash, SessionUUID: payload.SessionUUID, Move: &played})

	summary := &MoveSummary{Player: played}
	if payload.finished() {
		if err := s.completeGame(ctx, identity, payload, summary); err != nil {
			return nil, err
		}
		return summary, nil
	}

	if s.cfg.ThinkDelay > 0 {
		s.scheduleBotTurn(identity, payload.SessionUUID, len(payload.Plies))
		summary.BotPending = true
		state, err := s.buildState(ctx, identity, payload)
		if err != nil {
			return nil, err
		}
		summary.State = state
		return summary, nil
	}

	turn, err := s.runBotTurn(ctx, identity, payload.SessionUUID, len(payload.Plies))
	if err != nil {
		return nil, err
	}
	summary.Bot = turn.Bot
	summary.Finished = turn.Finished
	summary.State = turn.State
	summary.GameID = turn.GameID
	summary.Profile = turn.Profile
	summary.RatingDelta = turn.RatingDelta
	return summary, nil
}

// BotTurn runs the bot's move now if it is the bot's turn.
func (s *Service) BotTurn(ctx context.Context, meta SessionMeta) (*MoveSummary, error) {
	identity := deriveIdentity(meta)
	payload, err := s.loadSession(ctx, identity.SessionID)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, ErrSessionNotFound
	}
	if payload.finished() {
		return nil, ErrGameFinished
	}
	s.pacer.stop(identity.SessionID)
	return s.runBotTurn(ctx, identity, payload.SessionUUID, len(payload.Plies))
}

func (s *Service) Undo(ctx context.Context, meta SessionMeta) (*SessionState, error) {
	identity := deriveIdentity(meta)
	payload, err := cache.Update(ctx, s.cache, s.sessionKey(identity.SessionID), s.cfg.SessionTTL, func(cur *sessionPayload, exists bool) error {
		if !exists || cur.SessionUUID == "" {
			return ErrSessionNotFound
		}
		if cur.finished() {
			return ErrGameFinished
		}
		n := len(cur.Plies)
		if n < 2 {
			return ErrUndoNotAvailable
		}
		// An odd count means the bot has not replied yet; dropping only the
		// player's move hands the turn straight back.
		drop := 2
		if n%2 == 1 {
			drop = 1
		}
		cur.Plies = append([]PlyRecord(nil), cur.Plies[:n-drop]...)
		cur.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.pacer.stop(identity.SessionID)
	return s.buildState(ctx, identity, payload)
}

// NewGame resets the board and keeps the tier and bot persona.
func (s *Service) NewGame(ctx context.Context, meta SessionMeta) (*SessionState, error) {
	identity := deriveIdentity(meta)
	payload, err := cache.Update(ctx, s.cache, s.sessionKey(identity.SessionID), s.cfg.SessionTTL, func(cur *sessionPayload, exists bool) error {
		if !exists || cur.SessionUUID == "" {
			return ErrSessionNotFound
		}
		now := time.Now()
		cur.SessionUUID = uuid.NewString()
		cur.StartFEN = ""
		cur.Plies = []PlyRecord{}
		cur.Status = statusActive
		cur.Result = ""
		cur.Method = ""
		cur.GameID = 0
		cur.StartedAt = now
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.pacer.stop(identity.SessionID)
	state, err := s.buildState(ctx, identity, payload)
	if err != nil {
		return nil, err
	}
	s.events.Publish(Event{Type: EventSessionNew, PlayerHash: identity.PlayerHash, SessionUUID: payload.SessionUUID, State: state})
	return state, nil
}

func (s *Service) Resign(ctx context.Context, meta SessionMeta) (*SessionState, error) {
	identity := deriveIdentity(meta)
	payload, err := cache.Update(ctx, s.cache, s.sessionKey(identity.SessionID), s.cfg.SessionTTL, func(cur *sessionPayload, exists bool) error {
		if !exists || cur.SessionUUID == "" {
			return ErrSessionNotFound
		}
		if cur.finished() {
			return ErrGameFinished
		}
		cur.Status = statusFinished
		cur.Result = resultFromOutcome(nchess.BlackWon)
		cur.Method = methodFromOutcome(nchess.Resignation)
		cur.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.pacer.stop(identity.SessionID)
	summary := &MoveSummary{}
	if err := s.completeGame(ctx, identity, payload, summary); err != nil {
		return nil, err
	}
	return summary.State, nil
}

// SetTier changes the bot strength for the current session and records it
// as the player's preference.
func (s *Service) SetTier(ctx context.Context, meta SessionMeta, label string) (*SessionState, error) {
	identity := deriveIdentity(meta)
	tier, ok := corechess.ParseTier(label)
	if !ok {
		s.logger.Warn("unknown chess tier, using random", zap.String("tier", label))
	}
	payload, err := cache.Update(ctx, s.cache, s.sessionKey(identity.SessionID), s.cfg.SessionTTL, func(cur *sessionPayload, exists bool) error {
		if !exists || cur.SessionUUID == "" {
			return ErrSessionNotFound
		}
		if cur.Tier == tier.String() {
			return cache.ErrNoChange
		}
		cur.Tier = tier.String()
		cur.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	profile, err := s.fetchProfile(ctx, identity, false)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}
	if profile == nil {
		profile = newProfile(identity, time.Now())
	}
	profile.PreferredTier = tier.String()
	profile.UpdatedAt = time.Now()
	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.cacheProfile(ctx, identity, profile)
	return s.buildState(ctx, identity, payload)
}

func (s *Service) History(ctx context.Context, meta SessionMeta, limit int) ([]*domain.ChessGame, error) {
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	return s.repo.GetRecentGames(ctx, deriveIdentity(meta).PlayerHash, limit)
}

func (s *Service) Game(ctx context.Context, meta SessionMeta, id int64) (*domain.ChessGame, error) {
	game, err := s.repo.GetGame(ctx, id, deriveIdentity(meta).PlayerHash)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	return game, nil
}

func (s *Service) Profile(ctx context.Context, meta SessionMeta) (*domain.ChessProfile, error) {
	return s.fetchProfile(ctx, deriveIdentity(meta), true)
}

// BoardPNG renders the current board. When selected names a square, its
// legal destinations are marked.
func (s *Service) BoardPNG(ctx context.Context, meta SessionMeta, selected string) ([]byte, error) {
	identity := deriveIdentity(meta)
	payload, err := s.loadSession(ctx, identity.SessionID)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, ErrSessionNotFound
	}
	game, err := replaySession(payload)
	if err != nil {
		return nil, err
	}
	state := s.stateFromGame(payload, game)

	opts := RenderOptions{
		LastMove: state.LastMove,
		Material: state.Material,
		Header:   fmt.Sprintf("%s vs %s (%s)", nonEmpty(state.PlayerName, defaultPlayerLabel), state.BotName, state.Tier),
		Footer:   footerText(state),
	}
	if state.CheckSquare != "" {
		if sq, err := rules.ParseSquare(state.CheckSquare); err == nil {
			opts.Check = &sq
		}
	}
	if strings.TrimSpace(selected) != "" {
		targets, err := s.LegalTargets(ctx, meta, selected)
		if err != nil {
			return nil, err
		}
		from, _ := rules.ParseSquare(targets.From)
		opts.Selected = &from
		for _, t := range targets.Targets {
			if sq, err := rules.ParseSquare(t); err == nil {
				opts.Targets = append(opts.Targets, sq)
			}
		}
	}
	return s.renderer.RenderPNG(ctx, game.Position().Board(), opts)
}

func footerText(state *SessionState) string {
	turnNumber := state.MoveCount/2 + 1
	switch {
	case state.Finished:
		return fmt.Sprintf("Game over: %s (%s)", state.Result, state.OutcomeMethod)
	case state.InCheck:
		return fmt.Sprintf("%s to move, in check - turn %d", state.Turn, turnNumber)
	default:
		return fmt.Sprintf("%s to move - turn %d", state.Turn, turnNumber)
	}
}

func nonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func playerLabel(sender string) string {
	if label := normalizePlayerLabel(sender); label != "" {
		return label
	}
	return defaultPlayerLabel
}

func (s *Service) sessionKey(sessionID string) string {
	return "chess:sessions:" + hashString(strings.TrimSpace(sessionID))
}

func (s *Service) profileCacheKey(identity sessionIdentity) string {
	return "chess:profile:" + identity.PlayerHash + ":" + identity.RoomHash
}

func (s *Service) loadSession(ctx context.Context, sessionID string) (*sessionPayload, error) {
	payload := &sessionPayload{}
	if err := s.cache.Get(ctx, s.sessionKey(sessionID), payload); err != nil {
		return nil, err
	}
	if payload.SessionUUID == "" {
		return nil, nil
	}
	return payload, nil
}

func (s *Service) fetchProfile(ctx context.Context, identity sessionIdentity, allowCache bool) (*domain.ChessProfile, error) {
	if allowCache {
		cached := &domain.ChessProfile{}
		if err := s.cache.Get(ctx, s.profileCacheKey(identity), cached); err != nil {
			return nil, err
		}
		if cached.PlayerHash != "" {
			return cached, nil
		}
	}
	stored, err := s.repo.GetProfile(ctx, identity.PlayerHash, identity.RoomHash)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrProfileNotFound
	}
	s.cacheProfile(ctx, identity, stored)
	return stored, nil
}

func (s *Service) cacheProfile(ctx context.Context, identity sessionIdentity, profile *domain.ChessProfile) {
	if profile == nil {
		return
	}
	if err := s.cache.Set(ctx, s.profileCacheKey(identity), profile, profileCacheTTL); err != nil {
		s.logger.Warn("failed to cache chess profile", zap.Error(err))
	}
}
