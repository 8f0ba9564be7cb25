package main

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrGameNotRunning = errors.New("game not running")
	ErrIllegalMove    = errors.New("illegal move")
	ErrNotHumanTurn   = errors.New("not human turn")
)

const startingTiles = 2

type Game struct {
	id         string
	settings   GameSettings
	rules      Rules
	state      GameState
	history    MoveHistory
	player     IPlayer
	rng        *rand.Rand
	startedAt  time.Time
	turnStart  time.Time
	onFinished func(GameRecord)
}

func NewGame(settings GameSettings) Game {
	g := Game{}
	g.Reset(settings)
	return g
}

func (g *Game) Reset(settings GameSettings) {
	g.stopThinking()
	g.id = uuid.New().String()
	g.settings = settings
	g.rules = NewRules(settings)
	g.state.Reset()
	g.history.Clear()
	seed := settings.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g.rng = rand.New(rand.NewSource(seed))
	for i := 0; i < startingTiles; i++ {
		if _, _, err := g.rules.SpawnTile(&g.state.Board, g.rng); err != nil {
			break
		}
	}
	g.createPlayer()
	g.startedAt = time.Now()
	g.turnStart = g.startedAt
	log.Debug().Str("game", g.id).Str("player", settings.PlayerType.String()).Int64("seed", seed).Msg("game-reset")
}

func (g *Game) Start() {
	if g.state.Status != StatusNotStarted {
		return
	}
	g.state.Status = StatusRunning
	g.turnStart = time.Now()
	if !g.state.Board.CanMove() {
		g.state.Status = StatusLost
		g.finish()
	}
}

func (g *Game) ID() string {
	return g.id
}

func (g *Game) State() GameState {
	return g.state.Clone()
}

func (g *Game) History() MoveHistory {
	return g.history
}

func (g *Game) TurnStartedAtMs() int64 {
	if g.turnStart.IsZero() {
		return 0
	}
	return g.turnStart.UnixMilli()
}

// SetFinishedHook registers a callback invoked once when the game ends.
func (g *Game) SetFinishedHook(hook func(GameRecord)) {
	g.onFinished = hook
}

func (g *Game) TryApplyMove(decision Decision) error {
	if g.state.Status != StatusRunning {
		return ErrGameNotRunning
	}
	move := decision.Move
	ok, reason := g.rules.IsLegal(g.state, move)
	if !ok {
		g.state.LastMessage = "Illegal move: " + reason
		return fmt.Errorf("%w: %s", ErrIllegalMove, reason)
	}
	isAiMove := g.player != nil && !g.player.IsHuman()
	elapsedMs := float64(time.Since(g.turnStart).Milliseconds())

	next, gained, _ := g.state.Board.Slide(move)
	g.state.Board = next
	g.state.Score += gained
	g.state.MoveCount++
	g.state.LastMove = move
	g.state.HasLastMove = true
	g.state.LastMessage = ""
	g.state.LastSpawn = nil

	entry := HistoryEntry{Move: move, Gained: gained, ElapsedMs: elapsedMs, IsAi: isAiMove, Depth: decision.Depth}
	if pos, value, err := g.rules.SpawnTile(&g.state.Board, g.rng); err == nil {
		spawn := Spawn{Pos: pos, Value: value}
		g.state.LastSpawn = &spawn
		entry.Spawn = &spawn
	}
	g.history.Push(entry)
	log.Debug().
		Str("game", g.id).
		Str("move", move.String()).
		Int("gained", gained).
		Int("score", g.state.Score).
		Int("depth", decision.Depth).
		Float64("elapsed_ms", elapsedMs).
		Msg("move-played")

	switch {
	case g.rules.IsWin(g.state.Board):
		g.state.Status = StatusWon
		g.finish()
	case !g.state.Board.CanMove():
		g.state.Status = StatusLost
		g.finish()
	default:
		g.turnStart = time.Now()
	}
	return nil
}

func (g *Game) Tick(ghostEnabled bool, ghostSink func(ghostPayload)) bool {
	if g.state.Status != StatusRunning {
		g.stopThinking()
		return false
	}
	switch player := g.player.(type) {
	case nil:
		return false
	case *HumanPlayer:
		if player.HasPendingMove() {
			move := player.TakePendingMove()
			return g.TryApplyMove(Decision{Move: move}) == nil
		}
		return false
	case *AIPlayer:
		if player.HasMoveReady() {
			decision := player.TakeMove()
			moveCount := g.state.MoveCount
			if err := g.TryApplyMove(decision); err != nil {
				log.Warn().Err(err).Str("game", g.id).Msg("ai move rejected")
				return false
			}
			if ghostEnabled && ghostSink != nil {
				ghostSink(ghostPayload{
					Mode:      "search_progress",
					Move:      decision.Move,
					Depth:     decision.Depth,
					Score:     decision.Score,
					MoveCount: moveCount,
					Final:     true,
				})
			}
			return true
		}
		if !player.IsThinking() {
			var progress func(DepthReport)
			if ghostEnabled && ghostSink != nil {
				moveCount := g.state.MoveCount
				progress = func(report DepthReport) {
					ghostSink(ghostPayload{
						Mode:      "search_progress",
						Move:      report.Move,
						Depth:     report.Depth,
						Score:     report.Score,
						ElapsedMs: report.Elapsed.Milliseconds(),
						MoveCount: moveCount,
						Active:    true,
					})
				}
			}
			player.StartThinking(g.state.Clone(), progress)
		}
		return false
	default:
		decision := player.ChooseMove(g.state.Clone())
		return g.TryApplyMove(decision) == nil
	}
}

// PlayToEnd drives an AI game synchronously until it finishes or stop
// reports true. Used for headless games.
func (g *Game) PlayToEnd(stop func() bool) error {
	g.Start()
	for g.state.Status == StatusRunning {
		if stop != nil && stop() {
			return ErrGameNotRunning
		}
		decision := g.player.ChooseMove(g.state.Clone())
		if err := g.TryApplyMove(decision); err != nil {
			return fmt.Errorf("move %d: %w", g.state.MoveCount+1, err)
		}
	}
	return nil
}

func (g *Game) SubmitHumanMove(move Move) error {
	human, ok := g.player.(*HumanPlayer)
	if !ok {
		return ErrNotHumanTurn
	}
	human.SetPendingMove(move)
	return nil
}

func (g *Game) CurrentPlayerIsHuman() bool {
	return g.player != nil && g.player.IsHuman()
}

func (g *Game) createPlayer() {
	if g.settings.PlayerType == PlayerHuman {
		g.player = NewHumanPlayer()
		return
	}
	ai := NewAIPlayer()
	ai.SetConfigOverride(g.settings.SearchConfig)
	ai.SetHeuristicsOverride(g.settings.Heuristics)
	g.player = ai
}

func (g *Game) AiThinking() bool {
	if ai, ok := g.player.(*AIPlayer); ok {
		return ai.IsThinking()
	}
	return false
}

func (g *Game) ResetForConfigChange() {
	if ai, ok := g.player.(*AIPlayer); ok {
		ai.ResetForConfigChange()
	}
}

func (g *Game) stopThinking() {
	if ai, ok := g.player.(*AIPlayer); ok {
		ai.StopThinking()
	}
}

func (g *Game) Record() GameRecord {
	return GameRecord{
		ID:         g.id,
		Player:     g.settings.PlayerType.String(),
		Status:     g.state.Status.String(),
		Score:      g.state.Score,
		MaxTile:    g.state.Board.MaxTile(),
		Moves:      g.state.MoveCount,
		MaxDepth:   g.history.MaxDepth(),
		Board:      g.state.Board.Rows(),
		StartedAt:  g.startedAt,
		FinishedAt: time.Now(),
	}
}

func (g *Game) finish() {
	log.Info().
		Str("game", g.id).
		Str("status", g.state.Status.String()).
		Int("score", g.state.Score).
		Int("max_tile", g.state.Board.MaxTile()).
		Int("moves", g.state.MoveCount).
		Msg("game-finished")
	if g.onFinished != nil {
		g.onFinished(g.Record())
	}
}
