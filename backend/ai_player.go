package main

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// unboundedSearchDepth caps deepening when neither a time budget nor a max
// depth is configured.
const unboundedSearchDepth = 6

type SearchSettings struct {
	Config          Config
	Now             func() time.Time
	ShouldStop      func() bool
	Stats           *SearchStats
	OnDepthComplete func(DepthReport)
}

type DepthReport struct {
	Depth   int           `json:"depth"`
	Move    Move          `json:"move"`
	Score   float64       `json:"score"`
	Elapsed time.Duration `json:"elapsed"`
}

// Decide picks a move for the board under the current config. It returns
// NoMove only when no move is legal.
func Decide(board Board) Move {
	return SearchBestMove(board, SearchSettings{}).Move
}

// SearchBestMove deepens one ply at a time until the budget expires and
// returns the result of the deepest walk that finished. Aborted walks are
// discarded entirely.
func SearchBestMove(board Board, settings SearchSettings) Decision {
	config := settings.Config
	if config == (Config{}) {
		config = GetConfig()
	}
	now := settings.Now
	if now == nil {
		now = time.Now
	}
	stats := settings.Stats
	if stats == nil {
		stats = &SearchStats{}
	}
	start := now()
	if stats.Start.IsZero() {
		stats.Start = start
	}

	legal := board.AvailableMoves()
	if len(legal) == 0 {
		return Decision{Move: NoMove}
	}

	ctx := newSearchContext(config, start, now)
	ctx.shouldStop = settings.ShouldStop
	ctx.stats = stats

	minDepth := config.AiMinDepth
	if minDepth < 1 {
		minDepth = 1
	}
	maxDepth := config.AiMaxDepth
	if maxDepth <= 0 && !ctx.hasDeadline {
		maxDepth = unboundedSearchDepth
	}
	if maxDepth > 0 && minDepth > maxDepth {
		minDepth = maxDepth
	}

	best := Decision{Move: NoMove}
	for depth := minDepth; maxDepth <= 0 || depth <= maxDepth; depth++ {
		ctx.depthLimit = depth
		depthStart := now()
		move, score, ok := ctx.decision(board)
		if !ok {
			stats.Aborted = true
			log.Debug().Int("depth", depth).Dur("elapsed", now().Sub(start)).Msg("search-aborted")
			break
		}
		best = Decision{Move: move, Depth: depth, Score: score}
		stats.CompletedDepths = depth
		stats.DepthDurations = append(stats.DepthDurations, now().Sub(depthStart))
		log.Debug().Int("depth", depth).Str("move", move.String()).Float64("score", score).Msg("depth-complete")
		if settings.OnDepthComplete != nil {
			settings.OnDepthComplete(DepthReport{Depth: depth, Move: move, Score: score, Elapsed: now().Sub(start)})
		}
	}
	if !best.Move.IsValid() {
		// Not even depth one finished; any legal move beats none.
		return Decision{Move: legal[0].Move}
	}
	return best
}

type AIPlayer struct {
	moveMutex  sync.Mutex
	workerDone chan struct{}
	thinking   atomic.Bool
	moveReady  atomic.Bool
	stopSignal atomic.Bool
	readyMove  Decision
	heuristics *HeuristicConfig
	override   *Config
}

func NewAIPlayer() *AIPlayer {
	return &AIPlayer{}
}

func (a *AIPlayer) IsHuman() bool {
	return false
}

// SetHeuristicsOverride pins this player's weights regardless of the
// global config. nil restores the global weights.
func (a *AIPlayer) SetHeuristicsOverride(h *HeuristicConfig) {
	if h == nil {
		a.heuristics = nil
		return
	}
	copied := *h
	a.heuristics = &copied
}

// SetConfigOverride replaces the global config for this player only.
func (a *AIPlayer) SetConfigOverride(config *Config) {
	if config == nil {
		a.override = nil
		return
	}
	copied := *config
	a.override = &copied
}

func (a *AIPlayer) config() Config {
	config := GetConfig()
	if a.override != nil {
		config = *a.override
	}
	if a.heuristics != nil {
		config.Heuristics = *a.heuristics
	}
	return config
}

func (a *AIPlayer) ChooseMove(state GameState) Decision {
	config := a.config()
	stats := &SearchStats{Start: time.Now()}
	decision := SearchBestMove(state.Board, SearchSettings{Config: config, Stats: stats})
	if config.AiLogSearchStats {
		logSearchStats("choose", stats, config)
	}
	return decision
}

func (a *AIPlayer) StartThinking(state GameState, progress func(DepthReport)) {
	if a.thinking.Load() {
		return
	}
	if a.workerDone != nil {
		<-a.workerDone
	}
	a.thinking.Store(true)
	a.moveReady.Store(false)
	a.stopSignal.Store(false)

	board := state.Board.Clone()
	config := a.config()
	done := make(chan struct{})
	a.workerDone = done
	go func() {
		defer close(done)
		stats := &SearchStats{Start: time.Now()}
		decision := SearchBestMove(board, SearchSettings{
			Config:          config,
			ShouldStop:      func() bool { return a.stopSignal.Load() },
			Stats:           stats,
			OnDepthComplete: progress,
		})
		if a.stopSignal.Load() {
			a.moveReady.Store(false)
			a.thinking.Store(false)
			return
		}
		if config.AiLogSearchStats {
			logSearchStats("think", stats, config)
		}
		a.moveMutex.Lock()
		a.readyMove = decision
		a.moveMutex.Unlock()
		a.moveReady.Store(true)
		a.thinking.Store(false)
	}()
}

func (a *AIPlayer) IsThinking() bool {
	return a.thinking.Load()
}

func (a *AIPlayer) HasMoveReady() bool {
	return a.moveReady.Load()
}

func (a *AIPlayer) TakeMove() Decision {
	a.moveMutex.Lock()
	defer a.moveMutex.Unlock()
	a.moveReady.Store(false)
	return a.readyMove
}

// StopThinking cancels a running search and waits for the worker to exit.
func (a *AIPlayer) StopThinking() {
	a.stopSignal.Store(true)
	if a.workerDone != nil {
		<-a.workerDone
		a.workerDone = nil
	}
	a.moveReady.Store(false)
	a.thinking.Store(false)
	a.stopSignal.Store(false)
}

func (a *AIPlayer) ResetForConfigChange() {
	a.StopThinking()
}

func logSearchStats(tag string, stats *SearchStats, config Config) {
	if stats == nil {
		return
	}
	elapsed := time.Duration(0)
	if !stats.Start.IsZero() {
		elapsed = time.Since(stats.Start)
	} else {
		for _, d := range stats.DepthDurations {
			elapsed += d
		}
	}
	nps := 0.0
	if elapsed > 0 {
		nps = float64(stats.Nodes) / elapsed.Seconds()
	}
	depthMs := make([]int64, 0, len(stats.DepthDurations))
	for _, d := range stats.DepthDurations {
		depthMs = append(depthMs, d.Milliseconds())
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	log.Debug().
		Str("tag", tag).
		Int64("t_ms", elapsed.Milliseconds()).
		Int64("budget_ms", config.SearchBudget().Milliseconds()).
		Int("completed", stats.CompletedDepths).
		Bool("aborted", stats.Aborted).
		Int64("nodes", stats.Nodes).
		Int64("max_nodes", stats.MaxNodes).
		Int64("chance_nodes", stats.ChanceNodes).
		Int64("evals", stats.Evaluations).
		Int64("cutoffs", stats.Cutoffs).
		Float64("nps", nps).
		Ints64("depth_ms", depthMs).
		Str("mem_heap", formatBytes(mem.HeapAlloc)).
		Msg("search-stats")
}

func formatBytes(n uint64) string {
	const (
		kb = 1 << (10 * 1)
		mb = 1 << (10 * 2)
		gb = 1 << (10 * 3)
	)
	switch {
	case n >= gb:
		return fmt.Sprintf("%.2f GB", float64(n)/float64(gb))
	case n >= mb:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(mb))
	case n >= kb:
		return fmt.Sprintf("%.2f kB", float64(n)/float64(kb))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
