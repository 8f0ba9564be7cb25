package main

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidBenchmark = errors.New("invalid benchmark request")

type BenchmarkRequest struct {
	Games         int              `json:"games"`
	Seed          int64            `json:"seed"`
	WinTile       int              `json:"win_tile"`
	AiTimeLimitMs *int             `json:"ai_time_limit_ms,omitempty"`
	AiMaxDepth    *int             `json:"ai_max_depth,omitempty"`
	Heuristics    *HeuristicConfig `json:"heuristics,omitempty"`
	Save          bool             `json:"save"`
}

type BenchmarkGame struct {
	ID        string  `json:"id"`
	Seed      int64   `json:"seed"`
	Status    string  `json:"status"`
	Score     int     `json:"score"`
	MaxTile   int     `json:"max_tile"`
	Moves     int     `json:"moves"`
	MeanDepth float64 `json:"mean_depth"`
}

type BenchmarkResult struct {
	Games      int             `json:"games"`
	Wins       int             `json:"wins"`
	MeanScore  float64         `json:"mean_score"`
	BestScore  int             `json:"best_score"`
	MeanMoves  float64         `json:"mean_moves"`
	MeanDepth  float64         `json:"mean_depth"`
	MaxTiles   map[int]int     `json:"max_tiles"`
	DurationMs int64           `json:"duration_ms"`
	Runs       []BenchmarkGame `json:"runs"`
}

// RunBenchmark plays req.Games headless AI games in parallel and
// summarises them. Seeds are derived from req.Seed so a fixed seed replays
// the same spawns.
func RunBenchmark(ctx context.Context, req BenchmarkRequest, base Config, store *GameStore) (BenchmarkResult, error) {
	if req.Games <= 0 {
		return BenchmarkResult{}, fmt.Errorf("%w: games must be positive", ErrInvalidBenchmark)
	}
	if base.BenchmarkMaxGames > 0 && req.Games > base.BenchmarkMaxGames {
		return BenchmarkResult{}, fmt.Errorf("%w: at most %d games", ErrInvalidBenchmark, base.BenchmarkMaxGames)
	}
	config := base
	if req.AiTimeLimitMs != nil {
		config.AiTimeLimitMs = *req.AiTimeLimitMs
	}
	if req.AiMaxDepth != nil {
		config.AiMaxDepth = *req.AiMaxDepth
	}
	if req.Heuristics != nil {
		config.Heuristics = *req.Heuristics
	}
	workers := config.BenchmarkWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	baseSeed := req.Seed
	if baseSeed == 0 {
		baseSeed = time.Now().UnixNano()
	}

	start := time.Now()
	runs := make([]BenchmarkGame, req.Games)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < req.Games; i++ {
		i := i
		g.Go(func() error {
			seed := baseSeed + int64(i)
			settings := GameSettings{
				PlayerType:     PlayerAI,
				TwoProbability: DefaultGameSettings().TwoProbability,
				WinTile:        req.WinTile,
				Seed:           seed,
				SearchConfig:   &config,
			}
			game := NewGame(settings)
			if req.Save {
				game.SetFinishedHook(store.SaveGame)
			}
			if err := game.PlayToEnd(func() bool { return gctx.Err() != nil }); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return fmt.Errorf("game %d: %w", i, err)
			}
			record := game.Record()
			runs[i] = BenchmarkGame{
				ID:        record.ID,
				Seed:      seed,
				Status:    record.Status,
				Score:     record.Score,
				MaxTile:   record.MaxTile,
				Moves:     record.Moves,
				MeanDepth: meanDepth(game.History()),
			}
			log.Debug().Int("run", i).Int("score", record.Score).Int("max_tile", record.MaxTile).Msg("benchmark-game")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BenchmarkResult{}, err
	}

	result := summarizeBenchmark(runs)
	result.DurationMs = time.Since(start).Milliseconds()
	log.Info().
		Int("games", result.Games).
		Float64("mean_score", result.MeanScore).
		Int("best_score", result.BestScore).
		Int64("duration_ms", result.DurationMs).
		Msg("benchmark-complete")
	return result, nil
}

func summarizeBenchmark(runs []BenchmarkGame) BenchmarkResult {
	result := BenchmarkResult{
		Games:    len(runs),
		MaxTiles: map[int]int{},
		Runs:     runs,
	}
	if len(runs) == 0 {
		return result
	}
	totalScore, totalMoves, totalDepth := 0, 0, 0.0
	for _, run := range runs {
		totalScore += run.Score
		totalMoves += run.Moves
		totalDepth += run.MeanDepth
		if run.Score > result.BestScore {
			result.BestScore = run.Score
		}
		if run.Status == StatusWon.String() {
			result.Wins++
		}
		result.MaxTiles[run.MaxTile]++
	}
	n := float64(len(runs))
	result.MeanScore = float64(totalScore) / n
	result.MeanMoves = float64(totalMoves) / n
	result.MeanDepth = totalDepth / n
	sort.SliceStable(result.Runs, func(i, j int) bool {
		return result.Runs[i].Score > result.Runs[j].Score
	})
	return result
}

func meanDepth(history MoveHistory) float64 {
	entries := history.All()
	if len(entries) == 0 {
		return 0
	}
	total := 0
	for _, entry := range entries {
		total += entry.Depth
	}
	return float64(total) / float64(len(entries))
}
