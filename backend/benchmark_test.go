package main

import (
	"context"
	"errors"
	"testing"
)

func intPtr(v int) *int {
	return &v
}

func quickBenchmark(seed int64, games int) BenchmarkRequest {
	return BenchmarkRequest{
		Games:         games,
		Seed:          seed,
		WinTile:       64,
		AiTimeLimitMs: intPtr(0),
		AiMaxDepth:    intPtr(1),
	}
}

func TestRunBenchmarkIsReproducibleForFixedSeed(t *testing.T) {
	first, err := RunBenchmark(context.Background(), quickBenchmark(99, 3), DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("benchmark: %v", err)
	}
	second, err := RunBenchmark(context.Background(), quickBenchmark(99, 3), DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("benchmark: %v", err)
	}
	if first.Games != 3 || len(first.Runs) != 3 {
		t.Fatalf("expected 3 runs, got %d/%d", first.Games, len(first.Runs))
	}
	scores := map[int64]int{}
	for _, run := range first.Runs {
		scores[run.Seed] = run.Score
		if run.MeanDepth != 1 {
			t.Fatalf("expected every move searched at depth 1, got %f", run.MeanDepth)
		}
	}
	for _, run := range second.Runs {
		if scores[run.Seed] != run.Score {
			t.Fatalf("seed %d: score %d then %d", run.Seed, scores[run.Seed], run.Score)
		}
	}
	if first.MeanScore <= 0 || first.BestScore < first.Runs[len(first.Runs)-1].Score {
		t.Fatalf("unexpected summary %+v", first)
	}
}

func TestRunBenchmarkSavesWhenAsked(t *testing.T) {
	store := openTestStore(t)
	req := quickBenchmark(5, 2)
	req.Save = true
	if _, err := RunBenchmark(context.Background(), req, DefaultConfig(), store); err != nil {
		t.Fatalf("benchmark: %v", err)
	}
	store.Flush()
	games, err := store.ListGames(context.Background(), 10)
	if err != nil {
		t.Fatalf("list games: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 saved games, got %d", len(games))
	}
}

func TestRunBenchmarkRejectsBadRequests(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := RunBenchmark(context.Background(), BenchmarkRequest{}, cfg, nil); !errors.Is(err, ErrInvalidBenchmark) {
		t.Fatalf("expected ErrInvalidBenchmark for zero games, got %v", err)
	}
	cfg.BenchmarkMaxGames = 2
	if _, err := RunBenchmark(context.Background(), quickBenchmark(1, 3), cfg, nil); !errors.Is(err, ErrInvalidBenchmark) {
		t.Fatalf("expected ErrInvalidBenchmark above the cap, got %v", err)
	}
}

func TestRunBenchmarkStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RunBenchmark(ctx, quickBenchmark(1, 2), DefaultConfig(), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSummarizeBenchmark(t *testing.T) {
	result := summarizeBenchmark([]BenchmarkGame{
		{Score: 100, MaxTile: 64, Moves: 10, MeanDepth: 2, Status: "lost"},
		{Score: 300, MaxTile: 128, Moves: 30, MeanDepth: 4, Status: "won"},
	})
	if result.MeanScore != 200 || result.BestScore != 300 || result.Wins != 1 {
		t.Fatalf("unexpected summary %+v", result)
	}
	if result.MaxTiles[64] != 1 || result.MaxTiles[128] != 1 {
		t.Fatalf("unexpected max tile histogram %v", result.MaxTiles)
	}
	if result.MeanDepth != 3 || result.MeanMoves != 20 {
		t.Fatalf("unexpected means %+v", result)
	}
	if result.Runs[0].Score != 300 {
		t.Fatalf("expected runs sorted by score")
	}
}
