package main

import (
	"testing"
	"time"
)

func runningState(board Board) GameState {
	state := DefaultGameState()
	state.Board = board
	state.Status = StatusRunning
	return state
}

func TestAIPlayerChooseMoveUsesGlobalConfig(t *testing.T) {
	prev := GetConfig()
	cfg := prev
	cfg.AiTimeLimitMs = 0
	cfg.AiMinDepth = 1
	cfg.AiMaxDepth = 2
	configStore.Update(cfg)
	defer configStore.Update(prev)

	board := oneGapBoard(t)
	ai := NewAIPlayer()
	decision := ai.ChooseMove(runningState(board))
	if !isLegalMove(board, decision.Move) {
		t.Fatalf("expected a legal move, got %s", decision.Move)
	}
	if decision.Depth != 2 {
		t.Fatalf("expected depth capped at 2, got %d", decision.Depth)
	}
}

func TestAIPlayerConfigOverrideWinsOverGlobal(t *testing.T) {
	prev := GetConfig()
	cfg := prev
	cfg.AiTimeLimitMs = 0
	cfg.AiMaxDepth = 3
	configStore.Update(cfg)
	defer configStore.Update(prev)

	override := noDeadlineConfig(1)
	ai := NewAIPlayer()
	ai.SetConfigOverride(&override)
	override.AiMaxDepth = 4
	decision := ai.ChooseMove(runningState(oneGapBoard(t)))
	if decision.Depth != 1 {
		t.Fatalf("expected override depth 1, got %d", decision.Depth)
	}
}

func TestAIPlayerHeuristicsOverride(t *testing.T) {
	ai := NewAIPlayer()
	weights := DefaultHeuristics()
	weights.Roughness = 0
	ai.SetHeuristicsOverride(&weights)
	weights.Roughness = 999
	if got := ai.config().Heuristics.Roughness; got != 0 {
		t.Fatalf("override must be copied, got roughness %f", got)
	}
	ai.SetHeuristicsOverride(nil)
	if got := ai.config().Heuristics; got != GetConfig().Heuristics {
		t.Fatalf("expected global heuristics after clearing override")
	}
}

func TestAIPlayerThinksInBackground(t *testing.T) {
	prev := GetConfig()
	cfg := prev
	cfg.AiTimeLimitMs = 0
	cfg.AiMinDepth = 1
	cfg.AiMaxDepth = 2
	configStore.Update(cfg)
	defer configStore.Update(prev)

	board := oneGapBoard(t)
	ai := NewAIPlayer()
	reports := make(chan DepthReport, 8)
	ai.StartThinking(runningState(board), func(report DepthReport) {
		reports <- report
	})

	deadline := time.Now().Add(3 * time.Second)
	for !ai.HasMoveReady() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !ai.HasMoveReady() {
		t.Fatalf("expected a move within the deadline")
	}
	decision := ai.TakeMove()
	if !isLegalMove(board, decision.Move) {
		t.Fatalf("expected a legal move, got %s", decision.Move)
	}
	if ai.HasMoveReady() {
		t.Fatalf("taking the move must clear the ready flag")
	}
	if len(reports) != 2 {
		t.Fatalf("expected one progress report per depth, got %d", len(reports))
	}
}

func TestAIPlayerStopThinkingDropsResult(t *testing.T) {
	prev := GetConfig()
	cfg := prev
	cfg.AiTimeLimitMs = 0
	cfg.AiMinDepth = 1
	cfg.AiMaxDepth = 6
	configStore.Update(cfg)
	defer configStore.Update(prev)

	ai := NewAIPlayer()
	ai.StartThinking(runningState(sparseBoard(t)), nil)
	ai.StopThinking()
	if ai.IsThinking() || ai.HasMoveReady() {
		t.Fatalf("expected stopped player to be idle with no move")
	}
}

func sparseBoard(t *testing.T) Board {
	return mustBoard(t, [][]int{
		{2, 0, 0, 0},
		{0, 0, 4, 0},
		{0, 0, 0, 0},
		{0, 2, 0, 0},
	})
}

func TestFormatBytes(t *testing.T) {
	cases := map[uint64]string{
		512:     "512 B",
		2048:    "2.00 kB",
		3 << 20: "3.00 MB",
	}
	for n, want := range cases {
		if got := formatBytes(n); got != want {
			t.Fatalf("formatBytes(%d): expected %q, got %q", n, want, got)
		}
	}
}
