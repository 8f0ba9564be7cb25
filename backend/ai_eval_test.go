package main

import (
	"math"
	"testing"
)

func TestLineNonMonotonicity(t *testing.T) {
	cases := []struct {
		line [BoardSize]int
		want int
	}{
		{[BoardSize]int{8, 4, 2, 0}, 0},
		{[BoardSize]int{2, 4, 8, 16}, 0},
		{[BoardSize]int{0, 0, 0, 0}, 0},
		{[BoardSize]int{2, 8, 4, 0}, 28},
		{[BoardSize]int{2, 8, 4, 16}, 60},
	}
	for _, tc := range cases {
		if got := lineNonMonotonicity(tc.line); got != tc.want {
			t.Fatalf("line %v: expected %d, got %d", tc.line, tc.want, got)
		}
	}
}

func TestCountMergePairs(t *testing.T) {
	cases := []struct {
		row  []int
		want int
	}{
		{[]int{2, 2, 0, 0}, 1},
		{[]int{2, 0, 0, 2}, 1},
		{[]int{2, 4, 2, 0}, 0},
		{[]int{2, 2, 2, 2}, 3},
	}
	for _, tc := range cases {
		board := mustBoard(t, [][]int{tc.row, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}})
		if got := countMergePairs(board); got != tc.want {
			t.Fatalf("row %v: expected %d merges, got %d", tc.row, tc.want, got)
		}
	}
}

func TestRoughnessOfAdjacentPair(t *testing.T) {
	board := mustBoard(t, [][]int{
		{2, 4, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	if got := roughness(board); math.Abs(got-1.0/192.0) > 1e-12 {
		t.Fatalf("expected roughness 1/192, got %f", got)
	}
}

func TestEdgeLargenessCountsPerimeterOnly(t *testing.T) {
	inner := NewBoard()
	inner.Set(1, 1, 64)
	if got := edgeLargeness(inner); got != 0 {
		t.Fatalf("interior tile must not count, got %f", got)
	}
	corner := NewBoard()
	corner.Set(0, 0, 4)
	if got := edgeLargeness(corner); math.Abs(got-0.008) > 1e-12 {
		t.Fatalf("expected 0.008, got %f", got)
	}
}

func TestLowEmptySpacesTable(t *testing.T) {
	want := map[int]float64{0: 1.0, 1: 0.8, 2: 0.6, 3: 0.4, 4: 0.2, 5: 0.1, 6: 0, 16: 0}
	for empty, expected := range want {
		if got := lowEmptySpaces(empty); got != expected {
			t.Fatalf("empty=%d: expected %f, got %f", empty, expected, got)
		}
	}
}

func TestEvaluateEmptyBoard(t *testing.T) {
	if got := EvaluateBoard(NewBoard(), DefaultConfig()); got != 1600 {
		t.Fatalf("expected 1600 for the empty board, got %d", got)
	}
}

func TestEvaluateLostBoardIsDominatedByLossPenalty(t *testing.T) {
	dead := mustBoard(t, [][]int{
		{2, 4, 2, 4},
		{4, 2, 4, 2},
		{2, 4, 2, 4},
		{4, 2, 4, 2},
	})
	// Same multiset of tiles, but two 2s now touch.
	alive := mustBoard(t, [][]int{
		{2, 2, 4, 4},
		{4, 4, 2, 2},
		{2, 2, 4, 4},
		{4, 4, 2, 2},
	})
	if f := ComputeFeatures(dead); f.Lost != 1 {
		t.Fatalf("expected dead board to be lost")
	}
	deadScore := EvaluateBoard(dead, DefaultConfig())
	aliveScore := EvaluateBoard(alive, DefaultConfig())
	if deadScore > -900000 {
		t.Fatalf("expected loss penalty to dominate, got %d", deadScore)
	}
	if deadScore >= aliveScore {
		t.Fatalf("expected lost board (%d) below playable board (%d)", deadScore, aliveScore)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	board := mustBoard(t, [][]int{
		{2, 8, 0, 4},
		{16, 0, 2, 2},
		{0, 32, 4, 0},
		{128, 64, 8, 2},
	})
	cfg := DefaultConfig()
	first := EvaluateBoard(board, cfg)
	for i := 0; i < 5; i++ {
		if got := EvaluateBoard(board, cfg); got != first {
			t.Fatalf("evaluation changed between calls: %d vs %d", first, got)
		}
	}
	if board.At(0, 0) != 2 || board.At(3, 3) != 2 {
		t.Fatalf("evaluation must not modify the board")
	}
}

func TestEvaluateUsesConfiguredWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Heuristics.EmptySpaces = 0
	if got := EvaluateBoard(NewBoard(), cfg); got != 1000 {
		t.Fatalf("expected base only with empty-space weight zeroed, got %d", got)
	}
}
