package main

import (
	"errors"
	"math/rand"
	"testing"
)

func mustBoard(t *testing.T, rows [][]int) Board {
	t.Helper()
	board, err := NewBoardFromRows(rows)
	if err != nil {
		t.Fatalf("invalid test board: %v", err)
	}
	return board
}

func rowOf(board Board, y int) [BoardSize]int {
	var row [BoardSize]int
	for x := 0; x < BoardSize; x++ {
		row[x] = board.At(x, y)
	}
	return row
}

func TestSlideLeftMergesPairsOnce(t *testing.T) {
	board := mustBoard(t, [][]int{
		{2, 2, 2, 2},
		{2, 2, 4, 0},
		{0, 0, 0, 0},
		{4, 0, 0, 4},
	})
	next, gained, moved := board.Slide(MoveLeft)
	if !moved {
		t.Fatalf("expected left to move")
	}
	if got := rowOf(next, 0); got != [BoardSize]int{4, 4, 0, 0} {
		t.Fatalf("row 0: expected [4 4 0 0], got %v", got)
	}
	if got := rowOf(next, 1); got != [BoardSize]int{4, 4, 0, 0} {
		t.Fatalf("row 1: merged tile must not merge again, got %v", got)
	}
	if got := rowOf(next, 3); got != [BoardSize]int{8, 0, 0, 0} {
		t.Fatalf("row 3: expected [8 0 0 0], got %v", got)
	}
	if gained != 8+4+8 {
		t.Fatalf("expected 20 points gained, got %d", gained)
	}
	if board.At(1, 0) != 2 {
		t.Fatalf("slide must not modify the receiver")
	}
}

func TestSlideRightAndUp(t *testing.T) {
	board := mustBoard(t, [][]int{
		{2, 2, 2, 2},
		{0, 0, 0, 2},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	right, _, moved := board.Slide(MoveRight)
	if !moved {
		t.Fatalf("expected right to move")
	}
	if got := rowOf(right, 0); got != [BoardSize]int{0, 0, 4, 4} {
		t.Fatalf("expected [0 0 4 4], got %v", got)
	}

	up, gained, moved := board.Slide(MoveUp)
	if !moved {
		t.Fatalf("expected up to move")
	}
	if up.At(3, 0) != 4 || up.At(3, 1) != 0 {
		t.Fatalf("expected column 3 to merge into 4 at the top, got\n%s", up)
	}
	if gained != 4 {
		t.Fatalf("expected 4 points gained, got %d", gained)
	}
}

func TestSlideReportsNoChange(t *testing.T) {
	board := mustBoard(t, [][]int{
		{2, 4, 8, 16},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	if _, _, moved := board.Slide(MoveLeft); moved {
		t.Fatalf("packed row without pairs must not move left")
	}
	if _, _, moved := board.Slide(MoveUp); moved {
		t.Fatalf("top row must not move up")
	}
	if _, _, moved := board.Slide(NoMove); moved {
		t.Fatalf("NoMove must not move")
	}
}

func TestAvailableMovesOrder(t *testing.T) {
	board := mustBoard(t, [][]int{
		{2, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	outcomes := board.AvailableMoves()
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 legal moves, got %d", len(outcomes))
	}
	if outcomes[0].Move != MoveDown || outcomes[1].Move != MoveRight {
		t.Fatalf("expected [down right], got [%s %s]", outcomes[0].Move, outcomes[1].Move)
	}
	if outcomes[0].Board.At(0, 3) != 2 {
		t.Fatalf("expected down outcome to carry the slid board")
	}
}

func TestCanMoveOnDeadBoard(t *testing.T) {
	dead := mustBoard(t, [][]int{
		{2, 4, 2, 4},
		{4, 2, 4, 2},
		{2, 4, 2, 4},
		{4, 2, 4, 2},
	})
	if dead.CanMove() {
		t.Fatalf("checkerboard has no legal move")
	}
	if len(dead.AvailableMoves()) != 0 {
		t.Fatalf("expected no available moves")
	}
	alive := dead
	alive.Set(1, 0, 2)
	if !alive.CanMove() {
		t.Fatalf("adjacent pair must allow a move")
	}
}

func TestSpawnTileFillsEmptyCellOnly(t *testing.T) {
	rules := NewRules(DefaultGameSettings())
	rng := rand.New(rand.NewSource(1))
	board := NewBoard()
	for i := 0; i < BoardSize*BoardSize; i++ {
		pos, value, err := rules.SpawnTile(&board, rng)
		if err != nil {
			t.Fatalf("spawn %d: %v", i, err)
		}
		if value != 2 && value != 4 {
			t.Fatalf("unexpected spawned value %d", value)
		}
		if board.At(pos.X, pos.Y) != value {
			t.Fatalf("spawned tile not placed at %v", pos)
		}
	}
	if board.CountEmpty() != 0 {
		t.Fatalf("expected full board, %d empty", board.CountEmpty())
	}
	if _, _, err := rules.SpawnTile(&board, rng); !errors.Is(err, ErrBoardFull) {
		t.Fatalf("expected ErrBoardFull, got %v", err)
	}
}

func TestNewBoardFromRowsRejectsBadInput(t *testing.T) {
	if _, err := NewBoardFromRows([][]int{{2, 2, 2, 2}}); err == nil {
		t.Fatalf("expected error for missing rows")
	}
	rows := [][]int{{3, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}}
	if _, err := NewBoardFromRows(rows); err == nil {
		t.Fatalf("expected error for non power of two tile")
	}
}

func TestIsLegalRequiresRunningGame(t *testing.T) {
	rules := NewRules(DefaultGameSettings())
	state := DefaultGameState()
	state.Board = mustBoard(t, [][]int{
		{2, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	if ok, _ := rules.IsLegal(state, MoveDown); ok {
		t.Fatalf("moves are illegal before the game starts")
	}
	state.Status = StatusRunning
	if ok, reason := rules.IsLegal(state, MoveDown); !ok {
		t.Fatalf("expected down to be legal: %s", reason)
	}
	if ok, _ := rules.IsLegal(state, MoveUp); ok {
		t.Fatalf("expected up to be illegal")
	}
}
