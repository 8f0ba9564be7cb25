package main

import (
	"errors"
	"math/rand"
)

var ErrBoardFull = errors.New("board is full")

// MoveOutcome is one legal move together with the board it produces.
type MoveOutcome struct {
	Move   Move
	Board  Board
	Gained int
}

type Rules struct {
	settings GameSettings
}

func NewRules(settings GameSettings) Rules {
	if settings.TwoProbability <= 0 || settings.TwoProbability > 1 {
		settings.TwoProbability = DefaultGameSettings().TwoProbability
	}
	return Rules{settings: settings}
}

func (r Rules) IsLegal(state GameState, move Move) (bool, string) {
	if state.Status != StatusRunning {
		return false, "game not running"
	}
	if !move.IsValid() {
		return false, "unknown move"
	}
	if _, _, moved := state.Board.Slide(move); !moved {
		return false, "move changes nothing"
	}
	return true, ""
}

func (r Rules) IsWin(board Board) bool {
	return r.settings.WinTile > 0 && board.MaxTile() >= r.settings.WinTile
}

// SpawnTile drops a 2 (or a 4 with the configured probability) on a random
// empty cell.
func (r Rules) SpawnTile(board *Board, rng *rand.Rand) (Pos, int, error) {
	free := board.AvailableCells()
	if len(free) == 0 {
		return Pos{}, 0, ErrBoardFull
	}
	value := 2
	if rng.Float64() >= r.settings.TwoProbability {
		value = 4
	}
	pos := free[rng.Intn(len(free))]
	board.InsertTile(pos, value)
	return pos, value, nil
}

// AvailableMoves enumerates legal moves in Up, Down, Left, Right order.
func (b Board) AvailableMoves() []MoveOutcome {
	out := make([]MoveOutcome, 0, len(AllMoves))
	for _, move := range AllMoves {
		next, gained, moved := b.Slide(move)
		if moved {
			out = append(out, MoveOutcome{Move: move, Board: next, Gained: gained})
		}
	}
	return out
}

// CanMove reports whether any move changes the board, without building the
// resulting boards.
func (b Board) CanMove() bool {
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			value := b.At(x, y)
			if value == 0 {
				return true
			}
			if x+1 < BoardSize && b.At(x+1, y) == value {
				return true
			}
			if y+1 < BoardSize && b.At(x, y+1) == value {
				return true
			}
		}
	}
	return false
}

// Slide applies a move and returns the new board, the points gained from
// merges and whether anything moved. The receiver is not modified.
func (b Board) Slide(move Move) (Board, int, bool) {
	if !move.IsValid() {
		return b, 0, false
	}
	out := b
	dx, dy := moveVector(move)
	xs, ys := buildTraversals(move)
	var merged [BoardSize * BoardSize]bool
	gained := 0
	moved := false
	for _, y := range ys {
		for _, x := range xs {
			value := out.At(x, y)
			if value == 0 {
				continue
			}
			farX, farY, nextX, nextY := findFarthestPosition(out, x, y, dx, dy)
			if out.InBounds(nextX, nextY) && out.At(nextX, nextY) == value && !merged[out.index(nextX, nextY)] {
				out.Remove(x, y)
				out.Set(nextX, nextY, value*2)
				merged[out.index(nextX, nextY)] = true
				gained += value * 2
				moved = true
			} else if farX != x || farY != y {
				out.Remove(x, y)
				out.Set(farX, farY, value)
				moved = true
			}
		}
	}
	return out, gained, moved
}

func moveVector(move Move) (int, int) {
	switch move {
	case MoveUp:
		return 0, -1
	case MoveDown:
		return 0, 1
	case MoveLeft:
		return -1, 0
	default:
		return 1, 0
	}
}

// buildTraversals orders cells so the ones closest to the destination edge
// move first.
func buildTraversals(move Move) ([]int, []int) {
	xs := make([]int, BoardSize)
	ys := make([]int, BoardSize)
	for i := 0; i < BoardSize; i++ {
		xs[i] = i
		ys[i] = i
		if move == MoveRight {
			xs[i] = BoardSize - 1 - i
		}
		if move == MoveDown {
			ys[i] = BoardSize - 1 - i
		}
	}
	return xs, ys
}

func findFarthestPosition(b Board, x, y, dx, dy int) (int, int, int, int) {
	prevX, prevY := x, y
	nextX, nextY := x+dx, y+dy
	for b.IsEmpty(nextX, nextY) {
		prevX, prevY = nextX, nextY
		nextX, nextY = nextX+dx, nextY+dy
	}
	return prevX, prevY, nextX, nextY
}
