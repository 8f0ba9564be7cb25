package main

import "fmt"

const BoardSize = 4

type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Board holds tile values row-major; 0 is an empty cell. It is a value type,
// so assignment and Clone both yield an independent copy.
type Board struct {
	cells [BoardSize * BoardSize]int
}

func NewBoard() Board {
	return Board{}
}

func NewBoardFromRows(rows [][]int) (Board, error) {
	b := Board{}
	if len(rows) != BoardSize {
		return b, fmt.Errorf("board needs %d rows, got %d", BoardSize, len(rows))
	}
	for y, row := range rows {
		if len(row) != BoardSize {
			return b, fmt.Errorf("row %d needs %d cells, got %d", y, BoardSize, len(row))
		}
		for x, value := range row {
			if !isTileValue(value) {
				return b, fmt.Errorf("cell (%d,%d) has invalid tile %d", x, y, value)
			}
			b.Set(x, y, value)
		}
	}
	return b, nil
}

func (b *Board) Reset() {
	b.cells = [BoardSize * BoardSize]int{}
}

func (b Board) At(x, y int) int {
	return b.cells[b.index(x, y)]
}

func (b *Board) Set(x, y int, value int) {
	b.cells[b.index(x, y)] = value
}

func (b *Board) Remove(x, y int) {
	b.cells[b.index(x, y)] = 0
}

// InsertTile places a tile on an empty cell. Callers only use it on boards
// they own exclusively.
func (b *Board) InsertTile(pos Pos, value int) {
	b.Set(pos.X, pos.Y, value)
}

func (b Board) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < BoardSize && y < BoardSize
}

func (b Board) IsEmpty(x, y int) bool {
	return b.InBounds(x, y) && b.At(x, y) == 0
}

func (b Board) CountEmpty() int {
	count := 0
	for _, cell := range b.cells {
		if cell == 0 {
			count++
		}
	}
	return count
}

// AvailableCells lists empty cells in row-major order.
func (b Board) AvailableCells() []Pos {
	cells := make([]Pos, 0, BoardSize*BoardSize)
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			if b.At(x, y) == 0 {
				cells = append(cells, Pos{X: x, Y: y})
			}
		}
	}
	return cells
}

func (b Board) MaxTile() int {
	best := 0
	for _, cell := range b.cells {
		if cell > best {
			best = cell
		}
	}
	return best
}

func (b Board) Size() int {
	return BoardSize
}

func (b Board) Clone() Board {
	return b
}

func (b Board) Rows() [][]int {
	rows := make([][]int, BoardSize)
	for y := 0; y < BoardSize; y++ {
		rows[y] = make([]int, BoardSize)
		for x := 0; x < BoardSize; x++ {
			rows[y][x] = b.At(x, y)
		}
	}
	return rows
}

func (b Board) String() string {
	out := ""
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			if x > 0 {
				out += " "
			}
			out += fmt.Sprintf("%5d", b.At(x, y))
		}
		out += "\n"
	}
	return out
}

func (b Board) index(x, y int) int {
	return y*BoardSize + x
}

func isTileValue(value int) bool {
	if value == 0 {
		return true
	}
	return value >= 2 && value&(value-1) == 0
}
