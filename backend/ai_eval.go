package main

import "math"

// BoardFeatures are the raw, unweighted terms of the evaluation. Each one is
// scaled to roughly [0,1] so the weights alone encode relative importance.
type BoardFeatures struct {
	Lost            float64
	EmptySpaces     float64
	LowEmptySpaces  float64
	EdgeLargeness   float64
	NonMonotonic    float64
	PotentialMerges float64
	Roughness       float64
}

type HeuristicWeights struct {
	Base            float64
	Lost            float64
	EmptySpaces     float64
	LowEmptySpaces  float64
	EdgeLargeness   float64
	NonMonotonic    float64
	PotentialMerges float64
	Roughness       float64
}

// lowEmptyPenalty is indexed by empty-cell count; six or more is safe.
var lowEmptyPenalty = [...]float64{1.0, 0.8, 0.6, 0.4, 0.2, 0.1}

func EvaluateBoard(board Board, config Config) int {
	return evaluateWithWeights(board, resolveHeuristicWeights(config))
}

func evaluateWithWeights(board Board, w HeuristicWeights) int {
	f := ComputeFeatures(board)
	score := -w.Lost*f.Lost -
		w.LowEmptySpaces*f.LowEmptySpaces +
		w.EmptySpaces*f.EmptySpaces +
		w.EdgeLargeness*f.EdgeLargeness -
		w.NonMonotonic*f.NonMonotonic +
		w.PotentialMerges*f.PotentialMerges -
		w.Roughness*f.Roughness
	return int(w.Base) + int(score)
}

func resolveHeuristicWeights(config Config) HeuristicWeights {
	if config.Heuristics == (HeuristicConfig{}) {
		config.Heuristics = DefaultHeuristics()
	}
	h := config.Heuristics
	return HeuristicWeights{
		Base:            h.Base,
		Lost:            h.Lost,
		EmptySpaces:     h.EmptySpaces,
		LowEmptySpaces:  h.LowEmptySpaces,
		EdgeLargeness:   h.EdgeLargeness,
		NonMonotonic:    h.NonMonotonic,
		PotentialMerges: h.PotentialMerges,
		Roughness:       h.Roughness,
	}
}

func ComputeFeatures(board Board) BoardFeatures {
	empty := board.CountEmpty()
	return BoardFeatures{
		Lost:            boardLost(board),
		EmptySpaces:     float64(empty) / 16.0,
		LowEmptySpaces:  lowEmptySpaces(empty),
		EdgeLargeness:   edgeLargeness(board),
		NonMonotonic:    nonMonotonicity(board),
		PotentialMerges: potentialMerges(board),
		Roughness:       roughness(board),
	}
}

func boardLost(board Board) float64 {
	if board.CanMove() {
		return 0.0
	}
	return 1.0
}

func lowEmptySpaces(empty int) float64 {
	if empty < 0 || empty >= len(lowEmptyPenalty) {
		return 0.0
	}
	return lowEmptyPenalty[empty]
}

func isEdgeCell(x, y int) bool {
	return x == 0 || y == 0 || x == BoardSize-1 || y == BoardSize-1
}

func edgeLargeness(board Board) float64 {
	total := 0
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			if isEdgeCell(x, y) {
				total += board.At(x, y) * 2
			}
		}
	}
	return float64(total) / 1000.0
}

func nonMonotonicity(board Board) float64 {
	total := 0
	var line [BoardSize]int
	for x := 0; x < BoardSize; x++ {
		for y := 0; y < BoardSize; y++ {
			line[y] = board.At(x, y)
		}
		total += lineNonMonotonicity(line)
	}
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			line[x] = board.At(x, y)
		}
		total += lineNonMonotonicity(line)
	}
	return float64(total) / 1000.0
}

// lineNonMonotonicity is 0 for an ordered line, otherwise twice the sum of
// its values.
func lineNonMonotonicity(line [BoardSize]int) int {
	if isMonotonic(line) {
		return 0
	}
	sum := 0
	for _, v := range line {
		sum += v * 2
	}
	return sum
}

func isMonotonic(line [BoardSize]int) bool {
	increasing := true
	decreasing := true
	for i := 0; i+1 < len(line); i++ {
		if line[i] < line[i+1] {
			decreasing = false
		}
		if line[i] > line[i+1] {
			increasing = false
		}
	}
	return increasing || decreasing
}

var scanDirections = [4][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}

func potentialMerges(board Board) float64 {
	return float64(countMergePairs(board)) / 24.0
}

// countMergePairs counts tiles that would meet an equal tile after sliding
// past empty cells. Each pair is seen from both ends, hence the halving.
func countMergePairs(board Board) int {
	adjacencies := 0
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			value := board.At(x, y)
			if value == 0 {
				continue
			}
			for _, dir := range scanDirections {
				nx, ny := x+dir[0], y+dir[1]
				for board.InBounds(nx, ny) {
					other := board.At(nx, ny)
					if other == value {
						adjacencies++
						break
					}
					if other != 0 {
						break
					}
					nx += dir[0]
					ny += dir[1]
				}
			}
		}
	}
	return adjacencies / 2
}

func roughness(board Board) float64 {
	differences := 0.0
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			value := board.At(x, y)
			if value == 0 {
				continue
			}
			if y+1 < BoardSize {
				differences += logDistance(value, board.At(x, y+1))
			}
			if x+1 < BoardSize {
				differences += logDistance(value, board.At(x+1, y))
			}
		}
	}
	return differences / 192.0
}

func logDistance(a, b int) float64 {
	if a == 0 || b == 0 {
		return 0.0
	}
	return math.Abs(math.Log2(float64(a)) - math.Log2(float64(b)))
}
