package main

import (
	"math"
	"time"
)

type SearchStats struct {
	Nodes           int64
	MaxNodes        int64
	ChanceNodes     int64
	Evaluations     int64
	Cutoffs         int64
	Start           time.Time
	DepthDurations  []time.Duration
	CompletedDepths int
	Aborted         bool
}

type searchNode struct {
	board Board
	depth int
}

// searchContext carries everything one depth-limited tree walk needs. It is
// built per decision call, so concurrent decisions never share state.
type searchContext struct {
	depthLimit     int
	deadline       time.Time
	hasDeadline    bool
	now            func() time.Time
	shouldStop     func() bool
	weights        HeuristicWeights
	twoProbability float64
	stats          *SearchStats
}

func newSearchContext(config Config, start time.Time, now func() time.Time) searchContext {
	if now == nil {
		now = time.Now
	}
	twoProb := config.AiTwoProbability
	if twoProb <= 0 || twoProb > 1 {
		twoProb = 0.9
	}
	ctx := searchContext{
		now:            now,
		weights:        resolveHeuristicWeights(config),
		twoProbability: twoProb,
	}
	if config.AiTimeLimitMs > 0 {
		ctx.deadline = start.Add(config.SearchBudget())
		ctx.hasDeadline = true
	}
	return ctx
}

func timedOut(ctx *searchContext) bool {
	if ctx.shouldStop != nil && ctx.shouldStop() {
		return true
	}
	if !ctx.hasDeadline {
		return false
	}
	return ctx.now().After(ctx.deadline)
}

func (ctx *searchContext) evaluate(board Board) float64 {
	if ctx.stats != nil {
		ctx.stats.Evaluations++
	}
	return float64(evaluateWithWeights(board, ctx.weights))
}

func (ctx *searchContext) noteCutoff() {
	if ctx.stats != nil {
		ctx.stats.Cutoffs++
	}
}

// decision runs one full walk at ctx.depthLimit and returns the best root
// move. ok is false when the walk was aborted; the move and value are then
// meaningless. A root with no legal move returns NoMove with ok true.
func (ctx *searchContext) decision(board Board) (Move, float64, bool) {
	alpha := math.Inf(-1)
	beta := math.Inf(1)
	maxVal := math.Inf(-1)
	best := NoMove
	for _, outcome := range board.AvailableMoves() {
		child := searchNode{board: outcome.Board, depth: 1}
		val, ok := ctx.expectiminimize(child, alpha, beta)
		if !ok {
			return NoMove, 0, false
		}
		if val > maxVal {
			best = outcome.Move
			maxVal = val
		}
		if maxVal >= beta {
			ctx.noteCutoff()
			break
		}
		alpha = math.Max(alpha, maxVal)
	}
	return best, maxVal, true
}

// maximize is the player's turn.
func (ctx *searchContext) maximize(node searchNode, alpha, beta float64) (float64, bool) {
	if timedOut(ctx) {
		return 0, false
	}
	if ctx.stats != nil {
		ctx.stats.Nodes++
		ctx.stats.MaxNodes++
	}
	if node.depth > ctx.depthLimit {
		return ctx.evaluate(node.board), true
	}
	options := node.board.AvailableMoves()
	if len(options) == 0 {
		return ctx.evaluate(node.board), true
	}
	maxVal := math.Inf(-1)
	for _, outcome := range options {
		child := searchNode{board: outcome.Board, depth: node.depth + 1}
		val, ok := ctx.expectiminimize(child, alpha, beta)
		if !ok {
			return 0, false
		}
		maxVal = math.Max(maxVal, val)
		if maxVal >= beta {
			ctx.noteCutoff()
			break
		}
		alpha = math.Max(alpha, maxVal)
	}
	return maxVal, true
}

// expectiminimize is the tile-spawn turn. Each empty cell yields the
// probability-weighted value of a 2 and a 4 landing there; the layer keeps
// the worst cell, which lets alpha-beta bounds prune it like a min node.
func (ctx *searchContext) expectiminimize(node searchNode, alpha, beta float64) (float64, bool) {
	if timedOut(ctx) {
		return 0, false
	}
	if ctx.stats != nil {
		ctx.stats.Nodes++
		ctx.stats.ChanceNodes++
	}
	if node.depth > ctx.depthLimit {
		return ctx.evaluate(node.board), true
	}
	cells := node.board.AvailableCells()
	if len(cells) == 0 {
		return ctx.evaluate(node.board), true
	}
	minVal := math.Inf(1)
	for _, cell := range cells {
		withTwo, withFour := placements(node, cell)
		left, ok := ctx.maximize(withTwo, alpha, beta)
		if !ok {
			return 0, false
		}
		right, ok := ctx.maximize(withFour, alpha, beta)
		if !ok {
			return 0, false
		}
		val := float64(int(ctx.twoProbability*left + (1-ctx.twoProbability)*right))
		minVal = math.Min(minVal, val)
		if minVal <= alpha {
			ctx.noteCutoff()
			break
		}
		beta = math.Min(beta, minVal)
	}
	return minVal, true
}

// placements builds a fresh pair of children for one cell: a 2 and a 4
// dropped there. Each child owns its board.
func placements(node searchNode, cell Pos) (searchNode, searchNode) {
	two := searchNode{board: node.board.Clone(), depth: node.depth + 1}
	four := searchNode{board: node.board.Clone(), depth: node.depth + 1}
	two.board.InsertTile(cell, 2)
	four.board.InsertTile(cell, 4)
	return two, four
}
