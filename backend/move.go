package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Move int

const (
	NoMove Move = iota - 1
	MoveUp
	MoveDown
	MoveLeft
	MoveRight
)

// AllMoves is the enumeration order used everywhere; root ties resolve to
// the earliest entry.
var AllMoves = [...]Move{MoveUp, MoveDown, MoveLeft, MoveRight}

func (m Move) IsValid() bool {
	return m >= MoveUp && m <= MoveRight
}

func (m Move) String() string {
	switch m {
	case MoveUp:
		return "up"
	case MoveDown:
		return "down"
	case MoveLeft:
		return "left"
	case MoveRight:
		return "right"
	default:
		return "none"
	}
}

func ParseMove(raw string) (Move, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "up":
		return MoveUp, nil
	case "down":
		return MoveDown, nil
	case "left":
		return MoveLeft, nil
	case "right":
		return MoveRight, nil
	case "none", "":
		return NoMove, nil
	}
	return NoMove, fmt.Errorf("unknown move %q", raw)
}

func (m Move) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Move) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseMove(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Decision is what a player hands back to the game: the move plus how deep
// the search that produced it went.
type Decision struct {
	Move  Move    `json:"move"`
	Depth int     `json:"depth"`
	Score float64 `json:"score"`
}
