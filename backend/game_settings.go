package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

type PlayerType int

const (
	PlayerHuman PlayerType = iota
	PlayerAI
)

func (p PlayerType) String() string {
	if p == PlayerAI {
		return "ai"
	}
	return "human"
}

func (p PlayerType) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *PlayerType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch strings.ToLower(raw) {
	case "ai":
		*p = PlayerAI
	case "human", "":
		*p = PlayerHuman
	default:
		return fmt.Errorf("unknown player type %q", raw)
	}
	return nil
}

type GameSettings struct {
	PlayerType     PlayerType       `json:"player"`
	TwoProbability float64          `json:"two_probability"`
	WinTile        int              `json:"win_tile"` // 0: play until no move is left
	Seed           int64            `json:"seed"`     // 0: seed from the clock
	Heuristics     *HeuristicConfig `json:"heuristics,omitempty"`
	SearchConfig   *Config          `json:"-"`
}

func DefaultGameSettings() GameSettings {
	return GameSettings{
		PlayerType:     PlayerAI,
		TwoProbability: 0.9,
		WinTile:        0,
		Seed:           0,
	}
}
