package main

import "encoding/json"

type GameStatus int

const (
	StatusNotStarted GameStatus = iota
	StatusRunning
	StatusWon
	StatusLost
)

func (s GameStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusWon:
		return "won"
	case StatusLost:
		return "lost"
	default:
		return "not_started"
	}
}

func (s GameStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s GameStatus) Finished() bool {
	return s == StatusWon || s == StatusLost
}

type Spawn struct {
	Pos   Pos `json:"pos"`
	Value int `json:"value"`
}

type GameState struct {
	Board       Board
	Status      GameStatus
	Score       int
	MoveCount   int
	HasLastMove bool
	LastMove    Move
	LastSpawn   *Spawn
	LastMessage string
}

func DefaultGameState() GameState {
	state := GameState{}
	state.Reset()
	return state
}

func (s *GameState) Reset() {
	s.Board = NewBoard()
	s.Status = StatusNotStarted
	s.Score = 0
	s.MoveCount = 0
	s.HasLastMove = false
	s.LastMove = NoMove
	s.LastSpawn = nil
	s.LastMessage = ""
}

func (s GameState) Clone() GameState {
	clone := s
	clone.Board = s.Board.Clone()
	if s.LastSpawn != nil {
		spawn := *s.LastSpawn
		clone.LastSpawn = &spawn
	}
	return clone
}
