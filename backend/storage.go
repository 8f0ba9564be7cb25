package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

type GameRecord struct {
	ID         string    `json:"id"`
	Player     string    `json:"player"`
	Status     string    `json:"status"`
	Score      int       `json:"score"`
	MaxTile    int       `json:"max_tile"`
	Moves      int       `json:"moves"`
	MaxDepth   int       `json:"max_depth"`
	Board      [][]int   `json:"board"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// GameStore persists finished games. Writes happen off the caller's
// goroutine; Flush waits for the ones in flight.
type GameStore struct {
	db      *sql.DB
	pending sync.WaitGroup
}

const createGamesTableSQL = `
CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY,
	player TEXT,
	status TEXT,
	score INTEGER,
	max_tile INTEGER,
	moves INTEGER,
	max_depth INTEGER,
	board TEXT,
	started_at_ms INTEGER,
	finished_at_ms INTEGER
);
`

func OpenGameStore(dbPath string) (*GameStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite serialises writers anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createGamesTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create games table: %w", err)
	}
	log.Info().Str("path", dbPath).Msg("database initialized")
	return &GameStore{db: db}, nil
}

// SaveGame inserts the record asynchronously so the game loop never blocks
// on disk.
func (s *GameStore) SaveGame(record GameRecord) {
	if s == nil || s.db == nil {
		log.Debug().Str("game", record.ID).Msg("database not initialized, skipping save")
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.insert(context.Background(), record); err != nil {
			log.Error().Err(err).Str("game", record.ID).Msg("saving game")
			return
		}
		log.Info().Str("game", record.ID).Int("score", record.Score).Msg("game saved")
	}()
}

func (s *GameStore) insert(ctx context.Context, record GameRecord) error {
	board, err := json.Marshal(record.Board)
	if err != nil {
		return fmt.Errorf("encode board: %w", err)
	}
	const insertSQL = `
	INSERT INTO games (id, player, status, score, max_tile, moves, max_depth, board, started_at_ms, finished_at_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, insertSQL,
		record.ID,
		record.Player,
		record.Status,
		record.Score,
		record.MaxTile,
		record.Moves,
		record.MaxDepth,
		string(board),
		record.StartedAt.UnixMilli(),
		record.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert game %s: %w", record.ID, err)
	}
	return nil
}

// ListGames returns the most recently finished games first.
func (s *GameStore) ListGames(ctx context.Context, limit int) ([]GameRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const querySQL = `
	SELECT id, player, status, score, max_tile, moves, max_depth, board, started_at_ms, finished_at_ms
	FROM games ORDER BY finished_at_ms DESC LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, querySQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	records := []GameRecord{}
	for rows.Next() {
		var record GameRecord
		var board string
		var startedMs, finishedMs int64
		if err := rows.Scan(
			&record.ID,
			&record.Player,
			&record.Status,
			&record.Score,
			&record.MaxTile,
			&record.Moves,
			&record.MaxDepth,
			&board,
			&startedMs,
			&finishedMs,
		); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		record.StartedAt = time.UnixMilli(startedMs)
		record.FinishedAt = time.UnixMilli(finishedMs)
		if board != "" {
			if err := json.Unmarshal([]byte(board), &record.Board); err != nil {
				return nil, fmt.Errorf("decode board for %s: %w", record.ID, err)
			}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *GameStore) Flush() {
	s.pending.Wait()
}

func (s *GameStore) Close() error {
	s.Flush()
	return s.db.Close()
}
