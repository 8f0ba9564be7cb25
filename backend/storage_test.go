package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *GameStore {
	t.Helper()
	store, err := OpenGameStore(filepath.Join(t.TempDir(), "nested", "games.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestGameStoreSavesAndListsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	base := time.UnixMilli(1_700_000_000_000)
	older := GameRecord{
		ID:         "older",
		Player:     "ai",
		Status:     "lost",
		Score:      1200,
		MaxTile:    128,
		Moves:      140,
		MaxDepth:   3,
		Board:      NewBoard().Rows(),
		StartedAt:  base,
		FinishedAt: base.Add(time.Minute),
	}
	newer := older
	newer.ID = "newer"
	newer.Score = 2400
	newer.Board = mustBoard(t, [][]int{
		{2, 4, 8, 16},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 256},
	}).Rows()
	newer.FinishedAt = base.Add(2 * time.Minute)

	store.SaveGame(older)
	store.SaveGame(newer)
	store.Flush()

	games, err := store.ListGames(context.Background(), 10)
	if err != nil {
		t.Fatalf("list games: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 games, got %d", len(games))
	}
	if games[0].ID != "newer" || games[1].ID != "older" {
		t.Fatalf("expected newest first, got %s then %s", games[0].ID, games[1].ID)
	}
	got := games[0]
	if got.Score != 2400 || got.MaxTile != 128 || got.Moves != 140 || got.MaxDepth != 3 || got.Status != "lost" {
		t.Fatalf("unexpected stored record %+v", got)
	}
	if got.Board[3][3] != 256 || got.Board[0][2] != 8 {
		t.Fatalf("board did not round-trip: %v", got.Board)
	}
	if !got.FinishedAt.Equal(newer.FinishedAt) || !got.StartedAt.Equal(base) {
		t.Fatalf("timestamps did not round-trip: %v %v", got.StartedAt, got.FinishedAt)
	}

	limited, err := store.ListGames(context.Background(), 1)
	if err != nil {
		t.Fatalf("list games: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestGameStoreDuplicateIDIsLoggedNotFatal(t *testing.T) {
	store := openTestStore(t)
	record := GameRecord{ID: "dup", Status: "won", FinishedAt: time.Now()}
	store.SaveGame(record)
	store.Flush()
	store.SaveGame(record)
	store.Flush()

	games, err := store.ListGames(context.Background(), 0)
	if err != nil {
		t.Fatalf("list games: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("expected the duplicate insert to be rejected, got %d rows", len(games))
	}
}

func TestNilGameStoreSkipsSave(t *testing.T) {
	var store *GameStore
	store.SaveGame(GameRecord{ID: "ignored"})
}
