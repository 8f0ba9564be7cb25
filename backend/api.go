package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type StatusResponse struct {
	GameID          string         `json:"game_id"`
	Settings        GameSettings   `json:"settings"`
	Config          Config         `json:"config"`
	Board           [][]int        `json:"board"`
	Status          string         `json:"status"`
	Score           int            `json:"score"`
	MaxTile         int            `json:"max_tile"`
	MoveCount       int            `json:"move_count"`
	LastMove        Move           `json:"last_move"`
	LastSpawn       *Spawn         `json:"last_spawn,omitempty"`
	LastMessage     string         `json:"last_message,omitempty"`
	AiThinking      bool           `json:"ai_thinking"`
	History         []HistoryEntry `json:"history"`
	TurnStartedAtMs int64          `json:"turn_started_at_ms"`
}

// GameSettingsDTO is a partial update; nil fields keep their current value.
type GameSettingsDTO struct {
	Player         *PlayerType      `json:"player,omitempty"`
	TwoProbability *float64         `json:"two_probability,omitempty"`
	WinTile        *int             `json:"win_tile,omitempty"`
	Seed           *int64           `json:"seed,omitempty"`
	Heuristics     *HeuristicConfig `json:"heuristics,omitempty"`
}

type apiMove struct {
	Move Move `json:"move"`
}

type decideRequest struct {
	Board [][]int `json:"board"`
}

type decideResponse struct {
	Move      Move    `json:"move"`
	Depth     int     `json:"depth"`
	Score     float64 `json:"score"`
	Nodes     int64   `json:"nodes"`
	Aborted   bool    `json:"aborted"`
	ElapsedMs int64   `json:"elapsed_ms"`
}

type historyPayload struct {
	History []HistoryEntry `json:"history"`
}

type resetPayload struct {
	GameID          string  `json:"game_id"`
	Board           [][]int `json:"board"`
	Status          string  `json:"status"`
	Score           int     `json:"score"`
	TurnStartedAtMs int64   `json:"turn_started_at_ms"`
}

type settingsPayload struct {
	Settings GameSettings `json:"settings"`
	Config   Config       `json:"config"`
}

type api struct {
	controller *GameController
	hub        *Hub
	ghostHub   *GhostHub
	store      *GameStore
}

func newAPI(controller *GameController, hub *Hub, ghostHub *GhostHub, store *GameStore) *api {
	return &api{controller: controller, hub: hub, ghostHub: ghostHub, store: store}
}

func (a *api) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	r.Get("/api/status", a.handleStatus)
	r.Post("/api/start", a.handleStart)
	r.Post("/api/stop", a.handleStop)
	r.Post("/api/settings", a.handleSettings)
	r.Post("/api/move", a.handleMove)
	r.Post("/api/decide", a.handleDecide)
	r.Post("/api/benchmark", a.handleBenchmark)
	r.Get("/api/games", a.handleGames)

	r.Get("/ws/", func(w http.ResponseWriter, r *http.Request) {
		serveWS(a.hub, a.controller, w, r)
	})
	r.Get("/ws/ghost", func(w http.ResponseWriter, r *http.Request) {
		serveGhostWS(a.ghostHub, w, r)
	})
	return r
}

func (a *api) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, controllerStatus(a.controller))
}

func (a *api) handleStart(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Settings GameSettingsDTO `json:"settings"`
	}
	if err := decodeOptionalJSON(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	settings := settingsFromDTO(payload.Settings, a.controller.Settings())
	a.controller.StartGame(settings)
	writeJSON(w, http.StatusOK, controllerStatus(a.controller))
	a.hub.PublishReset(resetFromController(a.controller))
}

func (a *api) handleStop(w http.ResponseWriter, r *http.Request) {
	a.controller.Reset(a.controller.Settings())
	writeJSON(w, http.StatusOK, controllerStatus(a.controller))
	a.hub.PublishReset(resetFromController(a.controller))
}

func (a *api) handleSettings(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Settings *GameSettingsDTO `json:"settings"`
		Config   json.RawMessage  `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if len(payload.Config) > 0 && string(payload.Config) != "null" {
		// Fields missing from the body keep their current values.
		cfg := GetConfig()
		if err := json.Unmarshal(payload.Config, &cfg); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid config"})
			return
		}
		configStore.Update(cfg)
		a.controller.ResetForConfigChange()
	}
	if payload.Settings != nil {
		settings := settingsFromDTO(*payload.Settings, a.controller.Settings())
		a.controller.UpdateSettings(settings, false)
	}
	a.hub.PublishSettings(settingsPayload{
		Settings: a.controller.Settings(),
		Config:   GetConfig(),
	})
	writeJSON(w, http.StatusOK, controllerStatus(a.controller))
}

func (a *api) handleMove(w http.ResponseWriter, r *http.Request) {
	var payload apiMove
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if err := a.controller.ApplyHumanMove(payload.Move); err != nil {
		writeError(w, err)
		return
	}
	if entry, ok := a.controller.LatestHistoryEntry(); ok {
		a.hub.PublishHistory(historyPayload{History: []HistoryEntry{entry}})
	}
	status := controllerStatus(a.controller)
	a.hub.PublishStatus(status)
	writeJSON(w, http.StatusOK, status)
}

// handleDecide is stateless: it searches the posted board under the current
// config and never touches the live game.
func (a *api) handleDecide(w http.ResponseWriter, r *http.Request) {
	var payload decideRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	board, err := NewBoardFromRows(payload.Board)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	config := GetConfig()
	stats := &SearchStats{Start: time.Now()}
	decision := SearchBestMove(board, SearchSettings{Config: config, Stats: stats})
	if config.AiLogSearchStats {
		logSearchStats("decide", stats, config)
	}
	writeJSON(w, http.StatusOK, decideResponse{
		Move:      decision.Move,
		Depth:     decision.Depth,
		Score:     decision.Score,
		Nodes:     stats.Nodes,
		Aborted:   stats.Aborted,
		ElapsedMs: time.Since(stats.Start).Milliseconds(),
	})
}

func (a *api) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	var req BenchmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	result, err := RunBenchmark(r.Context(), req, GetConfig(), a.store)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *api) handleGames(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage disabled"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	games, err := a.store.ListGames(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}

// decodeOptionalJSON treats an empty body as an empty object.
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func settingsFromDTO(dto GameSettingsDTO, base GameSettings) GameSettings {
	settings := base
	if dto.Player != nil {
		settings.PlayerType = *dto.Player
	}
	if dto.TwoProbability != nil {
		settings.TwoProbability = *dto.TwoProbability
	}
	if dto.WinTile != nil {
		settings.WinTile = *dto.WinTile
	}
	if dto.Seed != nil {
		settings.Seed = *dto.Seed
	}
	if dto.Heuristics != nil {
		heuristics := *dto.Heuristics
		settings.Heuristics = &heuristics
	}
	return settings
}

func controllerStatus(controller *GameController) StatusResponse {
	state := controller.State()
	return StatusResponse{
		GameID:          controller.GameID(),
		Settings:        controller.Settings(),
		Config:          GetConfig(),
		Board:           state.Board.Rows(),
		Status:          state.Status.String(),
		Score:           state.Score,
		MaxTile:         state.Board.MaxTile(),
		MoveCount:       state.MoveCount,
		LastMove:        state.LastMove,
		LastSpawn:       state.LastSpawn,
		LastMessage:     state.LastMessage,
		AiThinking:      controller.AiThinking(),
		History:         controller.History().All(),
		TurnStartedAtMs: controller.CurrentTurnStartedAtMs(),
	}
}

func resetFromController(controller *GameController) resetPayload {
	state := controller.State()
	return resetPayload{
		GameID:          controller.GameID(),
		Board:           state.Board.Rows(),
		Status:          state.Status.String(),
		Score:           state.Score,
		TurnStartedAtMs: controller.CurrentTurnStartedAtMs(),
	}
}

func statusCodeFor(err error) int {
	switch {
	case errors.Is(err, ErrIllegalMove), errors.Is(err, ErrInvalidBenchmark):
		return http.StatusBadRequest
	case errors.Is(err, ErrGameNotRunning), errors.Is(err, ErrNotHumanTurn):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusCodeFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
