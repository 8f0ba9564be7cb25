package main

import "sync"

type GameController struct {
	mu             sync.Mutex
	game           Game
	ghostEnabled   func() bool
	ghostPublisher func(ghostPayload)
	onFinished     func(GameRecord)
}

func NewGameController(settings GameSettings) *GameController {
	return &GameController{game: NewGame(settings)}
}

func (gc *GameController) SetGhostPublisher(enabled func() bool, publisher func(ghostPayload)) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.ghostEnabled = enabled
	gc.ghostPublisher = publisher
}

// SetFinishedHook is re-applied to every new game the controller starts.
func (gc *GameController) SetFinishedHook(hook func(GameRecord)) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.onFinished = hook
	gc.game.SetFinishedHook(hook)
}

func (gc *GameController) SubmitHumanMove(move Move) error {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.game.SubmitHumanMove(move)
}

func (gc *GameController) ApplyHumanMove(move Move) error {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	if !gc.game.CurrentPlayerIsHuman() {
		return ErrNotHumanTurn
	}
	return gc.game.TryApplyMove(Decision{Move: move})
}

func (gc *GameController) Tick() bool {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	ghostEnabled := false
	if gc.ghostEnabled != nil {
		ghostEnabled = gc.ghostEnabled()
	}
	return gc.game.Tick(ghostEnabled, gc.ghostPublisher)
}

func (gc *GameController) State() GameState {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.game.State()
}

func (gc *GameController) GameID() string {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.game.ID()
}

func (gc *GameController) Settings() GameSettings {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.game.settings
}

func (gc *GameController) History() MoveHistory {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.game.History()
}

func (gc *GameController) CurrentTurnStartedAtMs() int64 {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.game.TurnStartedAtMs()
}

func (gc *GameController) LatestHistoryEntry() (HistoryEntry, bool) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	history := gc.game.History()
	if history.Size() == 0 {
		return HistoryEntry{}, false
	}
	entries := history.All()
	return entries[len(entries)-1], true
}

func (gc *GameController) AiThinking() bool {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.game.AiThinking()
}

func (gc *GameController) Reset(settings GameSettings) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.game.Reset(settings)
	gc.game.SetFinishedHook(gc.onFinished)
}

func (gc *GameController) StartGame(settings GameSettings) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.game.Reset(settings)
	gc.game.SetFinishedHook(gc.onFinished)
	gc.game.Start()
}

func (gc *GameController) UpdateSettings(update GameSettings, reset bool) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	if reset {
		gc.game.Reset(update)
		gc.game.SetFinishedHook(gc.onFinished)
		return
	}
	gc.game.stopThinking()
	gc.game.settings = update
	gc.game.rules = NewRules(update)
	gc.game.createPlayer()
}

func (gc *GameController) ResetForConfigChange() {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.game.ResetForConfigChange()
}
