package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/profile"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "go.uber.org/automaxprocs"
)

func main() {
	settings := LoadServerSettings()
	setupLogging(settings)
	if stopProfile := startProfile(settings.Profile); stopProfile != nil {
		defer stopProfile()
	}

	configStore.Update(applyEnvOverrides(GetConfig()))

	store, err := OpenGameStore(settings.DBPath)
	if err != nil {
		log.Error().Err(err).Str("path", settings.DBPath).Msg("storage disabled")
	} else {
		defer func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("closing database")
			}
		}()
	}

	controller := NewGameController(DefaultGameSettings())
	controller.SetFinishedHook(store.SaveGame)
	hub := NewHub()
	ghostHub := NewGhostHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controller.SetGhostPublisher(
		func() bool { return ghostHub.HasClients() && GetConfig().GhostMode },
		func(payload ghostPayload) {
			ghostHub.Publish(payload)
		},
	)

	go hub.Run(ctx.Done())
	go ghostHub.Run(ctx.Done())
	go runGameLoop(ctx, controller, hub)

	server := &http.Server{
		Addr:    settings.Addr,
		Handler: newAPI(controller, hub, ghostHub, store).routes(),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	log.Info().Str("addr", settings.Addr).Msg("backend listening")
	select {
	case <-sigCtx.Done():
		log.Info().Err(sigCtx.Err()).Msg("shutdown signal received")
	case err, ok := <-serverErrCh:
		if ok {
			log.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("graceful shutdown failed")
		if closeErr := server.Close(); closeErr != nil && !errors.Is(closeErr, http.ErrServerClosed) {
			log.Error().Err(closeErr).Msg("forced close failed")
		}
	}
	cancel()
	controller.Reset(controller.Settings())
}

// runGameLoop ticks the live game and fans out every applied move.
func runGameLoop(ctx context.Context, controller *GameController, hub *Hub) {
	interval := time.Duration(GetConfig().AiTickMs) * time.Millisecond
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if controller.Tick() {
				if entry, ok := controller.LatestHistoryEntry(); ok {
					hub.PublishHistory(historyPayload{History: []HistoryEntry{entry}})
				}
				hub.PublishStatus(controllerStatus(controller))
			}
		}
	}
}

func setupLogging(settings ServerSettings) {
	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if settings.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// startProfile enables pprof output for "cpu" or "mem"; anything else is off.
func startProfile(mode string) func() {
	var opt func(*profile.Profile)
	switch mode {
	case "cpu":
		opt = profile.CPUProfile
	case "mem":
		opt = profile.MemProfile
	default:
		return nil
	}
	p := profile.Start(opt, profile.ProfilePath("."), profile.NoShutdownHook)
	return p.Stop
}

func serveWS(hub *Hub, controller *GameController, w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &Client{send: make(chan []byte, 16)}
	hub.Register(client)

	status := controllerStatus(controller)
	client.sendJSON(wsMessage{Type: "status", Payload: mustMarshal(status)})

	go func() {
		defer conn.Close()
		if err := writeWSWithHeartbeat(conn, client.send); err != nil {
			return
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			hub.Unregister(client)
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "request_status":
			status := controllerStatus(controller)
			client.sendJSON(wsMessage{Type: "status", Payload: mustMarshal(status)})
		case "move":
			var payload apiMove
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			if err := controller.SubmitHumanMove(payload.Move); err != nil {
				client.sendJSON(wsMessage{Type: "error", Payload: mustMarshal(map[string]string{"error": err.Error()})})
			}
		}
	}
}
