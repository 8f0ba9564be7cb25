package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type trainer struct {
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
	apiAddr string
	logDir  string
	rng     *rand.Rand

	gamesPerEval       int
	validationGames    int
	mutationStrength   float64
	aiTimeLimitMs      int
	aiMaxDepth         int
	populationSize     int
	eliteCount         int
	validationPassRate float64

	statusMu  sync.RWMutex
	status    trainerStatus
	jobMu     sync.Mutex
	jobCancel context.CancelFunc
	jobDone   chan struct{}
}

type trainerStatus struct {
	Running             bool    `json:"running"`
	Phase               string  `json:"phase"`
	Message             string  `json:"message"`
	StartedAt           string  `json:"started_at"`
	UpdatedAt           string  `json:"updated_at"`
	Generation          int     `json:"generation"`
	GamesPlayed         int     `json:"games_played"`
	PopulationSize      int     `json:"population_size"`
	LastValidationRatio float64 `json:"last_validation_ratio"`
	ValidationThreshold float64 `json:"validation_threshold"`
	EtaSeconds          int     `json:"eta_seconds"`

	ChampionFitness   float64           `json:"champion_fitness"`
	ChampionHeuristic heuristicConfig   `json:"champion_heuristic"`
	TopContenders     []trainerStanding `json:"top_contenders,omitempty"`
}

type trainerStanding struct {
	ID         string          `json:"id"`
	Fitness    float64         `json:"fitness"`
	BestTile   int             `json:"best_tile"`
	Heuristics heuristicConfig `json:"heuristics"`
}

// heuristicConfig mirrors the backend's heuristics block.
type heuristicConfig struct {
	Base            float64 `json:"base"`
	Lost            float64 `json:"lost"`
	EmptySpaces     float64 `json:"empty_spaces"`
	LowEmptySpaces  float64 `json:"low_empty_spaces"`
	EdgeLargeness   float64 `json:"edge_largeness"`
	NonMonotonic    float64 `json:"non_monotonic"`
	PotentialMerges float64 `json:"potential_merges"`
	Roughness       float64 `json:"roughness"`
}

type statusResponse struct {
	Config struct {
		Heuristics heuristicConfig `json:"heuristics"`
	} `json:"config"`
}

type benchmarkRequest struct {
	Games         int              `json:"games"`
	Seed          int64            `json:"seed"`
	AiTimeLimitMs *int             `json:"ai_time_limit_ms,omitempty"`
	AiMaxDepth    *int             `json:"ai_max_depth,omitempty"`
	Heuristics    *heuristicConfig `json:"heuristics,omitempty"`
}

type benchmarkResponse struct {
	Games     int         `json:"games"`
	MeanScore float64     `json:"mean_score"`
	BestScore int         `json:"best_score"`
	MaxTiles  map[int]int `json:"max_tiles"`
}

type contender struct {
	ID         string
	Heuristics heuristicConfig
	Fitness    float64
	BestTile   int
}

func main() {
	logDir := getenv("TRAINER_LOG_DIR", "/logs")
	logger, closeLog, err := buildLogger(filepath.Join(logDir, "AITrainer.log"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	populationSize := getenvInt("HEURISTIC_POPULATION_SIZE", 8)
	if populationSize < 3 {
		populationSize = 3
	}
	eliteCount := getenvInt("HEURISTIC_ELITE_COUNT", 2)
	if eliteCount >= populationSize {
		eliteCount = populationSize - 1
	}
	mutationStrength := getenvFloat("HEURISTIC_MUTATION_STRENGTH", 0.15)
	if mutationStrength <= 0 {
		mutationStrength = 0.15
	}
	validationPassRate := getenvFloat("HEURISTIC_VALIDATION_PASS_RATE", 1.02)
	if validationPassRate <= 0 {
		validationPassRate = 1.02
	}
	t := &trainer{
		client:             &http.Client{Timeout: 10 * time.Minute},
		baseURL:            getenv("BACKEND_URL", "http://backend:8080"),
		logger:             logger,
		apiAddr:            getenv("TRAINER_API_ADDR", ":8090"),
		logDir:             logDir,
		rng:                rand.New(rand.NewSource(time.Now().UnixNano())),
		gamesPerEval:       getenvInt("HEURISTIC_GAMES_PER_EVAL", 8),
		validationGames:    getenvInt("HEURISTIC_VALIDATION_GAMES", 16),
		mutationStrength:   mutationStrength,
		aiTimeLimitMs:      getenvInt("TRAINER_AI_TIME_LIMIT_MS", 0),
		aiMaxDepth:         getenvInt("TRAINER_AI_MAX_DEPTH", 2),
		populationSize:     populationSize,
		eliteCount:         eliteCount,
		validationPassRate: validationPassRate,
		status: trainerStatus{
			Phase:     "idle",
			Message:   "service ready",
			StartedAt: time.Now().UTC().Format(time.RFC3339),
			UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}

	t.logger.Info().Str("backend", t.baseURL).Int("population", t.populationSize).Msg("trainer service started")
	server := t.startStatusAPI()

	if autostart, _ := strconv.ParseBool(getenv("TRAINER_AUTOSTART", "false")); autostart {
		if err := t.startTraining(); err != nil {
			t.logger.Error().Err(err).Msg("autostart failed")
		}
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	<-sigCtx.Done()
	_ = t.stopTraining("shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	t.logger.Info().Msg("trainer service stopping")
}

func (t *trainer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/api/trainer/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "running": t.getStatus().Running})
	})
	r.Get("/api/trainer/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, t.getStatus())
	})
	r.Post("/api/trainer/start", func(w http.ResponseWriter, r *http.Request) {
		if err := t.startTraining(); err != nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, t.getStatus())
	})
	r.Post("/api/trainer/stop", func(w http.ResponseWriter, r *http.Request) {
		if err := t.stopTraining("requested via api"); err != nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, t.getStatus())
	})
	return r
}

func (t *trainer) startStatusAPI() *http.Server {
	server := &http.Server{Addr: t.apiAddr, Handler: t.routes()}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error().Err(err).Msg("trainer api server error")
		}
	}()
	return server
}

func (t *trainer) getStatus() trainerStatus {
	t.statusMu.RLock()
	defer t.statusMu.RUnlock()
	return t.status
}

func (t *trainer) updateStatus(mutator func(*trainerStatus)) {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	mutator(&t.status)
	t.status.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

var errAlreadyRunning = errors.New("training already running")

func (t *trainer) startTraining() error {
	t.jobMu.Lock()
	defer t.jobMu.Unlock()
	if t.jobCancel != nil {
		return errAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.jobCancel = cancel
	t.jobDone = done
	t.updateStatus(func(s *trainerStatus) {
		s.Running = true
		s.Phase = "starting"
		s.Message = "training starting"
		s.GamesPlayed = 0
	})
	go func() {
		defer close(done)
		err := t.waitBackendReady(ctx)
		if err == nil {
			err = t.runHeuristicTraining(ctx)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			t.logger.Error().Err(err).Msg("training failed")
			t.updateStatus(func(s *trainerStatus) {
				s.Phase = "error"
				s.Message = err.Error()
			})
		}
		t.updateStatus(func(s *trainerStatus) {
			s.Running = false
			if s.Phase != "error" {
				s.Phase = "idle"
				s.Message = "service ready"
			}
		})
		t.jobMu.Lock()
		t.jobCancel = nil
		t.jobDone = nil
		t.jobMu.Unlock()
	}()
	return nil
}

func (t *trainer) stopTraining(reason string) error {
	t.jobMu.Lock()
	cancel := t.jobCancel
	done := t.jobDone
	t.jobMu.Unlock()
	if cancel == nil {
		return errors.New("no running training job")
	}
	t.logger.Info().Str("reason", reason).Msg("stopping training")
	cancel()
	if done != nil {
		<-done
	}
	return nil
}

// runHeuristicTraining evolves the weights one generation at a time. Every
// contender of a generation plays the same seeded games, so fitness
// differences come from the weights and not from spawn luck.
func (t *trainer) runHeuristicTraining(ctx context.Context) error {
	base, err := t.getBaseHeuristics(ctx)
	if err != nil {
		return err
	}
	champion := contender{ID: "champion", Heuristics: base}
	population := t.initializePopulation(base)

	t.updateStatus(func(s *trainerStatus) {
		s.Phase = "running"
		s.Message = "heuristic training running"
		s.PopulationSize = t.populationSize
		s.ValidationThreshold = t.validationPassRate
		s.ChampionHeuristic = champion.Heuristics
	})

	generation := 1
	games := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		genStart := time.Now()
		seed := t.rng.Int63()
		for i := range population {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result, err := t.benchmark(ctx, population[i].Heuristics, t.gamesPerEval, seed)
			if err != nil {
				return fmt.Errorf("generation %d %s: %w", generation, population[i].ID, err)
			}
			population[i].Fitness = result.MeanScore
			population[i].BestTile = bestTile(result.MaxTiles)
			games += result.Games
			done := i + 1
			t.updateStatus(func(s *trainerStatus) {
				s.Generation = generation
				s.GamesPlayed = games
				avg := time.Since(genStart).Seconds() / float64(done)
				s.EtaSeconds = int(math.Round(avg * float64(len(population)-done)))
			})
		}
		rankContenders(population)
		best := population[0]

		if !heuristicsEqual(best.Heuristics, champion.Heuristics) {
			ratio, err := t.runValidation(ctx, best.Heuristics, champion.Heuristics)
			if err != nil {
				return err
			}
			t.updateStatus(func(s *trainerStatus) {
				s.LastValidationRatio = ratio
			})
			if ratio >= t.validationPassRate {
				champion = contender{ID: fmt.Sprintf("champion-g%d", generation), Heuristics: best.Heuristics, Fitness: best.Fitness}
				t.logger.Info().Int("generation", generation).Float64("ratio", ratio).Msg("champion promoted")
				if err := t.writeHeuristicFile("champion_heuristics.json", champion.Heuristics); err != nil {
					t.logger.Warn().Err(err).Msg("persisting champion")
				}
			} else {
				t.logger.Info().Int("generation", generation).Float64("ratio", ratio).Msg("champion retained")
			}
		}

		t.updateStatus(func(s *trainerStatus) {
			s.EtaSeconds = 0
			s.ChampionFitness = champion.Fitness
			s.ChampionHeuristic = champion.Heuristics
			s.TopContenders = toStandings(population, 8)
		})
		population = t.nextGenerationPopulation(champion.Heuristics, population)
		generation++
	}
}

// runValidation plays both weight sets on a fresh seed and returns the
// candidate's mean score relative to the champion's.
func (t *trainer) runValidation(ctx context.Context, candidate, champion heuristicConfig) (float64, error) {
	seed := t.rng.Int63()
	challenger, err := t.benchmark(ctx, candidate, t.validationGames, seed)
	if err != nil {
		return 0, fmt.Errorf("validate candidate: %w", err)
	}
	holder, err := t.benchmark(ctx, champion, t.validationGames, seed)
	if err != nil {
		return 0, fmt.Errorf("validate champion: %w", err)
	}
	if holder.MeanScore <= 0 {
		return 0, nil
	}
	return challenger.MeanScore / holder.MeanScore, nil
}

func (t *trainer) benchmark(ctx context.Context, heuristics heuristicConfig, games int, seed int64) (benchmarkResponse, error) {
	timeLimit := t.aiTimeLimitMs
	maxDepth := t.aiMaxDepth
	req := benchmarkRequest{
		Games:         games,
		Seed:          seed,
		AiTimeLimitMs: &timeLimit,
		AiMaxDepth:    &maxDepth,
		Heuristics:    &heuristics,
	}
	var resp benchmarkResponse
	if err := t.postJSON(ctx, "/api/benchmark", req, &resp); err != nil {
		return benchmarkResponse{}, err
	}
	return resp, nil
}

func (t *trainer) initializePopulation(seed heuristicConfig) []contender {
	pop := make([]contender, 0, t.populationSize)
	pop = append(pop, contender{ID: "p0", Heuristics: seed})
	for i := 1; i < t.populationSize; i++ {
		pop = append(pop, contender{
			ID:         fmt.Sprintf("p%d", i),
			Heuristics: t.mutateHeuristics(seed),
		})
	}
	return pop
}

// nextGenerationPopulation keeps the champion and the elites unchanged and
// fills the rest with mutations of the elites.
func (t *trainer) nextGenerationPopulation(champion heuristicConfig, ranked []contender) []contender {
	next := make([]contender, 0, t.populationSize)
	next = append(next, contender{ID: "p0", Heuristics: champion})
	for i := 0; i < len(ranked) && len(next) < t.populationSize && i < t.eliteCount+1; i++ {
		if heuristicsEqual(ranked[i].Heuristics, champion) {
			continue
		}
		next = append(next, contender{
			ID:         fmt.Sprintf("elite-%d", i),
			Heuristics: ranked[i].Heuristics,
		})
	}
	parentPool := ranked
	if len(parentPool) > t.eliteCount+1 {
		parentPool = parentPool[:t.eliteCount+1]
	}
	for len(next) < t.populationSize {
		parent := parentPool[t.rng.Intn(len(parentPool))]
		next = append(next, contender{
			ID:         fmt.Sprintf("mut-%d", len(next)),
			Heuristics: t.mutateHeuristics(parent.Heuristics),
		})
	}
	return next
}

// mutateHeuristics scales each tunable weight by a random factor. Base and
// Lost stay fixed: they anchor the score scale rather than shape play.
func (t *trainer) mutateHeuristics(base heuristicConfig) heuristicConfig {
	out := base
	mutate := func(v float64) float64 {
		factor := 1 + (t.rng.Float64()*2-1)*t.mutationStrength
		next := v * factor
		if math.IsNaN(next) || math.IsInf(next, 0) || next < 1 {
			return v
		}
		return next
	}
	out.EmptySpaces = mutate(out.EmptySpaces)
	out.LowEmptySpaces = mutate(out.LowEmptySpaces)
	out.EdgeLargeness = mutate(out.EdgeLargeness)
	out.NonMonotonic = mutate(out.NonMonotonic)
	out.PotentialMerges = mutate(out.PotentialMerges)
	out.Roughness = mutate(out.Roughness)
	return out
}

func rankContenders(list []contender) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Fitness > list[j].Fitness
	})
}

func toStandings(list []contender, limit int) []trainerStanding {
	out := make([]trainerStanding, 0, min(len(list), limit))
	for i := 0; i < len(list) && i < limit; i++ {
		out = append(out, trainerStanding{
			ID:         list[i].ID,
			Fitness:    list[i].Fitness,
			BestTile:   list[i].BestTile,
			Heuristics: list[i].Heuristics,
		})
	}
	return out
}

func bestTile(histogram map[int]int) int {
	best := 0
	for tile, count := range histogram {
		if count > 0 && tile > best {
			best = tile
		}
	}
	return best
}

func heuristicsEqual(a, b heuristicConfig) bool {
	return a == b
}

func (t *trainer) getBaseHeuristics(ctx context.Context) (heuristicConfig, error) {
	if stored, err := t.readHeuristicFile("champion_heuristics.json"); err == nil {
		return stored, nil
	}
	var status statusResponse
	if err := t.getJSON(ctx, "/api/status", &status); err != nil {
		return heuristicConfig{}, fmt.Errorf("fetch backend heuristics: %w", err)
	}
	return status.Config.Heuristics, nil
}

func (t *trainer) writeHeuristicFile(name string, heuristics heuristicConfig) error {
	if err := os.MkdirAll(t.logDir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(heuristics, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	path := filepath.Join(t.logDir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (t *trainer) readHeuristicFile(name string) (heuristicConfig, error) {
	raw, err := os.ReadFile(filepath.Join(t.logDir, name))
	if err != nil {
		return heuristicConfig{}, err
	}
	var cfg heuristicConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return heuristicConfig{}, err
	}
	return cfg, nil
}

func (t *trainer) waitBackendReady(ctx context.Context) error {
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if err := t.getJSON(ctx, "/api/ping", &map[string]bool{}); err == nil {
			return nil
		}
		if !sleepWithContext(ctx, 1*time.Second) {
			return ctx.Err()
		}
	}
	return errors.New("backend not ready after 60s")
}

func (t *trainer) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return err
	}
	return t.do(req, out)
}

func (t *trainer) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req, out)
}

func (t *trainer) do(req *http.Request, out any) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s -> %d: %s", req.Method, req.URL.Path, resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func buildLogger(path string) (zerolog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Logger{}, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	logger := zerolog.New(zerolog.MultiLevelWriter(console, f)).With().Timestamp().Logger()
	return logger, func() { _ = f.Close() }, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	parsed, err := strconv.Atoi(os.Getenv(key))
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return parsed
}
