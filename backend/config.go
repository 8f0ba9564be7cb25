package main

import (
	"os"
	"strconv"
	"sync"
	"time"
)

type Config struct {
	GhostMode         bool            `json:"ghost_mode"`
	AiTimeLimitMs     int             `json:"ai_time_limit_ms"`
	AiSafetyMarginMs  int             `json:"ai_safety_margin_ms"`
	AiMinDepth        int             `json:"ai_min_depth"`
	AiMaxDepth        int             `json:"ai_max_depth"`
	AiTwoProbability  float64         `json:"ai_two_probability"`
	AiLogSearchStats  bool            `json:"ai_log_search_stats"`
	AiTickMs          int             `json:"ai_tick_ms"`
	BenchmarkWorkers  int             `json:"benchmark_workers"`
	BenchmarkMaxGames int             `json:"benchmark_max_games"`
	Heuristics        HeuristicConfig `json:"heuristics"`
}

type HeuristicConfig struct {
	Base            float64 `json:"base"`
	Lost            float64 `json:"lost"`
	EmptySpaces     float64 `json:"empty_spaces"`
	LowEmptySpaces  float64 `json:"low_empty_spaces"`
	EdgeLargeness   float64 `json:"edge_largeness"`
	NonMonotonic    float64 `json:"non_monotonic"`
	PotentialMerges float64 `json:"potential_merges"`
	Roughness       float64 `json:"roughness"`
}

type ConfigStore struct {
	mu     sync.RWMutex
	config Config
}

func DefaultConfig() Config {
	return Config{
		GhostMode: false,

		// 200ms per decision, 50ms kept back so the caller never sees us late
		AiTimeLimitMs:    200,
		AiSafetyMarginMs: 50,
		AiMinDepth:       1,
		AiMaxDepth:       0, // 0: keep deepening until the budget runs out
		AiTwoProbability: 0.9,
		AiLogSearchStats: false,
		AiTickMs:         50,

		BenchmarkWorkers:  0, // 0: GOMAXPROCS
		BenchmarkMaxGames: 64,

		Heuristics: DefaultHeuristics(),
	}
}

func DefaultHeuristics() HeuristicConfig {
	return HeuristicConfig{
		Base:            1000.0,
		Lost:            1000000.0,
		EmptySpaces:     600.0,
		LowEmptySpaces:  14000.0,
		EdgeLargeness:   400.0,
		NonMonotonic:    12000.0,
		PotentialMerges: 900.0,
		Roughness:       400.0,
	}
}

// SearchBudget is the effective wall-clock budget for one decision.
func (c Config) SearchBudget() time.Duration {
	budget := time.Duration(c.AiTimeLimitMs-c.AiSafetyMarginMs) * time.Millisecond
	if budget < 0 {
		return 0
	}
	return budget
}

var configStore = &ConfigStore{config: DefaultConfig()}

func GetConfig() Config {
	return configStore.Get()
}

func (c *ConfigStore) Get() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

func (c *ConfigStore) Update(newConfig Config) {
	c.mu.Lock()
	c.config = newConfig
	c.mu.Unlock()
}

// ServerSettings are process-level knobs read once from the environment.
type ServerSettings struct {
	Addr      string
	DBPath    string
	LogLevel  string
	LogPretty bool
	Profile   string
}

func LoadServerSettings() ServerSettings {
	pretty, _ := strconv.ParseBool(getEnv("LOG_PRETTY", "false"))
	return ServerSettings{
		Addr:      getEnv("ADDR", ":8080"),
		DBPath:    getEnv("DB_PATH", "data/games.db"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: pretty,
		Profile:   getEnv("PROFILE", ""),
	}
}

// applyEnvOverrides lets deployments change the search budget without a
// settings call.
func applyEnvOverrides(cfg Config) Config {
	if v, err := strconv.Atoi(getEnv("AI_TIME_LIMIT_MS", "")); err == nil && v > 0 {
		cfg.AiTimeLimitMs = v
	}
	if v, err := strconv.Atoi(getEnv("AI_SAFETY_MARGIN_MS", "")); err == nil && v >= 0 {
		cfg.AiSafetyMarginMs = v
	}
	if v, err := strconv.Atoi(getEnv("AI_MAX_DEPTH", "")); err == nil && v >= 0 {
		cfg.AiMaxDepth = v
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
