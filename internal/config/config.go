// Package config holds the process-wide configuration for Ember.
//
// The configuration is resolved exactly once in the composition root and
// passed explicitly into constructors — there is no ambient global state.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Weights are the relevance ranker weights. They are tunable because the
// right balance depends on how a project uses memory; the defaults favor
// recency since warmup (the most common caller) usually runs without a
// focus query, which zeroes the similarity term.
type Weights struct {
	Recency     float64
	Similarity  float64
	DiffOverlap float64
}

// Config is the full Ember configuration.
type Config struct {
	// DataDir is the local data directory holding ember.db.
	DataDir string

	// AgentCommand is the external review agent CLI, argv-style. The
	// prompt is appended as the final argument on invocation.
	AgentCommand []string
	// AgentTimeout bounds a single agent invocation wall-clock.
	AgentTimeout time.Duration
	// DefaultMaxIterations is used when start_review passes none.
	DefaultMaxIterations int
	// SessionGrace is how long terminal review sessions stay readable
	// before eviction.
	SessionGrace time.Duration

	// OllamaHost and OllamaModel configure the embedding backend. An
	// empty model disables embeddings (FTS-only similarity).
	OllamaHost  string
	OllamaModel string

	// RankWeights are the relevance ranker weights.
	RankWeights Weights

	// WarmupMaxChars is the hard ceiling on warmup output.
	WarmupMaxChars int
	// PackMaxChars and PackMaxFiles are context pack defaults,
	// overridable per call.
	PackMaxChars int
	PackMaxFiles int
	// SpotcheckLimit is the default number of spotcheck risk items.
	SpotcheckLimit int
}

// Default returns the default configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:              filepath.Join(home, ".ember"),
		AgentCommand:         []string{"codex", "exec", "--json", "--full-auto"},
		AgentTimeout:         2 * time.Minute,
		DefaultMaxIterations: 3,
		SessionGrace:         time.Hour,
		OllamaHost:           "",
		OllamaModel:          "nomic-embed-text",
		RankWeights:          Weights{Recency: 0.5, Similarity: 0.3, DiffOverlap: 0.2},
		WarmupMaxChars:       4000,
		PackMaxChars:         12000,
		PackMaxFiles:         5,
		SpotcheckLimit:       3,
	}
}

// FromEnv returns the default configuration with EMBER_* environment
// overrides applied. Unset or malformed values keep the default.
func FromEnv() Config {
	cfg := Default()

	if v := os.Getenv("EMBER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("EMBER_AGENT_CMD"); v != "" {
		if argv := strings.Fields(v); len(argv) > 0 {
			cfg.AgentCommand = argv
		}
	}
	if v := os.Getenv("EMBER_AGENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.AgentTimeout = d
		}
	}
	if v := os.Getenv("EMBER_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			cfg.DefaultMaxIterations = n
		}
	}
	if v := os.Getenv("EMBER_OLLAMA_HOST"); v != "" {
		cfg.OllamaHost = v
	}
	if v := os.Getenv("EMBER_OLLAMA_MODEL"); v != "" {
		cfg.OllamaModel = v
	}
	if v, ok := os.LookupEnv("EMBER_NO_EMBEDDINGS"); ok && v != "0" && v != "false" {
		cfg.OllamaModel = ""
	}

	return cfg
}
