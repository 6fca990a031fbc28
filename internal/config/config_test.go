package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if len(cfg.AgentCommand) == 0 {
		t.Fatal("default agent command must not be empty")
	}
	if cfg.DefaultMaxIterations < 1 {
		t.Errorf("DefaultMaxIterations = %d", cfg.DefaultMaxIterations)
	}
	sum := cfg.RankWeights.Recency + cfg.RankWeights.Similarity + cfg.RankWeights.DiffOverlap
	if sum != 1.0 {
		t.Errorf("rank weights sum = %v, want 1.0", sum)
	}
	if cfg.WarmupMaxChars <= 0 || cfg.PackMaxChars <= 0 {
		t.Error("output ceilings must be positive")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("EMBER_DATA_DIR", "/tmp/ember-test")
	t.Setenv("EMBER_AGENT_CMD", "claude -p --output-format stream-json")
	t.Setenv("EMBER_AGENT_TIMEOUT", "30s")
	t.Setenv("EMBER_MAX_ITERATIONS", "5")
	t.Setenv("EMBER_OLLAMA_MODEL", "mxbai-embed-large")

	cfg := FromEnv()

	if cfg.DataDir != "/tmp/ember-test" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	want := []string{"claude", "-p", "--output-format", "stream-json"}
	if len(cfg.AgentCommand) != len(want) {
		t.Fatalf("AgentCommand = %v, want %v", cfg.AgentCommand, want)
	}
	for i := range want {
		if cfg.AgentCommand[i] != want[i] {
			t.Errorf("AgentCommand[%d] = %q, want %q", i, cfg.AgentCommand[i], want[i])
		}
	}
	if cfg.AgentTimeout != 30*time.Second {
		t.Errorf("AgentTimeout = %v", cfg.AgentTimeout)
	}
	if cfg.DefaultMaxIterations != 5 {
		t.Errorf("DefaultMaxIterations = %d", cfg.DefaultMaxIterations)
	}
	if cfg.OllamaModel != "mxbai-embed-large" {
		t.Errorf("OllamaModel = %q", cfg.OllamaModel)
	}
}

func TestFromEnv_MalformedValuesKeepDefaults(t *testing.T) {
	t.Setenv("EMBER_AGENT_TIMEOUT", "not-a-duration")
	t.Setenv("EMBER_MAX_ITERATIONS", "0")
	t.Setenv("EMBER_AGENT_CMD", "   ")

	cfg := FromEnv()
	def := Default()

	if cfg.AgentTimeout != def.AgentTimeout {
		t.Errorf("AgentTimeout = %v, want default %v", cfg.AgentTimeout, def.AgentTimeout)
	}
	if cfg.DefaultMaxIterations != def.DefaultMaxIterations {
		t.Errorf("DefaultMaxIterations = %d, want default %d", cfg.DefaultMaxIterations, def.DefaultMaxIterations)
	}
	if len(cfg.AgentCommand) == 0 {
		t.Error("whitespace agent command must keep the default")
	}
}

func TestFromEnv_NoEmbeddings(t *testing.T) {
	t.Setenv("EMBER_NO_EMBEDDINGS", "1")

	if cfg := FromEnv(); cfg.OllamaModel != "" {
		t.Errorf("OllamaModel = %q, want empty when embeddings disabled", cfg.OllamaModel)
	}
}
