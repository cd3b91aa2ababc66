package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultOllamaURL = "http://localhost:11434"
	DefaultModel     = "llava:latest"
	DefaultHotkey    = "Ctrl+Alt+S"

	OllamaHostEnvVar = "OLLAMA_HOST"
	ConfigPathEnvVar = "SCREENSNAP_ENV"
)

// LoadOptions carries CLI flag overrides, which take precedence over both
// the .env file and process environment.
type LoadOptions struct {
	OllamaURLOverride string
	ModelOverride     string
}

type Config struct {
	OllamaURL          string
	Model              string
	Hotkey             string
	EnableFileLogging  bool
	AnalyzeDeadlineSec int
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Load configuration from sources in priority order:
	// 1) explicit CLI overrides
	// 2) process environment
	// 3) .env in the application (executable) directory, or the file named
	//    by SCREENSNAP_ENV when no .env sits next to the executable
	envPath := resolveEnvPath()
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// Analysis deadline (seconds) with env override and sane default.
	// 300s matches how long a cold vision model can take to answer.
	deadlineSec := 300
	if v := os.Getenv("ANALYZE_DEADLINE_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			deadlineSec = n
		}
	}

	cfg := &Config{
		OllamaURL:          resolveOllamaURL(opts),
		Model:              resolveModel(opts),
		Hotkey:             getEnvWithDefault("HOTKEY", DefaultHotkey),
		EnableFileLogging:  strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		AnalyzeDeadlineSec: deadlineSec,
	}

	return cfg, nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	execDir := filepath.Dir(execPath)
	exeEnv := filepath.Join(execDir, ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(ConfigPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func resolveOllamaURL(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.OllamaURLOverride); override != "" {
		return override
	}
	return getEnvWithDefault(OllamaHostEnvVar, DefaultOllamaURL)
}

func resolveModel(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.ModelOverride); override != "" {
		return override
	}
	return getEnvWithDefault("MODEL", DefaultModel)
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
