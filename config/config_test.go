package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv(OllamaHostEnvVar, "")
	t.Setenv("MODEL", "")
	t.Setenv("HOTKEY", "")
	t.Setenv("ANALYZE_DEADLINE_SEC", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OllamaURL != DefaultOllamaURL {
		t.Errorf("Expected default URL %s, got %s", DefaultOllamaURL, cfg.OllamaURL)
	}
	if cfg.Model != DefaultModel {
		t.Errorf("Expected default model %s, got %s", DefaultModel, cfg.Model)
	}
	if cfg.Hotkey != DefaultHotkey {
		t.Errorf("Expected default hotkey %s, got %s", DefaultHotkey, cfg.Hotkey)
	}
	if cfg.AnalyzeDeadlineSec != 300 {
		t.Errorf("Expected default deadline 300, got %d", cfg.AnalyzeDeadlineSec)
	}
}

func TestLoadPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		opts    LoadOptions
		wantURL string
	}{
		{
			name:    "Env variable selects URL",
			env:     "http://box:11434",
			wantURL: "http://box:11434",
		},
		{
			name:    "Flag override beats env",
			env:     "http://box:11434",
			opts:    LoadOptions{OllamaURLOverride: "http://other:11434"},
			wantURL: "http://other:11434",
		},
		{
			name:    "Whitespace override is ignored",
			env:     "http://box:11434",
			opts:    LoadOptions{OllamaURLOverride: "   "},
			wantURL: "http://box:11434",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(OllamaHostEnvVar, tt.env)
			cfg, err := LoadWithOptions(tt.opts)
			if err != nil {
				t.Fatalf("LoadWithOptions failed: %v", err)
			}
			if cfg.OllamaURL != tt.wantURL {
				t.Errorf("Expected URL %s, got %s", tt.wantURL, cfg.OllamaURL)
			}
		})
	}
}

func TestAnalyzeDeadlineOverride(t *testing.T) {
	t.Setenv("ANALYZE_DEADLINE_SEC", "45")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AnalyzeDeadlineSec != 45 {
		t.Errorf("Expected deadline 45, got %d", cfg.AnalyzeDeadlineSec)
	}

	t.Setenv("ANALYZE_DEADLINE_SEC", "not-a-number")
	cfg, _ = Load()
	if cfg.AnalyzeDeadlineSec != 300 {
		t.Errorf("Expected fallback deadline 300, got %d", cfg.AnalyzeDeadlineSec)
	}
}
